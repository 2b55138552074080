package bridge

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/cyberglitchlabs/owon-xdm-remote/internal/bus"
	"github.com/cyberglitchlabs/owon-xdm-remote/internal/clock"
	"github.com/cyberglitchlabs/owon-xdm-remote/internal/metrics"
)

var testTopics = bus.TopicsFor("xdm1041")

func newTestClock() *clock.Mock {
	return clock.NewMock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
}

func newTestMetrics() *metrics.Metrics {
	return metrics.New(prometheus.NewRegistry())
}

// fakeTransport scripts the serial line: ReadLine pops lines, Drain pops
// drain payloads, ReadAvailable pops background chunks. Everything is
// mutex-guarded so orchestrator tests can assert from another goroutine.
type fakeTransport struct {
	mu       sync.Mutex
	writes   []string
	lines    []string
	drains   [][]byte
	avail    [][]byte
	reopens  int
	closes   int
	writeErr error
	drainErr error
	readErr  error
}

func (f *fakeTransport) Open() error { return nil }

func (f *fakeTransport) Reopen() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reopens++
	return nil
}

func (f *fakeTransport) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closes++
	return nil
}

func (f *fakeTransport) WriteLine(cmd string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.writeErr != nil {
		return f.writeErr
	}
	f.writes = append(f.writes, cmd)
	return nil
}

func (f *fakeTransport) ReadLine(time.Duration) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.readErr != nil {
		return "", f.readErr
	}
	if len(f.lines) == 0 {
		return "", nil
	}
	line := f.lines[0]
	f.lines = f.lines[1:]
	return line, nil
}

func (f *fakeTransport) Drain(time.Time) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.drainErr != nil {
		return nil, f.drainErr
	}
	if len(f.drains) == 0 {
		return nil, nil
	}
	data := f.drains[0]
	f.drains = f.drains[1:]
	return data, nil
}

func (f *fakeTransport) ReadAvailable() ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.avail) == 0 {
		return nil, nil
	}
	data := f.avail[0]
	f.avail = f.avail[1:]
	return data, nil
}

func (f *fakeTransport) pushLine(line string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lines = append(f.lines, line)
}

func (f *fakeTransport) pushDrain(data []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.drains = append(f.drains, data)
}

func (f *fakeTransport) pushAvail(data []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.avail = append(f.avail, data)
}

func (f *fakeTransport) recordedWrites() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.writes...)
}

func (f *fakeTransport) reopenCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reopens
}

func (f *fakeTransport) closeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closes
}

type pubRecord struct {
	topic   string
	payload string
	retain  bool
}

// fakePublisher records successful publishes and fails all of them while
// err is set.
type fakePublisher struct {
	mu      sync.Mutex
	records []pubRecord
	err     error
}

func (p *fakePublisher) Publish(topic string, payload []byte, retain bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.records = append(p.records, pubRecord{topic: topic, payload: string(payload), retain: retain})
	return nil
}

func (p *fakePublisher) setErr(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.err = err
}

func (p *fakePublisher) byTopic(topic string) []pubRecord {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []pubRecord
	for _, r := range p.records {
		if r.topic == topic {
			out = append(out, r)
		}
	}
	return out
}

// fakeProbe pops scripted levels and repeats the last one forever. An
// empty script reads as a constant zero.
type fakeProbe struct {
	mu     sync.Mutex
	levels []int
	err    error
}

func (p *fakeProbe) Level() (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return 0, p.err
	}
	if len(p.levels) == 0 {
		return 0, nil
	}
	v := p.levels[0]
	if len(p.levels) > 1 {
		p.levels = p.levels[1:]
	}
	return v, nil
}

type fakeIndicator struct {
	mu       sync.Mutex
	success  int
	busy     int
	notReady int
}

func (i *fakeIndicator) Success() {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.success++
}

func (i *fakeIndicator) Busy() {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.busy++
}

func (i *fakeIndicator) NotReady() {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.notReady++
}

func (i *fakeIndicator) counts() (success, busy, notReady int) {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.success, i.busy, i.notReady
}

type fakeRSSI struct {
	mu    sync.Mutex
	level int
	err   error
}

func (r *fakeRSSI) RSSI() (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.level, r.err
}
