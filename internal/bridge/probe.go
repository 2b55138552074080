package bridge

import (
	"github.com/cyberglitchlabs/owon-xdm-remote/internal/serial"
)

// LevelProbe reports a level that changes while the serial line carries
// traffic. The idle-line check samples it to decide whether another master
// is already driving the instrument.
type LevelProbe interface {
	Level() (int, error)
}

// ValueReader is the single GPIO read PinProbe needs. *gpio.Line
// satisfies it.
type ValueReader interface {
	Value() (int, error)
}

// PinProbe reads an RX-sense GPIO wired to the instrument's TX line.
// A start bit pulls the idle-high line low, so any traffic shows up as a
// level change.
type PinProbe struct {
	Pin ValueReader
}

var _ LevelProbe = PinProbe{}

func (p PinProbe) Level() (int, error) { return p.Pin.Value() }

// ActivityProbe approximates the idle check without extra wiring: the
// level is a running count of bytes seen on the transport, so any traffic
// during the sampling window reads as a change.
type ActivityProbe struct {
	tr    serial.Transport
	total int
}

var _ LevelProbe = (*ActivityProbe)(nil)

func NewActivityProbe(tr serial.Transport) *ActivityProbe {
	return &ActivityProbe{tr: tr}
}

func (p *ActivityProbe) Level() (int, error) {
	data, err := p.tr.ReadAvailable()
	if err != nil {
		return 0, err
	}
	p.total += len(data)
	return p.total, nil
}
