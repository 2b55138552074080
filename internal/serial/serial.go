// Package serial owns the physical link to the instrument. The bridge
// talks CRLF-terminated ASCII lines; everything here is line- and
// deadline-oriented rather than frame-oriented.
package serial

import (
	"errors"
	"fmt"
	"io"
	"time"

	tarm "github.com/tarm/serial"
)

// ErrNotOpen is returned when a transport method runs before Open.
var ErrNotOpen = errors.New("serial port not open")

// Transport is the bridge's view of the serial link. Exactly one owner (the
// orchestrator loop) drives it; no method is safe for concurrent use.
type Transport interface {
	// Open claims the device. It is idempotent: opening an open transport
	// is a no-op.
	Open() error
	// Reopen closes and reopens the device, discarding whatever the OS had
	// buffered. Used before a fresh handshake.
	Reopen() error
	Close() error
	// WriteLine sends cmd terminated with CRLF.
	WriteLine(cmd string) error
	// ReadLine accumulates bytes until a newline or the timeout and returns
	// the decoded, trimmed line ("" when nothing arrived in time).
	ReadLine(timeout time.Duration) (string, error)
	// Drain returns every byte the instrument sends up to the wall-clock
	// deadline. The full window is always consumed; callers rely on the
	// settling behavior.
	Drain(deadline time.Time) ([]byte, error)
	// ReadAvailable runs a single short poll and returns whatever arrived.
	ReadAvailable() ([]byte, error)
}

// Config selects the device node and speed. The instrument side is fixed at
// 8 data bits, no parity, 1 stop bit.
type Config struct {
	Device string
	Baud   int
}

// openPort is the raw device factory. Tests swap it for a scripted port.
var openPort = func(cfg Config) (io.ReadWriteCloser, error) {
	p, err := tarm.OpenPort(&tarm.Config{
		Name:        cfg.Device,
		Baud:        cfg.Baud,
		ReadTimeout: pollInterval,
	})
	if err != nil {
		return nil, fmt.Errorf("open serial port %s: %w", cfg.Device, err)
	}
	return p, nil
}
