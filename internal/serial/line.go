package serial

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/cyberglitchlabs/owon-xdm-remote/internal/clock"
)

// pollInterval paces every read loop. The raw port's ReadTimeout matches it,
// so a single poll never blocks longer than this.
const pollInterval = 10 * time.Millisecond

const readChunkSize = 256

// Line drives an instrument that speaks CRLF-terminated ASCII over a serial
// port.
type Line struct {
	cfg  Config
	clk  clock.Clock
	port io.ReadWriteCloser
}

var _ Transport = (*Line)(nil)

// NewLine returns an unopened transport for the configured device.
func NewLine(cfg Config, clk clock.Clock) *Line {
	return &Line{cfg: cfg, clk: clk}
}

func (l *Line) Open() error {
	if l.port != nil {
		return nil
	}
	p, err := openPort(l.cfg)
	if err != nil {
		return err
	}
	l.port = p
	log.Debug().Str("device", l.cfg.Device).Int("baud", l.cfg.Baud).Msg("serial port open")
	return nil
}

func (l *Line) Reopen() error {
	if err := l.Close(); err != nil {
		log.Warn().Err(err).Msg("close before reopen failed")
	}
	return l.Open()
}

func (l *Line) Close() error {
	if l.port == nil {
		return nil
	}
	err := l.port.Close()
	l.port = nil
	if err != nil {
		return fmt.Errorf("close serial port: %w", err)
	}
	return nil
}

func (l *Line) WriteLine(cmd string) error {
	if l.port == nil {
		return ErrNotOpen
	}
	log.Debug().Str("tx", cmd).Msg("serial write")
	if _, err := l.port.Write([]byte(cmd + "\r\n")); err != nil {
		return fmt.Errorf("serial write: %w", err)
	}
	return nil
}

func (l *Line) ReadLine(timeout time.Duration) (string, error) {
	if l.port == nil {
		return "", ErrNotOpen
	}
	deadline := l.clk.Now().Add(timeout)
	var acc []byte
	for {
		chunk, err := l.readChunk()
		if err != nil {
			return "", err
		}
		acc = append(acc, chunk...)
		if i := bytes.IndexByte(acc, '\n'); i >= 0 {
			acc = acc[:i+1]
			break
		}
		if !l.clk.Now().Before(deadline) {
			break
		}
		if len(chunk) == 0 {
			l.clk.Sleep(pollInterval)
		}
	}
	line := strings.TrimSpace(string(acc))
	if line != "" {
		log.Debug().Str("rx", line).Msg("serial read")
	}
	return line, nil
}

func (l *Line) Drain(deadline time.Time) ([]byte, error) {
	if l.port == nil {
		return nil, ErrNotOpen
	}
	var acc []byte
	for l.clk.Now().Before(deadline) {
		chunk, err := l.readChunk()
		if err != nil {
			return acc, err
		}
		if len(chunk) == 0 {
			l.clk.Sleep(pollInterval)
			continue
		}
		acc = append(acc, chunk...)
	}
	if len(acc) > 0 {
		log.Debug().Int("bytes", len(acc)).Msg("serial drain")
	}
	return acc, nil
}

func (l *Line) ReadAvailable() ([]byte, error) {
	if l.port == nil {
		return nil, ErrNotOpen
	}
	return l.readChunk()
}

// readChunk runs one raw poll. A timeout that yields nothing reads as "no
// data", never as an error; tarm surfaces it as a zero-byte io.EOF.
func (l *Line) readChunk() ([]byte, error) {
	buf := make([]byte, readChunkSize)
	n, err := l.port.Read(buf)
	if n > 0 {
		return buf[:n], nil
	}
	if err == nil || errors.Is(err, io.EOF) {
		return nil, nil
	}
	return nil, fmt.Errorf("serial read: %w", err)
}
