// Package indicator flashes the status LED to report bring-up outcomes
// without a console: two slow blinks for ready, five fast ones otherwise.
package indicator

import (
	"time"

	"github.com/rs/zerolog/log"

	"github.com/cyberglitchlabs/owon-xdm-remote/internal/clock"
)

// Indicator signals bring-up outcomes to a human watching the box.
type Indicator interface {
	// Success reports the instrument came up ready.
	Success()
	// Busy reports the serial line was occupied and bring-up was skipped.
	Busy()
	// NotReady reports the instrument never identified or verified.
	NotReady()
}

// Pin is the single GPIO write an LED needs. *gpio.Line satisfies it.
type Pin interface {
	SetValue(v int) error
}

// LED drives an active-low status LED: writing 0 lights it.
type LED struct {
	pin Pin
	clk clock.Clock
}

var _ Indicator = (*LED)(nil)

func NewLED(pin Pin, clk clock.Clock) *LED {
	return &LED{pin: pin, clk: clk}
}

func (l *LED) Success() { l.blink(2, 500*time.Millisecond, 500*time.Millisecond) }
func (l *LED) Busy()    { l.blink(5, 100*time.Millisecond, 100*time.Millisecond) }

func (l *LED) NotReady() { l.blink(5, 100*time.Millisecond, 100*time.Millisecond) }

func (l *LED) blink(times int, on, off time.Duration) {
	for i := 0; i < times; i++ {
		l.set(0)
		l.clk.Sleep(on)
		l.set(1)
		l.clk.Sleep(off)
	}
}

func (l *LED) set(v int) {
	if err := l.pin.SetValue(v); err != nil {
		log.Warn().Err(err).Msg("led write failed")
	}
}

// Nop is used when no LED pin is configured.
type Nop struct{}

var _ Indicator = Nop{}

func (Nop) Success()  {}
func (Nop) Busy()     {}
func (Nop) NotReady() {}
