package indicator

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/cyberglitchlabs/owon-xdm-remote/internal/clock"
)

type fakePin struct {
	writes []int
	err    error
}

func (p *fakePin) SetValue(v int) error {
	p.writes = append(p.writes, v)
	return p.err
}

func TestSuccessBlinksTwiceSlow(t *testing.T) {
	pin := &fakePin{}
	clk := clock.NewMock(time.Unix(0, 0))
	led := NewLED(pin, clk)

	start := clk.Now()
	led.Success()

	require.Equal(t, []int{0, 1, 0, 1}, pin.writes)
	require.Equal(t, 2*time.Second, clk.Now().Sub(start))
}

func TestBusyBlinksFiveFast(t *testing.T) {
	pin := &fakePin{}
	clk := clock.NewMock(time.Unix(0, 0))
	led := NewLED(pin, clk)

	start := clk.Now()
	led.Busy()

	require.Len(t, pin.writes, 10)
	require.Equal(t, time.Second, clk.Now().Sub(start))
}

func TestNotReadyMatchesBusyPattern(t *testing.T) {
	pin := &fakePin{}
	clk := clock.NewMock(time.Unix(0, 0))
	led := NewLED(pin, clk)

	led.NotReady()
	require.Len(t, pin.writes, 10)
}

func TestBlinkSurvivesPinErrors(t *testing.T) {
	pin := &fakePin{err: errors.New("pin stuck")}
	clk := clock.NewMock(time.Unix(0, 0))
	led := NewLED(pin, clk)

	require.NotPanics(t, led.Success)
	require.Len(t, pin.writes, 4)
}
