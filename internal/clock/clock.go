package clock

import "time"

// Clock abstracts wall time and sleeping so timing logic can run against
// simulated time in tests.
type Clock interface {
	Now() time.Time
	Sleep(d time.Duration)
}

// System reads the real clock.
type System struct{}

func (System) Now() time.Time        { return time.Now() }
func (System) Sleep(d time.Duration) { time.Sleep(d) }
