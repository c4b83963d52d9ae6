package interp

import "time"

// RealClock reports wall-clock seconds since an arbitrary reference
// point, used by the CLI so `async_sleep` waits a real amount of
// time.
type RealClock struct{ start time.Time }

// NewRealClock returns a Clock anchored to the current instant.
func NewRealClock() *RealClock { return &RealClock{start: time.Now()} }

func (c *RealClock) Now() float64 { return time.Since(c.start).Seconds() }

// ManualClock is a virtual clock for tests: Now() never advances on
// its own, only via Advance, so scheduler tests are deterministic and
// instantaneous to run.
type ManualClock struct {
	now float64
}

// NewManualClock returns a ManualClock starting at t=0.
func NewManualClock() *ManualClock { return &ManualClock{} }

func (c *ManualClock) Now() float64 { return c.now }

// Advance moves the clock forward by delta seconds.
func (c *ManualClock) Advance(delta float64) {
	if delta > 0 {
		c.now += delta
	}
}
