package sched

import "time"

// Clock supplies the scheduler's notion of "now". The game loop uses
// RealClock; tests drive a ManualClock.
type Clock interface {
	Now() time.Time
}

// RealClock reads the monotonic wall clock.
type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now() }

// ManualClock only moves when told to. Not safe for concurrent use.
type ManualClock struct {
	now time.Time
}

func NewManualClock(start time.Time) *ManualClock {
	return &ManualClock{now: start}
}

func (c *ManualClock) Now() time.Time { return c.now }

// Add moves the clock forward by d.
func (c *ManualClock) Add(d time.Duration) {
	c.now = c.now.Add(d)
}
