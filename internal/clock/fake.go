package clock

import "time"

// FakeClock pins "now" so lookback windows, weekly buckets, and milestone
// due dates are deterministic in tests.
type FakeClock struct {
	now time.Time
}

func NewFakeClock(t time.Time) *FakeClock {
	return &FakeClock{now: t.UTC()}
}

func (c *FakeClock) Now() time.Time {
	return c.now
}

// Advance moves the fake time forward, e.g. to step a company across a
// milestone due date.
func (c *FakeClock) Advance(d time.Duration) {
	c.now = c.now.Add(d)
}
