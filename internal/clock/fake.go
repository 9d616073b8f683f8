package clock

import "time"

// FakeClock is a manually advanced clock for tests. Pinning Now keeps
// created_at, handled_at and read_at values deterministic, so tests can
// assert on ordering and cursor boundaries exactly.
type FakeClock struct {
	now time.Time
}

// NewFakeClock pins the clock at t. Times are normalized to UTC the
// same way the system clock reports them.
func NewFakeClock(t time.Time) *FakeClock {
	return &FakeClock{now: t.UTC()}
}

func (c *FakeClock) Now() time.Time {
	return c.now
}

// Advance moves the clock forward. Rows written after an Advance sort
// strictly later than rows written before it.
func (c *FakeClock) Advance(d time.Duration) {
	c.now = c.now.Add(d)
}
