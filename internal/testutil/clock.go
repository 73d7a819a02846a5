package testutil

import (
	"sync"
	"time"
)

// FakeClock is a manually advanced wall clock for tests of time bounds.
//
// Pass its Now method to engine.WithNow. Time only moves when Advance is
// called, so timeout tests do not depend on scheduling.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type FakeClock struct {
	mu  sync.Mutex
	now time.Time
}

// Epoch is the default start time of a FakeClock.
var Epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// NewFakeClock creates a clock reading start. A zero start means Epoch.
func NewFakeClock(start time.Time) *FakeClock {
	if start.IsZero() {
		start = Epoch
	}
	return &FakeClock{now: start}
}

// Now returns the current fake time.
func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d. Negative durations are ignored:
// the clock never goes backwards.
func (c *FakeClock) Advance(d time.Duration) {
	if d <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Reset sets the clock back to start.
func (c *FakeClock) Reset(start time.Time) {
	if start.IsZero() {
		start = Epoch
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = start
}
