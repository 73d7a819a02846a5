package engine

import "sync/atomic"

// Clock stamps frontier entries in insertion order. Equally complex trees
// with the same hole count pop in stamp order, so the enumeration order is
// a function of the grammar and the example alone.
//
// Thread-safety: Clock is safe for concurrent use (atomic operations).
type Clock struct {
	issued atomic.Int64
}

// NewClock creates a clock that has issued no stamps.
func NewClock() *Clock {
	return &Clock{}
}

// Reserve claims n consecutive stamps and returns the first. A batch of
// children stamped from one reservation stays contiguous even when
// several frontiers share the clock. Reserve returns 0 when n <= 0.
func (c *Clock) Reserve(n int) int64 {
	if n <= 0 {
		return 0
	}
	return c.issued.Add(int64(n)) - int64(n) + 1
}

// Issued returns the number of stamps handed out so far.
func (c *Clock) Issued() int64 {
	return c.issued.Load()
}
