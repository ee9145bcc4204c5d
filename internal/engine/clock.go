package engine

import "sync/atomic"

// Clock is the monotonic logical clock that stamps processed messages.
//
// Journal records are ordered by this seq, never by wall time.
//
// Thread-safety: Clock is safe for concurrent use (atomic operations).
// Only the dispatch loop calls Next in practice.
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a new clock starting at 0.
func NewClock() *Clock {
	return &Clock{}
}

// NewClockAt creates a clock resuming after start, so a restarted device
// keeps appending to the same journal without seq collisions.
func NewClockAt(start int64) *Clock {
	c := &Clock{}
	c.seq.Store(start)
	return c
}

// Next returns the next sequence number and increments the clock.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the current sequence number without incrementing.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}
