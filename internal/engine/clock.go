package engine

import "sync/atomic"

// Clock counts driver ticks.
//
// Every accepted Update call on a Queue or Scheduler advances its clock by
// one, paused or not. Rejected calls (re-entrant, negative delta) do not.
// The tick number stamps trace events and lets hosts correlate frames.
//
// Thread-safety: Clock is safe for concurrent reads (atomic operations), so a
// diagnostics goroutine may read Current while the host loop ticks.
type Clock struct {
	tick atomic.Int64
}

// NewClock creates a new clock starting at tick 0.
func NewClock() *Clock {
	return &Clock{}
}

// NewClockAt creates a clock starting at a specific tick.
func NewClockAt(start int64) *Clock {
	c := &Clock{}
	c.tick.Store(start)
	return c
}

// Next advances the clock and returns the new tick.
func (c *Clock) Next() int64 {
	return c.tick.Add(1)
}

// Current returns the current tick without advancing.
func (c *Clock) Current() int64 {
	return c.tick.Load()
}
