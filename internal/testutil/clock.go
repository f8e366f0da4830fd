package testutil

import (
	"sync"
	"time"
)

// SteppingClock is a wall clock for tests that moves forward by a fixed step
// on every Next call.
//
// It stands in for time.Ticker when driving a session frame by frame: feed
// the values of Next into a frame channel and the measured deltas are exact.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type SteppingClock struct {
	mu   sync.Mutex
	now  time.Time
	step time.Duration
}

// NewSteppingClock creates a clock at start that advances by step.
func NewSteppingClock(start time.Time, step time.Duration) *SteppingClock {
	return &SteppingClock{now: start, step: step}
}

// Now returns the current time without advancing.
func (c *SteppingClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Next advances the clock by one step and returns the new time.
func (c *SteppingClock) Next() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(c.step)
	return c.now
}

// Frames returns a buffered channel holding the next n times of the clock,
// closed after the last one.
func (c *SteppingClock) Frames(n int) <-chan time.Time {
	ch := make(chan time.Time, n)
	for i := 0; i < n; i++ {
		ch <- c.Next()
	}
	close(ch)
	return ch
}
