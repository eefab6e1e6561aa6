package session

import (
	"sync"
	"time"
)

// -----------------------------------------------------------------------------
// SimClock is the simulated-time reference owned by SessionData. The
// coordinator is the only writer; all other stages read. There is no global
// clock singleton: the coordinator advances or replaces this value as the
// multi-day loop progresses.
// -----------------------------------------------------------------------------

type SimClock struct {
	mu      sync.RWMutex
	current time.Time
}

// -----------------------------------------------------------------------------

func NewSimClock(start time.Time) *SimClock {
	return &SimClock{current: start}
}

// -----------------------------------------------------------------------------

// Now returns the current simulated time.
func (c *SimClock) Now() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.current
}

// -----------------------------------------------------------------------------

// Set jumps simulated time to t (day rollover, data-driven jumps).
func (c *SimClock) Set(t time.Time) {
	c.mu.Lock()
	c.current = t
	c.mu.Unlock()
}

// -----------------------------------------------------------------------------

// Advance moves simulated time forward by d and returns the new value.
func (c *SimClock) Advance(d time.Duration) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = c.current.Add(d)
	return c.current
}
