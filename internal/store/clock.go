package store

import (
	"sync"
	"time"
)

// Clock hands out strictly increasing UTC timestamps at a fixed resolution.
type Clock struct {
	mu         sync.Mutex
	last       time.Time
	resolution time.Duration
	now        func() time.Time
}

// NewClock returns a Clock truncating to resolution. Backends storing milliseconds pass time.Millisecond.
func NewClock(resolution time.Duration) *Clock {
	if resolution <= 0 {
		resolution = time.Nanosecond
	}
	return &Clock{resolution: resolution, now: time.Now}
}

// WithSource replaces the wall clock, for tests.
func (c *Clock) WithSource(now func() time.Time) *Clock {
	c.now = now
	return c
}

// Now returns a timestamp later than every previous one from c.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.now().UTC().Truncate(c.resolution)
	if !t.After(c.last) {
		t = c.last.Add(c.resolution)
	}
	c.last = t
	return t
}
