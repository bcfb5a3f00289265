package sim

import "sync"

// Clock is the simulated block timestamp. Scripts move it explicitly.
type Clock struct {
	mu  sync.Mutex
	now uint32
}

func NewClock(start uint32) *Clock {
	return &Clock{now: start}
}

func (c *Clock) Now() uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *Clock) Set(now uint32) {
	c.mu.Lock()
	c.now = now
	c.mu.Unlock()
}

// Advance moves the clock forward, wrapping like the pool's uint32 timestamps.
func (c *Clock) Advance(seconds uint32) uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now += seconds
	return c.now
}
