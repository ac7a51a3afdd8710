// Package simclock keeps simulated time for the tick scheduler.
package simclock

import (
	"sync"
	"time"
)

// Clock is the simulated time source the engine stamps events with and
// advances once per scheduler tick. *SimClock implements it.
type Clock interface {
	Now() time.Time
	Step() time.Duration
	Advance() (int64, time.Time)
	AdvanceTo(t time.Time)
}

// SimClock advances by a fixed step per tick. Safe for concurrent use.
type SimClock struct {
	mu      sync.RWMutex
	step    time.Duration
	current time.Time
	ticks   int64
}

func New(start time.Time, step time.Duration) *SimClock {
	return &SimClock{step: step, current: start}
}

func (c *SimClock) Now() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.current
}

// Step is the simulated duration of one tick.
func (c *SimClock) Step() time.Duration {
	return c.step
}

func (c *SimClock) Ticks() int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.ticks
}

// Advance moves time forward one step and returns the new tick number and time.
func (c *SimClock) Advance() (int64, time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ticks++
	c.current = c.current.Add(c.step)
	return c.ticks, c.current
}

// AdvanceTo jumps forward to t; earlier times are ignored. Used when state is
// restored from a store that was written further along.
func (c *SimClock) AdvanceTo(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if t.After(c.current) {
		c.current = t
	}
}
