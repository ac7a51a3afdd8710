package simclock

import (
	"testing"
	"time"
)

var _ Clock = (*SimClock)(nil)

func TestSimClockAdvance(t *testing.T) {
	start := time.Date(2026, 1, 1, 8, 0, 0, 0, time.UTC)
	c := New(start, 30*time.Minute)

	tick, now := c.Advance()
	if tick != 1 || !now.Equal(start.Add(30*time.Minute)) {
		t.Fatalf("Advance() = %d, %v", tick, now)
	}
	c.Advance()
	if !c.Now().Equal(start.Add(time.Hour)) || c.Ticks() != 2 {
		t.Fatalf("Now() = %v, ticks = %d", c.Now(), c.Ticks())
	}

	c.AdvanceTo(start)
	if !c.Now().Equal(start.Add(time.Hour)) {
		t.Fatalf("AdvanceTo moved the clock backwards")
	}
}
