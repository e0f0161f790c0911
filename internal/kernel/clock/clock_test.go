package clock

import (
	"testing"
	"time"
)

func TestMonotonicNeverGoesBackwards(t *testing.T) {
	c := NewMonotonic()
	prev := c.Now()
	for i := 0; i < 100; i++ {
		now := c.Now()
		if now < prev {
			t.Fatalf("uptime went backwards: %v after %v", now, prev)
		}
		prev = now
	}
}

func TestManualAdvance(t *testing.T) {
	c := NewManual()
	if got := c.Now(); got != 0 {
		t.Fatalf("fresh manual clock = %v, want 0", got)
	}
	c.Advance(10 * time.Millisecond)
	c.Advance(5 * time.Millisecond)
	if got := c.Now(); got != 15*time.Millisecond {
		t.Fatalf("after advances = %v, want 15ms", got)
	}
	c.Advance(-time.Second)
	if got := c.Now(); got != 15*time.Millisecond {
		t.Fatalf("negative advance moved the clock: %v", got)
	}
}
