// Package clock provides the uptime timebase consumed by the scheduler.
package clock

import (
	"sync"
	"time"
)

// Clock reports monotonic uptime since boot. Implementations must never go
// backwards; the scheduler derives sleep deadlines from it.
type Clock interface {
	Now() time.Duration
}

// Monotonic is the real uptime source backed by the host monotonic clock.
type Monotonic struct {
	start time.Time
}

// NewMonotonic creates a clock whose uptime starts at zero.
func NewMonotonic() *Monotonic {
	return &Monotonic{start: time.Now()}
}

// Now returns the elapsed uptime.
func (m *Monotonic) Now() time.Duration {
	return time.Since(m.start)
}

// Manual is a hand-advanced clock for deterministic scheduling tests.
type Manual struct {
	mu  sync.Mutex
	now time.Duration
}

// NewManual creates a manual clock starting at zero uptime.
func NewManual() *Manual {
	return &Manual{}
}

// Now returns the current manual uptime.
func (m *Manual) Now() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// Advance moves the clock forward by d. Negative deltas are ignored.
func (m *Manual) Advance(d time.Duration) {
	if d < 0 {
		return
	}
	m.mu.Lock()
	m.now += d
	m.mu.Unlock()
}
