package ratelimit

import (
	"context"
	"sync"
	"time"
)

// counter tracks requests within the current fixed window.
type counter struct {
	count    int
	resetsAt time.Time
}

// MemoryLimiter is a process-local fixed-window limiter. State is not
// shared across instances: a horizontally scaled deployment gives each
// instance its own budget. Use RedisLimiter when the limit must hold
// fleet-wide.
type MemoryLimiter struct {
	mu       sync.Mutex
	counters map[string]*counter
	limits   Limits
	now      func() time.Time

	lastSweep     time.Time
	sweepInterval time.Duration
}

// NewMemoryLimiter creates a process-local limiter with the given budgets.
func NewMemoryLimiter(limits Limits) *MemoryLimiter {
	return &MemoryLimiter{
		counters:      make(map[string]*counter),
		limits:        limits,
		now:           time.Now,
		sweepInterval: time.Minute,
	}
}

// Check increments the caller's window counter and reports whether the
// request may proceed. Once the budget is spent the decision carries the
// time remaining until the window resets.
func (m *MemoryLimiter) Check(_ context.Context, userID string, class Class) (Decision, error) {
	limit := m.limits.forClass(class)
	key := userID + ":" + string(class)

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	m.maybeSweep(now)

	c, ok := m.counters[key]
	if !ok || !now.Before(c.resetsAt) {
		// First request in a new window.
		m.counters[key] = &counter{count: 1, resetsAt: now.Add(limit.Window)}
		return Decision{Allowed: true}, nil
	}

	if c.count >= limit.Max {
		return Decision{Allowed: false, RetryAfter: c.resetsAt.Sub(now)}, nil
	}

	c.count++
	return Decision{Allowed: true}, nil
}

// maybeSweep purges expired windows. Runs lazily on the request path so
// an idle limiter holds no timers; memory stays bounded by active users.
func (m *MemoryLimiter) maybeSweep(now time.Time) {
	if now.Sub(m.lastSweep) < m.sweepInterval {
		return
	}
	m.lastSweep = now
	for key, c := range m.counters {
		if !now.Before(c.resetsAt) {
			delete(m.counters, key)
		}
	}
}
