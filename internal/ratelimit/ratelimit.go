package ratelimit

import (
	"sync"
	"time"
)

const window = 60 * time.Second

// Limiter enforces a per-identity sliding 60-second request quota.
// Windows are created on first request from an identity and never
// destroyed; the identity space (agents) is small and bounded in
// practice, so the map grows negligibly over process lifetime.
type Limiter struct {
	limit int

	mu      sync.Mutex
	windows map[string][]time.Time

	now func() time.Time
}

func New(limit int) *Limiter {
	return &Limiter{
		limit:   limit,
		windows: make(map[string][]time.Time),
		now:     time.Now,
	}
}

// Allow records a request from identity and reports whether it fits the
// quota. The lock is held only for O(1) bookkeeping per call, never
// across I/O.
func (l *Limiter) Allow(identity string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	cutoff := now.Add(-window)

	recent := l.windows[identity][:0]
	for _, t := range l.windows[identity] {
		if t.After(cutoff) {
			recent = append(recent, t)
		}
	}

	if len(recent) >= l.limit {
		l.windows[identity] = recent
		return false
	}

	l.windows[identity] = append(recent, now)
	return true
}
