package ratelimit

import (
	"context"
	"sync"
	"time"
)

type window struct {
	count   int
	resetAt time.Time
}

// Memory is a fixed-window in-process limiter. The window starts at the first
// request after expiry and resets the count.
type Memory struct {
	mu      sync.Mutex
	windows map[string]*window
	limit   int
	per     time.Duration
	now     func() time.Time
	sweepAt time.Time
}

// NewMemory builds a limiter allowing limit requests per window.
func NewMemory(limit int, per time.Duration) *Memory {
	return &Memory{
		windows: make(map[string]*window),
		limit:   limit,
		per:     per,
		now:     time.Now,
	}
}

// Allow implements Limiter.
func (m *Memory) Allow(_ context.Context, ownerID string) (Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	m.sweep(now)
	w, ok := m.windows[ownerID]
	if !ok || now.After(w.resetAt) {
		w = &window{count: 0, resetAt: now.Add(m.per)}
		m.windows[ownerID] = w
	}
	if w.count >= m.limit {
		return Result{Allowed: false, Remaining: 0, ResetAt: w.resetAt}, nil
	}
	w.count++
	return Result{Allowed: true, Remaining: m.limit - w.count, ResetAt: w.resetAt}, nil
}

// sweep evicts expired windows at most once per window duration so the map
// does not grow with every owner ever seen. Callers hold m.mu.
func (m *Memory) sweep(now time.Time) {
	if now.Before(m.sweepAt) {
		return
	}
	m.sweepAt = now.Add(m.per)
	for owner, w := range m.windows {
		if now.After(w.resetAt) {
			delete(m.windows, owner)
		}
	}
}

var _ Limiter = (*Memory)(nil)
