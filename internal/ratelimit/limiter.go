// Package ratelimit provides a keyed fixed-window rate limiter.
//
// The window is fixed, not sliding: the counter resets at window boundaries,
// so bursts straddling a boundary are accepted. Callers needing strict
// smoothing should compose multiple windows.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Result reports the outcome of a limiter check, carrying the data needed to
// populate rate-limiting HTTP headers.
type Result struct {
	Allowed   bool
	Remaining int
	Reset     time.Duration
}

type entry struct {
	count   int
	resetAt time.Time
}

// Limiter counts hits per key within a fixed window. Stale entries are
// overwritten lazily on next access and swept periodically so long-lived
// processes stay bounded by the set of active keys.
type Limiter struct {
	mu      sync.Mutex
	entries map[string]entry

	// Clock is injectable for tests; defaults to time.Now.
	Clock func() time.Time
}

// New returns a ready-to-use limiter.
func New() *Limiter {
	return &Limiter{entries: make(map[string]entry)}
}

func (l *Limiter) now() time.Time {
	if l.Clock != nil {
		return l.Clock()
	}
	return time.Now()
}

// Allow records a hit for key and reports whether it fits within limit hits
// per window. The rejected path does not mutate the entry.
func (l *Limiter) Allow(key string, limit int, window time.Duration) Result {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	e, ok := l.entries[key]
	if !ok || now.After(e.resetAt) {
		l.entries[key] = entry{count: 1, resetAt: now.Add(window)}
		return Result{Allowed: true, Remaining: limit - 1, Reset: window}
	}

	if e.count < limit {
		e.count++
		l.entries[key] = e
		return Result{Allowed: true, Remaining: limit - e.count, Reset: e.resetAt.Sub(now)}
	}

	return Result{Allowed: false, Remaining: 0, Reset: e.resetAt.Sub(now)}
}

// StartEviction runs a background sweep that drops entries whose window has
// passed. It returns when ctx is done. Pass interval 0 to use a default.
func (l *Limiter) StartEviction(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				l.evictExpired()
			}
		}
	}()
}

func (l *Limiter) evictExpired() {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	for key, e := range l.entries {
		if now.After(e.resetAt) {
			delete(l.entries, key)
		}
	}
}

// Len reports the number of tracked keys, expired or not.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
