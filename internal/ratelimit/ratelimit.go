// ABOUTME: Keyed fixed-window rate limiter for anonymous caller admission
// ABOUTME: A background goroutine periodically reclaims expired entries

package ratelimit

import (
	"sync"
	"time"
)

// cleanupInterval is how often the background goroutine sweeps expired entries.
const cleanupInterval = time.Minute

// Limiter is a fixed-window rate limiter keyed by caller identity
// (typically client IP). It holds no per-run state; a single instance
// serves all pipeline runs concurrently.
type Limiter struct {
	mu      sync.Mutex
	entries map[string]*entry
	rate    int
	window  time.Duration
	now     func() time.Time
	done    chan struct{}
	closed  bool
}

// entry tracks admission counts within the current window for one identity.
type entry struct {
	count       int
	windowStart time.Time
}

// New creates a Limiter that allows rate admissions per identity per window.
// A background goroutine periodically removes entries whose window expired;
// call Close to stop it.
func New(rate int, window time.Duration) *Limiter {
	l := &Limiter{
		entries: make(map[string]*entry),
		rate:    rate,
		window:  window,
		now:     time.Now,
		done:    make(chan struct{}),
	}
	go l.cleanup(cleanupInterval)
	return l
}

// Allow returns true if the identity has not exceeded its admission limit
// in the current window. The first call of a fresh window always succeeds
// and starts a new window.
func (l *Limiter) Allow(identity string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	e, exists := l.entries[identity]
	if !exists || now.Sub(e.windowStart) > l.window {
		l.entries[identity] = &entry{count: 1, windowStart: now}
		return true
	}
	e.count++
	return e.count <= l.rate
}

// cleanup runs in a background goroutine, periodically removing expired entries.
func (l *Limiter) cleanup(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			l.runCleanup()
		case <-l.done:
			return
		}
	}
}

// runCleanup removes entries whose window has expired.
func (l *Limiter) runCleanup() {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	for identity, e := range l.entries {
		if now.Sub(e.windowStart) > l.window {
			delete(l.entries, identity)
		}
	}
}

// Close stops the background cleanup goroutine. It is safe to call multiple times.
func (l *Limiter) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.closed {
		close(l.done)
		l.closed = true
	}
}
