// Package ratelimit bounds request rates per client key with a fixed window
// counter. The in-memory limiter serves a single instance; the Redis limiter
// shares counters across instances.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

const sweepInterval = 5 * time.Minute

// Limiter counts requests per key within a fixed window.
type Limiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) Decision
	Close()
}

// Decision is the outcome of one Allow call.
type Decision struct {
	Allowed   bool
	Count     int
	WindowEnd time.Time
}

// Remaining is how many more requests fit in the current window.
func (d Decision) Remaining(limit int) int {
	if r := limit - d.Count; r > 0 {
		return r
	}
	return 0
}

type memoryLimiter struct {
	mu      sync.Mutex
	entries map[string]window
	stopCh  chan struct{}
	once    sync.Once

	now func() time.Time
}

type window struct {
	count int
	end   time.Time
}

// NewMemory returns an in-process limiter. Expired windows are swept in the
// background until Close.
func NewMemory() Limiter {
	l := newMemory(time.Now)
	go l.sweepLoop()
	return l
}

func newMemory(now func() time.Time) *memoryLimiter {
	return &memoryLimiter{
		entries: make(map[string]window),
		stopCh:  make(chan struct{}),
		now:     now,
	}
}

func (l *memoryLimiter) Allow(_ context.Context, key string, limit int, win time.Duration) Decision {
	if limit <= 0 {
		return Decision{Allowed: true}
	}
	if win <= 0 {
		win = time.Minute
	}
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	w, ok := l.entries[key]
	if !ok || !now.Before(w.end) {
		w = window{count: 1, end: now.Add(win)}
		l.entries[key] = w
		return Decision{Allowed: true, Count: w.count, WindowEnd: w.end}
	}
	if w.count >= limit {
		return Decision{Allowed: false, Count: w.count, WindowEnd: w.end}
	}
	w.count++
	l.entries[key] = w
	return Decision{Allowed: true, Count: w.count, WindowEnd: w.end}
}

func (l *memoryLimiter) sweepLoop() {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			l.sweep(l.now())
		case <-l.stopCh:
			return
		}
	}
}

func (l *memoryLimiter) sweep(now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for key, w := range l.entries {
		if !now.Before(w.end) {
			delete(l.entries, key)
		}
	}
}

func (l *memoryLimiter) Close() {
	l.once.Do(func() { close(l.stopCh) })
}
