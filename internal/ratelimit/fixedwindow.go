package ratelimit

import (
	"context"
	"sync"
	"time"
)

// FixedWindow implements Limiter by counting requests per discrete time
// bucket. The window index is floor(now/window); a request is allowed while
// the current window's count stays at or under the limit.
//
// Fixed-window counting is chosen over sliding windows or token buckets for
// O(1) memory per window and simplicity. The accepted tradeoff is
// burstiness at window boundaries: up to 2x the limit can pass across a
// boundary. That is a documented approximation, not a bug.
//
// Stale windows are purged on every access rather than by a background
// goroutine: for every known key, all window indices older than
// current-retained are dropped. The key set itself is unbounded over time;
// a long-running deployment with many distinct clients should front this
// with an external shared store.
type FixedWindow struct {
	limit    int
	window   time.Duration
	retained int64

	mu     sync.Mutex
	counts map[string]map[int64]int

	now func() time.Time // injectable for tests
}

// Defaults for NewFixedWindow when zero values are passed.
const (
	DefaultLimit           = 100
	DefaultWindow          = time.Minute
	DefaultRetainedWindows = 5
)

// NewFixedWindow creates a fixed-window limiter allowing limit requests per
// key per window, retaining the most recent retained window indices.
// Zero arguments select the defaults (100 per minute, 5 windows retained).
func NewFixedWindow(limit int, window time.Duration, retained int) *FixedWindow {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if window <= 0 {
		window = DefaultWindow
	}
	if retained <= 0 {
		retained = DefaultRetainedWindows
	}
	return &FixedWindow{
		limit:    limit,
		window:   window,
		retained: int64(retained),
		counts:   make(map[string]map[int64]int),
		now:      time.Now,
	}
}

// Allow increments the count for key in the current window and reports
// whether the key is still within its limit. Absence of a prior record
// counts as zero; Allow never fails.
func (f *FixedWindow) Allow(_ context.Context, key string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	current := f.windowIndex()

	windows, ok := f.counts[key]
	if !ok {
		windows = make(map[int64]int)
		f.counts[key] = windows
	}
	windows[current]++

	f.purgeLocked(current)

	return windows[current] <= f.limit, nil
}

// purgeLocked drops window indices older than current-retained for every
// known key. Callers must hold f.mu.
func (f *FixedWindow) purgeLocked(current int64) {
	cutoff := current - f.retained
	for key, windows := range f.counts {
		for idx := range windows {
			if idx < cutoff {
				delete(windows, idx)
			}
		}
		if len(windows) == 0 {
			delete(f.counts, key)
		}
	}
}

func (f *FixedWindow) windowIndex() int64 {
	return f.now().Unix() / int64(f.window/time.Second)
}

// RetryAfter returns the time until the current window rolls over, for
// Retry-After headers on rejected requests.
func (f *FixedWindow) RetryAfter() time.Duration {
	now := f.now()
	secs := int64(f.window / time.Second)
	elapsed := now.Unix() % secs
	return time.Duration(secs-elapsed) * time.Second
}

// TotalRequests returns the sum of all retained window counts across all
// keys. Feeds the gateway's /stats endpoint.
func (f *FixedWindow) TotalRequests() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	total := 0
	for _, windows := range f.counts {
		for _, n := range windows {
			total += n
		}
	}
	return total
}

// ActiveClients returns the number of keys with at least one retained window.
func (f *FixedWindow) ActiveClients() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.counts)
}

// Close is a no-op; the limiter has no background work.
func (f *FixedWindow) Close() error { return nil }
