package tools

import (
	"fmt"
	"sync"
	"time"
)

// ToolRateLimiter caps tool invocations per key (the running agent id) over
// a sliding window.
type ToolRateLimiter struct {
	mu     sync.Mutex
	calls  map[string][]time.Time
	limit  int
	window time.Duration
	now    func() time.Time
}

// NewToolRateLimiter allows limit invocations per window and key.
// Returns nil (no limiting) when limit <= 0.
func NewToolRateLimiter(limit int, window time.Duration) *ToolRateLimiter {
	if limit <= 0 {
		return nil
	}
	if window <= 0 {
		window = time.Hour
	}
	return &ToolRateLimiter{
		calls:  make(map[string][]time.Time),
		limit:  limit,
		window: window,
		now:    time.Now,
	}
}

// Allow records an invocation for key, or returns an error if the window is full.
func (rl *ToolRateLimiter) Allow(key string) error {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	recent := pruneBefore(rl.calls[key], now.Add(-rl.window))
	if len(recent) >= rl.limit {
		rl.calls[key] = recent
		return fmt.Errorf("tool rate limit exceeded: %d calls per %s", rl.limit, rl.window)
	}
	rl.calls[key] = append(recent, now)
	return nil
}

// Cleanup drops expired entries. Call periodically from long-running processes.
func (rl *ToolRateLimiter) Cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := rl.now().Add(-rl.window)
	for key, entries := range rl.calls {
		if recent := pruneBefore(entries, cutoff); len(recent) == 0 {
			delete(rl.calls, key)
		} else {
			rl.calls[key] = recent
		}
	}
}

// pruneBefore drops leading timestamps older than cutoff; entries are ascending.
func pruneBefore(entries []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(entries) && entries[i].Before(cutoff) {
		i++
	}
	return entries[i:]
}
