package signal

import (
	"sync"
	"time"
)

// RateLimiter caps signaling messages per connection handle over a
// sliding window. Excess messages are dropped, never fatal.
type RateLimiter struct {
	mu       sync.Mutex
	history  map[string][]time.Time
	limit    int
	interval time.Duration
}

func NewRateLimiter(limit int, interval time.Duration) *RateLimiter {
	return &RateLimiter{
		history:  make(map[string][]time.Time),
		limit:    limit,
		interval: interval,
	}
}

func (rl *RateLimiter) Allow(handle string) bool {
	if rl.limit <= 0 {
		return true
	}
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	windowStart := now.Add(-rl.interval)

	attempts := rl.history[handle]
	fresh := make([]time.Time, 0, len(attempts))
	for _, t := range attempts {
		if t.After(windowStart) {
			fresh = append(fresh, t)
		}
	}

	if len(fresh) >= rl.limit {
		rl.history[handle] = fresh
		return false
	}

	fresh = append(fresh, now)
	rl.history[handle] = fresh
	return true
}

// Forget drops a handle's history once its connection goes away.
func (rl *RateLimiter) Forget(handle string) {
	rl.mu.Lock()
	delete(rl.history, handle)
	rl.mu.Unlock()
}
