package server

import (
	"sync"
	"time"
)

// rateLimiter is a token bucket guarding one connection's inbound events.
// The bucket starts full, holds at most capacity tokens and refills at
// capacity tokens per interval.
//
// Credit is kept in integer units where one token is worth interval units
// and every elapsed nanosecond earns capacity units, so refills are exact.
type rateLimiter struct {
	mu       sync.Mutex
	credit   int64
	capacity int64
	interval int64
	last     time.Time
	now      func() time.Time
}

func newRateLimiter(capacity int, interval time.Duration) *rateLimiter {
	return newRateLimiterWithClock(capacity, interval, time.Now)
}

func newRateLimiterWithClock(capacity int, interval time.Duration, now func() time.Time) *rateLimiter {
	if capacity <= 0 {
		capacity = 1
	}
	if interval <= 0 {
		interval = time.Second
	}

	return &rateLimiter{
		credit:   int64(capacity) * int64(interval),
		capacity: int64(capacity),
		interval: int64(interval),
		last:     now(),
		now:      now,
	}
}

// allow takes a token if one is available.
func (rl *rateLimiter) allow() bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.refill()
	if rl.credit < rl.interval {
		return false
	}
	rl.credit -= rl.interval
	return true
}

func (rl *rateLimiter) refill() {
	now := rl.now()
	elapsed := int64(now.Sub(rl.last))
	rl.last = now
	if elapsed <= 0 {
		return
	}
	// A full interval refills the whole bucket; clamping first keeps the
	// product from overflowing.
	elapsed = min(elapsed, rl.interval)
	rl.credit = min(rl.capacity*rl.interval, rl.credit+elapsed*rl.capacity)
}
