package server

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func TestRateLimiterBurstThenRefill(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	rl := newRateLimiterWithClock(3, time.Second, clock.Now)

	for i := 0; i < 3; i++ {
		assert.True(t, rl.allow(), "token %d", i)
	}
	assert.False(t, rl.allow())

	clock.Advance(250 * time.Millisecond)
	assert.False(t, rl.allow(), "a quarter second is not a full token")

	clock.Advance(time.Second/3 - 250*time.Millisecond + 1)
	assert.True(t, rl.allow())
	assert.False(t, rl.allow())

	clock.Advance(time.Hour)
	for i := 0; i < 3; i++ {
		assert.True(t, rl.allow(), "refilled token %d", i)
	}
	assert.False(t, rl.allow(), "bucket never exceeds its capacity")
}

func TestRateLimiterInvalidSettings(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0)}
	rl := newRateLimiterWithClock(0, 0, clock.Now)

	assert.True(t, rl.allow())
	assert.False(t, rl.allow())

	clock.Advance(time.Second)
	assert.True(t, rl.allow())
}

func TestRateLimiterClockGoingBackwards(t *testing.T) {
	clock := &fakeClock{now: time.Unix(100, 0)}
	rl := newRateLimiterWithClock(1, time.Second, clock.Now)

	assert.True(t, rl.allow())
	clock.Advance(-time.Minute)
	assert.False(t, rl.allow())
}

func TestRateLimiterExactRefill(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0)}
	rl := newRateLimiterWithClock(3, 3*time.Second, clock.Now)
	for i := 0; i < 3; i++ {
		assert.True(t, rl.allow())
	}

	// Ten small steps add up to exactly one token.
	for i := 0; i < 10; i++ {
		clock.Advance(100 * time.Millisecond)
	}
	assert.True(t, rl.allow())
	assert.False(t, rl.allow())

	clock.Advance(time.Second - time.Nanosecond)
	assert.False(t, rl.allow())
	clock.Advance(time.Nanosecond)
	assert.True(t, rl.allow())
}
