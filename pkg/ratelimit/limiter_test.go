package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLimiterDeniesOverCap(t *testing.T) {
	now := time.Now()
	limiter := NewLimiterWithClock(time.Minute, 100, func() time.Time { return now })

	for i := 0; i < 100; i++ {
		assert.True(t, limiter.Allow("c1"), "event %d should be allowed", i+1)
	}
	assert.False(t, limiter.Allow("c1"), "101st event must be denied")
}

func TestLimiterLazyWindowReset(t *testing.T) {
	now := time.Now()
	limiter := NewLimiterWithClock(time.Minute, 2, func() time.Time { return now })

	assert.True(t, limiter.Allow("c1"))
	assert.True(t, limiter.Allow("c1"))
	assert.False(t, limiter.Allow("c1"))

	now = now.Add(61 * time.Second)
	assert.True(t, limiter.Allow("c1"), "fresh window starts after the boundary")
	assert.True(t, limiter.Allow("c1"))
	assert.False(t, limiter.Allow("c1"))
}

func TestLimiterIsolatesConnections(t *testing.T) {
	now := time.Now()
	limiter := NewLimiterWithClock(time.Minute, 1, func() time.Time { return now })

	assert.True(t, limiter.Allow("c1"))
	assert.False(t, limiter.Allow("c1"))
	assert.True(t, limiter.Allow("c2"), "c2 unaffected by c1's denial")
}

func TestLimiterForget(t *testing.T) {
	now := time.Now()
	limiter := NewLimiterWithClock(time.Minute, 1, func() time.Time { return now })

	assert.True(t, limiter.Allow("c1"))
	assert.False(t, limiter.Allow("c1"))

	limiter.Forget("c1")
	assert.True(t, limiter.Allow("c1"), "forgotten connection starts fresh")
}
