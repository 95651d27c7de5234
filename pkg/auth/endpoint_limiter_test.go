package auth

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock drives the limiter deterministically in tests.
type fakeClock struct {
	current time.Time
}

func (c *fakeClock) now() time.Time {
	return c.current
}

func (c *fakeClock) advance(d time.Duration) {
	c.current = c.current.Add(d)
}

func newTestLimiter(limit int, window time.Duration) (*EndpointRateLimiter, *fakeClock) {
	clock := &fakeClock{current: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	limiter := NewEndpointRateLimiter(limit, window)
	limiter.now = clock.now
	return limiter, clock
}

func TestEndpointRateLimiter_QuotaEnforced(t *testing.T) {
	limiter, clock := newTestLimiter(5, 60*time.Second)

	for i := 0; i < 5; i++ {
		assert.True(t, limiter.Check("chat", "t+1.2.3.4"), "request %d should be allowed", i+1)
	}

	clock.advance(1 * time.Second)
	assert.False(t, limiter.Check("chat", "t+1.2.3.4"), "6th request within window should be rejected")
}

func TestEndpointRateLimiter_WindowReset(t *testing.T) {
	limiter, clock := newTestLimiter(5, 60*time.Second)

	for i := 0; i < 5; i++ {
		require.True(t, limiter.Check("chat", "t+1.2.3.4"))
	}
	clock.advance(1 * time.Second)
	require.False(t, limiter.Check("chat", "t+1.2.3.4"))

	// 61s after the burst the oldest requests have left the window
	clock.advance(60 * time.Second)
	assert.True(t, limiter.Check("chat", "t+1.2.3.4"))
}

func TestEndpointRateLimiter_EndpointIsolation(t *testing.T) {
	limiter, _ := newTestLimiter(3, time.Minute)

	for i := 0; i < 3; i++ {
		require.True(t, limiter.Check("chat", "user-a"))
	}
	require.False(t, limiter.Check("chat", "user-a"))

	// Exhausting /chat never blocks /chat/stream for the same identifier
	assert.True(t, limiter.Check("chat-stream", "user-a"))
}

func TestEndpointRateLimiter_IdentifierIsolation(t *testing.T) {
	limiter, _ := newTestLimiter(3, time.Minute)

	for i := 0; i < 3; i++ {
		require.True(t, limiter.Check("chat", "user-a"))
	}
	require.False(t, limiter.Check("chat", "user-a"))

	assert.True(t, limiter.Check("chat", "user-b"))
}

func TestEndpointRateLimiter_RejectionsNotRecorded(t *testing.T) {
	limiter, clock := newTestLimiter(2, time.Minute)

	require.True(t, limiter.Check("chat", "x"))
	require.True(t, limiter.Check("chat", "x"))

	// Hammering while limited must not extend the window
	for i := 0; i < 10; i++ {
		clock.advance(time.Second)
		require.False(t, limiter.Check("chat", "x"))
	}

	clock.advance(50 * time.Second) // 62s past the allowed requests
	assert.True(t, limiter.Check("chat", "x"))
}

func TestEndpointRateLimiter_CleanupRemovesOnlyStaleEntries(t *testing.T) {
	limiter, clock := newTestLimiter(5, time.Minute)

	require.True(t, limiter.Check("chat", "stale"))
	clock.advance(4 * time.Minute)
	require.True(t, limiter.Check("chat", "fresh"))

	// Force the sweep on the next check
	clock.advance(2 * time.Minute)
	require.True(t, limiter.Check("chat", "trigger"))

	limiter.mu.Lock()
	defer limiter.mu.Unlock()
	assert.NotContains(t, limiter.entries, "chat#stale", "entry with no recent activity should be swept")
	// "fresh" is 2m old here, also outside the 1m window, so it is swept too;
	// "trigger" was recorded during the sweeping check and survives.
	assert.Contains(t, limiter.entries, "chat#trigger")
}

func TestEndpointRateLimiter_CleanupKeepsActiveEntries(t *testing.T) {
	limiter, clock := newTestLimiter(5, time.Minute)

	require.True(t, limiter.Check("chat", "active"))
	clock.advance(30 * time.Second)
	require.True(t, limiter.Check("chat", "active"))

	// Sweep runs; "active" has a timestamp inside the window and survives
	clock.advance(5 * time.Minute)
	require.True(t, limiter.Check("chat", "active"))

	limiter.mu.Lock()
	defer limiter.mu.Unlock()
	assert.Contains(t, limiter.entries, "chat#active")
}

func TestEndpointRateLimiter_CleanupIsGated(t *testing.T) {
	limiter, clock := newTestLimiter(5, time.Minute)
	limiter.cleanupInterval = 10 * time.Minute

	require.True(t, limiter.Check("chat", "old"))

	// Entry is stale but the sweep interval has not elapsed since the
	// initial sweep, so it lingers until the next gated cleanup.
	clock.advance(5 * time.Minute)
	require.True(t, limiter.Check("chat", "new"))

	limiter.mu.Lock()
	_, present := limiter.entries["chat#old"]
	limiter.mu.Unlock()
	assert.True(t, present)

	clock.advance(6 * time.Minute)
	require.True(t, limiter.Check("chat", "new"))

	limiter.mu.Lock()
	defer limiter.mu.Unlock()
	assert.NotContains(t, limiter.entries, "chat#old")
}

func TestEndpointRateLimiter_ManyIdentifiers(t *testing.T) {
	limiter, _ := newTestLimiter(1, time.Minute)

	for i := 0; i < 100; i++ {
		id := fmt.Sprintf("user-%d", i)
		assert.True(t, limiter.Check("chat", id))
		assert.False(t, limiter.Check("chat", id))
	}
}
