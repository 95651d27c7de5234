package auth

import (
	"sync"
	"time"
)

// EndpointRateLimiter guards sensitive endpoints with per-(endpoint,
// identifier) sliding windows. State lives in process memory and survives
// only across warm reuses of the same execution environment, so the limit
// is best-effort rather than a global guarantee.
type EndpointRateLimiter struct {
	mu      sync.Mutex
	entries map[string][]time.Time

	limit  int
	window time.Duration

	// A full sweep of stale entries runs at most once per cleanupInterval,
	// bounding memory growth from abandoned identifiers.
	cleanupInterval time.Duration
	lastCleanup     time.Time

	now func() time.Time
}

// NewEndpointRateLimiter creates a limiter allowing limit requests per
// window for each (endpoint, identifier) pair.
func NewEndpointRateLimiter(limit int, window time.Duration) *EndpointRateLimiter {
	return &EndpointRateLimiter{
		entries:         make(map[string][]time.Time),
		limit:           limit,
		window:          window,
		cleanupInterval: 5 * time.Minute,
		now:             time.Now,
	}
}

// Check records a request attempt and reports whether it is allowed.
// Counters are isolated per endpoint and per identifier: exhausting one
// endpoint's quota never affects another endpoint, and one identifier
// never affects another.
func (l *EndpointRateLimiter) Check(endpoint, identifier string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.maybeCleanup(now)

	key := endpoint + "#" + identifier
	windowStart := now.Add(-l.window)

	// Lazily drop timestamps that have slid out of the window. Once the
	// oldest recorded request leaves the window the identifier is allowed
	// again.
	valid := l.entries[key][:0]
	for _, ts := range l.entries[key] {
		if ts.After(windowStart) {
			valid = append(valid, ts)
		}
	}

	if len(valid) >= l.limit {
		l.entries[key] = valid
		return false
	}

	l.entries[key] = append(valid, now)
	return true
}

// Reset clears the recorded requests for an (endpoint, identifier) pair.
func (l *EndpointRateLimiter) Reset(endpoint, identifier string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	delete(l.entries, endpoint+"#"+identifier)
}

// maybeCleanup removes entries whose newest timestamp is older than the
// window. Gated by lastCleanup so the sweep cost is amortized. Caller
// holds the lock.
func (l *EndpointRateLimiter) maybeCleanup(now time.Time) {
	if now.Sub(l.lastCleanup) < l.cleanupInterval {
		return
	}
	l.lastCleanup = now

	windowStart := now.Add(-l.window)
	for key, timestamps := range l.entries {
		if len(timestamps) == 0 || !timestamps[len(timestamps)-1].After(windowStart) {
			delete(l.entries, key)
		}
	}
}
