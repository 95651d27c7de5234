package auth

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// RateLimiter provides rate limiting functionality
type RateLimiter interface {
	Allow(ctx context.Context, key string) (bool, error)
	Reset(ctx context.Context, key string) error
}

// bucketSweepInterval gates how often Allow scans for abandoned buckets.
const bucketSweepInterval = 5 * time.Minute

// bucketIdleTTL is how long a bucket may sit untouched before a sweep
// drops it.
const bucketIdleTTL = time.Hour

// TokenBucketLimiter implements token bucket rate limiting. Each key gets
// a bucket of burst tokens that refills one token per refill interval, so
// short bursts pass and sustained flooding drains to the refill rate.
type TokenBucketLimiter struct {
	mu          sync.Mutex
	buckets     map[string]*bucket
	burst       int
	refillEvery time.Duration
	lastSweep   time.Time

	now func() time.Time
}

type bucket struct {
	tokens     int
	lastRefill time.Time
}

// NewTokenBucketLimiter creates a token bucket limiter allowing bursts of
// burst requests, refilling one token every refillEvery.
func NewTokenBucketLimiter(burst int, refillEvery time.Duration) *TokenBucketLimiter {
	return &TokenBucketLimiter{
		buckets:     make(map[string]*bucket),
		burst:       burst,
		refillEvery: refillEvery,
		now:         time.Now,
	}
}

// Allow takes one token from the key's bucket, refilling first based on
// elapsed time. It returns false when the bucket is empty.
func (l *TokenBucketLimiter) Allow(ctx context.Context, key string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.maybeSweep(now)

	b, exists := l.buckets[key]
	if !exists {
		b = &bucket{tokens: l.burst, lastRefill: now}
		l.buckets[key] = b
	}

	refill := int(now.Sub(b.lastRefill) / l.refillEvery)
	if refill > 0 {
		b.tokens += refill
		if b.tokens > l.burst {
			b.tokens = l.burst
		}
		b.lastRefill = now
	}

	if b.tokens <= 0 {
		return false, nil
	}
	b.tokens--
	return true, nil
}

// Reset resets the rate limit for a key
func (l *TokenBucketLimiter) Reset(ctx context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	delete(l.buckets, key)
	return nil
}

// maybeSweep drops buckets idle past the TTL. Gated so the scan cost is
// amortized across many Allow calls. Caller holds the mutex.
func (l *TokenBucketLimiter) maybeSweep(now time.Time) {
	if now.Sub(l.lastSweep) < bucketSweepInterval {
		return
	}
	l.lastSweep = now

	for key, b := range l.buckets {
		if now.Sub(b.lastRefill) > bucketIdleTTL {
			delete(l.buckets, key)
		}
	}
}

// IPRateLimiter wraps a rate limiter for IP-based limiting. IP flood
// traffic is burst-shaped, so it rides the token bucket.
type IPRateLimiter struct {
	limiter RateLimiter
}

// NewIPRateLimiter creates a new IP-based rate limiter
func NewIPRateLimiter(requestsPerMinute int) *IPRateLimiter {
	refill := time.Minute
	if requestsPerMinute > 0 {
		refill = time.Minute / time.Duration(requestsPerMinute)
	}
	return &IPRateLimiter{
		limiter: NewTokenBucketLimiter(requestsPerMinute, refill),
	}
}

// Allow checks if a request from an IP is allowed
func (l *IPRateLimiter) Allow(ctx context.Context, ip string) (bool, error) {
	return l.limiter.Allow(ctx, fmt.Sprintf("ip:%s", ip))
}
