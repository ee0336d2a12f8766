// Package ratelimit implements per-client token bucket rate limiting for the
// job API. Job submission spins up a browser session per job, so its bucket
// is far smaller than the read-only endpoints'.
package ratelimit

import (
	"sync"
	"time"
)

// TokenBucket tracks request allowance for a single client/endpoint pair.
type TokenBucket struct {
	mu         sync.Mutex
	tokens     float64
	capacity   float64
	refillRate float64 // tokens per second
	lastRefill time.Time
}

// NewTokenBucket creates a full bucket with the given capacity and refill rate.
func NewTokenBucket(capacity, refillRate float64) *TokenBucket {
	return &TokenBucket{
		tokens:     capacity,
		capacity:   capacity,
		refillRate: refillRate,
		lastRefill: time.Now(),
	}
}

// Allow consumes one token if available and reports whether the request may
// proceed, along with the tokens remaining and when the bucket is full again.
func (b *TokenBucket) Allow() (allowed bool, remaining int, resetAt time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := time.Now()
	elapsed := now.Sub(b.lastRefill).Seconds()
	b.tokens = min(b.capacity, b.tokens+elapsed*b.refillRate)
	b.lastRefill = now

	if b.tokens >= 1 {
		b.tokens--
		allowed = true
	}

	secondsToFull := (b.capacity - b.tokens) / b.refillRate
	return allowed, int(b.tokens), now.Add(time.Duration(secondsToFull * float64(time.Second)))
}

// Limiter manages token buckets keyed by client and endpoint.
type Limiter struct {
	mu      sync.RWMutex
	buckets map[string]*TokenBucket
	config  Config
	stop    chan struct{}
}

// NewLimiter creates a Limiter and starts its idle-bucket cleanup loop.
func NewLimiter(config Config) *Limiter {
	l := &Limiter{
		buckets: make(map[string]*TokenBucket),
		config:  config,
		stop:    make(chan struct{}),
	}
	go l.cleanupLoop()
	return l
}

// Check evaluates a request against the endpoint's bucket for the client.
// Unlimited endpoints always pass with a zero limit.
func (l *Limiter) Check(clientID, path, method string) Decision {
	endpoint := MatchEndpoint(l.config.Endpoints, path, method)
	if endpoint == nil || endpoint.Unlimited {
		return Decision{Allowed: true, Unlimited: true}
	}

	key := clientID + ":" + endpoint.Path + ":" + endpoint.Method
	bucket := l.getBucket(key, endpoint)

	allowed, remaining, resetAt := bucket.Allow()
	return Decision{
		Allowed:   allowed,
		Limit:     int(endpoint.Capacity),
		Remaining: remaining,
		ResetAt:   resetAt,
	}
}

// Decision is the outcome of a rate limit check.
type Decision struct {
	Allowed   bool
	Unlimited bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// RetryAfter returns the seconds a denied client should wait, at least 1.
func (d Decision) RetryAfter() int {
	secs := int(time.Until(d.ResetAt).Seconds())
	if secs < 1 {
		secs = 1
	}
	return secs
}

func (l *Limiter) getBucket(key string, endpoint *EndpointConfig) *TokenBucket {
	l.mu.RLock()
	bucket, ok := l.buckets[key]
	l.mu.RUnlock()
	if ok {
		return bucket
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	// Re-check: another goroutine may have created it between locks.
	if bucket, ok = l.buckets[key]; ok {
		return bucket
	}
	bucket = NewTokenBucket(endpoint.Capacity, endpoint.RefillRate)
	l.buckets[key] = bucket
	return bucket
}

// Close stops the cleanup loop.
func (l *Limiter) Close() {
	close(l.stop)
}

// cleanupLoop drops buckets that have been full (idle) for a while so the
// map does not grow unboundedly with one-off clients.
func (l *Limiter) cleanupLoop() {
	ticker := time.NewTicker(l.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-l.stop:
			return
		case <-ticker.C:
			l.cleanup()
		}
	}
}

func (l *Limiter) cleanup() {
	l.mu.Lock()
	defer l.mu.Unlock()

	for key, bucket := range l.buckets {
		bucket.mu.Lock()
		idle := bucket.tokens >= bucket.capacity &&
			time.Since(bucket.lastRefill) > l.config.CleanupInterval
		bucket.mu.Unlock()
		if idle {
			delete(l.buckets, key)
		}
	}
}
