// Package ratelimit provides per-client request rate limiting.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Decision is the outcome of a rate limit check.
type Decision struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// RetryAfter returns how long the caller should wait before retrying.
func (d Decision) RetryAfter(now time.Time) time.Duration {
	if d.ResetAt.After(now) {
		return d.ResetAt.Sub(now)
	}
	return 0
}

// Limiter decides whether a request identified by key may proceed.
type Limiter interface {
	Allow(ctx context.Context, key string) Decision
	Name() string
}

type bucket struct {
	tokens     float64
	lastRefill time.Time
}

// MemoryLimiter implements a per-key token bucket held in process memory.
// Capacity is the request limit and the bucket refills fully once per window.
type MemoryLimiter struct {
	mu         sync.Mutex
	buckets    map[string]*bucket
	maxTokens  float64
	refillRate float64 // tokens per second
	window     time.Duration
	now        func() time.Time
	lastSweep  time.Time
}

// NewMemoryLimiter creates a limiter allowing limit requests per window per key.
func NewMemoryLimiter(limit int, window time.Duration) *MemoryLimiter {
	if window <= 0 {
		window = time.Minute
	}
	return &MemoryLimiter{
		buckets:    make(map[string]*bucket),
		maxTokens:  float64(limit),
		refillRate: float64(limit) / window.Seconds(),
		window:     window,
		now:        time.Now,
	}
}

// WithClock replaces the time source.
func (rl *MemoryLimiter) WithClock(now func() time.Time) *MemoryLimiter {
	rl.now = now
	rl.lastSweep = now()
	return rl
}

// Name returns the limiter store name.
func (rl *MemoryLimiter) Name() string {
	return "memory"
}

// Allow checks if a request is allowed.
func (rl *MemoryLimiter) Allow(_ context.Context, key string) Decision {
	limit := int(rl.maxTokens)
	if limit <= 0 {
		return Decision{Allowed: true}
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	rl.sweep(now)

	b, ok := rl.buckets[key]
	if !ok {
		b = &bucket{tokens: rl.maxTokens, lastRefill: now}
		rl.buckets[key] = b
	}

	elapsed := now.Sub(b.lastRefill).Seconds()
	b.tokens += elapsed * rl.refillRate
	if b.tokens > rl.maxTokens {
		b.tokens = rl.maxTokens
	}
	b.lastRefill = now

	if b.tokens >= 1 {
		b.tokens--
		return Decision{
			Allowed:   true,
			Limit:     limit,
			Remaining: int(b.tokens),
			ResetAt:   now.Add(rl.untilFull(b)),
		}
	}

	wait := time.Duration((1 - b.tokens) / rl.refillRate * float64(time.Second))
	return Decision{Allowed: false, Limit: limit, ResetAt: now.Add(wait)}
}

func (rl *MemoryLimiter) untilFull(b *bucket) time.Duration {
	missing := rl.maxTokens - b.tokens
	return time.Duration(missing / rl.refillRate * float64(time.Second))
}

// sweep drops buckets idle long enough to be full again. Callers hold rl.mu.
func (rl *MemoryLimiter) sweep(now time.Time) {
	if now.Sub(rl.lastSweep) < rl.window {
		return
	}
	rl.lastSweep = now
	for key, b := range rl.buckets {
		if now.Sub(b.lastRefill) >= rl.window {
			delete(rl.buckets, key)
		}
	}
}

// Len returns the number of tracked keys.
func (rl *MemoryLimiter) Len() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.buckets)
}
