package redis

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/japbujan/rork-winking-owl-audits-api/internal/infrastructure/ratelimit"
)

const rateLimitNamespace = "ratelimit:"

// RateLimiter is a fixed-window limiter whose counters live in Redis, so the
// limit holds across replicas. Redis errors let the request through.
type RateLimiter struct {
	client  *Client
	limit   int
	window  time.Duration
	timeout time.Duration
}

// NewRateLimiter creates a limiter allowing limit requests per window per key.
func NewRateLimiter(client *Client, limit int, window time.Duration) *RateLimiter {
	if window <= 0 {
		window = time.Minute
	}
	return &RateLimiter{
		client:  client,
		limit:   limit,
		window:  window,
		timeout: 250 * time.Millisecond,
	}
}

// Name returns the limiter store name.
func (rl *RateLimiter) Name() string {
	return "redis"
}

// Allow increments the key's counter for the current window.
func (rl *RateLimiter) Allow(ctx context.Context, key string) ratelimit.Decision {
	if rl.limit <= 0 {
		return ratelimit.Decision{Allowed: true}
	}

	ctx, cancel := context.WithTimeout(ctx, rl.timeout)
	defer cancel()

	redisKey := rl.client.Key(rateLimitNamespace + key)
	rdb := rl.client.Redis()

	counter, err := rdb.Incr(ctx, redisKey).Result()
	if err != nil {
		logRedisError("incr", err)
		return ratelimit.Decision{Allowed: true, Limit: rl.limit}
	}
	if counter == 1 {
		if err := rdb.Expire(ctx, redisKey, rl.window).Err(); err != nil {
			logRedisError("expire", err)
		}
	}

	ttl, err := rdb.TTL(ctx, redisKey).Result()
	if err != nil || ttl <= 0 {
		if err == nil && ttl == -1 {
			// Counter without expiry, left behind by a failed Expire.
			_ = rdb.Expire(ctx, redisKey, rl.window).Err()
		}
		ttl = rl.window
	}

	remaining := rl.limit - int(counter)
	if remaining < 0 {
		remaining = 0
	}
	return ratelimit.Decision{
		Allowed:   int(counter) <= rl.limit,
		Limit:     rl.limit,
		Remaining: remaining,
		ResetAt:   time.Now().Add(ttl),
	}
}

func logRedisError(op string, err error) {
	log.Error().Err(err).Str("op", op).Msg("Redis rate limiter error")
}
