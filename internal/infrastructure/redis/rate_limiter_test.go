package redis_test

import (
	"context"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/japbujan/rork-winking-owl-audits-api/internal/infrastructure/config"
	"github.com/japbujan/rork-winking-owl-audits-api/internal/infrastructure/redis"
)

// newTestClient connects to the Redis named by REDIS_HOST/REDIS_PORT or skips.
func newTestClient(t *testing.T) *redis.Client {
	t.Helper()
	host := os.Getenv("REDIS_HOST")
	if host == "" {
		t.Skip("REDIS_HOST not set, skipping Redis integration test")
	}
	port := 6379
	if p, err := strconv.Atoi(os.Getenv("REDIS_PORT")); err == nil {
		port = p
	}

	client, err := redis.NewClient(context.Background(), &config.RedisConfig{Host: host, Port: port})
	if err != nil {
		t.Skipf("redis not reachable: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestRateLimiter_FixedWindow(t *testing.T) {
	client := newTestClient(t)
	rl := redis.NewRateLimiter(client, 2, time.Minute)
	key := "test:" + uuid.NewString()
	ctx := context.Background()

	first := rl.Allow(ctx, key)
	assert.True(t, first.Allowed)
	assert.Equal(t, 1, first.Remaining)

	assert.True(t, rl.Allow(ctx, key).Allowed)

	third := rl.Allow(ctx, key)
	assert.False(t, third.Allowed)
	assert.Zero(t, third.Remaining)
	assert.True(t, third.ResetAt.After(time.Now()))

	ttl, err := client.Redis().TTL(ctx, client.Key("ratelimit:"+key)).Result()
	require.NoError(t, err)
	assert.Positive(t, ttl)
}

func TestRateLimiter_ZeroLimitDisables(t *testing.T) {
	rl := redis.NewRateLimiter(nil, 0, time.Minute)
	assert.True(t, rl.Allow(context.Background(), "any").Allowed)
	assert.Equal(t, "redis", rl.Name())
}
