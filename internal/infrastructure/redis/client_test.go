package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/japbujan/rork-winking-owl-audits-api/internal/infrastructure/config"
	"github.com/japbujan/rork-winking-owl-audits-api/internal/infrastructure/redis"
)

func TestNewClient_UnreachableServer(t *testing.T) {
	client, err := redis.NewClient(context.Background(), &config.RedisConfig{
		Host:        "127.0.0.1",
		Port:        1,
		DialTimeout: 200 * time.Millisecond,
	})
	require.Error(t, err)
	assert.Nil(t, client)
	assert.Contains(t, err.Error(), "127.0.0.1:1")
}

func TestClient_KeyPrefix(t *testing.T) {
	client := newTestClient(t)
	assert.Equal(t, redis.DefaultKeyPrefix+"ratelimit:1.2.3.4", client.Key("ratelimit:1.2.3.4"))
	assert.NoError(t, client.Ping(context.Background()))
}
