//go:build integration

package cache

import (
	"context"
	"testing"
	"time"

	"github.com/leorit/backend/internal/infrastructure/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func startRedis(t *testing.T) config.RedisConfig {
	t.Helper()
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(30 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "6379")
	require.NoError(t, err)

	return config.RedisConfig{Host: host, Port: port.Int()}
}

func TestRedisIdempotencyStore(t *testing.T) {
	cfg := startRedis(t)
	ctx := context.Background()

	client, err := NewRedisClient(ctx, cfg)
	require.NoError(t, err)
	defer client.Close()

	s := NewRedisIdempotencyStore(client, "")

	isNew, err := s.MarkProcessed(ctx, "evt-1", time.Minute)
	require.NoError(t, err)
	assert.True(t, isNew)

	isNew, err = s.MarkProcessed(ctx, "evt-1", time.Minute)
	require.NoError(t, err)
	assert.False(t, isNew)

	done, err := s.IsProcessed(ctx, "evt-1")
	require.NoError(t, err)
	assert.True(t, done)

	require.NoError(t, s.Release(ctx, "evt-1"))
	done, err = s.IsProcessed(ctx, "evt-1")
	require.NoError(t, err)
	assert.False(t, done)

	ttl, err := client.TTL(ctx, DefaultIdempotencyKeyPrefix+"evt-2").Result()
	require.NoError(t, err)
	assert.Less(t, ttl, time.Duration(0), "key does not exist yet")
}

func TestNewRedisClient_Unreachable(t *testing.T) {
	_, err := NewRedisClient(context.Background(), config.RedisConfig{Host: "127.0.0.1", Port: 1})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "127.0.0.1:1")
}
