//go:build integration

package notification

import (
	"context"
	"testing"
	"time"

	"github.com/leorit/backend/internal/infrastructure/cache"
	"github.com/leorit/backend/internal/infrastructure/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func TestRedisStreamNotifier(t *testing.T) {
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

	client, err := cache.NewRedisClient(ctx, config.RedisConfig{Host: host, Port: port.Int()})
	require.NoError(t, err)
	defer client.Close()

	n := NewRedisStreamNotifier(client, "leorit:order-lifecycle", 1000)
	msg := sampleNotification()
	require.NoError(t, n.Notify(ctx, msg))

	entries, err := client.XRange(ctx, "leorit:order-lifecycle", "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, msg.ID.String(), entries[0].Values["id"])
	assert.Equal(t, "ORD-20260301-0007", entries[0].Values["order_number"])
}
