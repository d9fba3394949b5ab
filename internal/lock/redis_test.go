//go:build integration

package lock

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func setupRedisContainer(t *testing.T) *redis.Client {
	t.Helper()
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections"),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("terminate redis container: %v", err)
		}
	})

	endpoint, err := container.Endpoint(ctx, "")
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{Addr: endpoint})
	t.Cleanup(func() { client.Close() })
	require.NoError(t, client.Ping(ctx).Err())
	return client
}

func TestRedis_ExclusiveUntilReleased(t *testing.T) {
	client := setupRedisContainer(t)
	l := NewRedis(client, RedisOptions{TTL: 5 * time.Second, Wait: 100 * time.Millisecond}, zerolog.Nop())
	ctx := context.Background()

	unlock, err := l.Lock(ctx, OrderKey(7))
	require.NoError(t, err)

	_, err = l.Lock(ctx, OrderKey(7))
	assert.ErrorIs(t, err, ErrNotAcquired)

	unlock()
	again, err := l.Lock(ctx, OrderKey(7))
	require.NoError(t, err)
	again()
}

func TestRedis_LostLeaseIsNotReleasedByOldHolder(t *testing.T) {
	client := setupRedisContainer(t)
	ctx := context.Background()
	l := NewRedis(client, RedisOptions{TTL: 300 * time.Millisecond, Wait: time.Second}, zerolog.Nop())

	stale, err := l.Lock(ctx, OrderKey(8))
	require.NoError(t, err)
	// the lease is gone, as after a Redis failover
	require.NoError(t, client.Del(ctx, "lock:"+OrderKey(8)).Err())

	fresh, err := l.Lock(ctx, OrderKey(8))
	require.NoError(t, err)

	// the first holder's renewals and release must not touch the second lease
	time.Sleep(200 * time.Millisecond)
	stale()
	exists, err := client.Exists(ctx, "lock:"+OrderKey(8)).Result()
	require.NoError(t, err)
	assert.Equal(t, int64(1), exists)
	fresh()
}

func TestRedis_LeaseRenewedWhileHeld(t *testing.T) {
	client := setupRedisContainer(t)
	ctx := context.Background()
	l := NewRedis(client, RedisOptions{TTL: 150 * time.Millisecond, Wait: 50 * time.Millisecond}, zerolog.Nop())

	unlock, err := l.Lock(ctx, OrderKey(9))
	require.NoError(t, err)

	// held well past one TTL
	time.Sleep(500 * time.Millisecond)
	_, err = l.Lock(ctx, OrderKey(9))
	assert.ErrorIs(t, err, ErrNotAcquired)

	unlock()
	exists, err := client.Exists(ctx, "lock:"+OrderKey(9)).Result()
	require.NoError(t, err)
	assert.Equal(t, int64(0), exists)
}
