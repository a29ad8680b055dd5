package redis

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func TestNilClientReportsNotInitialized(t *testing.T) {
	var c *Client
	ctx := context.Background()

	_, err := c.IncrWindow(ctx, "k", time.Second)
	require.ErrorIs(t, err, errNotInitialized)
	_, err = c.TTL(ctx, "k")
	require.ErrorIs(t, err, errNotInitialized)
	require.ErrorIs(t, c.Del(ctx, "k"), errNotInitialized)
	require.NoError(t, c.Close())
}

func TestNewClientFailsWithoutServer(t *testing.T) {
	_, err := newClient(context.Background(), &redis.Options{Addr: "127.0.0.1:1", DialTimeout: 200 * time.Millisecond})
	require.Error(t, err)
}

func TestIncrWindow(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("set TEST_REDIS_ADDR to run redis-backed tests")
	}
	ctx := context.Background()
	client, err := newClient(ctx, &redis.Options{Addr: addr})
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	key := "servicechat:test:" + uuid.NewString()
	t.Cleanup(func() { client.Del(context.Background(), key) })

	for want := int64(1); want <= 3; want++ {
		count, err := client.IncrWindow(ctx, key, time.Minute)
		require.NoError(t, err)
		require.Equal(t, want, count)
	}
	ttl, err := client.TTL(ctx, key)
	require.NoError(t, err)
	require.Greater(t, ttl, time.Duration(0))
	require.LessOrEqual(t, ttl, time.Minute)

	require.NoError(t, client.Del(ctx, key))
	count, err := client.IncrWindow(ctx, key, time.Minute)
	require.NoError(t, err)
	require.Equal(t, int64(1), count)
}
