package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRedis(t *testing.T) (*Client, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	client := &Client{Redis: redis.NewClient(&redis.Options{Addr: mr.Addr()})}
	t.Cleanup(func() { client.Close() })
	return client, mr
}

func TestClientSetGet(t *testing.T) {
	client, _ := setupRedis(t)
	ctx := context.Background()

	require.NoError(t, client.Set(ctx, "k", "v", time.Minute))

	val, err := client.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v", val)

	require.NoError(t, client.Delete(ctx, "k"))
	_, err = client.Get(ctx, "k")
	assert.ErrorIs(t, err, redis.Nil)
}

func TestDedupCache(t *testing.T) {
	client, mr := setupRedis(t)
	ctx := context.Background()

	dedup := NewDedupCache(client, time.Hour)

	t.Run("Success - first sighting is not a duplicate", func(t *testing.T) {
		seen, err := dedup.MarkSeen(ctx, "evt-1")
		require.NoError(t, err)
		assert.False(t, seen)
	})

	t.Run("Success - second sighting is a duplicate", func(t *testing.T) {
		seen, err := dedup.MarkSeen(ctx, "evt-1")
		require.NoError(t, err)
		assert.True(t, seen)
	})

	t.Run("Success - entries expire", func(t *testing.T) {
		mr.FastForward(2 * time.Hour)
		seen, err := dedup.MarkSeen(ctx, "evt-1")
		require.NoError(t, err)
		assert.False(t, seen)
	})
}
