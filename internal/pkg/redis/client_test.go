package redis

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T) (*Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	c := NewFromClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { c.Close() })
	return c, mr
}

func TestAcquireReleaseSlot(t *testing.T) {
	c, mr := newTestClient(t)
	ctx := context.Background()
	key := SlotKey("gpt-4o")

	for i := 0; i < 2; i++ {
		ok, err := c.AcquireSlot(ctx, key, 2)
		require.NoError(t, err)
		assert.True(t, ok)
	}

	ok, err := c.AcquireSlot(ctx, key, 2)
	require.NoError(t, err)
	assert.False(t, ok, "third caller must wait")

	n, err := c.GetCurrentConcurrency(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Greater(t, mr.TTL(key).Seconds(), float64(0))

	require.NoError(t, c.ReleaseSlot(ctx, key))
	require.NoError(t, c.ReleaseSlot(ctx, key))
	assert.False(t, mr.Exists(key), "drained counter is deleted")

	n, err = c.GetCurrentConcurrency(ctx, key)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestAcquireSlotRedisDown(t *testing.T) {
	c, mr := newTestClient(t)
	mr.Close()

	_, err := c.AcquireSlot(context.Background(), SlotKey("x"), 1)
	assert.Error(t, err)
}

func TestSlotKey(t *testing.T) {
	assert.Equal(t, "model_concurrency:llama-3.1-8b-instant", SlotKey("llama-3.1-8b-instant"))
}
