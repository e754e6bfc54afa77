package persistence

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisStore(client, "test"), mr
}

func TestRedisStoreEnsureSeedsOnce(t *testing.T) {
	ctx := context.Background()
	store, mr := newTestRedisStore(t)

	require.NoError(t, store.Ensure(ctx))
	got, err := mr.Get("test:counter")
	require.NoError(t, err)
	assert.Equal(t, emptyCounterJSON, got)

	require.NoError(t, store.SaveCounter(ctx, 4))
	require.NoError(t, store.Ensure(ctx))

	count, err := store.LoadCounter(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, count)
}

func TestRedisStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestRedisStore(t)

	want := sampleTickets()
	require.NoError(t, store.SaveTickets(ctx, want))

	got, err := store.LoadTickets(ctx)
	require.NoError(t, err)
	assert.Equal(t, want, got)
	assert.NoError(t, store.Ping(ctx))
}

func TestRedisStoreMissingKeysAreDefaults(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestRedisStore(t)

	count, err := store.LoadCounter(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)

	tickets, err := store.LoadTickets(ctx)
	require.NoError(t, err)
	assert.Empty(t, tickets)
}
