package idempotency_test

import (
	"context"
	"os"
	"testing"
	"time"

	"pharmahub/internal/idempotency"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// exerciseStore runs the Store contract against store.
func exerciseStore(t *testing.T, store idempotency.Store) {
	ctx := context.Background()
	key := uuid.New().String()

	stored, err := store.Begin(ctx, key)
	require.NoError(t, err)
	assert.Nil(t, stored, "first claim owns the key")

	_, err = store.Begin(ctx, key)
	assert.ErrorIs(t, err, idempotency.ErrInProgress)

	require.NoError(t, store.Complete(ctx, key, []byte(`{"id":"order-1"}`)))
	stored, err = store.Begin(ctx, key)
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"order-1"}`, string(stored))

	abandoned := uuid.New().String()
	_, err = store.Begin(ctx, abandoned)
	require.NoError(t, err)
	require.NoError(t, store.Abandon(ctx, abandoned))
	stored, err = store.Begin(ctx, abandoned)
	require.NoError(t, err)
	assert.Nil(t, stored, "an abandoned key can be claimed again")
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, idempotency.NewMemoryStore(time.Hour))
}

func TestMemoryStore_Expiry(t *testing.T) {
	store := idempotency.NewMemoryStore(time.Millisecond)
	ctx := context.Background()

	_, err := store.Begin(ctx, "k")
	require.NoError(t, err)
	require.NoError(t, store.Complete(ctx, "k", []byte(`{}`)))
	time.Sleep(5 * time.Millisecond)

	stored, err := store.Begin(ctx, "k")
	require.NoError(t, err)
	assert.Nil(t, stored, "expired keys are forgotten")
}

func TestRedisStore(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	defer rdb.Close()
	require.NoError(t, rdb.Ping(context.Background()).Err())

	exerciseStore(t, idempotency.NewRedisStore(rdb, time.Minute))
}
