package lock

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRedis(t *testing.T) *redis.Client {
	mr := miniredis.RunT(t)
	return redis.NewClient(&redis.Options{Addr: mr.Addr()})
}

func TestAcquireRelease(t *testing.T) {
	client := setupRedis(t)
	l := New(client, "test-lock", time.Minute)

	release, err := l.Acquire(context.Background(), time.Second)
	require.NoError(t, err)

	// A second invocation must time out while the lock is held.
	_, err = l.Acquire(context.Background(), 100*time.Millisecond)
	assert.ErrorIs(t, err, ErrLockTimeout)

	release()

	// After release the lock is immediately acquirable again.
	release2, err := l.Acquire(context.Background(), time.Second)
	require.NoError(t, err)
	release2()
}

func TestReleaseOnlyOwnToken(t *testing.T) {
	client := setupRedis(t)

	first := New(client, "test-lock", time.Minute)
	release, err := first.Acquire(context.Background(), time.Second)
	require.NoError(t, err)

	// Simulate TTL expiry and reacquisition by another holder.
	require.NoError(t, client.Set(context.Background(), "test-lock", "other-token", time.Minute).Err())

	release()

	// The stale release must not have deleted the new holder's key.
	val, err := client.Get(context.Background(), "test-lock").Result()
	require.NoError(t, err)
	assert.Equal(t, "other-token", val)
}

func TestAcquireRespectsContext(t *testing.T) {
	client := setupRedis(t)
	l := New(client, "test-lock", time.Minute)

	release, err := l.Acquire(context.Background(), time.Second)
	require.NoError(t, err)
	defer release()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = l.Acquire(ctx, 10*time.Second)
	assert.ErrorIs(t, err, context.Canceled)
}
