package repository

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRedisLocker(t *testing.T) (*RedisLocker, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisLocker(client), mr
}

func TestRedisLockerExclusion(t *testing.T) {
	locker, mr := setupRedisLocker(t)
	ctx := context.Background()

	ok, err := locker.Acquire(ctx, "room:1", 30*time.Second)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = locker.Acquire(ctx, "room:1", 30*time.Second)
	require.NoError(t, err)
	assert.False(t, ok)

	// A different room is independent.
	ok, err = locker.Acquire(ctx, "room:2", 30*time.Second)
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, locker.Release(ctx, "room:1"))
	ok, err = locker.Acquire(ctx, "room:1", 30*time.Second)
	require.NoError(t, err)
	assert.True(t, ok)

	// TTL frees the lock after a crash without an explicit release.
	mr.FastForward(31 * time.Second)
	ok, err = locker.Acquire(ctx, "room:2", 30*time.Second)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMemoryLockerExpiry(t *testing.T) {
	locker := NewMemoryLocker()
	ctx := context.Background()

	ok, err := locker.Acquire(ctx, "room:1", 20*time.Millisecond)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = locker.Acquire(ctx, "room:1", 20*time.Millisecond)
	require.NoError(t, err)
	assert.False(t, ok)

	time.Sleep(30 * time.Millisecond)

	ok, err = locker.Acquire(ctx, "room:1", 20*time.Millisecond)
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, locker.Release(ctx, "room:1"))
	ok, err = locker.Acquire(ctx, "room:1", 20*time.Millisecond)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestFailoverLockerFallsBack(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	logger := zerolog.Nop()
	failover := NewFailoverLocker(NewRedisLocker(client), NewMemoryLocker(), &logger)
	ctx := context.Background()

	ok, err := failover.Acquire(ctx, "room:1", 30*time.Second)
	require.NoError(t, err)
	assert.True(t, ok)

	// Kill redis; the next acquire degrades to the memory locker
	// instead of failing the checkout.
	mr.Close()

	ok, err = failover.Acquire(ctx, "room:2", 30*time.Second)
	require.NoError(t, err)
	assert.True(t, ok)

	// Degraded mode still excludes within the process.
	ok, err = failover.Acquire(ctx, "room:2", 30*time.Second)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, failover.Release(ctx, "room:2"))
}
