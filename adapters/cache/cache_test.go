package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/leauyn/openavatarchat/domain/repositories"
)

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *Redis) {
	mr, err := miniredis.Run()
	require.NoError(t, err)

	store, err := NewRedis(Config{Addr: mr.Addr(), DefaultTTL: time.Minute}, zap.NewNop())
	require.NoError(t, err)

	return mr, store
}

func TestRedisSetAndGet(t *testing.T) {
	mr, store := setupTestRedis(t)
	defer mr.Close()
	defer store.Close()

	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "subject-1/profile", "profile text", time.Minute))

	value, err := store.Get(ctx, "subject-1/profile")
	require.NoError(t, err)
	assert.Equal(t, "profile text", value)
}

func TestRedisMiss(t *testing.T) {
	mr, store := setupTestRedis(t)
	defer mr.Close()
	defer store.Close()

	_, err := store.Get(context.Background(), "absent")
	assert.ErrorIs(t, err, repositories.ErrCacheMiss)
}

func TestRedisTTLExpiry(t *testing.T) {
	mr, store := setupTestRedis(t)
	defer mr.Close()
	defer store.Close()

	ctx := context.Background()
	require.NoError(t, store.Set(ctx, "short", "v", time.Second))

	mr.FastForward(2 * time.Second)

	_, err := store.Get(ctx, "short")
	assert.ErrorIs(t, err, repositories.ErrCacheMiss)
}

func TestMemorySetGetAndExpiry(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	require.NoError(t, m.Set(ctx, "k", "v", 10*time.Millisecond))

	value, err := m.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v", value)

	time.Sleep(20 * time.Millisecond)
	_, err = m.Get(ctx, "k")
	assert.ErrorIs(t, err, repositories.ErrCacheMiss)
}

func TestFallbackServesAfterPrimaryOutage(t *testing.T) {
	mr, store := setupTestRedis(t)
	defer mr.Close()
	defer store.Close()

	fb := NewFallback(store, zap.NewNop())
	ctx := context.Background()

	require.NoError(t, fb.Set(ctx, "k", "v", time.Minute))

	// Take the shared store down; the memory copy must still serve.
	mr.Close()

	value, err := fb.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v", value)
}

func TestFallbackWithoutPrimary(t *testing.T) {
	fb := NewFallback(nil, zap.NewNop())
	ctx := context.Background()

	_, err := fb.Get(ctx, "k")
	assert.ErrorIs(t, err, repositories.ErrCacheMiss)

	require.NoError(t, fb.Set(ctx, "k", "v", 0))
	value, err := fb.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v", value)
}
