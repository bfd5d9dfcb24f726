package database

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/go-redis/redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockRedis(t *testing.T) {
	// Mock redis client
	os.Setenv("MOCK_REDIS", "true")
	defer os.Unsetenv("MOCK_REDIS")
	// Ensure we are using the mock redis
	redis := GetRedisDB()
	assert.Equal(t, true, redis.Mock)
	assert.NoError(t, redis.Ping(context.Background()))
}

func TestClaimDispatch(t *testing.T) {
	os.Setenv("MOCK_REDIS", "true")
	defer os.Unsetenv("MOCK_REDIS")
	ctx := context.Background()

	claimed, err := GetRedisDB().ClaimDispatch(ctx, "post-1", time.Hour)
	require.NoError(t, err)
	assert.True(t, claimed)

	// Second delivery of the same post
	claimed, err = GetRedisDB().ClaimDispatch(ctx, "post-1", time.Hour)
	require.NoError(t, err)
	assert.False(t, claimed)

	claimed, err = GetRedisDB().ClaimDispatch(ctx, "post-2", time.Hour)
	require.NoError(t, err)
	assert.True(t, claimed)

	val, err := GetRedisDB().Client.Get(ctx, "pushserver:dispatch:post-1").Result()
	require.NoError(t, err)
	assert.NotEmpty(t, val)
}

func TestReleaseDispatch(t *testing.T) {
	os.Setenv("MOCK_REDIS", "true")
	defer os.Unsetenv("MOCK_REDIS")
	ctx := context.Background()

	claimed, err := GetRedisDB().ClaimDispatch(ctx, "post-release", time.Hour)
	require.NoError(t, err)
	assert.True(t, claimed)
	require.NoError(t, GetRedisDB().ReleaseDispatch(ctx, "post-release"))

	_, err = GetRedisDB().Client.Get(ctx, "pushserver:dispatch:post-release").Result()
	assert.Equal(t, redis.Nil, err)
	claimed, err = GetRedisDB().ClaimDispatch(ctx, "post-release", time.Hour)
	require.NoError(t, err)
	assert.True(t, claimed)
}

func TestReconcileLock(t *testing.T) {
	os.Setenv("MOCK_REDIS", "true")
	defer os.Unsetenv("MOCK_REDIS")
	ctx := context.Background()

	locked, err := GetRedisDB().AcquireReconcileLock(ctx, time.Minute)
	require.NoError(t, err)
	assert.True(t, locked)
	locked, err = GetRedisDB().AcquireReconcileLock(ctx, time.Minute)
	require.NoError(t, err)
	assert.False(t, locked)

	require.NoError(t, GetRedisDB().ReleaseReconcileLock(ctx))
	locked, err = GetRedisDB().AcquireReconcileLock(ctx, time.Minute)
	require.NoError(t, err)
	assert.True(t, locked)
	require.NoError(t, GetRedisDB().ReleaseReconcileLock(ctx))
}
