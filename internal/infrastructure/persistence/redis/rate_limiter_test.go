package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLimiter(t *testing.T) (*RateLimiter, *miniredis.Miniredis, *time.Time) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	now := time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)
	limiter := NewRateLimiter(NewClientFrom(rdb))
	limiter.now = func() time.Time { return now }
	return limiter, mr, &now
}

func TestRateLimiter_AllowsUpToLimitWithinWindow(t *testing.T) {
	limiter, _, now := newTestLimiter(t)
	ctx := context.Background()
	key := BuildRateLimitKey("10.0.0.1", "/v1/stories")

	for i := 0; i < 3; i++ {
		*now = now.Add(time.Second)
		allowed, err := limiter.Allow(ctx, key, 3, time.Minute)
		require.NoError(t, err)
		assert.True(t, allowed, "request %d", i+1)
	}

	allowed, err := limiter.Allow(ctx, key, 3, time.Minute)
	require.NoError(t, err)
	assert.False(t, allowed)

	// 其他客户端不受影响
	allowed, err = limiter.Allow(ctx, BuildRateLimitKey("10.0.0.2", "/v1/stories"), 3, time.Minute)
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestRateLimiter_RejectedRequestsAreNotCounted(t *testing.T) {
	limiter, mr, now := newTestLimiter(t)
	ctx := context.Background()
	key := BuildRateLimitKey("10.0.0.1", "/v1/stories")

	for i := 0; i < 5; i++ {
		*now = now.Add(time.Millisecond)
		_, err := limiter.Allow(ctx, key, 2, time.Minute)
		require.NoError(t, err)
	}

	members, err := mr.ZMembers(key)
	require.NoError(t, err)
	assert.Len(t, members, 2)
	assert.True(t, mr.TTL(key) > 0)
}

func TestRateLimiter_WindowSlides(t *testing.T) {
	limiter, _, now := newTestLimiter(t)
	ctx := context.Background()
	key := BuildRateLimitKey("10.0.0.1", "/v1/stories")

	allowed, err := limiter.Allow(ctx, key, 1, time.Minute)
	require.NoError(t, err)
	require.True(t, allowed)

	*now = now.Add(30 * time.Second)
	allowed, err = limiter.Allow(ctx, key, 1, time.Minute)
	require.NoError(t, err)
	assert.False(t, allowed)

	*now = now.Add(31 * time.Second)
	allowed, err = limiter.Allow(ctx, key, 1, time.Minute)
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestRateLimiter_ReturnsErrorWhenRedisDown(t *testing.T) {
	rdb := goredis.NewClient(&goredis.Options{Addr: "127.0.0.1:1", DialTimeout: 100 * time.Millisecond, MaxRetries: -1})
	t.Cleanup(func() { _ = rdb.Close() })
	limiter := NewRateLimiter(NewClientFrom(rdb))

	_, err := limiter.Allow(context.Background(), "ratelimit:x", 1, time.Minute)
	assert.Error(t, err)
}
