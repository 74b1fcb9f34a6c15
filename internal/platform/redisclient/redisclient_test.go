package redisclient

import (
	"context"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testClient needs a disposable Redis at REDIS_TEST_ADDR.
func testClient(t *testing.T) *redis.Client {
	t.Helper()
	addr := os.Getenv("REDIS_TEST_ADDR")
	if addr == "" {
		t.Skip("REDIS_TEST_ADDR not set")
	}
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	require.NoError(t, rdb.Ping(context.Background()).Err())
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb
}

func TestChangeFeed_PublishReachesSubscriber(t *testing.T) {
	rdb := testClient(t)
	feed := NewChangeFeed(rdb, "test-"+time.Now().Format("150405.000"), nil)
	ctx := context.Background()

	var calls atomic.Int32
	unsubscribe, err := feed.Subscribe(ctx, "users/u1/problems", func() { calls.Add(1) }, nil)
	require.NoError(t, err)

	require.NoError(t, feed.Publish(ctx, "users/u1/problems", "users/u1/categories"))
	require.Eventually(t, func() bool { return calls.Load() == 1 }, 2*time.Second, 10*time.Millisecond)

	unsubscribe()
	unsubscribe()
	require.NoError(t, feed.Publish(ctx, "users/u1/problems"))
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, int32(1), calls.Load())
}

func TestRunLock_IsExclusive(t *testing.T) {
	rdb := testClient(t)
	lock := NewRunLock(rdb, "test-lock-"+time.Now().Format("150405.000"), 5*time.Second)
	ctx := context.Background()

	release, ok, err := lock.TryAcquire(ctx, "u1")
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = lock.TryAcquire(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, ok)

	release()
	release2, ok, err := lock.TryAcquire(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, ok)
	release2()
}

func TestDenylist_RevokeUntilExpiry(t *testing.T) {
	rdb := testClient(t)
	d := NewDenylist(rdb, "test-deny-"+time.Now().Format("150405.000"))
	ctx := context.Background()

	require.NoError(t, d.Revoke(ctx, "jti-1", time.Now().Add(time.Minute)))
	revoked, err := d.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.True(t, revoked)

	require.NoError(t, d.Revoke(ctx, "jti-2", time.Now().Add(-time.Minute)))
	revoked, err = d.IsRevoked(ctx, "jti-2")
	require.NoError(t, err)
	assert.False(t, revoked)
}
