package redisclient

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the lock only if we still hold it.
var releaseScript = redis.NewScript(`
    if redis.call("get", KEYS[1]) == ARGV[1] then
        return redis.call("del", KEYS[1])
    else
        return 0
    end
`)

// RunLock is a SET NX lock with a TTL, one key per holder scope.
type RunLock struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
}

func NewRunLock(rdb *redis.Client, prefix string, ttl time.Duration) *RunLock {
	return &RunLock{rdb: rdb, prefix: prefix, ttl: ttl}
}

// TryAcquire returns ok=false when someone else holds key. The release func
// is a no-op if the lock already expired or changed hands.
func (l *RunLock) TryAcquire(ctx context.Context, key string) (release func(), ok bool, err error) {
	fullKey := l.prefix + ":" + key
	value := uuid.NewString()

	ok, err = l.rdb.SetNX(ctx, fullKey, value, l.ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("acquire lock %s: %w", fullKey, err)
	}
	if !ok {
		return nil, false, nil
	}
	return func() {
		_, _ = releaseScript.Run(context.WithoutCancel(ctx), l.rdb, []string{fullKey}, value).Result()
	}, true, nil
}
