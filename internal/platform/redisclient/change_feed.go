package redisclient

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"dsa_tracker/internal/platform/logger"

	"github.com/redis/go-redis/v9"
)

// ChangeFeed announces committed document writes on one pub/sub channel per
// collection, named "<prefix>:<collection>".
type ChangeFeed struct {
	rdb    *redis.Client
	prefix string
	log    *logger.Logger
}

func NewChangeFeed(rdb *redis.Client, prefix string, log *logger.Logger) *ChangeFeed {
	if prefix == "" {
		prefix = "docstore"
	}
	if log == nil {
		log = logger.Nop()
	}
	return &ChangeFeed{rdb: rdb, prefix: prefix, log: log.With("component", "change_feed")}
}

func (f *ChangeFeed) channel(collection string) string {
	return f.prefix + ":" + collection
}

func (f *ChangeFeed) Publish(ctx context.Context, collections ...string) error {
	var errs []error
	for _, c := range collections {
		if err := f.rdb.Publish(ctx, f.channel(c), c).Err(); err != nil {
			f.log.Warn("change feed publish failed", "collection", c, "error", err)
			errs = append(errs, fmt.Errorf("publish %s: %w", c, err))
		}
	}
	return errors.Join(errs...)
}

func (f *ChangeFeed) Subscribe(ctx context.Context, collection string, onChange func(), onError func(error)) (func(), error) {
	if onChange == nil {
		return nil, fmt.Errorf("onChange callback required")
	}
	subCtx, cancel := context.WithCancel(ctx)
	sub := f.rdb.Subscribe(subCtx, f.channel(collection))

	// ensures subscription actually started
	if _, err := sub.Receive(subCtx); err != nil {
		cancel()
		_ = sub.Close()
		return nil, fmt.Errorf("redis subscribe: %w", err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		ch := sub.Channel()
		for {
			select {
			case <-subCtx.Done():
				return
			case m, ok := <-ch:
				if !ok || m == nil {
					if subCtx.Err() == nil && onError != nil {
						onError(errors.New("change feed closed by server"))
					}
					return
				}
				onChange()
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			cancel()
			_ = sub.Close()
			<-done
		})
	}, nil
}
