package redisclient

import (
	"context"
	"fmt"
	"time"

	"dsa_tracker/internal/platform/config"

	"github.com/redis/go-redis/v9"
)

var RDB *redis.Client

// Connect dials Redis using config.AppConfig and verifies the connection.
func Connect(ctx context.Context) (*redis.Client, error) {
	RDB = redis.NewClient(&redis.Options{
		Addr:        config.AppConfig.RedisAddr,
		Password:    config.AppConfig.RedisPassword,
		DB:          config.AppConfig.RedisDB,
		DialTimeout: 5 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := RDB.Ping(pingCtx).Err(); err != nil {
		_ = RDB.Close()
		RDB = nil
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return RDB, nil
}

func Close() {
	if RDB != nil {
		_ = RDB.Close()
		RDB = nil
	}
}
