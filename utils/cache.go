// File: utils/cache.go
package utils

import (
	"context"
	"fmt"
	"time"

	"deviceinventory/config"

	"github.com/go-redis/redis/v8"
)

// NewCacheClient connects to the Redis database used for the device cache.
func NewCacheClient(cfg config.Config) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisCacheDB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis (cache): %w", err)
	}
	return client, nil
}
