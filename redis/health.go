package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/rentdir/bulk-importer/redis/config"
)

// Ping verifies that the Redis instance behind the queue is reachable.
// Runners call it at startup to fail fast on a bad configuration.
func Ping(ctx context.Context, cfg *config.RedisConfig) error {
	client := goredis.NewClient(&goredis.Options{
		Addr:        cfg.GetRedisAddr(),
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: 5 * time.Second,
	})

	defer client.Close()

	if err := client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis unreachable at %s: %w", cfg.GetRedisAddr(), err)
	}

	return nil
}
