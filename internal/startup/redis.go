package startup

import (
	"context"
	"os"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/helpchat/internal/logger"
)

// ConnectRedisWithRetry connects to Redis and verifies the connection
// with a ping, retrying for up to maxWait. A malformed URL is fatal
// immediately since no retry can fix it.
func ConnectRedisWithRetry(redisURL string, maxWait time.Duration) *redis.Client {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		logger.Errorf("startup: redis url: %v", err)
		os.Exit(1)
	}
	var client *redis.Client
	retryUntil("redis connect", maxWait, func(ctx context.Context) error {
		c := redis.NewClient(opts)
		if err := c.Ping(ctx).Err(); err != nil {
			c.Close()
			return err
		}
		client = c
		return nil
	})
	return client
}
