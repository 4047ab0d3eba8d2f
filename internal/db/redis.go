package db

import (
	"github.com/redis/go-redis/v9"

	"github.com/mertsyildirim/tasiapp-last-sub003/internal/config"
)

// ConnectRedis opens the client the stream hub publishes through. Nil when
// no address is configured; the hub then stays process-local.
func ConnectRedis(cfg config.Config) *redis.Client {
	if cfg.RedisAddr == "" {
		return nil
	}

	return redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
}
