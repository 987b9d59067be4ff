package notification

import (
	"github.com/edmarket/coursepay/internal/config"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

func newRedisClient(cfg config.Config) *redis.Client {
	if cfg.RedisAddr == "" {
		return nil
	}
	return redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
}

func newPublisher(client *redis.Client, log *zap.Logger) Publisher {
	return NewPublisher(client, log)
}

var Module = fx.Module("notification",
	fx.Provide(
		newRedisClient,
		newPublisher,
	),
)
