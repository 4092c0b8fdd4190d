package bootstrap

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"

	infraredis "github.com/jonesrussell/north-cloud/pricewatch/infrastructure/redis"
	"github.com/jonesrussell/north-cloud/pricewatch/internal/config"
)

// ErrRedisDisabled indicates Redis is disabled in the configuration.
var ErrRedisDisabled = errors.New("redis disabled")

// CreateRedisClient creates a Redis client, or returns ErrRedisDisabled.
func CreateRedisClient(ctx context.Context, cfg *config.Config) (*redis.Client, error) {
	if !cfg.Redis.Enabled {
		return nil, ErrRedisDisabled
	}
	return infraredis.NewClient(ctx, cfg.Redis)
}
