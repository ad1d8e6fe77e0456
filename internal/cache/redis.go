package cache

import (
	"context"
	"fmt"

	"github.com/moznion/go-optional"
	"github.com/redis/go-redis/v9"

	"github.com/astra-lab/astra-trading/internal/config"
	"github.com/astra-lab/astra-trading/pkg/errors"
)

// Redis implements Cache on a Redis hash.
type Redis struct {
	client *redis.Client
}

// NewRedis creates a Redis-backed cache from the bot configuration.
func NewRedis(cfg config.RedisConfig) *Redis {
	client := redis.NewClient(&redis.Options{
		Addr: fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
	})

	return &Redis{client: client}
}

// HSet implements Cache.
func (r *Redis) HSet(ctx context.Context, name string, mapping map[string]string) error {
	if len(mapping) == 0 {
		return nil
	}

	if err := r.client.HSet(ctx, name, mapping).Err(); err != nil {
		return errors.Wrapf(errors.ErrCodeCacheWriteFailed, err, "failed to write hash %s", name)
	}

	return nil
}

// HGet implements Cache.
func (r *Redis) HGet(ctx context.Context, name string, key string) (optional.Option[string], error) {
	value, err := r.client.HGet(ctx, name, key).Result()
	if err == redis.Nil {
		return optional.None[string](), nil
	}

	if err != nil {
		return optional.None[string](), errors.Wrapf(errors.ErrCodeCacheReadFailed, err, "failed to read %s from hash %s", key, name)
	}

	return optional.Some(value), nil
}

var _ Cache = (*Redis)(nil)
