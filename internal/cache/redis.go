package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"bookkeeping-service/internal/logging"
)

// RedisCache stores JSON values in redis under a namespace prefix.
type RedisCache struct {
	client    redis.Cmdable
	namespace string
	logger    logging.Logger
}

func NewRedisCache(client redis.Cmdable, namespace string, logger logging.Logger) *RedisCache {
	return &RedisCache{
		client:    client,
		namespace: namespace,
		logger:    logger.WithField(logging.FieldComponent, "cache"),
	}
}

func (c *RedisCache) key(k string) string {
	return c.namespace + k
}

func (c *RedisCache) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	val, err := c.client.Get(ctx, c.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		c.logger.WithError(err).Error("Redis Get failed", logging.F("key", key))
		return false, fmt.Errorf("failed to get %s: %w", key, err)
	}
	if err := json.Unmarshal(val, dest); err != nil {
		return false, fmt.Errorf("failed to decode cached %s: %w", key, err)
	}
	return true, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", key, err)
	}
	if err := c.client.Set(ctx, c.key(key), data, ttl).Err(); err != nil {
		c.logger.WithError(err).Error("Redis Set failed", logging.F("key", key))
		return fmt.Errorf("failed to set %s: %w", key, err)
	}
	return nil
}

func (c *RedisCache) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = c.key(k)
	}
	if err := c.client.Del(ctx, full...).Err(); err != nil {
		c.logger.WithError(err).Error("Redis Delete failed", logging.F(logging.FieldCount, len(keys)))
		return fmt.Errorf("failed to delete keys: %w", err)
	}
	return nil
}

// DeletePrefix scans for matching keys in batches and deletes them.
func (c *RedisCache) DeletePrefix(ctx context.Context, prefix string) error {
	var cursor uint64
	for {
		keys, next, err := c.client.Scan(ctx, cursor, c.key(prefix)+"*", 100).Result()
		if err != nil {
			return fmt.Errorf("failed to scan prefix %s: %w", prefix, err)
		}
		if len(keys) > 0 {
			if err := c.client.Del(ctx, keys...).Err(); err != nil {
				return fmt.Errorf("failed to delete prefix %s: %w", prefix, err)
			}
		}
		if next == 0 {
			return nil
		}
		cursor = next
	}
}
