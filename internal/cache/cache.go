// Package cache stores JSON-encoded values with a time to live. Caches are
// constructed once at startup and passed to the services that use them.
package cache

import (
	"context"
	"time"
)

// Cache is a JSON value cache.
type Cache interface {
	// Get decodes the value stored at key into dest. It reports false when
	// the key is missing or expired.
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	// DeletePrefix removes every key starting with prefix.
	DeletePrefix(ctx context.Context, prefix string) error
}
