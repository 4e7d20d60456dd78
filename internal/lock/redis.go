package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"bookkeeping-service/internal/logging"
)

// releaseScript deletes the key only while it still holds the caller's token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisManager stores leases as redis keys set with NX and a PX expiry, so
// locks are shared by every process using the same redis.
type RedisManager struct {
	client redis.Cmdable
	logger logging.Logger
}

func NewRedisManager(client redis.Cmdable, logger logging.Logger) *RedisManager {
	return &RedisManager{
		client: client,
		logger: logger.WithField(logging.FieldComponent, "lock"),
	}
}

func (m *RedisManager) Acquire(ctx context.Context, resource string, ttl time.Duration) (*Lease, error) {
	token := uuid.NewString()
	ok, err := m.client.SetNX(ctx, keyPrefix+resource, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire lock %s: %w", resource, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrLocked, resource)
	}

	m.logger.Debug("Lock acquired", logging.F(logging.FieldResource, resource))
	return &Lease{Resource: resource, Token: token, ExpiresAt: time.Now().Add(ttl)}, nil
}

func (m *RedisManager) Release(ctx context.Context, lease *Lease) error {
	deleted, err := releaseScript.Run(ctx, m.client, []string{keyPrefix + lease.Resource}, lease.Token).Int()
	if err != nil {
		return fmt.Errorf("failed to release lock %s: %w", lease.Resource, err)
	}
	if deleted == 0 {
		return fmt.Errorf("%w: %s", ErrNotHeld, lease.Resource)
	}
	m.logger.Debug("Lock released", logging.F(logging.FieldResource, lease.Resource))
	return nil
}
