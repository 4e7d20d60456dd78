// Package lock provides best-effort mutual exclusion by resource name with a
// time-boxed expiry. Managers are constructed once at startup and passed to the
// components that need them.
package lock

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrLocked is returned by Acquire when another holder owns an unexpired lease.
	ErrLocked = errors.New("resource is locked")

	// ErrNotHeld is returned by Release when the lease expired or was taken over.
	ErrNotHeld = errors.New("lock not held")
)

// Lease is proof of holding a lock until ExpiresAt.
type Lease struct {
	Resource  string
	Token     string
	ExpiresAt time.Time
}

// Manager acquires and releases named locks.
type Manager interface {
	Acquire(ctx context.Context, resource string, ttl time.Duration) (*Lease, error)
	Release(ctx context.Context, lease *Lease) error
}

const keyPrefix = "lock:"
