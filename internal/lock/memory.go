package lock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"bookkeeping-service/internal/logging"
)

// MemoryManager keeps leases in process memory. Start runs a sweeper that
// drops expired leases; Stop ends it.
type MemoryManager struct {
	mu     sync.Mutex
	leases map[string]Lease

	now      func() time.Time
	interval time.Duration
	logger   logging.Logger

	startOnce sync.Once
	stopOnce  sync.Once
	started   bool
	stop      chan struct{}
	done      chan struct{}
}

func NewMemoryManager(logger logging.Logger) *MemoryManager {
	return &MemoryManager{
		leases:   make(map[string]Lease),
		now:      time.Now,
		interval: time.Minute,
		logger:   logger.WithField(logging.FieldComponent, "lock"),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

func (m *MemoryManager) Acquire(ctx context.Context, resource string, ttl time.Duration) (*Lease, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if held, ok := m.leases[resource]; ok && now.Before(held.ExpiresAt) {
		return nil, fmt.Errorf("%w: %s", ErrLocked, resource)
	}

	lease := Lease{
		Resource:  resource,
		Token:     uuid.NewString(),
		ExpiresAt: now.Add(ttl),
	}
	m.leases[resource] = lease
	m.logger.Debug("Lock acquired", logging.F(logging.FieldResource, resource))
	return &lease, nil
}

func (m *MemoryManager) Release(ctx context.Context, lease *Lease) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	held, ok := m.leases[lease.Resource]
	if !ok || held.Token != lease.Token {
		return fmt.Errorf("%w: %s", ErrNotHeld, lease.Resource)
	}
	delete(m.leases, lease.Resource)
	m.logger.Debug("Lock released", logging.F(logging.FieldResource, lease.Resource))
	return nil
}

// Start launches the expiry sweeper.
func (m *MemoryManager) Start() {
	m.startOnce.Do(m.run)
}

func (m *MemoryManager) run() {
	m.mu.Lock()
	m.started = true
	m.mu.Unlock()

	go func() {
		defer close(m.done)
		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				m.sweep()
			case <-m.stop:
				return
			}
		}
	}()
}

// Stop ends the sweeper started by Start and waits for it to exit.
func (m *MemoryManager) Stop() {
	m.stopOnce.Do(func() {
		close(m.stop)
		m.mu.Lock()
		started := m.started
		m.mu.Unlock()
		if started {
			<-m.done
		}
	})
}

func (m *MemoryManager) sweep() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	removed := 0
	for resource, lease := range m.leases {
		if !now.Before(lease.ExpiresAt) {
			delete(m.leases, resource)
			removed++
		}
	}
	if removed > 0 {
		m.logger.Debug("Expired locks swept", logging.F(logging.FieldCount, removed))
	}
	return removed
}
