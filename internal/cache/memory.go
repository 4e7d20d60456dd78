package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"bookkeeping-service/internal/logging"
)

type memoryEntry struct {
	data      []byte
	expiresAt time.Time
}

// MemoryCache is a process-local Cache. Values are stored JSON-encoded so that
// callers observe the same copy semantics as with RedisCache. Start runs a
// janitor that evicts expired entries; Stop ends it.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry

	now      func() time.Time
	interval time.Duration
	logger   logging.Logger

	startOnce sync.Once
	stopOnce  sync.Once
	started   bool
	stop      chan struct{}
	done      chan struct{}
}

func NewMemoryCache(logger logging.Logger) *MemoryCache {
	return &MemoryCache{
		entries:  make(map[string]memoryEntry),
		now:      time.Now,
		interval: time.Minute,
		logger:   logger.WithField(logging.FieldComponent, "cache"),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

func (c *MemoryCache) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok || !c.now().Before(entry.expiresAt) {
		return false, nil
	}
	if err := json.Unmarshal(entry.data, dest); err != nil {
		return false, fmt.Errorf("failed to decode cached %s: %w", key, err)
	}
	return true, nil
}

func (c *MemoryCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", key, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = memoryEntry{data: data, expiresAt: c.now().Add(ttl)}
	return nil
}

func (c *MemoryCache) Delete(ctx context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, key := range keys {
		delete(c.entries, key)
	}
	return nil
}

func (c *MemoryCache) DeletePrefix(ctx context.Context, prefix string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key := range c.entries {
		if strings.HasPrefix(key, prefix) {
			delete(c.entries, key)
		}
	}
	return nil
}

// Start launches the janitor.
func (c *MemoryCache) Start() {
	c.startOnce.Do(func() {
		c.mu.Lock()
		c.started = true
		c.mu.Unlock()

		go func() {
			defer close(c.done)
			ticker := time.NewTicker(c.interval)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					c.evictExpired()
				case <-c.stop:
					return
				}
			}
		}()
	})
}

// Stop ends the janitor and waits for it to exit.
func (c *MemoryCache) Stop() {
	c.stopOnce.Do(func() {
		close(c.stop)
		c.mu.RLock()
		started := c.started
		c.mu.RUnlock()
		if started {
			<-c.done
		}
	})
}

func (c *MemoryCache) evictExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	evicted := 0
	for key, entry := range c.entries {
		if !now.Before(entry.expiresAt) {
			delete(c.entries, key)
			evicted++
		}
	}
	if evicted > 0 {
		c.logger.Debug("Expired cache entries evicted", logging.F(logging.FieldCount, evicted))
	}
	return evicted
}
