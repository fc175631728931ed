package storage

import (
	"context"
	"sync"
)

// MemoryCache is a process-local slot store for tests and ephemeral runs.
type MemoryCache struct {
	mu    sync.RWMutex
	slots map[string]string
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{slots: make(map[string]string)}
}

func (c *MemoryCache) Get(_ context.Context, key string) (string, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.slots[key]
	return v, ok, nil
}

func (c *MemoryCache) Set(_ context.Context, key, value string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.slots[key] = value
	return nil
}

func (c *MemoryCache) Remove(_ context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range keys {
		delete(c.slots, k)
	}
	return nil
}

func (c *MemoryCache) Ping(context.Context) error { return nil }

func (c *MemoryCache) Close() error { return nil }
