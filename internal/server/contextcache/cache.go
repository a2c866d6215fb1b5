// Package contextcache keeps the most recent uploaded-document text per user
// so later chat turns can be answered against it.
package contextcache

import (
	"context"
	"sync"
)

// Cache maps a user ID to one context text. Put replaces any previous value
// as a whole; readers never observe a partially written entry.
type Cache interface {
	Put(ctx context.Context, userID, text string) error
	Get(ctx context.Context, userID string) (string, bool, error)
}

// MemoryCache is the process-local backend. It has no expiry or size bound.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]string
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string]string)}
}

func (c *MemoryCache) Put(_ context.Context, userID, text string) error {
	c.mu.Lock()
	c.entries[userID] = text
	c.mu.Unlock()
	return nil
}

func (c *MemoryCache) Get(_ context.Context, userID string) (string, bool, error) {
	c.mu.RLock()
	text, ok := c.entries[userID]
	c.mu.RUnlock()
	return text, ok, nil
}
