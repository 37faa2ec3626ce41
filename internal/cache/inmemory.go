package cache

import (
	"context"
	"errors"
	"sort"
	"sync"
)

type key struct {
	kind Kind
	id   string
}

// MemoryCache is an in-memory Cache for tests.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[key]*Entry
}

// NewMemoryCache creates an empty in-memory cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[key]*Entry)}
}

// GetMany implements Cache.
func (c *MemoryCache) GetMany(ctx context.Context, kind Kind) ([]*Entry, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var out []*Entry
	for k, e := range c.entries {
		if k.kind != kind {
			continue
		}
		cp := *e
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// GetOne implements Cache.
func (c *MemoryCache) GetOne(ctx context.Context, kind Kind, id string) (*Entry, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[key{kind, id}]
	if !ok {
		return nil, nil
	}
	cp := *e
	return &cp, nil
}

// Save implements Cache.
func (c *MemoryCache) Save(ctx context.Context, e *Entry) error {
	if e.ID == "" || e.Kind == "" {
		return errors.New("cache save: kind and id are required")
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	cp := *e
	c.entries[key{e.Kind, e.ID}] = &cp
	return nil
}

// Delete implements Cache.
func (c *MemoryCache) Delete(ctx context.Context, kind Kind, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.entries, key{kind, id})
	return nil
}

// Close implements Cache.
func (c *MemoryCache) Close() error { return nil }

// Ensure MemoryCache implements the Cache interface.
var _ Cache = (*MemoryCache)(nil)
