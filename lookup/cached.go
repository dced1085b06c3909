package lookup

import (
	"context"
	"sync"
	"time"
)

// CachedSource decorates an Adapter with a TTL cache keyed on the full
// lookup (table, field, conditions). Thread-safe for concurrent access.
type CachedSource struct {
	next    Adapter
	ttl     time.Duration
	mu      sync.RWMutex
	entries map[string]cacheEntry
}

type cacheEntry struct {
	value    any
	cachedAt time.Time
}

// NewCachedSource wraps next with a TTL cache. A ttl of 0 disables expiry.
func NewCachedSource(next Adapter, ttl time.Duration) *CachedSource {
	return &CachedSource{
		next:    next,
		ttl:     ttl,
		entries: make(map[string]cacheEntry),
	}
}

// Lookup serves from cache when fresh, otherwise delegates and stores the
// result. Errors from the underlying source are never cached.
func (c *CachedSource) Lookup(ctx context.Context, table, field string, conds Conditions) (any, error) {
	key := Key(table, field, conds)

	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()

	if ok && (c.ttl == 0 || time.Since(entry.cachedAt) <= c.ttl) {
		return entry.value, nil
	}

	value, err := c.next.Lookup(ctx, table, field, conds)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.entries[key] = cacheEntry{value: value, cachedAt: time.Now()}
	c.mu.Unlock()

	return value, nil
}

// Invalidate drops every cached entry.
func (c *CachedSource) Invalidate() {
	c.mu.Lock()
	c.entries = make(map[string]cacheEntry)
	c.mu.Unlock()
}
