package rules

import (
	"sync"
	"time"
)

// InMemorySnapshotCache is a simple in-memory implementation of SnapshotCache.
// Thread-safe for concurrent access.
type InMemorySnapshotCache struct {
	snap     *Snapshot
	cachedAt time.Time
	config   CacheConfig
	mu       sync.RWMutex
	isValid  bool
}

// NewInMemorySnapshotCache creates a new in-memory snapshot cache.
func NewInMemorySnapshotCache(config CacheConfig) *InMemorySnapshotCache {
	return &InMemorySnapshotCache{
		config:  config,
		isValid: false,
	}
}

// Get retrieves the cached snapshot, nil when invalid or expired. Snapshots
// are immutable so the stored pointer is returned as is.
func (c *InMemorySnapshotCache) Get() *Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if !c.isValid {
		return nil
	}

	if c.config.TTL > 0 {
		if time.Since(c.cachedAt) > c.config.TTL {
			return nil
		}
	}

	return c.snap
}

// Set stores a snapshot.
func (c *InMemorySnapshotCache) Set(snap *Snapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.snap = snap
	c.cachedAt = time.Now()
	c.isValid = true
}

// Invalidate clears the cache.
func (c *InMemorySnapshotCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.isValid = false
	c.snap = nil
}

// IsValid returns true if the cache holds a live snapshot.
func (c *InMemorySnapshotCache) IsValid() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if !c.isValid {
		return false
	}

	if c.config.TTL > 0 {
		return time.Since(c.cachedAt) <= c.config.TTL
	}

	return true
}
