package rules

import "time"

// SnapshotCache caches the active rule snapshot between store loads.
// Abstracted so an in-memory cache can later be swapped for Redis or similar.
type SnapshotCache interface {
	// Get retrieves the cached snapshot, nil on miss or expiry.
	Get() *Snapshot

	// Set stores a snapshot.
	Set(snap *Snapshot)

	// Invalidate clears the cache, forcing a reload on next Get.
	Invalidate()

	// IsValid reports whether the cache holds usable data.
	IsValid() bool
}

// CacheConfig holds configuration for cache behavior.
type CacheConfig struct {
	// TTL is the time-to-live for the cached snapshot.
	// Set to 0 for no expiration (manual invalidation only).
	TTL time.Duration
}

// DefaultCacheConfig returns sensible defaults for snapshot caching.
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{
		TTL: 0, // no TTL, invalidate only on explicit reload
	}
}
