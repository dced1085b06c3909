package rules

import (
	"testing"
	"time"
)

func TestInMemorySnapshotCache(t *testing.T) {
	cache := NewInMemorySnapshotCache(DefaultCacheConfig())

	if cache.Get() != nil {
		t.Error("empty cache should return nil")
	}
	if cache.IsValid() {
		t.Error("empty cache should not be valid")
	}

	snap := newSnapshot([]CompletionRule{{ID: "r1", Active: true}}, nil)
	cache.Set(snap)

	if got := cache.Get(); got != snap {
		t.Error("cache should return the stored snapshot")
	}
	if !cache.IsValid() {
		t.Error("cache with data should be valid")
	}

	cache.Invalidate()
	if cache.Get() != nil {
		t.Error("invalidated cache should return nil")
	}
}

func TestInMemorySnapshotCacheTTL(t *testing.T) {
	cache := NewInMemorySnapshotCache(CacheConfig{TTL: time.Millisecond})
	cache.Set(newSnapshot(nil, nil))

	time.Sleep(5 * time.Millisecond)

	if cache.Get() != nil {
		t.Error("expired cache should return nil")
	}
	if cache.IsValid() {
		t.Error("expired cache should not be valid")
	}
}
