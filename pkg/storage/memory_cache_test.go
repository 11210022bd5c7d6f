package storage

import (
	"testing"
	"time"
)

func TestMemoryCache_SetGet(t *testing.T) {
	cache := NewMemoryCache(10)

	cache.Set("a1b2c3d4", true)
	value, ok := cache.Get("a1b2c3d4")
	if !ok {
		t.Fatal("Expected cached value")
	}
	if value != true {
		t.Errorf("Expected true, got %v", value)
	}

	if _, ok := cache.Get("missing"); ok {
		t.Error("Expected miss for unknown key")
	}
}

func TestMemoryCache_LRUEviction(t *testing.T) {
	cache := NewMemoryCache(2)

	cache.Set("k1", 1)
	cache.Set("k2", 2)
	cache.Get("k1")
	cache.Set("k3", 3)

	if _, ok := cache.Get("k2"); ok {
		t.Error("Expected least recently used key to be evicted")
	}
	if _, ok := cache.Get("k1"); !ok {
		t.Error("Expected recently used key to survive")
	}
	if len(cache.items) != 2 {
		t.Errorf("Expected size 2, got %d", len(cache.items))
	}
}

func TestMemoryCache_TTL(t *testing.T) {
	cache := NewMemoryCacheWithTTL(10, time.Minute)
	defer cache.Close()

	current := time.Now()
	cache.now = func() time.Time { return current }

	cache.Set("k1", true)
	current = current.Add(30 * time.Second)
	if _, ok := cache.Get("k1"); !ok {
		t.Error("Expected entry before TTL")
	}

	current = current.Add(31 * time.Second)
	if _, ok := cache.Get("k1"); ok {
		t.Error("Expected entry to expire after TTL")
	}
	if len(cache.items) != 0 {
		t.Errorf("Expected expired entry removed, size %d", len(cache.items))
	}
}

func TestMemoryCache_CleanupExpired(t *testing.T) {
	cache := NewMemoryCacheWithTTL(10, time.Minute)
	defer cache.Close()

	current := time.Now()
	cache.now = func() time.Time { return current }

	cache.Set("k1", true)
	cache.Set("k2", true)
	current = current.Add(2 * time.Minute)
	cache.Set("k3", true)

	cache.cleanupExpired()
	if len(cache.items) != 1 {
		t.Errorf("Expected 1 live entry, got %d", len(cache.items))
	}
}

func TestMemoryCache_CloseIdempotent(t *testing.T) {
	cache := NewMemoryCacheWithTTL(10, 10*time.Millisecond)
	cache.Close()
	cache.Close()

	cache.Set("k1", 1)
	if _, ok := cache.Get("k1"); !ok {
		t.Error("Expected cache usable after Close")
	}
}
