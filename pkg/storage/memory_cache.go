package storage

import (
	"container/list"
	"sync"
	"time"
)

type cacheItem struct {
	key       string
	value     interface{}
	timestamp time.Time
	element   *list.Element
}

// MemoryCache is an LRU cache with optional TTL. The key rotator uses it to
// remember credentials that reported zero quota.
type MemoryCache struct {
	maxSize int
	items   map[string]*cacheItem
	lruList *list.List
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time

	stopOnce sync.Once
	stop     chan struct{}
}

// NewMemoryCache creates a cache without expiry.
func NewMemoryCache(maxSize int) *MemoryCache {
	return NewMemoryCacheWithTTL(maxSize, 0)
}

// NewMemoryCacheWithTTL creates a cache whose entries expire ttl after their
// last Set. A background sweep runs while ttl > 0; call Close to stop it.
func NewMemoryCacheWithTTL(maxSize int, ttl time.Duration) *MemoryCache {
	if maxSize <= 0 {
		maxSize = 1024
	}
	cache := &MemoryCache{
		maxSize: maxSize,
		items:   make(map[string]*cacheItem),
		lruList: list.New(),
		ttl:     ttl,
		now:     time.Now,
		stop:    make(chan struct{}),
	}

	if ttl > 0 {
		go cache.cleanupRoutine()
	}

	return cache
}

func (mc *MemoryCache) Set(key string, value interface{}) error {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	now := mc.now()

	if item, exists := mc.items[key]; exists {
		item.value = value
		item.timestamp = now
		mc.lruList.MoveToFront(item.element)
		return nil
	}

	item := &cacheItem{
		key:       key,
		value:     value,
		timestamp: now,
	}
	item.element = mc.lruList.PushFront(item)
	mc.items[key] = item

	if len(mc.items) > mc.maxSize {
		mc.evictOldest()
	}

	return nil
}

// Get returns a live entry and marks it recently used. Expired entries are
// removed on access.
func (mc *MemoryCache) Get(key string) (interface{}, bool) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	item, exists := mc.items[key]
	if !exists {
		return nil, false
	}

	if mc.expired(item, mc.now()) {
		mc.deleteItem(item)
		return nil, false
	}

	mc.lruList.MoveToFront(item.element)
	return item.value, true
}

// Close stops the background sweep. The cache stays usable.
func (mc *MemoryCache) Close() {
	mc.stopOnce.Do(func() { close(mc.stop) })
}

func (mc *MemoryCache) expired(item *cacheItem, now time.Time) bool {
	return mc.ttl > 0 && now.Sub(item.timestamp) > mc.ttl
}

func (mc *MemoryCache) evictOldest() {
	if element := mc.lruList.Back(); element != nil {
		mc.deleteItem(element.Value.(*cacheItem))
	}
}

func (mc *MemoryCache) deleteItem(item *cacheItem) {
	delete(mc.items, item.key)
	mc.lruList.Remove(item.element)
}

func (mc *MemoryCache) cleanupRoutine() {
	ticker := time.NewTicker(mc.ttl / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			mc.cleanupExpired()
		case <-mc.stop:
			return
		}
	}
}

func (mc *MemoryCache) cleanupExpired() {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	now := mc.now()
	for _, item := range mc.items {
		if mc.expired(item, now) {
			mc.deleteItem(item)
		}
	}
}
