package cache

import (
	"context"
	"sync"
	"time"
)

// MemoryCacheConfig configures MemoryCache.
type MemoryCacheConfig struct {
	// MaxEntries bounds the number of stored responses. When full, expired
	// entries are swept and then the entry closest to expiry is evicted.
	// Default: 1000
	MaxEntries int
}

// MemoryCache is an in-memory Cache.
type MemoryCache struct {
	config MemoryCacheConfig
	now    func() time.Time

	mu      sync.RWMutex
	entries map[string]*cacheEntry
}

type cacheEntry struct {
	value     []byte
	expiresAt time.Time
}

// NewMemoryCache creates a new in-memory cache.
func NewMemoryCache(config MemoryCacheConfig) *MemoryCache {
	if config.MaxEntries <= 0 {
		config.MaxEntries = 1000
	}
	return &MemoryCache{
		config:  config,
		now:     time.Now,
		entries: make(map[string]*cacheEntry),
	}
}

// Get returns (nil, false) on miss or expiry.
func (c *MemoryCache) Get(_ context.Context, key string) ([]byte, bool) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}

	if !c.now().Before(entry.expiresAt) {
		c.mu.Lock()
		if cur, ok := c.entries[key]; ok && cur == entry {
			delete(c.entries, key)
		}
		c.mu.Unlock()
		return nil, false
	}
	return entry.value, true
}

// Set stores value for ttl. A non-positive TTL stores nothing.
func (c *MemoryCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	if ttl <= 0 {
		return nil
	}

	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.config.MaxEntries {
		c.evictLocked(now)
	}
	c.entries[key] = &cacheEntry{
		value:     append([]byte(nil), value...),
		expiresAt: now.Add(ttl),
	}
	return nil
}

// Delete removes a value. Idempotent.
func (c *MemoryCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
	return nil
}

// Len returns the number of stored entries, expired ones included.
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *MemoryCache) evictLocked(now time.Time) {
	var (
		oldestKey string
		oldest    time.Time
	)
	for k, e := range c.entries {
		if !now.Before(e.expiresAt) {
			delete(c.entries, k)
			continue
		}
		if oldestKey == "" || e.expiresAt.Before(oldest) {
			oldestKey, oldest = k, e.expiresAt
		}
	}
	if len(c.entries) >= c.config.MaxEntries && oldestKey != "" {
		delete(c.entries, oldestKey)
	}
}

var _ Cache = (*MemoryCache)(nil)
