package checker

import (
	"time"

	"github.com/Yiling-J/theine-go"
)

// Cache stores check results keyed by Request.Key.
type Cache interface {
	Get(key string) (allowed bool, ok bool)
	Set(key string, allowed bool)
}

// DefaultCacheSize bounds the number of cached results.
const DefaultCacheSize = 10_000

// MemoryCache is an in-process Cache backed by theine. Entries are evicted by
// size and, when a TTL is set, by age.
type MemoryCache struct {
	c   *theine.Cache[string, bool]
	ttl time.Duration
}

// CacheOption configures a MemoryCache.
type CacheOption func(*cacheConfig)

type cacheConfig struct {
	size int64
	ttl  time.Duration
}

// WithTTL expires entries after ttl. Zero keeps entries until evicted.
func WithTTL(ttl time.Duration) CacheOption {
	return func(c *cacheConfig) { c.ttl = ttl }
}

// WithMaxEntries bounds the cache. Non-positive values keep the default.
func WithMaxEntries(n int64) CacheOption {
	return func(c *cacheConfig) {
		if n > 0 {
			c.size = n
		}
	}
}

// NewCache builds a MemoryCache.
func NewCache(opts ...CacheOption) (*MemoryCache, error) {
	cfg := cacheConfig{size: DefaultCacheSize}
	for _, opt := range opts {
		opt(&cfg)
	}
	c, err := theine.NewBuilder[string, bool](cfg.size).Build()
	if err != nil {
		return nil, err
	}
	return &MemoryCache{c: c, ttl: cfg.ttl}, nil
}

// Get returns the cached result for key.
func (m *MemoryCache) Get(key string) (bool, bool) {
	return m.c.Get(key)
}

// Set caches allowed for key.
func (m *MemoryCache) Set(key string, allowed bool) {
	if m.ttl > 0 {
		m.c.SetWithTTL(key, allowed, 1, m.ttl)
		return
	}
	m.c.Set(key, allowed, 1)
}

// Delete drops the result for key.
func (m *MemoryCache) Delete(key string) {
	m.c.Delete(key)
}

// Close stops the cache's background maintenance.
func (m *MemoryCache) Close() {
	m.c.Close()
}

var _ Cache = (*MemoryCache)(nil)
