package cache

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/pcos-assessment-server/internal/domain"
)

// MemoryCache is a size-bounded in-process cache with per-entry expiry.
type MemoryCache struct {
	lru    *expirable.LRU[string, *domain.AssessmentResult]
	hits   atomic.Int64
	misses atomic.Int64
}

// NewMemoryCache creates a cache holding at most maxItems results for ttl each.
// A zero ttl keeps entries until they are evicted.
func NewMemoryCache(maxItems int, ttl time.Duration) (*MemoryCache, error) {
	if maxItems <= 0 {
		return nil, fmt.Errorf("memory cache size must be positive, got %d", maxItems)
	}
	if ttl < 0 {
		return nil, fmt.Errorf("memory cache ttl must not be negative, got %s", ttl)
	}
	return &MemoryCache{
		lru: expirable.NewLRU[string, *domain.AssessmentResult](maxItems, nil, ttl),
	}, nil
}

// Get returns the cached result for key.
func (c *MemoryCache) Get(_ context.Context, key string) (*domain.AssessmentResult, bool, error) {
	result, ok := c.lru.Get(key)
	if !ok {
		c.misses.Add(1)
		return nil, false, nil
	}
	c.hits.Add(1)
	return result, true, nil
}

// Set stores result under key.
func (c *MemoryCache) Set(_ context.Context, key string, result *domain.AssessmentResult) error {
	c.lru.Add(key, result)
	return nil
}

// Ping always succeeds.
func (c *MemoryCache) Ping(context.Context) error {
	return nil
}

// Len returns the number of live entries.
func (c *MemoryCache) Len() int {
	return c.lru.Len()
}

// Stats returns hit and miss counters.
func (c *MemoryCache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

// Purge drops every entry.
func (c *MemoryCache) Purge() {
	c.lru.Purge()
}

// Close purges the cache.
func (c *MemoryCache) Close() error {
	c.lru.Purge()
	return nil
}
