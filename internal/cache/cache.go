// Package cache provides an in-process TTL cache for backend resources.
// It uses patrickmn/go-cache and serves as the invalidation target for
// live events, so stale appointment and queue views are refetched.
package cache

import (
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/rs/zerolog"

	"github.com/agentstation/queuelink/pkg/constants"
	"github.com/agentstation/queuelink/pkg/logging"
	"github.com/agentstation/queuelink/pkg/notify"
)

// ResourceCache caches fetched resources by key.
type ResourceCache struct {
	store  *gocache.Cache
	logger *zerolog.Logger
}

var _ notify.Invalidator = (*ResourceCache)(nil)

// New creates a cache with the given TTL and cleanup interval. Zero values
// use the defaults from constants.
func New(defaultTTL, cleanupInterval time.Duration, logger *zerolog.Logger) *ResourceCache {
	if defaultTTL <= 0 {
		defaultTTL = constants.CacheTTL
	}
	if cleanupInterval <= 0 {
		cleanupInterval = constants.CacheCleanupInterval
	}
	return &ResourceCache{
		store:  gocache.New(defaultTTL, cleanupInterval),
		logger: logging.Component(logger, "cache"),
	}
}

// Get retrieves a value from the cache.
func (c *ResourceCache) Get(key string) (any, bool) {
	return c.store.Get(key)
}

// Set stores a value with the default TTL.
func (c *ResourceCache) Set(key string, value any) {
	c.store.Set(key, value, gocache.DefaultExpiration)
}

// SetWithTTL stores a value with a custom TTL.
func (c *ResourceCache) SetWithTTL(key string, value any, ttl time.Duration) {
	c.store.Set(key, value, ttl)
}

// Invalidate implements notify.Invalidator. Keys are hierarchical:
// invalidating "appointments" also drops "appointments:user:u1".
func (c *ResourceCache) Invalidate(key string) {
	prefix := key + ":"
	dropped := 0
	for k := range c.store.Items() {
		if k == key || strings.HasPrefix(k, prefix) {
			c.store.Delete(k)
			dropped++
		}
	}
	c.logger.Debug().Str("key", key).Int("dropped", dropped).Msg("Cache invalidated")
}

// Clear removes all items.
func (c *ResourceCache) Clear() {
	c.store.Flush()
}

// ItemCount returns the number of items, including expired ones not yet
// cleaned up.
func (c *ResourceCache) ItemCount() int {
	return c.store.ItemCount()
}

// Stats returns cache statistics.
type Stats struct {
	ItemCount int `json:"item_count"`
}

// GetStats returns current cache statistics.
func (c *ResourceCache) GetStats() Stats {
	return Stats{ItemCount: c.store.ItemCount()}
}
