// Package safety provides the query-safety infrastructure that makes
// repeated heavy aggregation queries safe: hard row budgets, wall-clock
// timing with slow-query logging, and best-effort result caching.
package safety

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/brianlane/bizblasts-insights/internal/logging"
)

// Cache is the result cache used by QueryMonitor. Implementations are
// best-effort: a failing backend must never fail a computation.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// CacheStats tracks cache effectiveness counters.
type CacheStats struct {
	Hits      int64 `json:"hits"`
	Misses    int64 `json:"misses"`
	Sets      int64 `json:"sets"`
	Evictions int64 `json:"evictions"`
	Items     int   `json:"items"`
}

// MemoryCacheConfig configures the in-process cache.
type MemoryCacheConfig struct {
	MaxItems        int
	DefaultTTL      time.Duration
	CleanupInterval time.Duration
}

// DefaultMemoryCacheConfig returns the documented defaults.
func DefaultMemoryCacheConfig() MemoryCacheConfig {
	return MemoryCacheConfig{
		MaxItems:        10000,
		DefaultTTL:      15 * time.Minute,
		CleanupInterval: 5 * time.Minute,
	}
}

type memoryEntry struct {
	value      []byte
	expiresAt  time.Time
	accessedAt time.Time
}

// MemoryCache is a thread-safe in-process cache with TTL expiry, a
// background janitor, and oldest-access eviction when full.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]*memoryEntry
	config  MemoryCacheConfig
	stats   CacheStats
	stop    chan struct{}
	closed  bool
}

// NewMemoryCache creates a memory cache and starts its janitor.
func NewMemoryCache(config MemoryCacheConfig) *MemoryCache {
	if config.MaxItems <= 0 {
		config.MaxItems = DefaultMemoryCacheConfig().MaxItems
	}
	c := &MemoryCache{
		entries: make(map[string]*memoryEntry),
		config:  config,
		stop:    make(chan struct{}),
	}
	if config.CleanupInterval > 0 {
		go c.janitor()
	}
	return c
}

// Get retrieves a value, treating expired entries as misses.
func (c *MemoryCache) Get(_ context.Context, key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		c.stats.Misses++
		return nil, false
	}
	if time.Now().After(entry.expiresAt) {
		delete(c.entries, key)
		c.stats.Misses++
		return nil, false
	}

	entry.accessedAt = time.Now()
	c.stats.Hits++
	return entry.value, true
}

// Set stores a value, evicting the least recently accessed entry when full.
func (c *MemoryCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = c.config.DefaultTTL
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}

	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.config.MaxItems {
		c.evictOldest()
	}

	c.entries[key] = &memoryEntry{
		value:      value,
		expiresAt:  time.Now().Add(ttl),
		accessedAt: time.Now(),
	}
	c.stats.Sets++
	return nil
}

// Delete removes a key.
func (c *MemoryCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
	return nil
}

// Stats returns a copy of the cache counters.
func (c *MemoryCache) Stats() CacheStats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	stats := c.stats
	stats.Items = len(c.entries)
	return stats
}

// Close stops the janitor and drops all entries.
func (c *MemoryCache) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.stop)
	c.entries = make(map[string]*memoryEntry)
}

// evictOldest removes the least recently accessed entry. Caller holds the
// write lock.
func (c *MemoryCache) evictOldest() {
	var oldestKey string
	var oldestAt time.Time
	for key, entry := range c.entries {
		if oldestKey == "" || entry.accessedAt.Before(oldestAt) {
			oldestKey = key
			oldestAt = entry.accessedAt
		}
	}
	if oldestKey != "" {
		delete(c.entries, oldestKey)
		c.stats.Evictions++
	}
}

// janitor periodically removes expired entries.
func (c *MemoryCache) janitor() {
	ticker := time.NewTicker(c.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.cleanup()
		case <-c.stop:
			return
		}
	}
}

func (c *MemoryCache) cleanup() {
	now := time.Now()
	c.mu.Lock()
	defer c.mu.Unlock()
	for key, entry := range c.entries {
		if now.After(entry.expiresAt) {
			delete(c.entries, key)
			c.stats.Evictions++
		}
	}
}

// RedisCache backs the result cache with a shared Redis instance so
// replicas reuse each other's computations.
type RedisCache struct {
	client *redis.Client
	logger logging.Logger
}

// NewRedisCache wraps a Redis client as a Cache.
func NewRedisCache(client *redis.Client, logger logging.Logger) *RedisCache {
	if logger == nil {
		logger = logging.NewNoop()
	}
	return &RedisCache{client: client, logger: logger}
}

// Get retrieves a value; backend errors are logged and reported as misses.
func (r *RedisCache) Get(ctx context.Context, key string) ([]byte, bool) {
	value, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			r.logger.WarnContext(ctx, "redis cache read failed", "key", key, "error", err.Error())
		}
		return nil, false
	}
	return value, true
}

// Set stores a value; backend errors are logged, not propagated.
func (r *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := r.client.Set(ctx, key, value, ttl).Err(); err != nil {
		r.logger.WarnContext(ctx, "redis cache write failed", "key", key, "error", err.Error())
	}
	return nil
}

// Delete removes a key; backend errors are logged, not propagated.
func (r *RedisCache) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, key).Err(); err != nil {
		r.logger.WarnContext(ctx, "redis cache delete failed", "key", key, "error", err.Error())
	}
	return nil
}

// NoopCache never stores anything. Used when caching is disabled.
type NoopCache struct{}

// NewNoopCache creates a cache that always misses.
func NewNoopCache() *NoopCache { return &NoopCache{} }

func (n *NoopCache) Get(context.Context, string) ([]byte, bool) { return nil, false }
func (n *NoopCache) Set(context.Context, string, []byte, time.Duration) error {
	return nil
}
func (n *NoopCache) Delete(context.Context, string) error { return nil }
