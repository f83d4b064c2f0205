package permission

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultCacheTTL is an exported constant or variable used by the authentication engine.
const DefaultCacheTTL = 5 * time.Minute

// CacheConfig defines a public type used by authrbac APIs.
//
// CacheConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type CacheConfig struct {
	TTL time.Duration
	Now func() time.Time
}

// CacheStats defines a public type used by authrbac APIs.
//
// CacheStats instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type CacheStats struct {
	Hits    uint64
	Misses  uint64
	Entries int
}

type cacheEntry struct {
	resolution Resolution
	expiresAt  time.Time
}

// Cache defines a public type used by authrbac APIs.
//
// Cache instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Cache struct {
	aggregator *Aggregator
	ttl        time.Duration
	now        func() time.Time

	mu      sync.RWMutex
	entries map[string]cacheEntry

	hits   atomic.Uint64
	misses atomic.Uint64
}

// NewCache describes the newcache operation and its observable behavior.
//
// NewCache does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func NewCache(aggregator *Aggregator, cfg CacheConfig) *Cache {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultCacheTTL
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Cache{
		aggregator: aggregator,
		ttl:        cfg.TTL,
		now:        cfg.Now,
		entries:    make(map[string]cacheEntry),
	}
}

// Get describes the get operation and its observable behavior.
//
// Get may return an error when input validation, dependency calls, or security checks fail.
// Get does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (c *Cache) Get(ctx context.Context, identityID string) (Resolution, error) {
	now := c.now()

	c.mu.RLock()
	entry, ok := c.entries[identityID]
	c.mu.RUnlock()
	if ok && now.Before(entry.expiresAt) {
		c.hits.Add(1)
		return entry.resolution, nil
	}

	c.misses.Add(1)
	resolution, err := c.aggregator.Resolve(ctx, identityID)
	if err != nil {
		return Resolution{}, err
	}

	// A populate racing an Invalidate is last-write-wins; entries are
	// idempotent reconstructions so either order is correct.
	c.mu.Lock()
	c.entries[identityID] = cacheEntry{resolution: resolution, expiresAt: now.Add(c.ttl)}
	c.mu.Unlock()

	return resolution, nil
}

// Peek describes the peek operation and its observable behavior.
//
// Peek does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (c *Cache) Peek(identityID string) (Resolution, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.entries[identityID]
	if !ok || !c.now().Before(entry.expiresAt) {
		return Resolution{}, false
	}
	return entry.resolution, true
}

// Invalidate describes the invalidate operation and its observable behavior.
//
// Invalidate does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (c *Cache) Invalidate(identityID string) {
	c.mu.Lock()
	delete(c.entries, identityID)
	c.mu.Unlock()
}

// InvalidateAll describes the invalidateall operation and its observable behavior.
//
// InvalidateAll does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (c *Cache) InvalidateAll() {
	c.mu.Lock()
	c.entries = make(map[string]cacheEntry)
	c.mu.Unlock()
}

// Stats describes the stats operation and its observable behavior.
//
// Stats does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (c *Cache) Stats() CacheStats {
	c.mu.RLock()
	entries := len(c.entries)
	c.mu.RUnlock()
	return CacheStats{
		Hits:    c.hits.Load(),
		Misses:  c.misses.Load(),
		Entries: entries,
	}
}
