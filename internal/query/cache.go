package query

import (
	"sync"
	"sync/atomic"

	"github.com/golang/groupcache/lru"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/sells-group/conflict-dash/internal/monitoring"
)

// ResultCache is a concurrency-safe LRU of dashboards keyed by selection.
// Concurrent misses for the same key share one computation.
type ResultCache struct {
	mu      sync.Mutex
	entries *lru.Cache
	group   singleflight.Group
	metrics *monitoring.Metrics

	maxEntries int
	hits       atomic.Int64
	misses     atomic.Int64
}

// CacheStats contains cache performance statistics.
type CacheStats struct {
	Entries    int     `json:"entries"`
	MaxEntries int     `json:"max_entries"`
	Hits       int64   `json:"hits"`
	Misses     int64   `json:"misses"`
	HitRate    float64 `json:"hit_rate"`
}

// NewResultCache creates a cache holding at most maxEntries dashboards.
// maxEntries <= 0 returns nil, which disables caching.
func NewResultCache(maxEntries int, m *monitoring.Metrics) *ResultCache {
	if maxEntries <= 0 {
		return nil
	}
	c := &ResultCache{
		entries:    lru.New(maxEntries),
		metrics:    m,
		maxEntries: maxEntries,
	}
	c.entries.OnEvicted = func(key lru.Key, _ any) {
		zap.L().Debug("dashboard cache eviction", zap.Any("key", key))
		c.metrics.CacheEvicted()
	}
	return c
}

// GetOrCompute returns the cached dashboard for key, computing and storing
// it on a miss. The second result reports a hit.
func (c *ResultCache) GetOrCompute(key string, compute func() *Dashboard) (*Dashboard, bool) {
	if c == nil {
		return compute(), false
	}

	c.mu.Lock()
	if v, ok := c.entries.Get(key); ok {
		c.mu.Unlock()
		c.hits.Add(1)
		c.metrics.CacheHit()
		return v.(*Dashboard), true
	}
	c.mu.Unlock()

	c.misses.Add(1)
	c.metrics.CacheMiss()
	v, _, _ := c.group.Do(key, func() (any, error) {
		d := compute()
		c.mu.Lock()
		c.entries.Add(key, d)
		c.mu.Unlock()
		return d, nil
	})
	return v.(*Dashboard), false
}

// Purge drops every entry.
func (c *ResultCache) Purge() {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries.Clear()
}

// Stats returns cache performance statistics.
func (c *ResultCache) Stats() CacheStats {
	if c == nil {
		return CacheStats{}
	}
	c.mu.Lock()
	n := c.entries.Len()
	c.mu.Unlock()

	hits, misses := c.hits.Load(), c.misses.Load()
	s := CacheStats{Entries: n, MaxEntries: c.maxEntries, Hits: hits, Misses: misses}
	if total := hits + misses; total > 0 {
		s.HitRate = float64(hits) / float64(total)
	}
	return s
}
