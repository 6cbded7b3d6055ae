package marketdata

import (
	"sync"
	"time"

	"github.com/avasek/simtrade/shared"
)

const (
	// defaultMaxCacheEntries bounds the number of cached windows.
	defaultMaxCacheEntries = 64
	// defaultCacheTTL is the lifetime of a cached window.
	defaultCacheTTL = time.Minute * 15
)

// Cache defines the requirements for caching market data windows. The cache
// is injected into the window provider rather than held as module state.
type Cache interface {
	// Get returns the cached window for the provided key.
	Get(key string) ([]shared.Candlestick, bool)
	// Set caches the provided window under the given key.
	Set(key string, candles []shared.Candlestick)
	// Clear removes all cached windows.
	Clear()
}

type cacheEntry struct {
	candles  []shared.Candlestick
	storedAt time.Time
}

// MemoryCache is a bounded in-memory window cache with entry expiry. When
// full, the oldest entry is evicted.
type MemoryCache struct {
	maxEntries int
	ttl        time.Duration
	mtx        sync.Mutex
	entries    map[string]cacheEntry
	order      []string
}

// Ensure the memory cache implements the Cache interface.
var _ Cache = (*MemoryCache)(nil)

// NewMemoryCache initializes a new memory cache. Non-positive limits fall
// back to the defaults.
func NewMemoryCache(maxEntries int, ttl time.Duration) *MemoryCache {
	if maxEntries <= 0 {
		maxEntries = defaultMaxCacheEntries
	}
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}

	return &MemoryCache{
		maxEntries: maxEntries,
		ttl:        ttl,
		entries:    make(map[string]cacheEntry),
		order:      make([]string, 0, maxEntries),
	}
}

// removeKey drops the provided key from the insertion order.
func (c *MemoryCache) removeKey(key string) {
	for idx := range c.order {
		if c.order[idx] == key {
			c.order = append(c.order[:idx], c.order[idx+1:]...)
			return
		}
	}
}

// Get returns the cached window for the provided key.
func (c *MemoryCache) Get(key string) ([]shared.Candlestick, bool) {
	c.mtx.Lock()
	defer c.mtx.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return nil, false
	}

	if time.Since(entry.storedAt) > c.ttl {
		delete(c.entries, key)
		c.removeKey(key)
		return nil, false
	}

	return entry.candles, true
}

// Set caches the provided window under the given key.
func (c *MemoryCache) Set(key string, candles []shared.Candlestick) {
	c.mtx.Lock()
	defer c.mtx.Unlock()

	if _, ok := c.entries[key]; ok {
		c.removeKey(key)
	}

	for len(c.entries) >= c.maxEntries && len(c.order) > 0 {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.entries, oldest)
	}

	c.entries[key] = cacheEntry{candles: candles, storedAt: time.Now()}
	c.order = append(c.order, key)
}

// Clear removes all cached windows.
func (c *MemoryCache) Clear() {
	c.mtx.Lock()
	defer c.mtx.Unlock()

	c.entries = make(map[string]cacheEntry)
	c.order = c.order[:0]
}
