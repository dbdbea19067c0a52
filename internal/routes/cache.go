package routes

import (
	"fmt"
	"sync"
	"time"

	"github.com/example/medride/internal/fare"
	"github.com/example/medride/internal/models"
)

// Cache is a tiny in-memory cache for route lookups keyed by coords.
// Itineraries repeat heavily (dialysis and therapy schedules), so even a
// short TTL saves most provider calls.
type Cache struct {
	mu    sync.RWMutex
	store map[string]cacheEntry
	ttl   time.Duration
}

type cacheEntry struct {
	v  fare.RouteInfo
	ts time.Time
}

// NewCache creates a cache with the provided TTL.
func NewCache(ttl time.Duration) *Cache {
	return &Cache{store: make(map[string]cacheEntry), ttl: ttl}
}

func keyFor(a, b models.Coord) string {
	return fmtCoord(a) + "->" + fmtCoord(b)
}

func fmtCoord(c models.Coord) string {
	return fmt.Sprintf("%.6f,%.6f", c.Lat, c.Lng)
}

// Get returns the cached value and true if present and not expired.
func (c *Cache) Get(a, b models.Coord) (fare.RouteInfo, bool) {
	k := keyFor(a, b)
	c.mu.RLock()
	e, ok := c.store[k]
	c.mu.RUnlock()
	if !ok {
		return fare.RouteInfo{}, false
	}
	if time.Since(e.ts) > c.ttl {
		c.mu.Lock()
		delete(c.store, k)
		c.mu.Unlock()
		return fare.RouteInfo{}, false
	}
	return e.v, true
}

// Set stores a value in the cache.
func (c *Cache) Set(a, b models.Coord, v fare.RouteInfo) {
	k := keyFor(a, b)
	c.mu.Lock()
	c.store[k] = cacheEntry{v: v, ts: time.Now()}
	c.mu.Unlock()
}

// CachedClient wraps a Client with the cache.
type CachedClient struct {
	Inner Client
	Cache *Cache
}

func (c *CachedClient) Lookup(from, to models.Coord) (fare.RouteInfo, error) {
	if c.Cache != nil {
		if v, ok := c.Cache.Get(from, to); ok {
			return v, nil
		}
	}
	v, err := c.Inner.Lookup(from, to)
	if err != nil {
		return fare.RouteInfo{}, err
	}
	if c.Cache != nil {
		c.Cache.Set(from, to, v)
	}
	return v, nil
}
