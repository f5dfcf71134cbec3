package cache

import (
	"context"
	"time"

	"github.com/jellydator/ttlcache/v3"
)

// MemoryCache is an in-process TTL cache bounded by entry count.
type MemoryCache struct {
	cache *ttlcache.Cache[string, Entry]
}

// NewMemoryCache starts the expiration loop; call Close to stop it.
// A non-positive capacity leaves the cache unbounded.
func NewMemoryCache(ttl time.Duration, capacity uint64) *MemoryCache {
	opts := []ttlcache.Option[string, Entry]{
		ttlcache.WithTTL[string, Entry](ttl),
		ttlcache.WithDisableTouchOnHit[string, Entry](),
	}
	if capacity > 0 {
		opts = append(opts, ttlcache.WithCapacity[string, Entry](capacity))
	}
	c := ttlcache.New[string, Entry](opts...)
	go c.Start()
	return &MemoryCache{cache: c}
}

func (m *MemoryCache) Get(_ context.Context, key string) (Entry, bool, error) {
	item := m.cache.Get(key)
	if item == nil {
		return Entry{}, false, nil
	}
	return item.Value(), true, nil
}

func (m *MemoryCache) Set(_ context.Context, key string, e Entry) error {
	m.cache.Set(key, e, ttlcache.DefaultTTL)
	return nil
}

// Len returns the number of live entries.
func (m *MemoryCache) Len() int {
	return m.cache.Len()
}

func (m *MemoryCache) Close() error {
	m.cache.Stop()
	return nil
}
