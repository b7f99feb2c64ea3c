package frpei

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/singleflight"

	"github.com/meridiansearch/meridian/domain/frpei"
)

const resultCacheSize = 512

// ResultCache is the read-through federated result cache. Entries hold
// canonicalized candidate sets keyed by frpei.Request.CacheKey; ranking
// reruns on every request, so viewer-specific signals stay fresh.
// Concurrent misses for the same key are coalesced into one fetch.
type ResultCache struct {
	cache *expirable.LRU[string, []frpei.Candidate]
	group singleflight.Group
}

// NewResultCache creates a ResultCache. A zero ttl defaults to five
// minutes.
func NewResultCache(ttl time.Duration) *ResultCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &ResultCache{
		cache: expirable.NewLRU[string, []frpei.Candidate](resultCacheSize, nil, ttl),
	}
}

// GetOrFetch returns the cached candidate set for the key, calling fetch
// on a miss. Only one fetch runs per key at a time; other callers wait
// and share its result. Fetch errors are not cached.
func (c *ResultCache) GetOrFetch(ctx context.Context, key string, fetch func(context.Context) ([]frpei.Candidate, error)) ([]frpei.Candidate, bool, error) {
	if cached, ok := c.cache.Get(key); ok {
		return cached, true, nil
	}

	result, err, _ := c.group.Do(key, func() (any, error) {
		// Recheck under the flight: another caller may have populated
		// the entry between our miss and acquiring the flight.
		if cached, ok := c.cache.Get(key); ok {
			return cached, nil
		}
		candidates, err := fetch(ctx)
		if err != nil {
			return nil, err
		}
		c.cache.Add(key, candidates)
		return candidates, nil
	})
	if err != nil {
		return nil, false, err
	}
	return result.([]frpei.Candidate), false, nil
}

// Invalidate drops one cache entry.
func (c *ResultCache) Invalidate(key string) {
	c.cache.Remove(key)
}

// Purge drops every cache entry.
func (c *ResultCache) Purge() {
	c.cache.Purge()
}
