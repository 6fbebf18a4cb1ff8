package activation

import (
	lru "github.com/hashicorp/golang-lru/v2"
)

// defaultAccessHistoryCacheSize bounds the number of entities whose access
// history is kept hot for base-level-activation recomputation, avoiding a
// relational round-trip on every retrieval for frequently-scored entities.
const defaultAccessHistoryCacheSize = 4096

// AccessHistoryCache caches an entity's recent Access events, keyed by
// entity id, so repeated base-level-activation calls in one retrieval pass
// don't re-query EntityAccessLog per candidate.
type AccessHistoryCache struct {
	cache *lru.Cache[int64, []Access]
}

// NewAccessHistoryCache returns a cache with the default capacity.
func NewAccessHistoryCache() *AccessHistoryCache {
	return NewAccessHistoryCacheWithSize(defaultAccessHistoryCacheSize)
}

// NewAccessHistoryCacheWithSize returns a cache holding at most size entries.
func NewAccessHistoryCacheWithSize(size int) *AccessHistoryCache {
	c, _ := lru.New[int64, []Access](size)
	return &AccessHistoryCache{cache: c}
}

// Get returns the cached access history for entityID, if present.
func (c *AccessHistoryCache) Get(entityID int64) ([]Access, bool) {
	return c.cache.Get(entityID)
}

// Put stores (or replaces) the access history for entityID.
func (c *AccessHistoryCache) Put(entityID int64, accesses []Access) {
	c.cache.Add(entityID, accesses)
}

// Invalidate evicts entityID's cached history, called after a new access is
// logged so the next lookup recomputes from the source of truth.
func (c *AccessHistoryCache) Invalidate(entityID int64) {
	c.cache.Remove(entityID)
}
