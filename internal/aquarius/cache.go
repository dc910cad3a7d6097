package aquarius

import (
	"sync"
	"time"

	"github.com/mtlprog/eventpass/internal/domain"
)

type cacheEntry struct {
	asset     domain.Asset
	expiresAt time.Time
}

type ddoCache struct {
	mu      sync.RWMutex
	ttl     time.Duration
	entries map[string]cacheEntry
}

func newDDOCache(ttl time.Duration) *ddoCache {
	return &ddoCache{
		ttl:     ttl,
		entries: make(map[string]cacheEntry),
	}
}

func (c *ddoCache) get(did string) (domain.Asset, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[did]
	if !ok || time.Now().After(entry.expiresAt) {
		return domain.Asset{}, false
	}
	return entry.asset, true
}

func (c *ddoCache) set(did string, asset domain.Asset) {
	if c.ttl <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[did] = cacheEntry{
		asset:     asset,
		expiresAt: time.Now().Add(c.ttl),
	}
}

func (c *ddoCache) delete(did string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.entries, did)
}
