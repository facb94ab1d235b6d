package token

import (
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/mitchellh/copystructure"
)

// cacheEntry pairs a token with the expiry the cache was told at insert
// time. The cache is not authoritative about freshness beyond that.
type cacheEntry struct {
	token     *Token
	expiresAt time.Time
}

// Cache is a bounded, LRU-evicting, per-entry-TTL cache of the current
// token per (owner, type). It is shared by all concurrent requests and is
// purely an optimization: every caller must stay correct when it misses.
type Cache struct {
	entries *lru.Cache[string, *cacheEntry]
}

// NewCache creates a cache holding at most size entries. When full, the
// least-recently-accessed entry is evicted.
func NewCache(size int) (*Cache, error) {
	entries, err := lru.New[string, *cacheEntry](size)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize token cache: %w", err)
	}
	return &Cache{entries: entries}, nil
}

func cacheKey(owner string, typ Type) string {
	return fmt.Sprintf("%s-%d", owner, typ)
}

// Get returns the cached token for (owner, type), or nil on a miss.
// An entry whose ttl has elapsed at now is a miss, not a hit with a stale
// value. The returned token is a snapshot; mutating it cannot corrupt the
// cache.
func (c *Cache) Get(owner string, typ Type, now time.Time) *Token {
	entry, ok := c.entries.Get(cacheKey(owner, typ))
	if !ok {
		return nil
	}
	if !entry.expiresAt.After(now) {
		c.entries.Remove(cacheKey(owner, typ))
		return nil
	}
	return snapshot(entry.token)
}

// Put caches the token under (owner, type) with ttl = expires - now.
// A token that is already expired is never cached.
func (c *Cache) Put(owner string, typ Type, t *Token, now time.Time) {
	if t == nil || !t.Expires.After(now) {
		return
	}
	c.entries.Add(cacheKey(owner, typ), &cacheEntry{
		token:     snapshot(t),
		expiresAt: t.Expires,
	})
}

// Evict drops the entry for (owner, type), if any.
func (c *Cache) Evict(owner string, typ Type) {
	c.entries.Remove(cacheKey(owner, typ))
}

// Len returns the number of entries currently held, expired ones included.
func (c *Cache) Len() int {
	return c.entries.Len()
}

// Purge drops every entry.
func (c *Cache) Purge() {
	c.entries.Purge()
}

// snapshot deep-copies a token so cache internals never alias caller
// memory in either direction.
func snapshot(t *Token) *Token {
	cp, err := copystructure.Copy(t)
	if err != nil {
		// Token is a flat value struct, Copy cannot fail on it.
		dup := *t
		return &dup
	}
	return cp.(*Token)
}
