package cache

import (
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// LocalCache is the per-process tier: a bounded LRU with entry TTLs.
// It keeps queries answerable when the shared tier is unreachable.
type LocalCache struct {
	lru *lru.Cache[string, localEntry]
	now func() time.Time
}

type localEntry struct {
	value   []byte
	expires time.Time
}

// LocalOption configures a LocalCache.
type LocalOption func(*LocalCache)

// WithClock overrides the time source, used to test expiry.
func WithClock(now func() time.Time) LocalOption {
	return func(c *LocalCache) { c.now = now }
}

// NewLocal creates a local cache holding at most size entries.
func NewLocal(size int, opts ...LocalOption) (*LocalCache, error) {
	inner, err := lru.New[string, localEntry](size)
	if err != nil {
		return nil, err
	}
	c := &LocalCache{lru: inner, now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Get returns the cached value for key if present and unexpired.
func (c *LocalCache) Get(key string) ([]byte, bool) {
	entry, ok := c.lru.Get(key)
	if !ok {
		return nil, false
	}
	if c.now().After(entry.expires) {
		c.lru.Remove(key)
		return nil, false
	}
	return entry.value, true
}

// Set stores value under key for ttl.
func (c *LocalCache) Set(key string, value []byte, ttl time.Duration) {
	c.lru.Add(key, localEntry{value: value, expires: c.now().Add(ttl)})
}

// Remove drops key if present.
func (c *LocalCache) Remove(key string) {
	c.lru.Remove(key)
}

// Purge drops every entry.
func (c *LocalCache) Purge() {
	c.lru.Purge()
}

// Len returns the current entry count, counting expired entries not yet
// evicted.
func (c *LocalCache) Len() int {
	return c.lru.Len()
}
