package otpcache

import (
	"sync"
	"time"
)

type item struct {
	value     string
	expiresAt time.Time
}

// Cache is a small in-process TTL store for one-time codes keyed by
// namespace:phone. Single-process deployment; no external cache needed.
type Cache struct {
	mu    sync.Mutex
	items map[string]item
}

// NewCache creates an empty code cache
func NewCache() *Cache {
	return &Cache{
		items: make(map[string]item),
	}
}

// Set stores a code under key for ttl
func (c *Cache) Set(key, value string, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[key] = item{value: value, expiresAt: time.Now().Add(ttl)}
}

// Get returns the stored code, or "" when absent or expired
func (c *Cache) Get(key string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	it, ok := c.items[key]
	if !ok {
		return ""
	}
	if time.Now().After(it.expiresAt) {
		delete(c.items, key)
		return ""
	}
	return it.value
}

// Del removes the stored code
func (c *Cache) Del(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, key)
}
