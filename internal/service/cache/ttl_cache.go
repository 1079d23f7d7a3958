package cache

import (
	"sync"
	"time"
)

// maxEntries bounds the in-process cache. The key space is small (one entry
// per symbol per endpoint) so hitting the bound means a keying bug; evicting
// expired entries first keeps the map from growing unbounded regardless.
const maxEntries = 4096

type entry struct {
	payload []byte
	expires time.Time
}

// TTLCache is the in-process BytesCache used when Redis is not configured.
type TTLCache struct {
	mu      sync.Mutex
	entries map[string]entry
}

func NewTTLCache() *TTLCache {
	return &TTLCache{entries: make(map[string]entry)}
}

func (c *TTLCache) GetBytes(key string) ([]byte, bool, error) {
	now := time.Now()
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return nil, false, nil
	}
	if now.After(e.expires) {
		delete(c.entries, key)
		return nil, false, nil
	}
	return e.payload, true, nil
}

func (c *TTLCache) SetBytes(key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	now := time.Now()
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.entries) >= maxEntries {
		c.sweep(now)
	}
	c.entries[key] = entry{payload: value, expires: now.Add(ttl)}
	return nil
}

// sweep drops expired entries; if everything is still live it clears the map
// rather than letting it grow past the bound.
func (c *TTLCache) sweep(now time.Time) {
	for k, e := range c.entries {
		if now.After(e.expires) {
			delete(c.entries, k)
		}
	}
	if len(c.entries) >= maxEntries {
		c.entries = make(map[string]entry)
	}
}
