package bus

import (
	"sync"
	"time"
)

// DedupeCache remembers recently seen keys so retried submissions are
// dropped instead of enqueued twice. Entries expire after ttl; the map
// is capped so a flood of unique keys cannot grow it without bound.
type DedupeCache struct {
	mu         sync.Mutex
	seen       map[string]time.Time
	ttl        time.Duration
	maxEntries int
	now        func() time.Time
}

func NewDedupeCache(ttl time.Duration, maxEntries int) *DedupeCache {
	if maxEntries <= 0 {
		maxEntries = 10000
	}
	return &DedupeCache{
		seen:       make(map[string]time.Time),
		ttl:        ttl,
		maxEntries: maxEntries,
		now:        time.Now,
	}
}

// Seen records key and reports whether it was already present and
// unexpired. The check and insert are atomic.
func (c *DedupeCache) Seen(key string) bool {
	if key == "" {
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if at, ok := c.seen[key]; ok && now.Sub(at) < c.ttl {
		return true
	}

	if len(c.seen) >= c.maxEntries {
		c.evictExpired(now)
		// Still full after eviction means the cache is all live entries;
		// dropping dedupe for new keys is safer than unbounded growth.
		if len(c.seen) >= c.maxEntries {
			return false
		}
	}

	c.seen[key] = now
	return false
}

func (c *DedupeCache) evictExpired(now time.Time) {
	for key, at := range c.seen {
		if now.Sub(at) >= c.ttl {
			delete(c.seen, key)
		}
	}
}
