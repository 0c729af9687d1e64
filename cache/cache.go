// server/cache/cache.go
package cache

import (
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// DefaultTTL applies to item listings and folder counts.
const DefaultTTL = 30 * time.Second

type entry struct {
	value    any
	expireAt time.Time // zero => no TTL
}

// Cache is a process-wide key/value store with lazy per-entry expiry.
// It never fetches on its own; callers repopulate on a miss, preferably
// through GetOrLoad.
type Cache struct {
	mu      sync.Mutex
	entries map[string]entry
	// generation is bumped by every invalidation so a load that started
	// before it cannot store a stale value afterwards.
	generation uint64
	now        func() time.Time
	group      singleflight.Group
	// loading counts running loads per key; invalidation forgets them so
	// later callers start a fresh load instead of joining a stale one.
	loading map[string]int
}

type Option func(*Cache)

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		c.now = now
	}
}

func New(opts ...Option) *Cache {
	c := &Cache{
		entries: make(map[string]entry),
		loading: make(map[string]int),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns the value stored under key unless it is missing or expired.
func (c *Cache) Get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.getLocked(key)
}

func (c *Cache) getLocked(key string) (any, bool) {
	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if !e.expireAt.IsZero() && !c.now().Before(e.expireAt) {
		delete(c.entries, key)
		return nil, false
	}
	return e.value, true
}

// Set stores value under key. A ttl <= 0 keeps the entry until it is
// invalidated or the cache is cleared.
func (c *Cache) Set(key string, value any, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.setLocked(key, value, ttl)
}

func (c *Cache) setLocked(key string, value any, ttl time.Duration) {
	e := entry{value: value}
	if ttl > 0 {
		e.expireAt = c.now().Add(ttl)
	}
	c.entries[key] = e
}

// Invalidate removes every entry whose key satisfies match.
func (c *Cache) Invalidate(match func(key string) bool) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.generation++
	removed := 0
	for key := range c.entries {
		if match(key) {
			delete(c.entries, key)
			removed++
		}
	}
	for key := range c.loading {
		if match(key) {
			c.group.Forget(key)
		}
	}
	return removed
}

// InvalidatePrefix removes entries whose key starts with any of prefixes.
func (c *Cache) InvalidatePrefix(prefixes ...string) int {
	return c.Invalidate(func(key string) bool {
		for _, p := range prefixes {
			if strings.HasPrefix(key, p) {
				return true
			}
		}
		return false
	})
}

// Clear drops every entry.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.generation++
	c.entries = make(map[string]entry)
	for key := range c.loading {
		c.group.Forget(key)
	}
}

// Len counts stored entries, expired ones included until they are read.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// GetOrLoad returns the cached value for key or calls load once, even when
// several callers miss at the same time, and stores its result. The result
// is not stored if an invalidation happened while load was running, and
// callers arriving after that invalidation do not share the running load.
func (c *Cache) GetOrLoad(key string, ttl time.Duration, load func() (any, error)) (any, error) {
	if v, ok := c.Get(key); ok {
		return v, nil
	}

	v, err, _ := c.group.Do(key, func() (any, error) {
		c.mu.Lock()
		if v, ok := c.getLocked(key); ok {
			c.mu.Unlock()
			return v, nil
		}
		gen := c.generation
		c.loading[key]++
		c.mu.Unlock()

		v, err := load()

		c.mu.Lock()
		defer c.mu.Unlock()
		if c.loading[key]--; c.loading[key] == 0 {
			delete(c.loading, key)
		}
		if err != nil {
			return nil, err
		}
		if c.generation == gen {
			c.setLocked(key, v, ttl)
		}
		return v, nil
	})
	return v, err
}
