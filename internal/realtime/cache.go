package realtime

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// FetchFunc loads the authoritative value for one topic.
type FetchFunc func(ctx context.Context) (interface{}, error)

type cacheEntry struct {
	value     interface{}
	fetchedAt time.Time
}

// Cache holds projections keyed by typed topic. Entries expire on a TTL
// as a backstop against missed change events, and concurrent fetches for
// one topic collapse into a single in-flight request. The instance is
// owned by its synchronizer and injected where needed; there is no
// process-wide cache.
//
// Stored values are treated as immutable: writers always replace, never
// mutate, so readers can hold what they got without copying.
type Cache struct {
	mu      sync.RWMutex
	ttl     time.Duration
	entries map[Topic]cacheEntry
	group   singleflight.Group
	now     func() time.Time
}

func NewCache(ttl time.Duration) *Cache {
	return &Cache{
		ttl:     ttl,
		entries: make(map[Topic]cacheEntry),
		now:     time.Now,
	}
}

// Get returns the cached value if present and not past its TTL.
func (c *Cache) Get(topic Topic) (interface{}, bool) {
	c.mu.RLock()
	entry, ok := c.entries[topic]
	c.mu.RUnlock()
	if !ok || c.now().Sub(entry.fetchedAt) > c.ttl {
		return nil, false
	}
	return entry.value, true
}

// GetOrFetch returns the cached value or loads it once. Every waiter on
// the same topic receives the result of the single underlying fetch.
func (c *Cache) GetOrFetch(ctx context.Context, topic Topic, fetch FetchFunc) (interface{}, error) {
	if value, ok := c.Get(topic); ok {
		return value, nil
	}

	value, err, _ := c.group.Do(topic.key(), func() (interface{}, error) {
		// Re-check under the flight: another waiter may have already
		// stored a fresh value before we were scheduled.
		if value, ok := c.Get(topic); ok {
			return value, nil
		}
		value, err := fetch(ctx)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.entries[topic] = cacheEntry{value: value, fetchedAt: c.now()}
		c.mu.Unlock()
		return value, nil
	})
	return value, err
}

// Invalidate drops the entry for a topic.
func (c *Cache) Invalidate(topic Topic) {
	c.mu.Lock()
	delete(c.entries, topic)
	c.mu.Unlock()
}

// InvalidateAll drops every entry.
func (c *Cache) InvalidateAll() {
	c.mu.Lock()
	c.entries = make(map[Topic]cacheEntry)
	c.mu.Unlock()
}
