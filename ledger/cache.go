/*
cache.go - Keyed, time-boxed read cache with pattern invalidation

PURPOSE:
  Short-lived storage for read results. Two cache classes exist:

  - Entity cache: ~5 minute TTL, unbounded
  - Search cache: ~2 minute TTL, bounded, FIFO eviction

  Getting stale data out of here after a mutation is a CORRECTNESS bug,
  not a performance one: every successful create/update/delete must
  invalidate at least the single-entity key and the listing namespace.

EVICTION:
  - Expired entries are evicted lazily on access, not by a timer.
  - Bounded caches evict FIFO by insertion order. Recency of reads is
    deliberately irrelevant; re-setting an existing key keeps its slot.

PATTERNS:
  InvalidateByPattern takes a glob ("transactions:*") and drops every
  matching key. Used after mutations to clear all list/filter results
  that might include the changed record without enumerating them.

LIFECYCLE:
  Caches are constructed explicitly and injected; there is no package
  singleton. Tests get isolated instances for free.
*/
package ledger

import (
	"container/list"
	"path"
	"sync"
	"time"
)

// Default TTLs and bounds for the two cache classes.
const (
	EntityCacheTTL         = 5 * time.Minute
	SearchCacheTTL         = 2 * time.Minute
	DefaultSearchCacheSize = 50
)

// CacheEntry is one cached value with its insertion timestamp.
type CacheEntry struct {
	Key        string
	Data       any
	InsertedAt time.Time
}

// Cache is a TTL cache with optional FIFO size bounding.
// Safe for concurrent use. Process-local only: no cross-instance
// consistency is provided or implied.
type Cache struct {
	mu         sync.Mutex
	ttl        time.Duration
	maxEntries int // 0 = unbounded
	entries    map[string]*list.Element
	order      *list.List // insertion order, front = oldest

	// Now is the clock. Overridable in tests.
	Now func() time.Time
}

// NewCache returns an unbounded TTL cache.
func NewCache(ttl time.Duration) *Cache {
	return &Cache{
		ttl:     ttl,
		entries: make(map[string]*list.Element),
		order:   list.New(),
		Now:     time.Now,
	}
}

// NewBoundedCache returns a TTL cache that holds at most maxEntries
// values, evicting the oldest-inserted entry when full.
func NewBoundedCache(ttl time.Duration, maxEntries int) *Cache {
	c := NewCache(ttl)
	c.maxEntries = maxEntries
	return c
}

// Get returns the cached data for key, or false if the key is missing or
// its TTL has elapsed. Expired entries are evicted on the spot.
func (c *Cache) Get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	entry := el.Value.(*CacheEntry)
	if c.Now().Sub(entry.InsertedAt) > c.ttl {
		c.removeLocked(key, el)
		return nil, false
	}
	return entry.Data, true
}

// Set stores data under key. Re-setting an existing key refreshes its TTL
// but keeps its FIFO position.
func (c *Cache) Set(key string, data any) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.entries[key]; ok {
		entry := el.Value.(*CacheEntry)
		entry.Data = data
		entry.InsertedAt = c.Now()
		return
	}

	entry := &CacheEntry{Key: key, Data: data, InsertedAt: c.Now()}
	c.entries[key] = c.order.PushBack(entry)

	for c.maxEntries > 0 && c.order.Len() > c.maxEntries {
		oldest := c.order.Front()
		c.removeLocked(oldest.Value.(*CacheEntry).Key, oldest)
	}
}

// Invalidate drops a single key.
func (c *Cache) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.entries[key]; ok {
		c.removeLocked(key, el)
	}
}

// InvalidateByPattern drops every key matching the glob pattern and
// returns how many were removed. Malformed patterns match nothing.
func (c *Cache) InvalidateByPattern(pattern string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for key, el := range c.entries {
		ok, err := path.Match(pattern, key)
		if err != nil {
			return removed
		}
		if ok {
			c.removeLocked(key, el)
			removed++
		}
	}
	return removed
}

// Clear drops everything.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*list.Element)
	c.order.Init()
}

// Len reports the number of entries currently held, including any whose
// TTL has elapsed but which have not been touched since.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *Cache) removeLocked(key string, el *list.Element) {
	c.order.Remove(el)
	delete(c.entries, key)
}
