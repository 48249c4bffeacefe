// Package cache provides a bounded in-memory TTL cache with LRU eviction.
//
// DESIGN: Each cache instance owns its own TTL, capacity, and eviction
// state; instances never share state. Entries expire after the TTL and the
// least-recently-used entry is evicted when the capacity bound is reached.
// Construction is explicit and instances are injectable - no package-level
// singletons.
package cache

import (
	"container/list"
	"sync"
	"time"
)

// TTL is a bounded key-value cache with per-entry expiry and LRU eviction.
// Safe for concurrent use. Population is idempotent: duplicate Set calls
// for the same key overwrite, last writer wins.
type TTL[V any] struct {
	mu       sync.Mutex
	ttl      time.Duration
	capacity int
	entries  map[string]*list.Element
	order    *list.List // front = most recently used
	now      func() time.Time
}

type entry[V any] struct {
	key      string
	value    V
	storedAt time.Time
}

// New creates a cache with the given TTL and capacity. Capacity must be
// positive; a zero or negative capacity is treated as 1 so a misconfigured
// cache degrades to a single-slot cache instead of crashing callers.
func New[V any](ttl time.Duration, capacity int) *TTL[V] {
	if capacity < 1 {
		capacity = 1
	}
	return &TTL[V]{
		ttl:      ttl,
		capacity: capacity,
		entries:  make(map[string]*list.Element),
		order:    list.New(),
		now:      time.Now,
	}
}

// Get returns the cached value if present and younger than the TTL.
// A hit marks the entry as most recently used. An expired entry is
// removed and reported as a miss.
func (c *TTL[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	el, ok := c.entries[key]
	if !ok {
		return zero, false
	}

	e := el.Value.(*entry[V])
	if c.now().Sub(e.storedAt) >= c.ttl {
		c.order.Remove(el)
		delete(c.entries, key)
		return zero, false
	}

	c.order.MoveToFront(el)
	return e.value, true
}

// Set stores a value, refreshing the entry's timestamp and recency. When
// the cache is at capacity the least-recently-used entry is evicted first.
func (c *TTL[V]) Set(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.entries[key]; ok {
		e := el.Value.(*entry[V])
		e.value = value
		e.storedAt = c.now()
		c.order.MoveToFront(el)
		return
	}

	if len(c.entries) >= c.capacity {
		c.evictOldest()
	}

	el := c.order.PushFront(&entry[V]{key: key, value: value, storedAt: c.now()})
	c.entries[key] = el
}

// Delete removes an entry if present.
func (c *TTL[V]) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.entries[key]; ok {
		c.order.Remove(el)
		delete(c.entries, key)
	}
}

// Len returns the number of stored entries, including any not yet
// swept expired ones.
func (c *TTL[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// evictOldest removes the LRU entry. Caller holds the lock.
func (c *TTL[V]) evictOldest() {
	el := c.order.Back()
	if el == nil {
		return
	}
	e := el.Value.(*entry[V])
	c.order.Remove(el)
	delete(c.entries, e.key)
}

// SetClock overrides the time source. Test hook.
func (c *TTL[V]) SetClock(now func() time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
}
