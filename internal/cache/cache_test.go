package cache

// TTL cache tests: expiry, LRU eviction, recency updates, and idempotent
// population under overwrites.

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestCache_SetAndGet verifies basic set/get within the TTL window.
func TestCache_SetAndGet(t *testing.T) {
	c := New[string](time.Minute, 10)

	c.Set("key", "value")
	got, ok := c.Get("key")
	require.True(t, ok)
	assert.Equal(t, "value", got)
}

// TestCache_MissOnUnknownKey verifies an unknown key is a miss.
func TestCache_MissOnUnknownKey(t *testing.T) {
	c := New[string](time.Minute, 10)

	_, ok := c.Get("nope")
	assert.False(t, ok)
}

// TestCache_TTLExpiry verifies an entry inserted at T is a hit for age < TTL
// and a miss for age >= TTL.
func TestCache_TTLExpiry(t *testing.T) {
	c := New[int](10*time.Second, 10)

	base := time.Unix(1000, 0)
	current := base
	c.SetClock(func() time.Time { return current })

	c.Set("k", 42)

	current = base.Add(9 * time.Second)
	got, ok := c.Get("k")
	require.True(t, ok, "entry younger than TTL must be a hit")
	assert.Equal(t, 42, got)

	current = base.Add(10 * time.Second)
	_, ok = c.Get("k")
	assert.False(t, ok, "entry at exactly TTL age must be a miss")
}

// TestCache_ExpiredEntryIsRemoved verifies expiry also drops the entry.
func TestCache_ExpiredEntryIsRemoved(t *testing.T) {
	c := New[int](time.Second, 10)

	base := time.Unix(1000, 0)
	current := base
	c.SetClock(func() time.Time { return current })

	c.Set("k", 1)
	current = base.Add(2 * time.Second)
	_, ok := c.Get("k")
	require.False(t, ok)
	assert.Equal(t, 0, c.Len())
}

// TestCache_LRUEviction verifies that inserting beyond capacity evicts the
// least-recently-used key first.
func TestCache_LRUEviction(t *testing.T) {
	c := New[int](time.Minute, 3)

	c.Set("a", 1)
	c.Set("b", 2)
	c.Set("c", 3)

	// Touch "a" so "b" becomes the LRU entry.
	_, ok := c.Get("a")
	require.True(t, ok)

	c.Set("d", 4)

	_, ok = c.Get("b")
	assert.False(t, ok, "LRU entry should have been evicted")
	for _, key := range []string{"a", "c", "d"} {
		_, ok := c.Get(key)
		assert.True(t, ok, "key %q should survive eviction", key)
	}
}

// TestCache_OverwriteRefreshes verifies Set on an existing key overwrites
// the value and refreshes its age (last writer wins).
func TestCache_OverwriteRefreshes(t *testing.T) {
	c := New[string](10*time.Second, 10)

	base := time.Unix(1000, 0)
	current := base
	c.SetClock(func() time.Time { return current })

	c.Set("k", "old")
	current = base.Add(8 * time.Second)
	c.Set("k", "new")

	current = base.Add(15 * time.Second) // old would be expired, refresh is not
	got, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, "new", got)
	assert.Equal(t, 1, c.Len())
}

// TestCache_CapacityFloor verifies a non-positive capacity degrades to a
// single slot rather than panicking.
func TestCache_CapacityFloor(t *testing.T) {
	c := New[int](time.Minute, 0)

	c.Set("a", 1)
	c.Set("b", 2)

	_, ok := c.Get("a")
	assert.False(t, ok)
	got, ok := c.Get("b")
	require.True(t, ok)
	assert.Equal(t, 2, got)
}

// TestCache_ConcurrentAccess exercises the lock under parallel writers and
// readers for the race detector.
func TestCache_ConcurrentAccess(t *testing.T) {
	c := New[int](time.Minute, 64)

	done := make(chan struct{})
	for w := 0; w < 4; w++ {
		go func(w int) {
			defer func() { done <- struct{}{} }()
			for i := 0; i < 200; i++ {
				key := fmt.Sprintf("k%d", i%32)
				c.Set(key, i)
				c.Get(key)
			}
		}(w)
	}
	for w := 0; w < 4; w++ {
		<-done
	}
	assert.LessOrEqual(t, c.Len(), 64)
}
