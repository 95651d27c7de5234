// Package cache provides the small in-process caches that survive across
// warm Lambda invocations. They are owned by the dependency container, not
// package globals, so tests can construct and clear them explicitly.
package cache

import (
	"sync"
	"time"
)

// BoundedCache is a TTL cache with a capacity bound. When full it evicts
// the oldest-inserted entry (insertion-time order, not strict LRU: a read
// does not refresh an entry's position).
type BoundedCache struct {
	mu       sync.Mutex
	items    map[string]boundedItem
	order    []string
	capacity int
	ttl      time.Duration

	now func() time.Time
}

type boundedItem struct {
	value     interface{}
	expiresAt time.Time
}

// NewBoundedCache creates a cache holding at most capacity entries, each
// valid for ttl after insertion.
func NewBoundedCache(capacity int, ttl time.Duration) *BoundedCache {
	return &BoundedCache{
		items:    make(map[string]boundedItem),
		order:    make([]string, 0, capacity),
		capacity: capacity,
		ttl:      ttl,
		now:      time.Now,
	}
}

// Get retrieves a value. Expired entries read as absent.
func (c *BoundedCache) Get(key string) (interface{}, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	item, exists := c.items[key]
	if !exists {
		return nil, false
	}
	if c.now().After(item.expiresAt) {
		c.remove(key)
		return nil, false
	}
	return item.value, true
}

// Set stores a value, evicting the oldest-inserted entry when at capacity.
func (c *BoundedCache) Set(key string, value interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.items[key]; exists {
		c.remove(key)
	}

	for len(c.items) >= c.capacity && len(c.order) > 0 {
		c.remove(c.order[0])
	}

	c.items[key] = boundedItem{
		value:     value,
		expiresAt: c.now().Add(c.ttl),
	}
	c.order = append(c.order, key)
}

// Delete removes a single entry.
func (c *BoundedCache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.remove(key)
}

// Clear removes all entries.
func (c *BoundedCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = make(map[string]boundedItem)
	c.order = c.order[:0]
}

// Len reports the number of stored entries, including not-yet-swept
// expired ones.
func (c *BoundedCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.items)
}

// remove deletes key from both the map and the order slice. Caller holds
// the lock.
func (c *BoundedCache) remove(key string) {
	if _, exists := c.items[key]; !exists {
		return
	}
	delete(c.items, key)
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
}
