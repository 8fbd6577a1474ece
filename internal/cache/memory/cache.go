// Package memory provides an in-process result cache with per-entry
// TTL and capacity-bounded eviction.
package memory

import (
	"container/list"
	"context"
	"sync"
	"time"

	"github.com/archiva-labs/doclens/internal/core/ports/driven"
)

// Ensure Cache implements the interface.
var _ driven.ResultCache = (*Cache)(nil)

// entry is a stored value with its expiry deadline.
type entry struct {
	key       string
	value     any
	expiresAt time.Time
}

// Cache is an in-memory implementation of driven.ResultCache.
// Expiry and capacity eviction are two independent mechanisms: expiry
// is checked lazily on read, capacity is enforced on write by evicting
// oldest-insertion-first.
type Cache struct {
	mu       sync.Mutex
	capacity int
	entries  map[string]*list.Element
	order    *list.List // insertion order, oldest at front
	now      func() time.Time
}

// New creates a cache holding at most capacity entries.
func New(capacity int) *Cache {
	return &Cache{
		capacity: capacity,
		entries:  make(map[string]*list.Element),
		order:    list.New(),
		now:      time.Now,
	}
}

// Get returns the cached value for the key. Entries past their TTL are
// treated as absent and dropped on the spot.
func (c *Cache) Get(_ context.Context, key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.entries[key]
	if !ok {
		return nil, false
	}

	e := elem.Value.(*entry)
	if c.now().After(e.expiresAt) {
		c.order.Remove(elem)
		delete(c.entries, key)
		return nil, false
	}

	return e.value, true
}

// Put stores a value under the key. Re-putting an existing key replaces
// the value and counts as a fresh insertion. When the capacity is
// exceeded the oldest insertion is evicted.
func (c *Cache) Put(_ context.Context, key string, value any, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.entries[key]; ok {
		c.order.Remove(elem)
		delete(c.entries, key)
	}

	e := &entry{key: key, value: value, expiresAt: c.now().Add(ttl)}
	c.entries[key] = c.order.PushBack(e)

	for c.order.Len() > c.capacity {
		oldest := c.order.Front()
		c.order.Remove(oldest)
		delete(c.entries, oldest.Value.(*entry).key)
	}
}

// Invalidate removes the key immediately.
func (c *Cache) Invalidate(_ context.Context, key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.entries[key]; ok {
		c.order.Remove(elem)
		delete(c.entries, key)
	}
}

// Len returns the number of stored entries, expired ones included.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}
