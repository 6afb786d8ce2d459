package cache

import (
	"container/list"

	"github.com/hupe1980/geotile/internal/resource"
)

// LRU keeps keys in recency order together with the number of bytes each
// one holds. It does not own the cached objects; callers walk it from the
// least recently used end and decide what to drop.
//
// LRU is not safe for concurrent use. The tile store serializes access
// under its own mutex.
type LRU[K comparable] struct {
	items map[K]*list.Element
	order *list.List
	size  int64
	rc    *resource.Controller

	hits   int64
	misses int64
}

type entry[K comparable] struct {
	key  K
	size int64
}

// New creates an empty LRU. If rc is non-nil, sizes are charged to it.
func New[K comparable](rc *resource.Controller) *LRU[K] {
	return &LRU[K]{
		items: make(map[K]*list.Element),
		order: list.New(),
		rc:    rc,
	}
}

// Touch marks key as most recently used, adding it if absent. It reports
// whether the key was already present.
func (c *LRU[K]) Touch(key K) bool {
	if e, ok := c.items[key]; ok {
		c.hits++
		c.order.MoveToFront(e)
		return true
	}
	c.misses++
	c.items[key] = c.order.PushFront(&entry[K]{key: key})
	return false
}

// Resize sets the byte size of key. Absent keys are ignored.
func (c *LRU[K]) Resize(key K, size int64) {
	e, ok := c.items[key]
	if !ok {
		return
	}
	ent := e.Value.(*entry[K])
	delta := size - ent.size
	ent.size = size
	c.size += delta
	if delta > 0 {
		c.rc.ChargeMemory(delta)
	} else {
		c.rc.ReleaseMemory(-delta)
	}
}

// Remove drops key and releases its bytes. It reports whether the key was present.
func (c *LRU[K]) Remove(key K) bool {
	e, ok := c.items[key]
	if !ok {
		return false
	}
	ent := e.Value.(*entry[K])
	c.order.Remove(e)
	delete(c.items, key)
	c.size -= ent.size
	c.rc.ReleaseMemory(ent.size)
	return true
}

// Contains reports whether key is tracked, without touching it.
func (c *LRU[K]) Contains(key K) bool {
	_, ok := c.items[key]
	return ok
}

// SizeOf returns the bytes recorded for key.
func (c *LRU[K]) SizeOf(key K) int64 {
	if e, ok := c.items[key]; ok {
		return e.Value.(*entry[K]).size
	}
	return 0
}

// Walk visits keys from least to most recently used until fn returns
// false. fn may remove the key it is visiting.
func (c *LRU[K]) Walk(fn func(key K) bool) {
	for e := c.order.Back(); e != nil; {
		prev := e.Prev()
		if !fn(e.Value.(*entry[K]).key) {
			return
		}
		e = prev
	}
}

// Len returns the number of tracked keys.
func (c *LRU[K]) Len() int { return c.order.Len() }

// Size returns the total bytes of all tracked keys.
func (c *LRU[K]) Size() int64 { return c.size }

// Stats returns how often Touch found an existing key.
func (c *LRU[K]) Stats() (hits, misses int64) { return c.hits, c.misses }
