// Package cache provides the recency list behind the tile store's two
// eviction caches.
//
// The store keeps one [LRU] of resident non-root tiles, bounded by count,
// and one of active layer payloads across all kinds, bounded by bytes.
// Neither list owns the objects it names: the tile tree owns tiles and
// layers, and eviction walks the list oldest-first, skipping pinned
// entries, until the budget holds again.
//
// Byte sizes recorded with [LRU.Resize] are charged to an optional
// [resource.Controller] so that memory usage is visible in one place.
package cache
