// Package tile implements the multi-resolution tile hierarchy.
//
// The earth is covered by the 20 faces of an icosahedron. Each face is a
// root tile that splits into four children on demand, down to a maximum
// level. Every tile may carry one layer per kind; a tile's layer is a
// summary of its subtree that can always be rebuilt by merging the
// children.
//
// Tiles and layer payloads are loaded lazily from a blobstore.Store and
// evicted through two LRU lists: one bounded by tile count, one by payload
// bytes. Query results are Handles that pin what they reference, so
// eviction never frees data a caller is still reading.
//
// Storage layout per tile:
//
//	<root:02d>/<c1>/<c2>/.../index
//	<root:02d>/<c1>/<c2>/.../lineset.bin
//	<root:02d>/<c1>/<c2>/.../raster.png
package tile
