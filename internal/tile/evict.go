package tile

import (
	"context"

	"github.com/hupe1980/geotile/layer"
)

// Evict brings both caches back within budget. It returns how many tiles
// and layer payloads were dropped.
func (tr *Tree) Evict(ctx context.Context) (tiles, layers int) {
	layers = tr.evictLayers(ctx)
	tiles = tr.evictTiles(ctx)
	return tiles, layers
}

// evictable reports whether t can leave memory: no handle pins it and
// none of its children are resident.
func evictable(t *Tile) bool {
	return !t.isRoot() && !t.pinned() && !t.residentChildren()
}

// evictTiles persists and unloads least recently used tiles until at
// most MaxTiles non-root tiles are resident. Tiles that fail to persist
// stay resident.
func (tr *Tree) evictTiles(ctx context.Context) int {
	n := 0
	for tr.tiles.Len() > tr.cfg.MaxTiles {
		progress := false
		tr.tiles.Walk(func(t *Tile) bool {
			if tr.tiles.Len() <= tr.cfg.MaxTiles {
				return false
			}
			if !evictable(t) {
				return true
			}
			if err := tr.saveTile(ctx, t); err != nil {
				tr.log.Warn("tile eviction skipped", "path", t.path.String(), "error", err)
				return true
			}
			tr.unload(t)
			progress = true
			n++
			return true
		})
		if !progress {
			break
		}
	}
	tr.evictedTiles += int64(n)
	return n
}

// unload removes a persisted tile from memory. Its parent keeps the
// downlink so the tile can be loaded again.
func (tr *Tree) unload(t *Tile) {
	for _, l := range t.layers {
		tr.detach(l)
	}
	t.layers = nil
	t.parent.children[t.childIndex()] = nil
	tr.tiles.Remove(t)
}

// evictLayers persists and frees least recently used payloads until the
// resident layer bytes fit MaxLayerBytes and the resource controller is
// within its limit. Pinned layers and the layers of tiles an operation
// is working on are skipped.
func (tr *Tree) evictLayers(ctx context.Context) int {
	over := func() bool {
		return (tr.cfg.MaxLayerBytes > 0 && tr.layers.Size() > tr.cfg.MaxLayerBytes) || tr.cfg.Resource.OverLimit()
	}

	n := 0
	for over() {
		progress := false
		tr.layers.Walk(func(l layer.Layer) bool {
			if !over() {
				return false
			}
			t := tr.owners[l]
			if l.State().Pinned() || t.pinned() {
				return true
			}
			if l.State().Dirty() {
				if err := tr.saveLayer(ctx, t, l); err != nil {
					tr.log.Warn("layer eviction skipped", "path", t.path.String(), "kind", l.Kind().String(), "error", err)
					return true
				}
			}
			tr.layers.Remove(l)
			delete(tr.owners, l)
			l.Release()
			progress = true
			n++
			return true
		})
		if !progress {
			break
		}
	}
	tr.evictedLayers += int64(n)
	return n
}
