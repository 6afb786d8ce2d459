package tile

import (
	"sync/atomic"

	"github.com/hupe1980/geotile/layer"
)

// Handle pins a layer and its tile. While a handle is held the layer
// payload stays valid even if the tree evicts or replaces it. Release
// must be called exactly once; further calls are no-ops.
type Handle struct {
	tile     *Tile
	layer    layer.Layer
	live     *atomic.Int64
	released atomic.Bool
}

func (tr *Tree) newHandle(t *Tile, l layer.Layer) *Handle {
	t.pins.Add(1)
	l.State().Pin()
	tr.handles.Add(1)
	return &Handle{tile: t, layer: l, live: &tr.handles}
}

// Layer returns the pinned layer.
func (h *Handle) Layer() layer.Layer { return h.layer }

// Kind returns the layer kind.
func (h *Handle) Kind() layer.Kind { return h.layer.Kind() }

// Path returns the path of the tile the layer belongs to.
func (h *Handle) Path() Path { return h.tile.path }

// Level returns the depth of the tile.
func (h *Handle) Level() int { return h.tile.Level() }

// Released reports whether Release was called.
func (h *Handle) Released() bool { return h.released.Load() }

// Release unpins the layer and tile. A layer detached while pinned is
// freed here.
func (h *Handle) Release() {
	if !h.released.CompareAndSwap(false, true) {
		return
	}
	if h.layer.State().Unpin() {
		h.layer.Release()
	}
	h.tile.pins.Add(-1)
	h.live.Add(-1)
}
