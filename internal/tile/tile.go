package tile

import (
	"slices"
	"sync/atomic"

	"github.com/hupe1980/geotile/geo"
	"github.com/hupe1980/geotile/layer"
)

// Tile is one triangle of the hierarchy. A tile owns its resident
// children; the parent link is a plain back pointer.
type Tile struct {
	path     Path
	tri      geo.Triangle
	parent   *Tile
	children [4]*Tile
	// downlink is set once children exist, resident or not.
	downlink bool
	layers   map[layer.Kind]layer.Layer
	// dirty marks an index record that differs from storage.
	dirty bool
	pins  atomic.Int32
}

func newTile(p Path, tri geo.Triangle, parent *Tile) *Tile {
	return &Tile{
		path:   p,
		tri:    tri,
		parent: parent,
		layers: make(map[layer.Kind]layer.Layer),
	}
}

// Path returns the tile path.
func (t *Tile) Path() Path { return t.path }

// Level returns the depth below the root.
func (t *Tile) Level() int { return t.path.Level() }

// Triangle returns the tile area.
func (t *Tile) Triangle() geo.Triangle { return t.tri }

// HasChildren reports whether the tile has been split.
func (t *Tile) HasChildren() bool { return t.downlink }

func (t *Tile) isRoot() bool { return t.parent == nil }

// childIndex is the tile's slot in its parent.
func (t *Tile) childIndex() int {
	return int(t.path.Children[len(t.path.Children)-1])
}

func (t *Tile) residentChildren() bool {
	for _, c := range t.children {
		if c != nil {
			return true
		}
	}
	return false
}

func (t *Tile) pinned() bool { return t.pins.Load() > 0 }

// kinds returns the attached kinds in a stable order.
func (t *Tile) kinds() []layer.Kind {
	out := make([]layer.Kind, 0, len(t.layers))
	for k := range t.layers {
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}

func (t *Tile) record() record {
	return record{
		downlink: t.downlink,
		verts:    t.tri.G,
		kinds:    t.kinds(),
	}
}
