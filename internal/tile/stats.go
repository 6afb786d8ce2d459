package tile

import "github.com/hupe1980/geotile/layer"

// Stats is a snapshot of the resident tree.
type Stats struct {
	// Tiles counts resident tiles including the roots.
	Tiles int
	// Layers counts active layer payloads.
	Layers int
	// LayerBytes is the resident payload per kind.
	LayerBytes map[layer.Kind]int64
	// TotalLayerBytes is the sum of LayerBytes.
	TotalLayerBytes int64
	DirtyTiles      int
	DirtyLayers     int
	// MaxLevel is the deepest resident level.
	MaxLevel int
	// Handles counts unreleased query handles.
	Handles int64

	TileHits      int64
	TileMisses    int64
	EvictedTiles  int64
	EvictedLayers int64
}

// Stats walks the resident tree.
func (tr *Tree) Stats() Stats {
	s := Stats{
		LayerBytes:    make(map[layer.Kind]int64),
		Handles:       tr.handles.Load(),
		EvictedTiles:  tr.evictedTiles,
		EvictedLayers: tr.evictedLayers,
	}
	s.TileHits, s.TileMisses = tr.tiles.Stats()

	var walk func(t *Tile)
	walk = func(t *Tile) {
		s.Tiles++
		s.MaxLevel = max(s.MaxLevel, t.Level())
		if t.dirty {
			s.DirtyTiles++
		}
		for k, l := range t.layers {
			if !l.State().Active() {
				continue
			}
			s.Layers++
			s.LayerBytes[k] += l.Size()
			s.TotalLayerBytes += l.Size()
			if l.State().Dirty() {
				s.DirtyLayers++
			}
		}
		for _, c := range t.children {
			if c != nil {
				walk(c)
			}
		}
	}
	for _, root := range tr.roots {
		walk(root)
	}
	return s
}
