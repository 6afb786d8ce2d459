package tile

import (
	"context"
	"errors"

	"github.com/hupe1980/geotile/geo"
	"github.com/hupe1980/geotile/layer"
)

// Insert distributes l among the roots it touches and merges it down
// the tree.
func (tr *Tree) Insert(ctx context.Context, l layer.Layer) error {
	if l == nil || l.Empty() {
		return nil
	}
	if !l.Kind().Valid() {
		return layer.ErrInvalidKind
	}

	c, r := l.Center(), l.Radius()
	var cands []int
	var tris []geo.Triangle
	for i, root := range tr.roots {
		if root.tri.IntersectsSphere(c, r) {
			cands = append(cands, i)
			tris = append(tris, root.tri)
		}
	}

	if len(tris) == 0 {
		return nil
	}

	var errs []error
	for i, part := range route(l, tris) {
		if part == nil {
			continue
		}
		if err := tr.insert(ctx, tr.roots[cands[i]], part); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// route assigns in to the destination triangles. Line sets are cut at
// the seams. Rasters are handed on whole to every triangle they may
// overlap, so each level resamples from the original grid.
func route(in layer.Layer, dst []geo.Triangle) []layer.Layer {
	if in.Kind() != layer.KindRaster {
		return in.Split(dst)
	}
	out := make([]layer.Layer, len(dst))
	c, r := in.Center(), in.Radius()
	for i, t := range dst {
		if t.IntersectsSphere(c, r) {
			out[i] = in
		}
	}
	return out
}

func (tr *Tree) insert(ctx context.Context, t *Tile, in layer.Layer) error {
	t.pins.Add(1)
	defer t.pins.Add(-1)
	tr.touch(t)

	k := in.Kind()
	local, err := tr.loadLayer(ctx, t, k)
	if err != nil {
		return err
	}

	if !t.downlink && t.Level() < tr.cfg.MaxLevel && tr.needsSplit(t, local, in) {
		if err := tr.split(ctx, t); err != nil {
			return err
		}
	}

	if t.downlink {
		kids := t.tri.Subdivide()
		for i, part := range route(in, kids[:]) {
			if part == nil {
				continue
			}
			c, err := tr.child(ctx, t, i)
			if err != nil {
				return err
			}
			if err := tr.insert(ctx, c, part); err != nil {
				return err
			}
		}
	}

	fresh := local == nil
	if fresh {
		if local, err = layer.New(k, t.tri); err != nil {
			return err
		}
	} else {
		local = tr.writable(t, local)
	}
	if err := local.Merge(in); err != nil {
		return err
	}
	if b := tr.budget(k); b > 0 && local.Size() > b {
		local.Reduce(b)
	}

	switch {
	case fresh && local.Empty():
		return nil
	case fresh:
		tr.attach(t, local)
	default:
		tr.resize(local)
	}
	return nil
}

// needsSplit reports whether merging in would overflow the tile's budget
// or bring in detail finer than the tile can represent.
func (tr *Tree) needsSplit(t *Tile, local, in layer.Layer) bool {
	if b := tr.budget(in.Kind()); b > 0 {
		size := in.Size()
		if local != nil {
			size += local.Size()
		}
		if size > b {
			return true
		}
	}
	if in.Kind() == layer.KindRaster {
		return in.Resolution() < 0.5*layer.NewRaster(t.tri).Resolution()
	}
	return false
}

// split creates the four children of t and moves the local content of
// every kind into them. The local layers stay as the summary.
func (tr *Tree) split(ctx context.Context, t *Tile) error {
	kids := t.tri.Subdivide()
	for i := range kids {
		c := newTile(t.path.Child(i), kids[i], t)
		c.dirty = true
		t.children[i] = c
		tr.tiles.Touch(c)
	}
	t.downlink = true
	t.dirty = true

	for _, k := range t.kinds() {
		l, err := tr.loadLayer(ctx, t, k)
		if err != nil {
			return err
		}
		if l == nil || l.Empty() {
			continue
		}
		for i, part := range l.Split(kids[:]) {
			if part != nil {
				tr.attach(t.children[i], part)
			}
		}
	}
	tr.log.Debug("tile split", "path", t.path.String(), "level", t.Level())
	return nil
}
