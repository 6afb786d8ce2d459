package tile

import (
	"context"
	"errors"

	"github.com/hupe1980/geotile/geo"
	"github.com/hupe1980/geotile/layer"
)

// Query collects, per kind, pinned handles to the coarsest layers that
// intersect the sphere (center, radius) and resolve features of
// minResolution metres. Leaves are returned regardless of resolution.
// On error no handles are returned.
func (tr *Tree) Query(ctx context.Context, kinds []layer.Kind, center geo.Vec3, radius, minResolution float64) (map[layer.Kind][]*Handle, error) {
	for _, k := range kinds {
		if !k.Valid() {
			return nil, layer.ErrInvalidKind
		}
	}

	out := make(map[layer.Kind][]*Handle, len(kinds))
	var errs []error
	for _, root := range tr.roots {
		if err := tr.query(ctx, root, kinds, center, radius, minResolution, out); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		ReleaseAll(out)
		return nil, err
	}
	return out, nil
}

func (tr *Tree) query(ctx context.Context, t *Tile, kinds []layer.Kind, c geo.Vec3, r, minRes float64, out map[layer.Kind][]*Handle) error {
	if !t.tri.IntersectsSphere(c, r) {
		return nil
	}
	tr.touch(t)

	var deeper []layer.Kind
	for _, k := range kinds {
		l, err := tr.loadLayer(ctx, t, k)
		if err != nil {
			return err
		}
		if l == nil {
			continue
		}
		if !t.downlink || l.Resolution() <= minRes {
			if !l.Empty() {
				out[k] = append(out[k], tr.newHandle(t, l))
			}
			continue
		}
		deeper = append(deeper, k)
	}
	if len(deeper) == 0 {
		return nil
	}

	for i := range t.children {
		child, err := tr.child(ctx, t, i)
		if err != nil {
			return err
		}
		if err := tr.query(ctx, child, deeper, c, r, minRes, out); err != nil {
			return err
		}
	}
	return nil
}

// ReleaseAll releases every handle in a query result.
func ReleaseAll(res map[layer.Kind][]*Handle) {
	for _, hs := range res {
		for _, h := range hs {
			h.Release()
		}
	}
}
