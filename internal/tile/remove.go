package tile

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/hupe1980/geotile/geo"
	"github.com/hupe1980/geotile/layer"
)

// seamTolerance admits anchors that sit on a child seam to every child
// sharing it.
const seamTolerance = -1e-9

// Remove deletes element subID of the handle's layer from the subtree of
// the handle's tile, or the whole kind if subID is negative. The tile's
// summary and those of all ancestors are rebuilt from their children.
func (tr *Tree) Remove(ctx context.Context, h *Handle, subID int) error {
	if h == nil || h.Released() {
		return ErrHandleReleased
	}
	t, k := h.tile, h.layer.Kind()
	if !t.downlink {
		return ErrLeafDelete
	}

	if subID < 0 {
		if err := tr.clear(ctx, t, k); err != nil {
			return err
		}
	} else {
		anchor, ok := h.layer.Anchor(subID)
		if !ok {
			return fmt.Errorf("%w: %s element %d", ErrNotFound, k, subID)
		}
		reach := footprint(h.layer)
		if reach > 0 {
			anchor = geo.Reproject(anchor)
		}
		if _, _, err := tr.deleteAt(ctx, t, k, []geo.Vec3{anchor}, reach); err != nil {
			return err
		}
		if reach > 0 {
			// Resampling may spill neighbouring samples back into the
			// removed pixel of the rebuilt summary.
			l, err := tr.loadLayer(ctx, t, k)
			if err != nil {
				return err
			}
			if l != nil {
				if _, _, err := tr.deleteIn(ctx, t, l, anchor, 0); err != nil {
					return err
				}
			}
		}
	}

	for p := t.parent; p != nil; p = p.parent {
		if err := tr.rebuild(ctx, p, k); err != nil {
			return err
		}
	}
	return nil
}

// clear removes kind k from t and its entire subtree, loading persisted
// descendants so their payloads are deleted too.
func (tr *Tree) clear(ctx context.Context, t *Tile, k layer.Kind) error {
	if _, ok := t.layers[k]; !ok {
		return nil
	}
	if t.downlink {
		for i := range t.children {
			c, err := tr.child(ctx, t, i)
			if err != nil {
				return err
			}
			if err := tr.clear(ctx, c, k); err != nil {
				return err
			}
		}
	}
	return tr.drop(ctx, t, k)
}

// footprint is the radius around an element anchor that the element
// covers in the descendants: half the pixel diagonal for rasters, none
// for line sets.
func footprint(l layer.Layer) float64 {
	if l.Kind() != layer.KindRaster {
		return 0
	}
	return l.Resolution() * math.Sqrt2 / 2
}

// deleteAt removes the elements anchored within radius of the given
// points from the children of t and follows the returned continuation
// anchors across sibling seams. It returns every continuation anchor
// found and whether anything changed; t's summary is rebuilt if so.
func (tr *Tree) deleteAt(ctx context.Context, t *Tile, k layer.Kind, anchors []geo.Vec3, radius float64) ([]geo.Vec3, bool, error) {
	kids := t.tri.Subdivide()
	var (
		seen    []geo.Vec3
		ends    []geo.Vec3
		changed bool
	)
	queue := append([]geo.Vec3(nil), anchors...)

	for len(queue) > 0 {
		a := queue[0]
		queue = queue[1:]
		if containsPoint(seen, a) {
			continue
		}
		seen = append(seen, a)

		for i := range kids {
			if radius > 0 {
				if !kids[i].IntersectsSphere(a, radius) {
					continue
				}
			} else if kids[i].Score(a) < seamTolerance {
				continue
			}
			c, err := tr.child(ctx, t, i)
			if err != nil {
				return nil, false, err
			}
			var more []geo.Vec3
			if c.downlink {
				var ch bool
				if more, ch, err = tr.deleteAt(ctx, c, k, []geo.Vec3{a}, radius); err != nil {
					return nil, false, err
				}
				changed = changed || ch
			} else {
				l, err := tr.loadLayer(ctx, c, k)
				if err != nil {
					return nil, false, err
				}
				if l == nil {
					continue
				}
				var removed bool
				if more, removed, err = tr.deleteIn(ctx, c, l, a, radius); err != nil {
					return nil, false, err
				}
				if !removed {
					continue
				}
				changed = true
			}
			ends = append(ends, more...)
			queue = append(queue, more...)
		}
	}

	if changed {
		if err := tr.rebuild(ctx, t, k); err != nil {
			return nil, false, err
		}
	}
	return ends, changed, nil
}

func containsPoint(pts []geo.Vec3, p geo.Vec3) bool {
	for _, q := range pts {
		if q.ApproxEqual(p, layer.MatchTolerance) {
			return true
		}
	}
	return false
}

// rebuild replaces t's layer of kind k with a fresh merge of its
// children, reduced to budget. The old layer is detached; pinned handles
// keep it alive until released.
func (tr *Tree) rebuild(ctx context.Context, t *Tile, k layer.Kind) error {
	fresh, err := layer.New(k, t.tri)
	if err != nil {
		return err
	}
	var errs []error
	for i := range t.children {
		c, err := tr.child(ctx, t, i)
		if err != nil {
			return err
		}
		if c == nil {
			continue
		}
		cl, err := tr.loadLayer(ctx, c, k)
		if err != nil {
			return err
		}
		if cl == nil || cl.Empty() {
			continue
		}
		if err := fresh.Merge(cl); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return err
	}
	if b := tr.budget(k); b > 0 && fresh.Size() > b {
		fresh.Reduce(b)
	}

	if fresh.Empty() {
		return tr.drop(ctx, t, k)
	}
	tr.attach(t, fresh)
	return nil
}
