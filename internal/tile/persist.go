package tile

import (
	"context"
	"errors"
	"fmt"

	"github.com/hupe1980/geotile/layer"
	"golang.org/x/sync/errgroup"
)

// SaveAll persists every dirty resident tile and layer. Roots are
// written in parallel, bounded by the resource controller's worker
// slots. Failures are collected per tile; failed tiles stay dirty.
func (tr *Tree) SaveAll(ctx context.Context) error {
	errs := make([]error, len(tr.roots))
	g, gctx := errgroup.WithContext(ctx)
	for i, root := range tr.roots {
		g.Go(func() error {
			if err := tr.cfg.Resource.AcquireWorker(gctx); err != nil {
				errs[i] = err
				return nil
			}
			defer tr.cfg.Resource.ReleaseWorker()
			errs[i] = tr.saveSubtree(gctx, root)
			return nil
		})
	}
	_ = g.Wait()
	return errors.Join(errs...)
}

func (tr *Tree) saveSubtree(ctx context.Context, t *Tile) error {
	errs := []error{tr.saveTile(ctx, t)}
	for _, c := range t.children {
		if c != nil {
			errs = append(errs, tr.saveSubtree(ctx, c))
		}
	}
	return errors.Join(errs...)
}

// saveTile writes the dirty payloads of t, then its index record.
func (tr *Tree) saveTile(ctx context.Context, t *Tile) error {
	var errs []error
	for _, k := range t.kinds() {
		l := t.layers[k]
		if !l.State().Active() || !l.State().Dirty() {
			continue
		}
		if err := tr.writeLayer(ctx, t, l); err != nil {
			errs = append(errs, err)
		}
	}

	if t.dirty {
		if err := tr.put(ctx, t.path.Blob(indexName), encodeRecord(t.record())); err != nil {
			errs = append(errs, fmt.Errorf("write index: %w", err))
		} else {
			t.dirty = false
		}
	}

	if len(errs) > 0 {
		return &PersistError{Path: t.path.String(), Err: errors.Join(errs...)}
	}
	return nil
}

// saveLayer writes one payload and reports failures as a PersistError.
func (tr *Tree) saveLayer(ctx context.Context, t *Tile, l layer.Layer) error {
	if err := tr.writeLayer(ctx, t, l); err != nil {
		return &PersistError{Path: t.path.String(), Err: err}
	}
	return nil
}

func (tr *Tree) writeLayer(ctx context.Context, t *Tile, l layer.Layer) error {
	data, err := l.Encode(tr.cfg.Compression)
	if err != nil {
		return fmt.Errorf("encode %s: %w", l.Kind(), err)
	}
	if err := tr.put(ctx, t.path.Blob(l.Kind().FileName()), data); err != nil {
		return fmt.Errorf("write %s: %w", l.Kind(), err)
	}
	l.State().ClearDirty()
	return nil
}

func (tr *Tree) put(ctx context.Context, name string, data []byte) error {
	if err := tr.cfg.Resource.AcquireIO(ctx, len(data)); err != nil {
		return err
	}
	return tr.cfg.Store.Put(ctx, name, data)
}
