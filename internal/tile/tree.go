package tile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/hupe1980/geotile/blobstore"
	"github.com/hupe1980/geotile/geo"
	"github.com/hupe1980/geotile/internal/cache"
	"github.com/hupe1980/geotile/internal/resource"
	"github.com/hupe1980/geotile/internal/tess"
	"github.com/hupe1980/geotile/layer"
)

var (
	// ErrLeafDelete is returned when deleting through a tile without children.
	ErrLeafDelete = errors.New("cannot delete from a leaf tile")
	// ErrNotFound is returned when an element id does not exist.
	ErrNotFound = errors.New("element not found")
	// ErrHandleReleased is returned when a released handle is used.
	ErrHandleReleased = errors.New("handle released")
)

// PersistError reports a tile that could not be written.
type PersistError struct {
	Path string
	Err  error
}

func (e *PersistError) Error() string {
	return fmt.Sprintf("persist tile %s: %v", e.Path, e.Err)
}

func (e *PersistError) Unwrap() error { return e.Err }

// Config configures a Tree.
type Config struct {
	Store blobstore.Store

	// MaxTiles bounds the resident non-root tiles.
	MaxTiles int
	// MaxLayerBytes bounds the resident layer payload across all kinds.
	MaxLayerBytes int64
	// Budgets caps the payload of one tile layer per kind. Zero means
	// unbounded.
	Budgets map[layer.Kind]int64
	// MaxLevel is the deepest level the tree splits to.
	MaxLevel int

	Compression layer.Compression
	Resource    *resource.Controller
	Logger      *slog.Logger
}

// Tree is the tile hierarchy below the 20 icosahedron roots together with
// the two resident caches. It is not safe for concurrent use except for
// Handle.Release; callers serialize everything else.
type Tree struct {
	cfg   Config
	log   *slog.Logger
	roots [tess.NumRoots]*Tile

	// tiles orders resident non-root tiles by recency.
	tiles *cache.LRU[*Tile]
	// layers orders active payloads by recency and tracks their bytes.
	layers *cache.LRU[layer.Layer]
	owners map[layer.Layer]*Tile

	handles       atomic.Int64
	evictedTiles  int64
	evictedLayers int64
}

// Open loads the root index records from cfg.Store. Missing roots start
// empty.
func Open(ctx context.Context, cfg Config) (*Tree, error) {
	if cfg.Store == nil {
		return nil, errors.New("tile: no blob store")
	}
	log := cfg.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}

	tr := &Tree{
		cfg:    cfg,
		log:    log,
		tiles:  cache.New[*Tile](nil),
		layers: cache.New[layer.Layer](cfg.Resource),
		owners: make(map[layer.Layer]*Tile),
	}

	for i, tri := range tess.Icosahedron() {
		root := newTile(RootPath(i), tri, nil)
		if err := tr.loadRecord(ctx, root); err != nil {
			return nil, err
		}
		tr.roots[i] = root
	}
	return tr, nil
}

// Root returns root i.
func (tr *Tree) Root(i int) *Tile { return tr.roots[i] }

func (tr *Tree) budget(k layer.Kind) int64 { return tr.cfg.Budgets[k] }

// loadRecord reads the index of t. A missing record leaves t empty and
// dirty so the next persist creates it.
func (tr *Tree) loadRecord(ctx context.Context, t *Tile) error {
	data, err := blobstore.ReadAll(ctx, tr.cfg.Store, t.path.Blob(indexName))
	if errors.Is(err, blobstore.ErrNotFound) {
		t.dirty = true
		return nil
	}
	if err != nil {
		return fmt.Errorf("read index %s: %w", t.path, err)
	}
	rec, err := decodeRecord(data)
	if err != nil {
		return fmt.Errorf("tile %s: %w", t.path, err)
	}
	t.downlink = rec.downlink
	for _, k := range rec.kinds {
		tr.stub(t, k)
	}
	return nil
}

// stub attaches an inactive layer whose payload is read on first use.
func (tr *Tree) stub(t *Tile, k layer.Kind) {
	l, err := layer.New(k, t.tri)
	if err != nil {
		return
	}
	l.Release()
	l.State().Attach()
	t.layers[k] = l
}

// child returns child i of t, loading it if t has a downlink.
func (tr *Tree) child(ctx context.Context, t *Tile, i int) (*Tile, error) {
	if c := t.children[i]; c != nil {
		tr.tiles.Touch(c)
		return c, nil
	}
	if !t.downlink {
		return nil, nil
	}

	kids := t.tri.Subdivide()
	c := newTile(t.path.Child(i), kids[i], t)
	if err := tr.loadRecord(ctx, c); err != nil {
		return nil, err
	}
	t.children[i] = c
	tr.tiles.Touch(c)
	tr.log.Debug("tile loaded", "path", c.path.String(), "downlink", c.downlink)
	return c, nil
}

func (tr *Tree) touch(t *Tile) {
	if !t.isRoot() {
		tr.tiles.Touch(t)
	}
}

// loadLayer returns the active layer of kind k on t, reading its payload if
// needed. It returns nil if t has no such layer.
func (tr *Tree) loadLayer(ctx context.Context, t *Tile, k layer.Kind) (layer.Layer, error) {
	l, ok := t.layers[k]
	if !ok {
		return nil, nil
	}
	if l.State().Active() {
		tr.layers.Touch(l)
		return l, nil
	}

	if tr.cfg.Resource.OverLimit() {
		tr.evictLayers(ctx)
	}

	name := t.path.Blob(k.FileName())
	data, err := blobstore.ReadAll(ctx, tr.cfg.Store, name)
	var fresh layer.Layer
	switch {
	case errors.Is(err, blobstore.ErrNotFound):
		fresh, err = layer.New(k, t.tri)
	case err != nil:
		return nil, fmt.Errorf("read %s: %w", name, err)
	default:
		fresh, err = layer.Load(k, t.tri, data)
	}
	if err != nil {
		return nil, fmt.Errorf("tile %s: %w", t.path, err)
	}

	t.layers[k] = fresh
	tr.track(t, fresh)
	return fresh, nil
}

// track enters an active attached layer into the layer cache.
func (tr *Tree) track(t *Tile, l layer.Layer) {
	l.State().Attach()
	tr.owners[l] = t
	tr.layers.Touch(l)
	tr.layers.Resize(l, l.Size())
}

// resize refreshes the cached size of l after a mutation.
func (tr *Tree) resize(l layer.Layer) {
	tr.layers.Resize(l, l.Size())
}

// attach makes l the layer of its kind on t, detaching any previous one.
func (tr *Tree) attach(t *Tile, l layer.Layer) {
	k := l.Kind()
	if old, ok := t.layers[k]; ok {
		if old == l {
			return
		}
		tr.detach(old)
	} else {
		t.dirty = true
	}
	t.layers[k] = l
	l.State().MarkDirty()
	tr.track(t, l)
}

// writable returns l if no handle pins it. Otherwise a copy replaces l on
// t and is returned, so handles keep reading the old content.
func (tr *Tree) writable(t *Tile, l layer.Layer) layer.Layer {
	if !l.State().Pinned() {
		return l
	}
	c := l.Clone()
	tr.attach(t, c)
	return c
}

// deleteIn removes the elements of t's layer l anchored within radius of
// p. A pinned layer is copied only when something is actually removed.
func (tr *Tree) deleteIn(ctx context.Context, t *Tile, l layer.Layer, p geo.Vec3, radius float64) ([]geo.Vec3, bool, error) {
	w := l
	if l.State().Pinned() {
		w = l.Clone()
	}
	more, removed := w.DeleteAt(p, radius)
	if !removed {
		return nil, false, nil
	}
	if w != l {
		tr.attach(t, w)
	}
	if w.Empty() {
		return more, true, tr.drop(ctx, t, w.Kind())
	}
	tr.resize(w)
	return more, true, nil
}

// detach drops l from the cache and frees it unless a handle pins it, in
// which case the last Release frees it.
func (tr *Tree) detach(l layer.Layer) {
	tr.layers.Remove(l)
	delete(tr.owners, l)
	if l.State().Detach() {
		l.Release()
	}
}

// drop removes kind k from t, including its stored payload.
func (tr *Tree) drop(ctx context.Context, t *Tile, k layer.Kind) error {
	l, ok := t.layers[k]
	if !ok {
		return nil
	}
	tr.detach(l)
	delete(t.layers, k)
	t.dirty = true
	if err := tr.cfg.Store.Delete(ctx, t.path.Blob(k.FileName())); err != nil {
		return fmt.Errorf("delete %s payload of %s: %w", k, t.path, err)
	}
	return nil
}

// Unload frees every resident payload. Pinned layers are freed when
// their handles are released.
func (tr *Tree) Unload() {
	for l := range tr.owners {
		tr.detach(l)
	}
	for _, root := range tr.roots {
		for i := range root.children {
			root.children[i] = nil
		}
		root.layers = make(map[layer.Kind]layer.Layer)
	}
	tr.tiles = cache.New[*Tile](nil)
}
