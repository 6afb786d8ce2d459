package geotile

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/hupe1980/geotile/blobstore"
	"github.com/hupe1980/geotile/geo"
	"github.com/hupe1980/geotile/internal/resource"
	"github.com/hupe1980/geotile/internal/tile"
	"github.com/hupe1980/geotile/layer"
)

// Handle pins one layer returned by Query. The layer stays valid until
// Release, even if the store evicts or replaces it meanwhile. Release
// may be called from any goroutine and is idempotent.
type Handle = tile.Handle

// Stats is a snapshot of the resident tiles and payloads.
type Stats struct {
	tile.Stats
	// MemoryBytes is the payload charged to the memory limit.
	MemoryBytes int64
}

// Store is a multi-resolution spatial store for coastline and depth
// layers. All methods are safe for concurrent use; they are serialized by
// one mutex.
type Store struct {
	mu     sync.Mutex
	opts   options
	rc     *resource.Controller
	tree   *tile.Tree
	closed bool
}

// Open opens the store in the configured directory or blob store. A store
// without persisted tiles starts empty.
func Open(ctx context.Context, optFns ...Option) (*Store, error) {
	o := defaultOptions()
	for _, fn := range optFns {
		fn(&o)
	}

	store := o.store
	if store == nil {
		if o.dir == "" {
			return nil, errors.New("geotile: no directory or blob store configured")
		}
		store = blobstore.NewLocalStore(o.dir)
	}

	rc := resource.NewController(resource.Config{
		MemoryLimitBytes:   o.memoryLimit,
		MaxPersistWorkers:  o.persistWorkers,
		IOLimitBytesPerSec: o.ioLimit,
	})

	tree, err := tile.Open(ctx, tile.Config{
		Store:         store,
		MaxTiles:      o.maxTiles,
		MaxLayerBytes: o.maxLayerBytes,
		Budgets:       o.budgets,
		MaxLevel:      o.maxLevel,
		Compression:   o.compression,
		Resource:      rc,
		Logger:        o.logger.Logger,
	})
	if err != nil {
		return nil, err
	}

	o.logger.InfoContext(ctx, "store opened", "dir", o.dir, "max_tiles", o.maxTiles, "max_level", o.maxLevel)
	return &Store{opts: o, rc: rc, tree: tree}, nil
}

// Query returns, per kind, handles to the coarsest layers that intersect
// the sphere (center, radius) and resolve features of minResolution
// metres. Where the tree is not deep enough the finest available layers
// are returned. The caller must release every handle, for example with
// ReleaseAll.
func (s *Store) Query(ctx context.Context, kinds []layer.Kind, center geo.Vec3, radius, minResolution float64) (map[layer.Kind][]*Handle, error) {
	start := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}

	res, err := s.tree.Query(ctx, kinds, center, radius, minResolution)
	n := 0
	for _, hs := range res {
		n += len(hs)
	}
	s.opts.logger.LogQuery(ctx, radius, minResolution, n, err)
	s.opts.metricsCollector.RecordQuery(n, time.Since(start), err)
	if err != nil {
		return nil, err
	}
	s.evict(ctx)
	return res, nil
}

// QueryLLA is Query around a geodetic point.
func (s *Store) QueryLLA(ctx context.Context, kinds []layer.Kind, center geo.LLA, radius, minResolution float64) (map[layer.Kind][]*Handle, error) {
	return s.Query(ctx, kinds, geo.ToECEF(center), radius, minResolution)
}

// Insert merges l into every tile it touches, splitting tiles that
// overflow their budget. l is not retained.
func (s *Store) Insert(ctx context.Context, l layer.Layer) error {
	start := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if l == nil {
		return nil
	}

	err := s.tree.Insert(ctx, l)
	s.opts.logger.LogInsert(ctx, l.Kind(), l.Size(), err)
	s.opts.metricsCollector.RecordInsert(time.Since(start), err)
	s.evict(ctx)
	return err
}

// Remove deletes element subID of the handle's layer from the tile and
// its subtree, then rebuilds the summaries above. A negative subID
// removes the whole kind. The handle must be on a tile with children;
// it stays valid and keeps showing the old content.
func (s *Store) Remove(ctx context.Context, h *Handle, subID int) error {
	start := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	err := s.tree.Remove(ctx, h, subID)
	path := ""
	if h != nil {
		path = h.Path().String()
	}
	s.opts.logger.LogRemove(ctx, path, subID, err)
	s.opts.metricsCollector.RecordRemove(time.Since(start), err)
	return err
}

// EvictToBudget persists and drops least recently used tiles and payloads
// until the store is within its budgets. Pinned data is kept.
func (s *Store) EvictToBudget(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.evict(ctx)
	return nil
}

func (s *Store) evict(ctx context.Context) {
	tiles, layers := s.tree.Evict(ctx)
	s.opts.logger.LogEvict(ctx, tiles, layers)
	s.opts.metricsCollector.RecordEvict(tiles, layers)
}

// PersistAll writes every dirty resident tile and payload. Tiles that
// fail stay dirty; their errors are joined and each one is a
// *PersistError.
func (s *Store) PersistAll(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	return s.persist(ctx)
}

func (s *Store) persist(ctx context.Context) error {
	start := time.Now()
	before := s.tree.Stats()
	err := s.tree.SaveAll(ctx)
	if err != nil {
		after := s.tree.Stats()
		s.opts.logger.LogPersist(ctx, after.DirtyTiles, after.DirtyLayers, err)
	} else {
		s.opts.logger.LogPersist(ctx, before.DirtyTiles, before.DirtyLayers, nil)
	}
	s.opts.metricsCollector.RecordPersist(time.Since(start), err)
	return err
}

// Stats returns a snapshot of the resident state.
func (s *Store) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Stats{Stats: s.tree.Stats(), MemoryBytes: s.rc.MemoryUsage()}
}

// Close persists everything and frees the resident tiles. Handles still
// held stay valid until released. Close is idempotent once it has
// succeeded. If persisting fails the store stays open with its unsaved
// data, so Close or PersistAll can be retried.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	if err := s.persist(context.Background()); err != nil {
		return err
	}
	s.tree.Unload()
	s.closed = true
	return nil
}

// ReleaseAll releases every handle of a Query result.
func ReleaseAll(res map[layer.Kind][]*Handle) {
	tile.ReleaseAll(res)
}
