package geotile

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"

	"github.com/hupe1980/geotile/blobstore"
	"github.com/hupe1980/geotile/geo"
	"github.com/hupe1980/geotile/internal/fs"
	"github.com/hupe1980/geotile/internal/tess"
	"github.com/hupe1980/geotile/layer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var lineSets = []layer.Kind{layer.KindLineSet}

func parallel(lat, lon0, lon1 float64) []geo.LLA {
	var pts []geo.LLA
	for i := 0; ; i++ {
		lon := lon0 + float64(i)*0.01
		if lon > lon1+1e-9 {
			break
		}
		pts = append(pts, geo.LLA{Lat: lat, Lon: lon})
	}
	return pts
}

func lines(pts ...[]geo.LLA) *layer.LineSet {
	ls := layer.NewLineSet(tess.Icosahedron()[0])
	for _, p := range pts {
		ls.AddLine(p)
	}
	return ls
}

func points(hs []*Handle) int {
	n := 0
	for _, h := range hs {
		n += h.Layer().(*layer.LineSet).NumPoints()
	}
	return n
}

func openStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	st, err := Open(context.Background(), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func TestOpen_NeedsStorage(t *testing.T) {
	_, err := Open(context.Background())
	assert.Error(t, err)
}

func TestStore_InsertQuery(t *testing.T) {
	ctx := context.Background()
	st := openStore(t, WithBlobStore(blobstore.NewMemoryStore()))

	require.NoError(t, st.Insert(ctx, lines(parallel(10, 10, 10.5))))
	require.NoError(t, st.Insert(ctx, nil))

	res, err := st.QueryLLA(ctx, lineSets, geo.LLA{Lat: 10, Lon: 10.2}, 10_000, 0)
	require.NoError(t, err)
	defer ReleaseAll(res)
	require.Len(t, res[layer.KindLineSet], 1)
	assert.Equal(t, 51, points(res[layer.KindLineSet]))

	far, err := st.QueryLLA(ctx, lineSets, geo.LLA{Lat: -30, Lon: 100}, 50_000, 0)
	require.NoError(t, err)
	assert.Empty(t, far[layer.KindLineSet])

	s := st.Stats()
	assert.Equal(t, int64(1), s.Handles)
	assert.Equal(t, 1, s.Layers)
	assert.Positive(t, s.MemoryBytes)
}

func TestStore_SeamDuplication(t *testing.T) {
	ctx := context.Background()
	st := openStore(t, WithBlobStore(blobstore.NewMemoryStore()))

	var meridian []geo.LLA
	for lat := -80; lat <= 80; lat++ {
		meridian = append(meridian, geo.LLA{Lat: float64(lat), Lon: 5})
	}
	require.NoError(t, st.Insert(ctx, lines(meridian)))

	res, err := st.QueryLLA(ctx, lineSets, geo.LLA{}, 1.3e7, 0)
	require.NoError(t, err)
	defer ReleaseAll(res)

	hs := res[layer.KindLineSet]
	require.Greater(t, len(hs), 1)
	// Every seam crossing is present on both sides.
	assert.GreaterOrEqual(t, points(hs), len(meridian)+len(hs)-1)

	merged := layer.NewLineSet(tess.Icosahedron()[0])
	for _, h := range hs {
		require.NoError(t, merged.Merge(h.Layer()))
	}
	require.Equal(t, 1, merged.NumLines())
	assert.GreaterOrEqual(t, merged.NumPoints(), len(meridian))
	assert.LessOrEqual(t, merged.NumPoints(), len(meridian)+len(hs)-1)
}

func TestStore_PersistReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	st, err := Open(ctx, WithDir(dir), WithLayerBudget(layer.KindLineSet, 64*layer.PointBytes), WithMaxLevel(8))
	require.NoError(t, err)
	require.NoError(t, st.Insert(ctx, lines(parallel(10, 10, 12))))

	res, err := st.QueryLLA(ctx, lineSets, geo.LLA{Lat: 10, Lon: 11}, 300_000, 0)
	require.NoError(t, err)
	want := points(res[layer.KindLineSet])
	ReleaseAll(res)
	require.NoError(t, st.Close())
	require.NoError(t, st.Close())

	_, err = st.Query(ctx, lineSets, geo.Vec3{}, 1, 0)
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, st.Insert(ctx, lines()), ErrClosed)
	assert.ErrorIs(t, st.PersistAll(ctx), ErrClosed)
	assert.ErrorIs(t, st.EvictToBudget(ctx), ErrClosed)

	again := openStore(t, WithDir(dir), WithLayerBudget(layer.KindLineSet, 64*layer.PointBytes), WithMaxLevel(8))
	res, err = again.QueryLLA(ctx, lineSets, geo.LLA{Lat: 10, Lon: 11}, 300_000, 0)
	require.NoError(t, err)
	defer ReleaseAll(res)
	assert.Equal(t, want, points(res[layer.KindLineSet]))
	assert.Greater(t, again.Stats().MaxLevel, 0)
}

func TestStore_EvictsAfterInsert(t *testing.T) {
	ctx := context.Background()
	st := openStore(t,
		WithBlobStore(blobstore.NewMemoryStore()),
		WithLayerBudget(layer.KindLineSet, 32*layer.PointBytes),
		WithMaxLevel(10),
		WithMaxTiles(8),
	)

	require.NoError(t, st.Insert(ctx, lines(parallel(10, 10, 12), parallel(11, 10, 12))))
	s := st.Stats()
	assert.LessOrEqual(t, s.Tiles, tess.NumRoots+8)
	assert.Positive(t, s.EvictedTiles)
	assert.NoError(t, st.EvictToBudget(ctx))
}

func TestStore_MemoryLimit(t *testing.T) {
	ctx := context.Background()
	st := openStore(t,
		WithBlobStore(blobstore.NewMemoryStore()),
		WithLayerBudget(layer.KindLineSet, 32*layer.PointBytes),
		WithMemoryLimit(1),
	)

	require.NoError(t, st.Insert(ctx, lines(parallel(10, 10, 12))))
	s := st.Stats()
	assert.Zero(t, s.Layers)
	assert.Zero(t, s.MemoryBytes)
	assert.Positive(t, s.EvictedLayers)
}

func TestStore_Remove(t *testing.T) {
	ctx := context.Background()
	st := openStore(t,
		WithBlobStore(blobstore.NewMemoryStore()),
		WithLayerBudget(layer.KindLineSet, 64*layer.PointBytes),
		WithMaxLevel(8),
	)
	require.NoError(t, st.Insert(ctx, lines(parallel(10, 10, 12))))

	res, err := st.QueryLLA(ctx, lineSets, geo.LLA{Lat: 10, Lon: 11}, 1000, 1e12)
	require.NoError(t, err)
	require.Len(t, res[layer.KindLineSet], 1)
	h := res[layer.KindLineSet][0]

	require.NoError(t, st.Remove(ctx, h, -1))
	h.Release()
	assert.ErrorIs(t, st.Remove(ctx, h, 0), ErrHandleReleased)

	res, err = st.QueryLLA(ctx, lineSets, geo.LLA{Lat: 10, Lon: 11}, 300_000, 0)
	require.NoError(t, err)
	assert.Empty(t, res[layer.KindLineSet])
}

func TestStore_PersistFailure(t *testing.T) {
	ctx := context.Background()
	ffs := fs.NewFaultyFS(nil)
	st := openStore(t, WithBlobStore(blobstore.NewLocalStore(t.TempDir(), blobstore.WithFileSystem(ffs))))

	require.NoError(t, st.Insert(ctx, lines(parallel(10, 10, 10.5))))

	ffs.AddRule("index", fs.Fault{FailAfterBytes: -1, FailOnRename: true})
	err := st.PersistAll(ctx)
	require.Error(t, err)
	var pe *PersistError
	require.True(t, errors.As(err, &pe))
	assert.Positive(t, st.Stats().DirtyTiles)

	ffs.Clear()
	require.NoError(t, st.PersistAll(ctx))
	assert.Zero(t, st.Stats().DirtyTiles)
}

func TestStore_CloseFailureKeepsData(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	ffs := fs.NewFaultyFS(nil)
	st, err := Open(ctx, WithBlobStore(blobstore.NewLocalStore(dir, blobstore.WithFileSystem(ffs))))
	require.NoError(t, err)
	require.NoError(t, st.Insert(ctx, lines(parallel(10, 10, 10.5))))

	ffs.AddRule("lineset", fs.Fault{FailAfterBytes: -1, FailOnRename: true})
	err = st.Close()
	require.Error(t, err)
	var pe *PersistError
	require.True(t, errors.As(err, &pe))

	// Still open with the unsaved data resident.
	assert.Positive(t, st.Stats().DirtyLayers)
	res, err := st.QueryLLA(ctx, lineSets, geo.LLA{Lat: 10, Lon: 10.2}, 10_000, 0)
	require.NoError(t, err)
	assert.Equal(t, 51, points(res[layer.KindLineSet]))
	ReleaseAll(res)

	ffs.Clear()
	require.NoError(t, st.Close())
	assert.ErrorIs(t, st.PersistAll(ctx), ErrClosed)

	again := openStore(t, WithDir(dir))
	res, err = again.QueryLLA(ctx, lineSets, geo.LLA{Lat: 10, Lon: 10.2}, 10_000, 0)
	require.NoError(t, err)
	defer ReleaseAll(res)
	assert.Equal(t, 51, points(res[layer.KindLineSet]))
}

func TestStore_InsertLeavesPinnedHandle(t *testing.T) {
	ctx := context.Background()
	st := openStore(t, WithBlobStore(blobstore.NewMemoryStore()))
	require.NoError(t, st.Insert(ctx, lines(parallel(10, 10, 10.2))))

	res, err := st.QueryLLA(ctx, lineSets, geo.LLA{Lat: 10, Lon: 10.1}, 10_000, 0)
	require.NoError(t, err)
	defer ReleaseAll(res)
	require.Len(t, res[layer.KindLineSet], 1)
	pinned := res[layer.KindLineSet][0].Layer().(*layer.LineSet)
	require.Equal(t, 21, pinned.NumPoints())

	var wg sync.WaitGroup
	done := make(chan struct{})
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-done:
				return
			default:
				_ = pinned.NumPoints()
			}
		}
	}()
	err = st.Insert(ctx, lines(parallel(10.05, 10, 10.2)))
	close(done)
	wg.Wait()
	require.NoError(t, err)

	assert.Equal(t, 21, pinned.NumPoints())

	fresh, err := st.QueryLLA(ctx, lineSets, geo.LLA{Lat: 10, Lon: 10.1}, 10_000, 0)
	require.NoError(t, err)
	defer ReleaseAll(fresh)
	assert.Equal(t, 42, points(fresh[layer.KindLineSet]))
}

func TestStore_InvalidKind(t *testing.T) {
	st := openStore(t, WithBlobStore(blobstore.NewMemoryStore()))
	_, err := st.Query(context.Background(), []layer.Kind{layer.Kind(42)}, geo.Vec3{}, 1, 0)
	assert.ErrorIs(t, err, ErrInvalidKind)
}

func TestStore_GeoJSON(t *testing.T) {
	ctx := context.Background()
	st := openStore(t, WithBlobStore(blobstore.NewMemoryStore()), WithCompression(layer.CompressionZSTD))

	coast, err := layer.FromGeoJSON([]byte(`{"type":"FeatureCollection","features":[
		{"type":"Feature","properties":{},"geometry":{"type":"LineString","coordinates":[[10,10],[10.1,10],[10.2,10.05]]}}]}`))
	require.NoError(t, err)
	require.NoError(t, st.Insert(ctx, coast))

	res, err := st.QueryLLA(ctx, lineSets, geo.LLA{Lat: 10, Lon: 10.1}, 20_000, 0)
	require.NoError(t, err)
	defer ReleaseAll(res)
	assert.Equal(t, 3, points(res[layer.KindLineSet]))
	require.NoError(t, st.PersistAll(ctx))
}

func TestStore_MetricsAndLogging(t *testing.T) {
	ctx := context.Background()
	var buf bytes.Buffer
	metrics := &BasicMetricsCollector{}
	st := openStore(t,
		WithBlobStore(blobstore.NewMemoryStore()),
		WithMetricsCollector(metrics),
		WithLogger(NewLogger(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))),
	)

	require.NoError(t, st.Insert(ctx, lines(parallel(10, 10, 10.5))))
	res, err := st.QueryLLA(ctx, lineSets, geo.LLA{Lat: 10, Lon: 10.2}, 10_000, 0)
	require.NoError(t, err)
	ReleaseAll(res)
	require.NoError(t, st.PersistAll(ctx))

	stats := metrics.GetStats()
	assert.Equal(t, int64(1), stats.InsertCount)
	assert.Equal(t, int64(1), stats.QueryCount)
	assert.Equal(t, int64(1), stats.QueryHandles)
	assert.Equal(t, int64(1), stats.PersistCount)
	assert.Zero(t, stats.InsertErrors)

	out := buf.String()
	assert.Contains(t, out, "insert completed")
	assert.Contains(t, out, "query completed")
	assert.Contains(t, out, "persist completed")
}
