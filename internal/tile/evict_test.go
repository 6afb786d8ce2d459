package tile

import (
	"context"
	"errors"
	"testing"

	"github.com/hupe1980/geotile/blobstore"
	"github.com/hupe1980/geotile/internal/fs"
	"github.com/hupe1980/geotile/layer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func queryPoints(t *testing.T, tr *Tree) int {
	t.Helper()
	res, err := tr.Query(context.Background(), []layer.Kind{layer.KindLineSet}, near(10.5, 11), 300_000, 0)
	require.NoError(t, err)
	defer ReleaseAll(res)
	return countPoints(res[layer.KindLineSet])
}

func TestEvict_Tiles(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(blobstore.NewMemoryStore())
	tr := openTree(t, cfg)
	twoLines(t, tr)
	want := queryPoints(t, tr)

	tr.cfg.MaxTiles = 4
	tiles, _ := tr.Evict(ctx)
	assert.Positive(t, tiles)
	assert.LessOrEqual(t, tr.tiles.Len(), 4)

	s := tr.Stats()
	assert.LessOrEqual(t, s.Tiles, 24)
	assert.Equal(t, int64(tiles), s.EvictedTiles)

	// Evicted tiles come back from the store.
	assert.Equal(t, want, queryPoints(t, tr))
}

func TestEvict_PinnedTilesStay(t *testing.T) {
	ctx := context.Background()
	tr := openTree(t, testConfig(blobstore.NewMemoryStore()))
	twoLines(t, tr)

	res, err := tr.Query(ctx, []layer.Kind{layer.KindLineSet}, near(10.5, 11), 300_000, 0)
	require.NoError(t, err)
	hs := res[layer.KindLineSet]
	require.NotEmpty(t, hs)

	tr.cfg.MaxTiles = 0
	tr.Evict(ctx)

	for _, h := range hs {
		for c := h.tile; !c.isRoot(); c = c.parent {
			assert.Same(t, c, c.parent.children[c.childIndex()], c.path.String())
		}
		assert.True(t, h.Layer().State().Active())
	}

	ReleaseAll(res)
	tr.Evict(ctx)
	assert.Zero(t, tr.tiles.Len())
}

// A parent tile is evicted once its children are unloaded. It stays
// addressable through the downlink of its own parent and its index
// record, so the subtree reloads on demand.
func TestEvict_ParentsAfterChildren(t *testing.T) {
	ctx := context.Background()
	tr := openTree(t, testConfig(blobstore.NewMemoryStore()))
	twoLines(t, tr)
	want := queryPoints(t, tr)

	root := tr.Root(19)
	require.True(t, root.HasChildren())
	var parents int
	for _, c := range root.children {
		if c != nil && c.HasChildren() {
			parents++
		}
	}
	require.Positive(t, parents)

	tr.cfg.MaxTiles = 0
	tr.Evict(ctx)
	assert.Zero(t, tr.tiles.Len())
	assert.True(t, root.HasChildren())
	for _, c := range root.children {
		assert.Nil(t, c)
	}

	assert.Equal(t, want, queryPoints(t, tr))
}

func TestEvict_Layers(t *testing.T) {
	ctx := context.Background()
	tr := openTree(t, testConfig(blobstore.NewMemoryStore()))
	twoLines(t, tr)
	want := queryPoints(t, tr)

	tr.cfg.MaxLayerBytes = 1
	_, layers := tr.Evict(ctx)
	assert.Positive(t, layers)

	s := tr.Stats()
	assert.Zero(t, s.Layers)
	assert.Zero(t, s.DirtyLayers)

	tr.cfg.MaxLayerBytes = 1 << 30
	assert.Equal(t, want, queryPoints(t, tr))
}

func TestEvict_LayersSkipPinned(t *testing.T) {
	ctx := context.Background()
	tr := openTree(t, testConfig(blobstore.NewMemoryStore()))
	twoLines(t, tr)

	h := rootHandle(t, tr)
	defer h.Release()

	tr.cfg.MaxLayerBytes = 1
	tr.Evict(ctx)

	assert.True(t, h.Layer().State().Active())
	assert.Equal(t, 1, tr.Stats().Layers)
}

func TestEvict_FailedSaveKeepsData(t *testing.T) {
	ctx := context.Background()
	ffs := fs.NewFaultyFS(nil)
	store := blobstore.NewLocalStore(t.TempDir(), blobstore.WithFileSystem(ffs))
	tr := openTree(t, testConfig(store))
	twoLines(t, tr)
	want := queryPoints(t, tr)

	ffs.AddRule(layer.KindLineSet.FileName(), fs.Fault{FailAfterBytes: -1, FailOnRename: true})
	tr.cfg.MaxLayerBytes = 1
	_, layers := tr.Evict(ctx)
	assert.Zero(t, layers)
	assert.Positive(t, tr.Stats().DirtyLayers)

	ffs.Clear()
	_, layers = tr.Evict(ctx)
	assert.Positive(t, layers)

	tr.cfg.MaxLayerBytes = 1 << 30
	assert.Equal(t, want, queryPoints(t, tr))
}

func TestSaveAll_ReopenSameContent(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewLocalStore(t.TempDir())
	tr := openTree(t, testConfig(store))
	twoLines(t, tr)
	want := queryPoints(t, tr)

	require.NoError(t, tr.SaveAll(ctx))
	s := tr.Stats()
	assert.Zero(t, s.DirtyTiles)
	assert.Zero(t, s.DirtyLayers)

	again := openTree(t, testConfig(store))
	assert.True(t, again.Root(19).HasChildren())
	assert.Zero(t, again.Stats().DirtyTiles)
	assert.Equal(t, want, queryPoints(t, again))
}

func TestSaveAll_ReportsFailedTiles(t *testing.T) {
	ctx := context.Background()
	ffs := fs.NewFaultyFS(nil)
	store := blobstore.NewLocalStore(t.TempDir(), blobstore.WithFileSystem(ffs))
	tr := openTree(t, testConfig(store))
	twoLines(t, tr)

	ffs.AddRule(layer.KindLineSet.FileName(), fs.Fault{FailAfterBytes: -1, FailOnRename: true})
	err := tr.SaveAll(ctx)
	require.Error(t, err)

	var pe *PersistError
	require.True(t, errors.As(err, &pe))
	assert.NotEmpty(t, pe.Path)
	assert.ErrorIs(t, err, fs.ErrInjected)
	assert.Positive(t, tr.Stats().DirtyLayers)

	ffs.Clear()
	require.NoError(t, tr.SaveAll(ctx))
	assert.Zero(t, tr.Stats().DirtyLayers)
	assert.Zero(t, tr.Stats().DirtyTiles)
}

func TestUnload(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewMemoryStore()
	tr := openTree(t, testConfig(store))
	twoLines(t, tr)
	want := queryPoints(t, tr)
	require.NoError(t, tr.SaveAll(ctx))

	tr.Unload()
	s := tr.Stats()
	assert.Equal(t, 20, s.Tiles)
	assert.Zero(t, s.Layers)

	// Unload forgets the root layers as well; reopen to read them back.
	again := openTree(t, testConfig(store))
	assert.Equal(t, want, queryPoints(t, again))
}
