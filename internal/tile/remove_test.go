package tile

import (
	"context"
	"testing"

	"github.com/hupe1980/geotile/blobstore"
	"github.com/hupe1980/geotile/geo"
	"github.com/hupe1980/geotile/layer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// twoLines inserts a line along latitude 10 and one along latitude 11,
// both deep enough to split root 19 several times.
func twoLines(t *testing.T, tr *Tree) (a, b []geo.LLA) {
	t.Helper()
	ctx := context.Background()
	a = parallel(10, 10, 12)
	b = parallel(11, 10, 12)
	require.NoError(t, tr.Insert(ctx, lines(a)))
	require.NoError(t, tr.Insert(ctx, lines(b)))
	return a, b
}

func rootHandle(t *testing.T, tr *Tree) *Handle {
	t.Helper()
	res, err := tr.Query(context.Background(), []layer.Kind{layer.KindLineSet}, near(10.5, 11), 1000, 1e12)
	require.NoError(t, err)
	hs := res[layer.KindLineSet]
	require.Len(t, hs, 1)
	require.Equal(t, 0, hs[0].Level())
	return hs[0]
}

func subIDAt(t *testing.T, h *Handle, p geo.Vec3) int {
	t.Helper()
	ls := h.Layer().(*layer.LineSet)
	for i, l := range ls.Lines() {
		if l.Pos[0].ApproxEqual(p, layer.MatchTolerance) || l.Pos[l.Len()-1].ApproxEqual(p, layer.MatchTolerance) {
			return i
		}
	}
	t.Fatalf("no line ends at %v", p)
	return -1
}

func TestRemove_WholeElementAcrossTiles(t *testing.T) {
	ctx := context.Background()
	tr := openTree(t, testConfig(blobstore.NewMemoryStore()))
	a, _ := twoLines(t, tr)

	h := rootHandle(t, tr)
	require.Equal(t, 2, h.Layer().(*layer.LineSet).NumLines())
	old := h.Layer()

	require.NoError(t, tr.Remove(ctx, h, subIDAt(t, h, geo.ToECEF(a[0]))))

	// The replaced summary stays readable until the handle goes away.
	assert.True(t, old.State().Active())
	assert.Equal(t, 2, old.(*layer.LineSet).NumLines())
	h.Release()
	assert.False(t, old.State().Active())

	res, err := tr.Query(ctx, []layer.Kind{layer.KindLineSet}, near(10.5, 11), 300_000, 0)
	require.NoError(t, err)
	defer ReleaseAll(res)

	hs := res[layer.KindLineSet]
	require.NotEmpty(t, hs)
	for _, h := range hs {
		for _, l := range h.Layer().(*layer.LineSet).Lines() {
			for _, g := range l.Geo {
				assert.Greater(t, g.Lat, 10.5)
			}
		}
	}
	assert.GreaterOrEqual(t, countPoints(hs), 201)

	root := rootHandle(t, tr)
	defer root.Release()
	assert.Equal(t, 1, root.Layer().(*layer.LineSet).NumLines())
}

func TestRemove_Clear(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewMemoryStore()
	tr := openTree(t, testConfig(store))
	twoLines(t, tr)
	require.NoError(t, tr.SaveAll(ctx))

	h := rootHandle(t, tr)
	require.NoError(t, tr.Remove(ctx, h, -1))
	h.Release()

	res, err := tr.Query(ctx, []layer.Kind{layer.KindLineSet}, near(10.5, 11), 300_000, 0)
	require.NoError(t, err)
	assert.Empty(t, res[layer.KindLineSet])

	names, err := store.List(ctx, "")
	require.NoError(t, err)
	for _, n := range names {
		assert.NotContains(t, n, layer.KindLineSet.FileName())
	}
}

func TestRemove_Errors(t *testing.T) {
	ctx := context.Background()
	tr := openTree(t, testConfig(blobstore.NewMemoryStore()))
	twoLines(t, tr)

	h := rootHandle(t, tr)
	err := tr.Remove(ctx, h, 99)
	assert.ErrorIs(t, err, ErrNotFound)

	h.Release()
	assert.ErrorIs(t, tr.Remove(ctx, h, 0), ErrHandleReleased)
	assert.ErrorIs(t, tr.Remove(ctx, nil, 0), ErrHandleReleased)

	res, err := tr.Query(ctx, []layer.Kind{layer.KindLineSet}, near(10.5, 11), 300_000, 0)
	require.NoError(t, err)
	defer ReleaseAll(res)

	var leaf *Handle
	for _, h := range res[layer.KindLineSet] {
		if !h.tile.HasChildren() {
			leaf = h
			break
		}
	}
	require.NotNil(t, leaf)
	assert.ErrorIs(t, tr.Remove(ctx, leaf, 0), ErrLeafDelete)
}

func TestRemove_PinnedLeafUnchanged(t *testing.T) {
	ctx := context.Background()
	tr := openTree(t, testConfig(blobstore.NewMemoryStore()))
	a, _ := twoLines(t, tr)

	leaves, err := tr.Query(ctx, []layer.Kind{layer.KindLineSet}, geo.ToECEF(a[0]), 1000, 0)
	require.NoError(t, err)
	require.NotEmpty(t, leaves[layer.KindLineSet])
	before := countPoints(leaves[layer.KindLineSet])
	require.Positive(t, before)

	h := rootHandle(t, tr)
	require.NoError(t, tr.Remove(ctx, h, subIDAt(t, h, geo.ToECEF(a[0]))))
	h.Release()

	// Pinned leaf payloads are replaced, not edited.
	assert.Equal(t, before, countPoints(leaves[layer.KindLineSet]))
	ReleaseAll(leaves)

	res, err := tr.Query(ctx, []layer.Kind{layer.KindLineSet}, geo.ToECEF(a[0]), 1000, 0)
	require.NoError(t, err)
	defer ReleaseAll(res)
	assert.Zero(t, countPoints(res[layer.KindLineSet]))
}

func TestRemove_RasterPixel(t *testing.T) {
	ctx := context.Background()
	tr := openTree(t, testConfig(blobstore.NewMemoryStore()))
	patch := layer.NewRaster(geo.NewTriangleLLA(
		geo.LLA{Lat: 10, Lon: 10},
		geo.LLA{Lat: 10, Lon: 12},
		geo.LLA{Lat: 12, Lon: 11},
	))
	patch.Fill(func(geo.Vec3) (float64, bool) { return -100, true })
	require.NoError(t, tr.Insert(ctx, patch))
	c := patch.Triangle().Centroid()
	kinds := []layer.Kind{layer.KindRaster}

	coarse, err := tr.Query(ctx, kinds, c, 1000, 1e9)
	require.NoError(t, err)
	require.Len(t, coarse[layer.KindRaster], 1)
	h := coarse[layer.KindRaster][0]
	require.Equal(t, 0, h.Level())
	summary := h.Layer().(*layer.Raster)
	px, py, ok := summary.Pixel(c)
	require.True(t, ok)
	require.True(t, summary.Covered(px, py))
	id := py*layer.RasterSize + px
	anchor, ok := summary.Anchor(id)
	require.True(t, ok)
	anchor = geo.Reproject(anchor)
	require.True(t, sampled(t, tr, anchor))
	coverage := summary.Coverage()

	require.NoError(t, tr.Remove(ctx, h, id))

	// The pinned summary keeps its content.
	assert.True(t, summary.Covered(px, py))
	assert.Equal(t, coverage, summary.Coverage())
	h.Release()

	again, err := tr.Query(ctx, kinds, c, 1000, 1e9)
	require.NoError(t, err)
	defer ReleaseAll(again)
	require.Len(t, again[layer.KindRaster], 1)
	assert.Equal(t, 0, again[layer.KindRaster][0].Level())
	rebuilt := again[layer.KindRaster][0].Layer().(*layer.Raster)
	assert.False(t, rebuilt.Covered(px, py))
	assert.Positive(t, rebuilt.Coverage())

	// The data under the pixel is gone at full resolution too.
	assert.False(t, sampled(t, tr, anchor))
}

// sampled reports whether any full-resolution raster holds data at p.
func sampled(t *testing.T, tr *Tree, p geo.Vec3) bool {
	t.Helper()
	res, err := tr.Query(context.Background(), []layer.Kind{layer.KindRaster}, p, 100, 0)
	require.NoError(t, err)
	defer ReleaseAll(res)
	for _, h := range res[layer.KindRaster] {
		if _, ok := h.Layer().(*layer.Raster).SampleAt(p); ok {
			return true
		}
	}
	return false
}
