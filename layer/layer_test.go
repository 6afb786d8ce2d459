package layer

import (
	"testing"

	"github.com/hupe1980/geotile/geo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	tri := testTriangle()

	l, err := New(KindLineSet, tri)
	require.NoError(t, err)
	assert.IsType(t, &LineSet{}, l)
	assert.Equal(t, tri, l.Triangle())

	l, err = New(KindRaster, tri)
	require.NoError(t, err)
	assert.IsType(t, &Raster{}, l)
	assert.True(t, l.State().Active())

	_, err = New(Kind(9), tri)
	assert.ErrorIs(t, err, ErrInvalidKind)
}

func TestParseKind(t *testing.T) {
	for _, k := range Kinds() {
		got, err := ParseKind(k.String())
		require.NoError(t, err)
		assert.Equal(t, k, got)
		assert.NotEmpty(t, k.FileName())
	}
	k, err := ParseKind(" Coastlines ")
	require.NoError(t, err)
	assert.Equal(t, KindLineSet, k)

	_, err = ParseKind("vector")
	assert.ErrorIs(t, err, ErrInvalidKind)
	assert.False(t, Kind(0).Valid())
}

func TestLoad(t *testing.T) {
	ls := NewLineSet(testTriangle())
	ls.AddLine([]geo.LLA{{Lat: 1, Lon: 1}, {Lat: 2, Lon: 2}})
	data, err := ls.Encode(CompressionLZ4)
	require.NoError(t, err)

	l, err := Load(KindLineSet, testTriangle(), data)
	require.NoError(t, err)
	assert.Equal(t, 2, l.(*LineSet).NumPoints())
	assert.False(t, l.State().Dirty())

	_, err = Load(KindRaster, testTriangle(), data)
	assert.ErrorIs(t, err, ErrCorrupt)
}

func TestState_PinAndDetach(t *testing.T) {
	var s State
	s.Attach()
	assert.True(t, s.Attached())

	s.Pin()
	s.Pin()
	assert.True(t, s.Pinned())

	// Detached while pinned: the last unpin frees it.
	assert.False(t, s.Detach())
	assert.False(t, s.Unpin())
	assert.True(t, s.Unpin())
	assert.False(t, s.Pinned())
}

func TestState_UnpinAttached(t *testing.T) {
	var s State
	s.Attach()
	s.Pin()
	assert.False(t, s.Unpin())
	assert.True(t, s.Detach())
}

func TestState_Dirty(t *testing.T) {
	var s State
	assert.False(t, s.Dirty())
	s.MarkDirty()
	assert.True(t, s.Dirty())
	s.ClearDirty()
	assert.False(t, s.Dirty())
}
