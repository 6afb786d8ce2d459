package layer

import (
	"testing"

	"github.com/hupe1980/geotile/geo"
	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const coastFixture = `{
  "type": "FeatureCollection",
  "features": [
    {"type": "Feature", "properties": {"name": "shore"},
     "geometry": {"type": "LineString", "coordinates": [[10, 50], [10.5, 50.5], [11, 51]]}},
    {"type": "Feature", "properties": {"name": "island"},
     "geometry": {"type": "Polygon", "coordinates": [[[0, 0], [1, 0], [1, 1], [0, 0]]]}},
    {"type": "Feature", "properties": {"name": "buoy"},
     "geometry": {"type": "Point", "coordinates": [3, 3]}}
  ]
}`

func TestFromGeoJSON(t *testing.T) {
	ls, err := FromGeoJSON([]byte(coastFixture))
	require.NoError(t, err)
	require.Equal(t, 2, ls.NumLines())

	lines := ls.Lines()
	assert.Equal(t, geo.LLA{Lat: 50.5, Lon: 10.5}, lines[0].Geo[1])
	assert.False(t, lines[0].Closed())
	assert.True(t, lines[1].Closed())
}

func TestFromGeoJSON_Invalid(t *testing.T) {
	_, err := FromGeoJSON([]byte(`{"type":`))
	assert.Error(t, err)
}

func TestToGeoJSON_RoundTrip(t *testing.T) {
	ls, err := FromGeoJSON([]byte(coastFixture))
	require.NoError(t, err)

	data, err := ls.ToGeoJSON()
	require.NoError(t, err)

	back, err := FromGeoJSON(data)
	require.NoError(t, err)
	assert.Equal(t, ls.NumLines(), back.NumLines())
	assert.Equal(t, ls.NumPoints(), back.NumPoints())
}

func TestAddGeometry_Collections(t *testing.T) {
	ls := NewLineSet(geo.Triangle{})
	ls.AddGeometry(orb.Collection{
		orb.MultiLineString{{{0, 0}, {1, 1}}, {{2, 2}, {3, 3}}},
		orb.MultiPolygon{{{{0, 0}, {1, 0}, {0, 1}, {0, 0}}}},
		orb.Point{5, 5},
	})
	assert.Equal(t, 3, ls.NumLines())

	mls := ls.ToOrb()
	require.Len(t, mls, 3)
	assert.Equal(t, orb.Point{1, 1}, mls[0][1])
}
