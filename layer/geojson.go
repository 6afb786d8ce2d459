package layer

import (
	"fmt"

	"github.com/hupe1980/geotile/geo"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// FromGeoJSON reads every line-like geometry of a FeatureCollection into
// a new line set. Polygon rings become closed lines; points are ignored.
func FromGeoJSON(data []byte) (*LineSet, error) {
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("parse geojson: %w", err)
	}
	ls := NewLineSet(geo.Triangle{})
	for _, f := range fc.Features {
		if f.Geometry != nil {
			ls.AddGeometry(f.Geometry)
		}
	}
	return ls, nil
}

// AddGeometry appends the lines of an orb geometry. Coordinates are
// longitude, latitude in degrees at altitude zero.
func (ls *LineSet) AddGeometry(g orb.Geometry) {
	switch g := g.(type) {
	case orb.LineString:
		ls.AddLine(toLLA(g))
	case orb.MultiLineString:
		for _, l := range g {
			ls.AddLine(toLLA(l))
		}
	case orb.Ring:
		ls.AddLine(toLLA(g))
	case orb.Polygon:
		for _, r := range g {
			ls.AddLine(toLLA(r))
		}
	case orb.MultiPolygon:
		for _, p := range g {
			ls.AddGeometry(p)
		}
	case orb.Collection:
		for _, c := range g {
			ls.AddGeometry(c)
		}
	}
}

func toLLA(pts []orb.Point) []geo.LLA {
	out := make([]geo.LLA, len(pts))
	for i, p := range pts {
		out[i] = geo.LLA{Lat: p.Lat(), Lon: p.Lon()}
	}
	return out
}

// ToOrb returns the lines as an orb MultiLineString. Altitudes are dropped.
func (ls *LineSet) ToOrb() orb.MultiLineString {
	mls := make(orb.MultiLineString, 0, len(ls.lines))
	for _, l := range ls.lines {
		s := make(orb.LineString, len(l.Geo))
		for i, g := range l.Geo {
			s[i] = orb.Point{g.Lon, g.Lat}
		}
		mls = append(mls, s)
	}
	return mls
}

// ToGeoJSON encodes the lines as a FeatureCollection with one
// MultiLineString feature.
func (ls *LineSet) ToGeoJSON() ([]byte, error) {
	fc := geojson.NewFeatureCollection()
	f := geojson.NewFeature(ls.ToOrb())
	f.Properties["resolution"] = ls.resolution
	fc.Append(f)
	return fc.MarshalJSON()
}
