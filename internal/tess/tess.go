// Package tess builds the seed tessellation of the tile index: the 20
// faces of an icosahedron inscribed in the WGS-84 ellipsoid.
package tess

import (
	"math"

	"github.com/hupe1980/geotile/geo"
)

// NumRoots is the number of permanent root tiles.
const NumRoots = 20

var faces = [NumRoots][3]int{
	{0, 11, 5}, {0, 5, 1}, {0, 1, 7}, {0, 7, 10}, {0, 10, 11},
	{1, 5, 9}, {5, 11, 4}, {11, 10, 2}, {10, 7, 6}, {7, 1, 8},
	{3, 9, 4}, {3, 4, 2}, {3, 2, 6}, {3, 6, 8}, {3, 8, 9},
	{4, 9, 5}, {2, 4, 11}, {6, 2, 10}, {8, 6, 7}, {9, 8, 1},
}

// Vertices returns the 12 icosahedron vertices on the ellipsoid surface.
func Vertices() [12]geo.Vec3 {
	phi := (1 + math.Sqrt(5)) / 2
	raw := [12]geo.Vec3{
		{X: -1, Y: phi}, {X: 1, Y: phi}, {X: -1, Y: -phi}, {X: 1, Y: -phi},
		{Y: -1, Z: phi}, {Y: 1, Z: phi}, {Y: -1, Z: -phi}, {Y: 1, Z: -phi},
		{X: phi, Z: -1}, {X: phi, Z: 1}, {X: -phi, Z: -1}, {X: -phi, Z: 1},
	}

	var out [12]geo.Vec3
	for i, v := range raw {
		out[i] = geo.Reproject(v.Normalize().Scale(geo.SemiMajorAxis))
	}
	return out
}

// Icosahedron returns the 20 root triangles, each counter-clockwise.
func Icosahedron() [NumRoots]geo.Triangle {
	v := Vertices()
	var out [NumRoots]geo.Triangle
	for i, f := range faces {
		out[i] = geo.NewTriangle(v[f[0]], v[f[1]], v[f[2]])
	}
	return out
}
