package tess

import (
	"math/rand"
	"testing"

	"github.com/hupe1980/geotile/geo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIcosahedron_Winding(t *testing.T) {
	for i, tri := range Icosahedron() {
		assert.Greater(t, tri.Normal().Dot(tri.Centroid()), 0.0, "root %d", i)
		for _, g := range tri.G {
			assert.InDelta(t, 0, g.Alt, 1e-6)
		}
	}
}

func TestIcosahedron_Congruent(t *testing.T) {
	roots := Icosahedron()
	want := roots[0].EdgeLength()
	for _, r := range roots {
		// The ellipsoid flattening makes faces only nearly congruent.
		assert.InEpsilon(t, want, r.EdgeLength(), 0.01)
	}
}

func TestIcosahedron_CoversSphere(t *testing.T) {
	roots := Icosahedron()
	rng := rand.New(rand.NewSource(7))

	for range 5000 {
		p := geo.ToECEF(geo.LLA{
			Lat: rng.Float64()*180 - 90,
			Lon: rng.Float64()*360 - 180,
		})
		hits := 0
		for _, r := range roots {
			if r.Contains(p) {
				hits++
			}
		}
		require.GreaterOrEqual(t, hits, 1, "point %+v not covered", geo.ToLLA(p))
	}
}
