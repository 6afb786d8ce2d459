package geo

import "math"

// WGS-84 reference ellipsoid.
const (
	SemiMajorAxis = 6378137.0
	Flattening    = 1 / 298.257223563
	SemiMinorAxis = SemiMajorAxis * (1 - Flattening)

	eccSq = Flattening * (2 - Flattening)
)

// LLA is a geodetic position: latitude and longitude in degrees, altitude
// in metres above the ellipsoid.
type LLA struct {
	Lat, Lon, Alt float64
}

func deg2rad(d float64) float64 { return d * math.Pi / 180 }
func rad2deg(r float64) float64 { return r * 180 / math.Pi }

// ToECEF converts a geodetic position to earth-fixed Cartesian coordinates.
func ToECEF(p LLA) Vec3 {
	lat, lon := deg2rad(p.Lat), deg2rad(p.Lon)
	sinLat, cosLat := math.Sincos(lat)
	sinLon, cosLon := math.Sincos(lon)
	n := SemiMajorAxis / math.Sqrt(1-eccSq*sinLat*sinLat)

	return Vec3{
		X: (n + p.Alt) * cosLat * cosLon,
		Y: (n + p.Alt) * cosLat * sinLon,
		Z: (n*(1-eccSq) + p.Alt) * sinLat,
	}
}

// ToLLA converts earth-fixed Cartesian coordinates to a geodetic position.
// Latitude is found by fixed-point iteration, which converges to well
// below a micrometre for terrestrial altitudes.
func ToLLA(v Vec3) LLA {
	p := math.Hypot(v.X, v.Y)
	lon := math.Atan2(v.Y, v.X)

	if p < 1e-9 {
		lat := math.Pi / 2
		if v.Z < 0 {
			lat = -lat
		}
		return LLA{Lat: rad2deg(lat), Lon: 0, Alt: math.Abs(v.Z) - SemiMinorAxis}
	}

	lat := math.Atan2(v.Z, p*(1-eccSq))
	var alt float64
	for range 16 {
		sinLat, cosLat := math.Sincos(lat)
		n := SemiMajorAxis / math.Sqrt(1-eccSq*sinLat*sinLat)
		if math.Abs(lat) < math.Pi/4 {
			alt = p/cosLat - n
		} else {
			alt = v.Z/sinLat - n*(1-eccSq)
		}
		next := math.Atan2(v.Z, p*(1-eccSq*n/(n+alt)))
		if math.Abs(next-lat) < 1e-15 {
			lat = next
			break
		}
		lat = next
	}

	return LLA{Lat: rad2deg(lat), Lon: rad2deg(lon), Alt: alt}
}

// Reproject moves v onto the ellipsoid surface along its geodetic normal.
func Reproject(v Vec3) Vec3 {
	return ReprojectAlt(v, 0)
}

// ReprojectAlt moves v along its geodetic normal to the given altitude.
func ReprojectAlt(v Vec3, alt float64) Vec3 {
	g := ToLLA(v)
	g.Alt = alt
	return ToECEF(g)
}

// SurfaceMidpoint returns the midpoint of a and b re-projected to the
// average of their altitudes.
func SurfaceMidpoint(a, b Vec3) (Vec3, LLA) {
	ga, gb := ToLLA(a), ToLLA(b)
	g := ToLLA(a.Lerp(b, 0.5))
	g.Alt = (ga.Alt + gb.Alt) / 2
	return ToECEF(g), g
}
