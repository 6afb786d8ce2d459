// Package geo provides the geometry primitives used by the tile store:
// geodetic and earth-fixed Cartesian positions on the WGS-84 ellipsoid and
// spherical-cone triangles with the predicates the spatial index needs.
//
// # Positions
//
// Every stored point exists twice: as an [LLA] (latitude and longitude in
// degrees, altitude in metres) and as a [Vec3] in earth-centred,
// earth-fixed metres. [ToECEF] and [ToLLA] convert between the two.
//
// # Triangles
//
// A [Triangle] is flat in Cartesian space but its predicates work on the
// cone spanned by the earth centre and the three vertices. A surface point
// is projected along the ray from the earth centre into the triangle
// plane before barycentric coordinates are solved, so the 20 icosahedron
// faces and their recursive subdivisions partition the whole surface.
package geo
