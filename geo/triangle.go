package geo

import "math"

// baryEpsilon absorbs rounding for points that sit exactly on an edge.
const baryEpsilon = 1e-12

// Triangle is a tile face. Vertices are kept counter-clockwise when seen
// from outside the earth, so Normal points away from the earth centre.
type Triangle struct {
	V [3]Vec3
	G [3]LLA
}

// NewTriangle builds a triangle from Cartesian vertices, swapping the last
// two if the winding is clockwise.
func NewTriangle(a, b, c Vec3) Triangle {
	n := b.Sub(a).Cross(c.Sub(a))
	if n.Dot(a.Add(b).Add(c)) < 0 {
		b, c = c, b
	}
	return Triangle{
		V: [3]Vec3{a, b, c},
		G: [3]LLA{ToLLA(a), ToLLA(b), ToLLA(c)},
	}
}

// NewTriangleLLA builds a triangle from geodetic vertices.
func NewTriangleLLA(a, b, c LLA) Triangle {
	t := NewTriangle(ToECEF(a), ToECEF(b), ToECEF(c))
	// Keep the caller's geodetic values bit-exact where the winding allowed it.
	if t.V[1] == ToECEF(b) {
		t.G = [3]LLA{a, b, c}
	} else {
		t.G = [3]LLA{a, c, b}
	}
	return t
}

// Normal returns the non-normalised outward face normal.
func (t Triangle) Normal() Vec3 {
	return t.V[1].Sub(t.V[0]).Cross(t.V[2].Sub(t.V[0]))
}

// Centroid returns the mean of the three vertices.
func (t Triangle) Centroid() Vec3 {
	return t.V[0].Add(t.V[1]).Add(t.V[2]).Scale(1.0 / 3)
}

// Radius returns the bounding-sphere radius around the centroid.
func (t Triangle) Radius() float64 {
	c := t.Centroid()
	return math.Max(c.Dist(t.V[0]), math.Max(c.Dist(t.V[1]), c.Dist(t.V[2])))
}

// EdgeLength returns the longest edge length.
func (t Triangle) EdgeLength() float64 {
	return math.Max(t.V[0].Dist(t.V[1]), math.Max(t.V[1].Dist(t.V[2]), t.V[2].Dist(t.V[0])))
}

// project moves p along the ray from the earth centre into the triangle
// plane. The returned factor is the scale applied to p; ok is false if the
// ray never reaches the plane.
func (t Triangle) project(p Vec3) (q Vec3, factor float64, ok bool) {
	n := t.Normal()
	d := n.Dot(p)
	if d <= 0 {
		return Vec3{}, 0, false
	}
	factor = n.Dot(t.V[0]) / d
	return p.Scale(factor), factor, true
}

// planeBarycentric solves barycentric coordinates for q, which must lie in
// the triangle plane. u weights V[1], v weights V[2].
func (t Triangle) planeBarycentric(q Vec3) (u, v float64) {
	e1 := t.V[1].Sub(t.V[0])
	e2 := t.V[2].Sub(t.V[0])
	w := q.Sub(t.V[0])

	d00 := e1.Dot(e1)
	d01 := e1.Dot(e2)
	d11 := e2.Dot(e2)
	d20 := w.Dot(e1)
	d21 := w.Dot(e2)

	den := d00*d11 - d01*d01
	if den == 0 {
		return math.Inf(-1), math.Inf(-1)
	}
	u = (d11*d20 - d01*d21) / den
	v = (d00*d21 - d01*d20) / den
	return u, v
}

// Barycentric returns the barycentric coordinates of p after radial
// projection into the triangle plane.
func (t Triangle) Barycentric(p Vec3) (u, v float64, ok bool) {
	q, _, ok := t.project(p)
	if !ok {
		return 0, 0, false
	}
	u, v = t.planeBarycentric(q)
	return u, v, true
}

// Contains reports whether p lies inside the triangle's cone.
func (t Triangle) Contains(p Vec3) bool {
	u, v, ok := t.Barycentric(p)
	if !ok {
		return false
	}
	return u >= -baryEpsilon && v >= -baryEpsilon && u <= 1+baryEpsilon && v <= 1+baryEpsilon && u+v <= 1+baryEpsilon
}

// Score is the smallest barycentric coordinate of p. It is non-negative
// inside the triangle and grows towards the interior, so the triangle with
// the highest score is the best home for a point on or near a seam.
func (t Triangle) Score(p Vec3) float64 {
	u, v, ok := t.Barycentric(p)
	if !ok {
		return math.Inf(-1)
	}
	return math.Min(u, math.Min(v, 1-u-v))
}

// Best returns the index of the triangle in tris that scores p highest.
func Best(tris []Triangle, p Vec3) int {
	best, bestScore := 0, math.Inf(-1)
	for i, t := range tris {
		if s := t.Score(p); s > bestScore {
			best, bestScore = i, s
		}
	}
	return best
}

// ClosestPoint returns the point on the flat triangle nearest to p.
func (t Triangle) ClosestPoint(p Vec3) Vec3 {
	a, b, c := t.V[0], t.V[1], t.V[2]
	ab := b.Sub(a)
	ac := c.Sub(a)
	ap := p.Sub(a)

	d1 := ab.Dot(ap)
	d2 := ac.Dot(ap)
	if d1 <= 0 && d2 <= 0 {
		return a
	}

	bp := p.Sub(b)
	d3 := ab.Dot(bp)
	d4 := ac.Dot(bp)
	if d3 >= 0 && d4 <= d3 {
		return b
	}

	vc := d1*d4 - d3*d2
	if vc <= 0 && d1 >= 0 && d3 <= 0 {
		return a.Add(ab.Scale(d1 / (d1 - d3)))
	}

	cp := p.Sub(c)
	d5 := ab.Dot(cp)
	d6 := ac.Dot(cp)
	if d6 >= 0 && d5 <= d6 {
		return c
	}

	vb := d5*d2 - d1*d6
	if vb <= 0 && d2 >= 0 && d6 <= 0 {
		return a.Add(ac.Scale(d2 / (d2 - d6)))
	}

	va := d3*d6 - d5*d4
	if va <= 0 && (d4-d3) >= 0 && (d5-d6) >= 0 {
		return b.Add(c.Sub(b).Scale((d4 - d3) / ((d4 - d3) + (d5 - d6))))
	}

	denom := 1 / (va + vb + vc)
	v := vb * denom
	w := vc * denom
	return a.Add(ab.Scale(v)).Add(ac.Scale(w))
}

// IntersectsSphere reports whether the sphere (c, r) touches the tile.
//
// The flat face of a large tile lies far below the surface it covers, so
// besides the plain distance test the centre is also projected into the
// face plane, with the radius shrunk by the same factor.
func (t Triangle) IntersectsSphere(c Vec3, r float64) bool {
	if c.Dist(t.ClosestPoint(c)) <= r {
		return true
	}
	q, factor, ok := t.project(c)
	if !ok {
		return false
	}
	if u, v := t.planeBarycentric(q); u >= -baryEpsilon && v >= -baryEpsilon && u+v <= 1+baryEpsilon {
		return true
	}
	return q.Dist(t.ClosestPoint(q)) <= r*factor
}

// Subdivide splits the triangle into four. Edge midpoints are re-projected
// onto the ellipsoid so deep levels do not sink below the surface.
// Children 0, 1 and 2 hold the corners V[0], V[1] and V[2]; child 3 is the
// centre triangle.
func (t Triangle) Subdivide() [4]Triangle {
	m01, g01 := SurfaceMidpoint(t.V[0], t.V[1])
	m12, g12 := SurfaceMidpoint(t.V[1], t.V[2])
	m20, g20 := SurfaceMidpoint(t.V[2], t.V[0])

	mk := func(a, b, c Vec3, ga, gb, gc LLA) Triangle {
		return Triangle{V: [3]Vec3{a, b, c}, G: [3]LLA{ga, gb, gc}}
	}
	return [4]Triangle{
		mk(t.V[0], m01, m20, t.G[0], g01, g20),
		mk(m01, t.V[1], m12, g01, t.G[1], g12),
		mk(m20, m12, t.V[2], g20, g12, t.G[2]),
		mk(m01, m12, m20, g01, g12, g20),
	}
}

// ExitPoint returns where the segment p→q leaves the triangle's cone,
// re-projected to the interpolated altitude, together with the segment
// parameter s in [0,1]. If q is inside, q is returned with s=1. If p is
// already on or beyond an edge, p is returned with s=0.
func (t Triangle) ExitPoint(p, q Vec3) (Vec3, float64) {
	best := math.Inf(1)
	for i := range 3 {
		n := t.V[i].Cross(t.V[(i+1)%3])
		fp, fq := n.Dot(p), n.Dot(q)
		if fq >= 0 {
			continue
		}
		if fp <= 0 {
			return p, 0
		}
		if s := fp / (fp - fq); s < best {
			best = s
		}
	}
	if math.IsInf(best, 1) {
		return q, 1
	}
	if best >= 1 {
		return q, 1
	}

	gp, gq := ToLLA(p), ToLLA(q)
	x := ReprojectAlt(p.Lerp(q, best), gp.Alt+(gq.Alt-gp.Alt)*best)
	return x, best
}
