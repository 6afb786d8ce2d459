package layer

import (
	"container/heap"
	"encoding/binary"
	"fmt"
	"math"
	"slices"

	"github.com/hupe1980/geotile/geo"
	"github.com/hupe1980/geotile/internal/compress"
)

const (
	// MatchTolerance is the distance in metres under which two line
	// endpoints are treated as the same point.
	MatchTolerance = 1e-3

	// PointBytes is the resident cost of one line vertex: a geodetic and
	// a Cartesian triple.
	PointBytes = 48
)

// Line is a polyline kept as parallel geodetic and Cartesian sequences.
// Pos[i] is always geo.ToECEF(Geo[i]).
type Line struct {
	Geo []geo.LLA
	Pos []geo.Vec3
}

// NewLine builds a line from geodetic points.
func NewLine(points []geo.LLA) Line {
	l := Line{
		Geo: make([]geo.LLA, len(points)),
		Pos: make([]geo.Vec3, len(points)),
	}
	for i, p := range points {
		l.Geo[i] = p
		l.Pos[i] = geo.ToECEF(p)
	}
	return l
}

// Len returns the number of vertices.
func (l Line) Len() int { return len(l.Pos) }

// Closed reports whether the line ends where it starts.
func (l Line) Closed() bool {
	n := len(l.Pos)
	return n > 2 && l.Pos[0].ApproxEqual(l.Pos[n-1], MatchTolerance)
}

func (l *Line) push(g geo.LLA, p geo.Vec3) {
	l.Geo = append(l.Geo, g)
	l.Pos = append(l.Pos, p)
}

func (l Line) first() geo.Vec3 { return l.Pos[0] }
func (l Line) last() geo.Vec3  { return l.Pos[len(l.Pos)-1] }

func (l Line) clone() Line {
	return Line{Geo: slices.Clone(l.Geo), Pos: slices.Clone(l.Pos)}
}

func (l Line) reversed() Line {
	r := l.clone()
	slices.Reverse(r.Geo)
	slices.Reverse(r.Pos)
	return r
}

// join appends b to a, skipping b's first vertex which duplicates a's last.
func join(a, b Line) Line {
	out := Line{
		Geo: make([]geo.LLA, 0, a.Len()+b.Len()-1),
		Pos: make([]geo.Vec3, 0, a.Len()+b.Len()-1),
	}
	out.Geo = append(append(out.Geo, a.Geo...), b.Geo[1:]...)
	out.Pos = append(append(out.Pos, a.Pos...), b.Pos[1:]...)
	return out
}

// splice connects n to e if an endpoint pair matches.
func splice(e, n Line) (Line, bool) {
	near := func(a, b geo.Vec3) bool { return a.ApproxEqual(b, MatchTolerance) }
	switch {
	case near(e.last(), n.first()):
		return join(e, n), true
	case near(e.last(), n.last()):
		return join(e, n.reversed()), true
	case near(e.first(), n.last()):
		return join(n, e), true
	case near(e.first(), n.first()):
		return join(n.reversed(), e), true
	default:
		return Line{}, false
	}
}

// vertexAt snaps a Cartesian point to its geodetic form so the Pos/Geo
// pair stays consistent.
func vertexAt(v geo.Vec3) (geo.LLA, geo.Vec3) {
	g := geo.ToLLA(v)
	return g, geo.ToECEF(g)
}

// LineSet is a layer of polylines.
type LineSet struct {
	st         State
	tri        geo.Triangle
	lines      []Line
	resolution float64
}

// NewLineSet creates an empty line set on tri.
func NewLineSet(tri geo.Triangle) *LineSet {
	ls := &LineSet{tri: tri}
	ls.st.setActive(true)
	return ls
}

func (*LineSet) sealed() {}

func (ls *LineSet) Kind() Kind             { return KindLineSet }
func (ls *LineSet) State() *State          { return &ls.st }
func (ls *LineSet) Triangle() geo.Triangle { return ls.tri }
func (ls *LineSet) Resolution() float64    { return ls.resolution }
func (ls *LineSet) Empty() bool            { return len(ls.lines) == 0 }
func (ls *LineSet) Size() int64            { return int64(ls.NumPoints()) * PointBytes }

// AddLine appends a polyline given as geodetic points. Lines with fewer
// than two points are ignored.
func (ls *LineSet) AddLine(points []geo.LLA) {
	if len(points) < 2 {
		return
	}
	ls.lines = append(ls.lines, NewLine(points))
	ls.st.MarkDirty()
}

// Lines returns the polylines. The slice must not be modified.
func (ls *LineSet) Lines() []Line { return ls.lines }

// NumLines returns the number of polylines.
func (ls *LineSet) NumLines() int { return len(ls.lines) }

// NumPoints returns the total number of vertices.
func (ls *LineSet) NumPoints() int {
	n := 0
	for _, l := range ls.lines {
		n += l.Len()
	}
	return n
}

func (ls *LineSet) Center() geo.Vec3 {
	var sum geo.Vec3
	n := 0
	for _, l := range ls.lines {
		for _, p := range l.Pos {
			sum = sum.Add(p)
			n++
		}
	}
	if n == 0 {
		return ls.tri.Centroid()
	}
	return sum.Scale(1 / float64(n))
}

func (ls *LineSet) Radius() float64 {
	c := ls.Center()
	r := 0.0
	for _, l := range ls.lines {
		for _, p := range l.Pos {
			r = math.Max(r, c.Dist(p))
		}
	}
	return r
}

// Split cuts every line where it crosses from one destination triangle
// into another. The crossing point is added to both fragments.
func (ls *LineSet) Split(dst []geo.Triangle) []Layer {
	parts := make([]*LineSet, len(dst))
	emit := func(i int, l Line) {
		if parts[i] == nil {
			parts[i] = NewLineSet(dst[i])
			parts[i].resolution = ls.resolution
		}
		parts[i].lines = append(parts[i].lines, l)
	}

	for _, line := range ls.lines {
		n := line.Len()
		if n < 2 {
			continue
		}

		cur := geo.Best(dst, line.Pos[0])
		var frag Line
		frag.push(line.Geo[0], line.Pos[0])

		for j := 1; j < n; j++ {
			t := geo.Best(dst, line.Pos[j])
			if t == cur {
				frag.push(line.Geo[j], line.Pos[j])
				continue
			}

			x, s := dst[cur].ExitPoint(line.Pos[j-1], line.Pos[j])
			var xg geo.LLA
			var xp geo.Vec3
			switch {
			case s <= 0:
				xg, xp = line.Geo[j-1], line.Pos[j-1]
			case s >= 1:
				xg, xp = line.Geo[j], line.Pos[j]
			default:
				xg, xp = vertexAt(x)
			}

			if s > 0 {
				frag.push(xg, xp)
			}
			if frag.Len() >= 2 {
				emit(cur, frag)
			}

			frag = Line{}
			frag.push(xg, xp)
			if s < 1 {
				frag.push(line.Geo[j], line.Pos[j])
			}
			cur = t
		}
		if frag.Len() >= 2 {
			emit(cur, frag)
		}
	}

	out := make([]Layer, len(dst))
	for i, p := range parts {
		if p != nil {
			p.st.MarkDirty()
			out[i] = p
		}
	}
	return out
}

// Merge splices the lines of other onto matching endpoints and appends
// the rest.
func (ls *LineSet) Merge(other Layer) error {
	o, ok := other.(*LineSet)
	if !ok {
		return fmt.Errorf("%w: merge %s into %s", ErrKindMismatch, other.Kind(), KindLineSet)
	}
	if o == ls {
		return nil
	}
	if len(o.lines) == 0 {
		return nil
	}

	incoming := make([]Line, len(o.lines))
	for i, l := range o.lines {
		incoming[i] = l.clone()
	}
	for _, l := range incoming {
		ls.addLine(l)
	}
	ls.resolution = math.Max(ls.resolution, o.resolution)
	ls.st.MarkDirty()
	return nil
}

func (ls *LineSet) addLine(n Line) {
	if n.Len() < 2 || n.Closed() {
		ls.lines = append(ls.lines, n)
		return
	}
	for {
		idx := -1
		var joined Line
		for i, e := range ls.lines {
			if e.Len() < 2 || e.Closed() {
				continue
			}
			if j, ok := splice(e, n); ok {
				idx, joined = i, j
				break
			}
		}
		if idx < 0 {
			break
		}
		ls.lines = slices.Delete(ls.lines, idx, idx+1)
		n = joined
		if n.Closed() {
			break
		}
	}
	ls.lines = append(ls.lines, n)
}

type collapse struct {
	dist float64
	line int
	idx  int
	ver  uint32
}

type collapseHeap []collapse

func (h collapseHeap) Len() int { return len(h) }
func (h collapseHeap) Less(i, j int) bool {
	a, b := h[i], h[j]
	if a.dist != b.dist {
		return a.dist < b.dist
	}
	if a.line != b.line {
		return a.line < b.line
	}
	return a.idx < b.idx
}
func (h collapseHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *collapseHeap) Push(x any)   { *h = append(*h, x.(collapse)) }
func (h *collapseHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

type chain struct {
	prev, next []int
	ver        []uint32
	alive      []bool
	count      int
	dead       bool
}

// Reduce collapses the shortest segments until the line set fits
// byteLimit or only endpoints remain.
func (ls *LineSet) Reduce(byteLimit int64) {
	target := int(byteLimit / PointBytes)
	total := ls.NumPoints()
	if total <= target {
		return
	}

	chains := make([]chain, len(ls.lines))
	h := make(collapseHeap, 0, total)
	for li, line := range ls.lines {
		n := line.Len()
		c := chain{
			prev:  make([]int, n),
			next:  make([]int, n),
			ver:   make([]uint32, n),
			alive: make([]bool, n),
			count: n,
		}
		for i := range n {
			c.prev[i] = i - 1
			c.next[i] = i + 1
			c.alive[i] = true
		}
		if n > 0 {
			c.next[n-1] = -1
		}
		chains[li] = c
		for i := 1; i < n-1; i++ {
			h = append(h, collapse{dist: line.Pos[i].Dist(line.Pos[i-1]), line: li, idx: i})
		}
	}
	heap.Init(&h)

	for total > target && h.Len() > 0 {
		c := heap.Pop(&h).(collapse)
		ch := &chains[c.line]
		if ch.dead || !ch.alive[c.idx] || ch.ver[c.idx] != c.ver {
			continue
		}
		line := &ls.lines[c.line]
		p, nx := ch.prev[c.idx], ch.next[c.idx]

		if ch.prev[p] >= 0 {
			pos, g := geo.SurfaceMidpoint(line.Pos[p], line.Pos[c.idx])
			line.Pos[p], line.Geo[p] = pos, g
			ch.ver[p]++
			heap.Push(&h, collapse{dist: pos.Dist(line.Pos[ch.prev[p]]), line: c.line, idx: p, ver: ch.ver[p]})
		}

		ch.alive[c.idx] = false
		ch.next[p] = nx
		ch.prev[nx] = p
		ch.count--
		total--
		ls.resolution = math.Max(ls.resolution, c.dist)

		if ch.next[nx] >= 0 {
			ch.ver[nx]++
			heap.Push(&h, collapse{dist: line.Pos[nx].Dist(line.Pos[p]), line: c.line, idx: nx, ver: ch.ver[nx]})
		}

		if ch.count == 2 && line.first().ApproxEqual(line.last(), MatchTolerance) {
			ch.dead = true
			total -= 2
		}
	}

	kept := ls.lines[:0]
	for li, line := range ls.lines {
		ch := chains[li]
		if ch.dead {
			continue
		}
		if ch.count == line.Len() {
			kept = append(kept, line)
			continue
		}
		out := Line{
			Geo: make([]geo.LLA, 0, ch.count),
			Pos: make([]geo.Vec3, 0, ch.count),
		}
		for i := 0; i >= 0; i = ch.next[i] {
			out.push(line.Geo[i], line.Pos[i])
		}
		kept = append(kept, out)
	}
	clear(ls.lines[len(kept):])
	ls.lines = kept
	ls.st.MarkDirty()
}

// Anchor returns the first vertex of line subID.
func (ls *LineSet) Anchor(subID int) (geo.Vec3, bool) {
	if subID < 0 || subID >= len(ls.lines) || ls.lines[subID].Len() == 0 {
		return geo.Vec3{}, false
	}
	return ls.lines[subID].first(), true
}

// DeleteElement removes line subID.
func (ls *LineSet) DeleteElement(subID int) bool {
	if subID < 0 || subID >= len(ls.lines) {
		return false
	}
	ls.lines = slices.Delete(ls.lines, subID, subID+1)
	ls.st.MarkDirty()
	return true
}

// DeleteAt removes every line with an endpoint at p and returns the
// endpoints of the removed lines. Endpoints match within MatchTolerance;
// radius is ignored.
func (ls *LineSet) DeleteAt(p geo.Vec3, _ float64) ([]geo.Vec3, bool) {
	var ends []geo.Vec3
	kept := ls.lines[:0]
	for _, l := range ls.lines {
		if l.Len() > 0 && (l.first().ApproxEqual(p, MatchTolerance) || l.last().ApproxEqual(p, MatchTolerance)) {
			ends = append(ends, l.first(), l.last())
			continue
		}
		kept = append(kept, l)
	}
	if len(ends) == 0 {
		return nil, false
	}
	clear(ls.lines[len(kept):])
	ls.lines = kept
	ls.st.MarkDirty()
	return ends, true
}

// Encode writes the line count, then per line the point count and the
// geodetic points as little-endian float64 triples, then the resolution.
func (ls *LineSet) Encode(c Compression) ([]byte, error) {
	raw := make([]byte, 0, 4+len(ls.lines)*4+ls.NumPoints()*24+8)
	raw = binary.LittleEndian.AppendUint32(raw, uint32(len(ls.lines)))
	for _, l := range ls.lines {
		raw = binary.LittleEndian.AppendUint32(raw, uint32(l.Len()))
		for _, g := range l.Geo {
			raw = binary.LittleEndian.AppendUint64(raw, math.Float64bits(g.Lat))
			raw = binary.LittleEndian.AppendUint64(raw, math.Float64bits(g.Lon))
			raw = binary.LittleEndian.AppendUint64(raw, math.Float64bits(g.Alt))
		}
	}
	raw = binary.LittleEndian.AppendUint64(raw, math.Float64bits(ls.resolution))
	return compress.Encode(c, raw)
}

// Decode replaces the lines with the encoded payload.
func (ls *LineSet) Decode(data []byte) error {
	raw, err := compress.Decode(data)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrCorrupt, err)
	}

	r := reader{buf: raw}
	count := r.u32()
	if r.err == nil && uint64(count)*4 > uint64(len(raw)) {
		return fmt.Errorf("%w: line count %d", ErrCorrupt, count)
	}
	lines := make([]Line, 0, count)
	for range count {
		n := r.u32()
		if r.err != nil || uint64(n)*24 > uint64(r.remaining()) {
			return fmt.Errorf("%w: truncated line", ErrCorrupt)
		}
		pts := make([]geo.LLA, n)
		for i := range pts {
			pts[i] = geo.LLA{Lat: r.f64(), Lon: r.f64(), Alt: r.f64()}
		}
		lines = append(lines, NewLine(pts))
	}
	res := r.f64()
	if r.err != nil {
		return fmt.Errorf("%w: %w", ErrCorrupt, r.err)
	}

	ls.lines = lines
	ls.resolution = res
	ls.st.setActive(true)
	return nil
}

// Release drops the lines.
func (ls *LineSet) Release() {
	if ls.st.markReleased() {
		ls.lines = nil
	}
}

func (ls *LineSet) Clone() Layer {
	c := NewLineSet(ls.tri)
	c.resolution = ls.resolution
	c.lines = make([]Line, len(ls.lines))
	for i, l := range ls.lines {
		c.lines[i] = l.clone()
	}
	return c
}

type reader struct {
	buf []byte
	off int
	err error
}

func (r *reader) remaining() int { return len(r.buf) - r.off }

func (r *reader) u32() uint32 {
	if r.err != nil {
		return 0
	}
	if r.remaining() < 4 {
		r.err = fmt.Errorf("short read at offset %d", r.off)
		return 0
	}
	v := binary.LittleEndian.Uint32(r.buf[r.off:])
	r.off += 4
	return v
}

func (r *reader) f64() float64 {
	if r.err != nil {
		return 0
	}
	if r.remaining() < 8 {
		r.err = fmt.Errorf("short read at offset %d", r.off)
		return 0
	}
	v := math.Float64frombits(binary.LittleEndian.Uint64(r.buf[r.off:]))
	r.off += 8
	return v
}
