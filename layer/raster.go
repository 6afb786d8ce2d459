package layer

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/hupe1980/geotile/geo"
)

const (
	// RasterSize is the edge length of every raster grid in pixels.
	RasterSize = 256

	// DepthOffset shifts stored whole metres so values down to
	// -DepthOffset fit an unsigned channel.
	DepthOffset = 32768
)

// projection maps the triangle plane into pixel space.
type projection struct {
	origin geo.Vec3
	normal geo.Vec3
	east   geo.Vec3
	up     geo.Vec3

	minX, maxY float64
	scale      float64
	padX, padY float64
}

func newProjection(t geo.Triangle) projection {
	n := t.Normal().Normalize()
	axis := geo.Vec3{Z: 1}
	up := axis.Sub(n.Scale(axis.Dot(n)))
	if up.Norm() < 1e-6 {
		axis = geo.Vec3{X: 1}
		up = axis.Sub(n.Scale(axis.Dot(n)))
	}
	up = up.Normalize()

	p := projection{
		origin: t.V[0],
		normal: n,
		east:   up.Cross(n),
		up:     up,
	}

	minX, maxX := math.Inf(1), math.Inf(-1)
	minY, maxY := math.Inf(1), math.Inf(-1)
	for _, v := range t.V {
		d := v.Sub(p.origin)
		x, y := d.Dot(p.east), d.Dot(p.up)
		minX, maxX = math.Min(minX, x), math.Max(maxX, x)
		minY, maxY = math.Min(minY, y), math.Max(maxY, y)
	}
	w, h := maxX-minX, maxY-minY
	if !(w > 0) || !(h > 0) {
		return p
	}

	p.minX, p.maxY = minX, maxY
	p.scale = math.Min(RasterSize/w, RasterSize/h)
	p.padX = (RasterSize - w*p.scale) / 2
	p.padY = (RasterSize - h*p.scale) / 2
	return p
}

func (p projection) valid() bool { return p.scale > 0 }

// toPlane returns the plane point under pixel coordinate (px, py).
func (p projection) toPlane(px, py float64) geo.Vec3 {
	x := (px-p.padX)/p.scale + p.minX
	y := p.maxY - (py-p.padY)/p.scale
	return p.origin.Add(p.east.Scale(x)).Add(p.up.Scale(y))
}

// toPixel maps w radially into the plane and then into pixel space.
func (p projection) toPixel(w geo.Vec3) (px, py float64, ok bool) {
	d := p.normal.Dot(w)
	if d <= 0 || !p.valid() {
		return 0, 0, false
	}
	q := w.Scale(p.normal.Dot(p.origin) / d).Sub(p.origin)
	px = (q.Dot(p.east)-p.minX)*p.scale + p.padX
	py = (p.maxY-q.Dot(p.up))*p.scale + p.padY
	return px, py, true
}

func splitDepth(v float64) (whole, frac uint16) {
	v += DepthOffset
	if v <= 0 || math.IsNaN(v) {
		return 0, 0
	}
	w := math.Floor(v)
	f := math.Round((v - w) * 65536)
	if f >= 65536 {
		w++
		f = 0
	}
	if w > math.MaxUint16 {
		return math.MaxUint16, math.MaxUint16
	}
	return uint16(w), uint16(f)
}

func joinDepth(whole, frac uint16) float64 {
	return float64(whole) - DepthOffset + float64(frac)/65536
}

// Raster is a depth grid on the triangle plane. Each sample is kept as
// whole metres and a 1/65536 m remainder; a roaring bitmap tracks which
// pixels hold data.
type Raster struct {
	st      State
	tri     geo.Triangle
	proj    projection
	whole   []uint16
	frac    []uint16
	covered *roaring.Bitmap
}

// NewRaster creates an empty raster on tri.
func NewRaster(tri geo.Triangle) *Raster {
	r := &Raster{
		tri:     tri,
		proj:    newProjection(tri),
		covered: roaring.New(),
	}
	r.st.setActive(true)
	return r
}

func (*Raster) sealed() {}

func (r *Raster) Kind() Kind             { return KindRaster }
func (r *Raster) State() *State          { return &r.st }
func (r *Raster) Triangle() geo.Triangle { return r.tri }
func (r *Raster) Empty() bool            { return r.covered.IsEmpty() }
func (r *Raster) Center() geo.Vec3       { return r.tri.Centroid() }
func (r *Raster) Radius() float64        { return r.tri.Radius() }

// Coverage returns the number of covered pixels.
func (r *Raster) Coverage() uint64 { return r.covered.GetCardinality() }

func (r *Raster) Size() int64 {
	return int64(len(r.whole)+len(r.frac))*2 + int64(r.covered.GetSizeInBytes())
}

// Resolution is the pixel edge length in metres.
func (r *Raster) Resolution() float64 {
	if !r.proj.valid() {
		return math.Inf(1)
	}
	return 1 / r.proj.scale
}

func (r *Raster) alloc() {
	if r.whole == nil {
		r.whole = make([]uint16, RasterSize*RasterSize)
		r.frac = make([]uint16, RasterSize*RasterSize)
	}
}

func inGrid(px, py int) bool {
	return px >= 0 && py >= 0 && px < RasterSize && py < RasterSize
}

// Set stores depth v at pixel (px, py).
func (r *Raster) Set(px, py int, v float64) {
	if !inGrid(px, py) {
		return
	}
	r.set(py*RasterSize+px, v)
	r.st.MarkDirty()
}

func (r *Raster) set(i int, v float64) {
	r.alloc()
	r.whole[i], r.frac[i] = splitDepth(v)
	r.covered.Add(uint32(i))
}

// Sample returns the depth at pixel (px, py).
func (r *Raster) Sample(px, py int) (float64, bool) {
	if !r.Covered(px, py) {
		return 0, false
	}
	i := py*RasterSize + px
	return joinDepth(r.whole[i], r.frac[i]), true
}

// Covered reports whether pixel (px, py) holds data.
func (r *Raster) Covered(px, py int) bool {
	return inGrid(px, py) && r.covered.Contains(uint32(py*RasterSize+px))
}

// Pixel returns the pixel containing the radial projection of p.
func (r *Raster) Pixel(p geo.Vec3) (px, py int, ok bool) {
	fx, fy, ok := r.proj.toPixel(p)
	if !ok {
		return 0, 0, false
	}
	px, py = int(math.Floor(fx)), int(math.Floor(fy))
	return px, py, inGrid(px, py)
}

// PixelCenter returns the plane point at the centre of pixel (px, py).
func (r *Raster) PixelCenter(px, py int) geo.Vec3 {
	return r.proj.toPlane(float64(px)+0.5, float64(py)+0.5)
}

// SetAt stores depth v at the pixel under p.
func (r *Raster) SetAt(p geo.Vec3, v float64) bool {
	px, py, ok := r.Pixel(p)
	if !ok || !r.tri.Contains(p) {
		return false
	}
	r.Set(px, py, v)
	return true
}

// SampleAt interpolates the depth under p.
func (r *Raster) SampleAt(p geo.Vec3) (float64, bool) {
	fx, fy, ok := r.proj.toPixel(p)
	if !ok {
		return 0, false
	}
	return r.bilinear(fx, fy)
}

// Fill sets every pixel whose centre lies in the triangle to the value fn
// returns for that centre, skipping pixels where fn reports false.
func (r *Raster) Fill(fn func(p geo.Vec3) (float64, bool)) {
	if !r.proj.valid() {
		return
	}
	defer r.st.MarkDirty()
	for py := range RasterSize {
		for px := range RasterSize {
			q := r.PixelCenter(px, py)
			if !r.tri.Contains(q) {
				continue
			}
			if v, ok := fn(q); ok {
				r.set(py*RasterSize+px, v)
			}
		}
	}
}

// bilinear resamples covered pixels around pixel coordinate (fx, fy),
// renormalizing the weights over the covered neighbours.
func (r *Raster) bilinear(fx, fy float64) (float64, bool) {
	if r.whole == nil {
		return 0, false
	}
	fx -= 0.5
	fy -= 0.5
	x0, y0 := math.Floor(fx), math.Floor(fy)
	tx, ty := fx-x0, fy-y0

	var sum, wsum float64
	for dy := range 2 {
		for dx := range 2 {
			x, y := int(x0)+dx, int(y0)+dy
			if !r.Covered(x, y) {
				continue
			}
			w := (1 - tx) * (1 - ty)
			switch {
			case dx == 1 && dy == 0:
				w = tx * (1 - ty)
			case dx == 0 && dy == 1:
				w = (1 - tx) * ty
			case dx == 1 && dy == 1:
				w = tx * ty
			}
			if w <= 0 {
				continue
			}
			i := y*RasterSize + x
			sum += w * joinDepth(r.whole[i], r.frac[i])
			wsum += w
		}
	}
	if wsum <= 0 {
		return 0, false
	}
	return sum / wsum, true
}

// Merge resamples other into every pixel of the receiver that both
// triangles cover.
func (r *Raster) Merge(other Layer) error {
	o, ok := other.(*Raster)
	if !ok {
		return fmt.Errorf("%w: merge %s into %s", ErrKindMismatch, other.Kind(), KindRaster)
	}
	if o == r || o.Empty() || !r.proj.valid() {
		return nil
	}
	if !r.tri.IntersectsSphere(o.tri.Centroid(), o.tri.Radius()) {
		return nil
	}

	changed := false
	for py := range RasterSize {
		for px := range RasterSize {
			q := r.PixelCenter(px, py)
			if !r.tri.Contains(q) || !o.tri.Contains(q) {
				continue
			}
			sx, sy, ok := o.proj.toPixel(q)
			if !ok {
				continue
			}
			if v, ok := o.bilinear(sx, sy); ok {
				r.set(py*RasterSize+px, v)
				changed = true
			}
		}
	}
	if changed {
		r.st.MarkDirty()
	}
	return nil
}

// Split resamples the raster into one fresh raster per destination.
func (r *Raster) Split(dst []geo.Triangle) []Layer {
	out := make([]Layer, len(dst))
	for i, t := range dst {
		part := NewRaster(t)
		_ = part.Merge(r)
		if !part.Empty() {
			out[i] = part
		}
	}
	return out
}

// Reduce is a no-op; rasters have a fixed size.
func (r *Raster) Reduce(int64) {}

// Anchor returns the centre of pixel subID.
func (r *Raster) Anchor(subID int) (geo.Vec3, bool) {
	if subID < 0 || subID >= RasterSize*RasterSize || !r.proj.valid() {
		return geo.Vec3{}, false
	}
	return r.PixelCenter(subID%RasterSize, subID/RasterSize), true
}

// DeleteElement clears pixel subID.
func (r *Raster) DeleteElement(subID int) bool {
	if subID < 0 || subID >= RasterSize*RasterSize {
		return false
	}
	if !r.covered.CheckedRemove(uint32(subID)) {
		return false
	}
	r.st.MarkDirty()
	return true
}

// DeleteAt clears the pixel under p and every pixel whose centre lies
// within radius metres of p in the raster plane.
func (r *Raster) DeleteAt(p geo.Vec3, radius float64) ([]geo.Vec3, bool) {
	fx, fy, ok := r.proj.toPixel(p)
	if !ok {
		return nil, false
	}
	removed := false
	if px, py := int(math.Floor(fx)), int(math.Floor(fy)); inGrid(px, py) {
		removed = r.covered.CheckedRemove(uint32(py*RasterSize + px))
	}

	if rp := radius * r.proj.scale; rp > 0 {
		x0, x1 := max(0, int(math.Floor(fx-rp))), min(RasterSize-1, int(math.Ceil(fx+rp)))
		y0, y1 := max(0, int(math.Floor(fy-rp))), min(RasterSize-1, int(math.Ceil(fy+rp)))
		for py := y0; py <= y1; py++ {
			for px := x0; px <= x1; px++ {
				dx, dy := float64(px)+0.5-fx, float64(py)+0.5-fy
				if dx*dx+dy*dy <= rp*rp && r.covered.CheckedRemove(uint32(py*RasterSize+px)) {
					removed = true
				}
			}
		}
	}

	if removed {
		r.st.MarkDirty()
	}
	return nil, removed
}

// Encode writes a 16-bit NRGBA PNG: red holds whole metres, green the
// remainder, alpha the coverage. The compression argument is unused.
func (r *Raster) Encode(Compression) ([]byte, error) {
	img := image.NewNRGBA64(image.Rect(0, 0, RasterSize, RasterSize))
	it := r.covered.Iterator()
	for it.HasNext() {
		i := int(it.Next())
		img.SetNRGBA64(i%RasterSize, i/RasterSize, color.NRGBA64{
			R: r.whole[i],
			G: r.frac[i],
			A: math.MaxUint16,
		})
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode raster: %w", err)
	}
	return buf.Bytes(), nil
}

// Decode replaces the grid with an encoded PNG.
func (r *Raster) Decode(data []byte) error {
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrCorrupt, err)
	}
	b := img.Bounds()
	if b.Dx() != RasterSize || b.Dy() != RasterSize {
		return fmt.Errorf("%w: raster is %dx%d", ErrCorrupt, b.Dx(), b.Dy())
	}

	whole := make([]uint16, RasterSize*RasterSize)
	frac := make([]uint16, RasterSize*RasterSize)
	covered := roaring.New()
	for y := range RasterSize {
		for x := range RasterSize {
			c := color.NRGBA64Model.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.NRGBA64)
			if c.A == 0 {
				continue
			}
			i := y*RasterSize + x
			whole[i], frac[i] = c.R, c.G
			covered.Add(uint32(i))
		}
	}

	r.whole, r.frac, r.covered = whole, frac, covered
	r.st.setActive(true)
	return nil
}

// Release drops the grid.
func (r *Raster) Release() {
	if r.st.markReleased() {
		r.whole, r.frac = nil, nil
		r.covered = roaring.New()
	}
}

func (r *Raster) Clone() Layer {
	c := NewRaster(r.tri)
	if r.whole != nil {
		c.whole = append([]uint16(nil), r.whole...)
		c.frac = append([]uint16(nil), r.frac...)
	}
	c.covered = r.covered.Clone()
	return c
}
