package tile

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/hupe1980/geotile/geo"
	"github.com/hupe1980/geotile/internal/hash"
	"github.com/hupe1980/geotile/layer"
)

// ErrCorruptIndex is returned when a tile index record fails validation.
var ErrCorruptIndex = errors.New("corrupt tile index")

const (
	recordMagic   = "GTIX"
	recordVersion = 1

	// magic + version + checksum
	recordHeader = 4 + 2 + 4
	// flags + 3 geodetic vertices + kind count
	recordFixed = 1 + 9*8 + 1

	flagDownlink = 1 << 0
)

// record is the persisted index of one tile. The vertices are kept for
// external readers; the tree recomputes triangles from the path.
type record struct {
	downlink bool
	verts    [3]geo.LLA
	kinds    []layer.Kind
}

func encodeRecord(r record) []byte {
	body := make([]byte, 0, recordFixed+len(r.kinds))
	var flags byte
	if r.downlink {
		flags |= flagDownlink
	}
	body = append(body, flags)
	for _, v := range r.verts {
		body = binary.LittleEndian.AppendUint64(body, math.Float64bits(v.Lat))
		body = binary.LittleEndian.AppendUint64(body, math.Float64bits(v.Lon))
		body = binary.LittleEndian.AppendUint64(body, math.Float64bits(v.Alt))
	}
	body = append(body, byte(len(r.kinds)))
	for _, k := range r.kinds {
		body = append(body, byte(k))
	}

	out := make([]byte, 0, recordHeader+len(body))
	out = append(out, recordMagic...)
	out = binary.LittleEndian.AppendUint16(out, recordVersion)
	out = binary.LittleEndian.AppendUint32(out, hash.CRC32C(body))
	return append(out, body...)
}

func decodeRecord(data []byte) (record, error) {
	if len(data) < recordHeader+recordFixed {
		return record{}, fmt.Errorf("%w: short record (%d bytes)", ErrCorruptIndex, len(data))
	}
	if string(data[:4]) != recordMagic {
		return record{}, fmt.Errorf("%w: bad magic", ErrCorruptIndex)
	}
	if v := binary.LittleEndian.Uint16(data[4:]); v != recordVersion {
		return record{}, fmt.Errorf("%w: unsupported version %d", ErrCorruptIndex, v)
	}
	body := data[recordHeader:]
	if crc := binary.LittleEndian.Uint32(data[6:]); crc != hash.CRC32C(body) {
		return record{}, fmt.Errorf("%w: checksum mismatch", ErrCorruptIndex)
	}

	var r record
	r.downlink = body[0]&flagDownlink != 0
	off := 1
	f := func() float64 {
		v := math.Float64frombits(binary.LittleEndian.Uint64(body[off:]))
		off += 8
		return v
	}
	for i := range r.verts {
		r.verts[i] = geo.LLA{Lat: f(), Lon: f(), Alt: f()}
	}
	n := int(body[off])
	off++
	if len(body)-off != n {
		return record{}, fmt.Errorf("%w: kind count %d", ErrCorruptIndex, n)
	}
	for _, b := range body[off:] {
		k := layer.Kind(b)
		if !k.Valid() {
			return record{}, fmt.Errorf("%w: %w", ErrCorruptIndex, layer.ErrInvalidKind)
		}
		r.kinds = append(r.kinds, k)
	}
	return r, nil
}
