package layer

import (
	"errors"
	"fmt"
	"strings"

	"github.com/hupe1980/geotile/geo"
	"github.com/hupe1980/geotile/internal/compress"
)

// Kind identifies a layer type.
type Kind uint8

const (
	// KindLineSet holds polylines such as coastlines.
	KindLineSet Kind = 1
	// KindRaster holds a gridded depth model.
	KindRaster Kind = 2
)

var (
	// ErrInvalidKind is returned for an unknown layer kind.
	ErrInvalidKind = errors.New("invalid layer kind")
	// ErrKindMismatch is returned when layers of different kinds are combined.
	ErrKindMismatch = errors.New("layer kind mismatch")
	// ErrCorrupt is returned when a payload cannot be decoded.
	ErrCorrupt = errors.New("corrupt layer payload")
)

// Kinds returns every known kind in a stable order.
func Kinds() []Kind {
	return []Kind{KindLineSet, KindRaster}
}

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	return k == KindLineSet || k == KindRaster
}

func (k Kind) String() string {
	switch k {
	case KindLineSet:
		return "lineset"
	case KindRaster:
		return "raster"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// FileName is the name of the payload blob next to a tile index.
func (k Kind) FileName() string {
	switch k {
	case KindLineSet:
		return "lineset.bin"
	case KindRaster:
		return "raster.png"
	default:
		return ""
	}
}

// ParseKind parses "lineset" or "raster".
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "lineset", "coastline", "coastlines":
		return KindLineSet, nil
	case "raster", "depth":
		return KindRaster, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidKind, s)
	}
}

// Compression selects how line-set payloads are stored.
type Compression = compress.Type

const (
	CompressionNone = compress.None
	CompressionLZ4  = compress.LZ4
	CompressionZSTD = compress.ZSTD
)

// ParseCompression parses "none", "lz4" or "zstd".
func ParseCompression(s string) (Compression, error) {
	return compress.ParseType(s)
}

// Layer is one kind of data attached to a tile. The set of kinds is
// closed; use New or the concrete constructors.
type Layer interface {
	Kind() Kind
	State() *State

	// Triangle is the tile area the layer is defined on.
	Triangle() geo.Triangle

	// Empty reports whether the layer holds no elements.
	Empty() bool
	// Size approximates the resident payload in bytes.
	Size() int64
	// Resolution is the feature size in metres the data still resolves.
	// Zero means full fidelity.
	Resolution() float64
	// Center and Radius bound the data.
	Center() geo.Vec3
	Radius() float64

	// Split partitions the layer among dst. The result has one entry per
	// triangle; entries are nil where nothing landed.
	Split(dst []geo.Triangle) []Layer
	// Merge folds other into the receiver.
	Merge(other Layer) error
	// Reduce lowers fidelity until Size fits byteLimit, where the kind
	// supports it.
	Reduce(byteLimit int64)

	// Anchor returns a point identifying element subID.
	Anchor(subID int) (geo.Vec3, bool)
	// DeleteElement removes element subID.
	DeleteElement(subID int) bool
	// DeleteAt removes the elements anchored at p, and for area kinds
	// every element within radius metres of it. It returns further
	// anchors the same element continues at, e.g. the far end of a
	// removed line fragment, and whether anything was removed.
	DeleteAt(p geo.Vec3, radius float64) ([]geo.Vec3, bool)

	// Encode serializes the payload. Decode replaces it.
	Encode(c Compression) ([]byte, error)
	Decode(data []byte) error

	// Release frees the payload. Callers persist dirty layers first.
	Release()
	// Clone returns a deep copy with fresh state.
	Clone() Layer

	sealed()
}

// New creates an empty active layer of the given kind for tri.
func New(kind Kind, tri geo.Triangle) (Layer, error) {
	switch kind {
	case KindLineSet:
		return NewLineSet(tri), nil
	case KindRaster:
		return NewRaster(tri), nil
	default:
		return nil, fmt.Errorf("%w: %d", ErrInvalidKind, uint8(kind))
	}
}

// Load creates a layer of the given kind for tri from an encoded payload.
func Load(kind Kind, tri geo.Triangle, data []byte) (Layer, error) {
	l, err := New(kind, tri)
	if err != nil {
		return nil, err
	}
	if err := l.Decode(data); err != nil {
		return nil, fmt.Errorf("decode %s: %w", kind, err)
	}
	return l, nil
}
