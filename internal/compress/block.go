package compress

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/hupe1980/geotile/internal/hash"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Type selects the block compression algorithm.
type Type uint8

const (
	// None stores the block as is.
	None Type = 0
	// LZ4 is fast and suits payloads that are evicted and reloaded often.
	LZ4 Type = 1
	// ZSTD trades speed for ratio; suits cold survey archives.
	ZSTD Type = 2
)

func (t Type) String() string {
	switch t {
	case None:
		return "none"
	case LZ4:
		return "lz4"
	case ZSTD:
		return "zstd"
	default:
		return fmt.Sprintf("compress(%d)", uint8(t))
	}
}

// ParseType parses "none", "lz4" or "zstd".
func ParseType(s string) (Type, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none":
		return None, nil
	case "lz4":
		return LZ4, nil
	case "zstd":
		return ZSTD, nil
	default:
		return None, fmt.Errorf("unknown compression %q", s)
	}
}

var (
	// ErrCorrupt is returned when a block fails its checksum or bounds checks.
	ErrCorrupt = errors.New("compress: corrupt block")
)

// Block layout:
//
//	Type      (1 byte)
//	RawLen    (4 bytes)
//	StoredLen (4 bytes)
//	CRC32C    (4 bytes) of the raw data
//	Data      (StoredLen bytes)
const headerSize = 13

var (
	zstdEncoders sync.Pool
	zstdDecoders sync.Pool
)

func getZstdEncoder() *zstd.Encoder {
	if v := zstdEncoders.Get(); v != nil {
		return v.(*zstd.Encoder)
	}
	enc, _ := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	return enc
}

func getZstdDecoder() *zstd.Decoder {
	if v := zstdDecoders.Get(); v != nil {
		return v.(*zstd.Decoder)
	}
	dec, _ := zstd.NewReader(nil)
	return dec
}

// Encode compresses raw into a self-describing block. If compression does
// not save at least 10%, the block is stored uncompressed.
func Encode(t Type, raw []byte) ([]byte, error) {
	var body []byte
	switch t {
	case None:
	case LZ4:
		buf := make([]byte, lz4.CompressBlockBound(len(raw)))
		n, err := lz4.CompressBlock(raw, buf, nil)
		if err != nil {
			return nil, err
		}
		body = buf[:n]
	case ZSTD:
		enc := getZstdEncoder()
		body = enc.EncodeAll(raw, nil)
		zstdEncoders.Put(enc)
	default:
		return nil, fmt.Errorf("unsupported compression %s", t)
	}

	if len(body) == 0 || float64(len(body)) > float64(len(raw))*0.9 {
		t, body = None, raw
	}

	out := make([]byte, headerSize+len(body))
	out[0] = byte(t)
	binary.LittleEndian.PutUint32(out[1:], uint32(len(raw)))
	binary.LittleEndian.PutUint32(out[5:], uint32(len(body)))
	binary.LittleEndian.PutUint32(out[9:], hash.CRC32C(raw))
	copy(out[headerSize:], body)
	return out, nil
}

// Decode reverses Encode and verifies the checksum. The result never
// aliases block.
func Decode(block []byte) ([]byte, error) {
	if len(block) < headerSize {
		return nil, fmt.Errorf("%w: short header", ErrCorrupt)
	}
	t := Type(block[0])
	rawLen := binary.LittleEndian.Uint32(block[1:])
	storedLen := binary.LittleEndian.Uint32(block[5:])
	sum := binary.LittleEndian.Uint32(block[9:])

	if uint64(len(block)) < headerSize+uint64(storedLen) {
		return nil, fmt.Errorf("%w: truncated body", ErrCorrupt)
	}
	body := block[headerSize : headerSize+storedLen]

	var raw []byte
	switch t {
	case None:
		if storedLen != rawLen {
			return nil, fmt.Errorf("%w: length mismatch", ErrCorrupt)
		}
		raw = append([]byte(nil), body...)
	case LZ4:
		raw = make([]byte, rawLen)
		n, err := lz4.UncompressBlock(body, raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
		}
		if uint32(n) != rawLen {
			return nil, fmt.Errorf("%w: length mismatch", ErrCorrupt)
		}
	case ZSTD:
		dec := getZstdDecoder()
		out, err := dec.DecodeAll(body, make([]byte, 0, rawLen))
		zstdDecoders.Put(dec)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
		}
		if uint32(len(out)) != rawLen {
			return nil, fmt.Errorf("%w: length mismatch", ErrCorrupt)
		}
		raw = out
	default:
		return nil, fmt.Errorf("%w: unknown compression %d", ErrCorrupt, t)
	}

	if hash.CRC32C(raw) != sum {
		return nil, fmt.Errorf("%w: checksum mismatch", ErrCorrupt)
	}
	return raw, nil
}
