package blobstore

import (
	"context"
	"os"
)

// ErrNotFound is returned when a blob does not exist.
//
// Implementations return an error that satisfies errors.Is(err, ErrNotFound).
// It maps to os.ErrNotExist so local file errors match without wrapping.
var ErrNotFound = os.ErrNotExist

// Store persists tile index records and layer payloads by name. Names are
// slash-separated paths such as "07/2/0/index".
//
// Implementations must be safe for concurrent use.
type Store interface {
	// Open returns the blob for reading.
	Open(ctx context.Context, name string) (Blob, error)
	// Put replaces the blob atomically: readers see either the old or the
	// new contents, never a partial write.
	Put(ctx context.Context, name string, data []byte) error
	// Delete removes the blob. Deleting a missing blob is not an error.
	Delete(ctx context.Context, name string) error
	// List returns all blob names with the given prefix, sorted.
	List(ctx context.Context, prefix string) ([]string, error)
}

// Blob is a read-only view of a stored blob.
type Blob interface {
	// Bytes returns the contents. The slice is valid until Close.
	Bytes() []byte
	Close() error
}

// ReadAll opens name and returns a private copy of its contents.
func ReadAll(ctx context.Context, s Store, name string) ([]byte, error) {
	b, err := s.Open(ctx, name)
	if err != nil {
		return nil, err
	}
	defer b.Close()
	return append([]byte(nil), b.Bytes()...), nil
}

type bytesBlob []byte

func (b bytesBlob) Bytes() []byte { return b }
func (bytesBlob) Close() error    { return nil }

// NewBytesBlob wraps data as a Blob. Used by backends that fetch whole
// objects into memory.
func NewBytesBlob(data []byte) Blob { return bytesBlob(data) }
