package geotile

import (
	"errors"

	"github.com/hupe1980/geotile/internal/tile"
	"github.com/hupe1980/geotile/layer"
)

var (
	// ErrClosed is returned by every operation after Close.
	ErrClosed = errors.New("geotile: store closed")

	// ErrLeafDelete is returned by Remove for a handle on a tile without
	// children. Only summaries can be edited.
	ErrLeafDelete = tile.ErrLeafDelete

	// ErrNotFound is returned by Remove for an element id outside the
	// handle's layer.
	ErrNotFound = tile.ErrNotFound

	// ErrInvalidKind is returned for an unknown layer kind.
	ErrInvalidKind = layer.ErrInvalidKind

	// ErrHandleReleased is returned when a released handle is passed to
	// Remove.
	ErrHandleReleased = tile.ErrHandleReleased
)

// PersistError reports a tile whose index or payload could not be
// written. The tile stays dirty and is retried by the next persist.
type PersistError = tile.PersistError
