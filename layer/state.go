package layer

import (
	"sync"
	"sync/atomic"
)

// State is the bookkeeping every layer carries regardless of kind.
type State struct {
	pins atomic.Int32

	mu       sync.Mutex
	dirty    bool
	active   bool
	attached bool
	released bool
}

// Pin increments the pin count.
func (s *State) Pin() { s.pins.Add(1) }

// Unpin decrements the pin count and reports whether the layer has
// become unpinned and detached, in which case the caller frees it.
func (s *State) Unpin() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pins.Add(-1) > 0 {
		return false
	}
	return !s.attached
}

// Pins returns the current pin count.
func (s *State) Pins() int32 { return s.pins.Load() }

// Pinned reports whether any handle holds the layer.
func (s *State) Pinned() bool { return s.pins.Load() > 0 }

// Attach marks the layer as owned by a tile.
func (s *State) Attach() {
	s.mu.Lock()
	s.attached = true
	s.mu.Unlock()
}

// Detach clears the tile ownership and reports whether the layer is
// unpinned, in which case the caller frees it right away.
func (s *State) Detach() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attached = false
	return s.pins.Load() <= 0
}

// Attached reports whether a tile owns the layer.
func (s *State) Attached() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attached
}

// MarkDirty flags the payload as changed since the last persist.
func (s *State) MarkDirty() {
	s.mu.Lock()
	s.dirty = true
	s.mu.Unlock()
}

// ClearDirty resets the dirty flag after a successful persist.
func (s *State) ClearDirty() {
	s.mu.Lock()
	s.dirty = false
	s.mu.Unlock()
}

// Dirty reports whether the payload needs persisting.
func (s *State) Dirty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dirty
}

// Active reports whether the payload is resident.
func (s *State) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

func (s *State) setActive(v bool) {
	s.mu.Lock()
	s.active = v
	if v {
		s.released = false
	}
	s.mu.Unlock()
}

// markReleased records a Release and reports whether it was the first.
func (s *State) markReleased() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	first := !s.released
	s.released = true
	s.active = false
	return first
}
