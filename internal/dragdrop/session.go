package dragdrop

import (
	"sync"

	"chronogrid/internal/model"
)

// Snapshot is the shared drag state every cell renders from.
type Snapshot struct {
	Active  bool              `json:"active"`
	Payload model.DragPayload `json:"payload,omitempty"`

	// HoveredCellKey is the date key of the cell under the drag.
	HoveredCellKey string `json:"hovered_cell_key,omitempty"`
	// LockedCellKey is the cell a drop landed on while its mutation runs.
	LockedCellKey string `json:"locked_cell_key,omitempty"`

	// PreviewDate is the cell showing the todo hover preview, if any.
	PreviewDate model.CalendarDate `json:"preview_date"`

	// OverlayActive is set while a floating todo overlay owns the pointer.
	OverlayActive bool `json:"overlay_active"`
}

// Todo returns the todo payload when a todo drag is in flight.
func (s Snapshot) Todo() (model.TodoDrag, bool) {
	if !s.Active {
		return model.TodoDrag{}, false
	}
	td, ok := s.Payload.(model.TodoDrag)
	return td, ok
}

// Session holds one drag gesture's shared state and publishes every change
// to its subscribers. Visual state is acquired by begin and released by end,
// which every exit path goes through.
type Session struct {
	mu     sync.Mutex
	snap   Snapshot
	subs   map[int]func(Snapshot)
	nextID int
}

func NewSession() *Session {
	return &Session{subs: make(map[int]func(Snapshot))}
}

// Subscribe registers fn for every published snapshot and returns a func
// that removes it.
func (s *Session) Subscribe(fn func(Snapshot)) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

// Snapshot returns the current state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap
}

// HoveredCellKey returns the date key of the hovered cell.
func (s *Session) HoveredCellKey() string {
	return s.Snapshot().HoveredCellKey
}

// LockedCellKey returns the date key of the cell awaiting a mutation.
func (s *Session) LockedCellKey() string {
	return s.Snapshot().LockedCellKey
}

// update applies fn under the lock and publishes the result when fn
// reports a change.
func (s *Session) update(fn func(*Snapshot) bool) Snapshot {
	s.mu.Lock()
	changed := fn(&s.snap)
	snap := s.snap
	var subs []func(Snapshot)
	if changed {
		subs = make([]func(Snapshot), 0, len(s.subs))
		for _, sub := range s.subs {
			subs = append(subs, sub)
		}
	}
	s.mu.Unlock()

	for _, sub := range subs {
		sub(snap)
	}
	return snap
}

func (s *Session) begin(p model.DragPayload) {
	s.update(func(snap *Snapshot) bool {
		locked, overlay := snap.LockedCellKey, snap.OverlayActive
		*snap = Snapshot{Active: true, Payload: p, LockedCellKey: locked, OverlayActive: overlay}
		return true
	})
}

// end releases everything the gesture acquired. It reports whether a
// gesture was active.
func (s *Session) end() (Snapshot, bool) {
	var (
		prev Snapshot
		was  bool
	)
	s.update(func(snap *Snapshot) bool {
		prev = *snap
		was = snap.Active
		if !was && snap.HoveredCellKey == "" && snap.PreviewDate.IsZero() {
			return false
		}
		locked := snap.LockedCellKey
		*snap = Snapshot{LockedCellKey: locked}
		return true
	})
	return prev, was
}

func (s *Session) setLocked(key string) {
	s.update(func(snap *Snapshot) bool {
		if snap.LockedCellKey == key {
			return false
		}
		snap.LockedCellKey = key
		return true
	})
}

func (s *Session) unlock(key string) {
	s.update(func(snap *Snapshot) bool {
		if snap.LockedCellKey != key {
			return false
		}
		snap.LockedCellKey = ""
		return true
	})
}
