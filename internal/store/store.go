// Package store is the calendar model the grid reads from: an in-memory,
// day-indexed event set filled from loaders and mutated through a backend.
package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	appLog "chronogrid/internal/log"
	"chronogrid/internal/model"
)

// ErrNotFound is returned for unknown event ids.
var ErrNotFound = errors.New("event not found")

// Loader reads events overlapping [start, end).
type Loader interface {
	LoadEvents(ctx context.Context, start, end time.Time) ([]model.Event, error)
}

// Backend persists locally owned events and todos.
type Backend interface {
	Loader
	SaveEvent(ctx context.Context, ev model.Event) (model.Event, error)
	ConvertTodo(ctx context.Context, todoID string, start, end time.Time, allDay bool) (model.Event, error)
	Todo(ctx context.Context, id string) (model.Todo, error)
}

// Store holds every event fetched so far. Merging is a set union by event
// id, so fetches may complete in any order. Once an event has a local copy
// (edited here or returned by the backend), subscription loaders can no
// longer replace it.
type Store struct {
	mu      sync.RWMutex
	loc     *time.Location
	events  map[string]model.Event
	byDay   map[model.CalendarDate]map[string]struct{}
	pending map[string]string // todo id -> optimistic event id
	local   map[string]struct{}

	backend Backend
	loaders []Loader
	group   singleflight.Group

	loading int
}

// New returns a store persisting through backend and reading from backend
// plus any extra loaders.
func New(backend Backend, loc *time.Location, loaders ...Loader) *Store {
	if loc == nil {
		loc = time.Local
	}
	all := make([]Loader, 0, len(loaders)+1)
	if backend != nil {
		all = append(all, backend)
	}
	all = append(all, loaders...)
	return &Store{
		loc:     loc,
		events:  make(map[string]model.Event),
		byDay:   make(map[model.CalendarDate]map[string]struct{}),
		pending: make(map[string]string),
		local:   make(map[string]struct{}),
		backend: backend,
		loaders: all,
	}
}

// Location is the zone days are computed in.
func (s *Store) Location() *time.Location {
	return s.loc
}

// EventsForDate returns the events touching day, ordered by start then id.
func (s *Store) EventsForDate(day model.CalendarDate) []model.Event {
	s.mu.RLock()
	ids := s.byDay[day]
	out := make([]model.Event, 0, len(ids))
	for id := range ids {
		out = append(out, s.events[id])
	}
	s.mu.RUnlock()

	sortEvents(out)
	return out
}

// Event returns the event with id.
func (s *Store) Event(id string) (model.Event, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ev, ok := s.events[id]
	return ev, ok
}

// Len is the number of events held.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.events)
}

// Loading reports whether a foreground fetch is in flight.
func (s *Store) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading > 0
}

// OptimisticFor returns the placeholder event id for todoID, if any.
func (s *Store) OptimisticFor(todoID string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.pending[todoID]
	return id, ok
}

// FetchEventsForRange loads [start, end) from every loader and merges what
// arrived. Identical concurrent requests share one load. Loader failures are
// joined into the returned error; results from the other loaders are still
// merged.
func (s *Store) FetchEventsForRange(ctx context.Context, start, end time.Time, background bool) error {
	if !end.After(start) {
		return nil
	}
	if !background {
		s.mu.Lock()
		s.loading++
		s.mu.Unlock()
		defer func() {
			s.mu.Lock()
			s.loading--
			s.mu.Unlock()
		}()
	}

	key := fmt.Sprintf("%d_%d", start.UnixMilli(), end.UnixMilli())
	_, err, shared := s.group.Do(key, func() (any, error) {
		return nil, s.load(ctx, start, end)
	})
	if shared {
		appLog.Debug("range fetch shared", "key", key)
	}
	return err
}

func (s *Store) load(ctx context.Context, start, end time.Time) error {
	results := make([][]model.Event, len(s.loaders))
	errs := make([]error, len(s.loaders))

	var g errgroup.Group
	for i, l := range s.loaders {
		g.Go(func() error {
			evs, err := l.LoadEvents(ctx, start, end)
			if err != nil {
				errs[i] = fmt.Errorf("loader %d: %w", i, err)
				return nil
			}
			results[i] = evs
			return nil
		})
	}
	_ = g.Wait()

	n := 0
	for i, evs := range results {
		if i == 0 && s.backend != nil {
			s.mergeLocal(evs...)
		} else {
			s.mergeSubscribed(evs...)
		}
		n += len(evs)
	}
	appLog.Debug("range loaded", "start", start.Format(time.RFC3339), "end", end.Format(time.RFC3339), "events", n)
	return errors.Join(errs...)
}

// Merge adds or replaces events by id. A confirmed event carrying a todo id
// supersedes that todo's optimistic placeholder in the same step.
func (s *Store) Merge(events ...model.Event) {
	if len(events) == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ev := range events {
		if ev.ID == "" {
			continue
		}
		s.confirmLocked(ev)
	}
}

// mergeLocal merges events owned by the backend and marks them as local.
func (s *Store) mergeLocal(events ...model.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ev := range events {
		if ev.ID == "" {
			continue
		}
		s.local[ev.ID] = struct{}{}
		s.confirmLocked(ev)
	}
}

// mergeSubscribed merges loader events, skipping ids with a local copy.
func (s *Store) mergeSubscribed(events ...model.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ev := range events {
		if ev.ID == "" {
			continue
		}
		if _, ok := s.local[ev.ID]; ok {
			continue
		}
		s.confirmLocked(ev)
	}
}

// Remove drops an event.
func (s *Store) Remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removeLocked(id)
}

// UpdateEvent applies patch locally, then persists it. On failure the local
// change stays in place and the error is returned.
func (s *Store) UpdateEvent(ctx context.Context, id string, patch model.Patch) (model.Event, error) {
	s.mu.Lock()
	ev, ok := s.events[id]
	if !ok {
		s.mu.Unlock()
		return model.Event{}, fmt.Errorf("update %s: %w", id, ErrNotFound)
	}
	updated := patch.Apply(ev)
	s.local[id] = struct{}{}
	s.upsertLocked(updated)
	s.mu.Unlock()

	if updated.Optimistic || s.backend == nil {
		return updated, nil
	}
	saved, err := s.backend.SaveEvent(ctx, updated)
	if err != nil {
		return updated, fmt.Errorf("save event %s: %w", id, err)
	}
	s.mergeLocal(saved)
	return saved, nil
}

// CreateEvent persists a new event built from a modal prefill.
func (s *Store) CreateEvent(ctx context.Context, p model.Prefill) (model.Event, error) {
	if !p.End.After(p.Start) {
		return model.Event{}, fmt.Errorf("create event: end %s is not after start %s", p.End, p.Start)
	}
	ev := model.Event{
		ID:     uuid.NewString(),
		Title:  p.Title,
		Start:  p.Start,
		End:    p.End,
		AllDay: p.AllDay,
		Color:  p.Color,
	}
	if ev.Title == "" {
		ev.Title = model.DefaultEventTitle
	}
	if s.backend == nil {
		s.Merge(ev)
		return ev, nil
	}
	saved, err := s.backend.SaveEvent(ctx, ev)
	if err != nil {
		return model.Event{}, fmt.Errorf("create event: %w", err)
	}
	s.mergeLocal(saved)
	return saved, nil
}

// ConvertTodoToEvent shows an optimistic placeholder immediately and
// replaces it with the backend's event once the conversion is confirmed. A
// failed conversion drops the placeholder.
func (s *Store) ConvertTodoToEvent(ctx context.Context, todoID string, start, end time.Time, allDay bool) (model.Event, error) {
	if s.backend == nil {
		return model.Event{}, errors.New("convert todo: no backend configured")
	}
	todo, err := s.backend.Todo(ctx, todoID)
	if err != nil {
		appLog.Warn("todo lookup failed, placeholder has no title", "todo_id", todoID, "err", err)
		todo = model.Todo{ID: todoID}
	}
	temp := model.Event{
		ID:         "optimistic-" + uuid.NewString(),
		Title:      todo.Title,
		Color:      todo.Color,
		Start:      start,
		End:        end,
		AllDay:     allDay,
		TodoID:     todoID,
		Optimistic: true,
	}

	s.mu.Lock()
	if old, ok := s.pending[todoID]; ok {
		s.removeLocked(old)
	}
	s.pending[todoID] = temp.ID
	s.upsertLocked(temp)
	s.mu.Unlock()

	ev, err := s.backend.ConvertTodo(ctx, todoID, start, end, allDay)
	if err != nil {
		s.mu.Lock()
		if s.pending[todoID] == temp.ID {
			delete(s.pending, todoID)
			s.removeLocked(temp.ID)
		}
		s.mu.Unlock()
		return model.Event{}, fmt.Errorf("convert todo %s: %w", todoID, err)
	}
	if ev.TodoID == "" {
		ev.TodoID = todoID
	}

	s.mu.Lock()
	s.local[ev.ID] = struct{}{}
	s.confirmLocked(ev)
	// The fetched copy may have superseded the placeholder already.
	if s.pending[todoID] == temp.ID {
		delete(s.pending, todoID)
		s.removeLocked(temp.ID)
	}
	s.mu.Unlock()
	return ev, nil
}

func (s *Store) confirmLocked(ev model.Event) {
	s.upsertLocked(ev)
	if ev.TodoID == "" || ev.Optimistic {
		return
	}
	if temp, ok := s.pending[ev.TodoID]; ok && temp != ev.ID {
		delete(s.pending, ev.TodoID)
		s.removeLocked(temp)
	}
}

func (s *Store) upsertLocked(ev model.Event) {
	if old, ok := s.events[ev.ID]; ok {
		s.unindexLocked(old)
	}
	s.events[ev.ID] = ev
	first, last, ok := ev.Days(s.loc)
	if !ok {
		return
	}
	for d := first; !d.After(last); d = d.AddDays(1) {
		set := s.byDay[d]
		if set == nil {
			set = make(map[string]struct{})
			s.byDay[d] = set
		}
		set[ev.ID] = struct{}{}
	}
}

func (s *Store) removeLocked(id string) {
	ev, ok := s.events[id]
	if !ok {
		return
	}
	s.unindexLocked(ev)
	delete(s.events, id)
}

func (s *Store) unindexLocked(ev model.Event) {
	first, last, ok := ev.Days(s.loc)
	if !ok {
		return
	}
	for d := first; !d.After(last); d = d.AddDays(1) {
		set := s.byDay[d]
		delete(set, ev.ID)
		if len(set) == 0 {
			delete(s.byDay, d)
		}
	}
}

func sortEvents(evs []model.Event) {
	sort.Slice(evs, func(i, j int) bool {
		if !evs[i].Start.Equal(evs[j].Start) {
			return evs[i].Start.Before(evs[j].Start)
		}
		return evs[i].ID < evs[j].ID
	})
}
