// Package dragdrop interprets drags of existing events and external todos
// over the day grid and issues the resulting move and convert commands.
package dragdrop

import (
	"context"
	"fmt"
	"sync"
	"time"

	appLog "chronogrid/internal/log"
	"chronogrid/internal/model"
)

// Mutator performs the commands a drop issues.
type Mutator interface {
	UpdateEvent(ctx context.Context, id string, patch model.Patch) (model.Event, error)
	ConvertTodoToEvent(ctx context.Context, todoID string, start, end time.Time, allDay bool) (model.Event, error)
}

// CommandKind names what a drop issued.
type CommandKind string

const (
	CommandMove    CommandKind = "move"
	CommandConvert CommandKind = "convert"
)

// Command describes an issued mutation.
type Command struct {
	Kind    CommandKind `json:"kind"`
	EventID string      `json:"event_id,omitempty"`
	TodoID  string      `json:"todo_id,omitempty"`
	Start   time.Time   `json:"start"`
	End     time.Time   `json:"end"`
	AllDay  bool        `json:"all_day"`
}

// Options tune a Scheduler.
type Options struct {
	Location *time.Location
	// BaseContext is handed to every mutation. Defaults to Background.
	BaseContext context.Context
	// OnDone observes each finished mutation, with its error.
	OnDone func(Command, error)
}

// Scheduler turns drops into commands. Mutations run in their own
// goroutines; Wait drains them.
type Scheduler struct {
	mu      sync.Mutex
	session *Session
	mut     Mutator
	opts    Options

	// pending holds todo ids whose conversion has not finished.
	pending map[string]struct{}

	wg sync.WaitGroup
}

func NewScheduler(session *Session, mut Mutator, opts Options) *Scheduler {
	if session == nil {
		session = NewSession()
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.BaseContext == nil {
		opts.BaseContext = context.Background()
	}
	return &Scheduler{
		session: session,
		mut:     mut,
		opts:    opts,
		pending: make(map[string]struct{}),
	}
}

// Session returns the shared drag state.
func (s *Scheduler) Session() *Session {
	return s.session
}

// Start begins a gesture carrying p. Any gesture still in flight is
// released first.
func (s *Scheduler) Start(p model.DragPayload) {
	if p == nil {
		return
	}
	s.session.end()
	s.session.begin(p)
}

// Over reports the drag hovering day's cell.
func (s *Scheduler) Over(day model.CalendarDate) {
	if day.IsZero() {
		return
	}
	s.session.update(func(snap *Snapshot) bool {
		if !snap.Active {
			return false
		}
		before := *snap
		snap.HoveredCellKey = day.Key()
		if _, ok := snap.Payload.(model.TodoDrag); ok {
			if snap.OverlayActive {
				snap.PreviewDate = model.CalendarDate{}
			} else {
				snap.PreviewDate = day
			}
		}
		return *snap != before
	})
}

// Leave reports the drag leaving a cell. next is the cell entered, or zero
// when the pointer left the grid; only the latter clears the preview.
func (s *Scheduler) Leave(next model.CalendarDate) {
	if !next.IsZero() {
		return
	}
	s.Exit()
}

// Exit reports the drag leaving the calendar area entirely.
func (s *Scheduler) Exit() {
	s.session.update(func(snap *Snapshot) bool {
		if snap.HoveredCellKey == "" && snap.PreviewDate.IsZero() {
			return false
		}
		snap.HoveredCellKey = ""
		snap.PreviewDate = model.CalendarDate{}
		return true
	})
}

// SetOverlayActive records whether a floating todo overlay owns the pointer.
// An active overlay hides the hover preview.
func (s *Scheduler) SetOverlayActive(active bool) {
	s.session.update(func(snap *Snapshot) bool {
		before := *snap
		snap.OverlayActive = active
		if active {
			snap.PreviewDate = model.CalendarDate{}
		}
		return *snap != before
	})
}

// Cancel aborts the gesture without issuing anything.
func (s *Scheduler) Cancel() {
	s.session.end()
}

// Drop finishes the gesture on day. It reports the command issued, if any.
func (s *Scheduler) Drop(day model.CalendarDate) (Command, bool) {
	snap := s.session.Snapshot()
	if !snap.Active || day.IsZero() {
		s.session.end()
		return Command{}, false
	}

	switch p := snap.Payload.(type) {
	case model.EventDrag:
		s.session.end()
		return s.move(p, day), true
	case model.TodoDrag:
		return s.convert(p, day)
	default:
		s.session.end()
		return Command{}, false
	}
}

// DragEnd is the fallback for a gesture that ended without a drop event.
// day is the cell under the pointer, or zero. A gesture already finished by
// Drop is a no-op here.
func (s *Scheduler) DragEnd(day model.CalendarDate) (Command, bool) {
	snap := s.session.Snapshot()
	if !snap.Active {
		return Command{}, false
	}
	td, ok := snap.Payload.(model.TodoDrag)
	if !ok || day.IsZero() {
		s.session.end()
		return Command{}, false
	}
	return s.convert(td, day)
}

// PendingConversion reports whether todoID's conversion is in flight.
func (s *Scheduler) PendingConversion(todoID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.pending[todoID]
	return ok
}

// Wait blocks until every issued mutation has finished.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

// PreviewEvent is the faux event drawn in the hovered cell during a todo
// drag. It never enters the event set.
func (s *Scheduler) PreviewEvent() (model.Event, bool) {
	return PreviewEventFor(s.session.Snapshot(), s.opts.Location)
}

// PreviewEventFor builds the hover preview of snap.
func PreviewEventFor(snap Snapshot, loc *time.Location) (model.Event, bool) {
	td, ok := snap.Todo()
	if !ok || snap.PreviewDate.IsZero() {
		return model.Event{}, false
	}
	title := td.Title
	if title == "" {
		title = "New task"
	}
	color := td.Color
	if color == "" {
		color = model.DefaultEventColor
	}
	start, end := model.DayRange(snap.PreviewDate, snap.PreviewDate, loc)
	return model.Event{
		ID:     "todo-preview-" + snap.PreviewDate.Key(),
		Title:  title,
		Start:  start,
		End:    end,
		AllDay: true,
		Color:  color,
		TodoID: td.TodoID,
	}, true
}

// MoveTarget shifts the dragged event by the whole days between its start
// day and target, keeping duration and wall-clock time of day. Dropping on
// the start day returns the original instants untouched.
func MoveTarget(p model.EventDrag, target model.CalendarDate, loc *time.Location) (time.Time, time.Time) {
	if loc == nil {
		loc = time.Local
	}
	delta := model.DateOf(p.OriginalStart.In(loc)).DaysUntil(target)
	if delta == 0 {
		return p.OriginalStart, p.OriginalEnd
	}
	return p.OriginalStart.In(loc).AddDate(0, 0, delta), p.OriginalEnd.In(loc).AddDate(0, 0, delta)
}

func (s *Scheduler) move(p model.EventDrag, day model.CalendarDate) Command {
	start, end := MoveTarget(p, day, s.opts.Location)
	cmd := Command{
		Kind:    CommandMove,
		EventID: p.EventID,
		Start:   start,
		End:     end,
		AllDay:  p.AllDay,
	}
	allDay := p.AllDay
	patch := model.Patch{Start: &start, End: &end, AllDay: &allDay}

	key := day.Key()
	s.session.setLocked(key)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.session.unlock(key)
		_, err := s.mut.UpdateEvent(s.opts.BaseContext, p.EventID, patch)
		if err != nil {
			appLog.Error("move event failed", err, "event_id", p.EventID, "day", key)
		}
		s.done(cmd, err)
	}()
	return cmd
}

func (s *Scheduler) convert(td model.TodoDrag, day model.CalendarDate) (Command, bool) {
	if td.TodoID == "" {
		s.session.end()
		return Command{}, false
	}
	s.mu.Lock()
	if _, busy := s.pending[td.TodoID]; busy {
		s.mu.Unlock()
		s.session.end()
		return Command{}, false
	}
	s.pending[td.TodoID] = struct{}{}
	s.mu.Unlock()

	s.session.end()

	start, end := model.DayRange(day, day, s.opts.Location)
	cmd := Command{
		Kind:   CommandConvert,
		TodoID: td.TodoID,
		Start:  start,
		End:    end,
		AllDay: true,
	}

	key := day.Key()
	s.session.setLocked(key)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() {
			s.mu.Lock()
			delete(s.pending, td.TodoID)
			s.mu.Unlock()
			s.session.unlock(key)
		}()
		_, err := s.mut.ConvertTodoToEvent(s.opts.BaseContext, td.TodoID, start, end, true)
		if err != nil {
			appLog.Error("convert todo failed", err, "todo_id", td.TodoID, "day", key)
		}
		s.done(cmd, err)
	}()
	return cmd, true
}

func (s *Scheduler) done(cmd Command, err error) {
	if s.opts.OnDone != nil {
		s.opts.OnDone(cmd, err)
	}
}

func (c Command) String() string {
	if c.Kind == CommandConvert {
		return fmt.Sprintf("convert todo %s to [%s, %s)", c.TodoID, c.Start.Format(time.RFC3339), c.End.Format(time.RFC3339))
	}
	return fmt.Sprintf("move event %s to [%s, %s)", c.EventID, c.Start.Format(time.RFC3339), c.End.Format(time.RFC3339))
}
