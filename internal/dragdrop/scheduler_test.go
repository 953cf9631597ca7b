package dragdrop

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chronogrid/internal/model"
)

type conversion struct {
	todoID     string
	start, end time.Time
	allDay     bool
}

type fakeMutator struct {
	mu          sync.Mutex
	updates     map[string]model.Patch
	conversions []conversion
	release     chan struct{}
	err         error
}

func newFakeMutator() *fakeMutator {
	return &fakeMutator{updates: make(map[string]model.Patch)}
}

func (m *fakeMutator) UpdateEvent(_ context.Context, id string, patch model.Patch) (model.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updates[id] = patch
	return model.Event{ID: id}, m.err
}

func (m *fakeMutator) ConvertTodoToEvent(_ context.Context, todoID string, start, end time.Time, allDay bool) (model.Event, error) {
	if m.release != nil {
		<-m.release
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.conversions = append(m.conversions, conversion{todoID, start, end, allDay})
	return model.Event{ID: "ev-" + todoID, TodoID: todoID}, m.err
}

func (m *fakeMutator) Conversions() []conversion {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]conversion(nil), m.conversions...)
}

func newScheduler(m Mutator) *Scheduler {
	return NewScheduler(NewSession(), m, Options{Location: time.UTC})
}

func TestDropEventOnOwnDayIsIdentityMove(t *testing.T) {
	m := newFakeMutator()
	s := newScheduler(m)
	ny, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	orig := model.Event{
		ID:    "e1",
		Start: time.Date(2024, 1, 9, 14, 30, 15, 123, ny),
		End:   time.Date(2024, 1, 9, 16, 0, 0, 0, ny),
	}
	s.Start(model.EventDragFor(orig))
	cmd, ok := s.Drop(model.NewDate(2024, 1, 9))
	require.True(t, ok)
	s.Wait()

	assert.Equal(t, CommandMove, cmd.Kind)
	patch := m.updates["e1"]
	require.NotNil(t, patch.Start)
	assert.Equal(t, orig.Start, *patch.Start)
	assert.Equal(t, orig.End, *patch.End)
	assert.False(t, *patch.AllDay)
}

func TestDropEventShiftsByWholeDays(t *testing.T) {
	m := newFakeMutator()
	ny, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	s := NewScheduler(NewSession(), m, Options{Location: ny})

	// Moving across the March DST change keeps 09:00 local.
	orig := model.Event{
		ID:    "e2",
		Start: time.Date(2024, 3, 8, 9, 0, 0, 0, ny),
		End:   time.Date(2024, 3, 9, 11, 0, 0, 0, ny),
	}
	s.Start(model.EventDragFor(orig))
	cmd, ok := s.Drop(model.NewDate(2024, 3, 12))
	require.True(t, ok)
	s.Wait()

	assert.Equal(t, time.Date(2024, 3, 12, 9, 0, 0, 0, ny), cmd.Start)
	assert.Equal(t, time.Date(2024, 3, 13, 11, 0, 0, 0, ny), cmd.End)
	assert.True(t, m.updates["e2"].Start.Equal(cmd.Start))
}

func TestTodoDropThenDragEndConvertsOnce(t *testing.T) {
	m := newFakeMutator()
	s := newScheduler(m)

	s.Start(model.TodoDrag{TodoID: "t1", Title: "Write report", Color: "green"})
	s.Over(model.NewDate(2024, 1, 10))
	_, ok := s.Drop(model.NewDate(2024, 1, 10))
	require.True(t, ok)
	_, ok = s.DragEnd(model.NewDate(2024, 1, 10))
	assert.False(t, ok)
	_, ok = s.Drop(model.NewDate(2024, 1, 10))
	assert.False(t, ok)
	s.Wait()

	convs := m.Conversions()
	require.Len(t, convs, 1)
	assert.Equal(t, conversion{
		todoID: "t1",
		start:  time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC),
		end:    time.Date(2024, 1, 11, 0, 0, 0, 0, time.UTC),
		allDay: true,
	}, convs[0])
	assert.False(t, s.PendingConversion("t1"))
	assert.Empty(t, s.Session().LockedCellKey())
}

func TestPendingConversionBlocksDuplicate(t *testing.T) {
	m := newFakeMutator()
	m.release = make(chan struct{})
	s := newScheduler(m)

	todo := model.TodoDrag{TodoID: "t1", Title: "Write report"}
	s.Start(todo)
	_, ok := s.Drop(model.NewDate(2024, 1, 10))
	require.True(t, ok)
	assert.True(t, s.PendingConversion("t1"))
	assert.Equal(t, "2024-01-10", s.Session().LockedCellKey())

	// A second gesture for the same todo while the first is in flight.
	s.Start(todo)
	s.Over(model.NewDate(2024, 1, 11))
	_, ok = s.Drop(model.NewDate(2024, 1, 11))
	assert.False(t, ok)
	assert.False(t, s.Session().Snapshot().Active)
	assert.Empty(t, s.Session().Snapshot().HoveredCellKey)
	_, preview := s.PreviewEvent()
	assert.False(t, preview)

	// DragEnd takes the same path.
	s.Start(todo)
	s.Over(model.NewDate(2024, 1, 12))
	_, ok = s.DragEnd(model.NewDate(2024, 1, 12))
	assert.False(t, ok)
	assert.False(t, s.Session().Snapshot().Active)

	close(m.release)
	s.Wait()
	assert.Len(t, m.Conversions(), 1)
	assert.False(t, s.PendingConversion("t1"))
	assert.Empty(t, s.Session().LockedCellKey())
}

func TestDragEndFallbackConverts(t *testing.T) {
	m := newFakeMutator()
	s := newScheduler(m)

	s.Start(model.TodoDrag{TodoID: "t2"})
	cmd, ok := s.DragEnd(model.NewDate(2024, 2, 1))
	require.True(t, ok)
	s.Wait()
	assert.Equal(t, CommandConvert, cmd.Kind)
	assert.Len(t, m.Conversions(), 1)
	assert.False(t, s.Session().Snapshot().Active)
}

func TestDragEndOutsideGridCancels(t *testing.T) {
	m := newFakeMutator()
	s := newScheduler(m)

	s.Start(model.TodoDrag{TodoID: "t3"})
	s.Over(model.NewDate(2024, 2, 1))
	_, ok := s.DragEnd(model.CalendarDate{})
	assert.False(t, ok)
	s.Wait()
	assert.Empty(t, m.Conversions())
	assert.Equal(t, Snapshot{}, s.Session().Snapshot())
}

func TestHoverPreviewLifecycle(t *testing.T) {
	s := newScheduler(newFakeMutator())
	day := model.NewDate(2024, 1, 10)

	s.Start(model.TodoDrag{TodoID: "t1", Title: "Write report", Color: "green"})
	s.Over(day)
	ev, ok := s.PreviewEvent()
	require.True(t, ok)
	assert.Equal(t, "Write report", ev.Title)
	assert.Equal(t, "green", ev.Color)
	assert.True(t, ev.AllDay)
	assert.Equal(t, 1, ev.TotalDays(time.UTC))
	assert.Equal(t, "2024-01-10", s.Session().HoveredCellKey())

	// Moving between cells keeps the preview.
	s.Leave(day.AddDays(1))
	_, ok = s.PreviewEvent()
	assert.True(t, ok)

	s.Leave(model.CalendarDate{})
	_, ok = s.PreviewEvent()
	assert.False(t, ok)

	s.Over(day)
	s.SetOverlayActive(true)
	_, ok = s.PreviewEvent()
	assert.False(t, ok)
	s.Over(day)
	_, ok = s.PreviewEvent()
	assert.False(t, ok)
	s.SetOverlayActive(false)

	s.Over(day)
	s.Cancel()
	_, ok = s.PreviewEvent()
	assert.False(t, ok)
	assert.Equal(t, Snapshot{}, s.Session().Snapshot())
}

func TestEventDragHasNoPreview(t *testing.T) {
	s := newScheduler(newFakeMutator())
	s.Start(model.EventDrag{EventID: "e1", OriginalStart: time.Now(), OriginalEnd: time.Now().Add(time.Hour)})
	s.Over(model.NewDate(2024, 1, 10))
	_, ok := s.PreviewEvent()
	assert.False(t, ok)
	assert.Equal(t, "2024-01-10", s.Session().HoveredCellKey())
}

func TestFailedMutationStillReleases(t *testing.T) {
	m := newFakeMutator()
	m.err = errors.New("backend rejected")
	var (
		mu   sync.Mutex
		errs []error
	)
	s := NewScheduler(NewSession(), m, Options{Location: time.UTC, OnDone: func(_ Command, err error) {
		mu.Lock()
		errs = append(errs, err)
		mu.Unlock()
	}})

	s.Start(model.TodoDrag{TodoID: "t9"})
	s.Drop(model.NewDate(2024, 1, 10))
	s.Wait()

	require.Len(t, errs, 1)
	assert.Error(t, errs[0])
	assert.False(t, s.PendingConversion("t9"))
	assert.Empty(t, s.Session().LockedCellKey())
}

func TestSessionPublishesToSubscribers(t *testing.T) {
	sess := NewSession()
	s := NewScheduler(sess, newFakeMutator(), Options{Location: time.UTC})

	var seen []Snapshot
	unsubscribe := sess.Subscribe(func(snap Snapshot) { seen = append(seen, snap) })

	s.Start(model.TodoDrag{TodoID: "t1"})
	s.Over(model.NewDate(2024, 1, 10))
	s.Over(model.NewDate(2024, 1, 10))
	s.Cancel()
	unsubscribe()
	s.Start(model.TodoDrag{TodoID: "t1"})

	require.Len(t, seen, 3)
	assert.True(t, seen[0].Active)
	assert.Equal(t, model.NewDate(2024, 1, 10), seen[1].PreviewDate)
	assert.False(t, seen[2].Active)
}
