package monthview

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chronogrid/internal/model"
	"chronogrid/internal/persist"
	"chronogrid/internal/selection"
	"chronogrid/internal/store"
	"chronogrid/internal/virtual"
)

type stillTimer struct{}

func (stillTimer) Stop() bool { return true }

// stillClock never fires, so gestures stay wherever the test puts them.
type stillClock struct{}

func (stillClock) AfterFunc(time.Duration, func()) selection.Timer { return stillTimer{} }

func day(d int) model.CalendarDate {
	return model.NewDate(2024, time.January, d)
}

func at(d, h int) time.Time {
	return time.Date(2024, time.January, d, h, 0, 0, 0, time.UTC)
}

// todayWeek is the window index of Jan 7..13 2024.
var todayWeek = virtual.IndexRange{Start: 13, End: 14}

type fixture struct {
	view    *View
	backend *persist.Memory
	months  []model.CalendarDate
	modals  []ModalRequest
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{backend: persist.NewMemory()}
	st := store.New(f.backend, time.UTC)
	f.view = New(st, Options{
		Virtual: virtual.Config{
			WeekStart:          time.Sunday,
			Location:           time.UTC,
			Today:              day(10),
			InitialBufferWeeks: 10,
			EdgeRows:           1,
		},
		Clock:   stillClock{},
		OnModal: func(m ModalRequest) { f.modals = append(f.modals, m) },
		OnMonth: func(m model.CalendarDate) { f.months = append(f.months, m) },
	})
	st.Merge(
		model.Event{ID: "trip", Title: "Trip", Start: at(8, 0), End: at(11, 0), AllDay: true},
		model.Event{ID: "e1", Title: "one", Start: at(9, 9), End: at(9, 10)},
		model.Event{ID: "e2", Title: "two", Start: at(9, 10), End: at(9, 11)},
		model.Event{ID: "e3", Title: "three", Start: at(9, 11), End: at(9, 12)},
		model.Event{ID: "e4", Title: "four", Start: at(9, 12), End: at(9, 13)},
	)
	return f
}

func TestSnapshotWeek(t *testing.T) {
	f := newFixture(t)

	snap := f.view.Snapshot(todayWeek)
	require.Len(t, snap.Weeks, 1)
	w := snap.Weeks[0]
	assert.Equal(t, "2024-01-07", w.Key)
	assert.Equal(t, 13, w.Index)
	assert.Equal(t, 1, w.LaneCount)
	assert.Nil(t, w.Preview)
	assert.Equal(t, 35+24, w.LayerHeight)

	require.Len(t, w.Spans, 1)
	assert.Equal(t, "trip", w.Spans[0].EventID)
	assert.Equal(t, 1, w.Spans[0].StartIndex)
	assert.Equal(t, 3, w.Spans[0].EndIndex)

	sun, tue := w.Days[0], w.Days[2]
	assert.Equal(t, 0, sun.Offset)
	assert.Equal(t, 24+2, tue.Offset)
	assert.Len(t, tue.Inline, 3)
	assert.Equal(t, 1, tue.Hidden)
	assert.Equal(t, "e1", tue.Inline[0].ID)
	assert.True(t, w.Days[3].Today)
	assert.True(t, w.Days[3].InMonth)
}

func TestJumpReportsMonth(t *testing.T) {
	f := newFixture(t)

	upd := f.view.Virtualizer().JumpToToday(600, 100)
	assert.Equal(t, 1050.0, upd.ScrollTop)
	assert.Equal(t, []model.CalendarDate{day(1)}, f.months)
	assert.Empty(t, upd.Requested)

	snap := f.view.Snapshot(virtual.IndexRange{})
	assert.Equal(t, virtual.IndexRange{Start: 0, End: 26}, snap.Rendered)
	assert.Len(t, snap.Weeks, 26)
	assert.Equal(t, day(1), snap.Month)
}

func TestRangeSelectionFlow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sel := f.view.Selection()

	require.True(t, sel.PointerDown(day(8), selection.Point{X: 10, Y: 10}, selection.TargetCell))
	sel.PointerMove(day(10), selection.Point{X: 60, Y: 10})

	w := f.view.Snapshot(todayWeek).Weeks[0]
	require.NotNil(t, w.Preview)
	assert.Equal(t, 1, w.Preview.StartIndex)
	assert.Equal(t, 3, w.Preview.EndIndex)
	assert.Equal(t, 1, w.Preview.Lane)
	assert.Equal(t, 35+2*24, w.LayerHeight)
	assert.Equal(t, 2*24+2, w.Days[1].Offset)
	assert.True(t, w.Days[2].Selected)
	assert.False(t, w.Days[4].Selected)

	sel.PointerUp()
	require.Len(t, f.modals, 1)
	m, ok := f.view.Modal()
	require.True(t, ok)
	assert.True(t, m.IsRange)
	assert.Equal(t, at(8, 0), m.Prefill.Start)
	assert.Equal(t, at(11, 0), m.Prefill.End)
	assert.Equal(t, model.DefaultEventTitle, m.Prefill.Title)
	assert.NotNil(t, f.view.Snapshot(todayWeek).Modal)

	ev, err := f.view.SubmitModal(ctx, m.Prefill)
	require.NoError(t, err)
	assert.Equal(t, "New Event", ev.Title)
	_, ok = f.view.Modal()
	assert.False(t, ok)
	assert.Equal(t, selection.Idle, sel.State().Phase)

	w = f.view.Snapshot(todayWeek).Weeks[0]
	assert.Nil(t, w.Preview)
	assert.Equal(t, 2, w.LaneCount)
}

func TestDoubleClickOpensSingleDayModal(t *testing.T) {
	f := newFixture(t)

	f.view.Selection().DoubleClick(day(12))
	m, ok := f.view.Modal()
	require.True(t, ok)
	assert.False(t, m.IsRange)
	assert.Equal(t, at(12, 0), m.Prefill.Start)
	assert.Equal(t, at(13, 0), m.Prefill.End)
	assert.Equal(t, "blue", m.Prefill.Color)

	f.view.CloseModal()
	_, ok = f.view.Modal()
	assert.False(t, ok)
}

func TestTodoDragPreviewAndConvert(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	todo := model.Todo{ID: "t1", Title: "Write report", Color: "red"}
	require.NoError(t, f.backend.PutTodo(ctx, todo))

	f.view.StartTodoDrag(todo)
	f.view.Scheduler().Over(day(9))

	tue := f.view.Snapshot(todayWeek).Weeks[0].Days[2]
	require.NotNil(t, tue.TodoPreview)
	assert.Equal(t, "Write report", tue.TodoPreview.Title)
	assert.Equal(t, "red", tue.TodoPreview.Color)
	assert.True(t, tue.Hovered)
	assert.Len(t, tue.Inline, 2)
	assert.Equal(t, 2, tue.Hidden)

	cmd, ok := f.view.Scheduler().Drop(day(9))
	require.True(t, ok)
	assert.Equal(t, "t1", cmd.TodoID)
	f.view.Wait()

	tue = f.view.Snapshot(todayWeek).Weeks[0].Days[2]
	assert.Nil(t, tue.TodoPreview)
	var converted []model.Event
	for _, ev := range f.view.Store().EventsForDate(day(9)) {
		if ev.TodoID == "t1" {
			converted = append(converted, ev)
		}
	}
	require.Len(t, converted, 1)
	assert.False(t, converted[0].Optimistic)
	assert.Equal(t, "Write report", converted[0].Title)
}

func TestEventDragPreviewAndMove(t *testing.T) {
	f := newFixture(t)

	assert.ErrorIs(t, f.view.StartEventDrag("missing"), store.ErrNotFound)

	require.NoError(t, f.view.StartEventDrag("trip"))
	f.view.Scheduler().Over(day(11))

	w := f.view.Snapshot(todayWeek).Weeks[0]
	require.NotNil(t, w.Preview)
	assert.Equal(t, 4, w.Preview.StartIndex)
	assert.Equal(t, 6, w.Preview.EndIndex)
	assert.Nil(t, w.Days[4].TodoPreview)

	_, ok := f.view.Scheduler().Drop(day(11))
	require.True(t, ok)
	f.view.Wait()

	ev, ok := f.view.Store().Event("trip")
	require.True(t, ok)
	assert.Equal(t, at(11, 0), ev.Start)
	assert.Equal(t, at(14, 0), ev.End)
	assert.Nil(t, f.view.Snapshot(todayWeek).Weeks[0].Preview)
}

func TestLoadInitial(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.backend.SaveEvent(ctx, model.Event{ID: "saved", Title: "Saved", Start: at(20, 9), End: at(20, 10)})
	require.NoError(t, err)

	require.NoError(t, f.view.LoadInitial(ctx, 1))
	_, ok := f.view.Store().Event("saved")
	assert.True(t, ok)
	assert.False(t, f.view.Store().Loading())
}
