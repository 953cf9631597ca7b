package monthview

import (
	"time"

	"chronogrid/internal/datewindow"
	"chronogrid/internal/dragdrop"
	"chronogrid/internal/layout"
	"chronogrid/internal/model"
	"chronogrid/internal/selection"
	"chronogrid/internal/virtual"
)

// DayCell is one day of a rendered week.
type DayCell struct {
	Date    model.CalendarDate `json:"date"`
	Key     string             `json:"key"`
	Today   bool               `json:"today"`
	InMonth bool               `json:"in_month"`

	// Inline holds the events drawn inside the cell; Hidden is the "+N
	// more" count.
	Inline []model.Event `json:"inline"`
	Hidden int           `json:"hidden"`

	// Offset pushes the inline list below the span layer.
	Offset int `json:"offset"`

	// TodoPreview is the faux event of a todo drag hovering this cell.
	TodoPreview *model.Event `json:"todo_preview,omitempty"`

	Selected bool `json:"selected"`
	Hovered  bool `json:"hovered"`
	Locked   bool `json:"locked"`
}

// WeekRow is one rendered week with its packed spans.
type WeekRow struct {
	Index int           `json:"index"`
	Key   string        `json:"key"`
	Days  [7]DayCell    `json:"days"`
	Spans []layout.Span `json:"spans"`

	// Preview is the selection or event-drag span on top of the real lanes.
	Preview     *layout.Span `json:"preview,omitempty"`
	LaneCount   int          `json:"lane_count"`
	LayerHeight int          `json:"layer_height"`
}

// Snapshot is the whole grid as it should be drawn.
type Snapshot struct {
	Window    datewindow.Window  `json:"window"`
	Rendered  virtual.IndexRange `json:"rendered"`
	Month     model.CalendarDate `json:"month"`
	Today     model.CalendarDate `json:"today"`
	WeekStart time.Weekday       `json:"week_start"`
	Loading   bool               `json:"loading"`
	Weeks     []WeekRow          `json:"weeks"`
	Selection selection.State    `json:"selection"`
	Drag      dragdrop.Snapshot  `json:"drag"`
	Modal     *ModalRequest      `json:"modal,omitempty"`
}

// Snapshot renders the weeks of r, or the virtualizer's rendered range when
// r is empty.
func (v *View) Snapshot(r virtual.IndexRange) Snapshot {
	if r.Len() == 0 {
		r = v.virt.Rendered()
	}
	sel := v.sel.State()
	drag := v.drag.Session().Snapshot()
	month := v.virt.Month()
	if month.IsZero() {
		month = v.today
	}

	snap := Snapshot{
		Window:    v.virt.Window(),
		Rendered:  r,
		Month:     month,
		Today:     v.today,
		WeekStart: v.weekStart,
		Loading:   v.store.Loading(),
		Selection: sel,
		Drag:      drag,
	}
	if m, ok := v.Modal(); ok {
		snap.Modal = &m
	}

	first := max(0, r.Start)
	for i, week := range v.virt.Weeks(r) {
		snap.Weeks = append(snap.Weeks, v.week(first+i, week, month, sel, drag))
	}
	return snap
}

func (v *View) week(idx int, week model.Week, month model.CalendarDate, sel selection.State, drag dragdrop.Snapshot) WeekRow {
	wl := layout.ComputeWeek(week, v.store, v.loc)
	row := WeekRow{
		Index:     idx,
		Key:       week.Key(),
		Spans:     wl.Spans,
		LaneCount: wl.LaneCount,
	}

	if from, to, ok := v.previewRange(sel, drag); ok {
		if span, ok := layout.PreviewSpan(week, from, to, wl.LaneCount); ok {
			row.Preview = &span
		}
	}
	row.LayerHeight = layout.LayerHeight(layout.TotalLanes(wl, row.Preview))

	todoPreview, hasTodoPreview := dragdrop.PreviewEventFor(drag, v.loc)
	selFirst, selLast, hasSel := sel.Range()

	for i, day := range week {
		cell := DayCell{
			Date:    day,
			Key:     day.Key(),
			Today:   day == v.today,
			InMonth: day.Year == month.Year && day.Month == month.Month,
			Offset:  layout.InlineOffset(wl, row.Preview, i),
			Hovered: drag.HoveredCellKey == day.Key(),
			Locked:  drag.LockedCellKey == day.Key(),
		}
		cell.Selected = hasSel && !day.Before(selFirst) && !day.After(selLast)

		limit := v.maxInline
		if hasTodoPreview && drag.PreviewDate == day {
			p := todoPreview
			cell.TodoPreview = &p
			limit--
		}
		cell.Inline, cell.Hidden = layout.InlineEvents(v.store.EventsForDate(day), wl, limit)
		row.Days[i] = cell
	}
	return row
}

// previewRange is the day range drawn as the preview span: the selection
// once committed, otherwise where a dragged event would land.
func (v *View) previewRange(sel selection.State, drag dragdrop.Snapshot) (model.CalendarDate, model.CalendarDate, bool) {
	if first, last, ok := sel.Range(); ok {
		return first, last, true
	}
	p, ok := drag.Payload.(model.EventDrag)
	if !drag.Active || !ok || drag.HoveredCellKey == "" {
		return model.CalendarDate{}, model.CalendarDate{}, false
	}
	target, err := model.ParseDate(drag.HoveredCellKey)
	if err != nil {
		return model.CalendarDate{}, model.CalendarDate{}, false
	}
	start, end := dragdrop.MoveTarget(p, target, v.loc)
	moved := model.Event{Start: start, End: end, AllDay: p.AllDay}
	return moved.Days(v.loc)
}
