// Package layout stacks a week's multi-day events into non-overlapping
// horizontal lanes.
package layout

import (
	"sort"
	"strings"
	"time"

	"chronogrid/internal/model"
)

// Span geometry in pixels.
const (
	LaneHeight = 24
	TopOffset  = 35
	EventGap   = 2
)

// PreviewID identifies the synthetic preview span.
const PreviewID = "preview"

// DaySource answers which events touch a day.
type DaySource interface {
	EventsForDate(day model.CalendarDate) []model.Event
}

// DaySourceFunc adapts a function to DaySource.
type DaySourceFunc func(day model.CalendarDate) []model.Event

func (f DaySourceFunc) EventsForDate(day model.CalendarDate) []model.Event {
	return f(day)
}

// Span is one multi-day event's extent within a week, indexes clipped to 0..6.
type Span struct {
	EventID    string      `json:"event_id"`
	Event      model.Event `json:"event"`
	StartIndex int         `json:"start_index"`
	EndIndex   int         `json:"end_index"`
	Length     int         `json:"length"`
	Lane       int         `json:"lane"`
	Preview    bool        `json:"preview,omitempty"`
}

// Covers reports whether the span occupies week column idx.
func (s Span) Covers(idx int) bool {
	return idx >= s.StartIndex && idx <= s.EndIndex
}

// WeekLayout is the lane assignment of one week.
type WeekLayout struct {
	Spans     []Span          `json:"spans"`
	LaneCount int             `json:"lane_count"`
	MultiDay  map[string]bool `json:"-"`
}

// IsMultiDay reports whether id is rendered as a span this week.
func (l WeekLayout) IsMultiDay(id string) bool {
	return l.MultiDay[id]
}

// ComputeWeek collects every event touching a day of week, keeps those
// spanning more than one real day, and packs them greedily into lanes.
// Events without an id or with unusable instants are skipped.
func ComputeWeek(week model.Week, src DaySource, loc *time.Location) WeekLayout {
	if loc == nil {
		loc = time.Local
	}
	seen := make(map[string]struct{})
	var events []model.Event
	for _, day := range week {
		for _, ev := range src.EventsForDate(day) {
			if ev.ID == "" {
				continue
			}
			if _, ok := seen[ev.ID]; ok {
				continue
			}
			seen[ev.ID] = struct{}{}
			events = append(events, ev)
		}
	}
	return Pack(week, events, loc)
}

// Pack lays out an explicit event set for week. Duplicate ids keep the
// first occurrence.
func Pack(week model.Week, events []model.Event, loc *time.Location) WeekLayout {
	if loc == nil {
		loc = time.Local
	}
	weekStart := week.Start()
	seen := make(map[string]struct{}, len(events))
	spans := make([]Span, 0, len(events))

	for _, ev := range events {
		if ev.ID == "" {
			continue
		}
		if _, ok := seen[ev.ID]; ok {
			continue
		}
		seen[ev.ID] = struct{}{}

		first, last, ok := ev.Days(loc)
		if !ok {
			continue
		}
		if first.DaysUntil(last)+1 <= 1 {
			continue
		}
		start := weekStart.DaysUntil(first)
		end := weekStart.DaysUntil(last)
		if end < 0 || start > 6 {
			continue
		}
		start = max(0, start)
		end = min(6, end)
		spans = append(spans, Span{
			EventID:    ev.ID,
			Event:      ev,
			StartIndex: start,
			EndIndex:   end,
			Length:     end - start + 1,
		})
	}

	sort.SliceStable(spans, func(i, j int) bool {
		a, b := spans[i], spans[j]
		if a.StartIndex != b.StartIndex {
			return a.StartIndex < b.StartIndex
		}
		if a.Length != b.Length {
			return a.Length > b.Length
		}
		return strings.Compare(a.EventID, b.EventID) < 0
	})

	var laneEnd []int
	multi := make(map[string]bool, len(spans))
	for i := range spans {
		lane := 0
		for lane < len(laneEnd) && laneEnd[lane] >= spans[i].StartIndex {
			lane++
		}
		if lane == len(laneEnd) {
			laneEnd = append(laneEnd, spans[i].EndIndex)
		} else {
			laneEnd[lane] = spans[i].EndIndex
		}
		spans[i].Lane = lane
		multi[spans[i].EventID] = true
	}

	return WeekLayout{
		Spans:     spans,
		LaneCount: len(laneEnd),
		MultiDay:  multi,
	}
}

// PreviewSpan clips the inclusive day range [from, to] to week and places it
// one lane above every real span. from and to may be given in either order.
// ok is false when the range misses the week.
func PreviewSpan(week model.Week, from, to model.CalendarDate, laneCount int) (Span, bool) {
	if to.Before(from) {
		from, to = to, from
	}
	if to.Before(week.Start()) || from.After(week.End()) {
		return Span{}, false
	}
	start := max(0, week.Start().DaysUntil(from))
	end := min(6, week.Start().DaysUntil(to))
	return Span{
		EventID:    PreviewID,
		StartIndex: start,
		EndIndex:   end,
		Length:     max(1, end-start+1),
		Lane:       laneCount,
		Preview:    true,
	}, true
}

// TotalLanes counts real lanes plus the preview lane, if any.
func TotalLanes(l WeekLayout, preview *Span) int {
	if preview != nil {
		return l.LaneCount + 1
	}
	return l.LaneCount
}

// LayerHeight is the pixel height of the span layer above the day cells.
func LayerHeight(totalLanes int) int {
	if totalLanes == 0 {
		return 0
	}
	return TopOffset + totalLanes*LaneHeight
}

// InlineOffset is how far a cell's inline list is pushed down when a span
// covers column idx.
func InlineOffset(l WeekLayout, preview *Span, idx int) int {
	covered := preview != nil && preview.Covers(idx)
	for _, s := range l.Spans {
		if covered {
			break
		}
		covered = s.Covers(idx)
	}
	if !covered {
		return 0
	}
	return TotalLanes(l, preview)*LaneHeight + EventGap
}

// InlineEvents drops the events rendered as spans and truncates the rest to
// limit, returning how many were hidden.
func InlineEvents(events []model.Event, l WeekLayout, limit int) ([]model.Event, int) {
	inline := make([]model.Event, 0, len(events))
	for _, ev := range events {
		if l.IsMultiDay(ev.ID) {
			continue
		}
		inline = append(inline, ev)
	}
	if limit < 0 {
		limit = 0
	}
	if len(inline) <= limit {
		return inline, 0
	}
	return inline[:limit], len(inline) - limit
}
