package model

import "time"

// Default values for events created from the grid.
const (
	DefaultEventTitle = "New Event"
	DefaultEventColor = "blue"
)

// Prefill seeds the create-event modal.
type Prefill struct {
	Start  time.Time `json:"start"`
	End    time.Time `json:"end"`
	AllDay bool      `json:"all_day"`
	Title  string    `json:"title"`
	Color  string    `json:"color"`
}

// Patch is a partial event update. Nil fields are left unchanged.
type Patch struct {
	Start  *time.Time `json:"start,omitempty"`
	End    *time.Time `json:"end,omitempty"`
	AllDay *bool      `json:"all_day,omitempty"`
	Title  *string    `json:"title,omitempty"`
	Color  *string    `json:"color,omitempty"`
}

// Apply returns ev with the patch applied.
func (p Patch) Apply(ev Event) Event {
	if p.Start != nil {
		ev.Start = *p.Start
	}
	if p.End != nil {
		ev.End = *p.End
	}
	if p.AllDay != nil {
		ev.AllDay = *p.AllDay
	}
	if p.Title != nil {
		ev.Title = *p.Title
	}
	if p.Color != nil {
		ev.Color = *p.Color
	}
	return ev
}

// DayRange is the all-day instant range [first 00:00, last+1 00:00) in loc.
func DayRange(first, last CalendarDate, loc *time.Location) (time.Time, time.Time) {
	if last.Before(first) {
		first, last = last, first
	}
	return first.In(loc), last.AddDays(1).In(loc)
}
