package model

import (
	"fmt"
	"time"
)

const dateKeyLayout = "2006-01-02"

// CalendarDate is a timezone-naive day. Two dates are equal iff year, month
// and day match, so the struct is usable directly as a map key.
type CalendarDate struct {
	Year  int
	Month time.Month
	Day   int
}

// NewDate normalizes (year, month, day), so NewDate(2024, 1, 32) is Feb 1.
func NewDate(year int, month time.Month, day int) CalendarDate {
	t := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	return CalendarDate{Year: t.Year(), Month: t.Month(), Day: t.Day()}
}

// DateOf returns the calendar day of t in t's own location.
func DateOf(t time.Time) CalendarDate {
	y, m, d := t.Date()
	return CalendarDate{Year: y, Month: m, Day: d}
}

// ParseDate parses a canonical YYYY-MM-DD key.
func ParseDate(key string) (CalendarDate, error) {
	t, err := time.Parse(dateKeyLayout, key)
	if err != nil {
		return CalendarDate{}, fmt.Errorf("parse date %q: %w", key, err)
	}
	return DateOf(t), nil
}

// Key returns the canonical YYYY-MM-DD form.
func (d CalendarDate) Key() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

func (d CalendarDate) String() string {
	return d.Key()
}

func (d CalendarDate) IsZero() bool {
	return d == CalendarDate{}
}

// MarshalText encodes d as its key; the zero date encodes as "".
func (d CalendarDate) MarshalText() ([]byte, error) {
	if d.IsZero() {
		return []byte{}, nil
	}
	return []byte(d.Key()), nil
}

func (d *CalendarDate) UnmarshalText(b []byte) error {
	if len(b) == 0 {
		*d = CalendarDate{}
		return nil
	}
	parsed, err := ParseDate(string(b))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// utc is the arithmetic representation. UTC has no DST, so day differences
// are always whole multiples of 24h.
func (d CalendarDate) utc() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}

// In returns midnight of d in loc.
func (d CalendarDate) In(loc *time.Location) time.Time {
	if loc == nil {
		loc = time.Local
	}
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, loc)
}

func (d CalendarDate) AddDays(n int) CalendarDate {
	return NewDate(d.Year, d.Month, d.Day+n)
}

func (d CalendarDate) Weekday() time.Weekday {
	return d.utc().Weekday()
}

// DaysUntil returns the number of calendar days from d to other
// (negative if other is earlier).
func (d CalendarDate) DaysUntil(other CalendarDate) int {
	return int(other.utc().Sub(d.utc()).Hours() / 24)
}

func (d CalendarDate) Before(other CalendarDate) bool {
	return d.Compare(other) < 0
}

func (d CalendarDate) After(other CalendarDate) bool {
	return d.Compare(other) > 0
}

// Compare returns -1, 0 or +1.
func (d CalendarDate) Compare(other CalendarDate) int {
	switch {
	case d.Year != other.Year:
		return sign(d.Year - other.Year)
	case d.Month != other.Month:
		return sign(int(d.Month) - int(other.Month))
	default:
		return sign(d.Day - other.Day)
	}
}

func sign(n int) int {
	switch {
	case n < 0:
		return -1
	case n > 0:
		return 1
	default:
		return 0
	}
}

// MinDate and MaxDate order two dates.
func MinDate(a, b CalendarDate) CalendarDate {
	if b.Before(a) {
		return b
	}
	return a
}

func MaxDate(a, b CalendarDate) CalendarDate {
	if b.After(a) {
		return b
	}
	return a
}

// Week is seven consecutive days starting at the configured week-start day.
type Week [7]CalendarDate

// Key identifies the week by its first day.
func (w Week) Key() string {
	return w[0].Key()
}

func (w Week) Start() CalendarDate { return w[0] }
func (w Week) End() CalendarDate   { return w[6] }

// IndexOf returns the 0..6 offset of d in the week, or -1.
func (w Week) IndexOf(d CalendarDate) int {
	idx := w[0].DaysUntil(d)
	if idx < 0 || idx > 6 {
		return -1
	}
	return idx
}

// Event is a calendar entry as the grid sees it. Events are owned by the
// calendar model; the grid only reads them and requests mutations.
type Event struct {
	ID    string `json:"id"`
	Title string `json:"title"`

	Start  time.Time `json:"start"`
	End    time.Time `json:"end"`
	AllDay bool      `json:"all_day"`

	Color string `json:"color,omitempty"`

	// TodoID links an event created from a todo back to it.
	TodoID string `json:"todo_id,omitempty"`

	// Optimistic marks a placeholder shown before the backend confirmed it.
	Optimistic bool `json:"optimistic,omitempty"`

	// SourceID names where the event came from: an ICS subscription ID or
	// "local" for events persisted by this service.
	SourceID    string `json:"source_id,omitempty"`
	Description string `json:"description,omitempty"`
	Location    string `json:"location,omitempty"`
}

// Valid reports whether both instants are set.
func (e Event) Valid() bool {
	return !e.Start.IsZero() && !e.End.IsZero()
}

// Days returns the first and the inclusive last calendar day the event
// occupies in loc. All-day events end at an exclusive midnight, so their
// last day is the end date minus one; timed events end one tick before End.
// ok is false for malformed events.
func (e Event) Days(loc *time.Location) (first, last CalendarDate, ok bool) {
	if !e.Valid() {
		return CalendarDate{}, CalendarDate{}, false
	}
	if loc == nil {
		loc = time.Local
	}
	first = DateOf(e.Start.In(loc))
	if e.AllDay {
		last = DateOf(e.End.In(loc)).AddDays(-1)
	} else {
		last = DateOf(e.End.Add(-time.Nanosecond).In(loc))
	}
	if last.Before(first) {
		return first, last, false
	}
	return first, last, true
}

// TotalDays is the inclusive number of days the event covers, or 0 when
// malformed.
func (e Event) TotalDays(loc *time.Location) int {
	first, last, ok := e.Days(loc)
	if !ok {
		return 0
	}
	return first.DaysUntil(last) + 1
}

// IsMultiDay reports whether the event is all-day or crosses a day boundary.
func (e Event) IsMultiDay(loc *time.Location) bool {
	return e.AllDay || e.TotalDays(loc) > 1
}

// Touches reports whether the event occupies day d.
func (e Event) Touches(d CalendarDate, loc *time.Location) bool {
	first, last, ok := e.Days(loc)
	if !ok {
		return false
	}
	return !d.Before(first) && !d.After(last)
}

// Todo is an external task that can be dropped onto the calendar.
type Todo struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Color string `json:"color,omitempty"`
}
