// Package datewindow holds the pure date-range arithmetic of the week grid:
// week boundaries, day enumeration, window expansion and the month-aligned
// regions used for prefetching.
package datewindow

import (
	"time"

	"chronogrid/internal/model"
)

// Direction selects which edge of a window grows.
type Direction int

const (
	Backward Direction = iota
	Forward
)

func (d Direction) String() string {
	if d == Backward {
		return "backward"
	}
	return "forward"
}

// StartOfWeek returns the first day of the week containing date.
func StartOfWeek(date model.CalendarDate, weekStart time.Weekday) model.CalendarDate {
	diff := (int(date.Weekday()) - int(weekStart) + 7) % 7
	return date.AddDays(-diff)
}

// EndOfWeek returns the last day of the week containing date.
func EndOfWeek(date model.CalendarDate, weekStart time.Weekday) model.CalendarDate {
	return StartOfWeek(date, weekStart).AddDays(6)
}

// EnumerateDays returns the seven days starting at weekStart.
func EnumerateDays(weekStart model.CalendarDate) model.Week {
	var w model.Week
	for i := range w {
		w[i] = weekStart.AddDays(i)
	}
	return w
}

// Window is the inclusive range of materialized weeks. Start is the first
// day of the first week and End the first day of the last week; both are
// week-aligned.
type Window struct {
	Start model.CalendarDate `json:"start"`
	End   model.CalendarDate `json:"end"`
}

// Around builds a window of before+1+after weeks around the week of anchor.
func Around(anchor model.CalendarDate, weekStart time.Weekday, before, after int) Window {
	this := StartOfWeek(anchor, weekStart)
	return Window{
		Start: this.AddDays(-7 * before),
		End:   this.AddDays(7 * after),
	}
}

// Expand returns w grown by weeks at the given edge. Non-positive amounts
// leave the window unchanged.
func Expand(w Window, dir Direction, weeks int) Window {
	if weeks <= 0 {
		return w
	}
	if dir == Backward {
		w.Start = w.Start.AddDays(-7 * weeks)
	} else {
		w.End = w.End.AddDays(7 * weeks)
	}
	return w
}

// WeekCount is the number of weeks in the window.
func (w Window) WeekCount() int {
	return w.Start.DaysUntil(w.End)/7 + 1
}

// WeekAt returns the i-th week of the window.
func (w Window) WeekAt(i int) model.Week {
	return EnumerateDays(w.Start.AddDays(7 * i))
}

// IndexOf returns the index of the week containing d, or -1 when d is
// outside the window.
func (w Window) IndexOf(d model.CalendarDate) int {
	if d.Before(w.Start) || d.After(w.End.AddDays(6)) {
		return -1
	}
	return w.Start.DaysUntil(d) / 7
}

// LastDay is the final materialized day.
func (w Window) LastDay() model.CalendarDate {
	return w.End.AddDays(6)
}

// StartOfMonth returns the first day of d's month.
func StartOfMonth(d model.CalendarDate) model.CalendarDate {
	return model.NewDate(d.Year, d.Month, 1)
}

// EndOfMonth returns the last day of d's month.
func EndOfMonth(d model.CalendarDate) model.CalendarDate {
	return model.NewDate(d.Year, d.Month+1, 0)
}

// AddMonths shifts d by n months, clamping the day to the target month's
// length (Jan 31 + 1 month = Feb 29 in a leap year).
func AddMonths(d model.CalendarDate, n int) model.CalendarDate {
	first := model.NewDate(d.Year, d.Month+time.Month(n), 1)
	last := EndOfMonth(first)
	day := d.Day
	if day > last.Day {
		day = last.Day
	}
	return model.NewDate(first.Year, first.Month, day)
}

// MonthKey identifies d's month ("2024-01").
func MonthKey(d model.CalendarDate) string {
	return d.Key()[:7]
}

// Region is a half-open instant range [Start, End) covering whole days.
type Region struct {
	Start time.Time
	End   time.Time
}

// MonthRegion returns the week-aligned region from the week containing the
// first day of from's month through the week containing the last day of
// to's month, as instants in loc.
func MonthRegion(from, to model.CalendarDate, weekStart time.Weekday, loc *time.Location) Region {
	first := StartOfWeek(StartOfMonth(from), weekStart)
	last := EndOfWeek(EndOfMonth(to), weekStart)
	return Region{
		Start: first.In(loc),
		End:   last.AddDays(1).In(loc),
	}
}
