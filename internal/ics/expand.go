package ics

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/teambition/rrule-go"

	appLog "chronogrid/internal/log"
	"chronogrid/internal/model"
)

const defaultMaxInstances = 5000

// ExpandOptions bound recurrence expansion.
type ExpandOptions struct {
	// Location is the zone occurrences are converted to and all-day events
	// are pinned in. Defaults to time.Local.
	Location *time.Location

	// Start and End are the half-open range of interest.
	Start time.Time
	End   time.Time

	// MaxInstances caps occurrences per recurring event.
	MaxInstances int
}

// Expand turns parsed components into grid events overlapping the range.
// Recurring events are expanded with their EXDATEs removed and their
// RECURRENCE-ID overrides applied. Event ids are source/uid/instance so
// they stay stable across fetches.
func Expand(vevents []VEvent, opts ExpandOptions) ([]model.Event, error) {
	if !opts.End.After(opts.Start) {
		return nil, errors.New("expand: range end is not after start")
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.MaxInstances <= 0 {
		opts.MaxInstances = defaultMaxInstances
	}

	masters := make(map[string][]VEvent)
	overrides := make(map[string][]VEvent)
	var uids []string
	for _, v := range vevents {
		if v.IsOverride() {
			overrides[v.UID] = append(overrides[v.UID], v)
			continue
		}
		if _, seen := masters[v.UID]; !seen {
			uids = append(uids, v.UID)
		}
		masters[v.UID] = append(masters[v.UID], v)
	}
	sort.Strings(uids)

	var out []model.Event
	for _, uid := range uids {
		for _, m := range masters[uid] {
			if m.RRule == "" {
				if ev, ok := single(m, overrides[uid], opts); ok {
					out = append(out, ev)
				}
				continue
			}
			evs, capped := recurring(m, overrides[uid], opts)
			if capped {
				appLog.Warn("recurrence truncated", "uid", uid, "cap", opts.MaxInstances)
			}
			out = append(out, evs...)
		}
	}
	return out, nil
}

func single(v VEvent, overrides []VEvent, opts ExpandOptions) (model.Event, bool) {
	if o, ok := overrideFor(overrides, v.Start); ok {
		v = o
	}
	ev := toEvent(v, v.Start, v.End, opts.Location)
	if !overlaps(ev, opts) {
		return model.Event{}, false
	}
	return ev, true
}

func recurring(v VEvent, overrides []VEvent, opts ExpandOptions) ([]model.Event, bool) {
	rule, err := rrule.StrToRRule(v.RRule)
	if err != nil {
		appLog.Error("invalid RRULE", err, "uid", v.UID, "rrule", v.RRule)
		return nil, false
	}
	rule.DTStart(v.Start)

	var set rrule.Set
	set.RRule(rule)
	for _, ex := range v.ExDates {
		set.ExDate(ex.In(v.Start.Location()))
	}

	// Occurrences that started before the range may still run into it.
	dur := v.End.Sub(v.Start)
	days := dayCount(v)
	lookback := dur
	if v.AllDay {
		lookback = time.Duration(days) * 24 * time.Hour
	}
	from := opts.Start.Add(-lookback).In(v.Start.Location())
	to := opts.End.In(v.Start.Location())

	starts := set.Between(from, to, true)
	capped := false
	if len(starts) > opts.MaxInstances {
		starts = starts[:opts.MaxInstances]
		capped = true
	}

	out := make([]model.Event, 0, len(starts))
	for _, s := range starts {
		var e time.Time
		if v.AllDay {
			s = time.Date(s.Year(), s.Month(), s.Day(), 0, 0, 0, 0, s.Location())
			e = s.AddDate(0, 0, days)
		} else {
			e = s.Add(dur)
		}

		id := instanceID(v, s)
		inst := v
		if o, ok := overrideFor(overrides, s); ok {
			inst = o
			s, e = o.Start, o.End
		}
		ev := toEvent(inst, s, e, opts.Location)
		ev.ID = id
		if overlaps(ev, opts) {
			out = append(out, ev)
		}
	}
	return out, capped
}

// dayCount is the number of calendar days an all-day component covers.
func dayCount(v VEvent) int {
	first := model.DateOf(v.Start)
	last := model.DateOf(v.End)
	n := first.DaysUntil(last)
	if n < 1 {
		return 1
	}
	return n
}

func overrideFor(overrides []VEvent, start time.Time) (VEvent, bool) {
	for _, o := range overrides {
		if o.RecurrenceID != nil && o.RecurrenceID.Equal(start) {
			return o, true
		}
	}
	return VEvent{}, false
}

// toEvent converts a component instance. All-day instances keep their
// calendar dates and are pinned to midnight in loc.
func toEvent(v VEvent, start, end time.Time, loc *time.Location) model.Event {
	ev := model.Event{
		ID:          v.Source.ID + "/" + v.UID,
		Title:       v.Summary,
		AllDay:      v.AllDay,
		Color:       v.Source.Color,
		SourceID:    v.Source.ID,
		Description: v.Description,
		Location:    v.Location,
	}
	if v.AllDay {
		ev.Start = model.DateOf(start).In(loc)
		ev.End = model.DateOf(end).In(loc)
		if !ev.End.After(ev.Start) {
			ev.End = model.DateOf(start).AddDays(1).In(loc)
		}
	} else {
		ev.Start = start.In(loc)
		ev.End = end.In(loc)
	}
	return ev
}

func instanceID(v VEvent, start time.Time) string {
	return fmt.Sprintf("%s/%s/%s", v.Source.ID, v.UID, start.UTC().Format(time.RFC3339))
}

func overlaps(ev model.Event, opts ExpandOptions) bool {
	return ev.Start.Before(opts.End) && ev.End.After(opts.Start)
}
