package ics

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	appLog "chronogrid/internal/log"
)

// VEvent is one parsed VEVENT, before recurrence expansion.
type VEvent struct {
	Source Source

	UID      string
	Sequence int

	Summary     string
	Description string
	Location    string

	Start  time.Time
	End    time.Time
	AllDay bool

	RRule   string
	ExDates []time.Time

	// RecurrenceID is set on a VEVENT overriding one recurring instance.
	RecurrenceID *time.Time
}

// IsOverride reports whether v replaces an instance of a recurring event.
func (v VEvent) IsOverride() bool {
	return v.RecurrenceID != nil
}

// Parse reads every VEVENT from body. Components that cannot be read are
// logged and skipped.
func Parse(src Source, body []byte) ([]VEvent, error) {
	if len(body) == 0 {
		return nil, errors.New("empty ICS body")
	}
	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse calendar %s: %w", src.ID, err)
	}

	var out []VEvent
	for _, comp := range cal.Events() {
		ev, err := readVEvent(src, comp)
		if err != nil {
			appLog.Warn("skipping unreadable VEVENT", "id", src.ID, "err", err)
			continue
		}
		out = append(out, ev)
	}
	appLog.Debug("ics parsed", "id", src.ID, "events", len(out))
	return out, nil
}

func readVEvent(src Source, comp *ical.VEvent) (VEvent, error) {
	ev := VEvent{Source: src}

	uid := comp.GetProperty(ical.ComponentPropertyUniqueId)
	if uid == nil || uid.Value == "" {
		return ev, errors.New("missing UID")
	}
	ev.UID = uid.Value

	if p := comp.GetProperty(ical.ComponentPropertySequence); p != nil {
		if n, err := strconv.Atoi(strings.TrimSpace(p.Value)); err == nil {
			ev.Sequence = n
		}
	}
	if p := comp.GetProperty(ical.ComponentPropertySummary); p != nil {
		ev.Summary = p.Value
	}
	if p := comp.GetProperty(ical.ComponentPropertyDescription); p != nil {
		ev.Description = p.Value
	}
	if p := comp.GetProperty(ical.ComponentPropertyLocation); p != nil {
		ev.Location = p.Value
	}

	dtStart := comp.GetProperty(ical.ComponentPropertyDtStart)
	if dtStart == nil {
		return ev, errors.New("missing DTSTART")
	}
	ev.AllDay = isDateValue(dtStart)

	start, err := comp.GetStartAt()
	if err != nil {
		return ev, fmt.Errorf("DTSTART: %w", err)
	}
	ev.Start = start

	if end, err := comp.GetEndAt(); err == nil {
		ev.End = end
	} else if ev.AllDay {
		ev.End = start.AddDate(0, 0, 1)
	} else {
		ev.End = start
	}

	if p := comp.GetProperty(ical.ComponentPropertyRrule); p != nil {
		ev.RRule = p.Value
	}
	for _, p := range comp.GetProperties(ical.ComponentPropertyExdate) {
		for _, part := range strings.Split(p.Value, ",") {
			if t, err := parseICSTime(part); err == nil {
				ev.ExDates = append(ev.ExDates, t)
			}
		}
	}
	if p := comp.GetProperty("RECURRENCE-ID"); p != nil {
		if t, err := parseICSTime(p.Value); err == nil {
			ev.RecurrenceID = &t
		}
	}
	return ev, nil
}

// isDateValue reports a DATE (all-day) rather than DATE-TIME property.
func isDateValue(p *ical.IANAProperty) bool {
	if vs, ok := p.ICalParameters["VALUE"]; ok && len(vs) > 0 && strings.EqualFold(vs[0], "DATE") {
		return true
	}
	return !strings.Contains(p.Value, "T")
}

// parseICSTime reads the bare DATE and DATE-TIME forms used by EXDATE and
// RECURRENCE-ID. Floating times are read in time.Local.
func parseICSTime(v string) (time.Time, error) {
	v = strings.TrimSpace(v)
	switch {
	case v == "":
		return time.Time{}, errors.New("empty time value")
	case strings.HasSuffix(v, "Z"):
		return time.Parse("20060102T150405Z", v)
	case strings.Contains(v, "T"):
		return time.ParseInLocation("20060102T150405", v, time.Local)
	default:
		return time.ParseInLocation("20060102", v, time.Local)
	}
}
