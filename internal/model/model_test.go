package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalendarDateKeyAndParse(t *testing.T) {
	d := NewDate(2024, time.January, 7)
	assert.Equal(t, "2024-01-07", d.Key())

	parsed, err := ParseDate("2024-01-07")
	require.NoError(t, err)
	assert.Equal(t, d, parsed)

	_, err = ParseDate("07/01/2024")
	assert.Error(t, err)
}

func TestCalendarDateArithmetic(t *testing.T) {
	d := NewDate(2024, time.February, 28)
	assert.Equal(t, NewDate(2024, time.February, 29), d.AddDays(1))
	assert.Equal(t, NewDate(2024, time.March, 1), d.AddDays(2))
	assert.Equal(t, NewDate(2023, time.December, 31), NewDate(2024, time.January, 1).AddDays(-1))
	assert.Equal(t, 2, d.DaysUntil(NewDate(2024, time.March, 1)))
	assert.Equal(t, -59, d.DaysUntil(NewDate(2023, time.December, 31)))
	assert.Equal(t, time.Sunday, NewDate(2024, time.January, 7).Weekday())
}

func TestCalendarDateAcrossDST(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	// 2024-03-10 is 23 hours long in New York.
	start := NewDate(2024, time.March, 9)
	assert.Equal(t, 2, start.DaysUntil(NewDate(2024, time.March, 11)))
	assert.Equal(t, NewDate(2024, time.March, 11), DateOf(start.AddDays(2).In(loc)))
}

func TestEventDays(t *testing.T) {
	loc := time.UTC
	allDay := Event{
		ID: "a", AllDay: true,
		Start: time.Date(2024, 1, 8, 0, 0, 0, 0, loc),
		End:   time.Date(2024, 1, 10, 0, 0, 0, 0, loc),
	}
	first, last, ok := allDay.Days(loc)
	require.True(t, ok)
	assert.Equal(t, NewDate(2024, 1, 8), first)
	assert.Equal(t, NewDate(2024, 1, 9), last)
	assert.Equal(t, 2, allDay.TotalDays(loc))

	timed := Event{
		ID:    "t",
		Start: time.Date(2024, 1, 9, 22, 0, 0, 0, loc),
		End:   time.Date(2024, 1, 10, 0, 0, 0, 0, loc),
	}
	assert.Equal(t, 1, timed.TotalDays(loc))
	assert.False(t, timed.IsMultiDay(loc))

	overnight := Event{
		ID:    "o",
		Start: time.Date(2024, 1, 9, 22, 0, 0, 0, loc),
		End:   time.Date(2024, 1, 10, 1, 0, 0, 0, loc),
	}
	assert.True(t, overnight.IsMultiDay(loc))
	assert.True(t, overnight.Touches(NewDate(2024, 1, 10), loc))
	assert.False(t, overnight.Touches(NewDate(2024, 1, 11), loc))
}

func TestEventDaysMalformed(t *testing.T) {
	_, _, ok := Event{ID: "x"}.Days(time.UTC)
	assert.False(t, ok)

	backwards := Event{
		ID:    "b",
		Start: time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2024, 1, 8, 0, 0, 0, 0, time.UTC),
	}
	assert.Equal(t, 0, backwards.TotalDays(time.UTC))
}

func TestWeekIndexOf(t *testing.T) {
	var w Week
	for i := range w {
		w[i] = NewDate(2024, 1, 7+i)
	}
	assert.Equal(t, "2024-01-07", w.Key())
	assert.Equal(t, 2, w.IndexOf(NewDate(2024, 1, 9)))
	assert.Equal(t, -1, w.IndexOf(NewDate(2024, 1, 14)))
}

func TestCalendarDateJSON(t *testing.T) {
	type payload struct {
		Day  CalendarDate `json:"day"`
		None CalendarDate `json:"none"`
	}
	b, err := json.Marshal(payload{Day: NewDate(2024, 2, 29)})
	require.NoError(t, err)
	assert.JSONEq(t, `{"day":"2024-02-29","none":""}`, string(b))

	var got payload
	require.NoError(t, json.Unmarshal(b, &got))
	assert.Equal(t, NewDate(2024, 2, 29), got.Day)
	assert.True(t, got.None.IsZero())

	assert.Error(t, json.Unmarshal([]byte(`{"day":"29/02/2024"}`), &got))
}
