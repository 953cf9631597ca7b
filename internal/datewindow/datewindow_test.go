package datewindow

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"chronogrid/internal/model"
)

func TestStartOfWeek(t *testing.T) {
	wed := model.NewDate(2024, 1, 10)
	assert.Equal(t, model.NewDate(2024, 1, 7), StartOfWeek(wed, time.Sunday))
	assert.Equal(t, model.NewDate(2024, 1, 8), StartOfWeek(wed, time.Monday))
	assert.Equal(t, model.NewDate(2024, 1, 10), StartOfWeek(wed, time.Wednesday))
	assert.Equal(t, model.NewDate(2024, 1, 4), StartOfWeek(wed, time.Thursday))

	sun := model.NewDate(2024, 1, 7)
	assert.Equal(t, sun, StartOfWeek(sun, time.Sunday))
	assert.Equal(t, model.NewDate(2024, 1, 1), StartOfWeek(sun, time.Monday))
}

func TestEnumerateDays(t *testing.T) {
	w := EnumerateDays(model.NewDate(2023, 12, 31))
	assert.Equal(t, model.NewDate(2023, 12, 31), w[0])
	assert.Equal(t, model.NewDate(2024, 1, 6), w[6])
}

func TestExpandIsMonotonicAndAligned(t *testing.T) {
	for _, ws := range []time.Weekday{time.Sunday, time.Monday, time.Saturday} {
		w := Around(model.NewDate(2024, 6, 15), ws, 2, 3)
		steps := []struct {
			dir   Direction
			weeks int
		}{
			{Backward, 4}, {Forward, 1}, {Forward, 0}, {Backward, -3}, {Forward, 52}, {Backward, 1},
		}
		for _, s := range steps {
			next := Expand(w, s.dir, s.weeks)
			assert.False(t, next.Start.After(w.Start), "start must never move later")
			assert.False(t, next.End.Before(w.End), "end must never move earlier")
			assert.Equal(t, ws, next.Start.Weekday())
			assert.Equal(t, ws, next.End.Weekday())
			w = next
		}
	}
}

func TestWindowIndexing(t *testing.T) {
	w := Around(model.NewDate(2024, 1, 10), time.Sunday, 1, 1)
	assert.Equal(t, model.NewDate(2023, 12, 31), w.Start)
	assert.Equal(t, model.NewDate(2024, 1, 14), w.End)
	assert.Equal(t, 3, w.WeekCount())
	assert.Equal(t, model.NewDate(2024, 1, 7), w.WeekAt(1).Start())
	assert.Equal(t, 1, w.IndexOf(model.NewDate(2024, 1, 13)))
	assert.Equal(t, 2, w.IndexOf(model.NewDate(2024, 1, 20)))
	assert.Equal(t, -1, w.IndexOf(model.NewDate(2024, 1, 21)))
	assert.Equal(t, -1, w.IndexOf(model.NewDate(2023, 12, 30)))
}

func TestMonthHelpers(t *testing.T) {
	assert.Equal(t, model.NewDate(2024, 2, 29), EndOfMonth(model.NewDate(2024, 2, 10)))
	assert.Equal(t, model.NewDate(2024, 2, 29), AddMonths(model.NewDate(2024, 1, 31), 1))
	assert.Equal(t, model.NewDate(2023, 10, 15), AddMonths(model.NewDate(2024, 1, 15), -3))
	assert.Equal(t, "2024-01", MonthKey(model.NewDate(2024, 1, 15)))
}

func TestMonthRegion(t *testing.T) {
	r := MonthRegion(model.NewDate(2024, 1, 20), model.NewDate(2024, 1, 20), time.Sunday, time.UTC)
	// Jan 1 2024 is a Monday, Jan 31 a Wednesday.
	assert.Equal(t, time.Date(2023, 12, 31, 0, 0, 0, 0, time.UTC), r.Start)
	assert.Equal(t, time.Date(2024, 2, 4, 0, 0, 0, 0, time.UTC), r.End)
}
