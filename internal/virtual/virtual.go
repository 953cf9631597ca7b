// Package virtual decides which weeks of the unbounded timeline are
// materialized and rendered, and when more event data should be requested,
// from scroll telemetry alone.
package virtual

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"chronogrid/internal/datewindow"
	appLog "chronogrid/internal/log"
	"chronogrid/internal/model"
)

// RangeFetcher loads events for [start, end). background suppresses any
// loading indicator on the caller's side.
type RangeFetcher interface {
	FetchEventsForRange(ctx context.Context, start, end time.Time, background bool) error
}

// MonthListener receives the representative date of the month in view.
type MonthListener func(month model.CalendarDate)

// Config tunes the virtualizer. Zero values are replaced by the defaults
// noted on each field.
type Config struct {
	WeekStart time.Weekday
	Location  *time.Location

	// Today anchors the initial window. Defaults to the current day in Location.
	Today model.CalendarDate

	WeeksPerView       int     // 6
	InitialBufferWeeks int     // 1040
	RenderBuffer       int     // 10
	GrowthChunk        int     // 52
	EdgeRows           float64 // 3
	NeighborMonths     int     // 3
	DirectionalMonths  int     // 24
	IdleMonths         int     // 12

	// BaseContext is handed to every prefetch call. Defaults to Background.
	BaseContext context.Context
}

func (c *Config) normalize() {
	if c.Location == nil {
		c.Location = time.Local
	}
	if c.Today.IsZero() {
		c.Today = model.DateOf(time.Now().In(c.Location))
	}
	if c.WeeksPerView <= 0 {
		c.WeeksPerView = 6
	}
	if c.InitialBufferWeeks < 0 {
		c.InitialBufferWeeks = 0
	} else if c.InitialBufferWeeks == 0 {
		c.InitialBufferWeeks = 1040
	}
	if c.RenderBuffer <= 0 {
		c.RenderBuffer = 10
	}
	if c.GrowthChunk <= 0 {
		c.GrowthChunk = 52
	}
	if c.EdgeRows <= 0 {
		c.EdgeRows = 3
	}
	if c.NeighborMonths <= 0 {
		c.NeighborMonths = 3
	}
	if c.DirectionalMonths <= 0 {
		c.DirectionalMonths = 24
	}
	if c.IdleMonths <= 0 {
		c.IdleMonths = 12
	}
	if c.BaseContext == nil {
		c.BaseContext = context.Background()
	}
}

// IndexRange is a half-open range of week indexes into the window.
type IndexRange struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

func (r IndexRange) Len() int {
	if r.End < r.Start {
		return 0
	}
	return r.End - r.Start
}

// ScrollEvent is one scroll-position reading. UserInitiated is false for
// programmatic scrolls such as jumping to today; those never fetch.
type ScrollEvent struct {
	ScrollTop      float64 `json:"scroll_top"`
	ViewportHeight float64 `json:"viewport_height"`
	RowHeight      float64 `json:"row_height"`
	UserInitiated  bool    `json:"user_initiated"`
}

// ScrollUpdate reports what a scroll event changed.
type ScrollUpdate struct {
	Window   datewindow.Window `json:"window"`
	Rendered IndexRange        `json:"rendered"`
	Visible  IndexRange        `json:"visible"`

	Month        model.CalendarDate `json:"month"`
	MonthChanged bool               `json:"month_changed"`

	GrewBackward bool `json:"grew_backward"`
	GrewForward  bool `json:"grew_forward"`

	// ScrollTop is the effective position after any growth adjustment.
	// ScrollAdjust is the offset the caller must add to its own scroll
	// position after backward growth so the viewport stays put.
	ScrollTop    float64 `json:"scroll_top"`
	ScrollAdjust float64 `json:"scroll_adjust"`

	// Requested lists the range keys newly handed to the fetcher.
	Requested []string `json:"requested,omitempty"`
}

type fetchRequest struct {
	key    string
	region datewindow.Region
}

// Virtualizer owns the materialized WeekWindow, the rendered sub-range and
// the set of already requested prefetch regions.
type Virtualizer struct {
	mu sync.Mutex

	cfg     Config
	fetcher RangeFetcher
	onMonth MonthListener

	window    datewindow.Window
	rendered  IndexRange
	requested map[string]struct{}

	lastScrollTop   float64
	hasUserScrolled bool
	initialLoading  bool
	monthKey        string
	month           model.CalendarDate

	wg sync.WaitGroup
}

// New builds a virtualizer whose window holds InitialBufferWeeks on each
// side of the weeks around today.
func New(cfg Config, fetcher RangeFetcher, onMonth MonthListener) *Virtualizer {
	cfg.normalize()
	above := cfg.WeeksPerView / 2
	below := cfg.WeeksPerView - 1 - above
	return &Virtualizer{
		cfg:       cfg,
		fetcher:   fetcher,
		onMonth:   onMonth,
		window:    datewindow.Around(cfg.Today, cfg.WeekStart, above+cfg.InitialBufferWeeks, below+cfg.InitialBufferWeeks),
		rendered:  IndexRange{Start: 0, End: 20},
		requested: make(map[string]struct{}),
	}
}

// Window returns the materialized window.
func (v *Virtualizer) Window() datewindow.Window {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.window
}

// Rendered returns the week index range that should be drawn.
func (v *Virtualizer) Rendered() IndexRange {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.rendered
}

// Month returns the representative date of the month last in view.
func (v *Virtualizer) Month() model.CalendarDate {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.month
}

// TodayIndex is the window index of the week containing today.
func (v *Virtualizer) TodayIndex() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.window.IndexOf(v.cfg.Today)
}

// Weeks returns the weeks of r, clamped to the window.
func (v *Virtualizer) Weeks(r IndexRange) []model.Week {
	v.mu.Lock()
	w := v.window
	v.mu.Unlock()

	n := w.WeekCount()
	start := max(0, r.Start)
	end := min(n, r.End)
	if end <= start {
		return nil
	}
	out := make([]model.Week, 0, end-start)
	for i := start; i < end; i++ {
		out = append(out, w.WeekAt(i))
	}
	return out
}

// SetInitialLoading toggles the initial-load phase. Prefetch is suppressed
// while loading, and entering the phase forgets every requested range so a
// reload re-requests them.
func (v *Virtualizer) SetInitialLoading(loading bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.initialLoading = loading
	if loading {
		clear(v.requested)
	}
}

// Reset forgets all requested ranges.
func (v *Virtualizer) Reset() {
	v.mu.Lock()
	defer v.mu.Unlock()
	clear(v.requested)
}

// Wait blocks until every prefetch started so far has finished.
func (v *Virtualizer) Wait() {
	v.wg.Wait()
}

// JumpToToday returns the scroll position that centres today's week in the
// viewport and applies it as a synthetic scroll.
func (v *Virtualizer) JumpToToday(viewportHeight, rowHeight float64) ScrollUpdate {
	idx := v.TodayIndex()
	top := math.Max(0, float64(idx)*rowHeight-viewportHeight/2+rowHeight/2)
	return v.OnScroll(ScrollEvent{
		ScrollTop:      top,
		ViewportHeight: viewportHeight,
		RowHeight:      rowHeight,
	})
}

// OnScroll reacts to a scroll-position reading.
func (v *Virtualizer) OnScroll(ev ScrollEvent) ScrollUpdate {
	v.mu.Lock()
	upd, notify, reqs := v.onScrollLocked(ev)
	for _, r := range reqs {
		v.dispatch(r)
	}
	v.mu.Unlock()

	if notify && v.onMonth != nil {
		v.onMonth(upd.Month)
	}
	return upd
}

func (v *Virtualizer) onScrollLocked(ev ScrollEvent) (ScrollUpdate, bool, []fetchRequest) {
	upd := ScrollUpdate{
		Window:    v.window,
		Rendered:  v.rendered,
		Month:     v.month,
		ScrollTop: ev.ScrollTop,
	}
	rh := ev.RowHeight
	if rh <= 0 {
		return upd, false, nil
	}

	top := ev.ScrollTop
	deltaY := top - v.lastScrollTop
	edge := v.cfg.EdgeRows * rh

	if deltaY <= 0 && top < edge {
		v.window = datewindow.Expand(v.window, datewindow.Backward, v.cfg.GrowthChunk)
		adjust := float64(v.cfg.GrowthChunk) * rh
		top += adjust
		upd.ScrollAdjust = adjust
		upd.GrewBackward = true
		appLog.Debug("week window grew", "direction", datewindow.Backward, "weeks", v.cfg.GrowthChunk, "start", v.window.Start)
	}
	total := float64(v.window.WeekCount()) * rh
	if deltaY >= 0 && total-top-ev.ViewportHeight < edge {
		v.window = datewindow.Expand(v.window, datewindow.Forward, v.cfg.GrowthChunk)
		upd.GrewForward = true
		appLog.Debug("week window grew", "direction", datewindow.Forward, "weeks", v.cfg.GrowthChunk, "end", v.window.End)
	}
	v.lastScrollTop = top
	upd.ScrollTop = top
	upd.Window = v.window

	n := v.window.WeekCount()
	startWeek := max(0, int(math.Floor(top/rh)))
	endWeek := min(n, int(math.Ceil((top+ev.ViewportHeight)/rh)))

	v.rendered = IndexRange{
		Start: max(0, startWeek-v.cfg.RenderBuffer),
		End:   min(n, endWeek+v.cfg.RenderBuffer),
	}
	upd.Rendered = v.rendered
	upd.Visible = IndexRange{Start: startWeek, End: endWeek}

	user := ev.UserInitiated
	if user {
		v.hasUserScrolled = true
	}

	notify := false
	if month, ok := v.monthInView(startWeek, endWeek); ok {
		key := datewindow.MonthKey(month)
		if key != v.monthKey {
			v.monthKey = key
			v.month = month
			upd.MonthChanged = true
			notify = true
		}
	}
	upd.Month = v.month

	var reqs []fetchRequest
	if user && !v.initialLoading && startWeek < endWeek && startWeek < n {
		rangeStart := v.window.WeekAt(startWeek).Start()
		rangeEnd := v.window.WeekAt(endWeek - 1).End()

		reqs = v.appendRequest(reqs, "", v.region(
			datewindow.AddMonths(rangeStart, -v.cfg.NeighborMonths),
			datewindow.AddMonths(rangeEnd, v.cfg.NeighborMonths),
		))
		if deltaY < 0 {
			reqs = v.appendRequest(reqs, "", v.region(
				datewindow.AddMonths(rangeStart, -v.cfg.DirectionalMonths),
				datewindow.AddMonths(rangeStart, -1),
			))
		}
		if deltaY > 0 {
			reqs = v.appendRequest(reqs, "", v.region(
				datewindow.AddMonths(rangeEnd, 1),
				datewindow.AddMonths(rangeEnd, v.cfg.DirectionalMonths),
			))
		}
	}

	if upd.MonthChanged && v.hasUserScrolled && !v.initialLoading {
		reqs = v.appendRequest(reqs, "year_", v.region(
			datewindow.AddMonths(v.month, -v.cfg.IdleMonths),
			datewindow.AddMonths(v.month, v.cfg.IdleMonths),
		))
	}

	for _, r := range reqs {
		upd.Requested = append(upd.Requested, r.key)
	}
	return upd, notify, reqs
}

// monthInView picks the month owning at least half of the visible days, or
// the month of the middle visible day when no month has a majority. The
// representative date is the first of the winning month, or the middle day
// itself in the fallback case.
func (v *Virtualizer) monthInView(startWeek, endWeek int) (model.CalendarDate, bool) {
	n := v.window.WeekCount()
	if n == 0 {
		return model.CalendarDate{}, false
	}
	first := min(startWeek, n-1)
	last := max(first+1, endWeek)
	if last > n {
		last = n
	}
	if last <= first {
		return model.CalendarDate{}, false
	}

	type tally struct {
		key   string
		count int
		rep   model.CalendarDate
	}
	var order []*tally
	byKey := make(map[string]*tally)
	days := make([]model.CalendarDate, 0, (last-first)*7)
	for i := first; i < last; i++ {
		for _, d := range v.window.WeekAt(i) {
			days = append(days, d)
			key := datewindow.MonthKey(d)
			t, ok := byKey[key]
			if !ok {
				t = &tally{key: key, rep: datewindow.StartOfMonth(d)}
				byKey[key] = t
				order = append(order, t)
			}
			t.count++
		}
	}

	var leading *tally
	for _, t := range order {
		if leading == nil || t.count > leading.count {
			leading = t
		}
	}
	if leading != nil && float64(leading.count) >= float64(len(days))/2 {
		return leading.rep, true
	}
	return days[len(days)/2], true
}

func (v *Virtualizer) region(from, to model.CalendarDate) datewindow.Region {
	return datewindow.MonthRegion(from, to, v.cfg.WeekStart, v.cfg.Location)
}

// appendRequest records the region under its normalized key unless it was
// requested before.
func (v *Virtualizer) appendRequest(reqs []fetchRequest, prefix string, r datewindow.Region) []fetchRequest {
	key := fmt.Sprintf("%s%d_%d", prefix, r.Start.UnixMilli(), r.End.UnixMilli())
	if _, ok := v.requested[key]; ok {
		return reqs
	}
	v.requested[key] = struct{}{}
	return append(reqs, fetchRequest{key: key, region: r})
}

func (v *Virtualizer) dispatch(r fetchRequest) {
	if v.fetcher == nil {
		return
	}
	ctx := v.cfg.BaseContext
	v.wg.Add(1)
	go func() {
		defer v.wg.Done()
		if err := v.fetcher.FetchEventsForRange(ctx, r.region.Start, r.region.End, true); err != nil {
			appLog.Warn("prefetch failed", "key", r.key, "start", r.region.Start.Format(time.RFC3339), "end", r.region.End.Format(time.RFC3339), "err", err)
		}
	}()
}
