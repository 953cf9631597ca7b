// Package refresh periodically re-reads the ICS subscriptions around the
// current month.
package refresh

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"chronogrid/internal/datewindow"
	appLog "chronogrid/internal/log"
	"chronogrid/internal/model"
)

// Invalidator drops cached feed bodies.
type Invalidator interface {
	Invalidate()
}

// RangeFetcher loads events for [start, end).
type RangeFetcher interface {
	FetchEventsForRange(ctx context.Context, start, end time.Time, background bool) error
}

// Options describe the region refreshed on every run.
type Options struct {
	Location  *time.Location
	WeekStart time.Weekday

	// Months on each side of the current month (default 3).
	Months int

	// Now defaults to time.Now.
	Now func() time.Time
}

// Refresher runs a cron schedule that invalidates the feed cache and
// re-fetches the region around today.
type Refresher struct {
	cron    *cron.Cron
	inv     Invalidator
	fetcher RangeFetcher
	opts    Options

	mu     sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
}

// New validates schedule (standard five-field cron or a descriptor such as
// "@hourly") and prepares the job; nothing runs until Start.
func New(schedule string, inv Invalidator, fetcher RangeFetcher, opts Options) (*Refresher, error) {
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Months <= 0 {
		opts.Months = 3
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	r := &Refresher{
		cron:    cron.New(cron.WithLocation(opts.Location)),
		inv:     inv,
		fetcher: fetcher,
		opts:    opts,
		ctx:     context.Background(),
	}
	if _, err := r.cron.AddFunc(schedule, r.tick); err != nil {
		return nil, fmt.Errorf("refresh schedule %q: %w", schedule, err)
	}
	return r, nil
}

// Region returns what a run at now would fetch.
func (r *Refresher) Region(now time.Time) datewindow.Region {
	today := model.DateOf(now.In(r.opts.Location))
	return datewindow.MonthRegion(
		datewindow.AddMonths(today, -r.opts.Months),
		datewindow.AddMonths(today, r.opts.Months),
		r.opts.WeekStart,
		r.opts.Location,
	)
}

// RunOnce refreshes immediately.
func (r *Refresher) RunOnce(ctx context.Context) error {
	if r.inv != nil {
		r.inv.Invalidate()
	}
	region := r.Region(r.opts.Now())
	start := time.Now()
	err := r.fetcher.FetchEventsForRange(ctx, region.Start, region.End, true)
	if err != nil {
		return fmt.Errorf("refresh %s..%s: %w", region.Start.Format(time.DateOnly), region.End.Format(time.DateOnly), err)
	}
	appLog.Info("refresh done",
		"start", region.Start.Format(time.DateOnly),
		"end", region.End.Format(time.DateOnly),
		"took", time.Since(start).String(),
	)
	return nil
}

func (r *Refresher) tick() {
	r.mu.Lock()
	ctx := r.ctx
	r.mu.Unlock()
	if err := r.RunOnce(ctx); err != nil {
		appLog.Error("scheduled refresh failed", err)
	}
}

// Start begins the schedule. Runs use ctx and stop when it is cancelled.
func (r *Refresher) Start(ctx context.Context) {
	r.mu.Lock()
	r.ctx, r.cancel = context.WithCancel(ctx)
	r.mu.Unlock()
	r.cron.Start()
	appLog.Info("refresh scheduled", "next", r.Next().Format(time.RFC3339))
}

// Next is the time of the next scheduled run, zero before Start.
func (r *Refresher) Next() time.Time {
	entries := r.cron.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	return entries[0].Next
}

// Stop halts the schedule and waits for a running job to return.
func (r *Refresher) Stop() {
	r.mu.Lock()
	if r.cancel != nil {
		r.cancel()
	}
	r.mu.Unlock()
	<-r.cron.Stop().Done()
}
