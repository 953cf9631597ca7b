// Package monthview composes the virtualizer, the span layout, range
// selection and drag scheduling over one calendar store, and renders the
// result as a snapshot of the weeks in view.
package monthview

import (
	"context"
	"fmt"
	"sync"
	"time"

	"chronogrid/internal/datewindow"
	"chronogrid/internal/dragdrop"
	appLog "chronogrid/internal/log"
	"chronogrid/internal/model"
	"chronogrid/internal/selection"
	"chronogrid/internal/store"
	"chronogrid/internal/virtual"
)

// ModalRequest is a pending create-event modal.
type ModalRequest struct {
	Prefill model.Prefill `json:"prefill"`
	IsRange bool          `json:"is_range"`
}

// Options configure a View. Virtual carries the location, week start and
// today anchor shared by every component.
type Options struct {
	Virtual virtual.Config

	Clock           selection.Clock
	DragDelay       time.Duration
	DragThreshold   float64
	MaxInlineEvents int // 3

	// OnModal and OnMonth observe modal requests and header month changes.
	OnModal func(ModalRequest)
	OnMonth func(model.CalendarDate)
}

// View is one calendar grid.
type View struct {
	store *store.Store
	virt  *virtual.Virtualizer
	sel   *selection.Controller
	drag  *dragdrop.Scheduler

	loc       *time.Location
	weekStart time.Weekday
	today     model.CalendarDate
	maxInline int
	onModal   func(ModalRequest)
	onMonth   func(model.CalendarDate)

	mu    sync.Mutex
	modal *ModalRequest
}

func New(st *store.Store, opts Options) *View {
	if opts.Virtual.Location == nil {
		opts.Virtual.Location = st.Location()
	}
	if opts.Virtual.Today.IsZero() {
		opts.Virtual.Today = model.DateOf(time.Now().In(opts.Virtual.Location))
	}
	if opts.MaxInlineEvents <= 0 {
		opts.MaxInlineEvents = 3
	}
	v := &View{
		store:     st,
		loc:       opts.Virtual.Location,
		weekStart: opts.Virtual.WeekStart,
		today:     opts.Virtual.Today,
		maxInline: opts.MaxInlineEvents,
		onModal:   opts.OnModal,
		onMonth:   opts.OnMonth,
	}
	v.virt = virtual.New(opts.Virtual, st, v.monthChanged)
	v.sel = selection.New(selection.ModalSinkFunc(v.openModal), selection.Options{
		Clock:     opts.Clock,
		Delay:     opts.DragDelay,
		Threshold: opts.DragThreshold,
		Location:  v.loc,
	})
	v.drag = dragdrop.NewScheduler(dragdrop.NewSession(), st, dragdrop.Options{
		Location:    v.loc,
		BaseContext: opts.Virtual.BaseContext,
		OnDone: func(cmd dragdrop.Command, err error) {
			if err != nil {
				appLog.Error("drop mutation failed", err, "cmd", cmd.String())
			}
		},
	})
	return v
}

func (v *View) Store() *store.Store               { return v.store }
func (v *View) Virtualizer() *virtual.Virtualizer { return v.virt }
func (v *View) Selection() *selection.Controller  { return v.sel }
func (v *View) Scheduler() *dragdrop.Scheduler    { return v.drag }
func (v *View) Location() *time.Location          { return v.loc }

// LoadInitial fetches the months around today in the foreground. Prefetch
// stays off until it returns.
func (v *View) LoadInitial(ctx context.Context, months int) error {
	v.virt.SetInitialLoading(true)
	defer v.virt.SetInitialLoading(false)

	region := datewindow.MonthRegion(
		datewindow.AddMonths(v.today, -months),
		datewindow.AddMonths(v.today, months),
		v.weekStart,
		v.loc,
	)
	return v.store.FetchEventsForRange(ctx, region.Start, region.End, false)
}

// Modal returns the modal waiting to be shown, if any.
func (v *View) Modal() (ModalRequest, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.modal == nil {
		return ModalRequest{}, false
	}
	return *v.modal, true
}

// CloseModal dismisses the modal and clears the finalized selection behind it.
func (v *View) CloseModal() {
	v.mu.Lock()
	v.modal = nil
	v.mu.Unlock()
	v.sel.ModalClosed()
}

// SubmitModal creates the event the modal describes, then closes it.
func (v *View) SubmitModal(ctx context.Context, p model.Prefill) (model.Event, error) {
	ev, err := v.store.CreateEvent(ctx, p)
	if err != nil {
		return model.Event{}, err
	}
	v.CloseModal()
	return ev, nil
}

// Wait drains background prefetches and mutations.
func (v *View) Wait() {
	v.virt.Wait()
	v.drag.Wait()
}

func (v *View) openModal(p model.Prefill, isRange bool) {
	req := ModalRequest{Prefill: p, IsRange: isRange}
	v.mu.Lock()
	v.modal = &req
	v.mu.Unlock()
	appLog.Debug("create modal requested", "start", p.Start.Format(time.RFC3339), "range", isRange)
	if v.onModal != nil {
		v.onModal(req)
	}
}

func (v *View) monthChanged(month model.CalendarDate) {
	appLog.Debug("header month changed", "month", datewindow.MonthKey(month))
	if v.onMonth != nil {
		v.onMonth(month)
	}
}

// StartEventDrag begins dragging the stored event id.
func (v *View) StartEventDrag(id string) error {
	ev, ok := v.store.Event(id)
	if !ok {
		return fmt.Errorf("drag %s: %w", id, store.ErrNotFound)
	}
	v.drag.Start(model.EventDragFor(ev))
	return nil
}

// StartTodoDrag begins dragging an external todo.
func (v *View) StartTodoDrag(t model.Todo) {
	v.drag.Start(model.TodoDrag{TodoID: t.ID, Title: t.Title, Color: t.Color})
}
