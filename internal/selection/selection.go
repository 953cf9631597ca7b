// Package selection turns pointer gestures over day cells into all-day date
// ranges, telling a plain click apart from a drag by a short deadline and a
// movement threshold.
package selection

import (
	"math"
	"sync"
	"time"

	appLog "chronogrid/internal/log"
	"chronogrid/internal/model"
)

// Phase is the controller's state.
type Phase int

const (
	Idle Phase = iota
	Pending
	Active
	Finalized
)

func (p Phase) String() string {
	switch p {
	case Pending:
		return "pending"
	case Active:
		return "active"
	case Finalized:
		return "finalized"
	default:
		return "idle"
	}
}

// Target is what the pointer went down on.
type Target int

const (
	TargetCell Target = iota
	// TargetEventMarker is an inline event inside a cell.
	TargetEventMarker
	// TargetSpan is a multi-day span bar.
	TargetSpan
)

// Point is a pointer position in client pixels.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// State is the observable range selection.
type State struct {
	Phase      Phase              `json:"-"`
	Active     bool               `json:"active"`
	Committed  bool               `json:"committed"`
	Finalized  bool               `json:"finalized"`
	Start      model.CalendarDate `json:"start"`
	End        model.CalendarDate `json:"end"`
	Suppressed bool               `json:"suppressed"`
}

// Range returns the ordered inclusive day range when the selection should
// be drawn, which is once it is committed or finalized.
func (s State) Range() (first, last model.CalendarDate, ok bool) {
	if !(s.Committed || s.Finalized) || s.Start.IsZero() || s.End.IsZero() {
		return model.CalendarDate{}, model.CalendarDate{}, false
	}
	return model.MinDate(s.Start, s.End), model.MaxDate(s.Start, s.End), true
}

// ModalSink opens the create-event modal.
type ModalSink interface {
	OpenCreateModal(prefill model.Prefill, isRange bool)
}

// ModalSinkFunc adapts a function to ModalSink.
type ModalSinkFunc func(prefill model.Prefill, isRange bool)

func (f ModalSinkFunc) OpenCreateModal(prefill model.Prefill, isRange bool) {
	f(prefill, isRange)
}

// Options tune the controller. Zero values take the defaults.
type Options struct {
	Clock     Clock          // RealClock
	Delay     time.Duration  // 120ms
	Threshold float64        // 6px
	Location  *time.Location // time.Local
	// OnChange observes every state change. It runs outside the lock.
	OnChange func(State)
}

// Controller is the range-selection state machine. It is safe for
// concurrent use; callbacks run after the internal lock is released.
type Controller struct {
	mu sync.Mutex

	opts  Options
	modal ModalSink

	state  State
	anchor model.CalendarDate
	origin Point
	timer  Timer
	gen    uint64
}

func New(modal ModalSink, opts Options) *Controller {
	if opts.Clock == nil {
		opts.Clock = RealClock{}
	}
	if opts.Delay <= 0 {
		opts.Delay = 120 * time.Millisecond
	}
	if opts.Threshold <= 0 {
		opts.Threshold = 6
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	return &Controller{opts: opts, modal: modal}
}

// State returns a snapshot.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// PointerDown starts a pending gesture on day. Pointer-downs on event
// markers and spans belong to those elements and are ignored.
func (c *Controller) PointerDown(day model.CalendarDate, at Point, target Target) bool {
	if target != TargetCell || day.IsZero() {
		return false
	}
	c.mu.Lock()
	c.resetLocked()
	c.gen++
	gen := c.gen
	c.anchor = day
	c.origin = at
	c.state.Phase = Pending
	c.timer = c.opts.Clock.AfterFunc(c.opts.Delay, func() { c.deadline(gen) })
	st := c.state
	c.mu.Unlock()

	c.changed(st)
	return true
}

// PointerMove reports the pointer position and the day under it. day may be
// zero when the pointer is outside every cell.
func (c *Controller) PointerMove(day model.CalendarDate, at Point) {
	c.mu.Lock()
	changed := false
	switch c.state.Phase {
	case Pending:
		if !c.beyondThreshold(at) {
			break
		}
		c.stopTimerLocked()
		c.state = State{
			Phase:      Active,
			Active:     true,
			Start:      c.anchor,
			End:        c.anchor,
			Suppressed: true,
		}
		if !day.IsZero() && day != c.anchor {
			c.state.End = day
			c.state.Committed = true
		}
		changed = true
	case Active:
		if day.IsZero() {
			break
		}
		met := c.beyondThreshold(at)
		moved := c.state.Committed || met || day != c.state.Start
		if !moved && c.state.End == day {
			break
		}
		c.state.End = day
		c.state.Committed = moved
		changed = true
	}
	st := c.state
	c.mu.Unlock()

	if changed {
		c.changed(st)
	}
}

// PointerEnter reports the pointer entering day's cell.
func (c *Controller) PointerEnter(day model.CalendarDate) {
	c.mu.Lock()
	if c.state.Phase != Active || day.IsZero() {
		c.mu.Unlock()
		return
	}
	c.state.End = day
	c.state.Committed = c.state.Committed || day != c.state.Start
	st := c.state
	c.mu.Unlock()

	c.changed(st)
}

// PointerUp ends the gesture. A pending gesture was a click and leaves no
// selection; an active one is finalized and opens the create modal once.
func (c *Controller) PointerUp() {
	c.mu.Lock()
	var (
		prefill model.Prefill
		emit    bool
	)
	switch c.state.Phase {
	case Pending:
		c.resetLocked()
	case Active:
		first := model.MinDate(c.state.Start, c.state.End)
		last := model.MaxDate(c.state.Start, c.state.End)
		c.state.Phase = Finalized
		c.state.Active = false
		c.state.Finalized = true
		c.state.Suppressed = false
		c.state.Start, c.state.End = first, last
		start, end := model.DayRange(first, last, c.opts.Location)
		prefill = model.Prefill{
			Start:  start,
			End:    end,
			AllDay: true,
			Title:  model.DefaultEventTitle,
			Color:  model.DefaultEventColor,
		}
		emit = true
	default:
		c.mu.Unlock()
		return
	}
	st := c.state
	c.mu.Unlock()

	c.changed(st)
	if emit {
		appLog.Debug("range selection finalized", "start", st.Start, "end", st.End)
		if c.modal != nil {
			c.modal.OpenCreateModal(prefill, true)
		}
	}
}

// Cancel discards any gesture or selection without emitting. It covers the
// Escape key and external reset signals.
func (c *Controller) Cancel() {
	c.mu.Lock()
	if c.state.Phase == Idle {
		c.mu.Unlock()
		return
	}
	c.resetLocked()
	st := c.state
	c.mu.Unlock()

	c.changed(st)
}

// ModalClosed clears a finalized selection once its modal is dismissed.
func (c *Controller) ModalClosed() {
	c.mu.Lock()
	finalized := c.state.Phase == Finalized
	c.mu.Unlock()
	if finalized {
		c.Cancel()
	}
}

// DoubleClick opens the create modal for the single day.
func (c *Controller) DoubleClick(day model.CalendarDate) {
	if day.IsZero() {
		return
	}
	start, end := model.DayRange(day, day, c.opts.Location)
	if c.modal != nil {
		c.modal.OpenCreateModal(model.Prefill{
			Start:  start,
			End:    end,
			AllDay: true,
			Color:  model.DefaultEventColor,
		}, false)
	}
}

func (c *Controller) deadline(gen uint64) {
	c.mu.Lock()
	if gen != c.gen || c.state.Phase != Pending {
		c.mu.Unlock()
		return
	}
	c.timer = nil
	c.resetLocked()
	st := c.state
	c.mu.Unlock()

	c.changed(st)
}

func (c *Controller) beyondThreshold(at Point) bool {
	return math.Abs(at.X-c.origin.X) > c.opts.Threshold || math.Abs(at.Y-c.origin.Y) > c.opts.Threshold
}

func (c *Controller) stopTimerLocked() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

// resetLocked returns to Idle and releases the scroll suppression.
func (c *Controller) resetLocked() {
	c.stopTimerLocked()
	c.state = State{}
	c.anchor = model.CalendarDate{}
	c.origin = Point{}
}

func (c *Controller) changed(st State) {
	if c.opts.OnChange != nil {
		c.opts.OnChange(st)
	}
}
