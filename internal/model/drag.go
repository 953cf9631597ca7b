package model

import "time"

// DragPayload is what a drag gesture carries: either an EventDrag or a
// TodoDrag. It lives only for the duration of the gesture.
type DragPayload interface {
	dragPayload()
}

// EventDrag moves an existing event between days.
type EventDrag struct {
	EventID       string    `json:"event_id"`
	OriginalStart time.Time `json:"original_start"`
	OriginalEnd   time.Time `json:"original_end"`
	AllDay        bool      `json:"all_day"`
}

// TodoDrag carries an external todo. It has no position of its own.
type TodoDrag struct {
	TodoID string `json:"todo_id"`
	Title  string `json:"title"`
	Color  string `json:"color"`
}

func (EventDrag) dragPayload() {}
func (TodoDrag) dragPayload()  {}

// EventDragFor builds the payload for dragging ev.
func EventDragFor(ev Event) EventDrag {
	return EventDrag{
		EventID:       ev.ID,
		OriginalStart: ev.Start,
		OriginalEnd:   ev.End,
		AllDay:        ev.AllDay,
	}
}
