// Package persist stores locally owned events and todos, either in Redis or
// in process memory.
package persist

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"chronogrid/internal/model"
)

// SourceLocal marks events owned by this service.
const SourceLocal = "local"

var (
	ErrTodoNotFound  = errors.New("todo not found")
	ErrEventNotFound = errors.New("event not found")
)

// Backend is implemented by Memory and Redis.
type Backend interface {
	LoadEvents(ctx context.Context, start, end time.Time) ([]model.Event, error)
	SaveEvent(ctx context.Context, ev model.Event) (model.Event, error)
	DeleteEvent(ctx context.Context, id string) error
	ConvertTodo(ctx context.Context, todoID string, start, end time.Time, allDay bool) (model.Event, error)
	Todo(ctx context.Context, id string) (model.Todo, error)
	PutTodo(ctx context.Context, t model.Todo) error
	ListTodos(ctx context.Context) ([]model.Todo, error)
	Close() error
}

// Open returns a Redis backend for redisURL, or Memory when it is empty.
func Open(ctx context.Context, redisURL string) (Backend, error) {
	if redisURL == "" {
		return NewMemory(), nil
	}
	r, err := NewRedis(ctx, redisURL)
	if err != nil {
		return nil, err
	}
	return r, nil
}

// eventFromTodo builds the event a todo converts into.
func eventFromTodo(todo model.Todo, start, end time.Time, allDay bool) (model.Event, error) {
	if !end.After(start) {
		return model.Event{}, fmt.Errorf("convert todo %s: end is not after start", todo.ID)
	}
	title := todo.Title
	if title == "" {
		title = model.DefaultEventTitle
	}
	color := todo.Color
	if color == "" {
		color = model.DefaultEventColor
	}
	return model.Event{
		ID:       uuid.NewString(),
		Title:    title,
		Start:    start,
		End:      end,
		AllDay:   allDay,
		Color:    color,
		TodoID:   todo.ID,
		SourceID: SourceLocal,
	}, nil
}

// prepare assigns an id and ownership to an event about to be stored.
func prepare(ev model.Event) (model.Event, error) {
	if !ev.Valid() || !ev.End.After(ev.Start) {
		return model.Event{}, fmt.Errorf("save event %q: invalid time range", ev.ID)
	}
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	ev.Optimistic = false
	if ev.SourceID == "" {
		ev.SourceID = SourceLocal
	}
	return ev, nil
}

func overlaps(ev model.Event, start, end time.Time) bool {
	return ev.Start.Before(end) && ev.End.After(start)
}
