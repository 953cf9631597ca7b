package persist

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"chronogrid/internal/model"
)

// Memory keeps everything in process. It is used when no Redis URL is
// configured.
type Memory struct {
	mu     sync.RWMutex
	events map[string]model.Event
	todos  map[string]model.Todo
}

func NewMemory() *Memory {
	return &Memory{
		events: make(map[string]model.Event),
		todos:  make(map[string]model.Todo),
	}
}

func (m *Memory) LoadEvents(_ context.Context, start, end time.Time) ([]model.Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []model.Event
	for _, ev := range m.events {
		if overlaps(ev, start, end) {
			out = append(out, ev)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) SaveEvent(_ context.Context, ev model.Event) (model.Event, error) {
	ev, err := prepare(ev)
	if err != nil {
		return model.Event{}, err
	}
	m.mu.Lock()
	m.events[ev.ID] = ev
	m.mu.Unlock()
	return ev, nil
}

func (m *Memory) DeleteEvent(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.events[id]; !ok {
		return fmt.Errorf("delete %s: %w", id, ErrEventNotFound)
	}
	delete(m.events, id)
	return nil
}

func (m *Memory) ConvertTodo(ctx context.Context, todoID string, start, end time.Time, allDay bool) (model.Event, error) {
	todo, err := m.Todo(ctx, todoID)
	if err != nil {
		return model.Event{}, err
	}
	ev, err := eventFromTodo(todo, start, end, allDay)
	if err != nil {
		return model.Event{}, err
	}
	return m.SaveEvent(ctx, ev)
}

func (m *Memory) Todo(_ context.Context, id string) (model.Todo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.todos[id]
	if !ok {
		return model.Todo{}, fmt.Errorf("todo %s: %w", id, ErrTodoNotFound)
	}
	return t, nil
}

func (m *Memory) PutTodo(_ context.Context, t model.Todo) error {
	if t.ID == "" {
		return fmt.Errorf("put todo: empty id")
	}
	m.mu.Lock()
	m.todos[t.ID] = t
	m.mu.Unlock()
	return nil
}

func (m *Memory) ListTodos(_ context.Context) ([]model.Todo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]model.Todo, 0, len(m.todos))
	for _, t := range m.todos {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) Close() error { return nil }
