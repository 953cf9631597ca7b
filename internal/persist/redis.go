package persist

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"chronogrid/internal/model"
)

const (
	keyPrefix     = "chronogrid:"
	eventKeyFmt   = keyPrefix + "event:%s"
	todoKeyFmt    = keyPrefix + "todo:%s"
	eventsByStart = keyPrefix + "events:by_start"
	eventsByEnd   = keyPrefix + "events:by_end"
	todoIDs       = keyPrefix + "todos"
)

// Redis stores events and todos as JSON strings. Events are also indexed in
// two sorted sets, scored by start and by end, so range loads read only
// events starting before the range ends and ending after it starts.
type Redis struct {
	client *redis.Client
}

// NewRedis connects to url and verifies the connection.
func NewRedis(ctx context.Context, url string) (*Redis, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parsing redis URL: %w", err)
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("pinging redis: %w", err)
	}
	return NewRedisWithClient(client), nil
}

// NewRedisWithClient wraps an existing client.
func NewRedisWithClient(client *redis.Client) *Redis {
	return &Redis{client: client}
}

func (r *Redis) Close() error {
	return r.client.Close()
}

func (r *Redis) LoadEvents(ctx context.Context, start, end time.Time) ([]model.Event, error) {
	var byStart, byEnd *redis.StringSliceCmd
	_, err := r.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		byStart = pipe.ZRangeByScore(ctx, eventsByStart, &redis.ZRangeBy{
			Min: "-inf",
			Max: "(" + strconv.FormatInt(end.Unix(), 10),
		})
		byEnd = pipe.ZRangeByScore(ctx, eventsByEnd, &redis.ZRangeBy{
			Min: "(" + strconv.FormatInt(start.Unix(), 10),
			Max: "+inf",
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("load events: %w", err)
	}
	endsAfter := make(map[string]struct{}, len(byEnd.Val()))
	for _, id := range byEnd.Val() {
		endsAfter[id] = struct{}{}
	}
	var ids []string
	for _, id := range byStart.Val() {
		if _, ok := endsAfter[id]; ok {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return nil, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = fmt.Sprintf(eventKeyFmt, id)
	}
	vals, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("load events: %w", err)
	}

	var out []model.Event
	for i, v := range vals {
		s, ok := v.(string)
		if !ok {
			continue
		}
		var ev model.Event
		if err := json.Unmarshal([]byte(s), &ev); err != nil {
			return nil, fmt.Errorf("decode event %s: %w", ids[i], err)
		}
		if overlaps(ev, start, end) {
			out = append(out, ev)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *Redis) SaveEvent(ctx context.Context, ev model.Event) (model.Event, error) {
	ev, err := prepare(ev)
	if err != nil {
		return model.Event{}, err
	}
	body, err := json.Marshal(ev)
	if err != nil {
		return model.Event{}, fmt.Errorf("encode event %s: %w", ev.ID, err)
	}
	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, fmt.Sprintf(eventKeyFmt, ev.ID), body, 0)
		pipe.ZAdd(ctx, eventsByStart, redis.Z{Score: float64(ev.Start.Unix()), Member: ev.ID})
		pipe.ZAdd(ctx, eventsByEnd, redis.Z{Score: float64(ev.End.Unix()), Member: ev.ID})
		return nil
	})
	if err != nil {
		return model.Event{}, fmt.Errorf("save event %s: %w", ev.ID, err)
	}
	return ev, nil
}

func (r *Redis) DeleteEvent(ctx context.Context, id string) error {
	var del *redis.IntCmd
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		del = pipe.Del(ctx, fmt.Sprintf(eventKeyFmt, id))
		pipe.ZRem(ctx, eventsByStart, id)
		pipe.ZRem(ctx, eventsByEnd, id)
		return nil
	})
	if err != nil {
		return fmt.Errorf("delete event %s: %w", id, err)
	}
	if del.Val() == 0 {
		return fmt.Errorf("delete %s: %w", id, ErrEventNotFound)
	}
	return nil
}

func (r *Redis) ConvertTodo(ctx context.Context, todoID string, start, end time.Time, allDay bool) (model.Event, error) {
	todo, err := r.Todo(ctx, todoID)
	if err != nil {
		return model.Event{}, err
	}
	ev, err := eventFromTodo(todo, start, end, allDay)
	if err != nil {
		return model.Event{}, err
	}
	return r.SaveEvent(ctx, ev)
}

func (r *Redis) Todo(ctx context.Context, id string) (model.Todo, error) {
	s, err := r.client.Get(ctx, fmt.Sprintf(todoKeyFmt, id)).Result()
	if errors.Is(err, redis.Nil) {
		return model.Todo{}, fmt.Errorf("todo %s: %w", id, ErrTodoNotFound)
	}
	if err != nil {
		return model.Todo{}, fmt.Errorf("get todo %s: %w", id, err)
	}
	var t model.Todo
	if err := json.Unmarshal([]byte(s), &t); err != nil {
		return model.Todo{}, fmt.Errorf("decode todo %s: %w", id, err)
	}
	return t, nil
}

func (r *Redis) PutTodo(ctx context.Context, t model.Todo) error {
	if t.ID == "" {
		return fmt.Errorf("put todo: empty id")
	}
	body, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("encode todo %s: %w", t.ID, err)
	}
	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, fmt.Sprintf(todoKeyFmt, t.ID), body, 0)
		pipe.SAdd(ctx, todoIDs, t.ID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("put todo %s: %w", t.ID, err)
	}
	return nil
}

func (r *Redis) ListTodos(ctx context.Context) ([]model.Todo, error) {
	ids, err := r.client.SMembers(ctx, todoIDs).Result()
	if err != nil {
		return nil, fmt.Errorf("list todos: %w", err)
	}
	sort.Strings(ids)
	out := make([]model.Todo, 0, len(ids))
	for _, id := range ids {
		t, err := r.Todo(ctx, id)
		if errors.Is(err, ErrTodoNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}
