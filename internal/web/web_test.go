package web

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chronogrid/internal/config"
	"chronogrid/internal/model"
	"chronogrid/internal/monthview"
	"chronogrid/internal/persist"
	"chronogrid/internal/selection"
	"chronogrid/internal/store"
	"chronogrid/internal/virtual"
)

type stillTimer struct{}

func (stillTimer) Stop() bool { return true }

type stillClock struct{}

func (stillClock) AfterFunc(time.Duration, func()) selection.Timer { return stillTimer{} }

type harness struct {
	t       *testing.T
	srv     *Server
	handler http.Handler
	view    *monthview.View
	cfg     *config.Config
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.PreviewPath = filepath.Join(t.TempDir(), "preview.png")
	cfg.BasicAuth = &config.BasicAuthConfig{Username: "admin", Password: "secret"}

	backend := persist.NewMemory()
	st := store.New(backend, time.UTC)
	st.Merge(model.Event{
		ID:     "trip",
		Title:  "Ski trip",
		Start:  time.Date(2024, 1, 8, 0, 0, 0, 0, time.UTC),
		End:    time.Date(2024, 1, 11, 0, 0, 0, 0, time.UTC),
		AllDay: true,
		Color:  "green",
	})
	view := monthview.New(st, monthview.Options{
		Virtual: virtual.Config{
			WeekStart:          time.Sunday,
			Location:           time.UTC,
			Today:              model.NewDate(2024, 1, 10),
			InitialBufferWeeks: 10,
		},
		Clock: stillClock{},
	})
	srv := NewServer(cfg, view, backend)
	return &harness{t: t, srv: srv, handler: srv.Handler(), view: view, cfg: cfg}
}

func (h *harness) do(method, path string, body any) *httptest.ResponseRecorder {
	h.t.Helper()
	var rd *bytes.Reader
	switch b := body.(type) {
	case nil:
		rd = bytes.NewReader(nil)
	case string:
		rd = bytes.NewReader([]byte(b))
	default:
		data, err := json.Marshal(b)
		require.NoError(h.t, err)
		rd = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, rd)
	req.SetBasicAuth("admin", "secret")
	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestBasicAuth(t *testing.T) {
	h := newHarness(t)

	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())

	rec = httptest.NewRecorder()
	h.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/grid", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("WWW-Authenticate"))

	assert.Equal(t, http.StatusOK, h.do(http.MethodGet, "/api/grid", nil).Code)
}

func TestGridPage(t *testing.T) {
	h := newHarness(t)

	rec := h.do(http.MethodGet, "/grid?start=13&end=14", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `data-ready="true"`)
	assert.Contains(t, body, "January 2024")
	assert.Contains(t, body, "Ski trip")
	assert.Contains(t, body, `data-date="2024-01-10"`)
	assert.Equal(t, 1, strings.Count(body, `class="week"`))

	assert.Equal(t, http.StatusBadRequest, h.do(http.MethodGet, "/grid?start=a&end=2", nil).Code)
	assert.Equal(t, http.StatusUnprocessableEntity, h.do(http.MethodGet, "/api/grid?start=5&end=5", nil).Code)
}

func TestGridJSON(t *testing.T) {
	h := newHarness(t)

	snap := decode[map[string]any](t, h.do(http.MethodGet, "/api/grid?start=13&end=14", nil))
	assert.Equal(t, "2024-01-10", snap["today"])
	weeks := snap["weeks"].([]any)
	require.Len(t, weeks, 1)
	week := weeks[0].(map[string]any)
	assert.Equal(t, "2024-01-07", week["key"])
	assert.EqualValues(t, 1, week["lane_count"])
}

func TestGridRangeIsCapped(t *testing.T) {
	h := newHarness(t)
	h.cfg.Grid.WeeksPerView = 6
	h.cfg.Grid.RenderBufferWeeks = 2

	rec := h.do(http.MethodGet, "/api/grid?start=0&end=1000000", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	snap := decode[map[string]any](t, rec)
	assert.Len(t, snap["weeks"].([]any), 10)
}

func TestScrollAndJump(t *testing.T) {
	h := newHarness(t)

	rec := h.do(http.MethodPost, "/api/jump", map[string]float64{"viewport_height": 600, "row_height": 100})
	require.Equal(t, http.StatusOK, rec.Code)
	upd := decode[virtual.ScrollUpdate](t, rec)
	assert.Equal(t, 1050.0, upd.ScrollTop)
	assert.Empty(t, upd.Requested)

	rec = h.do(http.MethodPost, "/api/scroll", virtual.ScrollEvent{ScrollTop: 1100, ViewportHeight: 600, RowHeight: 100, UserInitiated: true})
	require.Equal(t, http.StatusOK, rec.Code)
	upd = decode[virtual.ScrollUpdate](t, rec)
	assert.NotEmpty(t, upd.Requested)
	h.view.Wait()

	assert.Equal(t, http.StatusUnprocessableEntity, h.do(http.MethodPost, "/api/scroll", virtual.ScrollEvent{ScrollTop: 10}).Code)
	assert.Equal(t, http.StatusBadRequest, h.do(http.MethodPost, "/api/scroll", "{not json").Code)
}

func TestSelectionCreatesEvent(t *testing.T) {
	h := newHarness(t)

	rec := h.do(http.MethodPost, "/api/selection/down", map[string]any{"date": "2024-01-15", "x": 10, "y": 10})
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[selectionResponse](t, rec)
	assert.True(t, resp.Accepted)
	assert.Equal(t, "pending", resp.Phase)

	h.do(http.MethodPost, "/api/selection/move", map[string]any{"date": "2024-01-17", "x": 200, "y": 10})
	rec = h.do(http.MethodPost, "/api/selection/up", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	up := decode[struct {
		Phase string                  `json:"phase"`
		Modal *monthview.ModalRequest `json:"modal"`
	}](t, rec)
	assert.Equal(t, "finalized", up.Phase)
	require.NotNil(t, up.Modal)
	assert.True(t, up.Modal.IsRange)
	assert.Equal(t, time.Date(2024, 1, 18, 0, 0, 0, 0, time.UTC), up.Modal.Prefill.End)

	prefill := up.Modal.Prefill
	prefill.Title = "Conference"
	rec = h.do(http.MethodPost, "/api/events", prefill)
	require.Equal(t, http.StatusCreated, rec.Code)
	ev := decode[model.Event](t, rec)
	assert.Equal(t, "Conference", ev.Title)
	assert.Equal(t, persist.SourceLocal, ev.SourceID)

	stored, ok := h.view.Store().Event(ev.ID)
	require.True(t, ok)
	assert.True(t, stored.AllDay)
	assert.Equal(t, selection.Idle, h.view.Selection().State().Phase)
}

func TestSelectionIgnoresSpans(t *testing.T) {
	h := newHarness(t)

	resp := decode[selectionResponse](t, h.do(http.MethodPost, "/api/selection/down", map[string]any{"date": "2024-01-09", "target": "span"}))
	assert.False(t, resp.Accepted)
	assert.Equal(t, "idle", resp.Phase)

	assert.Equal(t, http.StatusUnprocessableEntity, h.do(http.MethodPost, "/api/selection/down", map[string]any{"date": "2024-01-09", "target": "nope"}).Code)
	assert.Equal(t, http.StatusBadRequest, h.do(http.MethodPost, "/api/selection/down", map[string]any{"date": "09.01.2024"}).Code)
}

func TestDoubleClick(t *testing.T) {
	h := newHarness(t)

	rec := h.do(http.MethodPost, "/api/cell/dblclick", map[string]any{"date": "2024-01-12"})
	require.Equal(t, http.StatusOK, rec.Code)
	m := decode[monthview.ModalRequest](t, rec)
	assert.False(t, m.IsRange)
	assert.Equal(t, "blue", m.Prefill.Color)

	h.do(http.MethodPost, "/api/modal/close", nil)
	_, ok := h.view.Modal()
	assert.False(t, ok)
}

func TestTodoDragConvertsOnce(t *testing.T) {
	h := newHarness(t)

	rec := h.do(http.MethodPost, "/api/todos", map[string]string{"title": "Write report", "color": "red"})
	require.Equal(t, http.StatusCreated, rec.Code)
	todo := decode[model.Todo](t, rec)
	require.NotEmpty(t, todo.ID)

	todos := decode[[]model.Todo](t, h.do(http.MethodGet, "/api/todos", nil))
	assert.Len(t, todos, 1)

	require.Equal(t, http.StatusOK, h.do(http.MethodPost, "/api/drag/start", map[string]any{"todo": todo}).Code)
	h.do(http.MethodPost, "/api/drag/over", map[string]string{"date": "2024-01-12"})

	page := h.do(http.MethodGet, "/grid?start=13&end=14", nil).Body.String()
	assert.Contains(t, page, `data-preview="true"`)

	rec = h.do(http.MethodPost, "/api/drag/drop", map[string]string{"date": "2024-01-12"})
	require.Equal(t, http.StatusAccepted, rec.Code)
	drop := decode[dropResponse](t, rec)
	require.True(t, drop.Issued)
	assert.Equal(t, todo.ID, drop.Command.TodoID)

	again := decode[dropResponse](t, h.do(http.MethodPost, "/api/drag/end", map[string]string{"date": "2024-01-12"}))
	assert.False(t, again.Issued)
	h.view.Wait()

	var converted int
	for _, ev := range h.view.Store().EventsForDate(model.NewDate(2024, 1, 12)) {
		if ev.TodoID == todo.ID {
			converted++
			assert.Equal(t, "Write report", ev.Title)
		}
	}
	assert.Equal(t, 1, converted)
}

func TestEventDrag(t *testing.T) {
	h := newHarness(t)

	assert.Equal(t, http.StatusNotFound, h.do(http.MethodPost, "/api/drag/start", map[string]string{"event_id": "nope"}).Code)
	assert.Equal(t, http.StatusUnprocessableEntity, h.do(http.MethodPost, "/api/drag/start", map[string]string{}).Code)

	require.Equal(t, http.StatusOK, h.do(http.MethodPost, "/api/drag/start", map[string]string{"event_id": "trip"}).Code)
	h.do(http.MethodPost, "/api/drag/over", map[string]string{"date": "2024-01-15"})
	drop := decode[dropResponse](t, h.do(http.MethodPost, "/api/drag/drop", map[string]string{"date": "2024-01-15"}))
	require.True(t, drop.Issued)
	h.view.Wait()

	ev, ok := h.view.Store().Event("trip")
	require.True(t, ok)
	assert.Equal(t, time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC), ev.Start)
	assert.Equal(t, time.Date(2024, 1, 18, 0, 0, 0, 0, time.UTC), ev.End)
}

func TestDragCancelClearsHover(t *testing.T) {
	h := newHarness(t)

	h.do(http.MethodPost, "/api/drag/start", map[string]any{"todo": model.Todo{ID: "t9", Title: "x"}})
	h.do(http.MethodPost, "/api/drag/over", map[string]string{"date": "2024-01-12"})
	h.do(http.MethodPost, "/api/drag/overlay", map[string]bool{"active": true})
	assert.True(t, h.view.Scheduler().Session().Snapshot().PreviewDate.IsZero())

	h.do(http.MethodPost, "/api/drag/cancel", nil)
	snap := h.view.Scheduler().Session().Snapshot()
	assert.False(t, snap.Active)
	assert.Empty(t, snap.HoveredCellKey)
}

func TestPreviewPNG(t *testing.T) {
	h := newHarness(t)

	assert.Equal(t, http.StatusNotFound, h.do(http.MethodGet, "/preview.png", nil).Code)

	require.NoError(t, os.WriteFile(h.cfg.PreviewPath, []byte("\x89PNG"), 0o644))
	rec := h.do(http.MethodGet, "/preview.png", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
}

func TestCreateEventValidation(t *testing.T) {
	h := newHarness(t)

	start := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)
	rec := h.do(http.MethodPost, "/api/events", model.Prefill{Start: start, End: start})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "validation_error", decode[errResp](t, rec).Type)
}
