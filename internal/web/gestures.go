package web

import (
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"chronogrid/internal/apperror"
	"chronogrid/internal/dragdrop"
	"chronogrid/internal/model"
	"chronogrid/internal/selection"
	"chronogrid/internal/store"
)

type pointerRequest struct {
	Date   model.CalendarDate `json:"date"`
	X      float64            `json:"x"`
	Y      float64            `json:"y"`
	Target string             `json:"target"`
}

func (p pointerRequest) point() selection.Point {
	return selection.Point{X: p.X, Y: p.Y}
}

func parseTarget(s string) (selection.Target, error) {
	switch strings.ToLower(s) {
	case "", "cell":
		return selection.TargetCell, nil
	case "event":
		return selection.TargetEventMarker, nil
	case "span":
		return selection.TargetSpan, nil
	default:
		return 0, apperror.NewValidation("target must be cell, event or span")
	}
}

type selectionResponse struct {
	Accepted bool            `json:"accepted"`
	Phase    string          `json:"phase"`
	State    selection.State `json:"state"`
}

func (s *Server) writeSelection(w http.ResponseWriter, accepted bool) {
	st := s.view.Selection().State()
	writeJSON(w, http.StatusOK, selectionResponse{Accepted: accepted, Phase: st.Phase.String(), State: st})
}

func (s *Server) handleSelectionDown(w http.ResponseWriter, r *http.Request) {
	var req pointerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeAppError(w, err)
		return
	}
	target, err := parseTarget(req.Target)
	if err != nil {
		writeAppError(w, err)
		return
	}
	if req.Date.IsZero() {
		writeAppError(w, apperror.NewValidation("date is required"))
		return
	}
	accepted := s.view.Selection().PointerDown(req.Date, req.point(), target)
	s.writeSelection(w, accepted)
}

func (s *Server) handleSelectionMove(w http.ResponseWriter, r *http.Request) {
	var req pointerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeAppError(w, err)
		return
	}
	s.view.Selection().PointerMove(req.Date, req.point())
	s.writeSelection(w, true)
}

func (s *Server) handleSelectionEnter(w http.ResponseWriter, r *http.Request) {
	var req pointerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeAppError(w, err)
		return
	}
	s.view.Selection().PointerEnter(req.Date)
	s.writeSelection(w, true)
}

func (s *Server) handleSelectionUp(w http.ResponseWriter, _ *http.Request) {
	s.view.Selection().PointerUp()
	st := s.view.Selection().State()
	resp := struct {
		selectionResponse
		Modal any `json:"modal,omitempty"`
	}{selectionResponse: selectionResponse{Accepted: true, Phase: st.Phase.String(), State: st}}
	if m, ok := s.view.Modal(); ok && st.Finalized {
		resp.Modal = m
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSelectionCancel(w http.ResponseWriter, _ *http.Request) {
	s.view.Selection().Cancel()
	s.writeSelection(w, true)
}

func (s *Server) handleDoubleClick(w http.ResponseWriter, r *http.Request) {
	var req pointerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeAppError(w, err)
		return
	}
	if req.Date.IsZero() {
		writeAppError(w, apperror.NewValidation("date is required"))
		return
	}
	s.view.Selection().DoubleClick(req.Date)
	m, _ := s.view.Modal()
	writeJSON(w, http.StatusOK, m)
}

func (s *Server) handleModalClose(w http.ResponseWriter, _ *http.Request) {
	s.view.CloseModal()
	s.writeSelection(w, true)
}

type dragStartRequest struct {
	EventID string      `json:"event_id"`
	Todo    *model.Todo `json:"todo"`
}

type dragDayRequest struct {
	Date model.CalendarDate `json:"date"`
	// Next is the cell entered when leaving one; zero when the grid was left.
	Next   model.CalendarDate `json:"next"`
	Active bool               `json:"active"`
}

type dropResponse struct {
	Issued  bool              `json:"issued"`
	Command *dragdrop.Command `json:"command,omitempty"`
}

func (s *Server) writeDrag(w http.ResponseWriter) {
	writeJSON(w, http.StatusOK, s.view.Scheduler().Session().Snapshot())
}

func (s *Server) handleDragStart(w http.ResponseWriter, r *http.Request) {
	var req dragStartRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeAppError(w, err)
		return
	}
	switch {
	case req.EventID != "" && req.Todo != nil:
		writeAppError(w, apperror.NewValidation("drag either an event or a todo"))
		return
	case req.EventID != "":
		if err := s.view.StartEventDrag(req.EventID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				writeAppError(w, apperror.NewNotFound("event not found").WithInternal(err))
				return
			}
			writeAppError(w, apperror.NewInternal(err))
			return
		}
	case req.Todo != nil && req.Todo.ID != "":
		if s.view.Scheduler().PendingConversion(req.Todo.ID) {
			writeAppError(w, apperror.NewConflict("todo is already being scheduled"))
			return
		}
		s.view.StartTodoDrag(*req.Todo)
	default:
		writeAppError(w, apperror.NewValidation("event_id or todo.id is required"))
		return
	}
	s.writeDrag(w)
}

func (s *Server) decodeDragDay(w http.ResponseWriter, r *http.Request) (dragDayRequest, bool) {
	var req dragDayRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeAppError(w, err)
		return req, false
	}
	return req, true
}

func (s *Server) handleDragOver(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeDragDay(w, r)
	if !ok {
		return
	}
	s.view.Scheduler().Over(req.Date)
	s.writeDrag(w)
}

func (s *Server) handleDragLeave(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeDragDay(w, r)
	if !ok {
		return
	}
	s.view.Scheduler().Leave(req.Next)
	s.writeDrag(w)
}

func (s *Server) handleDragExit(w http.ResponseWriter, _ *http.Request) {
	s.view.Scheduler().Exit()
	s.writeDrag(w)
}

func (s *Server) handleDragOverlay(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeDragDay(w, r)
	if !ok {
		return
	}
	s.view.Scheduler().SetOverlayActive(req.Active)
	s.writeDrag(w)
}

func (s *Server) handleDragDrop(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeDragDay(w, r)
	if !ok {
		return
	}
	cmd, issued := s.view.Scheduler().Drop(req.Date)
	writeDrop(w, cmd, issued)
}

func (s *Server) handleDragEnd(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeDragDay(w, r)
	if !ok {
		return
	}
	cmd, issued := s.view.Scheduler().DragEnd(req.Date)
	writeDrop(w, cmd, issued)
}

func writeDrop(w http.ResponseWriter, cmd dragdrop.Command, issued bool) {
	resp := dropResponse{Issued: issued}
	if issued {
		resp.Command = &cmd
	}
	writeJSON(w, http.StatusAccepted, resp)
}

func (s *Server) handleDragCancel(w http.ResponseWriter, _ *http.Request) {
	s.view.Scheduler().Cancel()
	s.writeDrag(w)
}

func (s *Server) handleCreateEvent(w http.ResponseWriter, r *http.Request) {
	var p model.Prefill
	if err := decodeJSON(w, r, &p); err != nil {
		writeAppError(w, err)
		return
	}
	if p.Start.IsZero() || !p.End.After(p.Start) {
		writeAppError(w, apperror.NewValidation("end must be after start"))
		return
	}
	ev, err := s.view.SubmitModal(r.Context(), p)
	if err != nil {
		writeAppError(w, apperror.NewInternal(err))
		return
	}
	writeJSON(w, http.StatusCreated, ev)
}

func (s *Server) handleListTodos(w http.ResponseWriter, r *http.Request) {
	if s.todos == nil {
		writeJSON(w, http.StatusOK, []model.Todo{})
		return
	}
	todos, err := s.todos.ListTodos(r.Context())
	if err != nil {
		writeAppError(w, apperror.NewInternal(err))
		return
	}
	if todos == nil {
		todos = []model.Todo{}
	}
	writeJSON(w, http.StatusOK, todos)
}

func (s *Server) handlePutTodo(w http.ResponseWriter, r *http.Request) {
	if s.todos == nil {
		writeAppError(w, apperror.NewNotFound("todos are not configured"))
		return
	}
	var t model.Todo
	if err := decodeJSON(w, r, &t); err != nil {
		writeAppError(w, err)
		return
	}
	if strings.TrimSpace(t.Title) == "" {
		writeAppError(w, apperror.NewValidation("title is required"))
		return
	}
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if err := s.todos.PutTodo(r.Context(), t); err != nil {
		writeAppError(w, apperror.NewInternal(err))
		return
	}
	writeJSON(w, http.StatusCreated, t)
}
