package web

import (
	"bytes"
	"embed"
	"html/template"
	"net/http"
	"strconv"
	"time"

	"chronogrid/internal/apperror"
	"chronogrid/internal/layout"
	appLog "chronogrid/internal/log"
	"chronogrid/internal/model"
	"chronogrid/internal/virtual"
)

//go:embed templates/grid.html
var templateFS embed.FS

var gridTemplate = template.Must(template.New("grid.html").Funcs(template.FuncMap{
	"monthTitle": func(d model.CalendarDate) string {
		return d.In(time.UTC).Format("January 2006")
	},
	"weekdays": func(start time.Weekday) []string {
		out := make([]string, 7)
		for i := range out {
			out[i] = time.Weekday((int(start) + i) % 7).String()[:3]
		}
		return out
	},
	"pct": func(n int) float64 {
		return float64(n) * 100 / 7
	},
	"laneTop": func(lane int) int {
		return layout.TopOffset + lane*layout.LaneHeight
	},
}).ParseFS(templateFS, "templates/grid.html"))

// indexRange reads ?start=&end= week indexes. Missing values mean the
// virtualizer's rendered range. A range is cut to one view plus its render
// buffer on both sides.
func (s *Server) indexRange(r *http.Request) (virtual.IndexRange, error) {
	q := r.URL.Query()
	if q.Get("start") == "" && q.Get("end") == "" {
		return virtual.IndexRange{}, nil
	}
	start, err := strconv.Atoi(q.Get("start"))
	if err != nil {
		return virtual.IndexRange{}, apperror.NewBadRequest("start must be a week index")
	}
	end, err := strconv.Atoi(q.Get("end"))
	if err != nil {
		return virtual.IndexRange{}, apperror.NewBadRequest("end must be a week index")
	}
	if end <= start {
		return virtual.IndexRange{}, apperror.NewValidation("end must be after start")
	}
	if limit := s.cfg.Grid.WeeksPerView + 2*s.cfg.Grid.RenderBufferWeeks; limit > 0 && end-start > limit {
		end = start + limit
	}
	return virtual.IndexRange{Start: start, End: end}, nil
}

func (s *Server) handleGridPage(w http.ResponseWriter, r *http.Request) {
	rng, err := s.indexRange(r)
	if err != nil {
		writeAppError(w, err)
		return
	}
	snap := s.view.Snapshot(rng)

	var buf bytes.Buffer
	if err := gridTemplate.Execute(&buf, snap); err != nil {
		writeAppError(w, apperror.NewInternal(err))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = buf.WriteTo(w)
}

func (s *Server) handleGrid(w http.ResponseWriter, r *http.Request) {
	rng, err := s.indexRange(r)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.view.Snapshot(rng))
}

func (s *Server) handleScroll(w http.ResponseWriter, r *http.Request) {
	var ev virtual.ScrollEvent
	if err := decodeJSON(w, r, &ev); err != nil {
		writeAppError(w, err)
		return
	}
	if ev.RowHeight <= 0 || ev.ViewportHeight < 0 {
		writeAppError(w, apperror.NewValidation("row_height must be positive"))
		return
	}
	upd := s.view.Virtualizer().OnScroll(ev)
	if upd.GrewBackward || upd.GrewForward || len(upd.Requested) > 0 {
		appLog.Debug("scroll", "top", upd.ScrollTop, "rendered", upd.Rendered, "requested", len(upd.Requested))
	}
	writeJSON(w, http.StatusOK, upd)
}

type jumpRequest struct {
	ViewportHeight float64 `json:"viewport_height"`
	RowHeight      float64 `json:"row_height"`
}

func (s *Server) handleJump(w http.ResponseWriter, r *http.Request) {
	var req jumpRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeAppError(w, err)
		return
	}
	if req.RowHeight <= 0 {
		writeAppError(w, apperror.NewValidation("row_height must be positive"))
		return
	}
	writeJSON(w, http.StatusOK, s.view.Virtualizer().JumpToToday(req.ViewportHeight, req.RowHeight))
}
