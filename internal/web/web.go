package web

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"chronogrid/internal/apperror"
	"chronogrid/internal/config"
	appLog "chronogrid/internal/log"
	"chronogrid/internal/model"
	"chronogrid/internal/monthview"
)

// TodoStore lists and adds the todos that can be dragged onto the grid.
type TodoStore interface {
	ListTodos(ctx context.Context) ([]model.Todo, error)
	PutTodo(ctx context.Context, t model.Todo) error
}

// Server exposes one calendar grid over HTTP: a server-rendered page, the
// JSON snapshot and the gesture telemetry endpoints that drive it.
type Server struct {
	cfg   *config.Config
	view  *monthview.View
	todos TodoStore
	mux   *http.ServeMux
}

// NewServer constructs a new Server. todos may be nil.
func NewServer(cfg *config.Config, view *monthview.View, todos TodoStore) *Server {
	s := &Server{
		cfg:   cfg,
		view:  view,
		todos: todos,
		mux:   http.NewServeMux(),
	}
	s.registerRoutes()
	return s
}

// Handler returns the underlying http.Handler for this server.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.mux)
	if s.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled", "listen", "http://"+s.cfg.Listen)
		return s.basicAuthMiddleware(h)
	}
	return h
}

// basicAuthEnabled reports whether HTTP Basic Auth is configured.
func (s *Server) basicAuthEnabled() bool {
	if s.cfg == nil || s.cfg.BasicAuth == nil {
		return false
	}
	// An empty username or password disables auth.
	if s.cfg.BasicAuth.Username == "" || s.cfg.BasicAuth.Password == "" {
		return false
	}
	return true
}

// basicAuthMiddleware wraps all handlers except /health with HTTP Basic Auth.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.cfg.BasicAuth.Username
	password := s.cfg.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="chronogrid", charset="UTF-8"`)
			writeAppError(w, apperror.NewUnauthorized("authentication required"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// secureCompare compares two strings in constant time.
func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// Serve listens on cfg.Listen until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) Serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+s.cfg.Listen)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	appLog.Info("HTTP server stopped")
	return nil
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /grid", s.handleGridPage)
	s.mux.HandleFunc("GET /preview.png", s.handlePreview)

	s.mux.HandleFunc("GET /api/grid", s.handleGrid)
	s.mux.HandleFunc("POST /api/scroll", s.handleScroll)
	s.mux.HandleFunc("POST /api/jump", s.handleJump)

	s.mux.HandleFunc("POST /api/selection/down", s.handleSelectionDown)
	s.mux.HandleFunc("POST /api/selection/move", s.handleSelectionMove)
	s.mux.HandleFunc("POST /api/selection/enter", s.handleSelectionEnter)
	s.mux.HandleFunc("POST /api/selection/up", s.handleSelectionUp)
	s.mux.HandleFunc("POST /api/selection/cancel", s.handleSelectionCancel)
	s.mux.HandleFunc("POST /api/cell/dblclick", s.handleDoubleClick)

	s.mux.HandleFunc("POST /api/drag/start", s.handleDragStart)
	s.mux.HandleFunc("POST /api/drag/over", s.handleDragOver)
	s.mux.HandleFunc("POST /api/drag/leave", s.handleDragLeave)
	s.mux.HandleFunc("POST /api/drag/exit", s.handleDragExit)
	s.mux.HandleFunc("POST /api/drag/overlay", s.handleDragOverlay)
	s.mux.HandleFunc("POST /api/drag/drop", s.handleDragDrop)
	s.mux.HandleFunc("POST /api/drag/end", s.handleDragEnd)
	s.mux.HandleFunc("POST /api/drag/cancel", s.handleDragCancel)

	s.mux.HandleFunc("POST /api/events", s.handleCreateEvent)
	s.mux.HandleFunc("POST /api/modal/close", s.handleModalClose)
	s.mux.HandleFunc("GET /api/todos", s.handleListTodos)
	s.mux.HandleFunc("POST /api/todos", s.handlePutTodo)

	s.mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/grid", http.StatusFound)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// handlePreview serves the last captured PNG of the grid from disk.
// http.ServeFile answers 404 when no snapshot has been taken yet.
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	http.ServeFile(w, r, s.cfg.PreviewPath)
}

const maxBodyBytes = 1 << 20

// decodeJSON reads a JSON request body into v. An empty body leaves v
// untouched.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	err := json.NewDecoder(r.Body).Decode(v)
	if err == nil || errors.Is(err, io.EOF) {
		return nil
	}
	return apperror.NewBadRequest("invalid JSON body").WithInternal(err)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

type errResp struct {
	Error string `json:"error"`
	Type  string `json:"type"`
}

// writeAppError renders err with its safe message. Unclassified errors are
// logged and hidden behind a 500.
func writeAppError(w http.ResponseWriter, err error) {
	code := apperror.SafeCode(err)
	if code >= http.StatusInternalServerError {
		appLog.Error("request failed", err)
	} else {
		appLog.Debug("request rejected", "err", err)
	}
	writeJSON(w, code, errResp{Error: apperror.SafeMessage(err), Type: apperror.SafeType(err)})
}
