package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"evcal/internal/auth"
	"evcal/internal/calendar"
	appLog "evcal/internal/log"
	"evcal/internal/metrics"
	"evcal/internal/store"
)

// Options wires the server to the rest of the process. Engine and Store
// are required.
type Options struct {
	Engine   *calendar.Engine
	Store    *store.Store
	Location *time.Location
	Metrics  *metrics.Metrics
	Auth     auth.BasicAuth

	// PreviewPath is the PNG written by the capture job.
	PreviewPath string

	// Refresh, when set, is exposed as POST /api/refresh.
	Refresh func(ctx context.Context) error
}

// Server provides the calendar HTTP API, the month page and the ICS export.
type Server struct {
	engine  *calendar.Engine
	store   *store.Store
	loc     *time.Location
	metrics *metrics.Metrics
	auth    auth.BasicAuth
	preview string
	refresh func(ctx context.Context) error

	mux *http.ServeMux
}

func NewServer(opts Options) *Server {
	loc := opts.Location
	if loc == nil {
		loc = time.Local
	}
	s := &Server{
		engine:  opts.Engine,
		store:   opts.Store,
		loc:     loc,
		metrics: opts.Metrics,
		auth:    opts.Auth,
		preview: opts.PreviewPath,
		refresh: opts.Refresh,
		mux:     http.NewServeMux(),
	}
	s.registerRoutes()
	return s
}

// Handler returns the root handler. Everything except /health and
// /metrics sits behind basic auth when it is configured.
func (s *Server) Handler() http.Handler {
	if !s.auth.Enabled() {
		return s.mux
	}
	guarded := s.auth.Wrap(s.mux)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" || r.URL.Path == "/metrics" {
			s.mux.ServeHTTP(w, r)
			return
		}
		guarded.ServeHTTP(w, r)
	})
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+addr, "basic_auth", s.auth.Enabled())
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	appLog.Info("HTTP server stopped")
	return nil
}

func (s *Server) registerRoutes() {
	s.handle("GET /health", s.handleHealth)
	s.mux.Handle("GET /metrics", s.metrics.Handler())

	s.handle("GET /api/calendar", s.handleCalendar)
	s.handle("POST /api/calendar/view", s.handleCalendarView)
	s.handle("GET /api/days/{date}", s.handleDay)
	s.handle("GET /api/events", s.handleListEvents)
	s.handle("POST /api/events", s.handleCreateEvent)
	s.handle("GET /api/events/{id}", s.handleGetEvent)
	s.handle("PUT /api/events/{id}", s.handleUpdateEvent)
	s.handle("DELETE /api/events/{id}", s.handleDeleteEvent)
	if s.refresh != nil {
		s.handle("POST /api/refresh", s.handleRefresh)
	}

	s.handle("GET /calendar", s.handleCalendarPage)
	s.handle("GET /calendar.ics", s.handleICS)
	s.handle("GET /preview.png", s.handlePreview)
}

// handle registers h and counts its responses under the route pattern.
func (s *Server) handle(pattern string, h http.HandlerFunc) {
	s.mux.HandleFunc(pattern, func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		h(rec, r)
		s.metrics.HTTPRequest(pattern, rec.status)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// handlePreview serves the last captured PNG from disk.
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	if s.preview == "" {
		writeError(w, http.StatusNotFound, "preview capture is not configured")
		return
	}
	http.ServeFile(w, r, s.preview)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if err := s.refresh(r.Context()); err != nil {
		appLog.Error("api refresh finished with errors", err)
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}
