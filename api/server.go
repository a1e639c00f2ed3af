// Package api exposes research runs and follow-up questions over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/hupe1980/diligence/core"
	"github.com/hupe1980/diligence/logging"
	"github.com/hupe1980/diligence/report"
)

// Service is the research surface served by the API. *diligence.Diligence
// implements it.
type Service interface {
	RunResearch(ctx context.Context, req core.ResearchRequest) (*core.Report, error)
	AskFollowup(ctx context.Context, sessionID, question string) (string, error)
	Report(sessionID string) (*core.Report, bool)
	EndSession(sessionID string) error
}

// Response is the envelope of every JSON response.
type Response struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// ResearchRequest is the body of POST /api/v1/research.
type ResearchRequest struct {
	SubjectName  string   `json:"subject_name"`
	Jurisdiction string   `json:"jurisdiction,omitempty"`
	FocusAreas   []string `json:"focus_areas,omitempty"`
	SessionID    string   `json:"session_id,omitempty"`
}

// FollowupRequest is the body of POST /api/v1/sessions/{id}/followups.
type FollowupRequest struct {
	Question string `json:"question"`
}

// Options configures a Server.
type Options struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	// MaxBodyBytes bounds JSON request bodies.
	MaxBodyBytes int64
	Logger       logging.Logger
}

// Server routes HTTP requests to a Service.
type Server struct {
	svc    Service
	router *mux.Router
	opts   Options
	logger logging.Logger
}

// NewServer creates a server and registers its routes.
func NewServer(svc Service, optFns ...func(o *Options)) *Server {
	opts := Options{
		Addr:         ":8080",
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Minute,
		MaxBodyBytes: 1 << 20,
		Logger:       logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	s := &Server{svc: svc, router: mux.NewRouter(), opts: opts, logger: logging.ForComponent(opts.Logger, "api")}
	s.routes()
	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) routes() {
	v1 := s.router.PathPrefix("/api/v1").Subrouter()
	v1.Use(s.loggingMiddleware)

	v1.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	v1.HandleFunc("/research", s.handleResearch).Methods(http.MethodPost)
	v1.HandleFunc("/sessions/{id}/report", s.handleReport).Methods(http.MethodGet)
	v1.HandleFunc("/sessions/{id}/followups", s.handleFollowup).Methods(http.MethodPost)
	v1.HandleFunc("/sessions/{id}", s.handleEndSession).Methods(http.MethodDelete)
}

// ListenAndServe serves until ctx is done, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.opts.Addr,
		Handler:      s.router,
		ReadTimeout:  s.opts.ReadTimeout,
		WriteTimeout: s.opts.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("api.server.start", "addr", s.opts.Addr)
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

	s.logger.Info("api.server.shutdown")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Info("api.request.completed", "method", r.Method, "path", r.URL.Path,
			"status", rec.status, "duration_ms", time.Since(start).Milliseconds())
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
	writeJSON(w, http.StatusOK, Response{Success: true, Data: map[string]any{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}})
}

func (s *Server) handleResearch(w http.ResponseWriter, r *http.Request) {
	var body ResearchRequest
	if status, err := s.decode(w, r, &body); err != nil {
		writeError(w, status, err.Error())
		return
	}

	req, err := core.NewResearchRequest(body.SubjectName, body.Jurisdiction, body.FocusAreas, body.SessionID)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	rep, err := s.svc.RunResearch(r.Context(), req)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, core.ErrInvalidRequest) {
			status = http.StatusBadRequest
		}
		writeError(w, status, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, Response{Success: true, Data: map[string]any{
		"session_id": req.SessionID,
		"report":     rep,
	}})
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	rep, ok := s.svc.Report(id)
	if !ok {
		writeError(w, http.StatusNotFound, core.ErrNoReport.Error())
		return
	}

	if r.URL.Query().Get("format") == "markdown" {
		w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(report.Markdown(rep)))
		return
	}
	writeJSON(w, http.StatusOK, Response{Success: true, Data: rep})
}

func (s *Server) handleFollowup(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var body FollowupRequest
	if status, err := s.decode(w, r, &body); err != nil {
		writeError(w, status, err.Error())
		return
	}
	if body.Question == "" {
		writeError(w, http.StatusBadRequest, "question is required")
		return
	}

	answer, err := s.svc.AskFollowup(r.Context(), id, body.Question)
	switch {
	case errors.Is(err, core.ErrNoReport):
		writeError(w, http.StatusNotFound, err.Error())
		return
	case err != nil:
		s.logger.Error("api.followup.failed", "session_id", id, "error", err.Error())
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, Response{Success: true, Data: map[string]any{"session_id": id, "answer": answer}})
}

func (s *Server) handleEndSession(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.EndSession(mux.Vars(r)["id"]); err != nil {
		if errors.Is(err, core.ErrSessionNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// decode reads a JSON body of at most MaxBodyBytes into v.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) (int, error) {
	if s.opts.MaxBodyBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxBodyBytes)
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return http.StatusRequestEntityTooLarge, fmt.Errorf("request body exceeds %d bytes", tooLarge.Limit)
		}
		return http.StatusBadRequest, errors.New("invalid JSON payload")
	}
	return 0, nil
}

func writeJSON(w http.ResponseWriter, status int, resp Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, Response{Success: false, Error: msg})
}
