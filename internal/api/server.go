// Package api exposes the HTTP control plane for the sync service.
// Triggers are fire-and-forget: the response reports only whether a run
// started; outcomes are read back through the run-log endpoints.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/palbase/palbase-sync/internal/ingest"
	"github.com/palbase/palbase-sync/internal/metrics"
	"github.com/palbase/palbase-sync/internal/store"
)

// Server wires HTTP handlers to the coordinator and repository.
type Server struct {
	router chi.Router
	coord  *ingest.Coordinator
	repo   store.Repository
	logger *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(coord *ingest.Coordinator, repo store.Repository, logger *zap.Logger) *Server {
	s := &Server{coord: coord, repo: repo, logger: logger}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoverMiddleware)
	r.Use(corsMiddleware)
	r.Use(metrics.Middleware)
	r.Use(timeoutMiddleware(60 * time.Second))

	r.Get("/health", s.health)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Post("/sync", s.triggerAll)
		r.Get("/sync/status", s.syncStatus)
		r.Route("/scrape", func(r chi.Router) {
			r.Post("/all", s.triggerAll)
			r.Post("/{source}", s.triggerSource)
		})
		r.Get("/runs/latest", s.latestRun)
	})

	s.router = r
	return s
}

// Handler returns the router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) triggerAll(w http.ResponseWriter, _ *http.Request) {
	err := s.coord.TriggerAllAsync(ingest.TriggerManual)
	switch {
	case errors.Is(err, ingest.ErrRunInProgress):
		writeError(w, http.StatusConflict, "sync already in progress")
	case err != nil:
		writeError(w, http.StatusInternalServerError, err.Error())
	default:
		writeJSON(w, http.StatusAccepted, map[string]any{
			"status":  "started",
			"sources": s.coord.Sources(),
		})
	}
}

func (s *Server) triggerSource(w http.ResponseWriter, r *http.Request) {
	source := chi.URLParam(r, "source")
	err := s.coord.TriggerAsync(r.Context(), source, ingest.TriggerManual)
	switch {
	case errors.Is(err, ingest.ErrUnknownSource):
		writeError(w, http.StatusNotFound, "unknown source: "+source)
	case errors.Is(err, ingest.ErrRunInProgress):
		writeError(w, http.StatusConflict, "a run for "+source+" is already in progress")
	case err != nil:
		writeError(w, http.StatusInternalServerError, err.Error())
	default:
		writeJSON(w, http.StatusAccepted, map[string]string{
			"status": "started",
			"source": source,
		})
	}
}

func (s *Server) syncStatus(w http.ResponseWriter, _ *http.Request) {
	running := s.coord.Running()
	writeJSON(w, http.StatusOK, map[string]any{
		"syncing": len(running) > 0,
		"running": running,
		"sources": s.coord.Sources(),
	})
}

func (s *Server) latestRun(w http.ResponseWriter, r *http.Request) {
	source := r.URL.Query().Get("source")
	if source == "" {
		writeError(w, http.StatusBadRequest, "source query parameter is required")
		return
	}
	run, err := s.repo.GetLatestRunLog(r.Context(), source)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "no runs recorded for "+source)
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := uuid.NewString()
		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(ww, r)
		s.logger.Info("request completed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.status),
			zap.Int64("duration_ms", time.Since(start).Milliseconds()))
	})
}

func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("panic recovered", zap.Any("error", rec))
				writeError(w, http.StatusInternalServerError, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func timeoutMiddleware(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, d, "request timed out")
	}
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

type requestIDKey struct{}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
