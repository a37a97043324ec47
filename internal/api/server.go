package api

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/JakeFAU/stringfinder/internal/config"
	"github.com/JakeFAU/stringfinder/internal/metrics"
	"github.com/JakeFAU/stringfinder/internal/scan"
)

const maxUploadBytes = 32 << 20

// JobService is the subset of scan.Engine the handlers call.
type JobService interface {
	CreateJob(ctx context.Context, req scan.CreateJobRequest) (scan.Job, error)
	GetJob(ctx context.Context, jobID string) (scan.Job, error)
	Advance(ctx context.Context, jobID string, batchSize int) (scan.AdvanceResponse, error)
	Stop(ctx context.Context, jobID string) (scan.Job, error)
}

// ReadinessFunc reports whether downstream dependencies are usable.
type ReadinessFunc func(ctx context.Context) error

// Option customizes a Server.
type Option func(*Server)

// WithFiles mounts a handler for stored result files under /files/.
func WithFiles(h http.Handler) Option {
	return func(s *Server) { s.files = h }
}

// WithReadiness installs a readiness probe used by /readyz.
func WithReadiness(fn ReadinessFunc) Option {
	return func(s *Server) { s.ready = fn }
}

// Server wires HTTP handlers to the scan engine.
type Server struct {
	router chi.Router
	jobs   JobService
	files  http.Handler
	ready  ReadinessFunc
	cfg    config.Config
	logger *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(jobs JobService, cfg config.Config, logger *zap.Logger, opts ...Option) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		jobs:   jobs,
		cfg:    cfg,
		logger: logger,
	}
	for _, opt := range opts {
		opt(s)
	}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(logger))
	r.Use(recoverMiddleware(logger))
	r.Use(metrics.Middleware)
	// Advance blocks for a whole batch including its retry round.
	r.Use(timeoutMiddleware(cfg.RequestTimeout()))

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Group(func(r chi.Router) {
		if cfg.Auth.Enabled {
			r.Use(apiKeyMiddleware(cfg.Auth.APIKey))
		}
		r.Route("/v1/jobs", func(r chi.Router) {
			r.Post("/", s.createJob)
			r.Route("/{job_id}", func(r chi.Router) {
				r.Get("/", s.getJob)
				r.Post("/advance", s.advanceJob)
				r.Post("/stop", s.stopJob)
			})
		})
		if s.files != nil {
			r.Handle("/files/*", http.StripPrefix("/files/", s.files))
		}
	})

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, r *http.Request) {
	if s.ready != nil {
		if err := s.ready(r.Context()); err != nil {
			s.logger.Warn("readiness check failed", zap.Error(err))
			writeError(w, http.StatusServiceUnavailable, "not ready")
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) createJob(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "expected multipart form upload")
		return
	}
	target := strings.TrimSpace(r.FormValue("target"))
	if target == "" {
		writeError(w, http.StatusBadRequest, scan.ErrMissingTarget.Error())
		return
	}
	file, _, err := r.FormFile("csv")
	if err != nil {
		writeError(w, http.StatusBadRequest, "csv file is required")
		return
	}
	defer file.Close()

	urls, err := scan.ParseURLList(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	job, err := s.jobs.CreateJob(r.Context(), scan.CreateJobRequest{
		Target:          target,
		URLs:            urls,
		ShowMatchedOnly: formBool(r.FormValue("show_matched")),
	})
	if err != nil {
		s.writeJobError(w, r, "", err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"job_id": job.ID, "total": job.Total})
}

func (s *Server) getJob(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "job_id")
	job, err := s.jobs.GetJob(r.Context(), jobID)
	if err != nil {
		s.writeJobError(w, r, jobID, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"job": job.Summary()})
}

func (s *Server) advanceJob(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "job_id")
	batchSize, err := parseBatchSize(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	resp, err := s.jobs.Advance(r.Context(), jobID, batchSize)
	if err != nil {
		s.writeJobError(w, r, jobID, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) stopJob(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "job_id")
	job, err := s.jobs.Stop(r.Context(), jobID)
	if err != nil {
		s.writeJobError(w, r, jobID, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"job_id":   job.ID,
		"stopped":  true,
		"position": job.Position,
		"total":    job.Total,
	})
}

func (s *Server) writeJobError(w http.ResponseWriter, r *http.Request, jobID string, err error) {
	switch {
	case errors.Is(err, scan.ErrJobNotFound):
		writeError(w, http.StatusNotFound, "job not found")
	case errors.Is(err, scan.ErrMissingTarget), errors.Is(err, scan.ErrNoValidURLs):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusServiceUnavailable, "request canceled before the batch completed")
	default:
		s.logger.Error("job request failed",
			zap.String("request_id", requestIDFrom(r.Context())),
			zap.String("job_id", jobID),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

type advanceRequest struct {
	BatchSize *int `json:"batch_size"`
}

// parseBatchSize accepts batch_size from a JSON body, a form field or the
// query string. Zero means the engine default.
func parseBatchSize(r *http.Request) (int, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/json" {
		var req advanceRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return 0, errors.New("invalid JSON")
		}
		if req.BatchSize == nil {
			return 0, nil
		}
		if *req.BatchSize < 0 {
			return 0, errors.New("batch_size must be >= 0")
		}
		return *req.BatchSize, nil
	}
	raw := strings.TrimSpace(r.FormValue("batch_size"))
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid batch_size %q", raw)
	}
	return n, nil
}

func formBool(raw string) bool {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "true", "on", "yes":
		return true
	default:
		return false
	}
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get("X-Request-ID")
		if reqID == "" {
			reqID = uuid.NewString()
		}
		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func requestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

func loggingMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(ww, r)
			logger.Info("request completed",
				zap.String("request_id", requestIDFrom(r.Context())),
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.status),
				zap.Duration("duration", time.Since(start)),
			)
		})
	}
}

func recoverMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					logger.Error("panic recovered",
						zap.String("request_id", requestIDFrom(r.Context())),
						zap.Any("error", rec),
					)
					writeError(w, http.StatusInternalServerError, "internal server error")
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
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

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	if err != nil {
		return n, fmt.Errorf("write response: %w", err)
	}
	return n, nil
}

func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if h, ok := rw.ResponseWriter.(http.Hijacker); ok {
		conn, buf, err := h.Hijack()
		if err != nil {
			return nil, nil, fmt.Errorf("hijack connection: %w", err)
		}
		return conn, buf, nil
	}
	return nil, nil, errors.New("hijacker not supported")
}

type requestIDKey struct{}

func apiKeyMiddleware(expected string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get("X-API-Key")
			if key == "" {
				key = r.URL.Query().Get("api_key")
			}
			if key != expected {
				writeError(w, http.StatusForbidden, "unauthorized")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload) // client went away; nothing left to report
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
