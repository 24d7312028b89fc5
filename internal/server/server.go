// Package server is the thin inbound acceptance layer. It validates and
// authenticates a task request, acknowledges the caller immediately, and hands
// the task to the pipeline in a detached goroutine. The pipeline's outcome is
// never returned to the caller.
package server

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"quizrunner/internal/config"
	"quizrunner/internal/task"
)

// Processor runs one task to completion. Implemented by the pipeline
// orchestrator.
type Processor interface {
	Process(ctx context.Context, req task.Request)
}

// Server accepts task submissions over HTTP.
type Server struct {
	cfg       config.ServerConfig
	processor Processor
	logger    *zap.Logger
	router    chi.Router
}

// New builds the acceptance server.
func New(cfg config.ServerConfig, processor Processor, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{cfg: cfg, processor: processor, logger: logger}

	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Get("/healthz", s.handleHealth)
	r.Post("/tasks", s.handleTask)
	s.router = r
	return s
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves until the context is cancelled, then drains with a short
// shutdown grace period.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.logger.Info("acceptance server listening", zap.String("addr", s.cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

type taskBody struct {
	Email  string `json:"email"`
	Secret string `json:"secret"`
	URL    string `json:"url"`
}

// handleTask validates, authenticates, acknowledges, and detaches. The 202 is
// sent before any pipeline work happens and regardless of how the pipeline
// eventually ends.
func (s *Server) handleTask(w http.ResponseWriter, r *http.Request) {
	var body taskBody
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
		return
	}
	if body.Email == "" || body.Secret == "" || body.URL == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "email, secret and url are required"})
		return
	}
	if subtle.ConstantTimeCompare([]byte(body.Secret), []byte(s.cfg.Secret)) != 1 {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid secret"})
		return
	}

	req := task.NewRequest(body.Email, body.Secret, body.URL)
	s.logger.Info("task accepted",
		zap.String("task_id", req.ID.String()),
		zap.String("url", req.URL))

	// Detached from the request context on purpose: the pipeline outlives
	// this HTTP exchange and owns its own budget.
	go s.processor.Process(context.Background(), req)

	writeJSON(w, http.StatusAccepted, map[string]string{
		"status":  "accepted",
		"task_id": req.ID.String(),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
