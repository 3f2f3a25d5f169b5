// ABOUTME: HTTP server wiring for chorus-orchestrator
// ABOUTME: Owns the mux, lifecycle, and graceful shutdown

package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/chorushq/chorus-orchestrator/internal/config"
	"github.com/chorushq/chorus-orchestrator/internal/pipeline"
	"github.com/chorushq/chorus-orchestrator/internal/quota"
	"github.com/chorushq/chorus-orchestrator/internal/store"
)

// Runner executes one pipeline run, emitting staged events through emit.
type Runner interface {
	Run(ctx context.Context, caller quota.Caller, query string, emit pipeline.EmitFunc) error
}

// Server exposes the query pipeline over HTTP.
type Server struct {
	cfg      *config.Config
	pipeline Runner
	registry store.AgentRegistry
	logger   *slog.Logger

	httpServer *http.Server
}

// New creates a Server with explicit collaborators.
func New(cfg *config.Config, pipe Runner, registry store.AgentRegistry, logger *slog.Logger) *Server {
	return &Server{
		cfg:      cfg,
		pipeline: pipe,
		registry: registry,
		logger:   logger.With("component", "server"),
	}
}

// Routes returns the HTTP mux with all endpoints registered.
func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/search", s.handleSearch)
	mux.HandleFunc("/api/agents", s.handleListAgents)
	mux.HandleFunc("/health", s.handleHealth)
	return mux
}

// Run starts the HTTP server and blocks until ctx is cancelled or the
// listener fails.
func (s *Server) Run(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:    s.cfg.Server.HTTPAddr,
		Handler: s.Routes(),
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server listening", "addr", s.cfg.Server.HTTPAddr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
