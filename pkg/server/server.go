// Package server exposes the pipeline over a small HTTP API: starting
// runs, fetching stored runs, approving or rejecting suspended runs, and
// executing eval suites. It also serves the liveness, readiness, and
// metrics endpoints.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"briefline/copyforge/pkg/config"
	"briefline/copyforge/pkg/evals"
	"briefline/copyforge/pkg/pipeline"
	"briefline/copyforge/pkg/policy"
	"briefline/copyforge/pkg/store"
	"briefline/copyforge/pkg/telemetry/health"
	"briefline/copyforge/pkg/telemetry/metrics"
)

// Config assembles a server. Orchestrator and Store are required; the
// rest is optional.
type Config struct {
	HTTP         config.ServerConfig
	Orchestrator *pipeline.Orchestrator
	Store        *store.Store
	Evals        *evals.Engine
	Policy       policy.Policy
	Checker      *health.Checker
	Metrics      *metrics.Collector
	Logger       *slog.Logger
}

// Server is the HTTP front end for the pipeline.
type Server struct {
	config       config.ServerConfig
	orchestrator *pipeline.Orchestrator
	store        *store.Store
	evals        *evals.Engine
	checker      *health.Checker
	metrics      *metrics.Collector
	logger       *slog.Logger

	httpServer   *http.Server
	shutdownOnce sync.Once

	mu     sync.RWMutex
	policy policy.Policy
}

// New creates a server from the given configuration.
func New(cfg Config) (*Server, error) {
	if cfg.Orchestrator == nil {
		return nil, fmt.Errorf("server requires an orchestrator")
	}
	if cfg.Store == nil {
		return nil, fmt.Errorf("server requires a store")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	checker := cfg.Checker
	if checker == nil {
		checker = health.New(0)
	}
	s := &Server{
		config:       cfg.HTTP,
		orchestrator: cfg.Orchestrator,
		store:        cfg.Store,
		evals:        cfg.Evals,
		checker:      checker,
		metrics:      cfg.Metrics,
		logger:       logger.With("component", "server"),
		policy:       policy.Normalize(cfg.Policy),
	}
	return s, nil
}

// SetPolicy swaps the default policy applied to new runs. Called by the
// policy file watcher on reload; in-flight runs keep the policy they
// started with.
func (s *Server) SetPolicy(p policy.Policy) {
	s.mu.Lock()
	s.policy = policy.Normalize(p)
	s.mu.Unlock()
	s.logger.Info("default policy updated")
}

func (s *Server) currentPolicy() policy.Policy {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.policy
}

// Start starts the HTTP server and blocks until the context is cancelled,
// a shutdown signal arrives, or the listener fails.
func (s *Server) Start(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:         s.config.ListenAddress,
		Handler:      s.Handler(),
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}

	errChan := make(chan error, 1)
	go func() {
		s.logger.Info("starting server", "address", s.config.ListenAddress)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case <-ctx.Done():
		s.logger.Info("context cancelled, initiating shutdown")
		return s.Shutdown(context.Background())
	case sig := <-sigChan:
		s.logger.Info("received shutdown signal", "signal", sig.String())
		return s.Shutdown(context.Background())
	case err := <-errChan:
		return err
	}
}

// Shutdown gracefully drains in-flight requests, bounded by the
// configured shutdown timeout.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.logger.Info("initiating graceful shutdown", "timeout", s.config.ShutdownTimeout.String())

		shutdownCtx, cancel := context.WithTimeout(ctx, s.config.ShutdownTimeout)
		defer cancel()

		if s.httpServer != nil {
			if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
				s.logger.Error("error during server shutdown", "error", err)
				shutdownErr = fmt.Errorf("server shutdown error: %w", err)
			}
		}
		s.logger.Info("server stopped")
	})
	return shutdownErr
}

// Handler returns the configured HTTP handler. Exposed for tests.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/runs", s.handleCreateRun)
	mux.HandleFunc("GET /api/runs", s.handleListRuns)
	mux.HandleFunc("GET /api/runs/{id}", s.handleGetRun)
	mux.HandleFunc("POST /api/runs/{id}/approve", s.handleApprove)
	mux.HandleFunc("POST /api/runs/{id}/reject", s.handleReject)
	mux.HandleFunc("POST /api/eval", s.handleEval)

	mux.Handle("/healthz", s.checker.LivenessHandler())
	mux.Handle("/readyz", s.checker.ReadinessHandler())
	if s.metrics != nil {
		mux.Handle("/metrics", s.metrics.Handler())
	}

	return s.logRequests(mux)
}

// logRequests wraps the mux with request logging.
func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.logger.Debug("request", "method", r.Method, "path", r.URL.Path)
		next.ServeHTTP(w, r)
	})
}
