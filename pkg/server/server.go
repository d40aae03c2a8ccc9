package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"

	"mercator-hq/tollgate/pkg/config"
	"mercator-hq/tollgate/pkg/pipeline"
	"mercator-hq/tollgate/pkg/server/middleware"
	"mercator-hq/tollgate/pkg/stats"
	"mercator-hq/tollgate/pkg/telemetry/health"
	"mercator-hq/tollgate/pkg/telemetry/metrics"
	"mercator-hq/tollgate/pkg/tickets"
)

// Options are the server's collaborators. Tickets, History, Health and
// Metrics are optional; their routes answer 503 or fall back to in-memory
// data when absent.
type Options struct {
	Config   *config.ServerConfig
	Export   *config.ExportConfig
	Pipeline *pipeline.Pipeline
	Tickets  tickets.Storage
	History  stats.Store
	Health   *health.Checker
	Metrics  *metrics.Collector
	Logger   *slog.Logger
}

// Server is the HTTP status API.
type Server struct {
	opts       Options
	config     *config.ServerConfig
	logger     *slog.Logger
	httpServer *http.Server

	shutdownChan chan struct{}
	shutdownOnce sync.Once

	mu        sync.RWMutex
	isRunning bool
	addr      string
}

// New creates a server. A nil Config uses the defaults.
func New(opts Options) *Server {
	cfg := opts.Config
	if cfg == nil {
		cfg = &config.DefaultConfig().Server
	}
	if opts.Export == nil {
		opts.Export = &config.DefaultConfig().Tickets.Export
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Server{
		opts:         opts,
		config:       cfg,
		logger:       opts.Logger.With("component", "server"),
		shutdownChan: make(chan struct{}),
	}
}

// Start listens on the configured address and serves until ctx is cancelled
// or Shutdown is called.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return fmt.Errorf("server is already running")
	}

	ln, err := net.Listen("tcp", s.config.ListenAddress)
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("failed to listen on %s: %w", s.config.ListenAddress, err)
	}

	s.httpServer = &http.Server{
		Handler:      s.Handler(),
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}
	s.addr = ln.Addr().String()
	s.isRunning = true
	s.mu.Unlock()

	errChan := make(chan error, 1)
	go func() {
		s.logger.Info("starting status server", "address", s.addr)
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("server error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("context cancelled, initiating shutdown")
		return s.Shutdown(context.Background())
	case err := <-errChan:
		s.mu.Lock()
		s.isRunning = false
		s.mu.Unlock()
		return err
	case <-s.shutdownChan:
		return nil
	}
}

// Shutdown gracefully shuts down the server. Open event streams are closed
// by cancelling their request contexts.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		s.mu.Lock()
		running := s.isRunning
		s.mu.Unlock()
		defer close(s.shutdownChan)
		if !running {
			return
		}

		s.logger.Info("initiating graceful shutdown", "timeout", s.config.ShutdownTimeout.String())

		shutdownCtx, cancel := context.WithTimeout(ctx, s.config.ShutdownTimeout)
		defer cancel()

		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("error during server shutdown", "error", err)
			_ = s.httpServer.Close()
			shutdownErr = fmt.Errorf("server shutdown error: %w", err)
		}

		s.mu.Lock()
		s.isRunning = false
		s.mu.Unlock()

		s.logger.Info("status server stopped")
	})

	return shutdownErr
}

// Handler returns the routed handler with its middleware chain.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	timeout := middleware.TimeoutMiddleware(s.config.RequestTimeout)

	mux.Handle("GET /v1/status", timeout(http.HandlerFunc(s.handleStatus)))
	mux.Handle("GET /v1/stats", timeout(http.HandlerFunc(s.handleStats)))
	mux.Handle("GET /v1/stats/history", timeout(http.HandlerFunc(s.handleStatsHistory)))
	mux.Handle("GET /v1/tickets", timeout(http.HandlerFunc(s.handleTickets)))
	mux.Handle("GET /v1/tickets/export", timeout(http.HandlerFunc(s.handleExport)))
	mux.HandleFunc("GET /v1/events", s.handleEvents)

	if s.opts.Health != nil {
		mux.Handle("/health", s.opts.Health.LivenessHandler())
		mux.Handle("/ready", s.opts.Health.ReadinessHandler())
	}
	if s.opts.Metrics != nil {
		mux.Handle("GET /metrics", s.opts.Metrics.Handler())
	}

	var handler http.Handler = mux
	handler = middleware.RecoveryMiddleware(handler)
	handler = middleware.LoggingMiddleware(s.logger)(handler)
	handler = middleware.RequestIDMiddleware(handler)
	return handler
}

// IsRunning returns true if the server is running.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// Addr returns the address the server listens on, once started.
func (s *Server) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.addr
}

// Health reports whether the server is serving. Registered as a readiness check.
func (s *Server) Health(ctx context.Context) error {
	if !s.IsRunning() {
		return fmt.Errorf("server is not running")
	}
	return nil
}
