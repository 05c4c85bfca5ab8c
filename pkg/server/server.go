package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/docsync/core/pkg/handlers/health"
	"github.com/docsync/core/pkg/handlers/schedulers"
	"github.com/docsync/core/pkg/logger"
	"github.com/docsync/core/pkg/middleware"
)

// Config holds the admin API settings
type Config struct {
	Host           string
	Port           string
	AllowedOrigins []string
	// TriggerInterval and TriggerBurst bound manual triggers per scheduler.
	TriggerInterval time.Duration
	TriggerBurst    int
}

// Server represents the admin API server
type Server struct {
	router   *http.ServeMux
	http     *http.Server
	logger   *logger.Logger
	limiter  *middleware.KeyedLimiter
	cors     func(http.Handler) http.Handler
	handlers struct {
		health     *health.Handler
		schedulers *schedulers.Handler
	}
}

// New creates a new server instance
func New(cfg Config, registry schedulers.Registry, log *logger.Logger, checks ...health.Check) *Server {
	if cfg.Port == "" {
		cfg.Port = "8080"
	}

	server := &Server{
		router:  http.NewServeMux(),
		logger:  log,
		limiter: middleware.NewKeyedLimiter(cfg.TriggerInterval, cfg.TriggerBurst),
		cors:    middleware.CORS(cfg.AllowedOrigins...),
	}
	server.http = &http.Server{
		Addr:              net.JoinHostPort(cfg.Host, cfg.Port),
		Handler:           server.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	server.handlers.health = health.NewHandler(log, checks...)
	server.handlers.schedulers = schedulers.NewHandler(registry, log)

	server.setupRoutes()
	return server
}

// Handler exposes the routed handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// setupRoutes configures all the API routes
func (s *Server) setupRoutes() {
	s.handle("GET /health", s.handlers.health.HealthCheck)

	s.handle("GET /api/schedulers", s.handlers.schedulers.List)
	s.handle("GET /api/schedulers/{key}", s.handlers.schedulers.Get)
	s.handle("PUT /api/schedulers/{key}", s.handlers.schedulers.Update)
	s.handle("PUT /api/schedulers/{key}/time-format", s.handlers.schedulers.UpdateTimeFormat)

	trigger := middleware.RateLimit(s.limiter, middleware.PathKey("key"), s.logger)(
		http.HandlerFunc(s.handlers.schedulers.Trigger))
	s.router.Handle("POST /api/schedulers/{key}/trigger", s.cors(trigger))

	// Preflight requests for every API path
	s.router.Handle("OPTIONS /", s.cors(http.NotFoundHandler()))
}

func (s *Server) handle(pattern string, fn http.HandlerFunc) {
	s.router.Handle(pattern, s.cors(fn))
}

// Start serves the API until Shutdown is called
func (s *Server) Start() error {
	s.logger.Info().
		Str("action", "server_start").
		Str("addr", s.http.Addr).
		Msg("Starting admin API server")

	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server failed to start on %s: %w", s.http.Addr, err)
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones
func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.http.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	s.logger.Info().
		Str("action", "server_stop").
		Msg("Admin API server stopped")
	return nil
}
