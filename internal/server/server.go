// Package server exposes the snapshot analytics, alerts and administrative
// actions over HTTP, plus a WebSocket event stream.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/alanyoungcy/chainpulse/internal/domain"
	"github.com/alanyoungcy/chainpulse/internal/metrics"
	"github.com/alanyoungcy/chainpulse/internal/server/handler"
	"github.com/alanyoungcy/chainpulse/internal/server/middleware"
	"github.com/alanyoungcy/chainpulse/internal/server/ws"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port        int
	CORSOrigins []string
	// APIKeys guards every route except health and metrics. Empty disables
	// authentication.
	APIKeys    []string
	RateLimit  int
	RateWindow time.Duration
}

// Handlers aggregates all HTTP handlers that the server registers.
type Handlers struct {
	Health *handler.HealthHandler
	Chains *handler.ChainHandler
	Alerts *handler.AlertHandler
	Admin  *handler.AdminHandler
}

// Server is the HTTP + WebSocket API server.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer creates a Server with every route registered and the middleware
// chain applied. wsHub and limiter may be nil.
func NewServer(cfg Config, handlers Handlers, wsHub *ws.Hub, limiter domain.RateLimiter, logger *slog.Logger) *Server {
	logger = logger.With(slog.String("component", "http"))

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           NewHandler(cfg, handlers, wsHub, limiter, logger),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return &Server{httpServer: srv, logger: logger}
}

// NewHandler builds the routed and wrapped http.Handler.
func NewHandler(cfg Config, handlers Handlers, wsHub *ws.Hub, limiter domain.RateLimiter, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)
	mux.Handle("GET /metrics", metrics.Handler())

	// Chain analytics.
	mux.HandleFunc("GET /api/chains/{symbol}", handlers.Chains.GetChain)
	mux.HandleFunc("GET /api/chains/{symbol}/key-levels", handlers.Chains.GetKeyLevels)
	mux.HandleFunc("GET /api/chains/{symbol}/max-pain", handlers.Chains.GetMaxPain)
	mux.HandleFunc("GET /api/chains/{symbol}/volatility", handlers.Chains.GetVolatility)
	mux.HandleFunc("GET /api/chains/{symbol}/history", handlers.Chains.GetHistory)

	// Alerts.
	mux.HandleFunc("GET /api/alerts/{symbol}", handlers.Alerts.ListRecent)
	mux.HandleFunc("POST /api/alerts/{symbol}/evaluate", handlers.Alerts.EvaluateSymbol)
	mux.HandleFunc("POST /api/alerts/evaluate", handlers.Alerts.EvaluateSignal)

	// Administration.
	mux.HandleFunc("GET /api/admin/preference", handlers.Admin.GetPreference)
	mux.HandleFunc("PUT /api/admin/preference", handlers.Admin.SetPreference)
	mux.HandleFunc("POST /api/admin/ingest/{symbol}", handlers.Admin.TriggerIngest)
	mux.HandleFunc("GET /api/admin/archives/{symbol}", handlers.Admin.ListArchives)
	mux.HandleFunc("GET /api/admin/archives/{symbol}/object", handlers.Admin.GetArchive)

	if wsHub != nil {
		mux.HandleFunc("GET /ws", wsHub.HandleWS)
	}

	var h http.Handler = mux
	h = middleware.RateLimit(limiter, cfg.RateLimit, cfg.RateWindow, logger)(h)
	h = middleware.Auth(cfg.APIKeys, "/api/health", "/metrics")(h)
	h = middleware.Logging(logger)(h)
	h = middleware.CORS(cfg.CORSOrigins)(h)
	return h
}

// Start begins listening for HTTP requests. It blocks until the server
// encounters an error or is shut down.
func (s *Server) Start() error {
	s.logger.Info("server starting", slog.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server, waiting for in-flight requests
// to complete within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}
