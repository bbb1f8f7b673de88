// Package server exposes the webhook ingress and the dashboard API over
// HTTP.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/arjunr-dev/scantrader/internal/domain"
	"github.com/arjunr-dev/scantrader/internal/server/handler"
	"github.com/arjunr-dev/scantrader/internal/server/middleware"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port        int
	CORSOrigins []string
	APIKey      string // if empty, dashboard authentication is disabled

	// WebhookRateLimit bounds requests per client IP on the webhook
	// endpoint within WebhookRateWindow.
	WebhookRateLimit  int
	WebhookRateWindow time.Duration
}

// Handlers aggregates all HTTP handlers that the server needs to register.
type Handlers struct {
	Health   *handler.HealthHandler
	Webhook  *handler.WebhookHandler
	Status   *handler.StatusHandler
	Auth     *handler.AuthHandler
	Settings *handler.SettingsHandler
	Trades   *handler.TradesHandler
}

// Server is the HTTP API server for the trading engine.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer creates a new Server with all routes registered. The webhook
// route sits behind the ingress rate limiter; the dashboard API sits
// behind key authentication. The health check bypasses both so probes
// keep working with an expired key. limiter may be nil to disable
// ingress limiting.
func NewServer(cfg Config, handlers Handlers, limiter domain.RateLimiter, logger *slog.Logger) *Server {
	if cfg.WebhookRateLimit <= 0 {
		cfg.WebhookRateLimit = 10
	}
	if cfg.WebhookRateWindow <= 0 {
		cfg.WebhookRateWindow = time.Second
	}

	mux := http.NewServeMux()

	// Webhook ingress. Scanner platforms cannot attach API keys, so the
	// rate limiter is the only shield here.
	var webhook http.Handler = http.HandlerFunc(handlers.Webhook.Receive)
	if limiter != nil {
		webhook = middleware.RateLimit(limiter, cfg.WebhookRateLimit, cfg.WebhookRateWindow)(webhook)
	}
	mux.Handle("POST /webhook", webhook)

	// Health check (no auth required).
	mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)

	// Dashboard API.
	api := http.NewServeMux()
	api.HandleFunc("GET /api/status", handlers.Status.GetStatus)
	api.HandleFunc("POST /api/auth/session", handlers.Auth.CreateSession)
	api.HandleFunc("GET /api/settings", handlers.Settings.GetSettings)
	api.HandleFunc("PUT /api/settings", handlers.Settings.UpdateSettings)
	api.HandleFunc("GET /api/trades", handlers.Trades.ListTrades)
	mux.Handle("/api/", middleware.Auth(cfg.APIKey)(api))

	// Build the middleware chain.
	var h http.Handler = mux
	h = middleware.Logging(logger)(h)
	h = corsMiddleware(cfg.CORSOrigins)(h)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      h,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: srv,
		logger:     logger,
	}
}

// Start begins listening for HTTP requests. It blocks until the server
// encounters an error or is shut down.
func (s *Server) Start() error {
	s.logger.Info("server: starting",
		slog.String("addr", s.httpServer.Addr),
	)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server, waiting for in-flight requests
// to complete within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server: shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}

// corsMiddleware returns middleware that sets CORS headers for the allowed
// origins. If no origins are specified, it defaults to allowing all origins.
func corsMiddleware(allowedOrigins []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")

			if origin != "" {
				allowed := len(allowedOrigins) == 0 // allow all if none specified
				for _, o := range allowedOrigins {
					if strings.EqualFold(o, "*") || strings.EqualFold(o, origin) {
						allowed = true
						break
					}
				}

				if allowed {
					w.Header().Set("Access-Control-Allow-Origin", origin)
					w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
					w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-API-Key")
					w.Header().Set("Access-Control-Max-Age", "86400")
				}
			}

			// Handle preflight requests.
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
