package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/vendhub/vendhub/internal/handler"
	"github.com/vendhub/vendhub/internal/openapi"
	"github.com/vendhub/vendhub/internal/server/middleware"
	"github.com/vendhub/vendhub/internal/service"
	"github.com/vendhub/vendhub/internal/store"
)

// Config holds the HTTP server configuration.
type Config struct {
	Host            string
	Port            int
	ShutdownTimeout time.Duration
	CORSOrigins     []string
	MaxBodySize     int64 // bytes
	TokenHeader     string
	LoginRateLimit  int
	DocumentDir     string
}

// DefaultConfig returns a Config with sensible production defaults.
func DefaultConfig() Config {
	return Config{
		Host:            "0.0.0.0",
		Port:            8080,
		ShutdownTimeout: 30 * time.Second,
		CORSOrigins:     []string{"*"},
		MaxBodySize:     10 * 1024 * 1024, // 10MB
		TokenHeader:     "X-API-Token",
		LoginRateLimit:  10,
	}
}

// Server is the top-level HTTP server for VendHub. It owns the Chi router,
// the store, and the token, session, and authorization services.
type Server struct {
	cfg        Config
	router     chi.Router
	store      *store.Store
	sessions   *service.SessionService
	tokens     *service.TokenService
	gate       *service.Gate
	httpServer *http.Server
	logger     *slog.Logger
}

// New creates a new Server, wires up all routes and middleware, and returns
// it ready to listen. Call ListenAndServe to start accepting connections.
func New(cfg Config, st *store.Store, sessions *service.SessionService, tokens *service.TokenService, gate *service.Gate, logger *slog.Logger) *Server {
	s := &Server{
		cfg:      cfg,
		store:    st,
		sessions: sessions,
		tokens:   tokens,
		gate:     gate,
		logger:   logger,
	}
	s.setupRouter()
	return s
}

func (s *Server) setupRouter() {
	r := chi.NewRouter()

	// --- Global middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(s.logger))
	r.Use(chimw.Recoverer)
	r.Use(chimw.RealIP)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", s.cfg.TokenHeader, "X-Requested-With"},
		ExposedHeaders:   []string{"X-Total-Count", "X-Request-ID", "Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(chimw.Compress(5))

	// --- Health checks (no auth required) ---
	r.Get("/healthz", s.handleHealthz)
	r.Get("/readyz", s.handleReadyz)

	// --- OpenAPI spec (no auth required) ---
	r.Get("/openapi.json", handler.NewOpenAPIHandler(openapi.Document()).ServeSpec)

	// --- API routes ---
	r.Route("/api/v1", func(r chi.Router) {

		// System APIs (operator management)
		r.Route("/system", func(r chi.Router) {
			sysHandler := handler.NewSystemHandler(s.store, s.sessions)
			tokenHandler := handler.NewTokenHandler(s.tokens)
			auditHandler := handler.NewAuditHandler(s.store)

			// Session endpoints are unauthenticated (login) or self-authenticated (logout)
			r.With(middleware.RateLimit(s.cfg.LoginRateLimit)).Post("/session", sysHandler.Login)
			r.Delete("/session", sysHandler.Logout)

			// Preset map is static reference data
			r.Get("/token/presets", tokenHandler.Presets)

			// All other system endpoints require an operator session
			r.Group(func(r chi.Router) {
				r.Use(middleware.Authenticate(s.sessions))

				// API token management
				r.Get("/token", tokenHandler.List)
				r.Post("/token", tokenHandler.Create)
				r.Get("/token/stats", tokenHandler.Stats)
				r.Get("/token/{tokenId}", tokenHandler.Get)
				r.Patch("/token/{tokenId}", tokenHandler.Update)
				r.Delete("/token/{tokenId}", tokenHandler.Delete)
				r.Post("/token/{tokenId}/revoke", tokenHandler.Revoke)
				r.Post("/token/{tokenId}/regenerate", tokenHandler.Regenerate)

				// Operator and audit administration
				r.Group(func(r chi.Router) {
					r.Use(middleware.RequireAdmin())

					r.Get("/operator", sysHandler.ListOperators)
					r.Post("/operator", sysHandler.CreateOperator)
					r.Get("/audit", auditHandler.List)
				})
			})
		})

		// Document APIs accept an operator session or a programmatic API token
		r.Route("/document", func(r chi.Router) {
			docHandler := handler.NewDocumentHandler(s.store, s.cfg.DocumentDir, s.cfg.MaxBodySize)
			guard := func(required string) func(http.Handler) http.Handler {
				return middleware.Authorize(s.sessions, s.gate, s.cfg.TokenHeader, required, "documents")
			}

			r.With(guard("read:documents")).Get("/", docHandler.List)
			r.With(guard("write:documents")).Post("/", docHandler.Create)
			r.With(guard("read:documents")).Get("/{documentId}", docHandler.Get)
			r.With(guard("read:documents")).Get("/{documentId}/content", docHandler.Content)
			r.With(guard("delete:documents")).Delete("/{documentId}", docHandler.Delete)
		})
	})

	s.router = r
}

// handleHealthz is a liveness probe. Returns 200 if the process is running.
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}

// handleReadyz is a readiness probe. Returns 200 when the backing store is
// reachable, or 503 when it is not.
func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	httpStatus := http.StatusOK
	checks := make(map[string]string)

	if err := s.store.Ping(r.Context()); err != nil {
		checks["store"] = "error: " + err.Error()
		status = "degraded"
		httpStatus = http.StatusServiceUnavailable
	} else {
		checks["store"] = "ok"
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpStatus)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status": status,
		"checks": checks,
	})
}

// ListenAndServe starts the HTTP server and blocks until a SIGINT or SIGTERM
// is received. It then performs a graceful shutdown, draining in-flight
// requests before closing the store.
func (s *Server) ListenAndServe() error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Listen for shutdown signals
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Start server in background goroutine
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server starting", "addr", addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	// Wait for shutdown signal or server error
	select {
	case err := <-errCh:
		return fmt.Errorf("server listen: %w", err)
	case <-ctx.Done():
		s.logger.Info("shutdown signal received, draining connections...")
	}

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	if err := s.store.Close(); err != nil {
		s.logger.Warn("store close failed", "error", err)
	}
	s.logger.Info("server stopped")
	return nil
}

// Router returns the underlying Chi router, useful for testing.
func (s *Server) Router() chi.Router {
	return s.router
}

// ServeHTTP implements http.Handler, delegating to the router.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
