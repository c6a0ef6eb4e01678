package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/staple-duck/snh/config"
	"github.com/staple-duck/snh/handlers"
	"github.com/staple-duck/snh/services"
)

const shutdownTimeout = 30 * time.Second

// Server represents the HTTP server
type Server struct {
	config      *config.Config
	router      *mux.Router
	httpServer  *http.Server
	services    *services.ServiceContainer
	httpMetrics *httpMetrics

	treeHandler *handlers.TreeHandler
}

// NewServer wires the HTTP routes onto an initialized service container
func NewServer(cfg *config.Config, container *services.ServiceContainer) *Server {
	router := mux.NewRouter()

	server := &Server{
		config:      cfg,
		router:      router,
		services:    container,
		treeHandler: handlers.NewTreeHandler(container.Hierarchy, container.Logger),
		httpServer: &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
			IdleTimeout:  cfg.Server.IdleTimeout,
		},
	}
	if container.Registry != nil {
		server.httpMetrics = newHTTPMetrics(container.Registry)
	}

	server.setupRoutes()
	server.setupMiddleware()
	server.httpServer.Handler = server.Handler()

	return server
}

// Handler returns the root HTTP handler. CORS wraps the router so that
// preflight requests are answered before route method matching.
func (s *Server) Handler() http.Handler {
	return s.corsMiddleware(s.router)
}

func (s *Server) apiPrefix() string {
	prefix := strings.Trim(s.config.Server.Prefix, "/")
	if prefix == "" {
		return ""
	}
	return "/" + prefix
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	api := s.router
	if prefix := s.apiPrefix(); prefix != "" {
		api = s.router.PathPrefix(prefix).Subrouter()
	}

	api.HandleFunc("/health", s.healthCheck).Methods(http.MethodGet)
	s.treeHandler.RegisterRoutes(api)

	if s.config.Metrics.Enabled && s.services.Registry != nil {
		s.router.Handle(s.config.Metrics.Path, promhttp.HandlerFor(s.services.Registry, promhttp.HandlerOpts{
			Registry: s.services.Registry,
		})).Methods(http.MethodGet)
	}

	s.router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeStatus(w, http.StatusMethodNotAllowed, "Method not allowed")
	})
	s.router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeStatus(w, http.StatusNotFound, fmt.Sprintf("Cannot %s %s", r.Method, r.URL.Path))
	})
}

// setupMiddleware configures middleware
func (s *Server) setupMiddleware() {
	s.router.Use(s.loggingMiddleware)
	if s.httpMetrics != nil {
		s.router.Use(s.metricsMiddleware)
	}
}

// Run serves until ctx is cancelled or SIGINT/SIGTERM arrives, then shuts
// down gracefully.
func (s *Server) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		s.services.Logger.Info("Starting server",
			services.Int("port", s.config.Server.Port),
			services.String("prefix", s.apiPrefix()))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.services.Logger.Info("Shutting down server")
	return s.Shutdown()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	return s.httpServer.Shutdown(ctx)
}

func (s *Server) healthCheck(w http.ResponseWriter, r *http.Request) {
	systemHealth := s.services.HealthService.CheckHealth(r.Context())

	statusCode := http.StatusOK
	if systemHealth.Status == services.HealthStatusUnhealthy {
		statusCode = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(systemHealth); err != nil {
		s.services.Logger.Error("Failed to encode health response", err)
	}
}

func writeStatus(w http.ResponseWriter, statusCode int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"statusCode": statusCode,
		"message":    message,
		"error":      http.StatusText(statusCode),
	})
}
