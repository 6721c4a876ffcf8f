// Package api provides the HTTP REST API of netprobe. Scans and discoveries
// are submitted as background jobs, followed by polling or over a websocket,
// and Prometheus metrics are served at /metrics.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"slices"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	apihandlers "github.com/anstrom/netprobe/internal/api/handlers"
	"github.com/anstrom/netprobe/internal/api/middleware"
	"github.com/anstrom/netprobe/internal/auth"
	"github.com/anstrom/netprobe/internal/config"
	"github.com/anstrom/netprobe/internal/jobs"
	"github.com/anstrom/netprobe/internal/logging"
	"github.com/anstrom/netprobe/internal/metrics"
	"github.com/anstrom/netprobe/internal/scanning"
)

// defaultShutdownTimeout is used when the configuration leaves it unset.
const defaultShutdownTimeout = 30 * time.Second

// Server represents the API server.
type Server struct {
	httpServer *http.Server
	router     *mux.Router
	handler    http.Handler
	config     config.APIConfig
	handlers   *apihandlers.HandlerManager
	logger     *logging.Logger
	metrics    *metrics.PrometheusMetrics
	keys       *auth.KeyRing
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the server logger.
func WithLogger(l *logging.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithMetrics sets the metrics collected and served at /metrics.
func WithMetrics(pm *metrics.PrometheusMetrics) Option {
	return func(s *Server) { s.metrics = pm }
}

// New creates a new API server instance.
func New(cfg *config.Config, scanner *scanning.Scanner, manager *jobs.Manager, opts ...Option) (*Server, error) {
	s := &Server{
		router:  mux.NewRouter(),
		config:  cfg.API,
		logger:  logging.Default(),
		metrics: metrics.GetGlobalMetrics(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.WithComponent("api")

	if cfg.API.AuthEnabled {
		ring, err := auth.NewKeyRing(cfg.API.APIKeyHashes)
		if err != nil {
			return nil, fmt.Errorf("invalid api key configuration: %w", err)
		}
		if ring.Len() == 0 {
			return nil, fmt.Errorf("authentication enabled without api_key_hashes")
		}
		s.keys = ring
	}

	s.handlers = apihandlers.New(manager, scanner, s.logger, apihandlers.Options{
		DefaultNetwork: cfg.Discovery.DefaultNetwork,
		CheckOrigin:    s.checkOrigin,
	})

	s.setupRoutes()
	s.handler = s.setupMiddleware()

	s.httpServer = &http.Server{
		Addr:              cfg.GetAPIAddress(),
		Handler:           s.handler,
		ReadHeaderTimeout: cfg.API.ReadTimeout,
		ReadTimeout:       cfg.API.ReadTimeout,
		WriteTimeout:      cfg.API.WriteTimeout,
		IdleTimeout:       cfg.API.IdleTimeout,
	}

	return s, nil
}

// Start serves until ctx is cancelled, then shuts the server down.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("API server failed to listen: %w", err)
	}
	return s.Serve(ctx, ln)
}

// Serve is Start on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.logger.Info("Starting API server",
		"address", ln.Addr().String(),
		"auth", s.keys != nil,
		"cors", s.config.EnableCORS)

	errChan := make(chan error, 1)
	go func() {
		if err := s.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("API server failed: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		return s.Stop()
	case err := <-errChan:
		return err
	}
}

// Stop gracefully stops the API server.
func (s *Server) Stop() error {
	s.logger.Info("Stopping API server")

	timeout := s.config.ShutdownTimeout
	if timeout <= 0 {
		timeout = defaultShutdownTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Error("API server shutdown error", "error", err)
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	s.logger.Info("API server stopped successfully")
	return nil
}

// setupRoutes configures all API routes.
func (s *Server) setupRoutes() {
	s.router.NotFoundHandler = http.HandlerFunc(s.notFound)
	s.router.MethodNotAllowedHandler = http.HandlerFunc(s.methodNotAllowed)

	s.router.Handle("/metrics", s.metrics.Handler()).Methods(http.MethodGet)
	s.router.HandleFunc("/", s.index).Methods(http.MethodGet)

	api := s.router.PathPrefix("/api/v1").Subrouter()
	h := s.handlers

	api.HandleFunc("/liveness", h.Liveness).Methods(http.MethodGet)
	api.HandleFunc("/health", h.Health).Methods(http.MethodGet)
	api.HandleFunc("/status", h.Status).Methods(http.MethodGet)
	api.HandleFunc("/version", h.Version).Methods(http.MethodGet)

	api.HandleFunc("/scans", h.ListScans).Methods(http.MethodGet)
	api.HandleFunc("/scans/ports", h.CreatePortScan).Methods(http.MethodPost)
	api.HandleFunc("/scans/common", h.CreateCommonScan).Methods(http.MethodPost)
	api.HandleFunc("/scans/{id}", h.GetScan).Methods(http.MethodGet)
	api.HandleFunc("/scans/{id}", h.CancelScan).Methods(http.MethodDelete)
	api.HandleFunc("/scans/{id}/ws", h.ScanWebSocket).Methods(http.MethodGet)
	api.HandleFunc("/discovery", h.CreateDiscovery).Methods(http.MethodPost)

	if s.keys != nil {
		api.Use(middleware.Authentication(s.keys, s.logger))
	}
	api.Use(middleware.MaxBytes(s.config.MaxRequestSize))
	api.Use(middleware.ContentType())
}

// setupMiddleware wraps the router. CORS sits outside the router so that
// preflight requests are answered before method matching.
func (s *Server) setupMiddleware() http.Handler {
	s.router.Use(middleware.Recovery(s.logger))
	s.router.Use(middleware.Logging(s.logger))
	s.router.Use(middleware.Metrics(s.metrics))
	s.router.Use(middleware.SecurityHeaders())

	var h http.Handler = s.router
	if s.config.EnableCORS {
		h = handlers.CORS(
			handlers.AllowedOrigins(s.config.CORSOrigins),
			handlers.AllowedHeaders([]string{"Content-Type", "Authorization", "X-API-Key", middleware.RequestIDHeader}),
			handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions}),
			handlers.ExposedHeaders([]string{middleware.RequestIDHeader, "Location"}),
		)(h)
	}
	return middleware.RequestID()(h)
}

// checkOrigin applies the CORS origin list to websocket upgrades.
func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || !s.config.EnableCORS {
		return true
	}
	return slices.Contains(s.config.CORSOrigins, "*") || slices.Contains(s.config.CORSOrigins, origin)
}

// index lists the main endpoints.
func (s *Server) index(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, r, http.StatusOK, map[string]interface{}{
		"service": "netprobe",
		"version": "v1",
		"endpoints": map[string]string{
			"liveness":  "/api/v1/liveness",
			"health":    "/api/v1/health",
			"status":    "/api/v1/status",
			"scans":     "/api/v1/scans",
			"discovery": "/api/v1/discovery",
			"metrics":   "/metrics",
		},
		"timestamp": time.Now().UTC(),
	})
}

func (s *Server) notFound(w http.ResponseWriter, r *http.Request) {
	s.writeError(w, r, http.StatusNotFound, fmt.Errorf("no route for %s %s", r.Method, r.URL.Path))
}

func (s *Server) methodNotAllowed(w http.ResponseWriter, r *http.Request) {
	s.writeError(w, r, http.StatusMethodNotAllowed, fmt.Errorf("method %s not allowed on %s", r.Method, r.URL.Path))
}

// Handler returns the fully wrapped HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// GetRouter returns the configured router.
func (s *Server) GetRouter() *mux.Router {
	return s.router
}

// GetAddress returns the server address.
func (s *Server) GetAddress() string {
	return s.httpServer.Addr
}

// ErrorResponse represents a standard API error response.
type ErrorResponse struct {
	Error     string    `json:"error"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"request_id,omitempty"`
}

// writeError writes a standardized error response.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, statusCode int, err error) {
	s.writeJSON(w, r, statusCode, ErrorResponse{
		Error:     http.StatusText(statusCode),
		Message:   err.Error(),
		Timestamp: time.Now().UTC(),
		RequestID: middleware.GetRequestID(r),
	})
}

// writeJSON writes a JSON response.
func (s *Server) writeJSON(w http.ResponseWriter, r *http.Request, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error("Failed to encode JSON response",
			"error", err,
			"path", r.URL.Path,
			"method", r.Method)
	}
}
