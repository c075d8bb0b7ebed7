package httpserver

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"community/backend/internal/config"
	authusecase "community/backend/internal/usecase/auth"
	postusecase "community/backend/internal/usecase/post"
)

// Server wraps the HTTP server lifecycle.
type Server struct {
	httpServer  *http.Server
	router      *http.ServeMux
	authService *authusecase.Service
	postService *postusecase.Service
	logger      *slog.Logger
	metrics     *metrics
	addr        string
}

// NewServer constructs a new Server with configured dependencies.
func NewServer(cfg config.Config, logger *slog.Logger, authService *authusecase.Service, postService *postusecase.Service) *Server {
	mux := http.NewServeMux()
	addr := cfg.HTTPPort
	if !strings.Contains(addr, ":") {
		addr = ":" + addr
	}

	handler := withRequestID(withLogging(logger, withRecovery(logger, withCORS(mux, cfg.AllowedOrigins))))

	srv := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      handler,
			ReadTimeout:  time.Duration(cfg.ReadTimeoutSec) * time.Second,
			WriteTimeout: time.Duration(cfg.WriteTimeoutSec) * time.Second,
			IdleTimeout:  time.Duration(cfg.IdleTimeoutSec) * time.Second,
			ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelWarn),
		},
		router:      mux,
		authService: authService,
		postService: postService,
		logger:      logger,
		metrics:     newMetrics(),
		addr:        addr,
	}
	srv.registerRoutes()
	return srv
}

// Start bootstraps the HTTP server on the provided address.
func (s *Server) Start() error {
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// Handler exposes the fully wrapped handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Addr returns the configured network address for the HTTP server.
func (s *Server) Addr() string {
	return s.addr
}
