package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ignite/campaign-dashboard/internal/config"
)

// Server represents the API server
type Server struct {
	config   config.ServerConfig
	handlers *Handlers
	router   *chi.Mux
	server   *http.Server
}

// NewServer creates a new API server
func NewServer(cfg config.ServerConfig, svc Services, rc RouterConfig) *Server {
	handlers := NewHandlers(svc)
	if len(rc.AllowedOrigins) == 0 {
		rc.AllowedOrigins = cfg.AllowedOrigins
	}
	router := SetupRoutes(handlers, rc)
	return &Server{
		config:   cfg,
		handlers: handlers,
		router:   router,
		server: &http.Server{
			Addr:    cfg.Addr(),
			Handler: router,
			// Contact imports upload files of up to 20 MB.
			ReadTimeout:       2 * time.Minute,
			ReadHeaderTimeout: 15 * time.Second,
			WriteTimeout:      5 * time.Minute,
			IdleTimeout:       120 * time.Second,
		},
	}
}

// ListenAndServe starts the HTTP server on the configured address.
func (s *Server) ListenAndServe() error {
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// Handler returns the HTTP handler for testing
func (s *Server) Handler() http.Handler {
	return s.router
}
