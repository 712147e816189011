// Package core provides the API chassis for the mailroom admin API.
// It creates a chi router compatible with both standard HTTP (for local dev)
// and AWS Lambda Proxy Integration (via chiadapter). It enforces cross-cutting
// concerns such as logging, request correlation, and error handling before
// requests reach domain-specific handlers.
package core

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"mailroom/internal/config"
)

// RouteRegistrar registers a group of domain handler routes on the router.
// Handlers are registered by the application entry point (main.go); this
// indirection avoids import cycles between core and handler packages.
type RouteRegistrar func(r chi.Router)

// Server encapsulates all dependencies for the admin API, allowing for easy
// injection during testing and distinct configuration for different
// environments.
type Server struct {
	Config       *config.Config
	Logger       *slog.Logger
	HealthProbes []HealthProbe

	// RouteRegistrars are invoked by MountRoutes to attach domain handlers.
	RouteRegistrars []RouteRegistrar

	// Internal router
	router *chi.Mux
}

// NewServer initializes dependencies, sets up the router, and prepares the
// server for route mounting. It performs a fail-fast check on critical
// configuration.
//
// The caller is responsible for mounting routes (via MountRoutes) after
// construction. This separation allows tests to customize route registration.
func NewServer(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger must not be nil")
	}

	return &Server{
		Config: cfg,
		Logger: logger,
		router: chi.NewRouter(),
	}, nil
}

// Handler returns the http.Handler interface for the router.
// Used by http.ListenAndServe (local) and chiadapter.NewV2 (Lambda).
func (s *Server) Handler() http.Handler {
	return s.router
}

// Router returns the underlying chi.Mux for route registration.
// This is used internally by route-mounting methods and tests.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Shutdown performs a graceful termination of server resources.
func (s *Server) Shutdown(ctx context.Context) error {
	s.Logger.Info("server shutdown initiated")
	s.Logger.Info("server shutdown complete")
	return nil
}
