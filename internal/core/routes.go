package core

import (
	"time"
)

// defaultRequestTimeout is the soft timeout applied to request contexts when
// no explicit RequestTimeout is configured. This should be set to Lambda
// timeout minus 1 second in production.
const defaultRequestTimeout = 29 * time.Second

// defaultRedactedHeaders lists header names whose values are masked in request
// logs to prevent accidental leakage of credentials or session tokens.
var defaultRedactedHeaders = []string{
	"Authorization",
	"Cookie",
	"X-Api-Key",
}

// MountRoutes defines the top-level routing hierarchy.
// It registers the global middleware chain, domain handler routes (via
// RouteRegistrars), and the health check endpoint.
func (s *Server) MountRoutes() {
	// Global Middleware Registration (strict order matters).
	s.registerGlobalMiddleware()

	// Domain handler routes.
	for _, registrar := range s.RouteRegistrars {
		registrar(s.router)
	}

	// Top-Level Routes
	s.router.Get("/health", s.HandleHealth)
}

// registerGlobalMiddleware applies middleware in strict order.
//
// Ordering Rationale:
//  1. Recoverer       - Catches panics; outermost to catch all failures.
//  2. ContextTimeout  - Sets soft deadline before Lambda hard timeout.
//  3. RequestID       - Generates/propagates correlation ID for tracing.
//  4. RequestLogger   - Structured logging (redacted headers).
func (s *Server) registerGlobalMiddleware() {
	s.router.Use(s.Recoverer)
	s.router.Use(ContextTimeoutMiddleware(s.requestTimeout()))
	s.router.Use(RequestIDMiddleware)
	s.router.Use(RequestLogger(s.Logger, defaultRedactedHeaders))
}

// requestTimeout returns the configured request timeout, falling back to the
// default if the config does not specify one.
func (s *Server) requestTimeout() time.Duration {
	if s.Config != nil && s.Config.Server.RequestTimeout > 0 {
		return s.Config.Server.RequestTimeout
	}
	return defaultRequestTimeout
}
