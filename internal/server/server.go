// Package server hosts the worker's status endpoints: health checks and a
// live view of job counters.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	apperrors "github.com/3leaps/logvault/internal/errors"
	"github.com/3leaps/logvault/internal/server/handlers"
	"github.com/3leaps/logvault/internal/server/middleware"
)

// Server is the worker status server.
type Server struct {
	host    string
	port    int
	router  chi.Router
	httpSrv *http.Server

	Health  *handlers.HealthManager
	Tracker *handlers.StatusTracker
}

// New creates a status server bound to host:port.
func New(host string, port int) *Server {
	s := &Server{
		host:    host,
		port:    port,
		Health:  handlers.NewHealthManager("dev"),
		Tracker: handlers.NewStatusTracker(),
	}

	r := chi.NewRouter()
	r.Use(middleware.Recovery)
	r.NotFound(apperrors.NotFoundHandler)
	r.MethodNotAllowed(apperrors.MethodNotAllowedHandler)

	r.Get("/healthz", s.Health.HealthHandler)
	r.Get("/health", s.Health.HealthHandler)
	r.Get("/status", s.Tracker.StatusHandler)

	s.router = r
	return s
}

// Handler returns the root handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Port returns the configured port.
func (s *Server) Port() int {
	return s.port
}

// Start serves until the listener fails or Shutdown is called.
func (s *Server) Start() error {
	s.httpSrv = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", s.host, s.port),
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	err := s.httpSrv.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}
