// Package server provides the HTTP API for vaidya sessions.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/vedanta-labs/vaidya/internal/config"
	"github.com/vedanta-labs/vaidya/internal/dialogue"
)

// Server is the HTTP server for the session API.
type Server struct {
	engine   *dialogue.Engine
	sessions *sessionStore
	config   *config.ServerConfig
	logger   *zap.Logger
	server   *http.Server
}

// NewServer creates a server with the given dependencies.
func NewServer(engine *dialogue.Engine, cfg *config.ServerConfig, logger *zap.Logger) *Server {
	return &Server{
		engine:   engine,
		sessions: newSessionStore(),
		config:   cfg,
		logger:   logger,
	}
}

// Router builds the chi router. Exposed separately for handler tests.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(120 * time.Second))

	r.Post("/api/v1/sessions", s.handleCreateSession)
	r.Get("/api/v1/sessions/{id}", s.handleGetSession)
	r.Post("/api/v1/sessions/{id}/messages", s.handleMessage)
	r.Delete("/api/v1/sessions/{id}", s.handleEndSession)
	r.Get("/health", s.handleHealth)

	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.server = &http.Server{
		Addr:    addr,
		Handler: s.Router(),
	}
	s.logger.Info("Starting server", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
