package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"
	"github.com/tarungka/sluice/checkpoint"
)

// Server exposes the running tasks over HTTP: aggregate watermark and
// idle/active status per task, per-channel detail, and checkpoint
// metadata.
type Server struct {
	registry *Registry
	store    *checkpoint.Store

	httpServer *http.Server
}

// New creates a server on addr. store may be nil when checkpointing is
// disabled; the /checkpoints routes are then not mounted.
func New(addr string, registry *Registry, store *checkpoint.Store) *Server {
	s := &Server{
		registry: registry,
		store:    store,
	}
	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: s.Router(),
	}
	return s
}

// Router builds the route tree. Exposed for tests.
func (s *Server) Router() chi.Router {
	router := chi.NewRouter()

	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	router.Use(middleware.Heartbeat("/health"))
	router.Use(middleware.CleanPath)
	router.Use(middleware.RequestID)

	router.Mount("/tasks", TaskRouter(s.registry))
	if s.store != nil {
		router.Mount("/checkpoints", CheckpointRouter(s.store))
	}

	return router
}

// Start runs the server until Shutdown is called. It blocks.
func (s *Server) Start() error {
	log.Info().Str("addr", s.httpServer.Addr).Msg("http server listening")
	err := s.httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
