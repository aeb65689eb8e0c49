package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/prashantji77/youtube-video-summarizer/internal/config"
	"github.com/prashantji77/youtube-video-summarizer/internal/handlers"
)

// Handlers are the endpoints the server routes to. History is nil when the
// history store is disabled.
type Handlers struct {
	Ask     *handlers.AskHandler
	History *handlers.HistoryHandler
}

// Server manages the HTTP server and routes
type Server struct {
	cfg      *config.ServerConfig
	handlers Handlers
	router   *http.ServeMux
	server   *http.Server
}

func New(cfg *config.ServerConfig, h Handlers) *Server {
	s := &Server{
		cfg:      cfg,
		handlers: h,
	}
	s.router = s.setupRoutes()

	s.server = &http.Server{
		Addr:         s.Addr(),
		Handler:      s.withMiddleware(s.router),
		ReadTimeout:  time.Duration(cfg.ReadTimeoutSecs) * time.Second,
		WriteTimeout: time.Duration(cfg.WriteTimeoutSecs) * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

func (s *Server) Addr() string {
	return net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
}

// Handler returns the routed handler with middleware applied.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Start blocks serving HTTP until Shutdown is called.
func (s *Server) Start() error {
	log.Info().
		Str("address", s.Addr()).
		Bool("history", s.handlers.History != nil).
		Msg("HTTP server starting")
	log.Info().
		Str("url", fmt.Sprintf("http://%s/api/ask-video/", s.Addr())).
		Msg("Browser extension endpoint")

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	log.Info().Msg("Shutting down HTTP server...")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	log.Info().Msg("HTTP server stopped")
	return nil
}
