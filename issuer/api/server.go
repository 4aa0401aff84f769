// Package api serves the passport node HTTP endpoints.
package api

import (
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

// Server provides HTTP endpoints
type Server struct {
	logger   zerolog.Logger
	service  PassportService
	validate *validator.Validate
	server   *http.Server
}

// NewServer creates a new Server instance. rateLimit uses the limiter
// format, e.g. "120-M"; an empty value disables rate limiting.
func NewServer(logger zerolog.Logger, port int, service PassportService, rateLimit string) (*Server, error) {
	if service == nil {
		return nil, fmt.Errorf("passport service is nil")
	}

	s := &Server{
		logger:   logger.With().Str("component", "api").Logger(),
		service:  service,
		validate: newValidator(),
	}

	handler, err := s.setupRoutes(rateLimit)
	if err != nil {
		return nil, err
	}

	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return s, nil
}

// Handler returns the root handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Start starts the HTTP server
func (s *Server) Start() error {
	if s.server == nil {
		return fmt.Errorf("api server is nil")
	}

	startupChan := make(chan error, 1)

	go func() {
		// Bind first so a busy port is reported to the caller
		ln, err := net.Listen("tcp", s.server.Addr)
		if err != nil {
			startupChan <- fmt.Errorf("failed to bind to address %s: %w", s.server.Addr, err)
			return
		}

		startupChan <- nil
		s.logger.Info().Str("addr", ln.Addr().String()).Msg("API server listening")

		err = s.server.Serve(ln)
		switch err {
		case nil:
			s.logger.Info().Msg("API server stopped normally")
		case http.ErrServerClosed:
			s.logger.Info().Msg("API server closed gracefully")
		default:
			s.logger.Error().Err(err).Msg("API server error")
		}
	}()

	select {
	case err := <-startupChan:
		return err
	case <-time.After(5 * time.Second):
		return fmt.Errorf("server startup timeout")
	}
}

// Stop gracefully shuts down the HTTP server
func (s *Server) Stop() error {
	if s.server != nil {
		return s.server.Close()
	}
	return nil
}
