// Package http exposes the prediction pipeline over HTTP.
package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// ServerConfig holds server tunables.
type ServerConfig struct {
	Port           int      `yaml:"port"`
	TimeoutSeconds int      `yaml:"timeout_seconds"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// DefaultServerConfig returns the stock server settings.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Port:           8080,
		TimeoutSeconds: 30,
		AllowedOrigins: []string{"*"},
	}
}

// Server is the HTTP front end.
type Server struct {
	server *http.Server
	logger *zap.Logger
}

// NewServer wires the API behind the middleware chain.
func NewServer(config ServerConfig, api *API, logger *zap.Logger) *Server {
	if config.Port == 0 {
		config.Port = 8080
	}
	if config.TimeoutSeconds == 0 {
		config.TimeoutSeconds = 30
	}
	if len(config.AllowedOrigins) == 0 {
		config.AllowedOrigins = []string{"*"}
	}
	timeout := time.Duration(config.TimeoutSeconds) * time.Second

	mux := http.NewServeMux()
	api.Register(mux)

	chain := Chain(
		RecoveryMiddleware(logger),
		LoggerMiddleware(logger),
		CORSMiddleware(config.AllowedOrigins),
		TimeoutMiddleware(timeout),
	)

	return &Server{
		server: &http.Server{
			Addr:         fmt.Sprintf(":%d", config.Port),
			Handler:      chain(mux),
			ReadTimeout:  timeout,
			WriteTimeout: timeout,
			IdleTimeout:  120 * time.Second,
		},
		logger: logger,
	}
}

// Start blocks serving until shutdown.
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", zap.String("addr", s.server.Addr))
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}

// Stop drains connections and shuts the server down.
func (s *Server) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.logger.Info("shutting down HTTP server")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	return nil
}

// Addr returns the listen address.
func (s *Server) Addr() string { return s.server.Addr }
