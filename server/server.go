package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jrsteele09/go-sso-server/auth"
	"github.com/jrsteele09/go-sso-server/internal/config"
	"github.com/jrsteele09/go-sso-server/risk"
	"github.com/jrsteele09/go-sso-server/sessions"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Services are the domain components the HTTP surface dispatches to
type Services struct {
	Auth     *auth.AuthorizationService
	Sessions *sessions.Manager
	Access   *risk.Engine
	Repos    auth.Repos
}

// HealthCheck reports whether one backing dependency is reachable
type HealthCheck func(ctx context.Context) error

type Server struct {
	env      string // Environment (e.g., "DEV", "PROD")
	router   chi.Router
	config   config.Config
	auth     *auth.AuthorizationService
	sessions *sessions.Manager
	access   *risk.Engine
	repos    auth.Repos
	checks   map[string]HealthCheck
	logger   zerolog.Logger
}

type ServerOption func(*Server)

// WithHealthCheck adds a named dependency to GET /health
func WithHealthCheck(name string, check HealthCheck) ServerOption {
	return func(s *Server) {
		s.checks[name] = check
	}
}

func WithLogger(logger zerolog.Logger) ServerOption {
	return func(s *Server) {
		s.logger = logger
	}
}

func New(ctx context.Context, cfg config.Config, services Services, options ...ServerOption) (*Server, error) {
	if services.Auth == nil || services.Sessions == nil || services.Access == nil {
		return nil, errors.New("[server.New] auth, sessions and access services are required")
	}
	if services.Repos.Users == nil || services.Repos.Clients == nil {
		return nil, errors.New("[server.New] user and client repos are required")
	}

	s := &Server{
		env:      cfg.GetEnv(),
		config:   cfg,
		auth:     services.Auth,
		sessions: services.Sessions,
		access:   services.Access,
		repos:    services.Repos,
		checks:   make(map[string]HealthCheck),
		logger:   log.Logger,
	}
	for _, opt := range options {
		opt(s)
	}

	if err := s.InitialiseSystem(ctx); err != nil {
		return nil, fmt.Errorf("[server.New] failed to initialise the system: %w", err)
	}

	s.initRoutes()
	s.logRoutes()
	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// ListenAndServe runs the server until ctx is cancelled, then drains in-flight
// requests for up to shutdownTimeout.
func (s *Server) ListenAndServe(ctx context.Context, addr string, shutdownTimeout time.Duration) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", addr).Msg("listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("[Server.ListenAndServe] %w", err)
	case <-ctx.Done():
	}

	s.logger.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("[Server.ListenAndServe] shutdown: %w", err)
	}
	return nil
}

func (s *Server) logRoutes() {
	if s.env != "DEV" {
		return
	}
	_ = chi.Walk(s.router, func(method, route string, _ http.Handler, _ ...func(http.Handler) http.Handler) error {
		s.logRoute(method, route)
		return nil
	})
}

func (s *Server) logRoute(method, path string) {
	paddedMethod := fmt.Sprintf(" %-7s", method)
	color, ok := methodColors[method]
	if !ok {
		color = Gray
	}
	s.logger.Debug().Msgf("[%-19s] %s", color+paddedMethod+ResetColor, path)
}
