// Package api exposes the preference services over HTTP: theme, language,
// consent and telemetry intake, a raw preference dump, a websocket change
// stream and Prometheus metrics.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/CreativeUnicorns/suiteprefs"
	"github.com/CreativeUnicorns/suiteprefs/document"
	"github.com/CreativeUnicorns/suiteprefs/i18n"
	"github.com/CreativeUnicorns/suiteprefs/telemetry"
	"github.com/CreativeUnicorns/suiteprefs/theme"
)

// Server holds the dependencies for the HTTP server.
type Server struct {
	store     *suiteprefs.Store
	theme     *theme.Service
	i18n      *i18n.Service
	analytics *telemetry.Analytics
	errors    *telemetry.ErrorTracker
	root      *document.Root
	logger    suiteprefs.Logger

	router     *chi.Mux
	httpServer *http.Server
	hub        *Hub
	metrics    *metrics
	registry   *prometheus.Registry
	detach     []func()
}

// Config holds configuration for the API server.
type Config struct {
	ListenAddress string
	ReadTimeout   time.Duration
	WriteTimeout  time.Duration

	Store     *suiteprefs.Store
	Theme     *theme.Service
	I18n      *i18n.Service
	Analytics *telemetry.Analytics
	Errors    *telemetry.ErrorTracker
	Root      *document.Root
	Logger    suiteprefs.Logger
	// Registry receives the HTTP metrics and is served on /metrics. A fresh
	// registry is used when nil.
	Registry *prometheus.Registry
}

// NewServer creates and configures a new API server instance.
func NewServer(cfg Config) (*Server, error) {
	switch {
	case cfg.Store == nil:
		return nil, errors.New("store is required")
	case cfg.Theme == nil:
		return nil, errors.New("theme service is required")
	case cfg.I18n == nil:
		return nil, errors.New("i18n service is required")
	case cfg.Analytics == nil:
		return nil, errors.New("analytics service is required")
	case cfg.Errors == nil:
		return nil, errors.New("error tracker is required")
	case cfg.Root == nil:
		return nil, errors.New("document root is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = cfg.Store.Logger()
	}
	if cfg.ListenAddress == "" {
		cfg.ListenAddress = ":8080"
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 15 * time.Second
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = 15 * time.Second
	}
	if cfg.Registry == nil {
		cfg.Registry = prometheus.NewRegistry()
	}

	m, err := newMetrics(cfg.Registry)
	if err != nil {
		return nil, err
	}

	s := &Server{
		store:     cfg.Store,
		theme:     cfg.Theme,
		i18n:      cfg.I18n,
		analytics: cfg.Analytics,
		errors:    cfg.Errors,
		root:      cfg.Root,
		logger:    cfg.Logger,
		router:    chi.NewRouter(),
		hub:       NewHub(cfg.Logger),
		metrics:   m,
		registry:  cfg.Registry,
	}

	s.detach = append(s.detach,
		s.theme.Subscribe(func(st theme.State) {
			s.hub.Broadcast(newMessage(MessageThemeChanged, st))
		}),
		s.i18n.Subscribe(func(lang i18n.Language) {
			s.hub.Broadcast(newMessage(MessageLanguageChanged, languageInfo{Code: lang, Name: i18n.LanguageName(lang)}))
		}),
	)

	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:         cfg.ListenAddress,
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	return s, nil
}

// Handler returns the root handler, for embedding or tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Hub returns the change stream hub.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Start runs the HTTP server and blocks until it is shut down.
// A graceful shutdown returns nil.
func (s *Server) Start() error {
	s.logger.Info("API server starting", "address", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("could not start server: %w", err)
	}
	return nil
}

// Stop detaches from the services, closes the stream clients and gracefully
// shuts down the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("API server stopping")
	for _, fn := range s.detach {
		fn()
	}
	s.detach = nil
	s.hub.CloseAll()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	s.logger.Info("API server stopped gracefully")
	return nil
}
