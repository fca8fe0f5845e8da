// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package api exposes one player over HTTP: commands, snapshots, the
// transcript and a server-sent event stream.
package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/ManuGH/cuesync/internal/api/middleware"
	"github.com/ManuGH/cuesync/internal/health"
	"github.com/ManuGH/cuesync/internal/log"
	"github.com/ManuGH/cuesync/internal/player"
	"github.com/ManuGH/cuesync/internal/version"
)

// DefaultEventsPerSecond caps snapshot pushes on one event stream.
const DefaultEventsPerSecond = 4

// Config tunes the HTTP surface.
type Config struct {
	// RateLimit is the per-client request budget per minute; 0 disables it.
	RateLimit       int
	EventsPerSecond float64
	// TracingService names the tracer; empty disables request spans.
	TracingService string
	// Reloader, when set, re-reads the configuration on POST /api/config/reload.
	Reloader func(ctx context.Context) error
	// Health backs /healthz and /readyz; nil checks the player only.
	Health *health.Manager
}

// Server is the HTTP control surface of one player.
type Server struct {
	cfg    Config
	player *player.Player
	logger zerolog.Logger
	router chi.Router
}

// New builds the router for p.
func New(cfg Config, p *player.Player) *Server {
	if cfg.EventsPerSecond <= 0 {
		cfg.EventsPerSecond = DefaultEventsPerSecond
	}
	if cfg.Health == nil {
		cfg.Health = health.NewManager(version.Version, p.SessionID())
		cfg.Health.RegisterChecker(health.PlayerChecker{Player: p})
	}
	s := &Server{
		cfg:    cfg,
		player: p,
		logger: log.WithComponent("api"),
	}
	s.router = s.routes()
	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) routes() chi.Router {
	r := middleware.NewRouter(middleware.StackConfig{
		EnableMetrics:  true,
		TracingService: s.cfg.TracingService,
		EnableLogging:  true,
	})

	r.Get("/healthz", s.cfg.Health.ServeHealth)
	r.Get("/readyz", s.cfg.Health.ServeReady)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		if s.cfg.RateLimit > 0 {
			r.Use(middleware.RateLimit(middleware.RateLimitConfig{
				RequestLimit: s.cfg.RateLimit,
				WindowSize:   time.Minute,
			}))
		}

		r.Route("/player", func(r chi.Router) {
			r.Get("/", s.handleSnapshot)
			r.Post("/play", s.command(func(*http.Request) error { return s.player.Play() }))
			r.Post("/pause", s.command(func(*http.Request) error { return s.player.Pause() }))
			r.Post("/toggle", s.command(func(*http.Request) error { return s.player.TogglePlay() }))
			r.Post("/restart", s.command(func(*http.Request) error { return s.player.Restart() }))
			r.Post("/mute", s.command(func(*http.Request) error { return s.player.ToggleMute() }))
			r.Post("/rate", s.command(func(*http.Request) error {
				_, err := s.player.CycleRate()
				return err
			}))
			r.Post("/captions", s.command(func(*http.Request) error { return s.player.ToggleCaptions() }))
			r.Post("/descriptions", s.command(func(r *http.Request) error {
				return s.player.ToggleDescriptions(r.Context())
			}))
			r.Post("/description-priority", s.command(func(r *http.Request) error {
				return s.player.ToggleDescriptionPriority(r.Context())
			}))
			r.Post("/transcript", s.command(func(r *http.Request) error {
				return s.player.ToggleTranscript(r.Context())
			}))
			r.Post("/fullscreen", s.command(func(*http.Request) error { return s.player.ToggleFullscreen() }))
			r.Post("/reload", s.command(func(r *http.Request) error {
				return s.player.ReloadTracks(r.Context())
			}))
			r.Post("/seek", s.handleSeek)
			r.Post("/skip", s.handleSkip)
			r.Post("/volume", s.handleVolume)
			r.Post("/key", s.handleKey)
		})

		r.Get("/transcript", s.handleTranscript)
		r.Post("/transcript/{index}/activate", s.handleActivate)
		r.Get("/transcript/export", s.handleExport)
		r.Get("/events", s.handleEvents)

		if s.cfg.Reloader != nil {
			r.Post("/config/reload", s.handleConfigReload)
		}
	})
	return r
}

// ListenAndServe serves until ctx is done, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().
			Str(log.FieldEvent, "api.listening").
			Str("addr", addr).
			Msg("control surface listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("listen: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("listen: %w", err)
	}
	s.logger.Info().Str(log.FieldEvent, "api.stopped").Msg("control surface stopped")
	return nil
}
