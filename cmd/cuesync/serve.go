// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/ManuGH/cuesync/internal/api"
	"github.com/ManuGH/cuesync/internal/config"
	"github.com/ManuGH/cuesync/internal/health"
	"github.com/ManuGH/cuesync/internal/log"
	"github.com/ManuGH/cuesync/internal/media"
	"github.com/ManuGH/cuesync/internal/player"
	"github.com/ManuGH/cuesync/internal/resilience"
	"github.com/ManuGH/cuesync/internal/source"
	"github.com/ManuGH/cuesync/internal/speech"
	"github.com/ManuGH/cuesync/internal/telemetry"
	"github.com/ManuGH/cuesync/internal/version"
)

func newServeCmd() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Host one player behind the HTTP control surface",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, configPath)
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "", "path to config file (YAML); ENV-only when empty")
	return cmd
}

func serve(ctx context.Context, configPath string) error {
	logger := log.WithComponent("daemon")

	loader := config.NewLoader(configPath, version.Version)
	cfg, err := loader.Load()
	if err != nil {
		logger.Error().
			Err(err).
			Str(log.FieldEvent, "config.load_failed").
			Str(log.FieldPath, configPath).
			Msg("failed to load configuration")
		return err
	}
	configureLogging(cfg)
	logger = log.WithComponent("daemon")
	logger.Info().
		Str(log.FieldEvent, "config.loaded").
		Str(log.FieldPath, configPath).
		Str("version", version.Version).
		Msg("configuration loaded")

	tp, err := telemetry.NewProvider(ctx, telemetry.Config{
		Enabled:        cfg.Tracing.Enabled,
		ServiceName:    cfg.Log.Service,
		ServiceVersion: version.Version,
		ExporterType:   cfg.Tracing.Exporter,
		Endpoint:       cfg.Tracing.Endpoint,
		SamplingRate:   cfg.Tracing.SamplingRate,
	})
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(shutdownCtx); err != nil {
			logger.Warn().Err(err).Str(log.FieldEvent, "telemetry.shutdown_failed").Msg("tracer shutdown failed")
		}
	}()

	element := media.NewSimulated(media.SimulatedConfig{
		Duration:     cfg.Player.MediaDuration,
		TickInterval: cfg.Player.TickInterval,
		TextTracks:   1,
	})

	synth, closeSynth := newSynthesizer(cfg.Speech, logger)
	defer closeSynth()

	breaker := resilience.NewBreaker("http_sources", resilience.DefaultThreshold, resilience.DefaultResetTimeout)
	mux := &source.Mux{
		HTTP: &resilience.Fetcher{
			Upstream: source.NewHTTPFetcher(cfg.Sources.FetchTimeout, cfg.Sources.MaxBytes),
			Breaker:  breaker,
		},
		File: &source.FileFetcher{Root: sourceRoot(cfg.Sources), MaxBytes: cfg.Sources.MaxBytes},
	}

	p, err := player.New(player.Config{
		Captions:    cfg.Sources.Captions,
		Combined:    cfg.Sources.Combined,
		SkipSeconds: cfg.Player.SkipSeconds,
		Rates:       cfg.Player.Rates,
	}, player.Deps{
		Element:      element,
		Presentation: &media.Headless{Capable: cfg.Player.Fullscreen},
		Synthesizer:  synth,
		Loader:       source.NewLoader(mux),
	})
	if err != nil {
		return fmt.Errorf("create player: %w", err)
	}
	defer p.Close()

	reload := func() {
		if err := p.ReloadTracks(ctx); err != nil {
			logger.Warn().Err(err).
				Str(log.FieldEvent, "player.reload_failed").
				Msg("cue tracks not fully loaded; player stays controllable")
		}
	}
	reload()

	holder := config.NewHolder(cfg, loader)
	updates := make(chan config.AppConfig, 1)
	holder.RegisterListener(updates)

	hm := newHealthManager(p, mux, cfg.Sources, breaker)

	tracing := ""
	if cfg.Tracing.Enabled {
		tracing = cfg.Log.Service
	}
	srv := api.New(api.Config{
		RateLimit:       cfg.API.RateLimit,
		EventsPerSecond: cfg.API.EventsPerSecond,
		TracingService:  tracing,
		Reloader:        holder.Reload,
		Health:          hm,
	}, p)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		element.Run(gctx)
		return nil
	})
	g.Go(func() error {
		return srv.ListenAndServe(gctx, cfg.ListenAddr)
	})
	g.Go(func() error {
		return holder.Watch(gctx)
	})
	g.Go(func() error {
		for {
			select {
			case <-gctx.Done():
				return nil
			case next := <-updates:
				configureLogging(next)
				p.SetSources(next.Sources.Captions, next.Sources.Combined)
				reload()
			}
		}
	})
	if cfg.Sources.Watch {
		w, err := newSourceWatcher(mux, cfg.Sources, reload)
		if err != nil {
			logger.Warn().Err(err).
				Str(log.FieldEvent, "source.watch_disabled").
				Msg("source watcher not started")
		} else if w != nil {
			g.Go(func() error {
				w.Run(gctx)
				return nil
			})
		}
	}

	logger.Info().
		Str(log.FieldEvent, "daemon.started").
		Str("listen", cfg.ListenAddr).
		Str(log.FieldSessionID, p.SessionID()).
		Msg("cuesync started")

	err = g.Wait()
	logger.Info().Str(log.FieldEvent, "daemon.stopped").Msg("cuesync stopped")
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func configureLogging(cfg config.AppConfig) {
	log.Configure(log.Config{
		Level:   cfg.Log.Level,
		Service: cfg.Log.Service,
		Version: version.Version,
	})
}

// newSynthesizer builds the configured speech backend. A missing command
// falls back to paced narration so description priority keeps working.
func newSynthesizer(cfg config.SpeechConfig, logger zerolog.Logger) (speech.Synthesizer, func()) {
	paced := speech.NewPaced(cfg.WordsPerMinute, speech.RealAfterFunc)
	if cfg.Backend != config.SpeechBackendCommand {
		return paced, paced.CancelAll
	}
	c, err := speech.NewCommand(speech.CommandConfig{
		Path:  cfg.Command,
		Args:  cfg.Args,
		Grace: cfg.Grace,
	})
	if err != nil {
		logger.Warn().Err(err).
			Str(log.FieldEvent, "speech.fallback").
			Str("command", cfg.Command).
			Msg("speech command unavailable, using paced narration")
		return paced, paced.CancelAll
	}
	return c, c.Close
}

func sourceRoot(cfg config.SourcesConfig) string {
	if cfg.Root == "" {
		return "."
	}
	return cfg.Root
}

// newSourceWatcher watches the local cue files; it returns nil when every
// source is remote.
func newSourceWatcher(mux *source.Mux, cfg config.SourcesConfig, onChange func()) (*source.Watcher, error) {
	var paths []string
	for _, ref := range []string{cfg.Captions, cfg.Combined} {
		if ref == "" {
			continue
		}
		if p, ok := mux.LocalPath(ref); ok {
			paths = append(paths, p)
		}
	}
	if len(paths) == 0 {
		return nil, nil
	}
	return source.NewWatcher(paths, source.DefaultDebounce, onChange)
}

// newHealthManager checks the player, every local cue file and the remote
// source breaker.
func newHealthManager(p *player.Player, mux *source.Mux, cfg config.SourcesConfig, b *resilience.Breaker) *health.Manager {
	hm := health.NewManager(version.Version, p.SessionID())
	hm.RegisterChecker(health.PlayerChecker{Player: p})
	for role, ref := range map[string]string{source.RoleCaptions: cfg.Captions, source.RoleCombined: cfg.Combined} {
		if path, ok := mux.LocalPath(ref); ok && ref != "" {
			hm.RegisterChecker(health.NewFileChecker(role+"_file", path))
		}
	}
	hm.RegisterChecker(health.NewBreakerChecker("http_sources", b))
	return hm
}
