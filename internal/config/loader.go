// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Loader handles configuration loading with precedence
type Loader struct {
	configPath string
	version    string
	// ConsumedEnvKeys records every environment key the last Load read.
	ConsumedEnvKeys map[string]struct{}
}

// NewLoader creates a new configuration loader
func NewLoader(configPath, version string) *Loader {
	return &Loader{
		configPath:      configPath,
		version:         version,
		ConsumedEnvKeys: make(map[string]struct{}),
	}
}

// Path returns the configuration file path, or "" for ENV-only configuration.
func (l *Loader) Path() string {
	return l.configPath
}

// Load loads configuration with precedence: ENV > File > Defaults, then validates it.
func (l *Loader) Load() (AppConfig, error) {
	cfg := Defaults()

	if l.configPath != "" {
		if err := l.loadFile(l.configPath, &cfg); err != nil {
			return cfg, fmt.Errorf("load config file: %w", err)
		}
	}

	l.mergeEnv(&cfg)
	cfg.Version = l.version

	if err := Validate(cfg); err != nil {
		return cfg, fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	return cfg, nil
}

// loadFile decodes the YAML file over cfg with strict parsing: unknown
// fields are an error.
func (l *Loader) loadFile(path string, cfg *AppConfig) error {
	path = filepath.Clean(path)

	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".yaml" && ext != ".yml" {
		return fmt.Errorf("unsupported config format: %s (only YAML supported)", ext)
	}

	// #nosec G304 -- configuration file paths are provided by the operator via CLI/ENV
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read file: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		if strings.Contains(err.Error(), "field") && strings.Contains(err.Error(), "not found") {
			return fmt.Errorf("strict config parse error: %w: %v", ErrUnknownConfigField, err)
		}
		return fmt.Errorf("strict config parse error: %w", err)
	}

	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return fmt.Errorf("config file contains multiple documents or trailing content")
	}
	return nil
}

func (l *Loader) mergeEnv(cfg *AppConfig) {
	cfg.ListenAddr = l.envString("LISTEN", cfg.ListenAddr)
	cfg.Log.Level = l.envString("LOG_LEVEL", cfg.Log.Level)
	cfg.Log.Service = l.envString("LOG_SERVICE", cfg.Log.Service)

	cfg.Sources.Video = l.envString("VIDEO_SRC", cfg.Sources.Video)
	cfg.Sources.Captions = l.envString("CAPTIONS_SRC", cfg.Sources.Captions)
	cfg.Sources.Combined = l.envString("COMBINED_SRC", cfg.Sources.Combined)
	cfg.Sources.Root = l.envString("SOURCE_ROOT", cfg.Sources.Root)
	cfg.Sources.FetchTimeout = l.envDuration("FETCH_TIMEOUT", cfg.Sources.FetchTimeout)
	cfg.Sources.MaxBytes = l.envInt64("FETCH_MAX_BYTES", cfg.Sources.MaxBytes)
	cfg.Sources.Watch = l.envBool("WATCH_SOURCES", cfg.Sources.Watch)

	cfg.Player.TickInterval = l.envDuration("TICK_INTERVAL", cfg.Player.TickInterval)
	cfg.Player.SkipSeconds = l.envFloat("SKIP_SECONDS", cfg.Player.SkipSeconds)
	cfg.Player.MediaDuration = l.envFloat("MEDIA_DURATION", cfg.Player.MediaDuration)
	cfg.Player.Fullscreen = l.envBool("FULLSCREEN", cfg.Player.Fullscreen)

	cfg.Speech.Backend = l.envString("SPEECH_BACKEND", cfg.Speech.Backend)
	cfg.Speech.Command = l.envString("SPEECH_COMMAND", cfg.Speech.Command)
	cfg.Speech.Args = l.envFields("SPEECH_ARGS", cfg.Speech.Args)
	cfg.Speech.WordsPerMinute = l.envInt("SPEECH_WPM", cfg.Speech.WordsPerMinute)

	cfg.API.RateLimit = l.envInt("RATE_LIMIT", cfg.API.RateLimit)
	cfg.API.EventsPerSecond = l.envFloat("EVENTS_PER_SECOND", cfg.API.EventsPerSecond)

	cfg.Tracing.Enabled = l.envBool("TRACING_ENABLED", cfg.Tracing.Enabled)
	cfg.Tracing.Exporter = l.envString("TRACING_EXPORTER", cfg.Tracing.Exporter)
	cfg.Tracing.Endpoint = l.envString("TRACING_ENDPOINT", cfg.Tracing.Endpoint)
	cfg.Tracing.SamplingRate = l.envFloat("TRACING_SAMPLING_RATE", cfg.Tracing.SamplingRate)
}

func (l *Loader) consume(key string) string {
	key = EnvPrefix + key
	l.ConsumedEnvKeys[key] = struct{}{}
	return key
}

func (l *Loader) envString(key, def string) string {
	return ParseString(l.consume(key), def)
}

func (l *Loader) envBool(key string, def bool) bool {
	return ParseBool(l.consume(key), def)
}

func (l *Loader) envInt(key string, def int) int {
	return ParseInt(l.consume(key), def)
}

func (l *Loader) envInt64(key string, def int64) int64 {
	return ParseInt64(l.consume(key), def)
}

func (l *Loader) envFloat(key string, def float64) float64 {
	return ParseFloat(l.consume(key), def)
}

func (l *Loader) envDuration(key string, def time.Duration) time.Duration {
	return ParseDuration(l.consume(key), def)
}

func (l *Loader) envFields(key string, def []string) []string {
	return ParseFields(l.consume(key), def)
}
