// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package config loads the daemon configuration with precedence
// ENV > YAML file > defaults, and supports hot reload of the file.
package config

import "time"

// AppConfig is the complete daemon configuration.
type AppConfig struct {
	Version    string        `yaml:"-"`
	ListenAddr string        `yaml:"listenAddr"`
	Log        LogConfig     `yaml:"log"`
	Sources    SourcesConfig `yaml:"sources"`
	Player     PlayerConfig  `yaml:"player"`
	Speech     SpeechConfig  `yaml:"speech"`
	API        APIConfig     `yaml:"api"`
	Tracing    TracingConfig `yaml:"tracing"`
}

type LogConfig struct {
	Level   string `yaml:"level"`
	Service string `yaml:"service"`
}

// SourcesConfig names the media and cue files of the hosted player.
type SourcesConfig struct {
	Video        string        `yaml:"video"`
	Captions     string        `yaml:"captions"`
	Combined     string        `yaml:"combined"`
	Root         string        `yaml:"root"`
	FetchTimeout time.Duration `yaml:"fetchTimeout"`
	MaxBytes     int64         `yaml:"maxBytes"`
	Watch        bool          `yaml:"watch"`
}

type PlayerConfig struct {
	TickInterval time.Duration `yaml:"tickInterval"`
	SkipSeconds  float64       `yaml:"skipSeconds"`
	Rates        []float64     `yaml:"rates"`
	// MediaDuration is the length of the simulated media element in seconds.
	MediaDuration float64 `yaml:"mediaDuration"`
	Fullscreen    bool    `yaml:"fullscreen"`
}

const (
	SpeechBackendPaced   = "paced"
	SpeechBackendCommand = "command"
)

type SpeechConfig struct {
	Backend        string        `yaml:"backend"`
	Command        string        `yaml:"command"`
	Args           []string      `yaml:"args"`
	WordsPerMinute int           `yaml:"wordsPerMinute"`
	Grace          time.Duration `yaml:"grace"`
}

type APIConfig struct {
	// RateLimit is the per-client request budget per minute; 0 disables it.
	RateLimit       int     `yaml:"rateLimit"`
	EventsPerSecond float64 `yaml:"eventsPerSecond"`
}

type TracingConfig struct {
	Enabled      bool    `yaml:"enabled"`
	Exporter     string  `yaml:"exporter"`
	Endpoint     string  `yaml:"endpoint"`
	SamplingRate float64 `yaml:"samplingRate"`
}

// Defaults returns the built-in configuration.
func Defaults() AppConfig {
	return AppConfig{
		ListenAddr: ":8088",
		Log: LogConfig{
			Level:   "info",
			Service: "cuesync",
		},
		Sources: SourcesConfig{
			FetchTimeout: 10 * time.Second,
			MaxBytes:     4 << 20,
		},
		Player: PlayerConfig{
			TickInterval:  250 * time.Millisecond,
			SkipSeconds:   10,
			Rates:         []float64{0.75, 1.0, 1.25, 1.5},
			MediaDuration: 600,
		},
		Speech: SpeechConfig{
			Backend:        SpeechBackendPaced,
			WordsPerMinute: 160,
			Grace:          2 * time.Second,
		},
		API: APIConfig{
			RateLimit:       600,
			EventsPerSecond: 4,
		},
		Tracing: TracingConfig{
			Exporter:     "grpc",
			Endpoint:     "localhost:4317",
			SamplingRate: 1.0,
		},
	}
}
