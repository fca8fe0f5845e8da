// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"fmt"

	"github.com/ManuGH/cuesync/internal/validate"
)

// Validate validates an AppConfig using the centralized validation package.
func Validate(cfg AppConfig) error {
	v := validate.New()

	v.ListenAddr("ListenAddr", cfg.ListenAddr)
	v.OneOf("Log.Level", cfg.Log.Level, validate.LogLevels())

	v.SourceRef("Sources.Video", cfg.Sources.Video)
	v.SourceRef("Sources.Captions", cfg.Sources.Captions)
	v.SourceRef("Sources.Combined", cfg.Sources.Combined)
	if cfg.Sources.Root != "" {
		v.Directory("Sources.Root", cfg.Sources.Root)
	}
	if cfg.Sources.FetchTimeout <= 0 {
		v.AddError("Sources.FetchTimeout", "must be positive", cfg.Sources.FetchTimeout)
	}
	if cfg.Sources.MaxBytes <= 0 {
		v.AddError("Sources.MaxBytes", "must be positive", cfg.Sources.MaxBytes)
	}

	if cfg.Player.TickInterval <= 0 {
		v.AddError("Player.TickInterval", "must be positive", cfg.Player.TickInterval)
	}
	v.RangeFloat("Player.SkipSeconds", cfg.Player.SkipSeconds, 1, 600)
	v.RangeFloat("Player.MediaDuration", cfg.Player.MediaDuration, 1, 24*3600)
	if len(cfg.Player.Rates) == 0 {
		v.AddError("Player.Rates", "at least one playback rate is required", cfg.Player.Rates)
	}
	for i, r := range cfg.Player.Rates {
		v.RangeFloat(fmt.Sprintf("Player.Rates[%d]", i), r, 0.25, 4)
	}

	v.OneOf("Speech.Backend", cfg.Speech.Backend, []string{SpeechBackendPaced, SpeechBackendCommand})
	if cfg.Speech.Backend == SpeechBackendCommand {
		v.NotEmpty("Speech.Command", cfg.Speech.Command)
	}
	v.Range("Speech.WordsPerMinute", cfg.Speech.WordsPerMinute, 40, 600)

	if cfg.API.RateLimit < 0 {
		v.AddError("API.RateLimit", "cannot be negative", cfg.API.RateLimit)
	}
	v.RangeFloat("API.EventsPerSecond", cfg.API.EventsPerSecond, 0.1, 100)

	if cfg.Tracing.Enabled {
		v.OneOf("Tracing.Exporter", cfg.Tracing.Exporter, []string{"grpc", "http"})
		v.NotEmpty("Tracing.Endpoint", cfg.Tracing.Endpoint)
		v.RangeFloat("Tracing.SamplingRate", cfg.Tracing.SamplingRate, 0, 1)
	}

	return v.Err()
}
