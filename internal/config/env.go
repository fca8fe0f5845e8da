// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/ManuGH/cuesync/internal/log"
)

// EnvPrefix is the prefix of every environment key the loader reads.
const EnvPrefix = "CUESYNC_"

func envLogger() zerolog.Logger {
	return log.WithComponent("config")
}

// lookup returns the variable value, treating empty as unset and logging the default.
func lookup(logger zerolog.Logger, key string, def any) (string, bool) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		logger.Debug().
			Str("key", key).
			Interface("default", def).
			Str("source", "default").
			Msg("using default value")
		return "", false
	}
	return v, true
}

func fromEnv(logger zerolog.Logger, key string, value any) {
	logger.Debug().
		Str("key", key).
		Interface("value", value).
		Str("source", "environment").
		Msg("using environment variable")
}

func invalid(logger zerolog.Logger, key, raw, kind string, def any) {
	logger.Warn().
		Str("key", key).
		Str("value", raw).
		Interface("default", def).
		Msgf("invalid %s in environment variable, using default", kind)
}

// ParseString reads a string from environment variable or returns default value.
// It logs the source (environment or default) for observability.
func ParseString(key, defaultValue string) string {
	logger := envLogger()
	v, ok := lookup(logger, key, defaultValue)
	if !ok {
		return defaultValue
	}
	fromEnv(logger, key, v)
	return v
}

// ParseInt reads an integer from environment variable or returns default value.
// It validates the input and falls back to default on parse errors.
func ParseInt(key string, defaultValue int) int {
	logger := envLogger()
	v, ok := lookup(logger, key, defaultValue)
	if !ok {
		return defaultValue
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		invalid(logger, key, v, "integer", defaultValue)
		return defaultValue
	}
	fromEnv(logger, key, i)
	return i
}

// ParseInt64 is ParseInt for 64-bit sizes.
func ParseInt64(key string, defaultValue int64) int64 {
	logger := envLogger()
	v, ok := lookup(logger, key, defaultValue)
	if !ok {
		return defaultValue
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		invalid(logger, key, v, "integer", defaultValue)
		return defaultValue
	}
	fromEnv(logger, key, i)
	return i
}

// ParseFloat reads a float64 from environment variable or returns default value.
func ParseFloat(key string, defaultValue float64) float64 {
	logger := envLogger()
	v, ok := lookup(logger, key, defaultValue)
	if !ok {
		return defaultValue
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		invalid(logger, key, v, "float", defaultValue)
		return defaultValue
	}
	fromEnv(logger, key, f)
	return f
}

// ParseDuration reads a duration in Go duration format (e.g. "5s").
func ParseDuration(key string, defaultValue time.Duration) time.Duration {
	logger := envLogger()
	v, ok := lookup(logger, key, defaultValue)
	if !ok {
		return defaultValue
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		invalid(logger, key, v, "duration", defaultValue)
		return defaultValue
	}
	fromEnv(logger, key, d)
	return d
}

// ParseBool reads a boolean from environment variable or returns default value.
// It accepts "true", "false", "1", "0", "yes", "no" (case-insensitive).
func ParseBool(key string, defaultValue bool) bool {
	logger := envLogger()
	v, ok := lookup(logger, key, defaultValue)
	if !ok {
		return defaultValue
	}
	switch strings.ToLower(v) {
	case "true", "1", "yes":
		fromEnv(logger, key, true)
		return true
	case "false", "0", "no":
		fromEnv(logger, key, false)
		return false
	default:
		invalid(logger, key, v, "boolean", defaultValue)
		return defaultValue
	}
}

// ParseFields reads a whitespace-separated list.
func ParseFields(key string, defaultValue []string) []string {
	logger := envLogger()
	v, ok := lookup(logger, key, defaultValue)
	if !ok {
		return defaultValue
	}
	fields := strings.Fields(v)
	fromEnv(logger, key, fields)
	return fields
}
