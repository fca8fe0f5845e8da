// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cuesync.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestDefaultsAreValid(t *testing.T) {
	require.NoError(t, Validate(Defaults()))
}

func TestLoad_DefaultsOnly(t *testing.T) {
	cfg, err := NewLoader("", "v1.2.3").Load()
	require.NoError(t, err)
	assert.Equal(t, ":8088", cfg.ListenAddr)
	assert.Equal(t, "v1.2.3", cfg.Version)
	assert.Equal(t, []float64{0.75, 1.0, 1.25, 1.5}, cfg.Player.Rates)
	assert.Equal(t, SpeechBackendPaced, cfg.Speech.Backend)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
listenAddr: "127.0.0.1:9000"
sources:
  captions: media/captions.vtt
  combined: media/combined.vtt
player:
  skipSeconds: 5
  rates: [1, 2]
speech:
  wordsPerMinute: 200
`)
	cfg, err := NewLoader(path, "dev").Load()
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:9000", cfg.ListenAddr)
	assert.Equal(t, "media/captions.vtt", cfg.Sources.Captions)
	assert.Equal(t, "media/combined.vtt", cfg.Sources.Combined)
	assert.Equal(t, 5.0, cfg.Player.SkipSeconds)
	assert.Equal(t, []float64{1, 2}, cfg.Player.Rates)
	assert.Equal(t, 200, cfg.Speech.WordsPerMinute)
	// Untouched keys keep their defaults.
	assert.Equal(t, 250*time.Millisecond, cfg.Player.TickInterval)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "listenAddr: \":9000\"\nplayer:\n  skipSeconds: 5\n")
	t.Setenv("CUESYNC_LISTEN", ":9100")
	t.Setenv("CUESYNC_SKIP_SECONDS", "15")
	t.Setenv("CUESYNC_SPEECH_ARGS", "-v en {text}")
	t.Setenv("CUESYNC_FETCH_TIMEOUT", "3s")

	l := NewLoader(path, "dev")
	cfg, err := l.Load()
	require.NoError(t, err)
	assert.Equal(t, ":9100", cfg.ListenAddr)
	assert.Equal(t, 15.0, cfg.Player.SkipSeconds)
	assert.Equal(t, []string{"-v", "en", "{text}"}, cfg.Speech.Args)
	assert.Equal(t, 3*time.Second, cfg.Sources.FetchTimeout)
	assert.Contains(t, l.ConsumedEnvKeys, "CUESYNC_LISTEN")
}

func TestLoad_InvalidEnvFallsBack(t *testing.T) {
	t.Setenv("CUESYNC_SPEECH_WPM", "fast")
	t.Setenv("CUESYNC_WATCH_SOURCES", "maybe")
	cfg, err := NewLoader("", "dev").Load()
	require.NoError(t, err)
	assert.Equal(t, 160, cfg.Speech.WordsPerMinute)
	assert.False(t, cfg.Sources.Watch)
}

func TestLoad_UnknownFieldRejected(t *testing.T) {
	path := writeConfig(t, "listenAddr: \":9000\"\nbogus: true\n")
	_, err := NewLoader(path, "dev").Load()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownConfigField)
}

func TestLoad_MultipleDocumentsRejected(t *testing.T) {
	path := writeConfig(t, "listenAddr: \":9000\"\n---\nlistenAddr: \":9001\"\n")
	_, err := NewLoader(path, "dev").Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "multiple documents")
}

func TestLoad_EmptyFileUsesDefaults(t *testing.T) {
	path := writeConfig(t, "")
	cfg, err := NewLoader(path, "dev").Load()
	require.NoError(t, err)
	assert.Equal(t, ":8088", cfg.ListenAddr)
}

func TestLoad_UnsupportedExtension(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cuesync.json")
	require.NoError(t, os.WriteFile(path, []byte("{}"), 0o600))
	_, err := NewLoader(path, "dev").Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported config format")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*AppConfig)
		field  string
	}{
		{"bad log level", func(c *AppConfig) { c.Log.Level = "loud" }, "Log.Level"},
		{"missing port", func(c *AppConfig) { c.ListenAddr = "localhost" }, "ListenAddr"},
		{"bad source scheme", func(c *AppConfig) { c.Sources.Captions = "ftp://host/a.vtt" }, "Sources.Captions"},
		{"no rates", func(c *AppConfig) { c.Player.Rates = nil }, "Player.Rates"},
		{"rate out of range", func(c *AppConfig) { c.Player.Rates = []float64{1, 9} }, "Player.Rates[1]"},
		{"command without path", func(c *AppConfig) { c.Speech.Backend = SpeechBackendCommand }, "Speech.Command"},
		{"unknown backend", func(c *AppConfig) { c.Speech.Backend = "robot" }, "Speech.Backend"},
		{"missing root", func(c *AppConfig) { c.Sources.Root = filepath.Join(os.TempDir(), "does-not-exist-cuesync") }, "Sources.Root"},
		{"tracing exporter", func(c *AppConfig) { c.Tracing.Enabled = true; c.Tracing.Exporter = "zipkin" }, "Tracing.Exporter"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(&cfg)
			err := Validate(cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.field)
		})
	}
}

func TestLoad_InvalidWrapsErrInvalid(t *testing.T) {
	t.Setenv("CUESYNC_LOG_LEVEL", "loud")
	_, err := NewLoader("", "dev").Load()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestHolder_ReloadKeepsOldOnFailure(t *testing.T) {
	path := writeConfig(t, "player:\n  skipSeconds: 5\n")
	l := NewLoader(path, "dev")
	initial, err := l.Load()
	require.NoError(t, err)

	h := NewHolder(initial, l)
	ch := make(chan AppConfig, 1)
	h.RegisterListener(ch)

	require.NoError(t, os.WriteFile(path, []byte("player:\n  skipSeconds: 20\n"), 0o600))
	require.NoError(t, h.Reload(context.Background()))
	assert.Equal(t, 20.0, h.Get().Player.SkipSeconds)
	got := <-ch
	assert.Equal(t, 20.0, got.Player.SkipSeconds)

	require.NoError(t, os.WriteFile(path, []byte("player:\n  skipSeconds: 9999\n"), 0o600))
	require.Error(t, h.Reload(context.Background()))
	assert.Equal(t, 20.0, h.Get().Player.SkipSeconds)
}

func TestHolder_NotifySkipsFullListener(t *testing.T) {
	h := NewHolder(Defaults(), NewLoader("", "dev"))
	ch := make(chan AppConfig)
	h.RegisterListener(ch)
	require.NoError(t, h.Reload(context.Background()))
}

func TestHolder_WatchReloadsOnWrite(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	path := writeConfig(t, "player:\n  skipSeconds: 5\n")
	l := NewLoader(path, "dev")
	initial, err := l.Load()
	require.NoError(t, err)
	h := NewHolder(initial, l)
	h.debounce = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.Watch(ctx) }()

	// Give the watcher time to register before writing.
	time.Sleep(50 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte("player:\n  skipSeconds: 30\n"), 0o600))

	assert.Eventually(t, func() bool {
		return h.Get().Player.SkipSeconds == 30
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
	// Let a pending debounce callback finish before the leak check.
	time.Sleep(30 * time.Millisecond)
}

func TestHolder_WatchWithoutFileIsNoop(t *testing.T) {
	h := NewHolder(Defaults(), NewLoader("", "dev"))
	require.NoError(t, h.Watch(context.Background()))
}
