// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/ManuGH/cuesync/internal/clock"
	"github.com/ManuGH/cuesync/internal/health"
	"github.com/ManuGH/cuesync/internal/media"
	"github.com/ManuGH/cuesync/internal/player"
	"github.com/ManuGH/cuesync/internal/source"
)

const captionsText = `WEBVTT

1
00:00:00.000 --> 00:00:02.500
Welcome

2
00:00:04.000 --> 00:00:06.000
Today we cover the campus
`

const combinedText = `WEBVTT

1
00:00:00.000 --> 00:00:02.500
Welcome

NOTE Visual description
00:00:01.000 --> 00:00:03.000
A professor waves
`

// snapshotBody is the part of the player snapshot the tests inspect.
type snapshotBody struct {
	Playback          clock.PlaybackState `json:"playback"`
	Fullscreen        bool                `json:"fullscreen"`
	TranscriptVisible bool                `json:"transcriptVisible"`
	Tracks            player.TrackStatus  `json:"tracks"`
}

type transcriptBody struct {
	Available bool   `json:"available"`
	Message   string `json:"message"`
	Lines     []struct {
		Index     int    `json:"index"`
		Kind      string `json:"kind"`
		Text      string `json:"text"`
		AriaLabel string `json:"ariaLabel"`
	} `json:"lines"`
}

type env struct {
	dir    string
	pres   *media.Headless
	player *player.Player
	server *Server
}

func newEnv(t *testing.T, cfg Config) *env {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "captions.vtt"), []byte(captionsText), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "combined.vtt"), []byte(combinedText), 0o600))

	loader := source.NewLoader(&source.Mux{File: &source.FileFetcher{Root: dir, MaxBytes: source.DefaultMaxBytes}})
	pres := &media.Headless{}
	p, err := player.New(player.Config{Captions: "captions.vtt", Combined: "combined.vtt"}, player.Deps{
		Element:      media.NewSimulated(media.SimulatedConfig{Duration: 120}),
		Presentation: pres,
		Loader:       loader,
	})
	require.NoError(t, err)
	t.Cleanup(p.Close)
	return &env{dir: dir, pres: pres, player: p, server: New(cfg, p)}
}

func (e *env) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	rec := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestHealthz(t *testing.T) {
	e := newEnv(t, Config{})
	rec := e.do(t, http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[health.HealthResponse](t, rec)
	assert.Equal(t, health.StatusHealthy, body.Status)
	assert.Equal(t, e.player.SessionID(), body.Session)
	assert.Nil(t, body.Checks)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	rec = e.do(t, http.MethodGet, "/healthz?verbose=true", "")
	body = decode[health.HealthResponse](t, rec)
	assert.Contains(t, body.Checks, "player")
}

func TestReadyz(t *testing.T) {
	e := newEnv(t, Config{})
	require.NoError(t, e.player.ReloadTracks(context.Background()))

	rec := e.do(t, http.MethodGet, "/readyz", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[health.ReadinessResponse](t, rec)
	assert.True(t, body.Ready)
	assert.Equal(t, health.StatusHealthy, body.Checks["player"].Status)

	e.player.Close()
	rec = e.do(t, http.MethodGet, "/readyz", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.False(t, decode[health.ReadinessResponse](t, rec).Ready)
}

func TestPlayerCommands(t *testing.T) {
	e := newEnv(t, Config{})

	rec := e.do(t, http.MethodGet, "/api/player", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, decode[snapshotBody](t, rec).Playback.IsPlaying)

	rec = e.do(t, http.MethodPost, "/api/player/toggle", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decode[snapshotBody](t, rec).Playback.IsPlaying)

	rec = e.do(t, http.MethodPost, "/api/player/pause", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, decode[snapshotBody](t, rec).Playback.IsPlaying)

	rec = e.do(t, http.MethodPost, "/api/player/mute", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decode[snapshotBody](t, rec).Playback.Muted)

	rec = e.do(t, http.MethodPost, "/api/player/rate", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1.25, decode[snapshotBody](t, rec).Playback.PlaybackRate)

	rec = e.do(t, http.MethodPost, "/api/player/volume", `{"volume":0.5}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0.5, decode[snapshotBody](t, rec).Playback.Volume)
}

func TestSeekAndSkip(t *testing.T) {
	e := newEnv(t, Config{})

	rec := e.do(t, http.MethodPost, "/api/player/seek", `{"time":30}`)
	require.Equal(t, http.StatusOK, rec.Code)
	type seekBody struct {
		Seek   clock.SeekReport `json:"seek"`
		Player snapshotBody     `json:"player"`
	}
	got := decode[seekBody](t, rec)
	assert.Equal(t, clock.SeekReport{From: 0, To: 30}, got.Seek)
	assert.Equal(t, 30.0, got.Player.Playback.CurrentTime)

	rec = e.do(t, http.MethodPost, "/api/player/skip", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 40.0, decode[seekBody](t, rec).Seek.To)

	rec = e.do(t, http.MethodPost, "/api/player/skip", `{"seconds":-100}`)
	require.Equal(t, http.StatusOK, rec.Code)
	got = decode[seekBody](t, rec)
	assert.Equal(t, 0.0, got.Seek.To)
	assert.True(t, got.Seek.Backward)
}

func TestBadRequests(t *testing.T) {
	e := newEnv(t, Config{})
	tests := []struct {
		name, path, body string
	}{
		{"seek without time", "/api/player/seek", `{}`},
		{"seek unknown field", "/api/player/seek", `{"time":1,"speed":2}`},
		{"seek malformed", "/api/player/seek", `{"time":`},
		{"volume missing", "/api/player/volume", `{}`},
		{"key malformed", "/api/player/key", `nope`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := e.do(t, http.MethodPost, tt.path, tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, "bad_request", decode[errorResponse](t, rec).Error)
		})
	}
}

func TestFullscreenRefused(t *testing.T) {
	e := newEnv(t, Config{})
	rec := e.do(t, http.MethodPost, "/api/player/fullscreen", "")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "refused", decode[errorResponse](t, rec).Error)

	e.pres.Capable = true
	rec = e.do(t, http.MethodPost, "/api/player/fullscreen", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decode[snapshotBody](t, rec).Fullscreen)

	rec = e.do(t, http.MethodPost, "/api/player/key", `{"key":"Escape"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	type keyBody struct {
		Handled bool         `json:"handled"`
		Player  snapshotBody `json:"player"`
	}
	got := decode[keyBody](t, rec)
	assert.True(t, got.Handled)
	assert.False(t, got.Player.Fullscreen)
}

func TestTranscriptRoutes(t *testing.T) {
	e := newEnv(t, Config{})

	rec := e.do(t, http.MethodGet, "/api/transcript", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, decode[transcriptBody](t, rec).Available)

	rec = e.do(t, http.MethodPost, "/api/player/reload", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2, decode[snapshotBody](t, rec).Tracks.Captions)

	rec = e.do(t, http.MethodPost, "/api/player/transcript", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decode[snapshotBody](t, rec).TranscriptVisible)

	rec = e.do(t, http.MethodGet, "/api/transcript", "")
	view := decode[transcriptBody](t, rec)
	require.True(t, view.Available)
	require.Len(t, view.Lines, 2)
	assert.Equal(t, "caption", view.Lines[1].Kind)
	assert.Equal(t, "Jump to 0:04: Today we cover the campus", view.Lines[1].AriaLabel)

	rec = e.do(t, http.MethodPost, "/api/transcript/1/activate", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 4.0, decode[snapshotBody](t, rec).Playback.CurrentTime)

	rec = e.do(t, http.MethodPost, "/api/transcript/9/activate", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = e.do(t, http.MethodPost, "/api/transcript/x/activate", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = e.do(t, http.MethodPost, "/api/player/descriptions", "")
	require.Equal(t, http.StatusOK, rec.Code)
	view = decode[transcriptBody](t, e.do(t, http.MethodGet, "/api/transcript", ""))
	require.Len(t, view.Lines, 2)
	assert.Equal(t, "visual_description", view.Lines[1].Kind)
}

func TestTranscriptExport(t *testing.T) {
	e := newEnv(t, Config{})

	rec := e.do(t, http.MethodGet, "/api/transcript/export?format=srt", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	require.Equal(t, http.StatusOK, e.do(t, http.MethodPost, "/api/player/transcript", "").Code)

	rec = e.do(t, http.MethodGet, "/api/transcript/export?format=srt", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/x-subrip; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), `transcript.srt`)
	assert.Contains(t, rec.Body.String(), "00:00:04,000 --> 00:00:06,000")

	rec = e.do(t, http.MethodGet, "/api/transcript/export", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.HasPrefix(rec.Body.String(), "WEBVTT"))

	rec = e.do(t, http.MethodGet, "/api/transcript/export?format=txt", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestReloadFailureKeepsPlayerControllable(t *testing.T) {
	e := newEnv(t, Config{})
	require.NoError(t, os.Remove(filepath.Join(e.dir, "captions.vtt")))

	rec := e.do(t, http.MethodPost, "/api/player/reload", "")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, "fetch_failed", decode[errorResponse](t, rec).Error)

	rec = e.do(t, http.MethodGet, "/readyz", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, health.StatusDegraded, decode[health.ReadinessResponse](t, rec).Status)

	rec = e.do(t, http.MethodGet, "/api/player", "")
	snap := decode[snapshotBody](t, rec)
	assert.NotEmpty(t, snap.Tracks.CaptionsError)

	rec = e.do(t, http.MethodPost, "/api/player/toggle", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decode[snapshotBody](t, rec).Playback.IsPlaying)
}

func TestRateLimit(t *testing.T) {
	e := newEnv(t, Config{RateLimit: 2})
	for range 2 {
		require.Equal(t, http.StatusOK, e.do(t, http.MethodGet, "/api/player", "").Code)
	}
	rec := e.do(t, http.MethodGet, "/api/player", "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	// Health and metrics sit outside the limited group.
	assert.Equal(t, http.StatusOK, e.do(t, http.MethodGet, "/healthz", "").Code)
}

func TestMetricsEndpoint(t *testing.T) {
	e := newEnv(t, Config{})
	e.do(t, http.MethodPost, "/api/player/rate", "")
	rec := e.do(t, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "cuesync_http_request_duration_seconds")
	assert.Contains(t, rec.Body.String(), "cuesync_player_commands_total")
}

func TestConfigReloadRoute(t *testing.T) {
	calls := 0
	e := newEnv(t, Config{Reloader: func(context.Context) error { calls++; return nil }})
	rec := e.do(t, http.MethodPost, "/api/config/reload", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, calls)

	noReload := newEnv(t, Config{})
	assert.Equal(t, http.StatusNotFound, noReload.do(t, http.MethodPost, "/api/config/reload", "").Code)
}

type sseEvent struct {
	name string
	data string
}

func readEvent(t *testing.T, r *bufio.Reader) sseEvent {
	t.Helper()
	var ev sseEvent
	for {
		line, err := r.ReadString('\n')
		require.NoError(t, err)
		line = strings.TrimRight(line, "\n")
		switch {
		case line == "":
			if ev.name != "" {
				return ev
			}
		case strings.HasPrefix(line, "event: "):
			ev.name = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			ev.data = strings.TrimPrefix(line, "data: ")
		}
	}
}

func TestEventsStream(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	e := newEnv(t, Config{EventsPerSecond: 100})
	srv := httptest.NewServer(e.server.Handler())
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/events", nil)
	require.NoError(t, err)
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	r := bufio.NewReader(resp.Body)
	first := readEvent(t, r)
	assert.Equal(t, "snapshot", first.name)

	post, err := srv.Client().Post(srv.URL+"/api/player/toggle", "application/json", nil)
	require.NoError(t, err)
	_ = post.Body.Close()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		ev := readEvent(t, r)
		if ev.name != "snapshot" {
			continue
		}
		var snap snapshotBody
		require.NoError(t, json.Unmarshal([]byte(ev.data), &snap))
		if snap.Playback.IsPlaying {
			break
		}
	}

	post, err = srv.Client().Post(srv.URL+"/api/player/transcript", "application/json", nil)
	require.NoError(t, err)
	_ = post.Body.Close()

	sawScroll := false
	for range 5 {
		if readEvent(t, r).name == "scroll" {
			sawScroll = true
			break
		}
	}
	assert.True(t, sawScroll)

	cancel()
	srv.CloseClientConnections()
}
