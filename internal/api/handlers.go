// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/ManuGH/cuesync/internal/clock"
	"github.com/ManuGH/cuesync/internal/cue"
	"github.com/ManuGH/cuesync/internal/log"
	"github.com/ManuGH/cuesync/internal/player"
)

type seekRequest struct {
	Time *float64 `json:"time"`
}

type skipRequest struct {
	Seconds float64 `json:"seconds"`
}

type volumeRequest struct {
	Volume *float64 `json:"volume"`
}

type keyRequest struct {
	Key string `json:"key"`
}

type seekResponse struct {
	Seek   clock.SeekReport `json:"seek"`
	Player player.Snapshot  `json:"player"`
}

type keyResponse struct {
	Handled bool            `json:"handled"`
	Player  player.Snapshot `json:"player"`
}

func (s *Server) handleSnapshot(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.player.Snapshot())
}

// command adapts a player intent to a handler answering with the new snapshot.
func (s *Server) command(fn func(r *http.Request) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := fn(r); err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, s.player.Snapshot())
	}
}

func (s *Server) handleSeek(w http.ResponseWriter, r *http.Request) {
	var req seekRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeBadRequest(w, fmt.Sprintf("invalid body: %v", err))
		return
	}
	if req.Time == nil || !finite(*req.Time) {
		writeBadRequest(w, "time is required and must be a number")
		return
	}
	report, err := s.player.Seek(*req.Time)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, seekResponse{Seek: report, Player: s.player.Snapshot()})
}

// handleSkip accepts an empty body, which skips forward by the configured distance.
func (s *Server) handleSkip(w http.ResponseWriter, r *http.Request) {
	var req skipRequest
	if err := decodeBody(w, r, &req); err != nil && !errors.Is(err, io.EOF) {
		writeBadRequest(w, fmt.Sprintf("invalid body: %v", err))
		return
	}
	if !finite(req.Seconds) {
		writeBadRequest(w, "seconds must be a number")
		return
	}
	report, err := s.player.Skip(req.Seconds)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, seekResponse{Seek: report, Player: s.player.Snapshot()})
}

func (s *Server) handleVolume(w http.ResponseWriter, r *http.Request) {
	var req volumeRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeBadRequest(w, fmt.Sprintf("invalid body: %v", err))
		return
	}
	if req.Volume == nil || !finite(*req.Volume) {
		writeBadRequest(w, "volume is required and must be a number")
		return
	}
	if err := s.player.SetVolume(*req.Volume); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.player.Snapshot())
}

func (s *Server) handleKey(w http.ResponseWriter, r *http.Request) {
	var req keyRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeBadRequest(w, fmt.Sprintf("invalid body: %v", err))
		return
	}
	handled, err := s.player.HandleKey(req.Key)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, keyResponse{Handled: handled, Player: s.player.Snapshot()})
}

func (s *Server) handleTranscript(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.player.Transcript())
}

func (s *Server) handleActivate(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		writeBadRequest(w, "line index must be an integer")
		return
	}
	if err := s.player.ActivateLine(index); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.player.Snapshot())
}

// handleExport serves the transcript as a subtitle file (?format=srt|vtt, default vtt).
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("format")
	if raw == "" {
		raw = string(cue.FormatWebVTT)
	}
	format, err := cue.ParseFormat(raw)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	var buf bytes.Buffer
	opts := cue.ExportOptions{DescriptionLabel: "[Description]"}
	if err := cue.Export(&buf, s.player.TranscriptTrack(), format, opts); err != nil {
		s.writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "transcript."+string(format)))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

func (s *Server) handleConfigReload(w http.ResponseWriter, r *http.Request) {
	if err := s.cfg.Reloader(r.Context()); err != nil {
		logger := log.WithContext(r.Context(), s.logger)
		logger.Error().Err(err).
			Str(log.FieldEvent, "api.config_reload_failed").
			Msg("configuration reload failed")
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: "reload_failed", Detail: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "reloaded"})
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
