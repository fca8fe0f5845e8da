// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ManuGH/cuesync/internal/cue"
	"github.com/ManuGH/cuesync/internal/log"
	"github.com/ManuGH/cuesync/internal/media"
	"github.com/ManuGH/cuesync/internal/player"
	"github.com/ManuGH/cuesync/internal/source"
	"github.com/ManuGH/cuesync/internal/transcript"
)

// errorResponse is the JSON body of every non-2xx answer.
type errorResponse struct {
	Error  string `json:"error"`
	Detail string `json:"detail,omitempty"`
}

// writeJSON writes a JSON response with the given status code
func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// statusFor classifies domain errors into HTTP statuses.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, media.ErrRefused):
		return http.StatusConflict, "refused"
	case errors.Is(err, transcript.ErrNoLine):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, cue.ErrUnknownFormat):
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, cue.ErrEmptyTrack):
		return http.StatusNotFound, "empty_track"
	case errors.Is(err, source.ErrFetch), errors.Is(err, source.ErrTooLarge):
		return http.StatusBadGateway, "fetch_failed"
	case errors.Is(err, player.ErrClosed):
		return http.StatusServiceUnavailable, "closed"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code, kind := statusFor(err)
	logger := log.WithContext(r.Context(), s.logger)
	evt := logger.Warn()
	if code >= 500 && code != http.StatusBadGateway {
		evt = logger.Error()
	}
	evt.Err(err).
		Str(log.FieldEvent, "api.request_failed").
		Str(log.FieldPath, r.URL.Path).
		Int("status", code).
		Msg("request failed")
	writeJSON(w, code, errorResponse{Error: kind, Detail: err.Error()})
}

func writeBadRequest(w http.ResponseWriter, detail string) {
	writeJSON(w, http.StatusBadRequest, errorResponse{Error: "bad_request", Detail: detail})
}

// decodeBody strictly decodes a small JSON request body.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
