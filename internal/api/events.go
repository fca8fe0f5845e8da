// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/ManuGH/cuesync/internal/log"
)

const heartbeatInterval = 15 * time.Second

// scrollEvent asks the renderer to centre a transcript line.
type scrollEvent struct {
	Index int `json:"index"`
}

// handleEvents streams "snapshot" and "scroll" server-sent events. Bursts of
// player changes collapse into one snapshot, paced by the events limiter.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "streaming_unsupported"})
		return
	}

	changed := make(chan struct{}, 1)
	scrolls := make(chan int, 16)
	unsubChange := s.player.OnChange(func() {
		select {
		case changed <- struct{}{}:
		default:
		}
	})
	defer unsubChange()
	unsubScroll := s.player.OnScroll(func(i int) {
		select {
		case scrolls <- i:
		default:
		}
	})
	defer unsubScroll()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	ctx := r.Context()
	logger := log.WithContext(ctx, s.logger)
	logger.Debug().Str(log.FieldEvent, "api.events_open").Msg("event stream opened")
	defer logger.Debug().Str(log.FieldEvent, "api.events_closed").Msg("event stream closed")

	limiter := rate.NewLimiter(rate.Limit(s.cfg.EventsPerSecond), 1)
	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	var id uint64
	send := func(event string, v any) bool {
		data, err := json.Marshal(v)
		if err != nil {
			logger.Error().Err(err).Str(log.FieldEvent, "api.events_encode_failed").Msg("encode event")
			return false
		}
		id++
		if _, err := fmt.Fprintf(w, "id: %d\nevent: %s\ndata: %s\n\n", id, event, data); err != nil {
			return false
		}
		flusher.Flush()
		return true
	}

	if !send("snapshot", s.player.Snapshot()) {
		return
	}
	for {
		select {
		case <-ctx.Done():
			return
		case i := <-scrolls:
			if !send("scroll", scrollEvent{Index: i}) {
				return
			}
		case <-changed:
			if err := limiter.Wait(ctx); err != nil {
				return
			}
			if !send("snapshot", s.player.Snapshot()) {
				return
			}
		case <-heartbeat.C:
			if _, err := fmt.Fprint(w, ": keepalive\n\n"); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
