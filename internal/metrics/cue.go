// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package metrics holds the Prometheus collectors for the player daemon.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CueBlocksDropped counts malformed cue blocks skipped by the parser.
	CueBlocksDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cuesync_cue_blocks_dropped_total",
		Help: "Cue blocks dropped while parsing, by reason",
	}, []string{"reason"})

	// CuesLoaded counts cues accepted into loaded tracks.
	CuesLoaded = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cuesync_cues_loaded_total",
		Help: "Cues accepted into loaded tracks, by kind",
	}, []string{"kind"})

	// TrackFetchTotal tracks the outcome of cue source fetches.
	TrackFetchTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cuesync_track_fetch_total",
		Help: "Cue source fetch attempts by source role and result",
	}, []string{"source", "result"})

	// TrackFetchDuration tracks how long cue source fetches take.
	TrackFetchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "cuesync_track_fetch_duration_seconds",
		Help:    "Time taken to fetch and parse a cue source",
		Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
	}, []string{"source"})
)

// IncCueBlockDropped records a dropped cue block.
func IncCueBlockDropped(reason string, n int) {
	if n <= 0 {
		return
	}
	CueBlocksDropped.WithLabelValues(reason).Add(float64(n))
}

// AddCuesLoaded records accepted cues of a kind.
func AddCuesLoaded(kind string, n int) {
	if n <= 0 {
		return
	}
	CuesLoaded.WithLabelValues(kind).Add(float64(n))
}

// ObserveTrackFetch records a fetch outcome and its latency.
func ObserveTrackFetch(source string, success bool, duration time.Duration) {
	result := "failure"
	if success {
		result = "success"
	}
	TrackFetchTotal.WithLabelValues(source, result).Inc()
	TrackFetchDuration.WithLabelValues(source).Observe(duration.Seconds())
}
