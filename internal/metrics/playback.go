// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// NarrationTransitions counts description arbitration state changes.
	NarrationTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cuesync_narration_transitions_total",
		Help: "Description arbitration transitions by from/to state",
	}, []string{"from", "to"})

	// NarrationOutcomes counts how narrations ended.
	NarrationOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cuesync_narration_outcomes_total",
		Help: "Narration outcomes (resumed, held, cancelled, synthesis_failed)",
	}, []string{"outcome"})

	// NarrationFallbackFired counts fallback timers that fired while still speaking.
	NarrationFallbackFired = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cuesync_narration_fallback_fired_total",
		Help: "Fallback timers that fired before the utterance completed",
	})

	// NarrationDuration tracks how long playback stayed interrupted per narration.
	NarrationDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "cuesync_narration_duration_seconds",
		Help:    "Wall time spent speaking a visual description",
		Buckets: []float64{0.5, 1, 2, 3, 5, 8, 13, 20},
	})

	// MediaControlFailures counts commands rejected by the media environment.
	MediaControlFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cuesync_media_control_failures_total",
		Help: "Playback or presentation commands refused by the environment",
	}, []string{"op"})

	// PlayerCommands counts user intents handled by the player shell.
	PlayerCommands = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cuesync_player_commands_total",
		Help: "User intents handled by the player shell",
	}, []string{"command"})
)

// IncNarrationTransition records an arbitration state change.
func IncNarrationTransition(from, to string) {
	NarrationTransitions.WithLabelValues(from, to).Inc()
}

// IncNarrationOutcome records how a narration ended.
func IncNarrationOutcome(outcome string) {
	NarrationOutcomes.WithLabelValues(outcome).Inc()
}

// ObserveNarrationDuration records the time playback was held for narration.
func ObserveNarrationDuration(d time.Duration) {
	NarrationDuration.Observe(d.Seconds())
}

// IncMediaControlFailure records a refused media command.
func IncMediaControlFailure(op string) {
	MediaControlFailures.WithLabelValues(op).Inc()
}

// IncPlayerCommand records a handled user intent.
func IncPlayerCommand(command string) {
	PlayerCommands.WithLabelValues(command).Inc()
}
