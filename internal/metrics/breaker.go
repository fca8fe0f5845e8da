// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	BreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "cuesync_source_breaker_state",
		Help: "Source breaker state by name (the active state is 1, others 0)",
	}, []string{"name", "state"})

	BreakerTrips = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cuesync_source_breaker_trips_total",
		Help: "Transitions of a source breaker to the open state",
	}, []string{"name", "reason"})
)

var breakerStates = []string{"closed", "half-open", "open"}

// SetBreakerState marks state as the active breaker state for name.
func SetBreakerState(name, state string) {
	for _, s := range breakerStates {
		v := 0.0
		if s == state {
			v = 1.0
		}
		BreakerState.WithLabelValues(name, s).Set(v)
	}
}

// IncBreakerTrip counts a breaker opening.
func IncBreakerTrip(name, reason string) {
	BreakerTrips.WithLabelValues(name, reason).Inc()
}
