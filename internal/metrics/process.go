// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	procTerminateTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cuesync_proc_terminate_total",
		Help: "Signals sent to helper process groups",
	}, []string{"signal", "result"})

	procWaitTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cuesync_proc_wait_total",
		Help: "Helper process exits observed after termination",
	}, []string{"outcome"})

	// SpeechUtterances counts utterances by synthesizer backend and result.
	SpeechUtterances = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cuesync_speech_utterances_total",
		Help: "Utterances handled by the speech synthesizer",
	}, []string{"backend", "result"})
)

func IncProcTerminate(signal, result string) {
	procTerminateTotal.WithLabelValues(signal, result).Inc()
}

func IncProcWait(outcome string) {
	procWaitTotal.WithLabelValues(outcome).Inc()
}

// IncSpeechUtterance records an utterance result (completed, cancelled, failed).
func IncSpeechUtterance(backend, result string) {
	SpeechUtterances.WithLabelValues(backend, result).Inc()
}
