// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package speech provides the synthesizers used to narrate visual
// descriptions.
package speech

import (
	"errors"
	"time"
)

// ErrUnavailable is returned when no synthesis backend can speak.
var ErrUnavailable = errors.New("speech synthesis unavailable")

// Synthesizer speaks text. onEnd is called once when an accepted utterance
// finishes or fails; it is never called for utterances removed by CancelAll.
type Synthesizer interface {
	Speak(text string, onEnd func(error)) error
	CancelAll()
}

// Timer is a cancellable scheduled callback.
type Timer interface {
	Stop() bool
}

// AfterFunc schedules f after d. time.AfterFunc satisfies it via RealAfterFunc.
type AfterFunc func(d time.Duration, f func()) Timer

// RealAfterFunc schedules on the runtime timer.
func RealAfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}
