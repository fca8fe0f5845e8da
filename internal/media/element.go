// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package media defines the media primitive the player drives and a
// software implementation of it.
package media

import "errors"

// ErrRefused is returned when the environment rejects a playback or
// presentation command (autoplay policy, no fullscreen capability, ...).
var ErrRefused = errors.New("media command refused")

// Listener receives element notifications. Calls may arrive on any goroutine
// but never synchronously from inside an Element method.
type Listener interface {
	TimeUpdate()
	Ended()
}

// Element is the media primitive: a clock with transport controls.
type Element interface {
	CurrentTime() float64
	SetCurrentTime(t float64)
	// Duration returns the media length in seconds, or 0 while unknown.
	Duration() float64
	Play() error
	Pause()
	Paused() bool
	Volume() float64
	SetVolume(v float64)
	Muted() bool
	SetMuted(m bool)
	PlaybackRate() float64
	SetPlaybackRate(r float64)
	Listen(l Listener)
}

// CaptionRenderer is implemented by elements that can render text tracks natively.
type CaptionRenderer interface {
	TextTrackCount() int
	SetTextTrackShowing(i int, showing bool) error
}

// Presentation is the fullscreen capability of the surrounding environment.
type Presentation interface {
	RequestFullscreen() error
	ExitFullscreen() error
	IsFullscreen() bool
}
