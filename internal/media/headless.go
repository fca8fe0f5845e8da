// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package media

import "sync"

// Headless is a Presentation for environments without a screen. When
// Capable is false every fullscreen request is refused.
type Headless struct {
	Capable bool

	mu         sync.Mutex
	fullscreen bool
}

func (h *Headless) RequestFullscreen() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.Capable {
		return ErrRefused
	}
	h.fullscreen = true
	return nil
}

func (h *Headless) ExitFullscreen() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.fullscreen {
		return ErrRefused
	}
	h.fullscreen = false
	return nil
}

func (h *Headless) IsFullscreen() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.fullscreen
}
