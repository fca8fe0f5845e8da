// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package player

import (
	"github.com/ManuGH/cuesync/internal/clock"
	"github.com/ManuGH/cuesync/internal/cue"
	"github.com/ManuGH/cuesync/internal/narration"
)

// TrackStatus summarises the last track load.
type TrackStatus struct {
	Captions       int    `json:"captions"`
	Descriptions   int    `json:"descriptions"`
	CombinedLoaded bool   `json:"combinedLoaded"`
	CaptionsError  string `json:"captionsError,omitempty"`
	CombinedError  string `json:"combinedError,omitempty"`
}

// Snapshot is everything a renderer needs to draw the player.
type Snapshot struct {
	SessionID string              `json:"sessionId"`
	Playback  clock.PlaybackState `json:"playback"`
	// Progress is CurrentTime/Duration in [0,1].
	Progress  float64   `json:"progress"`
	TimeLabel string    `json:"timeLabel"`
	Rates     []float64 `json:"rates"`

	Captions            bool `json:"captions"`
	DescriptionPriority bool `json:"descriptionPriority"`
	ShowDescriptions    bool `json:"showDescriptions"`
	TranscriptVisible   bool `json:"transcriptVisible"`
	Fullscreen          bool `json:"fullscreen"`

	// Caption is the active caption while captions are on.
	Caption   *cue.Cue           `json:"caption,omitempty"`
	Narration narration.Snapshot `json:"narration"`
	Tracks    TrackStatus        `json:"tracks"`
}

// Snapshot returns the current player state.
func (p *Player) Snapshot() Snapshot {
	state := p.clk.State()

	p.mu.Lock()
	s := Snapshot{
		SessionID:           p.sessionID,
		Playback:            state,
		Rates:               p.clk.Rates(),
		Captions:            p.captions,
		DescriptionPriority: p.descPriority,
		ShowDescriptions:    p.showDescriptions,
		TranscriptVisible:   p.transcriptOn,
		Tracks:              p.tracks,
	}
	if p.captions {
		if c, ok := p.captionIndex.ActiveCue(state.CurrentTime, cue.Caption); ok {
			s.Caption = &c
		}
	}
	p.mu.Unlock()

	s.Progress = progress(state.CurrentTime, state.Duration)
	s.TimeLabel = cue.FormatClock(state.CurrentTime) + " / " + cue.FormatClock(state.Duration)
	s.Fullscreen = p.pres.IsFullscreen()
	s.Narration = p.narr.Snapshot()
	return s
}

func progress(current, duration float64) float64 {
	if duration <= 0 {
		return 0
	}
	f := current / duration
	switch {
	case f < 0:
		return 0
	case f > 1:
		return 1
	}
	return f
}
