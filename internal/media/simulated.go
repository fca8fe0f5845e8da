// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package media

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"
)

// DefaultTickInterval matches the cadence browsers use for timeupdate.
const DefaultTickInterval = 250 * time.Millisecond

// SimulatedConfig configures a Simulated element.
type SimulatedConfig struct {
	Duration     float64       // media length in seconds
	TickInterval time.Duration // time-update cadence while playing
	TextTracks   int           // number of native text tracks
	RefusePlay   bool          // reject Play, like a strict autoplay policy
}

// Simulated is a software media element: playback position advances by
// rate x wall time, and time-updates are emitted from Run's goroutine.
type Simulated struct {
	mu sync.Mutex

	duration float64
	current  float64
	paused   bool
	ended    bool
	volume   float64
	muted    bool
	rate     float64

	tracks     []bool
	refusePlay bool

	lastAdvance time.Time
	now         func() time.Time
	interval    time.Duration

	listener     Listener
	kick         chan struct{}
	endedPending bool
}

// NewSimulated creates a paused element positioned at 0.
func NewSimulated(cfg SimulatedConfig) *Simulated {
	interval := cfg.TickInterval
	if interval <= 0 {
		interval = DefaultTickInterval
	}
	return &Simulated{
		duration:   math.Max(cfg.Duration, 0),
		paused:     true,
		volume:     1,
		rate:       1,
		tracks:     make([]bool, cfg.TextTracks),
		refusePlay: cfg.RefusePlay,
		now:        time.Now,
		interval:   interval,
		kick:       make(chan struct{}, 1),
	}
}

// Run emits time-updates until ctx is cancelled.
func (s *Simulated) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Tick()
		case <-s.kick:
			s.mu.Lock()
			ended := s.endedPending
			s.endedPending = false
			s.mu.Unlock()
			s.emit(ended)
		}
	}
}

// Tick advances the position by the wall time elapsed since the last
// advance and notifies the listener. It is a no-op while paused.
func (s *Simulated) Tick() {
	s.mu.Lock()
	if s.paused {
		s.mu.Unlock()
		return
	}
	endedNow := s.advanceLocked()
	s.mu.Unlock()
	s.emit(endedNow)
}

// advanceLocked moves the position forward and reports whether playback
// reached the end during this step.
func (s *Simulated) advanceLocked() bool {
	now := s.now()
	if !s.paused && !s.lastAdvance.IsZero() {
		s.current += now.Sub(s.lastAdvance).Seconds() * s.rate
	}
	s.lastAdvance = now
	if s.duration > 0 && s.current >= s.duration {
		s.current = s.duration
		if !s.paused {
			s.paused = true
			s.ended = true
			return true
		}
	}
	return false
}

func (s *Simulated) emit(ended bool) {
	s.mu.Lock()
	l := s.listener
	s.mu.Unlock()
	if l == nil {
		return
	}
	l.TimeUpdate()
	if ended {
		l.Ended()
	}
}

// requestUpdate queues an asynchronous time-update, as browsers do after seeks.
func (s *Simulated) requestUpdate() {
	select {
	case s.kick <- struct{}{}:
	default:
	}
}

func (s *Simulated) CurrentTime() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

func (s *Simulated) SetCurrentTime(t float64) {
	s.mu.Lock()
	if math.IsNaN(t) || t < 0 {
		t = 0
	}
	if s.duration > 0 && t > s.duration {
		t = s.duration
	}
	s.current = t
	s.ended = false
	s.lastAdvance = s.now()
	s.mu.Unlock()
	s.requestUpdate()
}

func (s *Simulated) Duration() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.duration
}

func (s *Simulated) Play() error {
	s.mu.Lock()
	if s.refusePlay {
		s.mu.Unlock()
		return fmt.Errorf("play: %w", ErrRefused)
	}
	if s.ended || (s.duration > 0 && s.current >= s.duration) {
		s.current = 0
		s.ended = false
	}
	s.paused = false
	s.lastAdvance = s.now()
	s.mu.Unlock()
	s.requestUpdate()
	return nil
}

func (s *Simulated) Pause() {
	s.mu.Lock()
	if s.paused {
		s.mu.Unlock()
		return
	}
	if s.advanceLocked() {
		s.endedPending = true
	}
	s.paused = true
	s.mu.Unlock()
	s.requestUpdate()
}

func (s *Simulated) Paused() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.paused
}

func (s *Simulated) Volume() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.volume
}

func (s *Simulated) SetVolume(v float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.volume = v
}

func (s *Simulated) Muted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.muted
}

func (s *Simulated) SetMuted(m bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.muted = m
}

func (s *Simulated) PlaybackRate() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rate
}

func (s *Simulated) SetPlaybackRate(r float64) {
	s.mu.Lock()
	ended := !s.paused && s.advanceLocked()
	if ended {
		s.endedPending = true
	}
	s.rate = r
	s.mu.Unlock()
	if ended {
		s.requestUpdate()
	}
}

func (s *Simulated) Listen(l Listener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listener = l
}

func (s *Simulated) TextTrackCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tracks)
}

func (s *Simulated) SetTextTrackShowing(i int, showing bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i < 0 || i >= len(s.tracks) {
		return fmt.Errorf("text track %d: %w", i, ErrRefused)
	}
	s.tracks[i] = showing
	return nil
}

// TextTrackShowing reports whether track i is rendered.
func (s *Simulated) TextTrackShowing(i int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return i >= 0 && i < len(s.tracks) && s.tracks[i]
}
