// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package clock adapts a media element into the player's playback clock.
// The Adapter is the only writer of PlaybackState; everything else reads
// snapshots and subscribes to tick, ended and seek notifications.
package clock

import (
	"math"
	"sync"

	"github.com/rs/zerolog"

	"github.com/ManuGH/cuesync/internal/log"
	"github.com/ManuGH/cuesync/internal/media"
	"github.com/ManuGH/cuesync/internal/metrics"
)

// DefaultRates are the playback rates offered to the user, in cycle order.
var DefaultRates = []float64{0.75, 1.0, 1.25, 1.5}

// PlaybackState is a snapshot of the clock.
type PlaybackState struct {
	CurrentTime      float64 `json:"currentTime"`
	Duration         float64 `json:"duration"`
	IsPlaying        bool    `json:"isPlaying"`
	Volume           float64 `json:"volume"`
	Muted            bool    `json:"muted"`
	PlaybackRate     float64 `json:"playbackRate"`
	LastObservedTime float64 `json:"lastObservedTime"`
}

// SeekReport describes a completed seek.
type SeekReport struct {
	From     float64 `json:"from"`
	To       float64 `json:"to"`
	Backward bool    `json:"backward"`
}

type subscription[T any] struct {
	id int
	fn func(T)
}

type listeners[T any] struct {
	subs []subscription[T]
}

func (l *listeners[T]) add(id int, fn func(T)) {
	l.subs = append(l.subs, subscription[T]{id: id, fn: fn})
}

func (l *listeners[T]) remove(id int) {
	for i, s := range l.subs {
		if s.id == id {
			l.subs = append(l.subs[:i:i], l.subs[i+1:]...)
			return
		}
	}
}

func (l *listeners[T]) snapshot() []func(T) {
	out := make([]func(T), len(l.subs))
	for i, s := range l.subs {
		out[i] = s.fn
	}
	return out
}

// Option configures an Adapter.
type Option func(*Adapter)

// WithRates overrides the allowed playback rates. Empty slices are ignored.
func WithRates(rates []float64) Option {
	return func(a *Adapter) {
		if len(rates) > 0 {
			a.rates = append([]float64(nil), rates...)
		}
	}
}

// WithLogger replaces the component logger.
func WithLogger(l zerolog.Logger) Option {
	return func(a *Adapter) { a.logger = l }
}

// Adapter wraps exactly one media element.
type Adapter struct {
	mu     sync.Mutex
	el     media.Element
	state  PlaybackState
	rates  []float64
	logger zerolog.Logger

	nextID     int
	ticks      listeners[PlaybackState]
	ended      listeners[PlaybackState]
	seeks      listeners[SeekReport]
	endedFired bool
}

// New wraps el and registers the adapter as its listener.
func New(el media.Element, opts ...Option) *Adapter {
	a := &Adapter{
		el:     el,
		rates:  DefaultRates,
		logger: log.WithComponent("clock"),
	}
	for _, opt := range opts {
		opt(a)
	}

	rate := a.snapRate(el.PlaybackRate())
	el.SetPlaybackRate(rate)
	a.state = PlaybackState{
		CurrentTime:      el.CurrentTime(),
		Duration:         el.Duration(),
		IsPlaying:        !el.Paused(),
		Volume:           clampUnit(el.Volume()),
		Muted:            el.Muted(),
		PlaybackRate:     rate,
		LastObservedTime: el.CurrentTime(),
	}
	el.Listen(a)
	return a
}

// State returns a snapshot of the playback state.
func (a *Adapter) State() PlaybackState {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// Rates returns the allowed playback rates.
func (a *Adapter) Rates() []float64 {
	return append([]float64(nil), a.rates...)
}

// Play starts playback. A refusal from the element is logged, counted and
// returned; the state is left unchanged.
func (a *Adapter) Play() error {
	if err := a.el.Play(); err != nil {
		metrics.IncMediaControlFailure("play")
		a.logger.Warn().Err(err).Str(log.FieldEvent, "clock.play_refused").Msg("media element refused play")
		return err
	}
	a.mu.Lock()
	a.state.IsPlaying = true
	a.state.CurrentTime = a.el.CurrentTime()
	a.endedFired = false
	a.mu.Unlock()
	return nil
}

// Pause stops playback.
func (a *Adapter) Pause() {
	a.el.Pause()
	a.mu.Lock()
	a.state.IsPlaying = false
	a.state.CurrentTime = a.el.CurrentTime()
	a.mu.Unlock()
}

// Seek moves the playhead to t, clamped to [0, Duration]. The report is
// computed against the last observed time before it is updated.
func (a *Adapter) Seek(t float64) SeekReport {
	duration := a.el.Duration()
	if math.IsNaN(t) || t < 0 {
		t = 0
	}
	if duration > 0 && t > duration {
		t = duration
	}

	a.mu.Lock()
	report := SeekReport{
		From:     a.state.LastObservedTime,
		To:       t,
		Backward: t < a.state.LastObservedTime,
	}
	a.el.SetCurrentTime(t)
	a.state.CurrentTime = t
	a.state.Duration = duration
	a.state.LastObservedTime = t
	if duration <= 0 || t < duration {
		a.endedFired = false
	}
	fns := a.seeks.snapshot()
	a.mu.Unlock()

	a.logger.Debug().
		Str(log.FieldEvent, "clock.seek").
		Float64("from", report.From).
		Float64("to", report.To).
		Bool("backward", report.Backward).
		Msg("seek")

	for _, fn := range fns {
		fn(report)
	}
	return report
}

// SetVolume clamps v to [0, 1]. A zero volume mutes.
func (a *Adapter) SetVolume(v float64) {
	v = clampUnit(v)
	a.el.SetVolume(v)
	a.el.SetMuted(v == 0)
	a.mu.Lock()
	a.state.Volume = v
	a.state.Muted = v == 0
	a.mu.Unlock()
}

func (a *Adapter) SetMuted(muted bool) {
	a.el.SetMuted(muted)
	a.mu.Lock()
	a.state.Muted = muted
	a.mu.Unlock()
}

// SetRate applies the allowed rate nearest to r and returns it.
func (a *Adapter) SetRate(r float64) float64 {
	rate := a.snapRate(r)
	a.el.SetPlaybackRate(rate)
	a.mu.Lock()
	a.state.PlaybackRate = rate
	a.mu.Unlock()
	return rate
}

// NextRate advances to the next allowed rate, wrapping after the last.
func (a *Adapter) NextRate() float64 {
	a.mu.Lock()
	current := a.state.PlaybackRate
	a.mu.Unlock()

	next := a.rates[0]
	for i, r := range a.rates {
		if r == current {
			next = a.rates[(i+1)%len(a.rates)]
			break
		}
	}
	return a.SetRate(next)
}

func (a *Adapter) snapRate(r float64) float64 {
	best := a.rates[0]
	if math.IsNaN(r) {
		for _, candidate := range a.rates {
			if candidate == 1 {
				return candidate
			}
		}
		return best
	}
	for _, candidate := range a.rates[1:] {
		if math.Abs(candidate-r) < math.Abs(best-r) {
			best = candidate
		}
	}
	return best
}

// SetCaptionsShowing toggles native caption rendering on the first text
// track. It reports false when the element cannot render captions.
func (a *Adapter) SetCaptionsShowing(showing bool) bool {
	renderer, ok := a.el.(media.CaptionRenderer)
	if !ok || renderer.TextTrackCount() == 0 {
		return false
	}
	if err := renderer.SetTextTrackShowing(0, showing); err != nil {
		metrics.IncMediaControlFailure("captions")
		a.logger.Warn().Err(err).Str(log.FieldEvent, "clock.captions_refused").Msg("text track mode change refused")
		return false
	}
	return true
}

// OnTick registers fn for every time-update and for ended.
func (a *Adapter) OnTick(fn func(PlaybackState)) (unsubscribe func()) {
	a.mu.Lock()
	defer a.mu.Unlock()
	id := a.register()
	a.ticks.add(id, fn)
	return a.unsubscriber(func() { a.ticks.remove(id) })
}

// OnEnded registers fn for the end of media.
func (a *Adapter) OnEnded(fn func(PlaybackState)) (unsubscribe func()) {
	a.mu.Lock()
	defer a.mu.Unlock()
	id := a.register()
	a.ended.add(id, fn)
	return a.unsubscriber(func() { a.ended.remove(id) })
}

// OnSeek registers fn for completed seeks.
func (a *Adapter) OnSeek(fn func(SeekReport)) (unsubscribe func()) {
	a.mu.Lock()
	defer a.mu.Unlock()
	id := a.register()
	a.seeks.add(id, fn)
	return a.unsubscriber(func() { a.seeks.remove(id) })
}

func (a *Adapter) register() int {
	a.nextID++
	return a.nextID
}

func (a *Adapter) unsubscriber(remove func()) func() {
	var once sync.Once
	return func() {
		once.Do(func() {
			a.mu.Lock()
			remove()
			a.mu.Unlock()
		})
	}
}

// TimeUpdate implements media.Listener.
func (a *Adapter) TimeUpdate() {
	a.mu.Lock()
	now := a.el.CurrentTime()
	a.state.CurrentTime = now
	a.state.LastObservedTime = now
	a.state.Duration = a.el.Duration()
	a.state.IsPlaying = !a.el.Paused()
	snap := a.state
	fns := a.ticks.snapshot()
	a.mu.Unlock()

	for _, fn := range fns {
		fn(snap)
	}
}

// Ended implements media.Listener. Listeners fire once per run.
func (a *Adapter) Ended() {
	a.mu.Lock()
	if a.endedFired {
		a.mu.Unlock()
		return
	}
	a.endedFired = true
	a.state.IsPlaying = false
	a.state.CurrentTime = a.el.CurrentTime()
	a.state.LastObservedTime = a.state.CurrentTime
	snap := a.state
	ticks := a.ticks.snapshot()
	ended := a.ended.snapshot()
	a.mu.Unlock()

	a.logger.Info().Str(log.FieldEvent, "clock.ended").Float64(log.FieldCurrentTime, snap.CurrentTime).Msg("playback ended")
	for _, fn := range ticks {
		fn(snap)
	}
	for _, fn := range ended {
		fn(snap)
	}
}

func clampUnit(v float64) float64 {
	switch {
	case math.IsNaN(v) || v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
