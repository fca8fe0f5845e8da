// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package narration implements description-priority playback: when a visual
// description becomes active the clock is held while the description is
// spoken, then playback resumes.
//
// Every callback into the machine (clock tick, seek, utterance completion,
// fallback timer) takes the machine lock, decides, and performs its effects
// on the clock and synthesizer after releasing it. Completion and timer
// callbacks carry the utterance sequence number they were armed with and
// are ignored once it is stale. Starting and cancelling speech are
// serialised by a second lock, and an utterance is only started if its
// sequence number is still current under that lock.
package narration

import (
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/ManuGH/cuesync/internal/clock"
	"github.com/ManuGH/cuesync/internal/cue"
	"github.com/ManuGH/cuesync/internal/log"
	"github.com/ManuGH/cuesync/internal/metrics"
	"github.com/ManuGH/cuesync/internal/speech"
)

// Clock is the part of the playback clock the machine drives.
type Clock interface {
	State() clock.PlaybackState
	Play() error
	Pause()
	OnTick(fn func(clock.PlaybackState)) func()
	OnSeek(fn func(clock.SeekReport)) func()
}

// Option configures a Machine.
type Option func(*Machine)

// WithAfterFunc replaces the timer used for fallback pauses.
func WithAfterFunc(f speech.AfterFunc) Option {
	return func(m *Machine) {
		if f != nil {
			m.afterFunc = f
		}
	}
}

// WithNow replaces the wall clock used for duration metrics.
func WithNow(now func() time.Time) Option {
	return func(m *Machine) {
		if now != nil {
			m.now = now
		}
	}
}

// WithLogger replaces the component logger.
func WithLogger(l zerolog.Logger) Option {
	return func(m *Machine) { m.logger = l }
}

// Machine is the description arbitration state machine.
type Machine struct {
	clk       Clock
	synth     speech.Synthesizer
	afterFunc speech.AfterFunc
	now       func() time.Time
	logger    zerolog.Logger

	// effects orders Speak against CancelAll; never held while calling
	// the clock or hooks.
	effects sync.Mutex

	mu          sync.Mutex
	state       State
	index       *cue.Index
	spoken      map[cue.ID]struct{}
	current     cue.Cue
	seq         uint64
	timer       speech.Timer
	forcePaused bool
	// held is set when narration paused a playing clock.
	held        bool
	speakStart  time.Time
	hooks       []func(Transition)
	unsubscribe []func()
	closed      bool
}

// New returns an Idle machine subscribed to clk. synth may be nil, in which
// case every narration completes immediately.
func New(clk Clock, synth speech.Synthesizer, opts ...Option) *Machine {
	m := &Machine{
		clk:       clk,
		synth:     synth,
		afterFunc: speech.RealAfterFunc,
		now:       time.Now,
		logger:    log.WithComponent("narration"),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.unsubscribe = []func(){
		clk.OnTick(m.handleTick),
		clk.OnSeek(m.handleSeek),
	}
	return m
}

// OnTransition registers a hook called after every state change.
func (m *Machine) OnTransition(fn func(Transition)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hooks = append(m.hooks, fn)
}

// State returns the current arbitration state.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Snapshot returns a read-only view of the machine.
func (m *Machine) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := Snapshot{State: m.state, Spoken: len(m.spoken), ForcePaused: m.forcePaused}
	if m.state == Speaking {
		c := m.current
		s.Cue = &c
	}
	return s
}

// Enable turns description priority on with the description cues of track.
// When already enabled it behaves like Reload.
func (m *Machine) Enable(track cue.Track) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	if m.state != Idle {
		m.mu.Unlock()
		m.Reload(track)
		return
	}
	m.index = cue.NewIndex(track.Filter(cue.VisualDescription))
	m.spoken = make(map[cue.ID]struct{})
	tr := m.setStateLocked(Watching, ReasonEnabled, cue.Cue{})
	m.mu.Unlock()

	m.logger.Info().
		Str(log.FieldEvent, "narration.enabled").
		Int(log.FieldCueCount, m.indexLen()).
		Msg("description priority enabled")
	m.emit(tr)
}

// Reload replaces the description channel, forgets spoken cues and cancels
// any narration. While Idle it only stores the track for the next Enable.
func (m *Machine) Reload(track cue.Track) {
	index := cue.NewIndex(track.Filter(cue.VisualDescription))

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.index = index
	if m.state == Idle {
		m.mu.Unlock()
		return
	}
	wasSpeaking := m.state == Speaking
	resume := wasSpeaking && m.held && !m.forcePaused
	left := m.current
	m.cancelLocked()
	m.spoken = make(map[cue.ID]struct{})
	tr := m.setStateLocked(Watching, ReasonReloaded, left)
	m.mu.Unlock()

	if wasSpeaking {
		m.cancelSpeech()
	}
	if resume && !m.clk.State().IsPlaying {
		// The clock logs and counts refusals.
		_ = m.clk.Play()
	}
	m.logger.Info().
		Str(log.FieldEvent, "narration.reloaded").
		Int(log.FieldCueCount, index.Len()).
		Msg("description track reloaded")
	m.emit(tr)
}

// Disable turns description priority off. Playback is left as it is.
func (m *Machine) Disable() {
	m.mu.Lock()
	if m.state == Idle {
		m.mu.Unlock()
		return
	}
	wasSpeaking := m.state == Speaking
	left := m.current
	m.cancelLocked()
	m.spoken = nil
	tr := m.setStateLocked(Idle, ReasonDisabled, left)
	m.mu.Unlock()

	if wasSpeaking {
		m.cancelSpeech()
	}
	m.logger.Info().Str(log.FieldEvent, "narration.disabled").Msg("description priority disabled")
	m.emit(tr)
}

// Close disables the machine and detaches it from the clock.
func (m *Machine) Close() {
	m.Disable()

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	unsub := m.unsubscribe
	m.unsubscribe = nil
	m.mu.Unlock()

	for _, fn := range unsub {
		fn()
	}
}

func (m *Machine) handleTick(s clock.PlaybackState) {
	m.mu.Lock()
	if m.state != Watching {
		m.mu.Unlock()
		return
	}

	var next cue.Cue
	found := false
	// First unspoken match wins; one transition per tick.
	for _, c := range m.index.ActiveCues(s.CurrentTime, cue.VisualDescription) {
		if _, done := m.spoken[c.ID()]; !done {
			next, found = c, true
			break
		}
	}
	if !found {
		m.mu.Unlock()
		return
	}

	m.seq++
	seq := m.seq
	m.spoken[next.ID()] = struct{}{}
	m.current = next
	m.forcePaused = false
	m.held = s.IsPlaying
	m.speakStart = m.now()
	tr := m.setStateLocked(Speaking, ReasonCueActive, next)
	m.timer = m.afterFunc(seconds(next.End-s.CurrentTime), func() { m.handleFallback(seq) })
	m.mu.Unlock()

	if m.live(seq) {
		m.clk.Pause()
	}

	m.logger.Info().
		Str(log.FieldEvent, "narration.speak").
		Float64(log.FieldCurrentTime, s.CurrentTime).
		Float64(log.FieldCueStart, next.Start).
		Float64(log.FieldCueEnd, next.End).
		Msg("narrating visual description")
	m.emit(tr)

	started, err := m.speak(seq, next.Text)
	if !started {
		m.logger.Debug().
			Str(log.FieldEvent, "narration.speak_skipped").
			Float64(log.FieldCueStart, next.Start).
			Msg("narration cancelled before speech started")
		return
	}
	if err != nil {
		m.handleCompletion(seq, err)
	}
}

// speak starts the utterance for seq unless it was cancelled meanwhile.
// Cancellers take the effects lock around CancelAll, so an utterance is
// either refused here or cancelled by them.
func (m *Machine) speak(seq uint64, text string) (bool, error) {
	m.effects.Lock()
	defer m.effects.Unlock()

	if !m.live(seq) {
		return false, nil
	}
	if m.synth == nil {
		return true, speech.ErrUnavailable
	}
	m.synth.CancelAll()
	return true, m.synth.Speak(text, func(err error) { m.handleCompletion(seq, err) })
}

// live reports whether seq is the utterance being spoken.
func (m *Machine) live(seq uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state == Speaking && m.seq == seq
}

func (m *Machine) handleCompletion(seq uint64, err error) {
	st := m.clk.State()

	m.mu.Lock()
	if m.state != Speaking || seq != m.seq {
		m.mu.Unlock()
		return
	}
	c := m.current
	forced := m.forcePaused
	m.stopTimerLocked()
	started := m.speakStart
	resume := !forced && !st.IsPlaying && st.CurrentTime <= c.End
	reason := ReasonCompleted
	if err != nil {
		reason = ReasonFailed
	}
	tr := m.setStateLocked(Watching, reason, c)
	m.mu.Unlock()

	metrics.ObserveNarrationDuration(m.now().Sub(started))
	switch {
	case err != nil:
		metrics.IncNarrationOutcome("synthesis_failed")
		m.logger.Warn().Err(err).
			Str(log.FieldEvent, "narration.synthesis_failed").
			Float64(log.FieldCueStart, c.Start).
			Msg("speech failed, treating as completed")
	case resume:
		metrics.IncNarrationOutcome("resumed")
	default:
		metrics.IncNarrationOutcome("held")
	}

	if resume {
		// The clock logs and counts refusals.
		_ = m.clk.Play()
	}
	m.emit(tr)
}

func (m *Machine) handleFallback(seq uint64) {
	st := m.clk.State()

	m.mu.Lock()
	if m.state != Speaking || seq != m.seq {
		m.mu.Unlock()
		return
	}
	m.timer = nil
	pause := st.IsPlaying && st.CurrentTime >= m.current.End
	if pause {
		m.forcePaused = true
	}
	c := m.current
	m.mu.Unlock()

	metrics.NarrationFallbackFired.Inc()
	if pause {
		m.logger.Info().
			Str(log.FieldEvent, "narration.fallback_pause").
			Float64(log.FieldCurrentTime, st.CurrentTime).
			Float64(log.FieldCueEnd, c.End).
			Msg("speech outlasted the cue, holding playback")
		m.clk.Pause()
	}
}

func (m *Machine) handleSeek(r clock.SeekReport) {
	if !r.Backward {
		return
	}

	m.mu.Lock()
	if m.state == Idle {
		m.mu.Unlock()
		return
	}
	wasSpeaking := m.state == Speaking
	left := m.current
	m.cancelLocked()
	m.spoken = make(map[cue.ID]struct{})
	var tr *Transition
	if wasSpeaking {
		t := m.setStateLocked(Watching, ReasonSeekBack, left)
		tr = &t
	}
	m.mu.Unlock()

	m.logger.Debug().
		Str(log.FieldEvent, "narration.seek_back").
		Float64("from", r.From).
		Float64("to", r.To).
		Msg("backward seek, spoken cues forgotten")
	if wasSpeaking {
		m.cancelSpeech()
		m.emit(*tr)
	}
}

// cancelLocked invalidates the in-flight utterance and its timer.
func (m *Machine) cancelLocked() {
	if m.state == Speaking {
		metrics.IncNarrationOutcome("cancelled")
		metrics.ObserveNarrationDuration(m.now().Sub(m.speakStart))
	}
	m.seq++
	m.stopTimerLocked()
	m.forcePaused = false
	m.held = false
}

func (m *Machine) stopTimerLocked() {
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
}

func (m *Machine) cancelSpeech() {
	if m.synth == nil {
		return
	}
	m.effects.Lock()
	defer m.effects.Unlock()
	m.synth.CancelAll()
}

func (m *Machine) setStateLocked(to State, reason string, c cue.Cue) Transition {
	tr := Transition{From: m.state, To: to, Reason: reason, Cue: c}
	m.state = to
	if to != Speaking {
		m.current = cue.Cue{}
	}
	return tr
}

func (m *Machine) emit(tr Transition) {
	metrics.IncNarrationTransition(tr.From.String(), tr.To.String())
	m.logger.Debug().
		Str(log.FieldEvent, "narration.transition").
		Str(log.FieldOldState, tr.From.String()).
		Str(log.FieldNewState, tr.To.String()).
		Str("reason", tr.Reason).
		Msg("state change")

	m.mu.Lock()
	hooks := make([]func(Transition), len(m.hooks))
	copy(hooks, m.hooks)
	m.mu.Unlock()
	for _, fn := range hooks {
		fn(tr)
	}
}

func (m *Machine) indexLen() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.index.Len()
}

func seconds(s float64) time.Duration {
	if math.IsNaN(s) || s < 0 {
		return 0
	}
	return time.Duration(s * float64(time.Second))
}
