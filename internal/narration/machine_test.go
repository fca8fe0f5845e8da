// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package narration

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/cuesync/internal/clock"
	"github.com/ManuGH/cuesync/internal/cue"
	"github.com/ManuGH/cuesync/internal/speech"
)

const welcomeCombined = `WEBVTT

1
00:00:00.000 --> 00:00:02.500
Welcome

NOTE Visual description
00:00:01.000 --> 00:00:03.000
A professor waves
`

type fakeClock struct {
	mu     sync.Mutex
	state  clock.PlaybackState
	plays  int
	pauses int
	ticks  map[int]func(clock.PlaybackState)
	seeks  map[int]func(clock.SeekReport)
	nextID int
	// onPause runs after Pause, outside the fake's lock.
	onPause func()
}

func newFakeClock() *fakeClock {
	return &fakeClock{
		state: clock.PlaybackState{Duration: 60, Volume: 1, PlaybackRate: 1},
		ticks: map[int]func(clock.PlaybackState){},
		seeks: map[int]func(clock.SeekReport){},
	}
}

func (f *fakeClock) State() clock.PlaybackState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *fakeClock) Play() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.plays++
	f.state.IsPlaying = true
	return nil
}

func (f *fakeClock) Pause() {
	f.mu.Lock()
	f.pauses++
	f.state.IsPlaying = false
	hook := f.onPause
	f.mu.Unlock()
	if hook != nil {
		hook()
	}
}

func (f *fakeClock) setOnPause(fn func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.onPause = fn
}

func (f *fakeClock) OnTick(fn func(clock.PlaybackState)) func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	id := f.nextID
	f.ticks[id] = fn
	return func() { f.mu.Lock(); delete(f.ticks, id); f.mu.Unlock() }
}

func (f *fakeClock) OnSeek(fn func(clock.SeekReport)) func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	id := f.nextID
	f.seeks[id] = fn
	return func() { f.mu.Lock(); delete(f.seeks, id); f.mu.Unlock() }
}

func (f *fakeClock) tick(t float64) {
	f.mu.Lock()
	f.state.CurrentTime = t
	f.state.LastObservedTime = t
	snap := f.state
	var fns []func(clock.PlaybackState)
	for _, fn := range f.ticks {
		fns = append(fns, fn)
	}
	f.mu.Unlock()
	for _, fn := range fns {
		fn(snap)
	}
}

func (f *fakeClock) seek(t float64) {
	f.mu.Lock()
	r := clock.SeekReport{From: f.state.LastObservedTime, To: t, Backward: t < f.state.LastObservedTime}
	f.state.CurrentTime = t
	f.state.LastObservedTime = t
	var fns []func(clock.SeekReport)
	for _, fn := range f.seeks {
		fns = append(fns, fn)
	}
	f.mu.Unlock()
	for _, fn := range fns {
		fn(r)
	}
}

func (f *fakeClock) counts() (plays, pauses int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.plays, f.pauses
}

type fakeSynth struct {
	mu      sync.Mutex
	texts   []string
	ends    []func(error)
	cancels int
	err     error
}

func (f *fakeSynth) Speak(text string, onEnd func(error)) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.texts = append(f.texts, text)
	f.ends = append(f.ends, onEnd)
	return nil
}

func (f *fakeSynth) CancelAll() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancels++
}

func (f *fakeSynth) finish(i int, err error) {
	f.mu.Lock()
	end := f.ends[i]
	f.mu.Unlock()
	end(err)
}

func (f *fakeSynth) spoken() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.texts...)
}

type fakeTimer struct {
	d       time.Duration
	f       func()
	stopped bool
}

func (t *fakeTimer) Stop() bool {
	was := !t.stopped
	t.stopped = true
	return was
}

type fakeTimers struct {
	mu     sync.Mutex
	timers []*fakeTimer
}

func (f *fakeTimers) AfterFunc(d time.Duration, fn func()) speech.Timer {
	f.mu.Lock()
	defer f.mu.Unlock()
	t := &fakeTimer{d: d, f: fn}
	f.timers = append(f.timers, t)
	return t
}

// fire runs timer i even if it was stopped, to exercise stale callbacks.
func (f *fakeTimers) fire(i int) {
	f.mu.Lock()
	t := f.timers[i]
	f.mu.Unlock()
	t.f()
}

type harness struct {
	clk    *fakeClock
	synth  *fakeSynth
	timers *fakeTimers
	m      *Machine
	trs    []Transition
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{clk: newFakeClock(), synth: &fakeSynth{}, timers: &fakeTimers{}}
	h.m = New(h.clk, h.synth, WithAfterFunc(h.timers.AfterFunc))
	h.m.OnTransition(func(tr Transition) { h.trs = append(h.trs, tr) })
	t.Cleanup(h.m.Close)
	return h
}

func welcomeTrack(t *testing.T) cue.Track {
	t.Helper()
	track := cue.Parse(welcomeCombined)
	require.Len(t, track, 2)
	return track
}

func TestMachine_WelcomeScenario(t *testing.T) {
	h := newHarness(t)
	track := welcomeTrack(t)
	idx := cue.NewIndex(track)

	caption, ok := idx.ActiveCue(0.5, cue.Caption)
	require.True(t, ok)
	assert.Equal(t, "Welcome", caption.Text)
	_, ok = idx.ActiveCue(0.5, cue.VisualDescription)
	assert.False(t, ok)

	h.m.Enable(track)
	require.NoError(t, h.clk.Play())

	h.clk.tick(0.5)
	assert.Equal(t, Watching, h.m.State())
	assert.Empty(t, h.synth.spoken())

	h.clk.tick(1.5)
	assert.Equal(t, Speaking, h.m.State())
	assert.False(t, h.clk.State().IsPlaying, "video held while speaking")
	assert.Equal(t, []string{"A professor waves"}, h.synth.spoken())
	require.Len(t, h.timers.timers, 1)
	assert.Equal(t, 1500*time.Millisecond, h.timers.timers[0].d)

	h.synth.finish(0, nil)
	assert.Equal(t, Watching, h.m.State())
	assert.True(t, h.clk.State().IsPlaying, "playback resumes after narration")
	assert.True(t, h.timers.timers[0].stopped)

	plays, pauses := h.clk.counts()
	assert.Equal(t, 2, plays)
	assert.Equal(t, 1, pauses)

	want := []Transition{
		{From: Idle, To: Watching, Reason: ReasonEnabled},
		{From: Watching, To: Speaking, Reason: ReasonCueActive, Cue: track[1]},
		{From: Speaking, To: Watching, Reason: ReasonCompleted, Cue: track[1]},
	}
	if diff := cmp.Diff(want, h.trs); diff != "" {
		t.Errorf("transitions mismatch (-want +got):\n%s", diff)
	}
}

func TestMachine_AtMostOneSpeakPerTick(t *testing.T) {
	h := newHarness(t)
	track := cue.Track{
		{Kind: cue.VisualDescription, Start: 1, End: 3, Text: "first"},
		{Kind: cue.VisualDescription, Start: 1, End: 4, Text: "second"},
	}
	h.m.Enable(track)

	h.clk.tick(1.5)
	assert.Equal(t, []string{"first"}, h.synth.spoken())

	h.clk.tick(1.5)
	assert.Equal(t, []string{"first"}, h.synth.spoken(), "ticks while speaking are deferred")

	h.synth.finish(0, nil)
	h.clk.tick(1.6)
	assert.Equal(t, []string{"first", "second"}, h.synth.spoken())
}

func TestMachine_NoRetriggerWithoutSeekBack(t *testing.T) {
	h := newHarness(t)
	h.m.Enable(welcomeTrack(t))

	h.clk.tick(1.5)
	h.synth.finish(0, nil)
	h.clk.tick(2.0)
	h.clk.seek(2.2)
	h.clk.tick(2.2)
	h.clk.tick(2.9)

	assert.Len(t, h.synth.spoken(), 1)
	assert.Equal(t, 1, h.m.Snapshot().Spoken)
}

func TestMachine_BackwardSeekResets(t *testing.T) {
	h := newHarness(t)
	h.m.Enable(welcomeTrack(t))

	h.clk.tick(1.5)
	h.synth.finish(0, nil)
	h.clk.tick(2.5)

	h.clk.seek(1.2)
	assert.Zero(t, h.m.Snapshot().Spoken)

	h.clk.tick(1.2)
	assert.Equal(t, []string{"A professor waves", "A professor waves"}, h.synth.spoken())
	assert.Equal(t, Speaking, h.m.State())
}

func TestMachine_BackwardSeekWhileSpeakingCancels(t *testing.T) {
	h := newHarness(t)
	h.m.Enable(welcomeTrack(t))

	h.clk.tick(2.0)
	require.Equal(t, Speaking, h.m.State())

	h.clk.seek(0.2)
	assert.Equal(t, Watching, h.m.State())
	assert.Equal(t, 2, h.synth.cancels, "one cancel when speaking started, one for the seek")
	assert.True(t, h.timers.timers[0].stopped)

	h.synth.finish(0, nil)
	plays, _ := h.clk.counts()
	assert.Zero(t, plays, "stale completion must not resume")
}

func TestMachine_ForwardSeekKeepsSpoken(t *testing.T) {
	h := newHarness(t)
	h.m.Enable(welcomeTrack(t))

	h.clk.tick(1.2)
	h.synth.finish(0, nil)
	h.clk.seek(1.8)

	assert.Equal(t, 1, h.m.Snapshot().Spoken)
	h.clk.tick(1.8)
	assert.Len(t, h.synth.spoken(), 1)
}

func TestMachine_DisableWhileSpeaking(t *testing.T) {
	h := newHarness(t)
	h.m.Enable(welcomeTrack(t))
	h.clk.tick(1.5)

	h.m.Disable()
	assert.Equal(t, Idle, h.m.State())
	assert.True(t, h.timers.timers[0].stopped)
	assert.Equal(t, 2, h.synth.cancels)

	h.synth.finish(0, nil)
	h.timers.fire(0)
	plays, pauses := h.clk.counts()
	assert.Zero(t, plays, "no forced resume after disable")
	assert.Equal(t, 1, pauses)

	h.clk.tick(1.6)
	assert.Len(t, h.synth.spoken(), 1, "idle machine ignores ticks")
}

func TestMachine_DisableDuringPauseNeverSpeaks(t *testing.T) {
	h := newHarness(t)
	h.m.Enable(welcomeTrack(t))
	require.NoError(t, h.clk.Play())
	h.clk.setOnPause(h.m.Disable)

	h.clk.tick(1.5)

	assert.Equal(t, Idle, h.m.State())
	assert.Empty(t, h.synth.spoken(), "no utterance after the mode was turned off")
	assert.Equal(t, 1, h.synth.cancels)
	require.Len(t, h.timers.timers, 1)
	assert.True(t, h.timers.timers[0].stopped)

	h.timers.fire(0)
	_, pauses := h.clk.counts()
	assert.Equal(t, 1, pauses, "stale fallback leaves the clock alone")
}

func TestMachine_ReloadWhileSpeakingResumesPlayback(t *testing.T) {
	h := newHarness(t)
	track := welcomeTrack(t)
	h.m.Enable(track)
	require.NoError(t, h.clk.Play())

	h.clk.tick(1.5)
	require.Equal(t, Speaking, h.m.State())
	require.False(t, h.clk.State().IsPlaying)

	h.m.Reload(track)
	assert.Equal(t, Watching, h.m.State())
	assert.True(t, h.clk.State().IsPlaying, "narration no longer holds playback")
	plays, pauses := h.clk.counts()
	assert.Equal(t, 2, plays)
	assert.Equal(t, 1, pauses)

	h.synth.finish(0, nil)
	plays, _ = h.clk.counts()
	assert.Equal(t, 2, plays, "cancelled utterance does not resume again")
}

func TestMachine_ReloadAfterFallbackPauseStaysPaused(t *testing.T) {
	h := newHarness(t)
	track := welcomeTrack(t)
	h.m.Enable(track)
	require.NoError(t, h.clk.Play())
	h.clk.tick(1.5)

	// The user resumes mid-narration and playback runs past the cue end.
	require.NoError(t, h.clk.Play())
	h.clk.tick(3.2)
	h.timers.fire(0)
	require.True(t, h.m.Snapshot().ForcePaused)

	h.m.Reload(track)
	assert.False(t, h.clk.State().IsPlaying)
}

func TestMachine_FallbackPausesResumedPlayback(t *testing.T) {
	h := newHarness(t)
	h.m.Enable(welcomeTrack(t))
	h.clk.tick(1.5)

	// Something else resumed playback and it ran past the cue end.
	require.NoError(t, h.clk.Play())
	h.clk.tick(3.2)

	h.timers.fire(0)
	assert.False(t, h.clk.State().IsPlaying)
	assert.True(t, h.m.Snapshot().ForcePaused)

	h.synth.finish(0, nil)
	assert.Equal(t, Watching, h.m.State())
	plays, pauses := h.clk.counts()
	assert.Equal(t, 1, plays, "completion after fallback pause must not resume")
	assert.Equal(t, 2, pauses)
}

func TestMachine_FallbackWhileHeldIsNoop(t *testing.T) {
	h := newHarness(t)
	h.m.Enable(welcomeTrack(t))
	h.clk.tick(1.5)

	h.timers.fire(0)
	assert.False(t, h.m.Snapshot().ForcePaused)

	h.synth.finish(0, nil)
	assert.True(t, h.clk.State().IsPlaying)
}

func TestMachine_CompletionAfterUserResumed(t *testing.T) {
	h := newHarness(t)
	h.m.Enable(welcomeTrack(t))
	h.clk.tick(1.5)

	require.NoError(t, h.clk.Play())
	h.synth.finish(0, nil)

	plays, _ := h.clk.counts()
	assert.Equal(t, 1, plays, "no double resume")
}

func TestMachine_CompletionPastCueEndHolds(t *testing.T) {
	h := newHarness(t)
	h.m.Enable(welcomeTrack(t))
	h.clk.tick(1.5)

	h.clk.seek(5)
	h.synth.finish(0, nil)

	assert.Equal(t, Watching, h.m.State())
	plays, _ := h.clk.counts()
	assert.Zero(t, plays)
}

func TestMachine_SynthesisFailureResumes(t *testing.T) {
	h := newHarness(t)
	h.synth.err = errors.New("no voices")
	h.m.Enable(welcomeTrack(t))

	h.clk.tick(1.5)
	assert.Equal(t, Watching, h.m.State())
	assert.True(t, h.clk.State().IsPlaying)
	assert.Equal(t, ReasonFailed, h.trs[len(h.trs)-1].Reason)
}

func TestMachine_NilSynthesizer(t *testing.T) {
	clk := newFakeClock()
	timers := &fakeTimers{}
	m := New(clk, nil, WithAfterFunc(timers.AfterFunc))
	defer m.Close()

	m.Enable(welcomeTrack(t))
	clk.tick(1.5)

	assert.Equal(t, Watching, m.State())
	assert.Equal(t, 1, m.Snapshot().Spoken)
	plays, pauses := clk.counts()
	assert.Equal(t, 1, plays)
	assert.Equal(t, 1, pauses)
}

func TestMachine_StaleTimerAfterNextCue(t *testing.T) {
	h := newHarness(t)
	track := cue.Track{
		{Kind: cue.VisualDescription, Start: 1, End: 2, Text: "first"},
		{Kind: cue.VisualDescription, Start: 4, End: 6, Text: "second"},
	}
	h.m.Enable(track)

	h.clk.tick(1)
	h.synth.finish(0, nil)
	h.clk.tick(4)
	require.Len(t, h.timers.timers, 2)

	require.NoError(t, h.clk.Play())
	h.clk.tick(7)
	h.timers.fire(0)
	assert.False(t, h.m.Snapshot().ForcePaused, "timer of the first utterance is stale")
}

func TestMachine_ReloadClearsAndCancels(t *testing.T) {
	h := newHarness(t)
	h.m.Enable(welcomeTrack(t))
	h.clk.tick(1.5)

	replacement := cue.Track{{Kind: cue.VisualDescription, Start: 1, End: 3, Text: "A professor waves again"}}
	h.m.Reload(replacement)
	assert.Equal(t, Watching, h.m.State())
	assert.Zero(t, h.m.Snapshot().Spoken)

	h.synth.finish(0, nil)
	plays, _ := h.clk.counts()
	assert.Zero(t, plays)

	h.clk.tick(1.6)
	assert.Equal(t, []string{"A professor waves", "A professor waves again"}, h.synth.spoken())
}

func TestMachine_EnableTwiceReloads(t *testing.T) {
	h := newHarness(t)
	h.m.Enable(welcomeTrack(t))
	h.clk.tick(1.5)
	h.synth.finish(0, nil)

	h.m.Enable(welcomeTrack(t))
	assert.Zero(t, h.m.Snapshot().Spoken)
	assert.Equal(t, ReasonReloaded, h.trs[len(h.trs)-1].Reason)
}

func TestMachine_ReloadWhileIdleStoresTrack(t *testing.T) {
	h := newHarness(t)
	h.m.Reload(welcomeTrack(t))
	assert.Equal(t, Idle, h.m.State())
	assert.Empty(t, h.trs)
}

func TestMachine_CloseDetaches(t *testing.T) {
	h := newHarness(t)
	h.m.Enable(welcomeTrack(t))
	h.m.Close()
	h.m.Close()

	h.clk.mu.Lock()
	subs := len(h.clk.ticks) + len(h.clk.seeks)
	h.clk.mu.Unlock()
	assert.Zero(t, subs)

	h.m.Enable(welcomeTrack(t))
	assert.Equal(t, Idle, h.m.State())
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "idle", Idle.String())
	assert.Equal(t, "watching", Watching.String())
	assert.Equal(t, "speaking", Speaking.String())
	assert.Equal(t, "unknown", State(9).String())
}
