// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package player composes the playback clock, description narration and
// the transcript into one controllable player.
package player

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/ManuGH/cuesync/internal/clock"
	"github.com/ManuGH/cuesync/internal/cue"
	"github.com/ManuGH/cuesync/internal/log"
	"github.com/ManuGH/cuesync/internal/media"
	"github.com/ManuGH/cuesync/internal/metrics"
	"github.com/ManuGH/cuesync/internal/narration"
	"github.com/ManuGH/cuesync/internal/source"
	"github.com/ManuGH/cuesync/internal/speech"
	"github.com/ManuGH/cuesync/internal/transcript"
)

// DefaultSkipSeconds is the skip distance when Config.SkipSeconds is unset.
const DefaultSkipSeconds = 10

// ErrClosed is returned by commands issued after Close.
var ErrClosed = errors.New("player closed")

// Config names the cue sources and tunes the controls.
type Config struct {
	Captions    string // caption-only cue source
	Combined    string // captions plus visual descriptions
	SkipSeconds float64
	Rates       []float64
}

// Deps are the collaborators the player drives.
type Deps struct {
	Element      media.Element
	Presentation media.Presentation
	Synthesizer  speech.Synthesizer
	Loader       transcript.Loader
	// AfterFunc overrides the narration fallback timer; nil uses real timers.
	AfterFunc speech.AfterFunc
}

// Player is the player shell. All methods are safe for concurrent use.
type Player struct {
	cfg       Config
	sessionID string
	logger    zerolog.Logger

	clk    *clock.Adapter
	narr   *narration.Machine
	tr     *transcript.Controller
	pres   media.Presentation
	loader transcript.Loader

	mu               sync.Mutex
	closed           bool
	captions         bool
	descPriority     bool
	showDescriptions bool
	transcriptOn     bool
	captionIndex     *cue.Index
	combined         cue.Track
	tracks           TrackStatus
	unsubscribe      []func()

	changes listeners[struct{}]
	scrolls listeners[int]
}

// New builds a player around deps.Element. Tracks are not fetched until
// ReloadTracks.
func New(cfg Config, deps Deps) (*Player, error) {
	if deps.Element == nil {
		return nil, errors.New("player: media element is required")
	}
	if deps.Loader == nil {
		return nil, errors.New("player: cue loader is required")
	}
	if cfg.SkipSeconds <= 0 {
		cfg.SkipSeconds = DefaultSkipSeconds
	}
	if deps.Presentation == nil {
		deps.Presentation = &media.Headless{}
	}

	id := uuid.NewString()
	logger := log.WithComponent("player").With().Str(log.FieldSessionID, id).Logger()

	p := &Player{
		cfg:          cfg,
		sessionID:    id,
		logger:       logger,
		pres:         deps.Presentation,
		loader:       deps.Loader,
		captionIndex: cue.NewIndex(nil),
	}

	var clockOpts []clock.Option
	clockOpts = append(clockOpts, clock.WithLogger(logger))
	if len(cfg.Rates) > 0 {
		clockOpts = append(clockOpts, clock.WithRates(cfg.Rates))
	}
	p.clk = clock.New(deps.Element, clockOpts...)

	narrOpts := []narration.Option{narration.WithLogger(logger)}
	if deps.AfterFunc != nil {
		narrOpts = append(narrOpts, narration.WithAfterFunc(deps.AfterFunc))
	}
	p.narr = narration.New(p.clk, deps.Synthesizer, narrOpts...)
	p.narr.OnTransition(func(narration.Transition) { p.changed() })

	p.tr = transcript.New(p.clk, deps.Loader,
		transcript.WithLogger(logger),
		transcript.WithScroller(transcript.ScrollerFunc(p.scrollTo)))

	p.unsubscribe = []func(){
		p.clk.OnTick(func(clock.PlaybackState) { p.changed() }),
		p.clk.OnEnded(p.handleEnded),
		p.clk.OnSeek(func(clock.SeekReport) { p.changed() }),
	}

	logger.Info().Str(log.FieldEvent, "player.created").Msg("player created")
	return p, nil
}

// SessionID identifies this player instance in logs and snapshots.
func (p *Player) SessionID() string { return p.sessionID }

// OnChange registers fn to run after any state change. Calls may arrive on
// any goroutine.
func (p *Player) OnChange(fn func()) (unsubscribe func()) {
	return p.changes.add(func(struct{}) { fn() })
}

// OnScroll registers fn to receive transcript lines to centre.
func (p *Player) OnScroll(fn func(index int)) (unsubscribe func()) {
	return p.scrolls.add(fn)
}

func (p *Player) changed() {
	for _, fn := range p.changes.snapshot() {
		fn(struct{}{})
	}
}

func (p *Player) scrollTo(index int) {
	p.mu.Lock()
	visible := p.transcriptOn
	p.mu.Unlock()
	if !visible {
		return
	}
	for _, fn := range p.scrolls.snapshot() {
		fn(index)
	}
}

func (p *Player) handleEnded(s clock.PlaybackState) {
	p.logger.Info().
		Str(log.FieldEvent, "player.ended").
		Float64(log.FieldCurrentTime, s.CurrentTime).
		Msg("playback ended")
	p.changed()
}

// command guards and counts a user intent.
func (p *Player) command(name string) error {
	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed {
		return ErrClosed
	}
	metrics.IncPlayerCommand(name)
	p.logger.Debug().Str(log.FieldEvent, "player.command").Str("command", name).Msg("player command")
	return nil
}

// Play starts playback. A refusal by the media element leaves the player
// paused and returns an error wrapping media.ErrRefused.
func (p *Player) Play() error {
	if err := p.command("play"); err != nil {
		return err
	}
	defer p.changed()
	return p.clk.Play()
}

// Pause pauses playback.
func (p *Player) Pause() error {
	if err := p.command("pause"); err != nil {
		return err
	}
	p.clk.Pause()
	p.changed()
	return nil
}

// TogglePlay pauses a playing player and plays a paused one.
func (p *Player) TogglePlay() error {
	if err := p.command("toggle"); err != nil {
		return err
	}
	defer p.changed()
	if p.clk.State().IsPlaying {
		p.clk.Pause()
		return nil
	}
	return p.clk.Play()
}

// Restart seeks to the beginning and plays.
func (p *Player) Restart() error {
	if err := p.command("restart"); err != nil {
		return err
	}
	defer p.changed()
	p.clk.Seek(0)
	return p.clk.Play()
}

// Seek moves the playhead to t seconds, clamped to the media.
func (p *Player) Seek(t float64) (clock.SeekReport, error) {
	if err := p.command("seek"); err != nil {
		return clock.SeekReport{}, err
	}
	return p.clk.Seek(t), nil
}

// Skip moves the playhead by seconds; 0 skips forward by the configured
// distance. The target is clamped to the media.
func (p *Player) Skip(seconds float64) (clock.SeekReport, error) {
	if err := p.command("skip"); err != nil {
		return clock.SeekReport{}, err
	}
	if seconds == 0 {
		seconds = p.cfg.SkipSeconds
	}
	return p.clk.Seek(p.clk.State().CurrentTime + seconds), nil
}

// ToggleMute silences an audible player by dropping the volume to 0, and
// restores full volume otherwise.
func (p *Player) ToggleMute() error {
	if err := p.command("mute"); err != nil {
		return err
	}
	s := p.clk.State()
	if s.Volume > 0 && !s.Muted {
		p.clk.SetVolume(0)
	} else {
		p.clk.SetVolume(1)
	}
	p.changed()
	return nil
}

// SetVolume sets the volume, clamped to [0,1]. Volume 0 mutes.
func (p *Player) SetVolume(v float64) error {
	if err := p.command("volume"); err != nil {
		return err
	}
	p.clk.SetVolume(v)
	p.changed()
	return nil
}

// CycleRate advances to the next playback rate and returns it.
func (p *Player) CycleRate() (float64, error) {
	if err := p.command("rate"); err != nil {
		return 0, err
	}
	r := p.clk.NextRate()
	p.changed()
	return r, nil
}

// ToggleCaptions flips caption display. Captions the element cannot render
// natively are reported in Snapshot.Caption.
func (p *Player) ToggleCaptions() error {
	if err := p.command("captions"); err != nil {
		return err
	}
	p.mu.Lock()
	p.captions = !p.captions
	on := p.captions
	p.mu.Unlock()

	native := p.clk.SetCaptionsShowing(on)
	p.logger.Info().
		Str(log.FieldEvent, "player.captions").
		Bool("enabled", on).
		Bool("native", native).
		Msg("captions toggled")
	p.changed()
	return nil
}

// ToggleDescriptionPriority switches spoken visual descriptions on or off.
// Turning it on loads the combined track when it has not been fetched yet.
func (p *Player) ToggleDescriptionPriority(ctx context.Context) error {
	if err := p.command("description-priority"); err != nil {
		return err
	}
	p.mu.Lock()
	p.descPriority = !p.descPriority
	on := p.descPriority
	combined, loaded := p.combined, p.tracks.CombinedLoaded
	p.mu.Unlock()

	defer p.changed()
	if !on {
		p.narr.Disable()
		return nil
	}
	var err error
	if !loaded {
		combined, err = p.loadCombined(ctx)
	}
	p.narr.Enable(combined)
	return err
}

// ToggleDescriptions switches the transcript between the caption source
// and the combined source.
func (p *Player) ToggleDescriptions(ctx context.Context) error {
	if err := p.command("descriptions"); err != nil {
		return err
	}
	p.mu.Lock()
	p.showDescriptions = !p.showDescriptions
	visible := p.transcriptOn
	p.mu.Unlock()

	defer p.changed()
	if !visible {
		return nil
	}
	return p.tr.Load(ctx, p.transcriptSource())
}

// ToggleTranscript shows or hides the transcript. Showing it loads the
// selected source.
func (p *Player) ToggleTranscript(ctx context.Context) error {
	if err := p.command("transcript"); err != nil {
		return err
	}
	p.mu.Lock()
	p.transcriptOn = !p.transcriptOn
	visible := p.transcriptOn
	p.mu.Unlock()

	defer p.changed()
	if !visible {
		return nil
	}
	return p.tr.Load(ctx, p.transcriptSource())
}

// ToggleFullscreen enters or leaves fullscreen. A refusal is logged and
// leaves the presentation unchanged.
func (p *Player) ToggleFullscreen() error {
	if err := p.command("fullscreen"); err != nil {
		return err
	}
	op := "request_fullscreen"
	var err error
	if p.pres.IsFullscreen() {
		op = "exit_fullscreen"
		err = p.pres.ExitFullscreen()
	} else {
		err = p.pres.RequestFullscreen()
	}
	if err != nil {
		p.fullscreenFailed(op, err)
		return fmt.Errorf("%s: %w", op, err)
	}
	p.changed()
	return nil
}

func (p *Player) fullscreenFailed(op string, err error) {
	metrics.IncMediaControlFailure(op)
	p.logger.Warn().Err(err).
		Str(log.FieldEvent, "player.fullscreen_failed").
		Str("op", op).
		Msg("fullscreen request failed")
}

// HandleKey applies the player keyboard surface: Space and Enter toggle
// playback, Escape leaves fullscreen. It reports whether the key was used.
func (p *Player) HandleKey(key string) (bool, error) {
	switch key {
	case " ", "Space", "Spacebar", "Enter":
		return true, p.TogglePlay()
	case "Escape", "Esc":
		if !p.pres.IsFullscreen() {
			return false, nil
		}
		if err := p.command("escape"); err != nil {
			return true, err
		}
		if err := p.pres.ExitFullscreen(); err != nil {
			p.fullscreenFailed("exit_fullscreen", err)
			return true, fmt.Errorf("exit_fullscreen: %w", err)
		}
		p.changed()
		return true, nil
	default:
		return false, nil
	}
}

// ReloadTracks fetches both cue sources again and hands them to narration
// and the transcript. A failed source is presented as empty; the player
// stays controllable and the first error is returned.
func (p *Player) ReloadTracks(ctx context.Context) error {
	if err := p.command("reload"); err != nil {
		return err
	}
	defer p.changed()

	p.mu.Lock()
	captionsRef, combinedRef := p.cfg.Captions, p.cfg.Combined
	p.mu.Unlock()

	var (
		captions, combined cue.Track
		capErr, combErr    error
		g                  errgroup.Group
	)
	g.Go(func() error {
		captions, capErr = p.load(ctx, source.RoleCaptions, captionsRef)
		return capErr
	})
	g.Go(func() error {
		combined, combErr = p.load(ctx, source.RoleCombined, combinedRef)
		return combErr
	})
	err := g.Wait()

	p.mu.Lock()
	p.captionIndex = cue.NewIndex(captions.Filter(cue.Caption))
	p.combined = combined
	p.tracks = TrackStatus{
		Captions:       captions.Count(cue.Caption),
		Descriptions:   combined.Count(cue.VisualDescription),
		CombinedLoaded: true,
		CaptionsError:  errString(capErr),
		CombinedError:  errString(combErr),
	}
	p.mu.Unlock()

	p.narr.Reload(combined)
	var trErr error
	if p.transcriptLoaded() {
		if src := p.transcriptSource(); src == p.tr.Source() {
			trErr = p.tr.Refresh(ctx)
		} else {
			trErr = p.tr.Load(ctx, src)
		}
	}
	if trErr != nil && err == nil {
		err = trErr
	}
	if err != nil {
		return fmt.Errorf("reload tracks: %w", err)
	}
	return nil
}

// SetSources points the player at new cue sources. The tracks are fetched
// on the next ReloadTracks.
func (p *Player) SetSources(captions, combined string) {
	p.mu.Lock()
	changed := p.cfg.Captions != captions || p.cfg.Combined != combined
	p.cfg.Captions, p.cfg.Combined = captions, combined
	p.mu.Unlock()
	if changed {
		p.logger.Info().
			Str(log.FieldEvent, "player.sources_changed").
			Str("captions", captions).
			Str("combined", combined).
			Msg("cue sources changed")
	}
}

func (p *Player) loadCombined(ctx context.Context) (cue.Track, error) {
	p.mu.Lock()
	ref := p.cfg.Combined
	p.mu.Unlock()
	combined, err := p.load(ctx, source.RoleCombined, ref)
	p.mu.Lock()
	p.combined = combined
	p.tracks.CombinedLoaded = true
	p.tracks.Descriptions = combined.Count(cue.VisualDescription)
	p.tracks.CombinedError = errString(err)
	p.mu.Unlock()
	return combined, err
}

// load returns an empty track for an unset source.
func (p *Player) load(ctx context.Context, role, ref string) (cue.Track, error) {
	if ref == "" {
		return nil, nil
	}
	track, _, err := p.loader.Load(ctx, role, ref)
	if err != nil {
		return nil, err
	}
	return track, nil
}

// transcriptLoaded reports whether the transcript has been shown at least once.
func (p *Player) transcriptLoaded() bool {
	return p.tr.Source() != (transcript.Source{})
}

func (p *Player) transcriptSource() transcript.Source {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.showDescriptions {
		return transcript.Source{Role: source.RoleCombined, Ref: p.cfg.Combined}
	}
	return transcript.Source{Role: source.RoleCaptions, Ref: p.cfg.Captions}
}

// Transcript returns the rendered transcript.
func (p *Player) Transcript() transcript.View {
	return p.tr.View()
}

// TranscriptTrack returns the cues currently shown in the transcript.
func (p *Player) TranscriptTrack() cue.Track {
	return p.tr.Track()
}

// ActivateLine seeks to a transcript line, as a click would.
func (p *Player) ActivateLine(index int) error {
	if err := p.command("transcript-activate"); err != nil {
		return err
	}
	return p.tr.Activate(index)
}

// Close stops narration and detaches every component from the clock.
func (p *Player) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	unsub := p.unsubscribe
	p.unsubscribe = nil
	p.mu.Unlock()

	p.narr.Close()
	p.tr.Close()
	for _, fn := range unsub {
		fn()
	}
	p.logger.Info().Str(log.FieldEvent, "player.closed").Msg("player closed")
}

// Closed reports whether Close has been called.
func (p *Player) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
