// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package transcript keeps a scrolling transcript in step with the playback
// clock: it tracks the active line, asks the renderer to centre it and turns
// line activation into seeks.
package transcript

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/ManuGH/cuesync/internal/clock"
	"github.com/ManuGH/cuesync/internal/cue"
	"github.com/ManuGH/cuesync/internal/log"
	"github.com/ManuGH/cuesync/internal/source"
)

// NotAvailableMessage replaces the line list when no cues could be loaded.
const NotAvailableMessage = "Transcript not available or failed to load."

// ErrNoLine is returned when activating a line that does not exist.
var ErrNoLine = errors.New("no such transcript line")

// Clock is the part of the playback clock the transcript uses.
type Clock interface {
	State() clock.PlaybackState
	Seek(t float64) clock.SeekReport
	OnTick(fn func(clock.PlaybackState)) func()
}

// Loader fetches and parses a cue source.
type Loader interface {
	Load(ctx context.Context, role, ref string) (cue.Track, cue.Report, error)
}

// Source selects the cue file rendered as the transcript.
type Source struct {
	Role string // source.RoleCaptions or source.RoleCombined
	Ref  string
}

// Combined reports whether description cues are rendered.
func (s Source) Combined() bool { return s.Role == source.RoleCombined }

// Scroller brings a line into view. It is a pure display effect.
type Scroller interface {
	CenterLine(index int)
}

// ScrollerFunc adapts a function to Scroller.
type ScrollerFunc func(index int)

func (f ScrollerFunc) CenterLine(index int) { f(index) }

// Option configures a Controller.
type Option func(*Controller)

func WithScroller(s Scroller) Option {
	return func(c *Controller) { c.scroller = s }
}

func WithLogger(l zerolog.Logger) Option {
	return func(c *Controller) { c.logger = l }
}

// Controller is the transcript view controller.
type Controller struct {
	clk      Clock
	loader   Loader
	scroller Scroller
	logger   zerolog.Logger

	mu      sync.Mutex
	src     Source
	loaded  bool
	loadSeq uint64
	track   cue.Track
	index   *cue.Index
	active  int
	loadErr error
	unsub   func()
}

// New returns a controller with no track loaded, subscribed to clk.
func New(clk Clock, loader Loader, opts ...Option) *Controller {
	c := &Controller{
		clk:    clk,
		loader: loader,
		logger: log.WithComponent("transcript"),
		active: -1,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.unsub = clk.OnTick(c.handleTick)
	return c
}

// Load shows src. The source is fetched again only when it differs from the
// one currently shown. A failed fetch leaves an empty, unavailable transcript
// and returns the error.
func (c *Controller) Load(ctx context.Context, src Source) error {
	c.mu.Lock()
	same := c.loaded && c.src == src && c.loadErr == nil
	c.mu.Unlock()
	if same {
		return nil
	}
	return c.fetch(ctx, src)
}

// Refresh fetches the current source again.
func (c *Controller) Refresh(ctx context.Context) error {
	c.mu.Lock()
	src, loaded := c.src, c.loaded
	c.mu.Unlock()
	if !loaded {
		return nil
	}
	return c.fetch(ctx, src)
}

func (c *Controller) fetch(ctx context.Context, src Source) error {
	c.mu.Lock()
	c.loadSeq++
	seq := c.loadSeq
	c.mu.Unlock()

	track, _, err := c.loader.Load(ctx, src.Role, src.Ref)
	if err != nil {
		track = cue.Track{}
		c.logger.Warn().Err(err).
			Str(log.FieldEvent, "transcript.load_failed").
			Str(log.FieldSource, src.Role).
			Msg("transcript not available")
	}
	if !src.Combined() {
		track = track.Filter(cue.Caption)
	}

	c.mu.Lock()
	if seq != c.loadSeq {
		// A newer load superseded this one.
		c.mu.Unlock()
		return err
	}
	c.src = src
	c.loaded = true
	c.loadErr = err
	c.index = cue.NewIndex(track)
	c.track = c.index.All()
	c.active = -1
	c.mu.Unlock()

	c.handleTick(c.clk.State())
	if err != nil {
		return fmt.Errorf("load transcript: %w", err)
	}
	return nil
}

func (c *Controller) handleTick(s clock.PlaybackState) {
	c.mu.Lock()
	i := c.activeIndexLocked(s.CurrentTime)
	changed := i != c.active
	c.active = i
	scroller := c.scroller
	c.mu.Unlock()

	if changed && i >= 0 && scroller != nil {
		scroller.CenterLine(i)
	}
}

// activeIndexLocked returns the position of the first rendered cue
// containing t, or -1.
func (c *Controller) activeIndexLocked(t float64) int {
	best := -1
	for _, kind := range []cue.Kind{cue.Caption, cue.VisualDescription} {
		hit, ok := c.index.ActiveCue(t, kind)
		if !ok {
			continue
		}
		if i := c.index.IndexOf(hit); i >= 0 && (best < 0 || i < best) {
			best = i
		}
	}
	return best
}

// Active returns the active line index, or -1.
func (c *Controller) Active() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

// Source returns the source currently shown.
func (c *Controller) Source() Source {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.src
}

// Track returns the rendered cues.
func (c *Controller) Track() cue.Track {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append(cue.Track(nil), c.track...)
}

// Activate seeks the clock to the start of line index.
func (c *Controller) Activate(index int) error {
	c.mu.Lock()
	if index < 0 || index >= len(c.track) {
		c.mu.Unlock()
		return fmt.Errorf("%w: %d", ErrNoLine, index)
	}
	target := c.track[index]
	c.mu.Unlock()

	c.clk.Seek(target.Start)
	c.logger.Debug().
		Str(log.FieldEvent, "transcript.activate").
		Int("line", index).
		Float64(log.FieldCueStart, target.Start).
		Msg("seek to transcript line")
	return nil
}

// HandleKey activates line index for Enter and Space. It reports whether the
// key was consumed.
func (c *Controller) HandleKey(index int, key string) (bool, error) {
	switch key {
	case "Enter", " ", "Space", "Spacebar":
		return true, c.Activate(index)
	default:
		return false, nil
	}
}

// Close detaches the controller from the clock.
func (c *Controller) Close() {
	c.mu.Lock()
	unsub := c.unsub
	c.unsub = nil
	c.mu.Unlock()
	if unsub != nil {
		unsub()
	}
}

// CenterOffset is the scroll offset that centres a line of lineHeight at
// lineTop inside a viewport of viewportHeight. It never goes below 0.
func CenterOffset(lineTop, lineHeight, viewportHeight float64) float64 {
	off := lineTop - (viewportHeight-lineHeight)/2
	if off < 0 {
		return 0
	}
	return off
}
