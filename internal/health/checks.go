// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package health

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/ManuGH/cuesync/internal/player"
	"github.com/ManuGH/cuesync/internal/resilience"
)

// PlayerChecker reports on the player and its last track load. Load
// failures degrade the player but it stays controllable.
type PlayerChecker struct {
	Player *player.Player
}

func (c PlayerChecker) Name() string { return "player" }

func (c PlayerChecker) Check(context.Context) CheckResult {
	if c.Player.Closed() {
		return CheckResult{Status: StatusUnhealthy, Error: "player closed"}
	}
	tracks := c.Player.Snapshot().Tracks
	switch {
	case tracks.CaptionsError != "":
		return CheckResult{Status: StatusDegraded, Message: "captions not loaded", Error: tracks.CaptionsError}
	case tracks.CombinedError != "":
		return CheckResult{Status: StatusDegraded, Message: "descriptions not loaded", Error: tracks.CombinedError}
	}
	return CheckResult{
		Status:  StatusHealthy,
		Message: fmt.Sprintf("%d captions, %d descriptions", tracks.Captions, tracks.Descriptions),
	}
}

// FileChecker reports on a local cue file. An empty path is healthy.
type FileChecker struct {
	name string
	path string
}

// NewFileChecker returns a checker for path.
func NewFileChecker(name, path string) *FileChecker {
	return &FileChecker{name: name, path: path}
}

func (c *FileChecker) Name() string { return c.name }

func (c *FileChecker) Check(context.Context) CheckResult {
	if c.path == "" {
		return CheckResult{Status: StatusHealthy, Message: "not configured"}
	}
	info, err := os.Stat(c.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return CheckResult{Status: StatusUnhealthy, Error: "file not found", Message: c.path}
		}
		return CheckResult{Status: StatusUnhealthy, Error: err.Error()}
	}
	if info.IsDir() {
		return CheckResult{Status: StatusUnhealthy, Error: "expected file, got directory", Message: c.path}
	}
	if info.Size() == 0 {
		return CheckResult{Status: StatusDegraded, Message: "file is empty"}
	}
	return CheckResult{Status: StatusHealthy, Message: c.path}
}

// BreakerChecker degrades while a source breaker is not closed.
type BreakerChecker struct {
	name    string
	breaker *resilience.Breaker
}

// NewBreakerChecker returns a checker for b.
func NewBreakerChecker(name string, b *resilience.Breaker) *BreakerChecker {
	return &BreakerChecker{name: name, breaker: b}
}

func (c *BreakerChecker) Name() string { return c.name }

func (c *BreakerChecker) Check(context.Context) CheckResult {
	state := c.breaker.State()
	if state == resilience.StateClosed {
		return CheckResult{Status: StatusHealthy, Message: string(state)}
	}
	return CheckResult{Status: StatusDegraded, Message: string(state), Error: "remote sources failing"}
}
