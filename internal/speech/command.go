// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package speech

import (
	"fmt"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/ManuGH/cuesync/internal/log"
	"github.com/ManuGH/cuesync/internal/metrics"
	"github.com/ManuGH/cuesync/internal/procgroup"
)

// TextPlaceholder in CommandConfig.Args is replaced by the utterance text.
// Without it the text is appended as the last argument.
const TextPlaceholder = "{text}"

// CommandConfig describes an external text-to-speech program such as espeak-ng.
type CommandConfig struct {
	Path  string
	Args  []string
	Grace time.Duration // SIGTERM to SIGKILL escalation window
}

type utterance struct {
	cmd    *exec.Cmd
	waitCh chan error
	cancel chan struct{}
}

// Command speaks by running one process per utterance. Each process runs in
// its own process group and the group is terminated on CancelAll.
type Command struct {
	path   string
	args   []string
	grace  time.Duration
	logger zerolog.Logger

	mu     sync.Mutex
	active map[*utterance]struct{}
	wg     sync.WaitGroup
}

// NewCommand resolves cfg.Path and returns a Command synthesizer. It fails
// with ErrUnavailable when the program cannot be found.
func NewCommand(cfg CommandConfig) (*Command, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("%w: no speech command configured", ErrUnavailable)
	}
	path, err := exec.LookPath(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	grace := cfg.Grace
	if grace <= 0 {
		grace = 2 * time.Second
	}
	return &Command{
		path:   path,
		args:   append([]string(nil), cfg.Args...),
		grace:  grace,
		logger: log.WithComponent("speech"),
		active: make(map[*utterance]struct{}),
	}, nil
}

func (c *Command) argv(text string) []string {
	out := make([]string, 0, len(c.args)+1)
	substituted := false
	for _, a := range c.args {
		if strings.Contains(a, TextPlaceholder) {
			a = strings.ReplaceAll(a, TextPlaceholder, text)
			substituted = true
		}
		out = append(out, a)
	}
	if !substituted {
		out = append(out, text)
	}
	return out
}

func (c *Command) Speak(text string, onEnd func(error)) error {
	cmd := exec.Command(c.path, c.argv(text)...)
	procgroup.Set(cmd)
	if err := cmd.Start(); err != nil {
		metrics.IncSpeechUtterance("command", "failed")
		return fmt.Errorf("%w: start %s: %v", ErrUnavailable, c.path, err)
	}

	u := &utterance{cmd: cmd, waitCh: make(chan error, 1), cancel: make(chan struct{})}
	c.mu.Lock()
	c.active[u] = struct{}{}
	c.mu.Unlock()

	c.wg.Add(2)
	go func() {
		defer c.wg.Done()
		u.waitCh <- cmd.Wait()
	}()
	go func() {
		defer c.wg.Done()
		c.supervise(u, onEnd)
	}()

	c.logger.Debug().
		Str(log.FieldEvent, "speech.utterance_started").
		Int("pid", cmd.Process.Pid).
		Msg("speech process started")
	return nil
}

func (c *Command) supervise(u *utterance, onEnd func(error)) {
	select {
	case err := <-u.waitCh:
		c.mu.Lock()
		_, live := c.active[u]
		delete(c.active, u)
		c.mu.Unlock()
		if !live {
			return
		}
		if err != nil {
			metrics.IncSpeechUtterance("command", "failed")
			c.logger.Warn().Err(err).Str(log.FieldEvent, "speech.utterance_failed").Msg("speech process failed")
			err = fmt.Errorf("speech process: %w", err)
		} else {
			metrics.IncSpeechUtterance("command", "completed")
		}
		if onEnd != nil {
			onEnd(err)
		}
	case <-u.cancel:
		metrics.IncSpeechUtterance("command", "cancelled")
		_ = procgroup.Terminate(u.cmd, u.waitCh, c.grace)
	}
}

func (c *Command) CancelAll() {
	c.mu.Lock()
	active := c.active
	c.active = make(map[*utterance]struct{})
	c.mu.Unlock()

	for u := range active {
		close(u.cancel)
	}
}

// Close cancels all utterances and waits for their processes to exit.
func (c *Command) Close() {
	c.CancelAll()
	c.wg.Wait()
}
