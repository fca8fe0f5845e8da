// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package resilience keeps a failing remote cue source from being hammered
// on every reload.
package resilience

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ManuGH/cuesync/internal/log"
	"github.com/ManuGH/cuesync/internal/metrics"
	"github.com/ManuGH/cuesync/internal/source"
)

// State is the breaker state.
type State string

const (
	StateClosed   State = "closed"
	StateOpen     State = "open"
	StateHalfOpen State = "half-open"
)

// ErrOpen is returned without calling through while the breaker is open.
var ErrOpen = errors.New("source breaker is open")

const (
	DefaultThreshold    = 3
	DefaultResetTimeout = 30 * time.Second
)

type clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// Breaker opens after threshold consecutive failures and lets a single
// probe through once resetTimeout has passed.
type Breaker struct {
	mu           sync.Mutex
	name         string
	state        State
	failures     int
	threshold    int
	resetTimeout time.Duration
	openedAt     time.Time
	probing      bool
	clock        clock
}

// Option configures a Breaker.
type Option func(*Breaker)

// WithClock replaces the wall clock.
func WithClock(c clock) Option {
	return func(b *Breaker) { b.clock = c }
}

// NewBreaker returns a closed breaker. Non-positive arguments take defaults.
func NewBreaker(name string, threshold int, resetTimeout time.Duration, opts ...Option) *Breaker {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	if resetTimeout <= 0 {
		resetTimeout = DefaultResetTimeout
	}
	b := &Breaker{
		name:         name,
		state:        StateClosed,
		threshold:    threshold,
		resetTimeout: resetTimeout,
		clock:        realClock{},
	}
	for _, opt := range opts {
		opt(b)
	}
	metrics.SetBreakerState(b.name, string(b.state))
	return b
}

// Execute runs fn unless the breaker is open. Context cancellation is not
// counted against the source.
func (b *Breaker) Execute(ctx context.Context, fn func(context.Context) error) error {
	if !b.allow() {
		return ErrOpen
	}
	err := fn(ctx)
	switch {
	case err == nil:
		b.recordSuccess()
	case ctx.Err() != nil:
		b.release()
	default:
		b.recordFailure()
	}
	return err
}

// State returns the current state.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

func (b *Breaker) allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		return true
	case StateOpen:
		if b.clock.Now().Sub(b.openedAt) < b.resetTimeout {
			return false
		}
		b.transitionTo(StateHalfOpen)
	}
	if b.probing {
		return false
	}
	b.probing = true
	return true
}

func (b *Breaker) release() {
	b.mu.Lock()
	b.probing = false
	b.mu.Unlock()
}

func (b *Breaker) recordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures++
	b.probing = false
	switch {
	case b.state == StateHalfOpen:
		metrics.IncBreakerTrip(b.name, "probe_failed")
		b.transitionTo(StateOpen)
	case b.state == StateClosed && b.failures >= b.threshold:
		metrics.IncBreakerTrip(b.name, "threshold")
		b.transitionTo(StateOpen)
	}
}

func (b *Breaker) recordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures = 0
	b.probing = false
	b.transitionTo(StateClosed)
}

// transitionTo must be called with mu held.
func (b *Breaker) transitionTo(next State) {
	if b.state == next {
		return
	}
	logger := log.WithComponent("resilience")
	logger.Info().
		Str(log.FieldEvent, "breaker.transition").
		Str("breaker", b.name).
		Str(log.FieldOldState, string(b.state)).
		Str(log.FieldNewState, string(next)).
		Msg("source breaker changed state")
	b.state = next
	if next == StateOpen {
		b.openedAt = b.clock.Now()
	}
	metrics.SetBreakerState(b.name, string(next))
}

// Fetcher guards an upstream fetcher with a breaker.
type Fetcher struct {
	Upstream source.Fetcher
	Breaker  *Breaker
}

func (f *Fetcher) Fetch(ctx context.Context, ref string) ([]byte, error) {
	var data []byte
	err := f.Breaker.Execute(ctx, func(ctx context.Context) error {
		var err error
		data, err = f.Upstream.Fetch(ctx, ref)
		return err
	})
	if errors.Is(err, ErrOpen) {
		return nil, fmt.Errorf("%w: %s: %w", source.ErrFetch, ref, err)
	}
	return data, err
}
