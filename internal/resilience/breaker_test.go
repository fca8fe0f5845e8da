// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/cuesync/internal/metrics"
	"github.com/ManuGH/cuesync/internal/source"
)

type mockClock struct {
	now time.Time
}

func (m *mockClock) Now() time.Time { return m.now }

var errUpstream = errors.New("upstream down")

func fail(context.Context) error { return errUpstream }
func ok(context.Context) error   { return nil }

func TestBreaker_OpensAtThreshold(t *testing.T) {
	clk := &mockClock{now: time.Now()}
	b := NewBreaker("test-threshold", 3, time.Minute, WithClock(clk))
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		assert.ErrorIs(t, b.Execute(ctx, fail), errUpstream)
	}
	assert.Equal(t, StateClosed, b.State())

	assert.ErrorIs(t, b.Execute(ctx, fail), errUpstream)
	assert.Equal(t, StateOpen, b.State())

	called := false
	err := b.Execute(ctx, func(context.Context) error { called = true; return nil })
	assert.ErrorIs(t, err, ErrOpen)
	assert.False(t, called)
}

func TestBreaker_SuccessResetsFailures(t *testing.T) {
	b := NewBreaker("test-reset", 2, time.Minute)
	ctx := context.Background()

	_ = b.Execute(ctx, fail)
	require.NoError(t, b.Execute(ctx, ok))
	_ = b.Execute(ctx, fail)
	assert.Equal(t, StateClosed, b.State())
}

func TestBreaker_HalfOpenProbe(t *testing.T) {
	clk := &mockClock{now: time.Now()}
	b := NewBreaker("test-probe", 1, 10*time.Second, WithClock(clk))
	ctx := context.Background()

	_ = b.Execute(ctx, fail)
	require.Equal(t, StateOpen, b.State())

	clk.now = clk.now.Add(11 * time.Second)
	_ = b.Execute(ctx, fail)
	assert.Equal(t, StateOpen, b.State(), "failed probe reopens")

	clk.now = clk.now.Add(11 * time.Second)
	require.NoError(t, b.Execute(ctx, ok))
	assert.Equal(t, StateClosed, b.State())
}

func TestBreaker_SingleProbeInFlight(t *testing.T) {
	clk := &mockClock{now: time.Now()}
	b := NewBreaker("test-single", 1, time.Second, WithClock(clk))
	ctx := context.Background()

	_ = b.Execute(ctx, fail)
	clk.now = clk.now.Add(2 * time.Second)

	err := b.Execute(ctx, func(ctx context.Context) error {
		assert.ErrorIs(t, b.Execute(ctx, ok), ErrOpen)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, StateClosed, b.State())
}

func TestBreaker_CancellationNotCounted(t *testing.T) {
	b := NewBreaker("test-cancel", 1, time.Minute)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := b.Execute(ctx, func(ctx context.Context) error { return ctx.Err() })
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, StateClosed, b.State())
}

func TestBreaker_TripMetric(t *testing.T) {
	b := NewBreaker("test-metric", 1, time.Minute)
	before := testutil.ToFloat64(metrics.BreakerTrips.WithLabelValues("test-metric", "threshold"))

	_ = b.Execute(context.Background(), fail)
	assert.InDelta(t, before+1, testutil.ToFloat64(metrics.BreakerTrips.WithLabelValues("test-metric", "threshold")), 0.001)
}

type stubFetcher struct {
	err   error
	calls int
}

func (s *stubFetcher) Fetch(context.Context, string) ([]byte, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return []byte("WEBVTT\n"), nil
}

func TestFetcher_OpenBreakerWrapsFetchError(t *testing.T) {
	up := &stubFetcher{err: source.ErrFetch}
	f := &Fetcher{Upstream: up, Breaker: NewBreaker("test-fetcher", 2, time.Minute)}
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := f.Fetch(ctx, "https://example.test/a.vtt")
		assert.ErrorIs(t, err, source.ErrFetch)
	}
	_, err := f.Fetch(ctx, "https://example.test/a.vtt")
	assert.ErrorIs(t, err, source.ErrFetch)
	assert.ErrorIs(t, err, ErrOpen)
	assert.Equal(t, 2, up.calls)

	up.err = nil
	f.Breaker = NewBreaker("test-fetcher-ok", 2, time.Minute)
	data, err := f.Fetch(ctx, "https://example.test/a.vtt")
	require.NoError(t, err)
	assert.Equal(t, "WEBVTT\n", string(data))
}
