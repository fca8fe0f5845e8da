// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package source

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ManuGH/cuesync/internal/cue"
	"github.com/ManuGH/cuesync/internal/log"
	"github.com/ManuGH/cuesync/internal/metrics"
	"github.com/ManuGH/cuesync/internal/telemetry"
)

const tracerName = "cuesync/source"

// Loader fetches and parses cue tracks, recording metrics and spans.
type Loader struct {
	fetcher Fetcher
	logger  zerolog.Logger
}

func NewLoader(f Fetcher) *Loader {
	return &Loader{fetcher: f, logger: log.WithComponent("source")}
}

// Load fetches ref and parses it. On failure the returned track is empty and
// the error wraps ErrFetch.
func (l *Loader) Load(ctx context.Context, role, ref string) (cue.Track, cue.Report, error) {
	ctx, span := telemetry.StartSpan(ctx, tracerName, "source.load", telemetry.SourceAttributes(role, ref, 0)...)
	defer span.End()

	logger := log.WithContext(ctx, l.logger).With().
		Str(log.FieldSource, role).
		Str(log.FieldPath, ref).
		Logger()

	start := time.Now()
	if ref == "" {
		err := fmt.Errorf("%w: no %s source configured", ErrFetch, role)
		l.fail(span, logger, role, start, err)
		return cue.Track{}, cue.Report{}, err
	}

	raw, err := l.fetcher.Fetch(ctx, ref)
	if err != nil {
		l.fail(span, logger, role, start, err)
		return cue.Track{}, cue.Report{}, err
	}
	text, err := cue.Decode(raw)
	if err != nil {
		err = fmt.Errorf("%w: %v", ErrFetch, err)
		l.fail(span, logger, role, start, err)
		return cue.Track{}, cue.Report{}, err
	}

	track, rep := cue.ParseWithReport(text)
	metrics.ObserveTrackFetch(role, true, time.Since(start))
	for reason, n := range rep.Dropped {
		metrics.IncCueBlockDropped(string(reason), n)
	}
	for _, kind := range []cue.Kind{cue.Caption, cue.VisualDescription} {
		metrics.AddCuesLoaded(kind.String(), track.Count(kind))
	}

	span.SetAttributes(telemetry.SourceAttributes("", "", len(raw))...)
	span.SetAttributes(telemetry.TrackAttributes(len(track), rep.DroppedTotal())...)
	logger.Info().
		Str(log.FieldEvent, "track.loaded").
		Int(log.FieldCueCount, len(track)).
		Int("blocks", rep.Blocks).
		Int("dropped", rep.DroppedTotal()).
		Dur("duration", time.Since(start)).
		Msg("cue track loaded")
	return track, rep, nil
}

func (l *Loader) fail(span trace.Span, logger zerolog.Logger, role string, start time.Time, err error) {
	metrics.ObserveTrackFetch(role, false, time.Since(start))
	span.RecordError(err)
	span.SetStatus(codes.Error, "fetch failed")
	logger.Warn().Err(err).Str(log.FieldEvent, "track.fetch_failed").Msg("cue track unavailable")
}
