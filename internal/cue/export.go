// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package cue

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/asticode/go-astisub"
)

// Format is a subtitle container a track can be exported to.
type Format string

const (
	FormatSRT    Format = "srt"
	FormatWebVTT Format = "vtt"
)

var (
	// ErrUnknownFormat is returned for export formats other than srt and vtt.
	ErrUnknownFormat = errors.New("unknown export format")
	// ErrEmptyTrack is returned when there is nothing to export.
	ErrEmptyTrack = errors.New("track has no cues")
)

// ParseFormat accepts "srt", "vtt" or "webvtt" in any case.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "srt":
		return FormatSRT, nil
	case "vtt", "webvtt":
		return FormatWebVTT, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
	}
}

// ContentType returns the MIME type served for the format.
func (f Format) ContentType() string {
	if f == FormatWebVTT {
		return "text/vtt; charset=utf-8"
	}
	return "application/x-subrip; charset=utf-8"
}

// ExportOptions tunes Export.
type ExportOptions struct {
	// DescriptionLabel prefixes visual-description text, e.g. "[Visual]".
	// Empty leaves the text untouched.
	DescriptionLabel string
}

// Subtitles converts the track to an astisub document.
func (t Track) Subtitles(opts ExportOptions) *astisub.Subtitles {
	subs := astisub.NewSubtitles()
	for _, c := range t {
		text := c.Text
		if c.Kind == VisualDescription && opts.DescriptionLabel != "" {
			text = opts.DescriptionLabel + " " + text
		}
		subs.Items = append(subs.Items, &astisub.Item{
			StartAt: seconds(c.Start),
			EndAt:   seconds(c.End),
			Lines:   []astisub.Line{{Items: []astisub.LineItem{{Text: text}}}},
		})
	}
	return subs
}

// Export writes the track in the given subtitle format.
func Export(w io.Writer, t Track, format Format, opts ExportOptions) error {
	if len(t) == 0 {
		return ErrEmptyTrack
	}
	subs := t.Subtitles(opts)
	var err error
	switch format {
	case FormatSRT:
		err = subs.WriteToSRT(w)
	case FormatWebVTT:
		err = subs.WriteToWebVTT(w)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
	if err != nil {
		return fmt.Errorf("export %s: %w", format, err)
	}
	return nil
}

// PlainText renders the track as one "[m:ss] text" line per cue.
func PlainText(t Track) string {
	var b strings.Builder
	for _, c := range t {
		b.WriteString("[")
		b.WriteString(FormatClock(c.Start))
		b.WriteString("] ")
		b.WriteString(c.Text)
		b.WriteString("\n")
	}
	return b.String()
}

func seconds(s float64) time.Duration {
	return time.Duration(s*float64(time.Second) + 0.5)
}
