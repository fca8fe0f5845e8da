// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package cue parses caption/description cue tracks and answers
// "which cue is active at time t" queries over them.
package cue

import (
	"fmt"
	"math"
)

// Kind classifies a cue as a spoken-dialogue caption or a visual description.
type Kind int

const (
	Caption Kind = iota
	VisualDescription
)

func (k Kind) String() string {
	switch k {
	case Caption:
		return "caption"
	case VisualDescription:
		return "visual_description"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// MarshalText renders the kind as its lowercase name in JSON.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// ID identifies a cue within one source load. Re-parsing the same text
// yields the same IDs.
type ID struct {
	Start float64
	End   float64
}

// Cue is one timed entry. Times are seconds from the start of the media.
type Cue struct {
	Kind  Kind    `json:"kind"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// ID returns the de-duplication identity of the cue.
func (c Cue) ID() ID {
	return ID{Start: c.Start, End: c.End}
}

// Contains reports whether t lies in the closed range [Start, End].
func (c Cue) Contains(t float64) bool {
	return t >= c.Start && t <= c.End
}

// Track is an ordered sequence of cues, sorted by Start ascending.
type Track []Cue

// Filter returns the cues of one kind, preserving order.
func (t Track) Filter(kind Kind) Track {
	out := make(Track, 0, len(t))
	for _, c := range t {
		if c.Kind == kind {
			out = append(out, c)
		}
	}
	return out
}

// Count returns the number of cues of the given kind.
func (t Track) Count(kind Kind) int {
	n := 0
	for _, c := range t {
		if c.Kind == kind {
			n++
		}
	}
	return n
}

// FormatClock renders seconds as m:ss, the label used by the player and
// the transcript. Invalid or negative input renders as 0:00.
func FormatClock(seconds float64) string {
	if math.IsNaN(seconds) || math.IsInf(seconds, 0) || seconds < 0 {
		seconds = 0
	}
	total := int(math.Floor(seconds))
	return fmt.Sprintf("%d:%02d", total/60, total%60)
}
