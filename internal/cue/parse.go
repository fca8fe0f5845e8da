// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package cue

import (
	"sort"
	"strings"
)

const (
	timingSeparator = "-->"
	notePrefix      = "NOTE"

	// DescriptionMarker in a NOTE annotation line marks the cue below it
	// as a visual description.
	DescriptionMarker = "Visual"
)

// DropReason names why a block did not become a cue.
type DropReason string

const (
	DropNoTiming     DropReason = "no_timing"
	DropBadTimestamp DropReason = "bad_timestamp"
	DropInvalidRange DropReason = "invalid_range"
	DropEmptyText    DropReason = "empty_text"
	DropDuplicate    DropReason = "duplicate"
)

// Report summarises one parse run.
type Report struct {
	Blocks  int
	Kept    int
	Dropped map[DropReason]int
}

// DroppedTotal returns the number of blocks that were dropped for any reason.
func (r Report) DroppedTotal() int {
	n := 0
	for _, v := range r.Dropped {
		n += v
	}
	return n
}

// Parse converts raw cue-track text into a Track. It never fails: malformed
// blocks are dropped and the rest of the text is still parsed.
func Parse(raw string) Track {
	t, _ := ParseWithReport(raw)
	return t
}

// ParseWithReport is Parse plus a summary of what was kept and dropped.
func ParseWithReport(raw string) (Track, Report) {
	rep := Report{Dropped: make(map[DropReason]int)}
	blocks := splitBlocks(raw)

	track := make(Track, 0, len(blocks))
	type key struct {
		kind Kind
		id   ID
	}
	seen := make(map[key]struct{}, len(blocks))

	for i, blk := range blocks {
		if i == 0 && strings.HasPrefix(blk[0], "WEBVTT") {
			// The header may run straight into the first cue.
			blk = blk[1:]
			if !hasTiming(blk) {
				continue
			}
		}
		rep.Blocks++

		c, reason := parseBlock(blk)
		if reason != "" {
			rep.Dropped[reason]++
			continue
		}
		k := key{kind: c.Kind, id: c.ID()}
		if _, dup := seen[k]; dup {
			rep.Dropped[DropDuplicate]++
			continue
		}
		seen[k] = struct{}{}
		track = append(track, c)
	}

	sort.SliceStable(track, func(i, j int) bool { return track[i].Start < track[j].Start })
	rep.Kept = len(track)
	return track, rep
}

// splitBlocks normalises line endings and splits on blank lines.
func splitBlocks(raw string) [][]string {
	raw = strings.TrimPrefix(raw, "\ufeff")
	raw = strings.ReplaceAll(raw, "\r\n", "\n")
	raw = strings.ReplaceAll(raw, "\r", "\n")

	var (
		blocks [][]string
		cur    []string
	)
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimRight(line, " \t")
		if strings.TrimSpace(line) == "" {
			if len(cur) > 0 {
				blocks = append(blocks, cur)
				cur = nil
			}
			continue
		}
		cur = append(cur, line)
	}
	if len(cur) > 0 {
		blocks = append(blocks, cur)
	}
	return blocks
}

func hasTiming(lines []string) bool {
	for _, l := range lines {
		if strings.Contains(l, timingSeparator) {
			return true
		}
	}
	return false
}

func parseBlock(lines []string) (Cue, DropReason) {
	timing := -1
	for i, l := range lines {
		if strings.Contains(l, timingSeparator) {
			timing = i
			break
		}
	}
	if timing < 0 {
		return Cue{}, DropNoTiming
	}

	kind := Caption
	if timing > 0 && isDescriptionNote(lines[0]) {
		kind = VisualDescription
	}

	start, end, ok := parseTimingLine(lines[timing])
	if !ok {
		return Cue{}, DropBadTimestamp
	}
	if end <= start {
		return Cue{}, DropInvalidRange
	}

	text := make([]string, 0, len(lines)-timing-1)
	for _, l := range lines[timing+1:] {
		if l = strings.TrimSpace(l); l != "" {
			text = append(text, l)
		}
	}
	if len(text) == 0 {
		return Cue{}, DropEmptyText
	}

	return Cue{Kind: kind, Start: start, End: end, Text: strings.Join(text, " ")}, ""
}

func isDescriptionNote(line string) bool {
	line = strings.TrimSpace(line)
	return strings.HasPrefix(line, notePrefix) && strings.Contains(line, DescriptionMarker)
}

// parseTimingLine reads "<start> --> <end> [settings]".
func parseTimingLine(line string) (float64, float64, bool) {
	parts := strings.SplitN(line, timingSeparator, 2)
	if len(parts) != 2 {
		return 0, 0, false
	}
	right := strings.Fields(parts[1])
	if len(right) == 0 {
		return 0, 0, false
	}
	start, err := ParseTimestamp(parts[0])
	if err != nil {
		return 0, 0, false
	}
	end, err := ParseTimestamp(right[0])
	if err != nil {
		return 0, 0, false
	}
	return start, end, true
}
