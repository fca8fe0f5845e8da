// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package cue

import (
	"fmt"
	"io"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// Decode converts fetched bytes to text. A UTF-8 or UTF-16 byte-order mark
// selects the encoding and is removed; without one the input is read as
// UTF-8 with invalid sequences replaced.
func Decode(b []byte) (string, error) {
	out, _, err := transform.Bytes(unicode.BOMOverride(unicode.UTF8.NewDecoder()), b)
	if err != nil {
		return "", fmt.Errorf("decode cue text: %w", err)
	}
	return string(out), nil
}

// ParseReader decodes and parses a whole cue track from r.
func ParseReader(r io.Reader) (Track, Report, error) {
	b, err := io.ReadAll(transform.NewReader(r, unicode.BOMOverride(unicode.UTF8.NewDecoder())))
	if err != nil {
		return nil, Report{}, fmt.Errorf("read cue text: %w", err)
	}
	t, rep := ParseWithReport(string(b))
	return t, rep, nil
}
