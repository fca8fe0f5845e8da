// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package cue

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrTimestamp classifies timestamps that cannot be converted to seconds.
var ErrTimestamp = errors.New("invalid timestamp")

// ParseTimestamp converts H:MM:SS.mmm (hours optional) to seconds.
// Missing components default to 0; the fractional part is a decimal
// fraction, so three digits are milliseconds.
func ParseTimestamp(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("%w: empty", ErrTimestamp)
	}

	parts := strings.Split(s, ":")
	if len(parts) > 3 {
		return 0, fmt.Errorf("%w: %q has too many components", ErrTimestamp, s)
	}

	// Seconds (with fraction) are always the last component.
	secPart := parts[len(parts)-1]
	frac := ""
	if i := strings.IndexAny(secPart, ".,"); i >= 0 {
		frac = secPart[i+1:]
		secPart = secPart[:i]
	}

	sec, err := component(secPart)
	if err != nil {
		return 0, fmt.Errorf("%w: seconds in %q", ErrTimestamp, s)
	}
	var minutes, hours int
	if len(parts) >= 2 {
		if minutes, err = component(parts[len(parts)-2]); err != nil {
			return 0, fmt.Errorf("%w: minutes in %q", ErrTimestamp, s)
		}
	}
	if len(parts) == 3 {
		if hours, err = component(parts[0]); err != nil {
			return 0, fmt.Errorf("%w: hours in %q", ErrTimestamp, s)
		}
	}

	fraction := 0.0
	if frac != "" {
		if !allDigits(frac) {
			return 0, fmt.Errorf("%w: fraction in %q", ErrTimestamp, s)
		}
		fraction, _ = strconv.ParseFloat("0."+frac, 64)
	}

	return float64(hours*3600+minutes*60+sec) + fraction, nil
}

func component(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	if !allDigits(s) {
		return 0, ErrTimestamp
	}
	return strconv.Atoi(s)
}

func allDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}

// FormatTimestamp renders seconds as HH:MM:SS.mmm.
func FormatTimestamp(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	ms := int64(seconds*1000 + 0.5)
	h := ms / 3_600_000
	ms -= h * 3_600_000
	m := ms / 60_000
	ms -= m * 60_000
	s := ms / 1000
	ms -= s * 1000
	return fmt.Sprintf("%02d:%02d:%02d.%03d", h, m, s, ms)
}
