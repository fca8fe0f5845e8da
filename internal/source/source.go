// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package source fetches cue-track text from HTTP servers or local files.
package source

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
)

var (
	// ErrFetch wraps every failure to obtain a cue source.
	ErrFetch = errors.New("cue source fetch failed")
	// ErrTooLarge is returned alongside ErrFetch when a source exceeds the size limit.
	ErrTooLarge = errors.New("cue source too large")
)

// Roles name the cue sources the player loads.
const (
	RoleCaptions = "captions"
	RoleCombined = "combined"
)

// DefaultMaxBytes bounds a single cue source.
const DefaultMaxBytes int64 = 4 << 20

// Fetcher returns the raw bytes behind a source reference.
type Fetcher interface {
	Fetch(ctx context.Context, ref string) ([]byte, error)
}

// Mux dispatches by URL scheme: http and https go to HTTP, file URLs and
// plain paths go to File.
type Mux struct {
	HTTP Fetcher
	File *FileFetcher
}

func (m *Mux) Fetch(ctx context.Context, ref string) ([]byte, error) {
	switch scheme(ref) {
	case "http", "https":
		if m.HTTP == nil {
			return nil, fmt.Errorf("%w: %s: http sources disabled", ErrFetch, ref)
		}
		return m.HTTP.Fetch(ctx, ref)
	case "file", "":
		if m.File == nil {
			return nil, fmt.Errorf("%w: %s: file sources disabled", ErrFetch, ref)
		}
		return m.File.Fetch(ctx, ref)
	default:
		return nil, fmt.Errorf("%w: %s: unsupported scheme", ErrFetch, ref)
	}
}

// LocalPath resolves ref to a file path when it is served from disk.
func (m *Mux) LocalPath(ref string) (string, bool) {
	if m.File == nil {
		return "", false
	}
	switch scheme(ref) {
	case "file", "":
		p, err := m.File.Resolve(ref)
		return p, err == nil
	default:
		return "", false
	}
}

func scheme(ref string) string {
	// Windows drive letters and bare paths have no usable scheme.
	i := strings.Index(ref, "://")
	if i <= 0 {
		return ""
	}
	u, err := url.Parse(ref)
	if err != nil {
		return "invalid"
	}
	return strings.ToLower(u.Scheme)
}
