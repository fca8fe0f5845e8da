// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package source

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/ManuGH/cuesync/internal/fsutil"
)

// FileFetcher reads sources from disk. With a Root set, references are
// resolved relative to it and may not escape it.
type FileFetcher struct {
	Root     string
	MaxBytes int64
}

// Resolve maps a file URL or path to the file it names.
func (f *FileFetcher) Resolve(ref string) (string, error) {
	p := ref
	if strings.HasPrefix(strings.ToLower(ref), "file://") {
		u, err := url.Parse(ref)
		if err != nil {
			return "", fmt.Errorf("%w: %s: %v", ErrFetch, ref, err)
		}
		p = u.Host + u.Path
	}
	if p == "" {
		return "", fmt.Errorf("%w: empty path", ErrFetch)
	}
	if f.Root == "" {
		return p, nil
	}
	resolved, err := fsutil.ConfineRelPath(f.Root, strings.TrimPrefix(p, "/"))
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrFetch, ref, err)
	}
	return resolved, nil
}

func (f *FileFetcher) Fetch(ctx context.Context, ref string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrFetch, ref, err)
	}
	path, err := f.Resolve(ref)
	if err != nil {
		return nil, err
	}
	if err := fsutil.IsRegularFile(path); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrFetch, ref, err)
	}

	fh, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrFetch, ref, err)
	}
	defer func() { _ = fh.Close() }()

	limit := f.MaxBytes
	if limit <= 0 {
		limit = DefaultMaxBytes
	}
	return readLimited(fh, limit, ref)
}
