// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package fsutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfineRelPath(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "tracks"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "tracks", "captions.vtt"), []byte("WEBVTT"), 0o600))

	realRoot, err := filepath.EvalSymlinks(root)
	require.NoError(t, err)

	got, err := ConfineRelPath(root, "tracks/captions.vtt")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(realRoot, "tracks", "captions.vtt"), got)

	got, err = ConfineRelPath(root, "tracks/../tracks/missing.vtt")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(realRoot, "tracks", "missing.vtt"), got)

	for _, bad := range []string{"../etc/passwd", "/etc/passwd", "tracks\\x.vtt", ".."} {
		_, err := ConfineRelPath(root, bad)
		assert.Error(t, err, bad)
	}
}

func TestConfineRelPath_SymlinkEscape(t *testing.T) {
	root := t.TempDir()
	outside := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(outside, "secret.vtt"), []byte("x"), 0o600))
	require.NoError(t, os.Symlink(filepath.Join(outside, "secret.vtt"), filepath.Join(root, "link.vtt")))

	_, err := ConfineRelPath(root, "link.vtt")
	assert.ErrorIs(t, err, ErrOutsideRoot)
}

func TestIsRegularFile(t *testing.T) {
	dir := t.TempDir()
	assert.Error(t, IsRegularFile(dir))
	assert.Error(t, IsRegularFile(filepath.Join(dir, "nope")))

	f := filepath.Join(dir, "f.vtt")
	require.NoError(t, os.WriteFile(f, nil, 0o600))
	assert.NoError(t, IsRegularFile(f))
}
