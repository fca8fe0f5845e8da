// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Command cuesync hosts a cue-synchronized media player behind an HTTP
// control surface and offers offline tools over the cue parser.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/ManuGH/cuesync/internal/cue"
	"github.com/ManuGH/cuesync/internal/log"
	"github.com/ManuGH/cuesync/internal/version"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var logLevel string
	root := &cobra.Command{
		Use:           "cuesync",
		Short:         "Cue-synchronized media playback controller",
		Version:       version.String(),
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			log.Configure(log.Config{
				Level:   logLevel,
				Output:  cmd.ErrOrStderr(),
				Service: "cuesync",
				Version: version.Version,
			})
		},
	}
	root.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level for offline commands (serve uses its configuration)")

	root.AddCommand(
		newServeCmd(),
		newParseCmd(),
		newExportCmd(),
		newTranscriptCmd(),
	)
	return root
}

// readTrack parses a cue file, or stdin for "-".
func readTrack(cmd *cobra.Command, path string) (cue.Track, cue.Report, error) {
	var r io.Reader
	if path == "-" {
		r = cmd.InOrStdin()
	} else {
		// #nosec G304 -- the operator names the file on the command line
		f, err := os.Open(path)
		if err != nil {
			return nil, cue.Report{}, fmt.Errorf("open cue file: %w", err)
		}
		defer func() { _ = f.Close() }()
		r = f
	}
	track, report, err := cue.ParseReader(r)
	if err != nil {
		return nil, report, fmt.Errorf("parse %s: %w", path, err)
	}
	return track, report, nil
}

// selectKinds narrows a track to the kinds named by --kinds.
func selectKinds(t cue.Track, kinds string) (cue.Track, error) {
	switch kinds {
	case "all", "":
		return t, nil
	case "captions":
		return t.Filter(cue.Caption), nil
	case "descriptions":
		return t.Filter(cue.VisualDescription), nil
	default:
		return nil, fmt.Errorf("unknown --kinds %q (want all, captions or descriptions)", kinds)
	}
}
