// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/google/renameio/v2"
	"github.com/spf13/cobra"

	"github.com/ManuGH/cuesync/internal/cue"
)

func newExportCmd() *cobra.Command {
	var (
		output string
		format string
		kinds  string
		label  string
	)
	cmd := &cobra.Command{
		Use:   "export FILE|-",
		Short: "Convert a cue track to SRT or WebVTT",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if format == "" {
				format = strings.TrimPrefix(filepath.Ext(output), ".")
			}
			if format == "" {
				format = string(cue.FormatWebVTT)
			}
			f, err := cue.ParseFormat(format)
			if err != nil {
				return err
			}

			track, _, err := readTrack(cmd, args[0])
			if err != nil {
				return err
			}
			if track, err = selectKinds(track, kinds); err != nil {
				return err
			}

			var buf bytes.Buffer
			if err := cue.Export(&buf, track, f, cue.ExportOptions{DescriptionLabel: label}); err != nil {
				return err
			}
			if output == "" || output == "-" {
				_, err := buf.WriteTo(cmd.OutOrStdout())
				return err
			}
			if err := renameio.WriteFile(output, buf.Bytes(), 0o644); err != nil {
				return fmt.Errorf("write %s: %w", output, err)
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "wrote %d cues to %s\n", len(track), output)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default stdout); written atomically")
	cmd.Flags().StringVarP(&format, "format", "f", "", "srt or vtt (default from the output extension, else vtt)")
	cmd.Flags().StringVar(&kinds, "kinds", "all", "cues to export: all, captions or descriptions")
	cmd.Flags().StringVar(&label, "description-label", "[Description]", "prefix for visual-description text; empty disables it")
	return cmd
}
