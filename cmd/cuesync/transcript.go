// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"fmt"

	"github.com/atotto/clipboard"
	"github.com/spf13/cobra"

	"github.com/ManuGH/cuesync/internal/cue"
)

// writeClipboard is replaced in tests.
var writeClipboard = clipboard.WriteAll

func newTranscriptCmd() *cobra.Command {
	var (
		kinds       string
		toClipboard bool
	)
	cmd := &cobra.Command{
		Use:   "transcript FILE|-",
		Short: "Print a plain-text transcript, one \"[m:ss] text\" line per cue",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			track, _, err := readTrack(cmd, args[0])
			if err != nil {
				return err
			}
			if track, err = selectKinds(track, kinds); err != nil {
				return err
			}
			text := cue.PlainText(track)
			if toClipboard {
				if err := writeClipboard(text); err != nil {
					return fmt.Errorf("copy to clipboard: %w", err)
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "copied %d lines to the clipboard\n", len(track))
				return nil
			}
			_, err = fmt.Fprint(cmd.OutOrStdout(), text)
			return err
		},
	}
	cmd.Flags().StringVar(&kinds, "kinds", "all", "cues to include: all, captions or descriptions")
	cmd.Flags().BoolVar(&toClipboard, "copy", false, "copy the transcript to the system clipboard instead of printing it")
	return cmd
}
