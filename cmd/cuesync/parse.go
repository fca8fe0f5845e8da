// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/ManuGH/cuesync/internal/cue"
)

type parseOutput struct {
	Cues    []cueOutput    `json:"cues"`
	Blocks  int            `json:"blocks"`
	Kept    int            `json:"kept"`
	Dropped map[string]int `json:"dropped"`
}

type cueOutput struct {
	Kind  cue.Kind `json:"kind"`
	Start string   `json:"start"`
	End   string   `json:"end"`
	Text  string   `json:"text"`
}

func newParseCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "parse FILE|-",
		Short: "Parse a cue track and report kept and dropped blocks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			track, report, err := readTrack(cmd, args[0])
			if err != nil {
				return err
			}
			out := parseOutput{
				Cues:    make([]cueOutput, 0, len(track)),
				Blocks:  report.Blocks,
				Kept:    report.Kept,
				Dropped: make(map[string]int, len(report.Dropped)),
			}
			for _, c := range track {
				out.Cues = append(out.Cues, cueOutput{
					Kind:  c.Kind,
					Start: cue.FormatTimestamp(c.Start),
					End:   cue.FormatTimestamp(c.End),
					Text:  c.Text,
				})
			}
			for reason, n := range report.Dropped {
				out.Dropped[string(reason)] = n
			}

			w := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(w)
				enc.SetIndent("", "  ")
				return enc.Encode(out)
			}
			for _, c := range out.Cues {
				fmt.Fprintf(w, "%s --> %s  %-18s %s\n", c.Start, c.End, c.Kind, c.Text)
			}
			fmt.Fprintf(w, "\n%d blocks, %d kept, %d dropped\n", out.Blocks, out.Kept, report.DroppedTotal())
			reasons := make([]string, 0, len(out.Dropped))
			for r := range out.Dropped {
				reasons = append(reasons, r)
			}
			sort.Strings(reasons)
			for _, r := range reasons {
				fmt.Fprintf(w, "  %s: %d\n", r, out.Dropped[r])
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the parsed track as JSON")
	return cmd
}
