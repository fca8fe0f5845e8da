// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package transcript

import (
	"fmt"

	"github.com/ManuGH/cuesync/internal/cue"
)

// Line is one rendered transcript entry.
type Line struct {
	Index     int      `json:"index"`
	Kind      cue.Kind `json:"kind"`
	Start     float64  `json:"start"`
	End       float64  `json:"end"`
	Clock     string   `json:"clock"`
	Text      string   `json:"text"`
	Active    bool     `json:"active"`
	AriaLabel string   `json:"ariaLabel"`
}

// View is what a renderer needs to draw the transcript.
type View struct {
	Available bool   `json:"available"`
	Message   string `json:"message,omitempty"`
	Source    string `json:"source"`
	Active    int    `json:"active"`
	Lines     []Line `json:"lines"`
}

// View renders the current state.
func (c *Controller) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()

	v := View{Source: c.src.Role, Active: c.active, Lines: []Line{}}
	if len(c.track) == 0 {
		v.Message = NotAvailableMessage
		return v
	}
	v.Available = true
	for i, entry := range c.track {
		label := cue.FormatClock(entry.Start)
		v.Lines = append(v.Lines, Line{
			Index:     i,
			Kind:      entry.Kind,
			Start:     entry.Start,
			End:       entry.End,
			Clock:     label,
			Text:      entry.Text,
			Active:    i == c.active,
			AriaLabel: fmt.Sprintf("Jump to %s: %s", label, entry.Text),
		})
	}
	return v
}
