// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package narration

import "github.com/ManuGH/cuesync/internal/cue"

// State is the arbitration state.
type State int

const (
	// Idle: description priority is off.
	Idle State = iota
	// Watching: description priority is on and nothing is being spoken.
	Watching
	// Speaking: a description is being narrated and playback is held.
	Speaking
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Watching:
		return "watching"
	case Speaking:
		return "speaking"
	default:
		return "unknown"
	}
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Reasons attached to transitions.
const (
	ReasonEnabled   = "enabled"
	ReasonDisabled  = "disabled"
	ReasonReloaded  = "reloaded"
	ReasonCueActive = "cue_active"
	ReasonCompleted = "completed"
	ReasonFailed    = "synthesis_failed"
	ReasonSeekBack  = "seek_back"
)

// Transition is reported to OnTransition hooks after the state changed.
type Transition struct {
	From   State
	To     State
	Reason string
	Cue    cue.Cue // the cue being entered or left; zero for mode changes
}

// Snapshot is a read-only view of the machine.
type Snapshot struct {
	State       State    `json:"state"`
	Cue         *cue.Cue `json:"cue,omitempty"`
	Spoken      int      `json:"spoken"`
	ForcePaused bool     `json:"forcePaused"`
}
