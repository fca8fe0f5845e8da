// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package log

// Canonical field name constants for structured logging.
const (
	// Identity fields
	FieldSessionID = "session_id"
	FieldRequestID = "request_id"

	// Process fields
	FieldEvent     = "event"
	FieldComponent = "component"

	// Cue fields
	FieldCueKind  = "cue_kind"
	FieldCueStart = "cue_start"
	FieldCueEnd   = "cue_end"
	FieldCueCount = "cue_count"

	// Playback fields
	FieldCurrentTime = "current_time"
	FieldRate        = "playback_rate"
	FieldVolume      = "volume"

	// State fields
	FieldOldState = "old_state"
	FieldNewState = "new_state"

	// Source fields
	FieldSource = "source"
	FieldPath   = "path"
)
