// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package mission

import "fmt"

// Sentinel diagnostic strings an ML opType-T handler may ACK with instead
// of stalling the dispatch/delivery path on an invalid mission.
const (
	DiagnosticInvalid    = "invalid"
	DiagnosticParseError = "parse_error"
)

// Validate applies the structural checks shared by dispatch (controller)
// and delivery (rover): mandatory fields present and typed correctly,
// rectangle non-degenerate, duration strictly positive. It returns a
// diagnostic string alongside the boolean result so the caller can decide
// between DiagnosticInvalid and a more specific message.
func Validate(m Mission) (bool, string) {
	if m.ID == "" {
		return false, "mission_id is required"
	}
	if m.RoverID == "" {
		return false, "rover_id is required"
	}
	if m.Task == "" {
		return false, "task is required"
	}
	if m.GeographicArea.X1 >= m.GeographicArea.X2 || m.GeographicArea.Y1 >= m.GeographicArea.Y2 {
		return false, "geographic_area is degenerate: requires x1<x2 and y1<y2"
	}
	if m.DurationMinutes <= 0 {
		return false, "duration_minutes must be strictly positive"
	}
	if !knownTask(m.Task) {
		// Flagged, not rejected: the task set is closed but not enforced.
		// Checked last so it never masks a genuinely invalid rectangle or
		// duration — the three checks are independent invariants.
		return true, fmt.Sprintf("unrecognized task %q accepted", m.Task)
	}
	return true, ""
}
