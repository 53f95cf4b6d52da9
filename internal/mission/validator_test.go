// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package mission

import "testing"

func validMission() Mission {
	return Mission{
		ID:              "M01",
		RoverID:         "r1",
		GeographicArea:  Area{X1: 0, Y1: 0, X2: 10, Y2: 10},
		Task:            TaskImageCapture,
		DurationMinutes: 30,
	}
}

func TestValidateAccepts(t *testing.T) {
	ok, msg := Validate(validMission())
	if !ok {
		t.Fatalf("expected valid mission to pass, got %q", msg)
	}
}

func TestValidateRejectsDegenerateRectangle(t *testing.T) {
	m := validMission()
	m.GeographicArea = Area{X1: 5, Y1: 0, X2: 5, Y2: 10}
	ok, _ := Validate(m)
	if ok {
		t.Fatal("expected degenerate rectangle to be rejected")
	}
}

func TestValidateRejectsNonPositiveDuration(t *testing.T) {
	m := validMission()
	m.DurationMinutes = 0
	ok, _ := Validate(m)
	if ok {
		t.Fatal("expected zero duration to be rejected")
	}
}

func TestValidateRejectsMissingMandatoryFields(t *testing.T) {
	m := validMission()
	m.RoverID = ""
	ok, _ := Validate(m)
	if ok {
		t.Fatal("expected missing rover_id to be rejected")
	}
}

func TestValidateFlagsUnknownTaskWithoutRejecting(t *testing.T) {
	m := validMission()
	m.Task = "refuel"
	ok, msg := Validate(m)
	if !ok {
		t.Fatalf("expected unknown task to be flagged, not rejected: %q", msg)
	}
	if msg == "" {
		t.Fatal("expected a diagnostic message flagging the unrecognized task")
	}
}

func TestValidateUnknownTaskDoesNotMaskDegenerateRectangle(t *testing.T) {
	m := validMission()
	m.Task = "refuel"
	m.GeographicArea = Area{X1: 5, Y1: 0, X2: 5, Y2: 10}
	ok, msg := Validate(m)
	if ok {
		t.Fatalf("expected degenerate rectangle to be rejected even with an unknown task, got %q", msg)
	}
}

func TestValidateUnknownTaskDoesNotMaskNonPositiveDuration(t *testing.T) {
	m := validMission()
	m.Task = "refuel"
	m.DurationMinutes = 0
	ok, msg := Validate(m)
	if ok {
		t.Fatalf("expected non-positive duration to be rejected even with an unknown task, got %q", msg)
	}
}
