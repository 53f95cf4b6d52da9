// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package execsim

import (
	"context"
	"testing"
	"time"

	"github.com/nishisan-dev/rover-fleet/internal/mission"
)

func TestStubExecutorReportsLinearProgressAndCompletes(t *testing.T) {
	e := &StubExecutor{Steps: 4, StepWait: time.Millisecond}

	var percents []int
	var statuses []string
	err := e.Execute(context.Background(), mission.Mission{ID: "M01"}, func(percent int, status string) {
		percents = append(percents, percent)
		statuses = append(statuses, status)
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(percents) != 4 || percents[3] != 100 {
		t.Fatalf("expected 4 reports ending at 100%%, got %v", percents)
	}
	if statuses[3] != "completed" {
		t.Fatalf("expected final status completed, got %s", statuses[3])
	}
	for _, s := range statuses[:3] {
		if s != "in_progress" {
			t.Fatalf("expected intermediate status in_progress, got %s", s)
		}
	}
}

func TestStubExecutorReportsFailedOnContextCancel(t *testing.T) {
	e := &StubExecutor{Steps: 10, StepWait: 50 * time.Millisecond}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var lastStatus string
	err := e.Execute(ctx, mission.Mission{ID: "M01"}, func(percent int, status string) {
		lastStatus = status
	})
	if err == nil {
		t.Fatal("expected context cancellation error")
	}
	if lastStatus != "failed" {
		t.Fatalf("expected failed status reported on cancellation, got %s", lastStatus)
	}
}

func TestNewStubExecutorDefaults(t *testing.T) {
	e := NewStubExecutor()
	if e.Steps != 10 || e.StepWait != 100*time.Millisecond {
		t.Fatalf("unexpected defaults: %+v", e)
	}
}
