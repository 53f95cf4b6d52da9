// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

// Package execsim defines the seam between a rover's session layer and its
// mission-execution simulator (movement model, battery curve, grid walk —
// explicitly out of scope; only the hook is built here).
package execsim

import (
	"context"
	"time"

	"github.com/nishisan-dev/rover-fleet/internal/mission"
)

// Executor runs one mission to completion, calling report as progress
// changes. report's status follows controller.Status*; the final call
// before Execute returns must report either "completed" or "failed".
type Executor interface {
	Execute(ctx context.Context, m mission.Mission, report func(percent int, status string)) error
}

// StubExecutor is a trivial deterministic executor used by tests and by
// deployments that have not yet wired a real simulator: it reports linear
// progress at a fixed cadence and always completes successfully.
type StubExecutor struct {
	Steps    int
	StepWait time.Duration
}

// NewStubExecutor returns a StubExecutor with sane defaults (10 steps,
// 100ms apart). Execute applies the same defaults to a zero-valued Steps or
// StepWait.
func NewStubExecutor() *StubExecutor {
	return &StubExecutor{Steps: 10, StepWait: 100 * time.Millisecond}
}

// Execute reports percent in Steps equal increments, then completes.
func (e *StubExecutor) Execute(ctx context.Context, m mission.Mission, report func(percent int, status string)) error {
	steps := e.Steps
	if steps <= 0 {
		steps = 10
	}
	wait := e.StepWait
	if wait <= 0 {
		wait = 100 * time.Millisecond
	}

	for i := 1; i <= steps; i++ {
		select {
		case <-ctx.Done():
			report(0, "failed")
			return ctx.Err()
		case <-time.After(wait):
		}
		percent := i * 100 / steps
		status := "in_progress"
		if i == steps {
			status = "completed"
		}
		report(percent, status)
	}
	return nil
}
