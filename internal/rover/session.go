// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

// Package rover implements the agent session layer: a single outstanding
// mission with a FIFO overflow queue, and the continuous telemetry
// scheduler that runs independently of mission execution.
package rover

import (
	"sync"

	"github.com/nishisan-dev/rover-fleet/internal/mission"
)

// MissionTable holds the single current mission plus the FIFO queue of
// missions that arrived while one was already running.
type MissionTable struct {
	mu      sync.Mutex
	current *mission.Mission
	queue   []mission.Mission
}

// NewMissionTable constructs an empty MissionTable.
func NewMissionTable() *MissionTable {
	return &MissionTable{}
}

// Offer either sets m as the current mission (reporting true, meaning the
// caller should start executing it immediately) or appends it to the FIFO
// queue (reporting false) if a mission is already running.
func (t *MissionTable) Offer(m mission.Mission) (start bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.current == nil {
		t.current = &m
		return true
	}
	t.queue = append(t.queue, m)
	return false
}

// Current returns the mission presently executing, if any.
func (t *MissionTable) Current() (mission.Mission, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.current == nil {
		return mission.Mission{}, false
	}
	return *t.current, true
}

// CompleteAndPopNext clears the current mission and, if the FIFO queue is
// non-empty, promotes its head to current. It reports the promoted mission
// and whether one was available.
func (t *MissionTable) CompleteAndPopNext() (next mission.Mission, hasNext bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.current = nil
	if len(t.queue) == 0 {
		return mission.Mission{}, false
	}
	next = t.queue[0]
	t.queue = t.queue[1:]
	t.current = &next
	return next, true
}
