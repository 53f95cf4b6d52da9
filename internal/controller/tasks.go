// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package controller

import (
	"sync"

	"github.com/nishisan-dev/rover-fleet/internal/mission"
)

// ActiveTasks is the controller's mission_id -> mission record map for
// dispatched missions not yet reported complete. Invariant (i) of the
// session layer: a mission appears in at most one of {pending queue,
// active task map}.
type ActiveTasks struct {
	mu   sync.RWMutex
	byID map[string]mission.Mission
}

// NewActiveTasks constructs an empty ActiveTasks map.
func NewActiveTasks() *ActiveTasks {
	return &ActiveTasks{byID: make(map[string]mission.Mission)}
}

// Insert records m as dispatched-and-active.
func (a *ActiveTasks) Insert(m mission.Mission) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.byID[m.ID] = m
}

// Remove deletes id from the active set, called when a progress report
// marks a mission completed.
func (a *ActiveTasks) Remove(id string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.byID, id)
}

// Get returns the active mission record for id, if any.
func (a *ActiveTasks) Get(id string) (mission.Mission, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	m, ok := a.byID[id]
	return m, ok
}

// IDs returns the set of currently active mission ids.
func (a *ActiveTasks) IDs() map[string]struct{} {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make(map[string]struct{}, len(a.byID))
	for id := range a.byID {
		out[id] = struct{}{}
	}
	return out
}

// Snapshot returns a copy of every active mission, for the observation API.
func (a *ActiveTasks) Snapshot() []mission.Mission {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]mission.Mission, 0, len(a.byID))
	for _, m := range a.byID {
		out = append(out, m)
	}
	return out
}
