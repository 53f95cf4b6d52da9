// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package controller

import (
	"sync"

	"github.com/nishisan-dev/rover-fleet/internal/mission"
)

// Queue is the controller's pending-mission queue: an ordered sequence of
// mission records awaiting assignment. Dequeue is scan-and-pop: the first
// entry whose RoverID matches the requester is removed and returned; a
// miss leaves the queue untouched (no reordering), per the spec's
// first-match-wins dequeue policy.
type Queue struct {
	mu      sync.Mutex
	pending []mission.Mission
	byID    map[string]struct{}
}

// NewQueue constructs an empty Queue.
func NewQueue() *Queue {
	return &Queue{byID: make(map[string]struct{})}
}

// Enqueue appends m unless its mission_id is currently queued, guarding
// invariant (ii) of the session layer (duplicate enqueues prevented by
// mission_id lookup). A mission that was dequeued is no longer tracked here
// and may be enqueued again.
func (q *Queue) Enqueue(m mission.Mission) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if _, dup := q.byID[m.ID]; dup {
		return false
	}
	q.pending = append(q.pending, m)
	q.byID[m.ID] = struct{}{}
	return true
}

// DequeueFor scans in FIFO order and removes+returns the first mission
// whose RoverID matches roverID. The remaining order is preserved.
func (q *Queue) DequeueFor(roverID string) (mission.Mission, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for i, m := range q.pending {
		if m.RoverID != roverID {
			continue
		}
		q.pending = append(q.pending[:i], q.pending[i+1:]...)
		delete(q.byID, m.ID)
		return m, true
	}
	return mission.Mission{}, false
}

// Contains reports whether id is currently queued.
func (q *Queue) Contains(id string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	_, ok := q.byID[id]
	return ok
}

// Snapshot returns a copy of the pending queue, for the observation API.
func (q *Queue) Snapshot() []mission.Mission {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]mission.Mission, len(q.pending))
	copy(out, q.pending)
	return out
}

// IDs returns the set of currently queued mission ids, used by
// Library.Pending to exclude already-queued missions from a rescan.
func (q *Queue) IDs() map[string]struct{} {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make(map[string]struct{}, len(q.byID))
	for id := range q.byID {
		out[id] = struct{}{}
	}
	return out
}
