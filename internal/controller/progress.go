// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package controller

import (
	"sync"
	"time"
)

// Status values a progress record may carry.
const (
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
	StatusPaused     = "paused"
)

// ProgressRecord is one rover's latest reported progress on one mission.
// Updates overwrite in place: the final state wins under retransmission,
// per the ordering guarantee that intermediate coalesced values are not
// preserved.
type ProgressRecord struct {
	ProgressPercent float64   `json:"progress_percent"`
	Status          string    `json:"status"`
	UpdatedAt       time.Time `json:"updated_at"`
}

type progressKey struct {
	missionID string
	roverID   string
}

// ProgressMap is the controller's mission_id -> (rover_id -> progress
// record) table.
type ProgressMap struct {
	mu   sync.RWMutex
	byID map[progressKey]ProgressRecord
}

// NewProgressMap constructs an empty ProgressMap.
func NewProgressMap() *ProgressMap {
	return &ProgressMap{byID: make(map[progressKey]ProgressRecord)}
}

// Upsert creates or overwrites the progress record for (missionID, roverID).
func (p *ProgressMap) Upsert(missionID, roverID string, rec ProgressRecord) {
	rec.UpdatedAt = time.Now()
	p.mu.Lock()
	defer p.mu.Unlock()
	p.byID[progressKey{missionID, roverID}] = rec
}

// Get returns the progress record for (missionID, roverID), if any.
func (p *ProgressMap) Get(missionID, roverID string) (ProgressRecord, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	rec, ok := p.byID[progressKey{missionID, roverID}]
	return rec, ok
}

// ForMission returns every rover's progress record for missionID, for the
// observation API's /missions/<id> endpoint.
func (p *ProgressMap) ForMission(missionID string) map[string]ProgressRecord {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make(map[string]ProgressRecord)
	for k, v := range p.byID {
		if k.missionID == missionID {
			out[k.roverID] = v
		}
	}
	return out
}
