// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package controller

import (
	"testing"

	"github.com/nishisan-dev/rover-fleet/internal/mission"
)

func TestQueueScanAndPopFirstMatch(t *testing.T) {
	q := NewQueue()
	q.Enqueue(mission.Mission{ID: "M01", RoverID: "r1"})
	q.Enqueue(mission.Mission{ID: "M02", RoverID: "r2"})
	q.Enqueue(mission.Mission{ID: "M03", RoverID: "r1"})

	m, ok := q.DequeueFor("r1")
	if !ok || m.ID != "M01" {
		t.Fatalf("expected first match M01, got %+v ok=%v", m, ok)
	}

	remaining := q.Snapshot()
	if len(remaining) != 2 || remaining[0].ID != "M02" || remaining[1].ID != "M03" {
		t.Fatalf("expected M02,M03 remaining in order, got %+v", remaining)
	}
}

func TestQueueMissLeavesOrderUntouched(t *testing.T) {
	q := NewQueue()
	q.Enqueue(mission.Mission{ID: "M01", RoverID: "r1"})
	q.Enqueue(mission.Mission{ID: "M02", RoverID: "r2"})

	_, ok := q.DequeueFor("r9")
	if ok {
		t.Fatal("expected no match for r9")
	}
	snap := q.Snapshot()
	if len(snap) != 2 || snap[0].ID != "M01" || snap[1].ID != "M02" {
		t.Fatalf("expected queue unchanged on miss, got %+v", snap)
	}
}

func TestQueueRejectsDuplicateMissionID(t *testing.T) {
	q := NewQueue()
	if !q.Enqueue(mission.Mission{ID: "M01", RoverID: "r1"}) {
		t.Fatal("expected first enqueue to succeed")
	}
	if q.Enqueue(mission.Mission{ID: "M01", RoverID: "r1"}) {
		t.Fatal("expected duplicate mission_id enqueue to be rejected")
	}
}

func TestRegistryNeverRebindsAddress(t *testing.T) {
	r := NewRegistry()
	rec1, added := r.Register("r1", nil)
	if !added {
		t.Fatal("expected first registration to be added")
	}
	_, added = r.Register("r1", nil)
	if added {
		t.Fatal("expected repeated registration to not be added")
	}
	rec2, ok := r.Lookup("r1")
	if !ok || rec2.RegisteredAt != rec1.RegisteredAt {
		t.Fatal("expected lookup to return the original record, untouched by the repeat")
	}
}

func TestActiveTasksRemoveOnCompletion(t *testing.T) {
	a := NewActiveTasks()
	a.Insert(mission.Mission{ID: "M01"})
	if _, ok := a.Get("M01"); !ok {
		t.Fatal("expected M01 to be active after insert")
	}
	a.Remove("M01")
	if _, ok := a.Get("M01"); ok {
		t.Fatal("expected M01 to be removed")
	}
}

func TestProgressMapOverwritesInPlace(t *testing.T) {
	p := NewProgressMap()
	p.Upsert("M01", "r1", ProgressRecord{ProgressPercent: 10, Status: StatusInProgress})
	p.Upsert("M01", "r1", ProgressRecord{ProgressPercent: 90, Status: StatusInProgress})

	rec, ok := p.Get("M01", "r1")
	if !ok || rec.ProgressPercent != 90 {
		t.Fatalf("expected final progress value to win, got %+v", rec)
	}
}
