// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package rover

import (
	"testing"

	"github.com/nishisan-dev/rover-fleet/internal/mission"
)

func TestMissionTableOfferStartsFirstMission(t *testing.T) {
	tbl := NewMissionTable()
	start := tbl.Offer(mission.Mission{ID: "M01"})
	if !start {
		t.Fatal("expected first offered mission to start immediately")
	}
	cur, ok := tbl.Current()
	if !ok || cur.ID != "M01" {
		t.Fatalf("expected current mission M01, got %+v ok=%v", cur, ok)
	}
}

func TestMissionTableOfferQueuesWhenBusy(t *testing.T) {
	tbl := NewMissionTable()
	tbl.Offer(mission.Mission{ID: "M01"})
	start := tbl.Offer(mission.Mission{ID: "M02"})
	if start {
		t.Fatal("expected second offered mission to queue, not start")
	}
}

func TestMissionTableCompleteAndPopNextPromotesFIFOHead(t *testing.T) {
	tbl := NewMissionTable()
	tbl.Offer(mission.Mission{ID: "M01"})
	tbl.Offer(mission.Mission{ID: "M02"})
	tbl.Offer(mission.Mission{ID: "M03"})

	next, ok := tbl.CompleteAndPopNext()
	if !ok || next.ID != "M02" {
		t.Fatalf("expected M02 promoted next, got %+v ok=%v", next, ok)
	}
	cur, ok := tbl.Current()
	if !ok || cur.ID != "M02" {
		t.Fatalf("expected current to be M02, got %+v ok=%v", cur, ok)
	}

	next, ok = tbl.CompleteAndPopNext()
	if !ok || next.ID != "M03" {
		t.Fatalf("expected M03 promoted next, got %+v ok=%v", next, ok)
	}
}

func TestMissionTableCompleteAndPopNextOnEmptyQueue(t *testing.T) {
	tbl := NewMissionTable()
	tbl.Offer(mission.Mission{ID: "M01"})
	_, ok := tbl.CompleteAndPopNext()
	if ok {
		t.Fatal("expected no next mission when queue is empty")
	}
	if _, ok := tbl.Current(); ok {
		t.Fatal("expected no current mission after completing the only one")
	}
}
