// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package controller

import (
	"os"
	"path/filepath"
	"sort"
	"time"
)

// AgentSnapshot is the observation API's read-only view of one registered
// rover.
type AgentSnapshot struct {
	ID           string    `json:"id"`
	Address      string    `json:"address"`
	RegisteredAt time.Time `json:"registered_at"`
}

// MissionSnapshot is the observation API's read-only view of one mission,
// joining its record with its pending/active disposition and per-rover
// progress.
type MissionSnapshot struct {
	Mission  string                    `json:"mission_id"`
	RoverID  string                    `json:"rover_id"`
	Status   string                    `json:"status"` // "pending" | "active"
	Progress map[string]ProgressRecord `json:"progress,omitempty"`
}

// TelemetrySnapshot is a minimal pointer to a stored telemetry file; the
// actual bytes live in telemetrystore and are out of scope for this API.
type TelemetrySnapshot struct {
	RoverID  string    `json:"rover_id"`
	Filename string    `json:"filename"`
	StoredAt time.Time `json:"stored_at"`
}

// HealthSnapshot reports coarse controller liveness for GET /status.
type HealthSnapshot struct {
	Status       string `json:"status"`
	AgentCount   int    `json:"agent_count"`
	PendingCount int    `json:"pending_count"`
	ActiveCount  int    `json:"active_count"`
}

// Inspector is the read-only seam the observation API is built against.
type Inspector interface {
	Agents() []AgentSnapshot
	Mission(id string) (MissionSnapshot, bool)
	Missions(status string) []MissionSnapshot
	Telemetry(roverID string, limit int) []TelemetrySnapshot
	Health() HealthSnapshot
}

// Agents implements Inspector.
func (c *Controller) Agents() []AgentSnapshot {
	recs := c.registry.All()
	out := make([]AgentSnapshot, 0, len(recs))
	for _, r := range recs {
		addr := ""
		if r.Addr != nil {
			addr = r.Addr.String()
		}
		out = append(out, AgentSnapshot{ID: r.ID, Address: addr, RegisteredAt: r.RegisteredAt})
	}
	return out
}

// Mission implements Inspector.
func (c *Controller) Mission(id string) (MissionSnapshot, bool) {
	if m, ok := c.active.Get(id); ok {
		return MissionSnapshot{Mission: m.ID, RoverID: m.RoverID, Status: "active", Progress: c.progress.ForMission(id)}, true
	}
	for _, m := range c.queue.Snapshot() {
		if m.ID == id {
			return MissionSnapshot{Mission: m.ID, RoverID: m.RoverID, Status: "pending"}, true
		}
	}
	return MissionSnapshot{}, false
}

// Missions implements Inspector. status filters by "pending"/"active"; ""
// returns both, and any other value returns none.
func (c *Controller) Missions(status string) []MissionSnapshot {
	var out []MissionSnapshot
	if status == "" || status == "pending" {
		for _, m := range c.queue.Snapshot() {
			out = append(out, MissionSnapshot{Mission: m.ID, RoverID: m.RoverID, Status: "pending"})
		}
	}
	if status == "" || status == "active" {
		for _, m := range c.active.Snapshot() {
			out = append(out, MissionSnapshot{Mission: m.ID, RoverID: m.RoverID, Status: "active", Progress: c.progress.ForMission(m.ID)})
		}
	}
	return out
}

// Telemetry implements Inspector by listing files already written to disk
// under the rover's telemetry subdirectory, most recent first. It does not
// read snapshot bodies — that belongs to telemetrystore, out of scope here.
func (c *Controller) Telemetry(roverID string, limit int) []TelemetrySnapshot {
	dir := filepath.Join(c.cfg.Storage.BaseDir, roverID)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}

	type fileInfo struct {
		name    string
		modTime time.Time
	}
	files := make([]fileInfo, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		files = append(files, fileInfo{name: e.Name(), modTime: info.ModTime()})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].modTime.After(files[j].modTime) })

	if limit <= 0 || limit > len(files) {
		limit = len(files)
	}
	out := make([]TelemetrySnapshot, 0, limit)
	for _, f := range files[:limit] {
		out = append(out, TelemetrySnapshot{RoverID: roverID, Filename: f.name, StoredAt: f.modTime})
	}
	return out
}

// Health implements Inspector.
func (c *Controller) Health() HealthSnapshot {
	return HealthSnapshot{
		Status:       "ok",
		AgentCount:   len(c.registry.All()),
		PendingCount: len(c.queue.Snapshot()),
		ActiveCount:  len(c.active.Snapshot()),
	}
}
