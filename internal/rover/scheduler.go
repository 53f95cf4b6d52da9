// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package rover

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/nishisan-dev/rover-fleet/internal/telemetrystream"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// Position is the rover's current location and status, supplied by the
// (out of scope) mission-execution simulator.
type Position struct {
	X, Y, Z           float64
	OperationalStatus string
	Battery           *float64
	Velocity          *float64
	HeadingDegrees    *float64 // compass bearing in [0,360); converted to Direction via headingToCardinal
}

// headingToCardinal converts a compass bearing in degrees to one of the four
// cardinal names telemetry records carry, per the reference direction
// mapping: [315,360) union [0,45) is North, [45,135) East, [135,225) South,
// [225,315) West.
func headingToCardinal(degrees float64) string {
	d := math.Mod(degrees, 360)
	if d < 0 {
		d += 360
	}
	switch {
	case d < 45 || d >= 315:
		return "North"
	case d < 135:
		return "East"
	case d < 225:
		return "South"
	default:
		return "West"
	}
}

// PositionSource reports the rover's current position for each telemetry
// tick. A nil source falls back to a stationary "nominal" stub.
type PositionSource interface {
	Position() Position
}

type telemetryRecord struct {
	RoverID           string   `json:"rover_id"`
	Position          posJSON  `json:"position"`
	OperationalStatus string   `json:"operational_status"`
	Battery           *float64 `json:"battery,omitempty"`
	Velocity          *float64 `json:"velocity,omitempty"`
	Direction         string   `json:"direction,omitempty"`
	Temperature       *float64 `json:"temperature,omitempty"`
	Health            string   `json:"health,omitempty"`
	Timestamp         string   `json:"timestamp"`
}

type posJSON struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Scheduler builds and ships a telemetry record at a fixed interval,
// independent of mission execution, for the rover's lifetime.
type Scheduler struct {
	roverID  string
	client   *telemetrystream.Client
	tempDir  string
	interval time.Duration
	source   PositionSource
	logger   *slog.Logger
}

// NewScheduler constructs a Scheduler. source may be nil, in which case a
// stationary nominal position is reported every tick.
func NewScheduler(roverID string, client *telemetrystream.Client, tempDir string, interval time.Duration, source PositionSource, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		roverID:  roverID,
		client:   client,
		tempDir:  tempDir,
		interval: interval,
		source:   source,
		logger:   logger.With("component", "telemetry_scheduler"),
	}
}

// Run ticks at the configured interval until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick()
		}
	}
}

func (s *Scheduler) tick() {
	pos := Position{OperationalStatus: "nominal"}
	if s.source != nil {
		pos = s.source.Position()
	}

	var direction string
	if pos.HeadingDegrees != nil {
		direction = headingToCardinal(*pos.HeadingDegrees)
	}

	rec := telemetryRecord{
		RoverID:           s.roverID,
		Position:          posJSON{X: pos.X, Y: pos.Y, Z: pos.Z},
		OperationalStatus: pos.OperationalStatus,
		Battery:           pos.Battery,
		Velocity:          pos.Velocity,
		Direction:         direction,
		Timestamp:         time.Now().UTC().Format(time.RFC3339),
	}
	rec.Temperature, rec.Health = s.hostHealth()

	body, err := json.Marshal(rec)
	if err != nil {
		s.logger.Warn("marshalling telemetry record failed", "error", err)
		return
	}

	name := fmt.Sprintf("telemetry-%d.json", time.Now().UnixMicro())
	tmpPath := filepath.Join(s.tempDir, name)
	if err := os.WriteFile(tmpPath, body, 0644); err != nil {
		s.logger.Warn("writing telemetry temp file failed", "path", tmpPath, "error", err)
		return
	}

	if err := s.client.Send(name, body); err != nil {
		s.logger.Warn("sending telemetry snapshot failed, leaving temp file for next tick", "path", tmpPath, "error", err)
		return
	}
	if err := os.Remove(tmpPath); err != nil {
		s.logger.Debug("removing sent telemetry temp file failed", "path", tmpPath, "error", err)
	}
}

// hostHealth derives the health field from real host metrics: "degraded"
// when memory use is above 90% or CPU use above 95%, else "nominal". It does
// not read a temperature; the temperature it returns is always nil, so that
// field is omitted from the record.
func (s *Scheduler) hostHealth() (*float64, string) {
	health := "nominal"
	if v, err := mem.VirtualMemory(); err == nil && v.UsedPercent > 90 {
		health = "degraded"
	}
	if pct, err := cpu.Percent(0, false); err == nil && len(pct) > 0 && pct[0] > 95 {
		health = "degraded"
	}
	return nil, health
}
