// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

// Package observability implements the read-only HTTP observation API: a
// thin, intentionally minimal surface over controller.Inspector, exactly
// the endpoint list named in the external interfaces.
package observability

import "github.com/nishisan-dev/rover-fleet/internal/controller"

// ErrorResponse is returned, alongside a non-2xx status, on any handler
// failure.
type ErrorResponse struct {
	Error string `json:"error"`
}

// AgentsResponse is returned by GET /rovers.
type AgentsResponse struct {
	Rovers []controller.AgentSnapshot `json:"rovers"`
}

// MissionsResponse is returned by GET /missions.
type MissionsResponse struct {
	Missions []controller.MissionSnapshot `json:"missions"`
}

// TelemetryResponse is returned by GET /telemetry.
type TelemetryResponse struct {
	Telemetry []controller.TelemetrySnapshot `json:"telemetry"`
}

// StatusResponse is returned by GET /status.
type StatusResponse struct {
	controller.HealthSnapshot
}
