// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package observability

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/nishisan-dev/rover-fleet/internal/controller"
)

// NewRouter builds the read-only observation API's http.Handler: one
// ServeMux with one GET handler per endpoint named in the external
// interfaces, mirroring the teacher's observability router shape.
func NewRouter(insp controller.Inspector) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", handleHealth)
	mux.HandleFunc("GET /status", makeStatusHandler(insp))
	mux.HandleFunc("GET /rovers", makeRoversHandler(insp))
	mux.HandleFunc("GET /rovers/{id}", makeRoverDetailHandler(insp))
	mux.HandleFunc("GET /missions", makeMissionsHandler(insp))
	mux.HandleFunc("GET /missions/{id}", makeMissionDetailHandler(insp))
	mux.HandleFunc("GET /telemetry", makeTelemetryHandler(insp))

	return mux
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func makeStatusHandler(insp controller.Inspector) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, StatusResponse{HealthSnapshot: insp.Health()})
	}
}

func makeRoversHandler(insp controller.Inspector) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, AgentsResponse{Rovers: insp.Agents()})
	}
}

func makeRoverDetailHandler(insp controller.Inspector) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		for _, a := range insp.Agents() {
			if a.ID == id {
				writeJSON(w, http.StatusOK, a)
				return
			}
		}
		writeError(w, http.StatusNotFound, "rover not found")
	}
}

func makeMissionsHandler(insp controller.Inspector) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := r.URL.Query().Get("status")
		writeJSON(w, http.StatusOK, MissionsResponse{Missions: insp.Missions(status)})
	}
}

func makeMissionDetailHandler(insp controller.Inspector) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		m, ok := insp.Mission(id)
		if !ok {
			writeError(w, http.StatusNotFound, "mission not found")
			return
		}
		writeJSON(w, http.StatusOK, m)
	}
}

func makeTelemetryHandler(insp controller.Inspector) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		roverID := r.URL.Query().Get("rover_id")
		if roverID == "" {
			writeError(w, http.StatusBadRequest, "rover_id is required")
			return
		}
		limit := 50
		if raw := r.URL.Query().Get("limit"); raw != "" {
			if n, err := strconv.Atoi(raw); err == nil {
				limit = n
			}
		}
		writeJSON(w, http.StatusOK, TelemetryResponse{Telemetry: insp.Telemetry(roverID, limit)})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}
