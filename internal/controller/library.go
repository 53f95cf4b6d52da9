// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package controller

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/nishisan-dev/rover-fleet/internal/mission"
	"github.com/robfig/cron/v3"
)

// Library holds the mission library loaded from mission*.json files under
// one or more search paths, rescanned at registration time, at request-miss
// time, and periodically via cron — the three cadences the mission-library
// rescan open question resolved to (see DESIGN.md).
type Library struct {
	searchPaths []string
	logger      *slog.Logger

	mu       sync.RWMutex
	byID     map[string]mission.Mission
	rescanOn bool

	cron *cron.Cron
}

// NewLibrary constructs a Library; call Rescan once before serving requests
// to populate the initial set.
func NewLibrary(searchPaths []string, rescanCron string, rescanOnRequest bool, logger *slog.Logger) (*Library, error) {
	l := &Library{
		searchPaths: searchPaths,
		logger:      logger.With("component", "mission_library"),
		byID:        make(map[string]mission.Mission),
		rescanOn:    rescanOnRequest,
	}

	c := cron.New(cron.WithLogger(cron.VerbosePrintfLogger(slog.NewLogLogger(logger.Handler(), slog.LevelDebug))))
	if _, err := c.AddFunc(rescanCron, l.rescanQuiet); err != nil {
		return nil, fmt.Errorf("adding mission library rescan schedule %q: %w", rescanCron, err)
	}
	l.cron = c
	return l, nil
}

// Start begins the periodic rescan schedule.
func (l *Library) Start() { l.cron.Start() }

// Stop halts the periodic rescan schedule.
func (l *Library) Stop() { l.cron.Stop() }

func (l *Library) rescanQuiet() {
	if err := l.Rescan(); err != nil {
		l.logger.Warn("periodic mission library rescan failed", "error", err)
	}
}

// Rescan globs mission*.json under every search path and replaces the
// in-memory set. Each file may hold a single mission record or an array of
// them. Structurally invalid missions are logged and skipped rather than
// aborting the whole rescan.
func (l *Library) Rescan() error {
	found := make(map[string]mission.Mission)

	for _, dir := range l.searchPaths {
		matches, err := filepath.Glob(filepath.Join(dir, "mission*.json"))
		if err != nil {
			return fmt.Errorf("globbing mission library path %q: %w", dir, err)
		}
		for _, path := range matches {
			if err := l.loadFile(path, found); err != nil {
				l.logger.Warn("skipping unreadable mission file", "path", path, "error", err)
			}
		}
	}

	l.mu.Lock()
	l.byID = found
	l.mu.Unlock()

	l.logger.Info("mission library rescanned", "paths", l.searchPaths, "count", len(found))
	return nil
}

func (l *Library) loadFile(path string, into map[string]mission.Mission) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var one mission.Mission
	if err := json.Unmarshal(data, &one); err == nil && one.ID != "" {
		l.admit(one, path, into)
		return nil
	}

	var many []mission.Mission
	if err := json.Unmarshal(data, &many); err != nil {
		return fmt.Errorf("parsing mission file: %w", err)
	}
	for _, m := range many {
		l.admit(m, path, into)
	}
	return nil
}

func (l *Library) admit(m mission.Mission, path string, into map[string]mission.Mission) {
	ok, diag := mission.Validate(m)
	if !ok {
		l.logger.Warn("rejecting invalid mission in library", "path", path, "mission_id", m.ID, "reason", diag)
		return
	}
	if diag != "" {
		l.logger.Info("admitting flagged mission into library", "path", path, "mission_id", m.ID, "note", diag)
	}
	into[m.ID] = m
}

// Lookup returns the mission for id, rescanning first if rescan-on-miss is
// enabled and the id was not found on the first try.
func (l *Library) Lookup(id string) (mission.Mission, bool) {
	if m, ok := l.lookupOnce(id); ok {
		return m, true
	}
	if !l.rescanOn {
		return mission.Mission{}, false
	}
	if err := l.Rescan(); err != nil {
		l.logger.Warn("rescan-on-miss failed", "error", err)
		return mission.Mission{}, false
	}
	return l.lookupOnce(id)
}

func (l *Library) lookupOnce(id string) (mission.Mission, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	m, ok := l.byID[id]
	return m, ok
}

// Pending returns every mission currently in the library that is not yet
// present in excludeIDs (the active task map plus the pending queue). The
// order of the result is not defined: it follows Go's randomized map
// iteration. The FIFO order used by scan-and-pop dispatch is the order in
// which callers enqueue the result into Queue (see queue.go).
func (l *Library) Pending(excludeIDs map[string]struct{}) []mission.Mission {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]mission.Mission, 0, len(l.byID))
	for id, m := range l.byID {
		if _, skip := excludeIDs[id]; skip {
			continue
		}
		out = append(out, m)
	}
	return out
}
