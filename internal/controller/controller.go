// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

// Package controller implements the Mother Ship's session layer: the agent
// registry, pending mission queue, active task map, progress map, and the
// MissionLink/TelemetryStream wiring that drives them.
package controller

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/nishisan-dev/rover-fleet/internal/config"
	"github.com/nishisan-dev/rover-fleet/internal/mission"
	"github.com/nishisan-dev/rover-fleet/internal/missionlink"
	"github.com/nishisan-dev/rover-fleet/internal/pki"
	"github.com/nishisan-dev/rover-fleet/internal/telemetrystore"
	"github.com/nishisan-dev/rover-fleet/internal/telemetrystream"
	"github.com/shirou/gopsutil/v3/disk"
	"golang.org/x/time/rate"
)

// Controller owns every piece of the session layer's state and the two
// protocol endpoints that mutate it. All registry/queue/task/progress
// mutation happens on the single goroutine running Run's ML accept loop,
// per the concurrency model's single-writer rule.
type Controller struct {
	cfg    *config.ControllerConfig
	logger *slog.Logger

	registry *Registry
	queue    *Queue
	active   *ActiveTasks
	progress *ProgressMap
	library  *Library

	ml      *missionlink.Endpoint
	ts      *telemetrystream.Server
	limiter *rate.Limiter
}

// New wires a Controller from cfg: binds the ML UDP socket, constructs the
// telemetry sink (disk, optionally S3-mirrored), binds the TS server, and
// loads the initial mission library.
func New(ctx context.Context, cfg *config.ControllerConfig, logger *slog.Logger) (*Controller, error) {
	udpAddr, err := net.ResolveUDPAddr("udp", cfg.MissionLink.Listen)
	if err != nil {
		return nil, fmt.Errorf("resolving missionlink listen address: %w", err)
	}
	conn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return nil, fmt.Errorf("binding missionlink socket: %w", err)
	}

	ml := missionlink.NewEndpoint(conn, logger.With("component", "missionlink"), missionlink.EndpointOptions{
		HandshakeRetries: cfg.MissionLink.HandshakeRetry,
		DataRetries:      cfg.MissionLink.DataRetry,
		AckTimeout:       cfg.MissionLink.AckTimeout,
	})

	var sink telemetrystore.Sink
	diskSink, err := telemetrystore.NewDiskSink(cfg.Storage.BaseDir, cfg.Storage.Compress)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("constructing telemetry disk sink: %w", err)
	}
	sink = diskSink
	if cfg.Storage.S3.Enabled {
		mirror, err := telemetrystore.NewS3Mirror(ctx, sink, cfg.Storage.S3.Bucket, cfg.Storage.S3.Prefix, cfg.Storage.S3.Region, logger)
		if err != nil {
			conn.Close()
			return nil, fmt.Errorf("constructing s3 mirror sink: %w", err)
		}
		sink = mirror
	}

	var tsTLSConfig *tls.Config
	if cfg.TelemetryStream.TLS.Enabled() {
		tsTLSConfig, err = pki.NewServerTLSConfig(cfg.TelemetryStream.TLS.CACert, cfg.TelemetryStream.TLS.Cert, cfg.TelemetryStream.TLS.Key)
		if err != nil {
			conn.Close()
			return nil, fmt.Errorf("building telemetrystream server tls config: %w", err)
		}
	}
	tsDSCP, err := telemetrystream.ParseDSCP(cfg.TelemetryStream.DSCP)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("parsing telemetrystream dscp: %w", err)
	}

	ts, err := telemetrystream.NewServer(cfg.TelemetryStream.Listen, sink, logger.With("component", "telemetrystream"), tsTLSConfig, tsDSCP)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("binding telemetrystream listener: %w", err)
	}

	library, err := NewLibrary(cfg.MissionLibrary.SearchPaths, cfg.MissionLibrary.RescanCron, cfg.MissionLibrary.RescanOnRequestEnabled(), logger)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("constructing mission library: %w", err)
	}
	if err := library.Rescan(); err != nil {
		logger.Warn("initial mission library scan failed", "error", err)
	}

	return &Controller{
		cfg:      cfg,
		logger:   logger,
		registry: NewRegistry(),
		queue:    NewQueue(),
		active:   NewActiveTasks(),
		progress: NewProgressMap(),
		library:  library,
		ml:       ml,
		ts:       ts,
		limiter:  rate.NewLimiter(rate.Limit(200), 200),
	}, nil
}

// Run starts every controller thread (ML accept/dispatch, TS accept,
// mission-library cron, stats reporter) and blocks until ctx is cancelled.
func (c *Controller) Run(ctx context.Context) error {
	c.library.Start()
	defer c.library.Stop()

	errCh := make(chan error, 2)
	go func() { errCh <- c.ts.Run(ctx) }()
	go c.runStatsReporter(ctx)
	go func() { errCh <- c.runMissionLinkLoop(ctx) }()

	select {
	case <-ctx.Done():
		c.ml.Close()
		return nil
	case err := <-errCh:
		c.ml.Close()
		return err
	}
}

// runMissionLinkLoop is the controller's single ML dispatch thread: it
// accepts sessions serially and handles each to completion before
// accepting the next, since all registry/queue/task/progress mutation must
// happen from this one goroutine.
func (c *Controller) runMissionLinkLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}
		if !c.limiter.Allow() {
			continue
		}
		sess, err := c.ml.Accept(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			continue
		}
		c.handleSession(ctx, sess)
	}
}

func (c *Controller) handleSession(ctx context.Context, sess *missionlink.Session) {
	opType, body, err := sess.Receive(ctx)
	if err != nil {
		c.logger.Warn("missionlink receive failed", "peer", sess.Peer(), "error", err)
		return
	}

	var reply []byte
	switch opType {
	case missionlink.OpRegister:
		reply = c.handleRegister(ctx, sess.SessionID(), sess.Peer())
	case missionlink.OpRequest:
		reply = c.handleRequest(ctx, sess.SessionID())
	case missionlink.OpProgress:
		reply = c.handleProgress(body)
	default:
		reply = []byte("unknown_op")
	}

	if err := sess.Reply(ctx, reply); err != nil {
		c.logger.Warn("missionlink reply failed", "peer", sess.Peer(), "error", err)
	}
}

func (c *Controller) handleRegister(ctx context.Context, agentID string, addr *net.UDPAddr) []byte {
	rec, added := c.registry.Register(agentID, addr)
	if !added {
		return []byte("Already registered")
	}

	if err := c.library.Rescan(); err != nil {
		c.logger.Warn("registration rescan failed", "error", err)
	}
	for _, m := range c.library.Pending(c.excludedMissionIDs()) {
		if m.RoverID != rec.ID {
			continue
		}
		c.queue.Enqueue(m)
	}
	if m, ok := c.queue.DequeueFor(rec.ID); ok {
		c.dispatch(ctx, m)
	}
	return []byte("Registered")
}

// handleRequest answers an opType Q request. A match is dispatched through
// the same sendMission path used at registration — a fresh opType T session
// addressed to the requester — consumed by the rover's receive loop rather
// than carried in this session's reply, since a reply body is too small to
// safely assume it fits a whole mission record. This session's own reply
// only acknowledges whether a dispatch was triggered.
func (c *Controller) handleRequest(ctx context.Context, roverID string) []byte {
	if m, ok := c.queue.DequeueFor(roverID); ok {
		c.dispatch(ctx, m)
		return []byte("dispatching")
	}

	if c.cfg.MissionLibrary.RescanOnRequestEnabled() {
		if err := c.library.Rescan(); err != nil {
			c.logger.Warn("request-miss rescan failed", "error", err)
		}
		for _, m := range c.library.Pending(c.excludedMissionIDs()) {
			if m.RoverID == roverID {
				c.queue.Enqueue(m)
			}
		}
		if m, ok := c.queue.DequeueFor(roverID); ok {
			c.dispatch(ctx, m)
			return []byte("dispatching")
		}
	}
	return []byte("no_mission")
}

func (c *Controller) handleProgress(body []byte) []byte {
	var rec struct {
		MissionID       string  `json:"mission_id"`
		RoverID         string  `json:"rover_id"`
		ProgressPercent float64 `json:"progress_percent"`
		Status          string  `json:"status"`
	}
	if err := json.Unmarshal(body, &rec); err != nil {
		return []byte(mission.DiagnosticParseError)
	}

	c.progress.Upsert(rec.MissionID, rec.RoverID, ProgressRecord{
		ProgressPercent: rec.ProgressPercent,
		Status:          rec.Status,
	})
	if rec.Status == StatusCompleted {
		c.active.Remove(rec.MissionID)
	}
	return []byte("progress_received")
}

// dispatch validates m, serialises it as JSON into an ML data frame, and
// sends it over a fresh handshake to m.RoverID. On ACK success it inserts m
// into the active task map. Up to 5 whole-mission retries, each re-running
// the handshake, per the dispatch retry budget.
func (c *Controller) dispatch(ctx context.Context, m mission.Mission) {
	if ok, diag := mission.Validate(m); !ok {
		c.logger.Warn("refusing to dispatch invalid mission", "mission_id", m.ID, "reason", diag)
		return
	}
	rec, ok := c.registry.Lookup(m.RoverID)
	if !ok {
		c.logger.Warn("dispatch target not registered, re-queuing", "mission_id", m.ID, "rover_id", m.RoverID)
		c.queue.Enqueue(m)
		return
	}

	body, err := json.Marshal(m)
	if err != nil {
		c.logger.Warn("marshalling mission for dispatch failed", "mission_id", m.ID, "error", err)
		return
	}

	const maxDispatchRetries = 5
	for attempt := 0; attempt < maxDispatchRetries; attempt++ {
		sess, err := c.ml.Connect(ctx, rec.Addr, m.ID)
		if err != nil {
			c.logger.Warn("dispatch handshake failed", "mission_id", m.ID, "attempt", attempt, "error", err)
			continue
		}
		if _, err := sess.Send(ctx, missionlink.OpTask, body); err != nil {
			c.logger.Warn("dispatch send failed", "mission_id", m.ID, "attempt", attempt, "error", err)
			continue
		}
		c.active.Insert(m)
		c.logger.Info("mission dispatched", "mission_id", m.ID, "rover_id", m.RoverID)
		return
	}
	c.logger.Warn("dispatch exhausted retries, re-queuing", "mission_id", m.ID)
	c.queue.Enqueue(m)
}

// excludedMissionIDs returns every mission_id currently occupying the
// pending queue or the active task map, so a library rescan never
// re-enqueues a mission that already lives in either place — invariant
// (i): a mission appears in at most one of {pending queue, active task map}.
func (c *Controller) excludedMissionIDs() map[string]struct{} {
	out := c.queue.IDs()
	for id := range c.active.IDs() {
		out[id] = struct{}{}
	}
	return out
}

func (c *Controller) runStatsReporter(ctx context.Context) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			usage, err := disk.Usage(c.cfg.Storage.BaseDir)
			fields := []any{
				"agents", len(c.registry.All()),
				"pending_queue", len(c.queue.Snapshot()),
				"active_tasks", len(c.active.Snapshot()),
			}
			if err == nil {
				fields = append(fields, "disk_used_percent", usage.UsedPercent, "disk_free_bytes", usage.Free)
			}
			c.logger.Info("controller stats", fields...)
		}
	}
}
