// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package rover

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/nishisan-dev/rover-fleet/internal/config"
	"github.com/nishisan-dev/rover-fleet/internal/execsim"
	"github.com/nishisan-dev/rover-fleet/internal/mission"
	"github.com/nishisan-dev/rover-fleet/internal/missionlink"
	"github.com/nishisan-dev/rover-fleet/internal/pki"
	"github.com/nishisan-dev/rover-fleet/internal/telemetrystream"
)

// Rover wires the agent session layer: the ML receive loop, the current
// mission + FIFO queue, the continuous telemetry scheduler, and the
// mission executor.
type Rover struct {
	cfg      *config.RoverConfig
	logger   *slog.Logger
	ml       *missionlink.Endpoint
	controllerAddr *net.UDPAddr
	tsClient *telemetrystream.Client
	executor execsim.Executor
	tasks    *MissionTable
	source   PositionSource
}

// New wires a Rover from cfg: binds its own ML UDP socket (it also serves
// the acceptor role should the controller ever need to reconnect) and
// resolves the controller's TelemetryStream address for the scheduler.
func New(cfg *config.RoverConfig, logger *slog.Logger, executor execsim.Executor, source PositionSource) (*Rover, error) {
	conn, err := net.ListenUDP("udp", &net.UDPAddr{})
	if err != nil {
		return nil, fmt.Errorf("binding rover missionlink socket: %w", err)
	}
	ml := missionlink.NewEndpoint(conn, logger.With("component", "missionlink"), missionlink.EndpointOptions{})

	controllerAddr, err := net.ResolveUDPAddr("udp", cfg.Controller.MissionLinkAddress)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("resolving controller missionlink address: %w", err)
	}

	if executor == nil {
		executor = execsim.NewStubExecutor()
	}

	var tsTLSConfig *tls.Config
	if cfg.Telemetry.TLS.Enabled() {
		tsTLSConfig, err = pki.NewClientTLSConfig(cfg.Telemetry.TLS.CACert, cfg.Telemetry.TLS.Cert, cfg.Telemetry.TLS.Key)
		if err != nil {
			conn.Close()
			return nil, fmt.Errorf("building telemetrystream client tls config: %w", err)
		}
	}
	tsDSCP, err := telemetrystream.ParseDSCP(cfg.Telemetry.DSCP)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("parsing telemetry dscp: %w", err)
	}

	return &Rover{
		cfg:            cfg,
		logger:         logger,
		ml:             ml,
		controllerAddr: controllerAddr,
		tsClient:       telemetrystream.NewClient(cfg.Controller.TelemetryStreamAddress, 5*time.Second, tsTLSConfig, tsDSCP, cfg.Telemetry.BandwidthLimitBps),
		executor:       executor,
		tasks:          NewMissionTable(),
		source:         source,
	}, nil
}

// Run registers with the controller, then starts the telemetry scheduler
// and the ML receive loop, blocking until ctx is cancelled.
func (rv *Rover) Run(ctx context.Context) error {
	defer rv.ml.Close()

	if err := rv.register(ctx); err != nil {
		return fmt.Errorf("registering with controller: %w", err)
	}

	scheduler := NewScheduler(rv.cfg.Rover.ID, rv.tsClient, rv.cfg.Telemetry.TempDir, rv.cfg.Telemetry.Interval, rv.source, rv.logger)
	go scheduler.Run(ctx)

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}
		if err := rv.receiveOnce(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			rv.logger.Warn("receive loop iteration failed", "error", err)
		}
	}
}

func (rv *Rover) register(ctx context.Context) error {
	sess, err := rv.ml.Connect(ctx, rv.controllerAddr, rv.cfg.Rover.ID)
	if err != nil {
		return err
	}
	reply, err := sess.Send(ctx, missionlink.OpRegister, []byte(fmt.Sprintf(`{"rover_id":%q}`, rv.cfg.Rover.ID)))
	if err != nil {
		return err
	}
	rv.logger.Info("registration reply", "reply", string(reply))
	return nil
}

// receiveOnce accepts one inbound session from the controller (a mission
// dispatch) and handles it to completion.
func (rv *Rover) receiveOnce(ctx context.Context) error {
	sess, err := rv.ml.Accept(ctx)
	if err != nil {
		return err
	}

	opType, body, err := sess.Receive(ctx)
	if err != nil {
		return err
	}
	if opType != missionlink.OpTask {
		_ = sess.Reply(ctx, []byte("unexpected_op"))
		return nil
	}

	var m mission.Mission
	if err := json.Unmarshal(body, &m); err != nil {
		_ = sess.Reply(ctx, []byte(mission.DiagnosticParseError))
		return nil
	}
	if ok, diag := mission.Validate(m); !ok {
		rv.logger.Warn("rejecting invalid dispatched mission", "mission_id", m.ID, "reason", diag)
		_ = sess.Reply(ctx, []byte(mission.DiagnosticInvalid))
		return nil
	}

	start := rv.tasks.Offer(m)
	if err := sess.Reply(ctx, []byte(m.ID)); err != nil {
		rv.logger.Warn("acking dispatched mission failed", "mission_id", m.ID, "error", err)
	}
	if start {
		go rv.execute(context.Background(), m)
	}
	return nil
}

func (rv *Rover) execute(ctx context.Context, m mission.Mission) {
	report := func(percent int, status string) {
		rv.reportProgress(ctx, m.ID, percent, status)
	}
	if err := rv.executor.Execute(ctx, m, report); err != nil {
		rv.logger.Warn("mission execution failed", "mission_id", m.ID, "error", err)
	}

	next, hasNext := rv.tasks.CompleteAndPopNext()
	if hasNext {
		go rv.execute(ctx, next)
		return
	}
	rv.requestMission(ctx)
}

func (rv *Rover) reportProgress(ctx context.Context, missionID string, percent int, status string) {
	const maxRetries = 3
	body, err := json.Marshal(map[string]any{
		"mission_id":       missionID,
		"rover_id":         rv.cfg.Rover.ID,
		"progress_percent": percent,
		"status":           status,
	})
	if err != nil {
		rv.logger.Warn("marshalling progress report failed", "mission_id", missionID, "error", err)
		return
	}

	for attempt := 0; attempt < maxRetries; attempt++ {
		sess, err := rv.ml.Connect(ctx, rv.controllerAddr, rv.cfg.Rover.ID)
		if err != nil {
			continue
		}
		if _, err := sess.Send(ctx, missionlink.OpProgress, body); err != nil {
			continue
		}
		return
	}
	rv.logger.Warn("reporting progress exhausted retries", "mission_id", missionID)
}

// requestMission issues an opType Q request once the FIFO queue is empty.
// The reply to this session is only logged: "dispatching" means the
// controller is sending a mission over a separate opType T session, which
// the receive loop consumes like any other dispatch; "no_mission" means
// there was nothing to give.
func (rv *Rover) requestMission(ctx context.Context) {
	sess, err := rv.ml.Connect(ctx, rv.controllerAddr, rv.cfg.Rover.ID)
	if err != nil {
		rv.logger.Warn("mission request handshake failed", "error", err)
		return
	}
	reply, err := sess.Send(ctx, missionlink.OpRequest, missionlink.SentinelBody())
	if err != nil {
		rv.logger.Warn("mission request failed", "error", err)
		return
	}
	rv.logger.Debug("mission request reply", "reply", string(reply))
}
