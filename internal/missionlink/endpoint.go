// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package missionlink

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"
)

// ErrTimeout is returned when a handshake or data transfer exhausts its
// bounded retry budget without success.
var ErrTimeout = errors.New("missionlink: timeout")

const (
	acceptPollTimeout   = 10 * time.Millisecond
	acceptWaitBudget    = 10 * time.Second
	initiatorInitialSeq = 100
	acceptorInitialSeq  = 500
)

// EndpointOptions tunes retry counts and timeouts. Zero values fall back to
// the defaults used throughout the reference deployment.
type EndpointOptions struct {
	HandshakeRetries int
	DataRetries      int
	AckTimeout       time.Duration
}

func (o EndpointOptions) withDefaults() EndpointOptions {
	if o.HandshakeRetries <= 0 {
		o.HandshakeRetries = 5
	}
	if o.DataRetries <= 0 {
		o.DataRetries = 5
	}
	if o.AckTimeout <= 0 {
		o.AckTimeout = 2 * time.Second
	}
	return o
}

// Endpoint is one dual-role MissionLink socket: it both accepts inbound
// sessions (acting as responder) and initiates outbound ones (acting as
// initiator), exactly as the reference deployment shares a single bound UDP
// socket between both roles. A mutex narrows the race window between the
// accept poller and any initiator/data waiter; it is held across each
// single ReadFromUDP/WriteToUDP call. A read holds it until that read's
// deadline: the short accept poll, or AckTimeout for handshake and data
// waits.
type Endpoint struct {
	conn *net.UDPConn
	mu   sync.Mutex

	logger *slog.Logger
	opts   EndpointOptions
}

// NewEndpoint wraps an already-bound UDP connection.
func NewEndpoint(conn *net.UDPConn, logger *slog.Logger, opts EndpointOptions) *Endpoint {
	return &Endpoint{
		conn:   conn,
		logger: logger,
		opts:   opts.withDefaults(),
	}
}

// LocalAddr returns the endpoint's bound local address.
func (e *Endpoint) LocalAddr() net.Addr { return e.conn.LocalAddr() }

// Close releases the underlying socket; any blocked read unwinds as an I/O
// error, as required by the cancellation model.
func (e *Endpoint) Close() error { return e.conn.Close() }

func (e *Endpoint) readOnce(deadline time.Time) (Frame, *net.UDPAddr, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.conn.SetReadDeadline(deadline); err != nil {
		return Frame{}, nil, err
	}
	buf := make([]byte, BufferSize)
	n, addr, err := e.conn.ReadFromUDP(buf)
	if err != nil {
		return Frame{}, nil, err
	}
	f, err := Decode(buf[:n])
	if err != nil {
		return Frame{}, addr, err
	}
	return f, addr, nil
}

func (e *Endpoint) write(f Frame, addr *net.UDPAddr) error {
	raw, err := Encode(f)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	_, err = e.conn.WriteToUDP(raw, addr)
	return err
}

func isTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

func sameAddr(a, b *net.UDPAddr) bool {
	if a == nil || b == nil {
		return false
	}
	return a.IP.Equal(b.IP) && a.Port == b.Port
}

// Accept polls for an inbound SYN and completes the responder half of the
// three-way handshake (acceptConnection). Only SYN frames are processed on
// this path; everything else is dropped as belonging to a session's data or
// initiator traffic. ctx cancellation and a ~10s overall wall-clock budget
// both surface as ErrTimeout/ctx.Err so the caller can re-enter its poll
// loop, per the bounded-wait requirement.
func (e *Endpoint) Accept(ctx context.Context) (*Session, error) {
	deadline := time.Now().Add(acceptWaitBudget)
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		if time.Now().After(deadline) {
			return nil, ErrTimeout
		}

		f, addr, err := e.readOnce(time.Now().Add(acceptPollTimeout))
		if err != nil {
			if isTimeout(err) {
				continue
			}
			if errors.Is(err, ErrMalformedHeader) || errors.Is(err, ErrTruncatedFrame) {
				continue
			}
			return nil, fmt.Errorf("missionlink: accept poll: %w", err)
		}
		if f.Flag != FlagSyn {
			continue // belongs to a data receiver or an initiator wait
		}

		peerID := f.SessionID
		synSeq := f.Seq
		ourSeq := uint32(acceptorInitialSeq)

		ok := false
		for attempt := 0; attempt <= e.opts.HandshakeRetries; attempt++ {
			if err := e.write(Frame{Flag: FlagSynAck, SessionID: peerID, Seq: ourSeq, Ack: synSeq, OpType: OpNone, Body: HandshakeBody()}, addr); err != nil {
				e.logger.Warn("missionlink: sending syn-ack failed", "error", err, "peer", addr)
				continue
			}
			rf, raddr, rerr := e.readOnce(time.Now().Add(e.opts.AckTimeout))
			if rerr == nil && sameAddr(raddr, addr) && rf.Flag == FlagAck && rf.Ack == ourSeq && rf.SessionID == peerID {
				ok = true
				break
			}
		}
		if !ok {
			e.logger.Warn("missionlink: handshake accept exhausted retries", "peer", addr, "id", peerID)
			continue
		}

		e.logger.Info("missionlink: session accepted", "peer", addr, "id", peerID)
		return &Session{
			ep:       e,
			peer:     addr,
			id:       peerID,
			localSeq: ourSeq,
			peerSeq:  synSeq,
			logger:   e.logger,
		}, nil
	}
}

// Connect performs the initiator half of the handshake (startConnection):
// a deterministic fixed initial seq, SYN, awaits SYN-ACK, sends ACK.
func (e *Endpoint) Connect(ctx context.Context, peer *net.UDPAddr, sessionID string) (*Session, error) {
	if len(sessionID) > idFieldWidth {
		return nil, ErrSessionIDTooLong
	}
	ourSeq := uint32(initiatorInitialSeq)

	for attempt := 0; attempt <= e.opts.HandshakeRetries; attempt++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		if err := e.write(Frame{Flag: FlagSyn, SessionID: sessionID, Seq: ourSeq, Ack: 0, OpType: OpNone, Body: HandshakeBody()}, peer); err != nil {
			return nil, fmt.Errorf("missionlink: sending syn: %w", err)
		}

		rf, raddr, rerr := e.readOnce(time.Now().Add(e.opts.AckTimeout))
		if rerr != nil || !sameAddr(raddr, peer) || rf.Flag != FlagSynAck || rf.Ack != ourSeq {
			continue
		}

		if err := e.write(Frame{Flag: FlagAck, SessionID: sessionID, Seq: ourSeq, Ack: rf.Seq, OpType: OpNone, Body: HandshakeBody()}, peer); err != nil {
			return nil, fmt.Errorf("missionlink: sending ack: %w", err)
		}

		e.logger.Info("missionlink: session connected", "peer", peer, "id", sessionID)
		return &Session{
			ep:       e,
			peer:     peer,
			id:       sessionID,
			localSeq: ourSeq,
			peerSeq:  rf.Seq,
			logger:   e.logger,
		}, nil
	}

	return nil, ErrTimeout
}
