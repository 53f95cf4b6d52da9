// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package missionlink

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"time"
)

// ErrSessionNotAtTeardown is returned by Reply when called before Receive
// has observed the initiator's FIN.
var ErrSessionNotAtTeardown = errors.New("missionlink: reply called before fin observed")

// recvWaitBudget bounds how long a single directional receive (one
// handshake having already bound the peer) waits for the next frame before
// giving up; it is the data-phase analogue of acceptWaitBudget.
const recvWaitBudget = 30 * time.Second

// Session is a transient MissionLink exchange bounded by a handshake and a
// teardown, carrying one logical message in each direction: the initiator's
// request (possibly fragmented) and the acceptor's reply, piggybacked on
// the four-way teardown. Exactly one of Send (initiator) or Receive+Reply
// (acceptor) is used per session, matching the role each side played in
// the handshake.
type Session struct {
	ep   *Endpoint
	peer *net.UDPAddr
	id   string // bound idMission: rejected on mismatch per invariant (iv)

	localSeq uint32 // last seq this side has used
	peerSeq  uint32 // last seq observed from the peer

	finSeq uint32 // peer's FIN seq, recorded by Receive for Reply to ack
	sawFin bool
	logger *slog.Logger
}

// Peer returns the session's bound remote address.
func (s *Session) Peer() *net.UDPAddr { return s.peer }

// SessionID returns the idMission bound to this session.
func (s *Session) SessionID() string { return s.id }

func (s *Session) ackFrame(ack uint32, body []byte) Frame {
	return Frame{Flag: FlagAck, SessionID: s.id, Seq: s.localSeq, Ack: ack, OpType: OpNone, Body: body}
}

// Send performs the initiator side of a full message exchange: it
// fragments body via Split, sends each fragment stop-and-wait, then emits
// FIN and collects the acceptor's reply — carried on the ACK that
// acknowledges the FIN — before completing the four-way teardown. It
// returns the acceptor's reply body. A body naming a ".json" file (per
// Split's payload dispatch rule) is streamed from disk rather than sent as
// literal bytes.
func (s *Session) Send(ctx context.Context, opType byte, body []byte) ([]byte, error) {
	chunks, err := Split(body)
	if err != nil {
		return nil, err
	}
	for _, chunk := range chunks {
		if err := ctxErr(ctx); err != nil {
			return nil, err
		}
		s.localSeq++
		if !s.sendChunkWithRetry(opType, chunk) {
			return nil, ErrTimeout
		}
	}

	s.localSeq++
	finSeq := s.localSeq
	var reply []byte
	gotReply := false
	for attempt := 0; attempt <= s.ep.opts.DataRetries; attempt++ {
		if err := ctxErr(ctx); err != nil {
			return nil, err
		}
		if err := s.ep.write(Frame{Flag: FlagFin, SessionID: s.id, Seq: finSeq, Ack: s.peerSeq, OpType: OpNone, Body: SentinelBody()}, s.peer); err != nil {
			s.logger.Warn("missionlink: sending fin failed", "error", err)
			continue
		}
		rf, addr, err := s.ep.readOnce(time.Now().Add(s.ep.opts.AckTimeout))
		if err != nil || !sameAddr(addr, s.peer) || rf.SessionID != s.id || rf.Flag != FlagAck || rf.Ack != finSeq {
			continue
		}
		reply = StripSentinel(rf.Body)
		gotReply = true
		break
	}
	if !gotReply {
		return nil, ErrTimeout
	}

	// Await the receiver's own FIN and ack it; teardown failure here is
	// best-effort — the reply has already been delivered.
	for attempt := 0; attempt <= s.ep.opts.DataRetries; attempt++ {
		rf, addr, err := s.ep.readOnce(time.Now().Add(s.ep.opts.AckTimeout))
		if err != nil {
			if isTimeout(err) {
				continue
			}
			break
		}
		if !sameAddr(addr, s.peer) || rf.SessionID != s.id || rf.Flag != FlagFin {
			continue
		}
		s.peerSeq = rf.Seq
		_ = s.ep.write(s.ackFrame(rf.Seq, SentinelBody()), s.peer)
		return reply, nil
	}

	s.logger.Warn("missionlink: teardown incomplete awaiting peer fin", "peer", s.peer, "id", s.id)
	return reply, nil
}

func (s *Session) sendChunkWithRetry(opType byte, chunk []byte) bool {
	for attempt := 0; attempt <= s.ep.opts.DataRetries; attempt++ {
		if err := s.ep.write(Frame{Flag: FlagData, SessionID: s.id, Seq: s.localSeq, Ack: s.peerSeq, OpType: opType, Body: chunk}, s.peer); err != nil {
			s.logger.Warn("missionlink: sending data chunk failed", "error", err)
			continue
		}
		rf, addr, err := s.ep.readOnce(time.Now().Add(s.ep.opts.AckTimeout))
		if err != nil || !sameAddr(addr, s.peer) || rf.SessionID != s.id || rf.Flag != FlagAck || rf.Ack != s.localSeq {
			continue
		}
		return true
	}
	return false
}

// Receive performs the acceptor side of the data phase: it reads data
// frames until the initiator's FIN, committing each payload one step
// behind its acknowledgment so a duplicate retransmission is never
// committed twice. It must be followed by exactly one call to Reply.
func (s *Session) Receive(ctx context.Context) (opType byte, body []byte, err error) {
	var pending []byte
	pendingValid := false
	var assembled []byte
	lastAckedSeq := s.peerSeq
	deadline := time.Now().Add(recvWaitBudget)

	for {
		if e := ctxErr(ctx); e != nil {
			return 0, nil, e
		}
		if time.Now().After(deadline) {
			return 0, nil, ErrTimeout
		}

		f, addr, rerr := s.ep.readOnce(time.Now().Add(s.ep.opts.AckTimeout))
		if rerr != nil {
			if isTimeout(rerr) {
				if pendingValid {
					_ = s.ep.write(s.ackFrame(lastAckedSeq, SentinelBody()), s.peer)
				}
				continue
			}
			continue // drop malformed frame, await retransmission
		}
		if !sameAddr(addr, s.peer) || f.SessionID != s.id {
			continue // invariant (iv): idMission bound on first frame
		}

		if f.Flag == FlagFin {
			if pendingValid {
				assembled = append(assembled, pending...)
				pendingValid = false
			}
			s.peerSeq = f.Seq
			s.finSeq = f.Seq
			s.sawFin = true
			return opType, StripSentinel(assembled), nil
		}
		if f.Flag != FlagData {
			continue
		}

		if pendingValid && f.Seq == lastAckedSeq {
			_ = s.ep.write(s.ackFrame(lastAckedSeq, SentinelBody()), s.peer)
			continue
		}

		if pendingValid {
			assembled = append(assembled, pending...)
		}
		pending = f.Body
		pendingValid = true
		opType = f.OpType
		lastAckedSeq = f.Seq
		s.peerSeq = f.Seq
		_ = s.ep.write(s.ackFrame(f.Seq, SentinelBody()), s.peer)
	}
}

// Reply completes the acceptor side after Receive observed FIN: it sends
// the caller's reply piggybacked on the ACK of the initiator's FIN, then
// emits its own FIN and awaits the initiator's final ACK.
func (s *Session) Reply(ctx context.Context, replyBody []byte) error {
	if !s.sawFin {
		return ErrSessionNotAtTeardown
	}

	for attempt := 0; attempt <= s.ep.opts.DataRetries; attempt++ {
		if e := ctxErr(ctx); e != nil {
			return e
		}
		if err := s.ep.write(s.ackFrame(s.finSeq, replyBody), s.peer); err != nil {
			s.logger.Warn("missionlink: sending fin ack with reply failed", "error", err)
		}

		s.localSeq++
		ourFinSeq := s.localSeq
		if err := s.ep.write(Frame{Flag: FlagFin, SessionID: s.id, Seq: ourFinSeq, Ack: s.finSeq, OpType: OpNone, Body: SentinelBody()}, s.peer); err != nil {
			s.logger.Warn("missionlink: sending own fin failed", "error", err)
			s.localSeq--
			continue
		}

		rf, addr, rerr := s.ep.readOnce(time.Now().Add(s.ep.opts.AckTimeout))
		if rerr == nil && sameAddr(addr, s.peer) && rf.SessionID == s.id {
			if rf.Flag == FlagAck && rf.Ack == ourFinSeq {
				return nil
			}
			if rf.Flag == FlagFin && rf.Seq == s.finSeq {
				// Initiator retransmitted its FIN: our ack-with-reply was
				// lost. Loop again to resend it alongside our own FIN.
				s.localSeq--
				continue
			}
		}
	}

	s.logger.Warn("missionlink: teardown incomplete awaiting final ack", "peer", s.peer, "id", s.id)
	return nil
}

func ctxErr(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return nil
	}
}
