// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package missionlink

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net"
	"testing"
	"time"
)

func newLoopbackEndpoint(t *testing.T) *Endpoint {
	t.Helper()
	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		t.Fatalf("ListenUDP: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewEndpoint(conn, logger, EndpointOptions{
		HandshakeRetries: 20,
		DataRetries:      20,
		AckTimeout:       50 * time.Millisecond,
	})
}

// TestFullExchangeRegistration drives a full handshake, a single-chunk
// request, and the FIN/ACK/FIN/ACK teardown carrying the acceptor's reply,
// mirroring the registration scenario.
func TestFullExchangeRegistration(t *testing.T) {
	acceptor := newLoopbackEndpoint(t)
	initiator := newLoopbackEndpoint(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	type acceptResult struct {
		opType byte
		body   []byte
		err    error
	}
	acceptDone := make(chan acceptResult, 1)
	go func() {
		sess, err := acceptor.Accept(ctx)
		if err != nil {
			acceptDone <- acceptResult{err: err}
			return
		}
		opType, body, err := sess.Receive(ctx)
		if err != nil {
			acceptDone <- acceptResult{err: err}
			return
		}
		if err := sess.Reply(ctx, []byte("Registered")); err != nil {
			acceptDone <- acceptResult{err: err}
			return
		}
		acceptDone <- acceptResult{opType: opType, body: body}
	}()

	peerAddr := acceptor.LocalAddr().(*net.UDPAddr)
	initSess, err := initiator.Connect(ctx, peerAddr, "r1")
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}

	reply, err := initSess.Send(ctx, OpRegister, []byte(`{"rover_id":"r1"}`))
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if string(reply) != "Registered" {
		t.Fatalf("unexpected reply: %q", reply)
	}

	select {
	case res := <-acceptDone:
		if res.err != nil {
			t.Fatalf("acceptor side failed: %v", res.err)
		}
		if res.opType != OpRegister {
			t.Fatalf("unexpected opType: %c", res.opType)
		}
		if string(res.body) != `{"rover_id":"r1"}` {
			t.Fatalf("unexpected received body: %q", res.body)
		}
	case <-ctx.Done():
		t.Fatal("acceptor side did not complete in time")
	}
}

// TestFullExchangeFragmented exercises a body large enough to require two
// data frames, confirming the receiver reassembles it exactly.
func TestFullExchangeFragmented(t *testing.T) {
	acceptor := newLoopbackEndpoint(t)
	initiator := newLoopbackEndpoint(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	body := bytes.Repeat([]byte("x"), MaxPayload+37)

	recvDone := make(chan []byte, 1)
	errDone := make(chan error, 1)
	go func() {
		sess, err := acceptor.Accept(ctx)
		if err != nil {
			errDone <- err
			return
		}
		_, got, err := sess.Receive(ctx)
		if err != nil {
			errDone <- err
			return
		}
		if err := sess.Reply(ctx, []byte("M01")); err != nil {
			errDone <- err
			return
		}
		recvDone <- got
	}()

	peerAddr := acceptor.LocalAddr().(*net.UDPAddr)
	sess, err := initiator.Connect(ctx, peerAddr, "r2")
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	reply, err := sess.Send(ctx, OpTask, body)
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if string(reply) != "M01" {
		t.Fatalf("unexpected reply: %q", reply)
	}

	select {
	case got := <-recvDone:
		if !bytes.Equal(got, body) {
			t.Fatalf("reassembled body mismatch: got %d bytes, want %d bytes", len(got), len(body))
		}
	case err := <-errDone:
		t.Fatalf("acceptor side failed: %v", err)
	case <-ctx.Done():
		t.Fatal("acceptor side did not complete in time")
	}
}
