// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package telemetrystream

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/nishisan-dev/rover-fleet/internal/telemetrystore"
)

func TestClientServerRoundTrip(t *testing.T) {
	dir := t.TempDir()
	sink, err := telemetrystore.NewDiskSink(dir, false)
	if err != nil {
		t.Fatalf("NewDiskSink: %v", err)
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	srv, err := NewServer("127.0.0.1:0", sink, logger, nil, 0)
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go srv.Run(ctx)

	client := NewClient(srv.Addr().String(), 2*time.Second, nil, 0, 0)
	body := []byte(`{"rover_id":"r7","position":{"x":1,"y":2,"z":0},"operational_status":"nominal"}`)
	if err := client.Send("snap-2026.json", body); err != nil {
		t.Fatalf("Send: %v", err)
	}

	// Give the server goroutine a moment to finish the write-then-rename.
	deadline := time.Now().Add(2 * time.Second)
	path := filepath.Join(dir, "r7", "snap-2026.json")
	for time.Now().Before(deadline) {
		if _, err := os.Stat(path); err == nil {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("expected snapshot relocated under rover_id subdir: %v", err)
	}
	if string(data) != string(body) {
		t.Fatalf("body mismatch: got %q", data)
	}
}

func TestEncodeLengthRejectsOutOfRange(t *testing.T) {
	if _, err := encodeLength(0); err == nil {
		t.Fatal("expected zero-length filename to be rejected")
	}
	if _, err := encodeLength(256); err == nil {
		t.Fatal("expected filename length > 255 to be rejected")
	}
}

func TestDecodeLengthRejectsMalformed(t *testing.T) {
	if _, err := decodeLength([]byte("abcd")); err == nil {
		t.Fatal("expected non-numeric length prefix to be rejected")
	}
	if _, err := decodeLength([]byte("123")); err == nil {
		t.Fatal("expected short length prefix to be rejected")
	}
}

func TestSniffRoverIDFallsBackToEmpty(t *testing.T) {
	if got := sniffRoverID([]byte("not json")); got != "" {
		t.Fatalf("expected empty rover id for non-JSON body, got %q", got)
	}
	if got := sniffRoverID([]byte(`{"rover_id":"r9"}`)); got != "r9" {
		t.Fatalf("expected r9, got %q", got)
	}
}
