// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package telemetrystore

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestDiskSinkStoresUnderRoverSubdir(t *testing.T) {
	dir := t.TempDir()
	sink, err := NewDiskSink(dir, false)
	if err != nil {
		t.Fatalf("NewDiskSink: %v", err)
	}

	if err := sink.Store(context.Background(), "r1", "snap-1.json", []byte(`{"x":1}`)); err != nil {
		t.Fatalf("Store: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "r1", "snap-1.json"))
	if err != nil {
		t.Fatalf("reading stored file: %v", err)
	}
	if string(data) != `{"x":1}` {
		t.Fatalf("unexpected stored content: %q", data)
	}
}

func TestDiskSinkRejectsPathTraversal(t *testing.T) {
	dir := t.TempDir()
	sink, err := NewDiskSink(dir, false)
	if err != nil {
		t.Fatalf("NewDiskSink: %v", err)
	}
	if err := sink.Store(context.Background(), "../escape", "snap.json", []byte("x")); err == nil {
		t.Fatal("expected path traversal in rover_id to be rejected")
	}
	if err := sink.Store(context.Background(), "r1", "../../escape.json", []byte("x")); err == nil {
		t.Fatal("expected path traversal in filename to be rejected")
	}
}

func TestDiskSinkCompressesWhenEnabled(t *testing.T) {
	dir := t.TempDir()
	sink, err := NewDiskSink(dir, true)
	if err != nil {
		t.Fatalf("NewDiskSink: %v", err)
	}
	if err := sink.Store(context.Background(), "r1", "snap.json", []byte(`{"x":1}`)); err != nil {
		t.Fatalf("Store: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "r1", "snap.json.gz")); err != nil {
		t.Fatalf("expected compressed file on disk: %v", err)
	}
}
