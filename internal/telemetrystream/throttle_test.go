// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package telemetrystream

import (
	"bytes"
	"context"
	"testing"
)

func TestNewThrottledWriterBypassWhenDisabled(t *testing.T) {
	var buf bytes.Buffer
	w := newThrottledWriter(context.Background(), &buf, 0)
	if _, ok := w.(*throttledWriter); ok {
		t.Fatal("expected bandwidthCap<=0 to bypass throttling")
	}
}

func TestThrottledWriterWritesThroughEventually(t *testing.T) {
	var buf bytes.Buffer
	w := newThrottledWriter(context.Background(), &buf, 1024*1024)
	n, err := w.Write([]byte("hello"))
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if n != 5 || buf.String() != "hello" {
		t.Fatalf("unexpected write result n=%d buf=%q", n, buf.String())
	}
}
