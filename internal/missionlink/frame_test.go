// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package missionlink

import (
	"bytes"
	"os"
	"testing"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	cases := []Frame{
		{Flag: FlagSyn, SessionID: "r1", Seq: 100, Ack: 0, OpType: OpNone, Body: HandshakeBody()},
		{Flag: FlagData, SessionID: "M01", Seq: 101, Ack: 500, OpType: OpTask, Body: []byte(`{"mission_id":"M01"}`)},
		{Flag: FlagAck, SessionID: "r1", Seq: 500, Ack: 101, OpType: OpNone, Body: SentinelBody()},
		{Flag: FlagFin, SessionID: "r1", Seq: 102, Ack: 500, OpType: OpNone, Body: []byte("Registered")},
	}

	for _, f := range cases {
		raw, err := Encode(f)
		if err != nil {
			t.Fatalf("Encode(%+v): %v", f, err)
		}
		if len(raw) < HeaderSize {
			t.Fatalf("encoded frame shorter than header: %d", len(raw))
		}
		got, err := Decode(raw)
		if err != nil {
			t.Fatalf("Decode: %v", err)
		}
		if got.Flag != f.Flag || got.SessionID != f.SessionID || got.Seq != f.Seq || got.Ack != f.Ack || got.OpType != f.OpType {
			t.Fatalf("round trip mismatch: got %+v, want %+v", got, f)
		}
		if !bytes.Equal(got.Body, f.Body) {
			t.Fatalf("body mismatch: got %q, want %q", got.Body, f.Body)
		}
	}
}

func TestEncodeRejectsOversizedSessionID(t *testing.T) {
	_, err := Encode(Frame{Flag: FlagSyn, SessionID: "rover-42", Seq: 100, OpType: OpNone})
	if err != ErrSessionIDTooLong {
		t.Fatalf("expected ErrSessionIDTooLong, got %v", err)
	}
}

func TestDecodeTruncatedFrame(t *testing.T) {
	_, err := Decode([]byte("too short"))
	if err != ErrTruncatedFrame {
		t.Fatalf("expected ErrTruncatedFrame, got %v", err)
	}
}

func TestSplitBoundary(t *testing.T) {
	exact := bytes.Repeat([]byte("a"), MaxPayload)
	chunks, err := Split(exact)
	if err != nil {
		t.Fatalf("Split: %v", err)
	}
	if len(chunks) != 1 {
		t.Fatalf("body of exactly MaxPayload bytes must yield 1 chunk, got %d", len(chunks))
	}

	overByOne := bytes.Repeat([]byte("a"), MaxPayload+1)
	chunks, err = Split(overByOne)
	if err != nil {
		t.Fatalf("Split: %v", err)
	}
	if len(chunks) != 2 {
		t.Fatalf("body one byte over MaxPayload must yield 2 chunks, got %d", len(chunks))
	}
	if len(chunks[0]) != MaxPayload || len(chunks[1]) != 1 {
		t.Fatalf("unexpected chunk sizes: %d, %d", len(chunks[0]), len(chunks[1]))
	}

	joined := append(append([]byte{}, chunks[0]...), chunks[1]...)
	if !bytes.Equal(joined, overByOne) {
		t.Fatalf("split chunks do not reassemble to the original body")
	}
}

func TestSplitFileBodyStreamsFilenameThenContent(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/snapshot.json"
	content := bytes.Repeat([]byte("x"), MaxPayload+10)
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	chunks, err := Split([]byte(path))
	if err != nil {
		t.Fatalf("Split: %v", err)
	}
	if len(chunks) != 3 {
		t.Fatalf("expected filename chunk + 2 content chunks, got %d", len(chunks))
	}
	if string(chunks[0]) != path {
		t.Fatalf("first chunk must carry the filename, got %q", chunks[0])
	}
	joined := append(append([]byte{}, chunks[1]...), chunks[2]...)
	if !bytes.Equal(joined, content) {
		t.Fatalf("remaining chunks do not reassemble to the file's content")
	}
}

func TestSplitFileBodyMissingFile(t *testing.T) {
	if _, err := Split([]byte("/no/such/path.json")); err == nil {
		t.Fatal("expected error for a nonexistent file body")
	}
}

func TestSplitFileBodyOversizedFilename(t *testing.T) {
	path := "/" + string(bytes.Repeat([]byte("a"), MaxPayload)) + ".json"
	if _, err := Split([]byte(path)); err == nil {
		t.Fatal("expected error for a filename exceeding max payload")
	}
}

func TestIsFileBody(t *testing.T) {
	if !IsFileBody([]byte("snapshot.json")) {
		t.Fatal("expected .json-suffixed body to be recognized as a file body")
	}
	if IsFileBody([]byte("snapshot.txt")) {
		t.Fatal("expected non-.json body to not be recognized as a file body")
	}
}

func TestStripSentinel(t *testing.T) {
	if got := StripSentinel([]byte("hello\x00")); string(got) != "hello" {
		t.Fatalf("expected sentinel stripped, got %q", got)
	}
	if got := StripSentinel([]byte("hello")); string(got) != "hello" {
		t.Fatalf("expected body unchanged, got %q", got)
	}
}

func TestTrimIDField(t *testing.T) {
	if got := trimIDField("r1 "); got != "r1" {
		t.Fatalf("expected trimmed id, got %q", got)
	}
}
