// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package telemetrystore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/pgzip"
)

// DiskSink persists snapshots under <baseDir>/<rover_id>/<filename>,
// writing through a temp-file-then-rename sequence so a reader never
// observes a partially-written snapshot. Grounded in the teacher's
// AtomicWriter (internal/server/storage.go), adapted from the backup
// tar.gz naming scheme to telemetry's caller-supplied filenames.
type DiskSink struct {
	baseDir  string
	compress bool
}

// NewDiskSink constructs a DiskSink rooted at baseDir, creating it if
// necessary.
func NewDiskSink(baseDir string, compress bool) (*DiskSink, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("creating telemetry store root: %w", err)
	}
	return &DiskSink{baseDir: baseDir, compress: compress}, nil
}

// Store writes body to <baseDir>/<roverID>/<filename> (or <baseDir>/<filename>
// when roverID is empty, i.e. the body did not carry one) atomically.
func (s *DiskSink) Store(ctx context.Context, roverID, filename string, body []byte) error {
	if err := validatePathComponent(filename, "filename"); err != nil {
		return err
	}
	dir := s.baseDir
	if roverID != "" {
		if err := validatePathComponent(roverID, "rover_id"); err != nil {
			return err
		}
		dir = filepath.Join(s.baseDir, roverID)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating rover telemetry directory: %w", err)
	}

	finalName := filename
	if s.compress {
		finalName += ".gz"
	}
	finalPath := filepath.Join(dir, finalName)
	if err := validatePathInBaseDir(s.baseDir, finalPath); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, "telemetry-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if werr := s.writeBody(tmp, body); werr != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return werr
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing temp file: %w", err)
	}

	if err := os.Rename(tmpPath, finalPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("renaming temp to final: %w", err)
	}
	return nil
}

func (s *DiskSink) writeBody(w io.Writer, body []byte) error {
	if !s.compress {
		_, err := w.Write(body)
		return err
	}
	gz := pgzip.NewWriter(w)
	if _, err := io.Copy(gz, bytes.NewReader(body)); err != nil {
		gz.Close()
		return fmt.Errorf("compressing telemetry body: %w", err)
	}
	return gz.Close()
}
