// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

// Package telemetrystore persists telemetry snapshots received over
// TelemetryStream under a <storeRoot>/<rover_id>/<filename> layout, with an
// optional off-box mirror.
package telemetrystore

import "context"

// Sink receives one already-named telemetry snapshot body. RoverID is the
// relocated subdirectory (empty if the body did not carry one); Filename is
// the name reported over TelemetryStream.
type Sink interface {
	Store(ctx context.Context, roverID, filename string, body []byte) error
}
