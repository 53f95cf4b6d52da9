// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package telemetrystream

import (
	"context"
	"io"

	"golang.org/x/time/rate"
)

// maxBurstSize bounds the token bucket so a single telemetry snapshot
// cannot blow through the configured rate in one burst.
const maxBurstSize = 256 * 1024

// throttledWriter is an io.Writer with token-bucket rate limiting, used to
// cap the bandwidth a rover spends uploading telemetry snapshots.
type throttledWriter struct {
	w       io.Writer
	limiter *rate.Limiter
	ctx     context.Context
}

// newThrottledWriter wraps w with a bytesPerSec rate limit. bytesPerSec<=0
// disables throttling and returns w unchanged.
func newThrottledWriter(ctx context.Context, w io.Writer, bytesPerSec int64) io.Writer {
	if bytesPerSec <= 0 {
		return w
	}

	burst := int(bytesPerSec)
	if burst > maxBurstSize {
		burst = maxBurstSize
	}

	return &throttledWriter{
		w:       w,
		limiter: rate.NewLimiter(rate.Limit(bytesPerSec), burst),
		ctx:     ctx,
	}
}

func (t *throttledWriter) Write(p []byte) (int, error) {
	if err := t.limiter.WaitN(t.ctx, len(p)); err != nil {
		return 0, err
	}
	return t.w.Write(p)
}
