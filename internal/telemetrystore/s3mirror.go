// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package telemetrystore

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// s3PutObject is the subset of *s3.Client exercised here, narrowed for
// testability.
type s3PutObject interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Mirror is an off-box durability mirror: every Store call is also
// uploaded to a configured S3 bucket/prefix. It never blocks the mandatory
// disk write it wraps — failures are logged, not propagated, so a mirror
// outage cannot stall telemetry ingestion.
type S3Mirror struct {
	next   Sink
	client s3PutObject
	bucket string
	prefix string
	logger *slog.Logger
}

// NewS3Mirror wraps next (normally a *DiskSink) with an S3 upload using the
// default AWS credential/region resolution chain, pinned to region if set.
func NewS3Mirror(ctx context.Context, next Sink, bucket, prefix, region string, logger *slog.Logger) (*S3Mirror, error) {
	optFns := []func(*awsconfig.LoadOptions) error{}
	if region != "" {
		optFns = append(optFns, awsconfig.WithRegion(region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, optFns...)
	if err != nil {
		return nil, fmt.Errorf("loading aws config for s3 mirror: %w", err)
	}
	return &S3Mirror{
		next:   next,
		client: s3.NewFromConfig(cfg),
		bucket: bucket,
		prefix: prefix,
		logger: logger.With("component", "s3_mirror", "bucket", bucket),
	}, nil
}

// Store writes through to the wrapped sink first (the mandatory contract),
// then best-effort mirrors the same bytes to S3.
func (m *S3Mirror) Store(ctx context.Context, roverID, filename string, body []byte) error {
	if err := m.next.Store(ctx, roverID, filename, body); err != nil {
		return err
	}

	key := path.Join(m.prefix, roverID, filename)
	_, err := m.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(m.bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(body),
	})
	if err != nil {
		m.logger.Warn("s3 mirror upload failed", "key", key, "error", err)
	}
	return nil
}
