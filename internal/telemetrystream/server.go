// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package telemetrystream

import (
	"context"
	"crypto/tls"
	"errors"
	"io"
	"log/slog"
	"net"
	"time"

	"github.com/nishisan-dev/rover-fleet/internal/telemetrystore"
)

// Server accepts one TCP connection per snapshot, spawning an independent
// worker per connection; there is no per-agent ordering, mirroring the
// concurrency model of the teacher's backup server.Run accept loop.
type Server struct {
	listener net.Listener
	sink     telemetrystore.Sink
	logger   *slog.Logger
	dscp     int
}

// NewServer binds addr and wraps it as a TelemetryStream server. When
// tlsConfig is non-nil, every accepted connection requires a verified
// rover client certificate before the length-prefix handshake begins. dscp
// is a parsed DSCP code point applied to each accepted socket (0 disables
// marking).
func NewServer(addr string, sink telemetrystore.Sink, logger *slog.Logger, tlsConfig *tls.Config, dscp int) (*Server, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	if tlsConfig != nil {
		ln = tls.NewListener(ln, tlsConfig)
	}
	return &Server{listener: ln, sink: sink, logger: logger.With("component", "telemetrystream_server"), dscp: dscp}, nil
}

// Addr returns the server's bound local address.
func (s *Server) Addr() net.Addr { return s.listener.Addr() }

// Run accepts connections until ctx is cancelled, at which point the
// listener is closed and any blocked Accept unwinds as an error.
func (s *Server) Run(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		s.listener.Close()
	}()

	consecutiveErrors := 0
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
			}
			consecutiveErrors++
			backoff := time.Duration(consecutiveErrors) * 100 * time.Millisecond
			if backoff > 5*time.Second {
				backoff = 5 * time.Second
			}
			s.logger.Warn("telemetrystream accept failed", "error", err, "backoff", backoff)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(backoff):
			}
			continue
		}
		consecutiveErrors = 0
		go s.serve(ctx, conn)
	}
}

func (s *Server) serve(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	if tcp, ok := underlyingTCPConn(conn); ok {
		if err := applyDSCP(tcp, s.dscp); err != nil {
			s.logger.Warn("applying dscp to accepted connection failed", "error", err, "peer", conn.RemoteAddr())
		}
	}

	lenBuf := make([]byte, lengthFieldWidth)
	if err := readExact(conn, lenBuf); err != nil {
		if !errors.Is(err, io.EOF) {
			s.logger.Warn("reading length prefix failed", "error", err, "peer", conn.RemoteAddr())
		}
		return
	}
	n, err := decodeLength(lenBuf)
	if err != nil {
		s.logger.Warn("invalid filename length", "error", err, "peer", conn.RemoteAddr())
		return
	}

	nameBuf := make([]byte, n)
	if err := readExact(conn, nameBuf); err != nil {
		s.logger.Warn("reading filename failed", "error", err, "peer", conn.RemoteAddr())
		return
	}
	filename := string(nameBuf)

	body, err := io.ReadAll(conn)
	if err != nil {
		s.logger.Warn("reading body failed", "error", err, "filename", filename, "peer", conn.RemoteAddr())
		return
	}

	roverID := ""
	if isTelemetrySnapshot(filename) {
		roverID = sniffRoverID(body)
	}

	if err := s.sink.Store(ctx, roverID, filename, body); err != nil {
		s.logger.Warn("storing snapshot failed", "filename", filename, "rover_id", roverID, "error", err)
		return
	}
	s.logger.Debug("snapshot stored", "filename", filename, "rover_id", roverID, "bytes", len(body))
}
