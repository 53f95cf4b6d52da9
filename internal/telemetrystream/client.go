// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package telemetrystream

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"time"
)

// Client sends one snapshot per call over a fresh TCP connection.
type Client struct {
	addr          string
	dialer        net.Dialer
	tlsConfig     *tls.Config
	dscp          int
	bandwidthCap  int64
}

// NewClient targets addr with dialTimeout bounding connection setup.
// tlsConfig, if non-nil, upgrades every connection to mutual TLS. dscp is a
// parsed DSCP code point (0 disables marking); bandwidthCapBps caps upload
// throughput (0 disables throttling).
func NewClient(addr string, dialTimeout time.Duration, tlsConfig *tls.Config, dscp int, bandwidthCapBps int64) *Client {
	return &Client{
		addr:         addr,
		dialer:       net.Dialer{Timeout: dialTimeout},
		tlsConfig:    tlsConfig,
		dscp:         dscp,
		bandwidthCap: bandwidthCapBps,
	}
}

// Send opens a fresh connection, writes the 4-digit length prefix, the
// filename, and body in BufferSize-sized writes, then half-closes so the
// server's io.ReadAll observes EOF.
func (c *Client) Send(filename string, body []byte) error {
	conn, err := c.dial()
	if err != nil {
		return fmt.Errorf("telemetrystream: dial: %w", err)
	}
	defer conn.Close()

	if tcp, ok := underlyingTCPConn(conn); ok {
		if err := applyDSCP(tcp, c.dscp); err != nil {
			return fmt.Errorf("telemetrystream: applying dscp: %w", err)
		}
	}

	var w io.Writer = conn
	w = newThrottledWriter(context.Background(), w, c.bandwidthCap)

	lenField, err := encodeLength(len(filename))
	if err != nil {
		return err
	}
	if _, err := w.Write([]byte(lenField)); err != nil {
		return fmt.Errorf("telemetrystream: writing length prefix: %w", err)
	}
	if _, err := w.Write([]byte(filename)); err != nil {
		return fmt.Errorf("telemetrystream: writing filename: %w", err)
	}

	for off := 0; off < len(body); off += BufferSize {
		end := off + BufferSize
		if end > len(body) {
			end = len(body)
		}
		if _, err := w.Write(body[off:end]); err != nil {
			return fmt.Errorf("telemetrystream: writing body: %w", err)
		}
	}

	if tcp, ok := underlyingTCPConn(conn); ok {
		return tcp.CloseWrite()
	}
	return nil
}

func (c *Client) dial() (net.Conn, error) {
	if c.tlsConfig != nil {
		return tls.DialWithDialer(&c.dialer, "tcp", c.addr, c.tlsConfig)
	}
	return c.dialer.Dial("tcp", c.addr)
}

// underlyingTCPConn unwraps a *tls.Conn to the *net.TCPConn it wraps, since
// DSCP marking and half-close both need the raw socket.
func underlyingTCPConn(conn net.Conn) (*net.TCPConn, bool) {
	if tlsConn, ok := conn.(*tls.Conn); ok {
		conn = tlsConn.NetConn()
	}
	tcp, ok := conn.(*net.TCPConn)
	return tcp, ok
}
