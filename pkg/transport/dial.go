package transport

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"time"

	"github.com/vigil-proto/vigil-go/pkg/backoff"
)

// DialConfig configures outbound connections.
type DialConfig struct {
	ConnConfig

	// TLSConfig enables TLS when set.
	TLSConfig *tls.Config
}

// Dial establishes a framed connection to the given address.
func Dial(ctx context.Context, address string, cfg DialConfig) (*Conn, error) {
	dialer := &net.Dialer{}
	nc, err := dialer.DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, fmt.Errorf("dial failed: %w", err)
	}

	if cfg.TLSConfig != nil {
		tlsConn := tls.Client(nc, cfg.TLSConfig)
		if err := tlsConn.HandshakeContext(ctx); err != nil {
			nc.Close()
			return nil, fmt.Errorf("TLS handshake failed: %w", err)
		}
		nc = tlsConn
	}

	return NewConn(nc, cfg.ConnConfig), nil
}

// DialWithRetry dials until it succeeds or the context is canceled, waiting
// out an exponential backoff between attempts. A nil backoff selects the
// default redial parameters.
func DialWithRetry(ctx context.Context, address string, cfg DialConfig, b *backoff.Backoff) (*Conn, error) {
	if b == nil {
		b = backoff.New()
	}

	for {
		conn, err := Dial(ctx, address, cfg)
		if err == nil {
			b.Reset()
			return conn, nil
		}

		delay := b.Next()
		if cfg.Logger != nil {
			cfg.Logger.Debug("dial failed, retrying", "address", address, "delay", delay, "attempt", b.Attempts(), "error", err)
		}

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, fmt.Errorf("dial retry aborted: %w", ctx.Err())
		}
	}
}
