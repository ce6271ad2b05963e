package transport

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/vigil-proto/vigil-go/pkg/backoff"
)

func contextWithTimeout(t *testing.T) (context.Context, context.CancelFunc) {
	t.Helper()
	return context.WithTimeout(context.Background(), eventWait)
}

func TestDialRefused(t *testing.T) {
	// Grab a port and release it so the dial is refused.
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen failed: %v", err)
	}
	address := l.Addr().String()
	l.Close()

	ctx, cancel := contextWithTimeout(t)
	defer cancel()

	if _, err := Dial(ctx, address, DialConfig{}); err == nil {
		t.Fatal("expected dial to fail")
	}
}

func TestDialWithRetryHonorsContext(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen failed: %v", err)
	}
	address := l.Addr().String()
	l.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	b := backoff.NewWithConfig(backoff.Config{Initial: 10 * time.Millisecond, Jitter: 0})
	_, err = DialWithRetry(ctx, address, DialConfig{}, b)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline error, got %v", err)
	}
	if b.Attempts() == 0 {
		t.Error("expected at least one retry")
	}
}

func TestDialWithRetrySucceeds(t *testing.T) {
	l, err := Listen("127.0.0.1:0", nil, ConnConfig{})
	if err != nil {
		t.Fatalf("Listen failed: %v", err)
	}
	defer l.Close()
	go func() {
		conn, err := l.Accept()
		if err == nil {
			conn.Terminate()
		}
	}()

	ctx, cancel := contextWithTimeout(t)
	defer cancel()

	b := backoff.New()
	conn, err := DialWithRetry(ctx, l.Addr().String(), DialConfig{}, b)
	if err != nil {
		t.Fatalf("DialWithRetry failed: %v", err)
	}
	defer conn.Terminate()

	if b.Attempts() != 0 {
		t.Errorf("attempts = %d, want 0 after reset", b.Attempts())
	}
}
