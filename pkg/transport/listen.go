package transport

import (
	"crypto/tls"
	"fmt"
	"net"
)

// Listener accepts inbound framed connections.
type Listener struct {
	l   net.Listener
	cfg ConnConfig
}

// Listen starts accepting framed connections on the given address. A non-nil
// tlsConfig enables TLS.
func Listen(address string, tlsConfig *tls.Config, cfg ConnConfig) (*Listener, error) {
	var (
		l   net.Listener
		err error
	)
	if tlsConfig != nil {
		l, err = tls.Listen("tcp", address, tlsConfig)
	} else {
		l, err = net.Listen("tcp", address)
	}
	if err != nil {
		return nil, fmt.Errorf("listen failed: %w", err)
	}
	return &Listener{l: l, cfg: cfg}, nil
}

// Accept waits for the next inbound connection and wraps it.
func (l *Listener) Accept() (*Conn, error) {
	nc, err := l.l.Accept()
	if err != nil {
		return nil, fmt.Errorf("accept failed: %w", err)
	}
	return NewConn(nc, l.cfg), nil
}

// Addr returns the listener's network address.
func (l *Listener) Addr() net.Addr { return l.l.Addr() }

// Close stops the listener. Established connections are unaffected.
func (l *Listener) Close() error { return l.l.Close() }
