package keepalive

import "fmt"

// ReadyState describes the transport-reported state of a connection.
// The scheduler only distinguishes StateOpen from everything else.
type ReadyState uint8

const (
	// StateOpen indicates an active connection that can be probed.
	StateOpen ReadyState = iota

	// StateClosing indicates a graceful close in progress.
	StateClosing

	// StateClosed indicates a closed connection.
	StateClosed
)

// String returns the ready-state name.
func (s ReadyState) String() string {
	switch s {
	case StateOpen:
		return "OPEN"
	case StateClosing:
		return "CLOSING"
	case StateClosed:
		return "CLOSED"
	default:
		return "UNKNOWN"
	}
}

// Subscription is a revocable event registration on a connection.
// Cancel must remove exactly the callback this subscription was created for,
// never other subscribers, and must be safe to call more than once.
type Subscription interface {
	Cancel()
}

// Conn is the capability contract a connection must expose to be tracked.
// The transport owns the connection's lifetime; the scheduler only holds a
// non-owning reference.
//
// Event callbacks may be invoked synchronously by the connection (for
// example, Terminate may fire the close callback before returning).
// The Manager tolerates this; other consumers should too.
type Conn interface {
	// ReadyState reports the transport-level connection state.
	ReadyState() ReadyState

	// SendPing sends a liveness probe. A failure indicates a broken
	// transport rather than a graceful close.
	SendPing() error

	// Terminate force-closes the connection. On success the ready-state
	// transitions away from StateOpen.
	Terminate() error

	// OnPong registers a callback for probe acknowledgments.
	OnPong(fn func()) Subscription

	// OnClose registers a callback for connection close.
	OnClose(fn func()) Subscription

	// OnError registers a callback for connection errors.
	OnError(fn func(err error)) Subscription
}

// connID returns a stable identifier for log correlation. Connections may
// optionally expose an ID; anything else falls back to its pointer identity.
func connID(conn Conn) string {
	if ider, ok := conn.(interface{ ID() string }); ok {
		return ider.ID()
	}
	return fmt.Sprintf("%p", conn)
}
