// Package transport provides the framed byte-stream transport that vigil
// probes for liveness.
//
// The transport layer handles:
//   - Length-prefixed message framing
//   - CBOR control messages (ping/pong/close)
//   - Connection state management
//   - Optional TLS
//
// # Protocol Stack
//
//	┌────────────────────────────────┐
//	│   Application payloads         │
//	├────────────────────────────────┤
//	│   CBOR control messages        │
//	├────────────────────────────────┤
//	│   Length-Prefix Framing (4B)   │
//	├────────────────────────────────┤
//	│   TLS (optional)               │
//	├────────────────────────────────┤
//	│           TCP                  │
//	└────────────────────────────────┘
//
// # Liveness
//
// A Conn satisfies the capability contract of the keepalive scheduler:
// inbound pings are acknowledged automatically, pong arrivals are surfaced
// through OnPong, and closure and read failures are surfaced through OnClose
// and OnError. Hand an established Conn to a keepalive.Manager to have it
// probed and reaped.
package transport
