// Package keepalive implements a bucketed liveness-probing scheduler for a
// pool of long-lived bidirectional connections.
//
// The Manager periodically sends a probe ("ping") to each tracked connection,
// expects an acknowledgment ("pong") within a bounded window, and force-closes
// any connection that fails to acknowledge in time, errors out, or reports
// itself closed.
//
// # Scheduling
//
// Instead of one timer per connection, tracked connections are partitioned
// into a fixed number of rotation buckets. A single periodic tick sweeps
// exactly one bucket, so per-tick work is O(n/buckets) while every connection
// is still swept once per full rotation (approximately Interval):
//
//	┌───┐
//	│ 0 │◄── cursor (swept this tick)
//	├───┤
//	│ 1 │──► {conn, conn, ...}
//	├───┤
//	│ 2 │──► {conn}
//	└───┘
//
// Timers start lazily when the first connection is enrolled, after a
// randomized startup delay that desynchronizes probe storms across manager
// instances starting together, and stop when the last connection is removed.
//
// # Connections
//
// The Manager never owns connection lifetimes. It operates through the Conn
// capability contract: probe send, force terminate, ready-state inspection,
// and three individually revocable event subscriptions (pong, close, error).
// See package transport for a reference implementation.
package keepalive
