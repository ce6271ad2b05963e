package keepalive

import (
	"io"
	"log/slog"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vigil-proto/vigil-go/pkg/log"
)

// Removal reasons recorded in liveness events.
const (
	reasonRequested   = "requested"
	reasonClosed      = "closed"
	reasonErrored     = "errored"
	reasonNotOpen     = "not_open"
	reasonTimeout     = "timeout"
	reasonProbeFailed = "probe_failed"
	reasonShutdown    = "shutdown"
)

// clientState is the per-connection liveness state, owned exclusively by the
// manager's registry.
type clientState struct {
	conn Conn

	// lastAck is the time of the last received acknowledgment, or the
	// enrollment time if none has arrived yet.
	lastAck time.Time

	// bucket is the rotation slot this connection belongs to.
	// Assigned once at enrollment, never reassigned.
	bucket int

	// Event reactions registered on the connection, canceled exactly once
	// on removal. Order: pong, close, error.
	subs [3]Subscription
}

// Manager schedules liveness probes for a pool of tracked connections.
//
// All registry, bucket, and timer state is guarded by a single mutex; every
// operation applies its mutation fully inside one critical section and every
// removal path is idempotent. Capability calls that may re-enter the manager
// (SendPing, Terminate) are made outside the lock.
type Manager struct {
	cfg         Config
	bucketCount int
	tick        time.Duration

	logger *slog.Logger
	plog   log.Logger

	mu      sync.Mutex
	clients map[Conn]*clientState
	ring    *bucketRing

	// Timer controller state; see timers.go.
	phase        timerPhase
	startupTimer *time.Timer
	ticker       *time.Ticker
	tickStop     chan struct{}
	tickDone     chan struct{}

	// Randomness for bucket assignment and startup jitter. Guarded by mu;
	// replaceable in tests for deterministic scheduling.
	rng *rand.Rand

	// now is the clock source, replaceable in tests.
	now func() time.Time

	// Sweep counters.
	sweeps        atomic.Uint64
	probesSent    atomic.Uint64
	peerTimeouts  atomic.Uint64
	probeFailures atomic.Uint64
}

// Stats is a point-in-time snapshot of manager activity.
type Stats struct {
	// Tracked is the current number of tracked connections.
	Tracked int

	// BucketCount is the derived number of rotation buckets.
	BucketCount int

	// EffectiveTick is the derived sweep cadence.
	EffectiveTick time.Duration

	// Sweeps is the total number of completed bucket sweeps.
	Sweeps uint64

	// ProbesSent is the total number of successful probe sends.
	ProbesSent uint64

	// PeerTimeouts is the total number of acknowledgment timeouts.
	PeerTimeouts uint64

	// ProbeFailures is the total number of failed probe sends.
	ProbeFailures uint64
}

// NewManager creates a liveness manager from a validated configuration.
// It returns an error wrapping ErrInvalidConfig for invalid options.
func NewManager(cfg Config) (*Manager, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	plog := cfg.ProtocolLogger
	if plog == nil {
		plog = log.NoopLogger{}
	}

	count := cfg.BucketCount()

	return &Manager{
		cfg:         cfg,
		bucketCount: count,
		tick:        cfg.EffectiveTick(),
		logger:      logger,
		plog:        plog,
		clients:     make(map[Conn]*clientState),
		ring:        newBucketRing(count),
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())),
		now:         time.Now,
	}, nil
}

// AddClient enrolls a connection for liveness probing. Re-adding an
// already-tracked connection is a no-op. Enrolling the first connection
// starts the probe timers.
func (m *Manager) AddClient(conn Conn) {
	m.mu.Lock()
	if _, exists := m.clients[conn]; exists {
		m.mu.Unlock()
		return
	}

	bucket := m.rng.Intn(m.bucketCount)
	st := &clientState{
		conn:    conn,
		lastAck: m.now(),
		bucket:  bucket,
	}
	st.subs[0] = conn.OnPong(func() { m.handlePong(conn) })
	st.subs[1] = conn.OnClose(func() { m.remove(conn, false, reasonClosed) })
	st.subs[2] = conn.OnError(func(error) { m.remove(conn, true, reasonErrored) })

	m.clients[conn] = st
	m.ring.insert(conn, bucket)
	m.startTimersLocked()
	m.mu.Unlock()

	m.logger.Debug("client enrolled", "conn_id", connID(conn), "bucket", bucket)
	m.emitTracking(conn, "", "tracked", "")
}

// RemoveClient unenrolls a connection. Removing an untracked connection is a
// no-op. If terminate is true the connection is force-closed first;
// termination failures never block cleanup. Removing the last connection
// stops the probe timers.
func (m *Manager) RemoveClient(conn Conn, terminate bool) {
	m.remove(conn, terminate, reasonRequested)
}

// ClientCount returns the current number of tracked connections.
func (m *Manager) ClientCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.clients)
}

// Stats returns a snapshot of manager activity.
func (m *Manager) Stats() Stats {
	m.mu.Lock()
	tracked := len(m.clients)
	m.mu.Unlock()

	return Stats{
		Tracked:       tracked,
		BucketCount:   m.bucketCount,
		EffectiveTick: m.tick,
		Sweeps:        m.sweeps.Load(),
		ProbesSent:    m.probesSent.Load(),
		PeerTimeouts:  m.peerTimeouts.Load(),
		ProbeFailures: m.probeFailures.Load(),
	}
}

// Shutdown stops all timers and force-terminates and removes every tracked
// connection. It returns once the tick loop has exited.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	done := m.tickDone
	m.stopTimersLocked()
	conns := make([]Conn, 0, len(m.clients))
	for conn := range m.clients {
		conns = append(conns, conn)
	}
	m.mu.Unlock()

	for _, conn := range conns {
		m.remove(conn, true, reasonShutdown)
	}

	if done != nil {
		<-done
	}
	m.logger.Debug("manager shut down", "terminated", len(conns))
}

// remove is the single removal path shared by all lifecycle events.
// Termination happens before the registry lookup so a forced removal of an
// untracked connection still closes it, and so a connection that fires its
// close event synchronously from Terminate re-enters the manager safely.
func (m *Manager) remove(conn Conn, terminate bool, reason string) {
	if terminate {
		if err := conn.Terminate(); err != nil {
			// Termination failure must not block cleanup.
			m.logger.Debug("terminate failed", "conn_id", connID(conn), "error", err)
			m.emitError(conn, err.Error(), "terminate")
		}
	}

	m.mu.Lock()
	st, exists := m.clients[conn]
	if !exists {
		m.mu.Unlock()
		return
	}
	for _, sub := range st.subs {
		if sub != nil {
			sub.Cancel()
		}
	}
	m.ring.remove(conn, st.bucket)
	delete(m.clients, conn)
	if len(m.clients) == 0 {
		m.stopTimersLocked()
	}
	m.mu.Unlock()

	m.logger.Debug("client removed", "conn_id", connID(conn), "reason", reason, "terminated", terminate)
	m.emitTracking(conn, "tracked", "removed", reason)
}

// handlePong refreshes the acknowledgment deadline for a tracked connection.
// Acknowledgments for removed connections have no effect.
func (m *Manager) handlePong(conn Conn) {
	m.mu.Lock()
	st, exists := m.clients[conn]
	if exists {
		st.lastAck = m.now()
	}
	m.mu.Unlock()

	if exists {
		m.emitControl(conn, log.ControlMsgPong, log.DirectionIn)
	}
}

// sweep runs the liveness check over the bucket under the cursor, then
// advances the cursor. Invoked once per tick by the tick loop.
func (m *Manager) sweep() {
	now := m.now()

	m.mu.Lock()
	members := m.ring.current()
	m.mu.Unlock()

	for _, conn := range members {
		m.mu.Lock()
		st, exists := m.clients[conn]
		if !exists {
			// The member may have been removed through the normal path
			// after the snapshot was taken; that leaves no ring entry and
			// is not an inconsistency. A member still in the ring with no
			// backing registry state is stale membership: self-healing,
			// but indicates a latent bug if it ever fires.
			stale := m.ring.dropCurrent(conn)
			m.mu.Unlock()
			if stale {
				m.logger.Warn("dropped stale bucket member", "conn_id", connID(conn))
				m.emitError(conn, "stale bucket membership", "sweep")
			}
			continue
		}
		lastAck := st.lastAck
		m.mu.Unlock()

		if conn.ReadyState() != StateOpen {
			// Already closing or closed; no probe, no forced termination.
			m.remove(conn, false, reasonNotOpen)
			continue
		}

		if now.Sub(lastAck) > m.cfg.Timeout {
			// Strictly greater: silence of exactly Timeout is not a timeout.
			m.peerTimeouts.Add(1)
			m.logger.Info("peer timeout", "conn_id", connID(conn), "silence", now.Sub(lastAck))
			m.remove(conn, true, reasonTimeout)
			continue
		}

		if err := conn.SendPing(); err != nil {
			// A probe-send failure indicates a broken transport.
			m.probeFailures.Add(1)
			m.logger.Info("probe send failed", "conn_id", connID(conn), "error", err)
			m.emitError(conn, err.Error(), "probe")
			m.remove(conn, true, reasonProbeFailed)
			continue
		}
		m.probesSent.Add(1)
		m.emitControl(conn, log.ControlMsgPing, log.DirectionOut)
	}

	m.mu.Lock()
	m.ring.advance()
	m.mu.Unlock()
	m.sweeps.Add(1)
}

// emitTracking records a tracking state change in the protocol log.
func (m *Manager) emitTracking(conn Conn, oldState, newState, reason string) {
	m.plog.Log(log.Event{
		Timestamp:    m.now(),
		ConnectionID: connID(conn),
		Layer:        log.LayerLiveness,
		Category:     log.CategoryState,
		StateChange: &log.StateChangeEvent{
			Entity:   log.StateEntityTracking,
			OldState: oldState,
			NewState: newState,
			Reason:   reason,
		},
	})
}

// emitControl records a probe or acknowledgment in the protocol log.
func (m *Manager) emitControl(conn Conn, msgType log.ControlMsgType, dir log.Direction) {
	m.plog.Log(log.Event{
		Timestamp:    m.now(),
		ConnectionID: connID(conn),
		Direction:    dir,
		Layer:        log.LayerLiveness,
		Category:     log.CategoryControl,
		ControlMsg:   &log.ControlMsgEvent{Type: msgType},
	})
}

// emitError records a contained per-connection failure in the protocol log.
func (m *Manager) emitError(conn Conn, message, context string) {
	m.plog.Log(log.Event{
		Timestamp:    m.now(),
		ConnectionID: connID(conn),
		Layer:        log.LayerLiveness,
		Category:     log.CategoryError,
		Error: &log.ErrorEventData{
			Layer:   log.LayerLiveness,
			Message: message,
			Context: context,
		},
	})
}
