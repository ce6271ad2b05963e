package transport

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/vigil-proto/vigil-go/pkg/keepalive"
	"github.com/vigil-proto/vigil-go/pkg/log"
)

// ErrConnClosed indicates an operation on a connection that is no longer
// open.
var ErrConnClosed = errors.New("connection closed")

// ConnConfig configures a framed connection.
type ConnConfig struct {
	// MaxMessageSize is the maximum payload size (default: 64 KB).
	MaxMessageSize uint32

	// OnMessage receives application payloads. Control messages are
	// consumed by the connection and never reach this callback. If nil,
	// application payloads are discarded.
	OnMessage func(payload []byte)

	// Logger is the optional operational logger. If nil, logging is
	// disabled.
	Logger *slog.Logger

	// ProtocolLogger optionally captures frames and control messages.
	// If nil, capture is disabled.
	ProtocolLogger log.Logger
}

// Conn is a framed, control-message-aware connection over a byte stream.
// It satisfies the capability contract the liveness scheduler tracks.
//
// The connection owns one read loop goroutine; all writes go through the
// serialized frame writer. Event handlers are dispatched without any
// connection lock held, so handlers may call back into the connection.
type Conn struct {
	id     string
	cfg    ConnConfig
	logger *slog.Logger
	plog   log.Logger

	netConn net.Conn
	framer  *Framer

	state   atomic.Int32
	pingSeq atomic.Uint32

	closeOnce sync.Once
	closeErr  error
	readDone  chan struct{}

	emu           sync.Mutex
	nextSub       int
	pongHandlers  map[int]func()
	closeHandlers map[int]func()
	errorHandlers map[int]func(error)
}

var _ keepalive.Conn = (*Conn)(nil)

// NewConn wraps an established byte stream in a framed connection and starts
// its read loop. The connection assumes ownership of nc.
func NewConn(nc net.Conn, cfg ConnConfig) *Conn {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	plog := cfg.ProtocolLogger
	if plog == nil {
		plog = log.NoopLogger{}
	}

	c := &Conn{
		id:            uuid.NewString(),
		cfg:           cfg,
		logger:        logger,
		plog:          plog,
		netConn:       nc,
		framer:        NewFramer(nc, cfg.MaxMessageSize),
		readDone:      make(chan struct{}),
		pongHandlers:  make(map[int]func()),
		closeHandlers: make(map[int]func()),
		errorHandlers: make(map[int]func(error)),
	}
	c.state.Store(int32(keepalive.StateOpen))
	c.framer.SetLogger(cfg.ProtocolLogger, c.id)

	c.emitConnState("", "open", "")
	go c.readLoop()
	return c
}

// ID returns the connection's unique identifier.
func (c *Conn) ID() string { return c.id }

// ReadyState reports the connection state.
func (c *Conn) ReadyState() keepalive.ReadyState {
	return keepalive.ReadyState(c.state.Load())
}

// Done returns a channel closed when the read loop has exited.
func (c *Conn) Done() <-chan struct{} { return c.readDone }

// LocalAddr returns the local network address.
func (c *Conn) LocalAddr() net.Addr { return c.netConn.LocalAddr() }

// RemoteAddr returns the remote network address.
func (c *Conn) RemoteAddr() net.Addr { return c.netConn.RemoteAddr() }

// Send sends an application payload.
func (c *Conn) Send(payload []byte) error {
	if c.ReadyState() != keepalive.StateOpen {
		return ErrConnClosed
	}
	return c.framer.WriteFrame(payload)
}

// SendPing sends a liveness probe.
func (c *Conn) SendPing() error {
	seq := c.pingSeq.Add(1)
	if err := c.sendControl(ControlPing, seq); err != nil {
		return fmt.Errorf("failed to send ping: %w", err)
	}
	return nil
}

// Close announces a graceful close to the peer and tears the connection
// down. Safe to call on an already-closed connection.
func (c *Conn) Close() error {
	if c.state.CompareAndSwap(int32(keepalive.StateOpen), int32(keepalive.StateClosing)) {
		// Best effort; the peer may already be gone.
		if err := c.sendControl(ControlClose, 0); err != nil {
			c.logger.Debug("close announcement failed", "conn_id", c.id, "error", err)
		}
	}
	return c.shutdown("local_close")
}

// Terminate force-closes the connection without a close announcement.
func (c *Conn) Terminate() error {
	return c.shutdown("terminated")
}

// OnPong registers a callback for probe acknowledgments.
func (c *Conn) OnPong(fn func()) keepalive.Subscription {
	c.emu.Lock()
	defer c.emu.Unlock()
	id := c.nextSub
	c.nextSub++
	c.pongHandlers[id] = fn
	return &subscription{cancel: func() {
		c.emu.Lock()
		delete(c.pongHandlers, id)
		c.emu.Unlock()
	}}
}

// OnClose registers a callback invoked once when the connection closes.
func (c *Conn) OnClose(fn func()) keepalive.Subscription {
	c.emu.Lock()
	defer c.emu.Unlock()
	id := c.nextSub
	c.nextSub++
	c.closeHandlers[id] = fn
	return &subscription{cancel: func() {
		c.emu.Lock()
		delete(c.closeHandlers, id)
		c.emu.Unlock()
	}}
}

// OnError registers a callback for read failures on an open connection.
func (c *Conn) OnError(fn func(err error)) keepalive.Subscription {
	c.emu.Lock()
	defer c.emu.Unlock()
	id := c.nextSub
	c.nextSub++
	c.errorHandlers[id] = fn
	return &subscription{cancel: func() {
		c.emu.Lock()
		delete(c.errorHandlers, id)
		c.emu.Unlock()
	}}
}

// shutdown closes the underlying stream and fires the close event exactly
// once.
func (c *Conn) shutdown(reason string) error {
	c.closeOnce.Do(func() {
		c.state.Store(int32(keepalive.StateClosed))
		c.closeErr = c.netConn.Close()
		c.logger.Debug("connection closed", "conn_id", c.id, "reason", reason)
		c.emitConnState("open", "closed", reason)

		c.emu.Lock()
		handlers := make([]func(), 0, len(c.closeHandlers))
		for _, fn := range c.closeHandlers {
			handlers = append(handlers, fn)
		}
		c.emu.Unlock()
		for _, fn := range handlers {
			fn()
		}
	})
	return c.closeErr
}

// readLoop reads frames until the stream fails or closes, dispatching
// control messages and application payloads.
func (c *Conn) readLoop() {
	defer close(c.readDone)

	for {
		payload, err := c.framer.ReadFrame()
		if err != nil {
			if c.ReadyState() != keepalive.StateOpen {
				// Local close already in progress.
				c.shutdown("local_close")
				return
			}
			if err == io.EOF || errors.Is(err, ErrFrameTruncated) || errors.Is(err, net.ErrClosed) {
				// Peer went away without a close announcement.
				c.shutdown("peer_gone")
				return
			}
			c.logger.Debug("read failed", "conn_id", c.id, "error", err)
			c.emitError(err)
			c.dispatchError(err)
			c.shutdown("read_error")
			return
		}

		if ctrl, err := DecodeControlMessage(payload); err == nil {
			c.handleControl(ctrl)
			continue
		}

		if c.cfg.OnMessage != nil {
			c.cfg.OnMessage(payload)
		}
	}
}

func (c *Conn) handleControl(msg *ControlMessage) {
	c.emitControl(msg.Type, log.DirectionIn)

	switch msg.Type {
	case ControlPing:
		// Echo the probe's sequence number back.
		if err := c.sendControl(ControlPong, msg.Sequence); err != nil {
			c.logger.Debug("pong failed", "conn_id", c.id, "error", err)
		}

	case ControlPong:
		c.emu.Lock()
		handlers := make([]func(), 0, len(c.pongHandlers))
		for _, fn := range c.pongHandlers {
			handlers = append(handlers, fn)
		}
		c.emu.Unlock()
		for _, fn := range handlers {
			fn()
		}

	case ControlClose:
		// Acknowledge the peer's close unless we announced one ourselves.
		if c.state.CompareAndSwap(int32(keepalive.StateOpen), int32(keepalive.StateClosing)) {
			if err := c.sendControl(ControlClose, 0); err != nil {
				c.logger.Debug("close acknowledgment failed", "conn_id", c.id, "error", err)
			}
		}
		c.shutdown("peer_close")
	}
}

func (c *Conn) sendControl(msgType ControlType, seq uint32) error {
	if c.ReadyState() == keepalive.StateClosed {
		return ErrConnClosed
	}
	data, err := EncodeControlMessage(&ControlMessage{Type: msgType, Sequence: seq})
	if err != nil {
		return fmt.Errorf("failed to encode control message: %w", err)
	}
	if err := c.framer.WriteFrame(data); err != nil {
		return err
	}
	c.emitControl(msgType, log.DirectionOut)
	return nil
}

func (c *Conn) dispatchError(err error) {
	c.emu.Lock()
	handlers := make([]func(error), 0, len(c.errorHandlers))
	for _, fn := range c.errorHandlers {
		handlers = append(handlers, fn)
	}
	c.emu.Unlock()
	for _, fn := range handlers {
		fn(err)
	}
}

func (c *Conn) emitControl(msgType ControlType, dir log.Direction) {
	var t log.ControlMsgType
	switch msgType {
	case ControlPing:
		t = log.ControlMsgPing
	case ControlPong:
		t = log.ControlMsgPong
	case ControlClose:
		t = log.ControlMsgClose
	}
	c.plog.Log(log.Event{
		Timestamp:    time.Now(),
		ConnectionID: c.id,
		Direction:    dir,
		Layer:        log.LayerTransport,
		Category:     log.CategoryControl,
		RemoteAddr:   c.netConn.RemoteAddr().String(),
		ControlMsg:   &log.ControlMsgEvent{Type: t},
	})
}

func (c *Conn) emitConnState(oldState, newState, reason string) {
	c.plog.Log(log.Event{
		Timestamp:    time.Now(),
		ConnectionID: c.id,
		Layer:        log.LayerTransport,
		Category:     log.CategoryState,
		RemoteAddr:   c.netConn.RemoteAddr().String(),
		StateChange: &log.StateChangeEvent{
			Entity:   log.StateEntityConnection,
			OldState: oldState,
			NewState: newState,
			Reason:   reason,
		},
	})
}

func (c *Conn) emitError(err error) {
	c.plog.Log(log.Event{
		Timestamp:    time.Now(),
		ConnectionID: c.id,
		Layer:        log.LayerTransport,
		Category:     log.CategoryError,
		RemoteAddr:   c.netConn.RemoteAddr().String(),
		Error: &log.ErrorEventData{
			Layer:   log.LayerTransport,
			Message: err.Error(),
			Context: "read",
		},
	})
}

// subscription revokes one registered handler. Cancel is idempotent.
type subscription struct {
	once   sync.Once
	cancel func()
}

func (s *subscription) Cancel() { s.once.Do(s.cancel) }
