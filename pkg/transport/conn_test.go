package transport

import (
	"bytes"
	"net"
	"testing"
	"time"

	"github.com/vigil-proto/vigil-go/pkg/keepalive"
)

const eventWait = 2 * time.Second

// pipePair returns two connected Conns over an in-memory pipe.
func pipePair(t *testing.T, aCfg, bCfg ConnConfig) (*Conn, *Conn) {
	t.Helper()
	ncA, ncB := net.Pipe()
	a := NewConn(ncA, aCfg)
	b := NewConn(ncB, bCfg)
	t.Cleanup(func() {
		a.Terminate()
		b.Terminate()
	})
	return a, b
}

// rawPeer returns a Conn and a manually driven framer for its peer end.
func rawPeer(t *testing.T, cfg ConnConfig) (*Conn, *Framer) {
	t.Helper()
	ncA, ncB := net.Pipe()
	c := NewConn(ncA, cfg)
	t.Cleanup(func() {
		c.Terminate()
		ncB.Close()
	})
	return c, NewFramer(ncB, 0)
}

func TestPingPong(t *testing.T) {
	a, _ := pipePair(t, ConnConfig{}, ConnConfig{})

	pong := make(chan struct{}, 1)
	a.OnPong(func() { pong <- struct{}{} })

	if err := a.SendPing(); err != nil {
		t.Fatalf("SendPing failed: %v", err)
	}

	select {
	case <-pong:
	case <-time.After(eventWait):
		t.Fatal("timed out waiting for pong")
	}
}

func TestAutoPongEchoesSequence(t *testing.T) {
	_, framer := rawPeer(t, ConnConfig{})

	data, err := EncodeControlMessage(&ControlMessage{Type: ControlPing, Sequence: 7})
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- framer.WriteFrame(data) }()

	reply, err := framer.ReadFrame()
	if err != nil {
		t.Fatalf("ReadFrame failed: %v", err)
	}
	if err := <-done; err != nil {
		t.Fatalf("WriteFrame failed: %v", err)
	}

	pong, err := DecodeControlMessage(reply)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if pong.Type != ControlPong || pong.Sequence != 7 {
		t.Errorf("got %+v, want pong with sequence 7", pong)
	}
}

func TestSubscriptionCancel(t *testing.T) {
	a, _ := pipePair(t, ConnConfig{}, ConnConfig{})

	kept := make(chan struct{}, 2)
	canceled := make(chan struct{}, 2)
	a.OnPong(func() { kept <- struct{}{} })
	sub := a.OnPong(func() { canceled <- struct{}{} })

	sub.Cancel()
	sub.Cancel() // idempotent

	if err := a.SendPing(); err != nil {
		t.Fatalf("SendPing failed: %v", err)
	}

	select {
	case <-kept:
	case <-time.After(eventWait):
		t.Fatal("timed out waiting for pong")
	}
	select {
	case <-canceled:
		t.Error("canceled handler fired")
	default:
	}
}

func TestTerminateFiresCloseOnce(t *testing.T) {
	a, _ := pipePair(t, ConnConfig{}, ConnConfig{})

	closed := make(chan struct{}, 2)
	a.OnClose(func() { closed <- struct{}{} })

	if err := a.Terminate(); err != nil {
		t.Fatalf("Terminate failed: %v", err)
	}
	a.Terminate()

	select {
	case <-closed:
	case <-time.After(eventWait):
		t.Fatal("timed out waiting for close event")
	}
	select {
	case <-closed:
		t.Error("close event fired twice")
	case <-time.After(50 * time.Millisecond):
	}

	if a.ReadyState() != keepalive.StateClosed {
		t.Errorf("state = %v, want CLOSED", a.ReadyState())
	}
	if err := a.SendPing(); err == nil {
		t.Error("expected SendPing to fail on closed connection")
	}
}

func TestGracefulCloseReachesPeer(t *testing.T) {
	a, b := pipePair(t, ConnConfig{}, ConnConfig{})

	peerClosed := make(chan struct{}, 1)
	b.OnClose(func() { peerClosed <- struct{}{} })

	if err := a.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	select {
	case <-peerClosed:
	case <-time.After(eventWait):
		t.Fatal("timed out waiting for peer close")
	}
	if b.ReadyState() == keepalive.StateOpen {
		t.Errorf("peer state = %v, want not OPEN", b.ReadyState())
	}
}

func TestDataPassthrough(t *testing.T) {
	received := make(chan []byte, 1)
	a, _ := pipePair(t, ConnConfig{}, ConnConfig{
		OnMessage: func(payload []byte) { received <- payload },
	})

	// Control traffic must not leak into the payload callback.
	if err := a.SendPing(); err != nil {
		t.Fatalf("SendPing failed: %v", err)
	}
	if err := a.Send([]byte("application data")); err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	select {
	case payload := <-received:
		if string(payload) != "application data" {
			t.Errorf("received %q", payload)
		}
	case <-time.After(eventWait):
		t.Fatal("timed out waiting for payload")
	}
}

func TestControlShapedPayloadReachesApplication(t *testing.T) {
	received := make(chan []byte, 1)
	a, _ := pipePair(t, ConnConfig{}, ConnConfig{
		OnMessage: func(payload []byte) { received <- payload },
	})

	// A CBOR map whose key 1 holds a valid control type but that carries
	// an extra field: {1: 1, 3: "x"}. It must be delivered as payload,
	// not swallowed as a ping.
	payload := []byte{0xa2, 0x01, 0x01, 0x03, 0x61, 0x78}
	if err := a.Send(payload); err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	select {
	case got := <-received:
		if !bytes.Equal(got, payload) {
			t.Errorf("received % x, want % x", got, payload)
		}
	case <-time.After(eventWait):
		t.Fatal("timed out waiting for payload")
	}
}

func TestPeerDisappearanceFiresClose(t *testing.T) {
	ncA, ncB := net.Pipe()
	a := NewConn(ncA, ConnConfig{})
	defer a.Terminate()

	closed := make(chan struct{}, 1)
	a.OnClose(func() { closed <- struct{}{} })

	ncB.Close()

	select {
	case <-closed:
	case <-time.After(eventWait):
		t.Fatal("timed out waiting for close event")
	}

	select {
	case <-a.Done():
	case <-time.After(eventWait):
		t.Fatal("read loop did not exit")
	}
}

// TestManagerTracksTransportConn wires the transport into the liveness
// scheduler end to end: probes flow, acknowledgments refresh, and a vanished
// peer is reaped.
func TestManagerTracksTransportConn(t *testing.T) {
	cfg := keepalive.DefaultConfig()
	cfg.Interval = 50 * time.Millisecond
	cfg.Timeout = time.Second
	cfg.Tick = 25 * time.Millisecond
	cfg.MaxBuckets = 1
	cfg.StartJitter = 0

	m, err := keepalive.NewManager(cfg)
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	defer m.Shutdown()

	ncA, ncB := net.Pipe()
	a := NewConn(ncA, ConnConfig{})
	b := NewConn(ncB, ConnConfig{})
	defer a.Terminate()
	defer b.Terminate()

	m.AddClient(a)

	deadline := time.After(eventWait)
	for m.Stats().ProbesSent == 0 {
		select {
		case <-deadline:
			t.Fatal("no probes sent")
		case <-time.After(10 * time.Millisecond):
		}
	}
	if m.ClientCount() != 1 {
		t.Fatalf("client count = %d, want 1", m.ClientCount())
	}

	// Peer vanishes; the close event must unenroll the connection.
	b.Terminate()

	deadline = time.After(eventWait)
	for m.ClientCount() != 0 {
		select {
		case <-deadline:
			t.Fatal("vanished peer was not unenrolled")
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestListenerAndDial(t *testing.T) {
	received := make(chan []byte, 1)
	l, err := Listen("127.0.0.1:0", nil, ConnConfig{
		OnMessage: func(payload []byte) { received <- payload },
	})
	if err != nil {
		t.Fatalf("Listen failed: %v", err)
	}
	defer l.Close()

	accepted := make(chan *Conn, 1)
	go func() {
		conn, err := l.Accept()
		if err != nil {
			t.Errorf("Accept failed: %v", err)
			return
		}
		accepted <- conn
	}()

	ctx, cancel := contextWithTimeout(t)
	defer cancel()

	client, err := Dial(ctx, l.Addr().String(), DialConfig{})
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer client.Terminate()

	server := <-accepted
	defer server.Terminate()

	if err := client.Send([]byte("over tcp")); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	select {
	case payload := <-received:
		if string(payload) != "over tcp" {
			t.Errorf("received %q", payload)
		}
	case <-time.After(eventWait):
		t.Fatal("timed out waiting for payload")
	}
}
