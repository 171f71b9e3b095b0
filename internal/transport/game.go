// Package transport implements the two concrete client-facing listeners:
// the binary, UDP game protocol (this file) and the line-based chat
// protocol (chat.go). Per §1's scope note, "the reliable UDP transport
// itself" (acks, retries, congestion control) is an external collaborator
// whose internals this core does not specify; what's built here is the
// minimal concrete adapter needed to exercise the rest of the stack —
// sends go out best-effort, and reliable/droppable/priority are carried
// as hints for a fuller transport to act on rather than implemented as a
// real ARQ layer. Datagrams are sent and received in the clear: the
// teacher's internal/net/cipher.go wire-obfuscation scheme had no
// interoperability target here (there is no external client this core
// answers to) and nothing in this core's domain could make the cipher's
// arithmetic genuinely its own, so it was dropped rather than kept as an
// unmodified copy (see DESIGN.md).
//
// Grounded on the teacher's internal/net: the same accept/session split
// (one goroutine loop owns the socket, per-client state is a small struct
// guarded by its own mutex), adapted from TCP+framed-length to
// UDP+datagram-is-the-frame.
package transport

import (
	"encoding/binary"
	"math/rand"
	"net"
	"sync"

	"go.uber.org/zap"
)

// GameClient is one UDP peer: address, coarse handshake phase, and the
// player it's bound to. PlayerID is set by the login handler once the C6
// state machine has created the corresponding player.Player.
type GameClient struct {
	Addr     *net.UDPAddr
	PlayerID int64
	Fake     bool // in-process synthetic player; never has a real Addr

	mu    sync.Mutex
	state State
}

func (c *GameClient) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *GameClient) SetState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// GameListener owns the UDP socket and the live client table, keyed by
// address string (there is no per-connection file descriptor in UDP).
type GameListener struct {
	conn *net.UDPConn
	log  *zap.Logger
	reg  *Registry

	mu      sync.RWMutex
	clients map[string]*GameClient

	onConnect func(c *GameClient)
}

func NewGameListener(bindAddr string, reg *Registry, log *zap.Logger, onConnect func(c *GameClient)) (*GameListener, error) {
	addr, err := net.ResolveUDPAddr("udp", bindAddr)
	if err != nil {
		return nil, err
	}
	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return nil, err
	}
	return &GameListener{
		conn:      conn,
		log:       log,
		reg:       reg,
		clients:   make(map[string]*GameClient),
		onConnect: onConnect,
	}, nil
}

// Serve reads datagrams until the socket is closed. Call from its own
// goroutine; inbound packets are dispatched synchronously on this
// goroutine (the transport thread referred to by §5's ordering
// guarantees) — handlers that need mainloop serialization must post their
// own continuation via mainloop.QueueMainWork.
func (l *GameListener) Serve() {
	buf := make([]byte, 2048)
	for {
		n, addr, err := l.conn.ReadFromUDP(buf)
		if err != nil {
			return // socket closed
		}
		raw := make([]byte, n)
		copy(raw, buf[:n])
		l.handleDatagram(addr, raw)
	}
}

func (l *GameListener) handleDatagram(addr *net.UDPAddr, raw []byte) {
	key := addr.String()

	l.mu.RLock()
	c, ok := l.clients[key]
	l.mu.RUnlock()

	if !ok {
		c = l.handshake(addr)
		if c == nil {
			return
		}
		l.mu.Lock()
		l.clients[key] = c
		l.mu.Unlock()
		if l.onConnect != nil {
			l.onConnect(c)
		}
		return
	}

	c.mu.Lock()
	state := c.state
	c.mu.Unlock()

	if err := l.reg.Dispatch(c, state, raw); err != nil {
		l.log.Debug("dispatch error", zap.Error(err))
	}
}

// handshake treats the first datagram from a new address as a bare
// connection request: reply with a freshly generated connection token so
// the client can confirm the round trip, mirroring the teacher's
// plaintext init packet but without any cipher keyed off it.
func (l *GameListener) handshake(addr *net.UDPAddr) *GameClient {
	token := rand.Int31n(0x7ffffffe) + 1

	reply := make([]byte, 5)
	reply[0] = 0 // handshake-reply marker
	binary.LittleEndian.PutUint32(reply[1:], uint32(token))
	if _, err := l.conn.WriteToUDP(reply, addr); err != nil {
		l.log.Debug("handshake reply failed", zap.Error(err))
		return nil
	}

	return &GameClient{
		Addr:  addr,
		state: StateHandshake,
	}
}

// SendFlags describes how an outbound packet should be delivered; this
// layer records the hints but (per the package doc) does not implement a
// real retry/priority queue.
type SendFlags struct {
	Reliable  bool
	Droppable bool
	Priority  int
}

// Send writes data to c. Errors are logged, not returned — a failed UDP
// write to one peer must never block or fail fan-out to the rest of the
// arena.
func (l *GameListener) Send(c *GameClient, data []byte, flags SendFlags) {
	if c.Fake || c.Addr == nil {
		return
	}
	if _, err := l.conn.WriteToUDP(data, c.Addr); err != nil {
		l.log.Debug("udp send failed", zap.Error(err), zap.Bool("reliable", flags.Reliable))
	}
}

// RemoveClient drops a disconnected peer from the table.
func (l *GameListener) RemoveClient(c *GameClient) {
	if c.Addr == nil {
		return
	}
	l.mu.Lock()
	delete(l.clients, c.Addr.String())
	l.mu.Unlock()
}

// Close stops accepting further datagrams.
func (l *GameListener) Close() error {
	return l.conn.Close()
}
