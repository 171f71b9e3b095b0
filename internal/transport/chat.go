package transport

import (
	"bufio"
	"net"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

// ChatClient is one line-based chat connection (§6): `LOGIN:...`,
// `GO:<arena>`, `LEAVE` inbound; `LOGINOK:`, `PLAYER:`, `MSG:ARENA:` etc.
// outbound. Grounded on the teacher's internal/net.Session goroutine split
// (dedicated reader/writer goroutines, a bounded outbound queue, a
// close-once shutdown), adapted from length-framed encrypted binary frames
// to newline-terminated plaintext lines.
type ChatClient struct {
	ID       uint64
	PlayerID int64
	conn     net.Conn

	outQueue chan string

	closeCh   chan struct{}
	closeOnce sync.Once
	closed    atomic.Bool

	log *zap.Logger
}

func newChatClient(conn net.Conn, id uint64, outSize int, log *zap.Logger) *ChatClient {
	return &ChatClient{
		ID:       id,
		conn:     conn,
		outQueue: make(chan string, outSize),
		closeCh:  make(chan struct{}),
		log:      log.With(zap.Uint64("chat_session", id)),
	}
}

// SendLine queues one line (without the trailing newline) for delivery.
// Non-blocking: a full queue disconnects the slow client rather than
// blocking the caller, matching the teacher's backpressure policy.
func (c *ChatClient) SendLine(line string) {
	if c.closed.Load() {
		return
	}
	select {
	case c.outQueue <- line:
	default:
		c.log.Warn("chat outbound queue full, disconnecting")
		c.Close()
	}
}

func (c *ChatClient) Close() {
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		close(c.closeCh)
		c.conn.Close()
	})
}

func (c *ChatClient) writeLoop() {
	w := bufio.NewWriter(c.conn)
	for {
		select {
		case line := <-c.outQueue:
			if _, err := w.WriteString(line + "\n"); err != nil {
				c.Close()
				return
			}
			if err := w.Flush(); err != nil {
				c.Close()
				return
			}
		case <-c.closeCh:
			return
		}
	}
}

// ChatListener accepts TCP connections and dispatches complete lines to
// onLine; onLine runs on the per-client reader goroutine, mirroring the
// game listener's "dispatch happens on the transport thread" contract.
type ChatListener struct {
	ln      net.Listener
	log     *zap.Logger
	nextID  atomic.Uint64
	outSize int

	onLine    func(c *ChatClient, line string)
	onConnect func(c *ChatClient)
	onClose   func(c *ChatClient)
}

func NewChatListener(bindAddr string, outSize int, log *zap.Logger,
	onConnect func(c *ChatClient), onLine func(c *ChatClient, line string), onClose func(c *ChatClient),
) (*ChatListener, error) {
	ln, err := net.Listen("tcp", bindAddr)
	if err != nil {
		return nil, err
	}
	return &ChatListener{
		ln:        ln,
		log:       log,
		outSize:   outSize,
		onConnect: onConnect,
		onLine:    onLine,
		onClose:   onClose,
	}, nil
}

func (l *ChatListener) Serve() {
	for {
		conn, err := l.ln.Accept()
		if err != nil {
			return
		}
		id := l.nextID.Add(1)
		c := newChatClient(conn, id, l.outSize, l.log)
		go c.writeLoop()
		go l.readLoop(c)
		if l.onConnect != nil {
			l.onConnect(c)
		}
	}
}

func (l *ChatListener) readLoop(c *ChatClient) {
	defer func() {
		c.Close()
		if l.onClose != nil {
			l.onClose(c)
		}
	}()

	scanner := bufio.NewScanner(c.conn)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		if l.onLine != nil {
			l.onLine(c, line)
		}
	}
}

func (l *ChatListener) Close() error {
	return l.ln.Close()
}
