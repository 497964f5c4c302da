package stream

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	ws "github.com/gorilla/websocket"
)

const (
	sendChSize   = 4096
	ackChSize    = 16
	maxReconnect = 10
	maxBackoff   = 30 * time.Second
	writeWait    = 10 * time.Second
	ackTimeout   = 5 * time.Second
)

// connection owns the socket. Only writeLoop writes, except the reset replay
// done by reconnect before the loops restart.
type connection struct {
	mu     sync.Mutex
	conn   *ws.Conn
	sendCh chan []byte
	ackCh  chan AckMessage
	done   chan struct{}
	closed bool

	// gone is closed when the current socket is replaced
	gone chan struct{}

	wsURL  string
	secret string

	// last reset envelope, replayed after a reconnect so the renderer
	// knows the current timeline
	lastReset []byte

	initialBackoff time.Duration
	logger         *slog.Logger
}

func newConnection(logger *slog.Logger) *connection {
	return &connection{
		sendCh:         make(chan []byte, sendChSize),
		ackCh:          make(chan AckMessage, ackChSize),
		done:           make(chan struct{}),
		initialBackoff: time.Second,
		logger:         logger,
	}
}

func (c *connection) dial(rawURL, secret string) error {
	c.wsURL = rawURL
	c.secret = secret

	conn, err := c.dialOnce()
	if err != nil {
		return err
	}

	gone := make(chan struct{})
	c.mu.Lock()
	c.conn = conn
	c.gone = gone
	c.mu.Unlock()

	go c.writeLoop(conn, gone)
	go c.readLoop(conn)
	return nil
}

func (c *connection) dialOnce() (*ws.Conn, error) {
	u, err := url.Parse(c.wsURL)
	if err != nil {
		return nil, fmt.Errorf("invalid stream URL: %w", err)
	}
	if c.secret != "" {
		q := u.Query()
		q.Set("secret", c.secret)
		u.RawQuery = q.Encode()
	}

	conn, _, err := ws.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("stream dial failed: %w", err)
	}
	return conn, nil
}

// writeLoop returns on the first write error and hands over to reconnect.
// A message taken after the socket was replaced goes back to the queue.
func (c *connection) writeLoop(conn *ws.Conn, gone <-chan struct{}) {
	for {
		select {
		case <-c.done:
			return
		case <-gone:
			return
		case data := <-c.sendCh:
			select {
			case <-gone:
				c.send(data)
				return
			default:
			}
			if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				c.logger.Warn("Stream SetWriteDeadline error", "error", err)
				go c.reconnect(conn)
				return
			}
			if err := conn.WriteMessage(ws.TextMessage, data); err != nil {
				c.logger.Warn("Stream write error", "error", err)
				go c.reconnect(conn)
				return
			}
		}
	}
}

func (c *connection) readLoop(conn *ws.Conn) {
	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-c.done:
				return
			default:
			}
			c.logger.Warn("Stream read error", "error", err)
			go c.reconnect(conn)
			return
		}

		var ack AckMessage
		if err := json.Unmarshal(message, &ack); err != nil || ack.Type != TypeAck {
			c.logger.Debug("Non-ack message received", "raw", string(message))
			continue
		}

		select {
		case c.ackCh <- ack:
		default:
			c.logger.Debug("Ack channel full, dropping", "for", ack.For)
		}
	}
}

// reconnect replaces broken with a fresh socket. Both loops notice a broken
// socket, so only the first caller for a given socket does the work.
func (c *connection) reconnect(broken *ws.Conn) {
	c.mu.Lock()
	if c.closed || c.conn != broken {
		c.mu.Unlock()
		return
	}
	_ = c.conn.Close()
	c.conn = nil
	close(c.gone)
	c.mu.Unlock()

	backoff := c.initialBackoff
	for attempt := 1; attempt <= maxReconnect; attempt++ {
		select {
		case <-c.done:
			return
		case <-time.After(backoff):
		}

		c.logger.Info("Reconnecting stream", "attempt", attempt, "backoff", backoff)
		conn, err := c.dialOnce()
		if err != nil {
			c.logger.Warn("Reconnect dial failed", "attempt", attempt, "error", err)
			backoff = min(backoff*2, maxBackoff)
			continue
		}

		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			_ = conn.Close()
			return
		}
		c.conn = conn
		gone := make(chan struct{})
		c.gone = gone
		replay := c.lastReset
		c.mu.Unlock()

		if replay != nil {
			if err := c.writeNow(conn, replay); err != nil {
				c.logger.Warn("Failed to replay reset after reconnect", "error", err)
				c.mu.Lock()
				c.conn = nil
				close(gone)
				c.mu.Unlock()
				_ = conn.Close()
				continue
			}
		}

		c.logger.Info("Stream reconnected", "attempt", attempt)
		go c.writeLoop(conn, gone)
		go c.readLoop(conn)
		return
	}

	c.logger.Error("Stream reconnect failed after max attempts", "maxAttempts", maxReconnect)
}

func (c *connection) writeNow(conn *ws.Conn, data []byte) error {
	if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return conn.WriteMessage(ws.TextMessage, data)
}

// send is non-blocking; it reports false when the message was dropped.
func (c *connection) send(data []byte) bool {
	select {
	case c.sendCh <- data:
		return true
	default:
		c.logger.Warn("Stream send channel full, dropping message")
		return false
	}
}

func (c *connection) rememberReset(data []byte) {
	c.mu.Lock()
	c.lastReset = data
	c.mu.Unlock()
}

// sendAndWait blocks until the server acknowledges ackFor or timeout expires.
func (c *connection) sendAndWait(data []byte, ackFor string, timeout time.Duration) error {
	if !c.send(data) {
		return ErrSendBufferFull
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		select {
		case ack := <-c.ackCh:
			if ack.For == ackFor {
				return nil
			}
		case <-timer.C:
			return fmt.Errorf("%w: %q", ErrAckTimeout, ackFor)
		case <-c.done:
			return fmt.Errorf("%w while waiting for ack of %q", ErrClosed, ackFor)
		}
	}
}

func (c *connection) close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	close(c.done)
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()

	if conn != nil {
		_ = conn.WriteControl(
			ws.CloseMessage,
			ws.FormatCloseMessage(ws.CloseNormalClosure, ""),
			time.Now().Add(writeWait),
		)
		return conn.Close()
	}
	return nil
}
