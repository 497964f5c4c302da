// Package stream pushes animation events to a rendering client over a
// WebSocket.
package stream

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/vfproof/keyframer/internal/animation"
)

// Message types.
const (
	TypeReset = "reset"
	TypeTick  = "tick"
	TypeAck   = "ack"
)

var (
	ErrAckTimeout     = errors.New("timeout waiting for ack")
	ErrClosed         = errors.New("stream closed")
	ErrSendBufferFull = errors.New("stream send buffer full")
)

// Envelope wraps every message sent over the socket.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// AckMessage is the renderer's acknowledgement of a reset.
type AckMessage struct {
	Type string `json:"type"`
	For  string `json:"for"`
}

// Config holds the renderer endpoint.
type Config struct {
	URL    string
	Secret string
	// AckTimeout bounds SendReset. Zero means 5s.
	AckTimeout time.Duration
}

// Client sends reset and tick envelopes.
type Client struct {
	cfg    Config
	conn   *connection
	logger *slog.Logger
}

// New creates a client. Dial must be called before sending.
func New(cfg Config, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.AckTimeout <= 0 {
		cfg.AckTimeout = ackTimeout
	}
	return &Client{
		cfg:    cfg,
		conn:   newConnection(logger),
		logger: logger,
	}
}

// Dial opens the connection and starts the read and write loops.
func (c *Client) Dial() error {
	if c.cfg.URL == "" {
		return fmt.Errorf("stream URL is required")
	}
	if err := c.conn.dial(c.cfg.URL, c.cfg.Secret); err != nil {
		return err
	}
	c.logger.Info("Stream connected", "url", c.cfg.URL)
	return nil
}

// Close sends a normal close frame and stops the loops.
func (c *Client) Close() error {
	return c.conn.close()
}

// SendReset sends the rebuilt timeline and waits for the renderer to
// acknowledge it. The envelope is kept and replayed after a reconnect.
func (c *Client) SendReset(ev animation.ResetEvent) error {
	data, err := marshalEnvelope(TypeReset, ev)
	if err != nil {
		return err
	}
	c.conn.rememberReset(data)
	return c.conn.sendAndWait(data, TypeReset, c.cfg.AckTimeout)
}

// SendTick queues a tick without waiting. Ticks are dropped when the send
// buffer is full.
func (c *Client) SendTick(ev animation.TickEvent) error {
	data, err := marshalEnvelope(TypeTick, ev)
	if err != nil {
		return err
	}
	if !c.conn.send(data) {
		return ErrSendBufferFull
	}
	return nil
}

// OnReset adapts SendReset to an animation.ResetFunc. Failures are logged.
func (c *Client) OnReset(ev animation.ResetEvent) {
	if err := c.SendReset(ev); err != nil {
		c.logger.Warn("Failed to send reset", "font", ev.FontName, "error", err)
	}
}

// OnTick adapts SendTick to an animation.TickFunc.
func (c *Client) OnTick(ev animation.TickEvent) {
	_ = c.SendTick(ev)
}

func marshalEnvelope(msgType string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", msgType, err)
	}
	return json.Marshal(Envelope{Type: msgType, Payload: raw})
}
