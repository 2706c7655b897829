// Package wsclient is a small reconnecting client for the collaboration
// websocket. It re-dials with increasing backoff after a dropped
// connection and invokes OnReconnect so callers can re-join rooms and
// re-fetch state the server no longer replays.
package wsclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// ErrClosed is returned after Close, when no further dialing will happen.
var ErrClosed = errors.New("wsclient: closed")

// Config controls dialing and retry behavior.
type Config struct {
	// URL is the ws:// or wss:// endpoint, including the project path.
	URL string
	// Token is sent as a bearer token on the handshake request.
	Token string
	// MaxRetries bounds consecutive failed dials before giving up.
	// Zero means 5.
	MaxRetries int
	// BackoffBase is the first retry delay, doubled per attempt and
	// capped at 30s. Zero means 500ms.
	BackoffBase time.Duration

	// OnMessage receives every inbound frame.
	OnMessage func(event string, payload json.RawMessage)
	// OnReconnect fires after every successful dial except the first.
	// Rejoin rooms and re-fetch history here.
	OnReconnect func()
}

type envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Client maintains one logical session over successive connections.
type Client struct {
	cfg Config

	mu     sync.Mutex
	conn   *websocket.Conn
	closed bool

	done chan struct{}
}

// New validates the config and returns an unconnected client.
func New(cfg Config) (*Client, error) {
	if cfg.URL == "" {
		return nil, errors.New("wsclient: URL is required")
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 5
	}
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = 500 * time.Millisecond
	}
	return &Client{
		cfg:  cfg,
		done: make(chan struct{}),
	}, nil
}

// Run dials and pumps messages until ctx is canceled, Close is called, or
// the retry budget is exhausted. It blocks; run it in a goroutine.
func (c *Client) Run(ctx context.Context) error {
	first := true
	for {
		conn, err := c.dial(ctx)
		if err != nil {
			return err
		}

		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			conn.Close()
			return ErrClosed
		}
		c.conn = conn
		c.mu.Unlock()

		if !first && c.cfg.OnReconnect != nil {
			c.cfg.OnReconnect()
		}
		first = false

		err = c.readLoop(ctx, conn)
		conn.Close()
		if err != nil {
			return err
		}
		// connection dropped, loop back into dial
	}
}

// dial attempts the handshake up to MaxRetries times with doubling delay.
func (c *Client) dial(ctx context.Context) (*websocket.Conn, error) {
	header := http.Header{}
	if c.cfg.Token != "" {
		header.Set("Authorization", "Bearer "+c.cfg.Token)
	}

	delay := c.cfg.BackoffBase
	var lastErr error
	for attempt := 0; attempt < c.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-c.done:
				return nil, ErrClosed
			}
			delay *= 2
			if delay > 30*time.Second {
				delay = 30 * time.Second
			}
		}

		conn, resp, err := websocket.DefaultDialer.DialContext(ctx, c.cfg.URL, header)
		if err == nil {
			return conn, nil
		}
		lastErr = err

		// 4xx rejections are not transient, retrying would spam the server
		if resp != nil && resp.StatusCode >= 400 && resp.StatusCode < 500 {
			return nil, fmt.Errorf("wsclient: handshake rejected (%d): %w", resp.StatusCode, err)
		}
	}
	return nil, fmt.Errorf("wsclient: gave up after %d attempts: %w", c.cfg.MaxRetries, lastErr)
}

// readLoop pumps frames until the connection drops. A nil return means
// the drop was transport-level and Run should re-dial.
func (c *Client) readLoop(ctx context.Context, conn *websocket.Conn) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.done:
			return ErrClosed
		default:
		}

		_, raw, err := conn.ReadMessage()
		if err != nil {
			c.mu.Lock()
			closed := c.closed
			c.mu.Unlock()
			if closed {
				return ErrClosed
			}
			return nil
		}

		var env envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			continue
		}
		if c.cfg.OnMessage != nil {
			c.cfg.OnMessage(env.Type, env.Payload)
		}
	}
}

// Send marshals and writes one event on the current connection.
func (c *Client) Send(event string, payload any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	if c.conn == nil {
		return errors.New("wsclient: not connected")
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("wsclient: marshal payload: %w", err)
	}
	frame, err := json.Marshal(envelope{Type: event, Payload: raw})
	if err != nil {
		return fmt.Errorf("wsclient: marshal envelope: %w", err)
	}
	return c.conn.WriteMessage(websocket.TextMessage, frame)
}

// Close stops reconnecting and tears down the current connection.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	close(c.done)
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}
