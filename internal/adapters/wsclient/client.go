// Package wsclient implements the ports.StreamClient interface over a
// websocket connection to the streaming endpoint.
//
// The client owns connection lifecycle: authenticated dial, ping keepalive,
// reconnect with exponential backoff and context-driven shutdown. Every
// incoming frame is passed through the streaming decoder; decoding itself is
// stateless, so a decode failure never tears down the connection.
package wsclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"investstream/internal/ports"
	"investstream/internal/streaming"

	"github.com/gorilla/websocket"
	"github.com/jpillora/backoff"
)

// Client implements ports.StreamClient using the gorilla/websocket library.
type Client struct {
	cfg    Config
	logger ports.Logger

	mu   sync.Mutex
	conn *websocket.Conn
}

// Config holds configuration specific to the websocket stream client.
type Config struct {
	URL                  string        // Stream endpoint, e.g. wss://.../md-openapi/ws
	Token                string        // Bearer token sent on dial
	Logger               ports.Logger
	PingInterval         time.Duration // Keepalive ping period
	WriteTimeout         time.Duration // Deadline for outgoing writes
	ReconnectMinDelay    time.Duration // First reconnect delay
	ReconnectMaxDelay    time.Duration // Backoff ceiling
	MaxReconnectAttempts int           // Consecutive failed dials before giving up
}

// New creates a new websocket stream client.
func New(cfg Config) (*Client, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for stream client: %w", ports.ErrConfigurationError)
	}
	if cfg.URL == "" {
		return nil, fmt.Errorf("stream URL is required: %w", ports.ErrConfigurationError)
	}
	if cfg.Token == "" {
		cfg.Logger.Warn(context.Background(), "auth token is empty, the server will likely reject the connection")
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = 25 * time.Second
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 10 * time.Second
	}
	if cfg.ReconnectMinDelay <= 0 {
		cfg.ReconnectMinDelay = 1 * time.Second
	}
	if cfg.ReconnectMaxDelay <= 0 {
		cfg.ReconnectMaxDelay = 30 * time.Second
	}
	if cfg.MaxReconnectAttempts <= 0 {
		cfg.MaxReconnectAttempts = 10
	}

	return &Client{cfg: cfg, logger: cfg.Logger}, nil
}

// StreamEvents starts the connection loop in a background goroutine and
// returns a channel closed once the loop exits.
func (c *Client) StreamEvents(ctx context.Context, handlers ports.StreamHandlers) (<-chan struct{}, error) {
	if handlers.OnEvent == nil {
		return nil, fmt.Errorf("stream handlers: OnEvent is required: %w", ports.ErrConfigurationError)
	}
	if handlers.OnError == nil {
		handlers.OnError = func(error) {}
	}

	done := make(chan struct{})
	go c.run(ctx, handlers, done)
	return done, nil
}

func (c *Client) run(ctx context.Context, handlers ports.StreamHandlers, done chan struct{}) {
	defer close(done)

	delay := &backoff.Backoff{
		Min:    c.cfg.ReconnectMinDelay,
		Max:    c.cfg.ReconnectMaxDelay,
		Factor: 2,
		Jitter: true,
	}
	attempts := 0

	for {
		if ctx.Err() != nil {
			return
		}

		conn, err := c.dial(ctx)
		if err != nil {
			attempts++
			handlers.OnError(fmt.Errorf("dial failed: %w: %w", ports.ErrConnectionFailed, err))
			if attempts >= c.cfg.MaxReconnectAttempts {
				c.logger.Error(ctx, err, "max reconnect attempts exceeded, giving up",
					map[string]interface{}{"url": c.cfg.URL, "attempts": attempts})
				return
			}
			wait := delay.Duration()
			c.logger.Warn(ctx, "connection failed, retrying",
				map[string]interface{}{"url": c.cfg.URL, "attempt": attempts, "delay": wait.String()})
			select {
			case <-time.After(wait):
				continue
			case <-ctx.Done():
				return
			}
		}

		attempts = 0
		delay.Reset()
		c.setConn(conn)
		c.logger.Info(ctx, "stream connection established", map[string]interface{}{"url": c.cfg.URL})

		if handlers.OnConnect != nil {
			handlers.OnConnect(ctx)
		}

		readErr := c.readLoop(ctx, conn, handlers)
		c.setConn(nil)
		conn.Close()

		if ctx.Err() != nil {
			c.logger.Info(ctx, "stream stopped")
			return
		}
		handlers.OnError(fmt.Errorf("connection lost: %w: %w", ports.ErrStreamClosed, readErr))
		c.logger.Warn(ctx, "stream connection lost, reconnecting",
			map[string]interface{}{"error": readErr.Error()})
	}
}

func (c *Client) dial(ctx context.Context) (*websocket.Conn, error) {
	header := http.Header{}
	if c.cfg.Token != "" {
		header.Set("Authorization", "Bearer "+c.cfg.Token)
	}
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, c.cfg.URL, header)
	if err != nil {
		if resp != nil && (resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden) {
			return nil, fmt.Errorf("%w: server returned %s", ports.ErrAuthenticationFailed, resp.Status)
		}
		return nil, err
	}
	return conn, nil
}

// readLoop reads frames until the connection drops or ctx is cancelled.
// Each frame is decoded independently: a malformed message is reported via
// OnError and skipped, an unknown event kind is logged and skipped.
func (c *Client) readLoop(ctx context.Context, conn *websocket.Conn, handlers ports.StreamHandlers) error {
	stop := make(chan struct{})
	defer close(stop)

	// Keepalive pings, plus closing the connection on cancellation to
	// unblock the blocking read below. WriteControl is safe to call
	// concurrently with WriteJSON.
	go func() {
		ticker := time.NewTicker(c.cfg.PingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				conn.Close()
				return
			case <-stop:
				return
			case <-ticker.C:
				deadline := time.Now().Add(c.cfg.WriteTimeout)
				if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
					c.logger.Warn(ctx, "keepalive ping failed", map[string]interface{}{"error": err.Error()})
				}
			}
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}

		event, err := streaming.Decode(data)
		if err != nil {
			var unknown *streaming.UnknownEventKindError
			if errors.As(err, &unknown) {
				// Newer servers may push kinds this client does not know
				// about yet; skip them without treating the stream as broken.
				c.logger.Warn(ctx, "skipping unknown event kind", map[string]interface{}{"kind": unknown.Kind})
				continue
			}
			handlers.OnError(err)
			continue
		}
		handlers.OnEvent(event)
	}
}

func (c *Client) setConn(conn *websocket.Conn) {
	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
}

func (c *Client) send(req request) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return fmt.Errorf("%s: %w", req.Event, ports.ErrNotConnected)
	}
	c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
	if err := c.conn.WriteJSON(req); err != nil {
		return fmt.Errorf("%s: %w: %w", req.Event, ports.ErrSubscriptionFailed, err)
	}
	return nil
}
