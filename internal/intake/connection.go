package intake

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	ws "github.com/gorilla/websocket"

	"github.com/kartparty/racehost/pkg/wire"
)

const (
	sendChSize   = 1_000
	maxReconnect = 10
	maxBackoff   = 30 * time.Second
	writeWait    = 10 * time.Second
)

// Connection manages the WebSocket to the room relay: one read goroutine
// feeding the Handler, one write goroutine draining outbound messages.
type Connection struct {
	mu     sync.Mutex
	conn   *ws.Conn
	sendCh chan []byte
	done   chan struct{} // closed on shutdown
	closed bool

	wsURL    string
	apiKey   string
	roomName string

	// Cached host announce for reconnect replay, so the relay re-binds
	// the room to this host.
	cachedAnnounce []byte

	handler *Handler
	logger  *slog.Logger
}

// NewConnection creates an unconnected relay connection.
func NewConnection(handler *Handler, logger *slog.Logger) *Connection {
	if logger == nil {
		logger = slog.Default()
	}
	return &Connection{
		sendCh:  make(chan []byte, sendChSize),
		done:    make(chan struct{}),
		handler: handler,
		logger:  logger,
	}
}

// Dial connects to the relay and starts the read/write loops. The relay
// binds the named room to this host for the session.
func (c *Connection) Dial(rawURL, apiKey, roomName string) error {
	c.wsURL = rawURL
	c.apiKey = apiKey
	c.roomName = roomName

	conn, err := c.dialOnce()
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	go c.writeLoop()
	go c.readLoop()

	return nil
}

func (c *Connection) dialOnce() (*ws.Conn, error) {
	u, err := url.Parse(c.wsURL)
	if err != nil {
		return nil, fmt.Errorf("invalid relay URL: %w", err)
	}
	q := u.Query()
	q.Set("apiKey", c.apiKey)
	q.Set("room", c.roomName)
	u.RawQuery = q.Encode()

	conn, _, err := ws.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("relay dial failed: %w", err)
	}
	return conn, nil
}

// Announce sends the host announce envelope and caches it for reconnect
// replay.
func (c *Connection) Announce(env wire.Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("failed to encode announce: %w", err)
	}
	c.mu.Lock()
	c.cachedAnnounce = data
	c.mu.Unlock()
	c.Send(data)
	return nil
}

// Send pushes data to the write loop. Non-blocking; drops if the channel is
// full so a stalled relay never blocks the engine.
func (c *Connection) Send(data []byte) {
	select {
	case c.sendCh <- data:
	default:
		c.logger.Warn("Relay send channel full, dropping message")
	}
}

// SendEnvelope marshals and sends one envelope.
func (c *Connection) SendEnvelope(msgType string, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode %s payload: %w", msgType, err)
	}
	data, err := json.Marshal(wire.Envelope{Type: msgType, Payload: raw})
	if err != nil {
		return fmt.Errorf("failed to encode %s envelope: %w", msgType, err)
	}
	c.Send(data)
	return nil
}

// writeLoop drains sendCh and writes messages to the relay. Only one
// writeLoop runs at a time; it returns on error or shutdown.
func (c *Connection) writeLoop() {
	for {
		select {
		case <-c.done:
			return
		case data := <-c.sendCh:
			c.mu.Lock()
			conn := c.conn
			c.mu.Unlock()

			if conn == nil {
				continue
			}

			if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				c.logger.Warn("Relay SetWriteDeadline error", "error", err)
				go c.reconnect()
				return
			}
			if err := conn.WriteMessage(ws.TextMessage, data); err != nil {
				c.logger.Warn("Relay write error", "error", err)
				go c.reconnect()
				return
			}
		}
	}
}

// readLoop feeds inbound messages to the handler. Malformed messages are
// logged and dropped; the loop keeps reading.
func (c *Connection) readLoop() {
	for {
		c.mu.Lock()
		conn := c.conn
		c.mu.Unlock()

		if conn == nil {
			return
		}

		_, message, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-c.done:
				return
			default:
			}
			c.logger.Warn("Relay read error", "error", err)
			go c.reconnect()
			return
		}

		if err := c.handler.Handle(message); err != nil {
			c.logger.Debug("Discarding relay message", "error", err)
		}
	}
}

// reconnect re-establishes the relay connection with exponential backoff.
// On success it replays the cached host announce and restarts the loops.
func (c *Connection) reconnect() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
	c.mu.Unlock()

	backoff := time.Second
	for attempt := 1; attempt <= maxReconnect; attempt++ {
		select {
		case <-c.done:
			return
		default:
		}

		c.logger.Info("Reconnecting to relay", "attempt", attempt, "backoff", backoff)
		time.Sleep(backoff)

		conn, err := c.dialOnce()
		if err != nil {
			c.logger.Warn("Relay reconnect dial failed", "attempt", attempt, "error", err)
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
			continue
		}

		c.mu.Lock()
		c.conn = conn
		cached := c.cachedAnnounce
		c.mu.Unlock()

		if cached != nil {
			if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				c.logger.Warn("Failed to set deadline for announce replay", "error", err)
				_ = conn.Close()
				continue
			}
			if err := conn.WriteMessage(ws.TextMessage, cached); err != nil {
				c.logger.Warn("Failed to replay announce after reconnect", "error", err)
				_ = conn.Close()
				continue
			}
		}

		c.logger.Info("Relay reconnected", "attempt", attempt)
		go c.writeLoop()
		go c.readLoop()
		return
	}

	c.logger.Error("Relay reconnect failed after max attempts", "maxAttempts", maxReconnect)
}

// Close sends a close frame and shuts down all goroutines.
func (c *Connection) Close() error {
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
		_ = conn.WriteMessage(
			ws.CloseMessage,
			ws.FormatCloseMessage(ws.CloseNormalClosure, ""),
		)
		return conn.Close()
	}
	return nil
}
