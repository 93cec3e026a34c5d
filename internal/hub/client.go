package hub

import (
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"

	"github.com/cardroom/cardroom/internal/protocol"
)

const (
	// Time allowed to write a frame to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong from the peer.
	pongWait = 60 * time.Second

	// Ping interval; must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	maxMessageSize = 8192

	// Outbound queue depth; a client that falls this far behind is
	// dropped rather than allowed to stall its room.
	sendQueueSize = 256
)

// Client is one live connection with its pumps and bounded send queue.
type Client struct {
	id   string
	hub  *Hub
	conn *websocket.Conn
	send chan []byte

	logger *log.Logger

	mu     sync.Mutex
	userID string
	name   string
	room   string

	closeOnce sync.Once
}

// NewClient wraps an accepted websocket connection. Call Register on
// the hub, then start WritePump in a goroutine and run ReadPump on the
// connection's goroutine.
func NewClient(h *Hub, conn *websocket.Conn, id string, logger *log.Logger) *Client {
	return &Client{
		id:     id,
		hub:    h,
		conn:   conn,
		send:   make(chan []byte, sendQueueSize),
		logger: logger.WithPrefix("client").With("client", id),
	}
}

// ID returns the connection id.
func (c *Client) ID() string { return c.id }

// BindUser attaches a verified identity to the connection.
func (c *Client) BindUser(userID, name string) {
	c.mu.Lock()
	c.userID = userID
	c.name = name
	c.mu.Unlock()
	c.hub.bindUser(c, userID)
}

// UserID returns the bound user id, empty before auth.
func (c *Client) UserID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.userID
}

// Name returns the bound display name.
func (c *Client) Name() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.name
}

// Room returns the table room the client is in, empty if none.
func (c *Client) Room() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.room
}

func (c *Client) setRoom(room string) {
	c.mu.Lock()
	c.room = room
	c.mu.Unlock()
}

// Send enqueues an envelope. It reports false when the queue is full,
// in which case the hub drops the connection.
func (c *Client) Send(env protocol.Envelope) bool {
	frame, err := protocol.Encode(env)
	if err != nil {
		c.logger.Error("encode outbound frame", "type", env.Type, "error", err)
		return true
	}
	return c.enqueue(frame)
}

func (c *Client) enqueue(frame []byte) bool {
	select {
	case c.send <- frame:
		c.hub.metrics.MessagesOut.Inc()
		return true
	default:
		return false
	}
}

// ReadPump decodes inbound frames and hands them to the dispatcher.
// It runs on the connection's goroutine and returns when the peer goes
// away; the caller is responsible for unregistering afterwards.
func (c *Client) ReadPump(handle func(*Client, protocol.Envelope)) {
	defer c.conn.Close()
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, frame, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Debug("read error", "error", err)
			}
			return
		}
		c.hub.metrics.MessagesIn.Inc()
		env, err := protocol.Decode(frame)
		if err != nil {
			c.logger.Debug("malformed frame", "error", err)
			c.Send(protocol.MustEnvelope(protocol.TypeError, protocol.ErrorPayload{
				Code:    "malformed",
				Message: "malformed envelope",
			}))
			continue
		}
		handle(c, env)
	}
}

// WritePump drains the send queue and keeps the heartbeat going. It
// exits when the queue is closed by the hub or a write fails.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case frame, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// closeSend shuts the queue exactly once; WritePump then closes the
// underlying connection.
func (c *Client) closeSend() {
	c.closeOnce.Do(func() { close(c.send) })
}
