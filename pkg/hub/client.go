package hub

import (
	"time"

	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	// Viewers only send control frames.
	maxReadSize = 4 * 1024

	// sendBuffer holds a few seconds of frames at 5 fps.
	sendBuffer = 16
)

// Client is one dashboard viewer.
type Client struct {
	id     string
	remote string
	hub    *Hub
	conn   *websocket.Conn
	send   chan Message

	// misses counts consecutive messages the client could not take. Only
	// the Run goroutine touches it.
	misses int
}

func newClient(h *Hub, conn *websocket.Conn) *Client {
	c := &Client{
		id:   uuid.NewString(),
		hub:  h,
		conn: conn,
		send: make(chan Message, sendBuffer),
	}
	if conn != nil && conn.Conn != nil {
		c.remote = conn.RemoteAddr().String()
	}
	return c
}

// ID returns the viewer id used in logs.
func (c *Client) ID() string {
	return c.id
}

// Serve registers conn with the hub and pumps messages until the connection
// closes or the hub stops. It blocks, as the websocket handler must.
func (h *Hub) Serve(conn *websocket.Conn) {
	c := newClient(h, conn)
	c.queueSnapshot()

	select {
	case h.register <- c:
	case <-h.done:
		_ = conn.Close()
		return
	}

	// The connection goes back to the websocket pool when Serve returns,
	// so the writer must be finished by then. Unregistering closes c.send,
	// which ends writePump.
	written := make(chan struct{})
	go func() {
		defer close(written)
		c.writePump()
	}()
	c.readPump()
	<-written
}

// queueSnapshot fills the send buffer with the hub's snapshot so a new
// viewer does not wait for the next broadcast. Excess messages are dropped.
func (c *Client) queueSnapshot() {
	if c.hub.snapshot == nil {
		return
	}
	for _, msg := range c.hub.snapshot() {
		select {
		case c.send <- msg:
		default:
			return
		}
	}
}

func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxReadSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// writePump is the only writer on the connection.
func (c *Client) writePump() {
	c.hub.writers.Add(1)
	ping := time.NewTicker(pingPeriod)
	defer func() {
		c.hub.writers.Add(-1)
		ping.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(msg.wsType(), msg.Data); err != nil {
				c.hub.logger.Debug("viewer write failed", "viewer", c.id, "error", err)
				return
			}
		case <-ping.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
