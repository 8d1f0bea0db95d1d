package hub

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/gen1nya/WinMediaSessionProvider/logger"
)

// ConnState is the lifecycle of one consumer connection.
type ConnState int32

const (
	StateConnecting ConnState = iota
	StateOpen
	StateClosing
	StateClosed
)

const (
	sendBuffer   = 64
	readLimit    = 512 // inbound frames are ignored, anything bigger is abuse
	pongWait     = 60 * time.Second
	pingInterval = 30 * time.Second
)

// Conn is the subset of *websocket.Conn the hub needs. Narrowed to an
// interface so the eviction and shutdown paths are testable without real
// sockets.
type Conn interface {
	WriteMessage(messageType int, data []byte) error
	ReadMessage() (messageType int, p []byte, err error)
	SetWriteDeadline(t time.Time) error
	SetReadDeadline(t time.Time) error
	SetReadLimit(limit int64)
	SetPongHandler(h func(appData string) error)
	Close() error
}

// Client is one outbound consumer stream, owned exclusively by the hub
// registry. It is removed on close, protocol error or send timeout.
type Client struct {
	ID   string
	hub  *Hub
	conn Conn

	send  chan []byte
	state atomic.Int32

	// done is closed when the write pump exits, i.e. the connection is
	// drained or dead. Shutdown waits on it, bounded by the deadline.
	done     chan struct{}
	closeSig sync.Once
}

func newClient(h *Hub, conn Conn) *Client {
	c := &Client{
		ID:   uuid.NewString(),
		hub:  h,
		conn: conn,
		send: make(chan []byte, sendBuffer),
		done: make(chan struct{}),
	}
	c.state.Store(int32(StateConnecting))
	return c
}

// State returns the connection state.
func (c *Client) State() ConnState {
	return ConnState(c.state.Load())
}

func (c *Client) setState(s ConnState) {
	c.state.Store(int32(s))
}

// beginClose asks the write pump to flush and send a close frame. Safe to
// call multiple times.
func (c *Client) beginClose() {
	c.closeSig.Do(func() {
		c.setState(StateClosing)
		close(c.send)
	})
}

// forceClose tears the connection down immediately.
func (c *Client) forceClose() {
	c.beginClose()
	c.setState(StateClosed)
	_ = c.conn.Close()
}

// writePump is the only goroutine writing to the connection. Every write
// is bounded by the hub send timeout; the ping ticker keeps idle
// connections verifiably alive.
func (c *Client) writePump(sendTimeout time.Duration) {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.setState(StateClosed)
		_ = c.conn.Close()
		close(c.done)
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(sendTimeout))
			if !ok {
				// Registry closed the channel: say goodbye properly.
				_ = c.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				logger.Debug("consumer write failed",
					logger.String("consumer", c.ID),
					logger.ErrorField(err))
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(sendTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump discards inbound frames (the stream is broadcast-only) and
// watches for disconnects and pong keepalives.
func (c *Client) readPump() {
	defer c.hub.drop(c)

	c.conn.SetReadLimit(readLimit)
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
