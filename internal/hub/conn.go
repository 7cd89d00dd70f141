package hub

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a frame to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong from the peer.
	pongWait = 60 * time.Second

	// Send pings at this interval; must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Outbound frames buffered per connection before sends start failing.
	sendBufferSize = 256
)

var (
	// ErrConnClosed is returned by Send after the connection has been closed.
	ErrConnClosed = errors.New("hub: connection closed")

	// ErrSendBufferFull is returned by Send when the peer is not draining
	// its queue fast enough.
	ErrSendBufferFull = errors.New("hub: send buffer full")
)

// Conn wraps a websocket connection with a buffered outbound queue so that
// broadcasts never block on a slow peer. All wire writes happen on the
// WritePump goroutine, which is the only writer gorilla/websocket allows.
//
// A Conn is owned by exactly one session for its lifetime; the hub holds it
// only as a lookup entry.
type Conn struct {
	// ID tags log lines and prune decisions for this connection instance.
	ID uuid.UUID

	ws   *websocket.Conn
	send chan []byte

	mu     sync.Mutex
	closed bool
}

// NewConn wraps an upgraded websocket connection.
func NewConn(ws *websocket.Conn) *Conn {
	return &Conn{
		ID:   uuid.New(),
		ws:   ws,
		send: make(chan []byte, sendBufferSize),
	}
}

// Send enqueues a frame for delivery. It never blocks: a closed connection
// or a full buffer fails immediately so a stuck peer cannot stall a
// broadcast pass.
func (c *Conn) Send(payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrConnClosed
	}
	select {
	case c.send <- payload:
		return nil
	default:
		return ErrSendBufferFull
	}
}

// Close marks the connection closed and lets the write pump drain and shut
// down the transport. Safe to call more than once and concurrently with Send.
func (c *Conn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	c.mu.Unlock()
}

// WritePump moves frames from the outbound queue onto the wire and keeps the
// connection alive with periodic pings. It exits when Close is called or a
// write fails, closing the underlying transport either way (which in turn
// unblocks the session's read loop).
func (c *Conn) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.ws.Close()
	}()

	for {
		select {
		case payload, ok := <-c.send:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.ws.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.ws.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
