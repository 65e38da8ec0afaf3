package signal

import (
	"errors"
	"sync"

	"github.com/gorilla/websocket"
)

var (
	ErrBackpressure = errors.New("backpressure")
	ErrClosed       = errors.New("connection closed")
)

// EventConn is one view subscriber's websocket. Writes are queued on send
// and drained by writePump.
type EventConn struct {
	id   string
	conn *websocket.Conn
	send chan []byte

	mu     sync.RWMutex
	closed bool
}

func newEventConn(id string, ws *websocket.Conn, buffer int) *EventConn {
	return &EventConn{id: id, conn: ws, send: make(chan []byte, buffer)}
}

func (c *EventConn) ID() string { return c.id }

func (c *EventConn) TrySend(f []byte) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return ErrClosed
	}
	select {
	case c.send <- f:
	default:
		return ErrBackpressure
	}
	return nil
}

func (c *EventConn) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
	_ = c.conn.Close()
}
