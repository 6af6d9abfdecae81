package broadcast

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// writeWait bounds how long a single send may block on a slow client
// before the connection is considered stale.
const writeWait = 10 * time.Second

// WSConn adapts a gorilla websocket connection to the Subscriber
// interface. Gorilla connections allow only one concurrent writer, so
// sends are serialized with a mutex.
type WSConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

// NewWSConn wraps an upgraded websocket connection.
func NewWSConn(conn *websocket.Conn) *WSConn {
	return &WSConn{conn: conn}
}

// Send writes one text message with a write deadline.
func (c *WSConn) Send(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// Close closes the underlying connection.
func (c *WSConn) Close() error {
	return c.conn.Close()
}
