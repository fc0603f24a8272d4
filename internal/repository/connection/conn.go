package connection

import (
	"sync"

	"github.com/gorilla/websocket"
)

// Conn wraps a websocket connection with a write lock. Concurrent handlers
// may nudge the same listener, and the underlying connection allows only one
// concurrent writer.
type Conn struct {
	ws *websocket.Conn
	mu sync.Mutex
}

func NewConn(ws *websocket.Conn) *Conn {
	return &Conn{ws: ws}
}

func (c *Conn) WriteJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.ws.WriteJSON(v)
}

func (c *Conn) ReadMessage() (int, []byte, error) {
	return c.ws.ReadMessage()
}

func (c *Conn) Close() error {
	return c.ws.Close()
}
