package ws

import (
	"encoding/json"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/alpaca-assistant/gateway/internal/session"
)

// client wraps one websocket connection as an event sink. Writes are
// serialized through a buffered send channel drained by a single writePump
// goroutine, so the relay and the command loop can both deliver events
// without sharing the connection's writer.
type client struct {
	conn *websocket.Conn
	send chan []byte
	quit chan struct{}
	done chan struct{}

	closeOnce sync.Once
}

func newClient(conn *websocket.Conn) *client {
	c := &client{
		conn: conn,
		send: make(chan []byte, 64),
		quit: make(chan struct{}),
		done: make(chan struct{}),
	}
	go c.writePump()
	return c
}

func (c *client) writePump() {
	defer close(c.done)
	defer c.conn.Close()
	for {
		select {
		case msg := <-c.send:
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-c.quit:
			return
		}
	}
}

// Send marshals ev and hands it to the write pump, blocking while the pump's
// buffer is full. Once the pump has exited the transport is gone for good and
// every further Send reports ErrTransportClosed.
func (c *client) Send(ev session.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	select {
	case <-c.done:
		return session.ErrTransportClosed
	default:
	}
	select {
	case c.send <- data:
		return nil
	case <-c.done:
		return session.ErrTransportClosed
	}
}

// close stops the write pump and the underlying connection. Idempotent.
func (c *client) close() {
	c.closeOnce.Do(func() {
		close(c.quit)
	})
}
