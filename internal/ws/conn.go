// Package ws adapts a gorilla/websocket connection to the relay's Connection
// interface: JSON event frames out, decoded frames in, and a disconnect
// notification when the read loop ends for any reason.
package ws

import (
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/xingzihai/soundroom/internal/protocol"
	"github.com/xingzihai/soundroom/internal/relay"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
)

type Conn struct {
	id    string
	sock  *websocket.Conn
	relay *relay.Relay

	mu sync.Mutex // serializes writes; gorilla does not support concurrent writers
}

func NewConn(id string, sock *websocket.Conn, rl *relay.Relay) *Conn {
	return &Conn{id: id, sock: sock, relay: rl}
}

func (c *Conn) ID() string { return c.id }

// Send frames the payload under the event name and writes it. Errors are
// returned for logging only; the connection is torn down by its own read
// loop, never by a failed send.
func (c *Conn) Send(event string, payload interface{}) error {
	data, err := protocol.Encode(event, payload)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sock.SetWriteDeadline(time.Now().Add(writeWait))
	return c.sock.WriteMessage(websocket.TextMessage, data)
}

func (c *Conn) Close() error {
	return c.sock.Close()
}

// Run reads frames until the connection dies, dispatching each to the relay,
// then reports the disconnect. It blocks for the connection's lifetime.
func (c *Conn) Run() {
	defer func() {
		c.relay.Disconnect(c)
		c.sock.Close()
	}()

	pingDone := make(chan struct{})
	defer close(pingDone)
	go c.pingLoop(pingDone)

	c.sock.SetReadLimit(maxMessageSize)
	c.sock.SetReadDeadline(time.Now().Add(pongWait))
	c.sock.SetPongHandler(func(string) error {
		c.sock.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.sock.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				slog.Warn("read error", "clientId", c.id, "error", err)
			}
			return
		}
		c.relay.Dispatch(c, data)
	}
}

func (c *Conn) pingLoop(done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			c.mu.Lock()
			err := c.sock.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
			c.mu.Unlock()
			if err != nil {
				return
			}
		}
	}
}
