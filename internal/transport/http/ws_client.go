package http

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const writeTimeout = 10 * time.Second

// wsClient adapts one websocket connection to the hub's Subscriber
// interface. Writes are serialized with a mutex because the hub delivers
// from concurrent goroutines and gorilla/websocket allows one writer at a
// time.
type wsClient struct {
	id      string
	conn    *websocket.Conn
	writeMu sync.Mutex
}

func newWSClient(conn *websocket.Conn, id string) *wsClient {
	if id == "" {
		id = uuid.NewString()
	}

	return &wsClient{
		id:   id,
		conn: conn,
	}
}

func (c *wsClient) ID() string {
	return c.id
}

func (c *wsClient) Send(text string) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if err := c.conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return err
	}

	return c.conn.WriteMessage(websocket.TextMessage, []byte(text))
}
