// network/connection.go
package network

import (
	"encoding/json"
	"net"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

type Connection interface {
	Send(frame any) error
	ReadMessage() ([]byte, error)
	Close() error
	RemoteAddr() net.Addr
}

// WSConnection carries JSON frames as WebSocket text messages. Writes are
// serialized; reads belong to the single read loop of the connection.
type WSConnection struct {
	conn         *websocket.Conn
	sendMutex    sync.Mutex
	writeTimeout time.Duration
}

func NewWSConnection(conn *websocket.Conn, writeTimeout time.Duration) *WSConnection {
	return &WSConnection{conn: conn, writeTimeout: writeTimeout}
}

func (c *WSConnection) Send(frame any) error {
	data, err := json.Marshal(frame)
	if err != nil {
		return err
	}

	c.sendMutex.Lock()
	defer c.sendMutex.Unlock()

	if c.writeTimeout > 0 {
		_ = c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	}
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// ReadMessage returns the payload of the next data message. Binary messages
// are passed through and fail decoding later.
func (c *WSConnection) ReadMessage() ([]byte, error) {
	_, data, err := c.conn.ReadMessage()
	return data, err
}

func (c *WSConnection) Close() error {
	c.sendMutex.Lock()
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	c.sendMutex.Unlock()
	return c.conn.Close()
}

func (c *WSConnection) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}
