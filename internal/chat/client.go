package chat

import (
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second    // Time allowed to write a message to the peer.
	pongWait   = 60 * time.Second    // Time allowed to read the next pong message from the peer.
	pingPeriod = (pongWait * 9) / 10 // Must be less than pongWait.
	sendBuffer = 256
)

// Client is a middleman between the websocket connection and the hub.
// username, room and token are owned by the hub goroutine.
type Client struct {
	ID   string
	Hub  *Hub
	Conn *websocket.Conn
	// Buffered channel of outbound frames. Only the hub closes it.
	Send chan []byte

	username string
	room     string
	token    string
}

func NewClient(hub *Hub, conn *websocket.Conn) *Client {
	return &Client{
		ID:   uuid.NewString(),
		Hub:  hub,
		Conn: conn,
		Send: make(chan []byte, sendBuffer),
	}
}

// ReadPump pumps frames from the websocket connection to the hub.
func (c *Client) ReadPump(maxFrameBytes int64) {
	defer func() {
		c.Hub.release(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxFrameBytes)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.Hub.logger.Debugw("websocket read failed", "client", c.ID, "error", err)
			}
			break
		}
		if !c.Hub.dispatch(c, message) {
			break
		}
	}
}

// WritePump pumps frames from the hub to the websocket connection. Every
// frame is written as its own websocket message since each is a JSON envelope.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
