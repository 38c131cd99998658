package realtime

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 << 10
	sendBuffer     = 64
)

// Client is one websocket connection. rooms is guarded by Hub.mu.
type Client struct {
	hub    *Hub
	conn   *websocket.Conn
	userID string
	rooms  map[string]struct{}

	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

func newClient(h *Hub, conn *websocket.Conn, userID string) *Client {
	return &Client{
		hub:    h,
		conn:   conn,
		userID: userID,
		rooms:  make(map[string]struct{}),
		send:   make(chan []byte, sendBuffer),
		done:   make(chan struct{}),
	}
}

// close stops the writer, which sends a close frame and closes the
// connection; that in turn ends the reader.
func (c *Client) close() {
	c.closeOnce.Do(func() { close(c.done) })
}

// enqueue never blocks; false means the buffer is full or the client is gone.
func (c *Client) enqueue(frame []byte) bool {
	select {
	case <-c.done:
		return true
	default:
	}
	select {
	case c.send <- frame:
		return true
	default:
		return false
	}
}

func (c *Client) readPump() {
	defer c.hub.unregister(c)

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}

		var env Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			c.reply(EventError, "malformed frame")
			continue
		}
		c.handle(env)
	}
}

func (c *Client) handle(env Envelope) {
	ctx := context.Background()

	switch env.Event {
	case EventJoinRoom:
		var room string
		if err := json.Unmarshal(env.Data, &room); err != nil {
			c.reply(EventError, "room id must be a string")
			return
		}
		if err := c.hub.Join(c, room); err != nil {
			c.reply(EventError, "cannot join "+room)
		}

	case EventLeaveRoom:
		var room string
		if err := json.Unmarshal(env.Data, &room); err == nil {
			c.hub.Leave(c, room)
		}

	case EventSendMessage:
		var msg struct {
			RoomID string `json:"roomId"`
		}
		if err := json.Unmarshal(env.Data, &msg); err != nil || msg.RoomID == "" {
			c.reply(EventError, "roomId is required")
			return
		}
		if !c.hub.isMember(c, msg.RoomID) {
			c.reply(EventError, "not a member of "+msg.RoomID)
			return
		}
		_ = c.hub.emitRaw(ctx, msg.RoomID, EventNewMessage, env.Data)

	default:
		c.reply(EventError, "unknown event "+env.Event)
	}
}

func (c *Client) reply(event string, data any) {
	raw, err := json.Marshal(data)
	if err != nil {
		return
	}
	frame, err := json.Marshal(Envelope{Event: event, Data: raw})
	if err != nil {
		return
	}
	c.enqueue(frame)
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case frame := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}
