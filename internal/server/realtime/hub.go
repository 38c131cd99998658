// Package realtime relays room events between websocket clients.
//
// Frames are JSON objects {"event": ..., "data": ...}. Clients send
// join-room, leave-room and send-message; the hub answers send-message with
// new-message to every member of the room. Server components push events to
// rooms with Emit. Authenticated sockets are placed in the room user:<id>
// and only they may join it.
//
// Nothing is persisted or acknowledged. A client whose send buffer is full
// is disconnected.
package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"

	"github.com/dmitrijs2005/academyhub/internal/logging"
	"github.com/dmitrijs2005/academyhub/internal/server/metrics"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Event names.
const (
	EventJoinRoom        = "join-room"
	EventLeaveRoom       = "leave-room"
	EventSendMessage     = "send-message"
	EventNewMessage      = "new-message"
	EventNewNotification = "new-notification"
	EventError           = "error"
)

const userRoomPrefix = "user:"

var ErrRoomForbidden = errors.New("room forbidden")

// UserRoom is the private room of a user.
func UserRoom(userID string) string {
	return userRoomPrefix + userID
}

// Envelope is the wire frame.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Authenticator resolves the user behind an upgrade request; "" means anonymous.
type Authenticator func(r *http.Request) string

type Hub struct {
	mu      sync.RWMutex
	rooms   map[string]map[*Client]struct{}
	clients map[*Client]struct{}

	id       string
	broker   Broker
	auth     Authenticator
	upgrader websocket.Upgrader
	logger   logging.Logger
}

type Option func(*Hub)

// WithBroker fans events out to other server instances through b.
func WithBroker(b Broker) Option {
	return func(h *Hub) { h.broker = b }
}

func WithAuthenticator(a Authenticator) Option {
	return func(h *Hub) { h.auth = a }
}

// WithAnyOrigin accepts upgrades from any Origin, for development setups
// where the UI is served from another port.
func WithAnyOrigin() Option {
	return func(h *Hub) {
		h.upgrader.CheckOrigin = func(*http.Request) bool { return true }
	}
}

func NewHub(logger logging.Logger, opts ...Option) *Hub {
	h := &Hub{
		rooms:   make(map[string]map[*Client]struct{}),
		clients: make(map[*Client]struct{}),
		id:      uuid.NewString(),
		logger:  logger.With("module", "realtime"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
	for _, o := range opts {
		o(h)
	}
	return h
}

// ServeHTTP upgrades the request and serves the socket until it closes.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	userID := ""
	if h.auth != nil {
		userID = h.auth(r)
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Debug(r.Context(), "websocket upgrade failed", "error", err)
		return
	}

	c := newClient(h, conn, userID)
	h.register(c)

	go c.writePump()
	c.readPump()
}

func (h *Hub) register(c *Client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()

	metrics.RealtimeConnected()

	if c.userID != "" {
		_ = h.Join(c, UserRoom(c.userID))
	}
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, c)
	for room := range c.rooms {
		h.removeFromRoomLocked(c, room)
	}
	h.mu.Unlock()

	metrics.RealtimeDisconnected()
	c.close()
}

func (h *Hub) removeFromRoomLocked(c *Client, room string) {
	members := h.rooms[room]
	delete(members, c)
	if len(members) == 0 {
		delete(h.rooms, room)
	}
	delete(c.rooms, room)
}

// CanJoin reports whether userID may enter room.
func CanJoin(userID, room string) bool {
	if room == "" {
		return false
	}
	if strings.HasPrefix(room, userRoomPrefix) {
		return userID != "" && room == UserRoom(userID)
	}
	return true
}

// Join adds c to room.
func (h *Hub) Join(c *Client, room string) error {
	if !CanJoin(c.userID, room) {
		return ErrRoomForbidden
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[c]; !ok {
		return nil
	}
	members, ok := h.rooms[room]
	if !ok {
		members = make(map[*Client]struct{})
		h.rooms[room] = members
	}
	members[c] = struct{}{}
	c.rooms[room] = struct{}{}
	return nil
}

func (h *Hub) Leave(c *Client, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := c.rooms[room]; ok {
		h.removeFromRoomLocked(c, room)
	}
}

func (h *Hub) isMember(c *Client, room string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := c.rooms[room]
	return ok
}

// RoomSize returns the number of local members of room.
func (h *Hub) RoomSize(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

// Emit sends event with data to every member of room, on this instance and,
// with a broker, on every other instance.
func (h *Hub) Emit(ctx context.Context, room, event string, data any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}
	return h.emitRaw(ctx, room, event, raw)
}

func (h *Hub) emitRaw(ctx context.Context, room, event string, data json.RawMessage) error {
	frame, err := json.Marshal(Envelope{Event: event, Data: data})
	if err != nil {
		return err
	}

	h.deliver(room, frame)
	metrics.RecordRealtimeEvent(event)

	if h.broker != nil {
		if err := h.broker.Publish(ctx, BrokerMessage{Origin: h.id, Room: room, Frame: frame}); err != nil {
			h.logger.Warn(ctx, "broker publish failed", "room", room, "error", err)
			return err
		}
	}
	return nil
}

// deliver queues frame for local members of room and drops clients that
// cannot keep up.
func (h *Hub) deliver(room string, frame []byte) {
	var slow []*Client

	h.mu.RLock()
	for c := range h.rooms[room] {
		if !c.enqueue(frame) {
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		metrics.RealtimeDropped()
		h.unregister(c)
	}
}

// Run relays broker messages from other instances until ctx is done, then
// disconnects every client. Without a broker it only waits for ctx.
func (h *Hub) Run(ctx context.Context) error {
	var err error
	if h.broker != nil {
		err = h.broker.Subscribe(ctx, func(m BrokerMessage) {
			if m.Origin == h.id {
				return
			}
			h.deliver(m.Room, m.Frame)
		})
	} else {
		<-ctx.Done()
	}

	h.closeAll()

	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (h *Hub) closeAll() {
	h.mu.RLock()
	all := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		all = append(all, c)
	}
	h.mu.RUnlock()

	for _, c := range all {
		h.unregister(c)
	}
}
