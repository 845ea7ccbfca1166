// Package ws carries the session protocol over websockets. Each connected
// client binds to one world as a player or a director; the hub fans
// service broadcasts out to the right audience and feeds inbound commands
// to the handler.
package ws

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// writeWait bounds a single websocket write.
const writeWait = 10 * time.Second

// Role distinguishes what a connection may do and which broadcasts it
// receives.
type Role string

const (
	RolePlayer   Role = "player"
	RoleDirector Role = "director"
)

// ParseRole maps the textual role form, defaulting to player.
func ParseRole(s string) Role {
	if s == string(RoleDirector) {
		return RoleDirector
	}
	return RolePlayer
}

// Envelope is the wire frame for every message in both directions.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type client struct {
	id      string
	worldID string
	role    Role
	conn    *websocket.Conn
	mu      sync.Mutex
}

// write sends one websocket message guarded by the client's write mutex
// and deadline.
func (c *client) write(data []byte) error {
	if c == nil || c.conn == nil {
		return errors.New("client closed")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// messageHandler consumes one inbound frame from a client.
type messageHandler interface {
	handle(hub *Hub, c *client, raw []byte)
}

// Hub tracks connected clients and implements the services' Broadcaster.
type Hub struct {
	mu       sync.Mutex
	clients  map[string]*client
	handler  messageHandler
	logger   *log.Logger
	upgrader websocket.Upgrader
	nextID   atomic.Uint64
}

// NewHub builds an empty hub. Attach a handler before serving.
func NewHub() *Hub {
	return &Hub{
		clients: make(map[string]*client),
		logger:  log.Default(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
		},
	}
}

// SetHandler wires the command dispatcher. The hub and the services
// reference each other, so the handler attaches after construction.
func (h *Hub) SetHandler(handler messageHandler) {
	h.handler = handler
}

// ServeHTTP upgrades a connection and pumps its messages. The world and
// role bind from query parameters and are fixed for the connection's life.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	worldID := r.URL.Query().Get("world")
	if worldID == "" {
		http.Error(w, "world query parameter is required", http.StatusBadRequest)
		return
	}
	role := ParseRole(r.URL.Query().Get("role"))

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Printf("ws: upgrade: %v", err)
		return
	}

	c := &client{
		id:      fmt.Sprintf("c%d", h.nextID.Add(1)),
		worldID: worldID,
		role:    role,
		conn:    conn,
	}
	h.add(c)
	defer h.remove(c)

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Printf("ws: read from %s: %v", c.id, err)
			}
			return
		}
		if h.handler != nil {
			h.handler.handle(h, c, raw)
		}
	}
}

func (h *Hub) add(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c.id] = c
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	delete(h.clients, c.id)
	h.mu.Unlock()
	_ = c.conn.Close()
}

// BroadcastToWorld delivers a payload to every client bound to the world.
func (h *Hub) BroadcastToWorld(worldID, messageType string, payload any) {
	h.broadcast(worldID, messageType, payload, func(c *client) bool { return true })
}

// BroadcastToDirectors delivers a payload to the world's directors only.
func (h *Hub) BroadcastToDirectors(worldID, messageType string, payload any) {
	h.broadcast(worldID, messageType, payload, func(c *client) bool { return c.role == RoleDirector })
}

// HasDirector reports whether at least one director is connected to the
// world. Challenge outcomes are only gated while this holds.
func (h *Hub) HasDirector(worldID string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, c := range h.clients {
		if c.worldID == worldID && c.role == RoleDirector {
			return true
		}
	}
	return false
}

func (h *Hub) broadcast(worldID, messageType string, payload any, match func(*client) bool) {
	data, err := encodeEnvelope(messageType, payload)
	if err != nil {
		h.logger.Printf("ws: encode %s: %v", messageType, err)
		return
	}

	h.mu.Lock()
	targets := make([]*client, 0, len(h.clients))
	for _, c := range h.clients {
		if c.worldID == worldID && match(c) {
			targets = append(targets, c)
		}
	}
	h.mu.Unlock()

	for _, c := range targets {
		if err := c.write(data); err != nil {
			h.logger.Printf("ws: write %s to %s: %v", messageType, c.id, err)
			h.remove(c)
		}
	}
}

// send delivers a payload to one client, for command replies and errors.
func (h *Hub) send(c *client, messageType string, payload any) {
	data, err := encodeEnvelope(messageType, payload)
	if err != nil {
		h.logger.Printf("ws: encode %s: %v", messageType, err)
		return
	}
	if err := c.write(data); err != nil {
		h.logger.Printf("ws: write %s to %s: %v", messageType, c.id, err)
		h.remove(c)
	}
}

func encodeEnvelope(messageType string, payload any) ([]byte, error) {
	var raw json.RawMessage
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		raw = encoded
	}
	return json.Marshal(Envelope{Type: messageType, Payload: raw})
}
