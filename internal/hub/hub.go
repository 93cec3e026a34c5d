// Package hub owns every live client connection, maps clients to table
// rooms, and fans protocol envelopes out with backpressure: a slow
// consumer is closed rather than allowed to stall its room.
package hub

import (
	"sync"

	"github.com/charmbracelet/log"

	"github.com/cardroom/cardroom/internal/protocol"
)

// DisconnectFunc observes a connection going away. The server uses it
// to feed the reconnection ledger.
type DisconnectFunc func(c *Client)

// Hub is the shared connection registry. Membership and fan-out are
// serialized under one lock; delivery order within a room is the order
// sends were accepted.
type Hub struct {
	logger  *log.Logger
	metrics *Metrics

	onDisconnect DisconnectFunc

	mu      sync.RWMutex
	clients map[string]*Client            // by connection id
	byUser  map[string]*Client            // by authenticated user id
	rooms   map[string]map[string]*Client // room -> connection id -> client
}

// New builds an empty hub.
func New(logger *log.Logger, metrics *Metrics) *Hub {
	return &Hub{
		logger:  logger.WithPrefix("hub"),
		metrics: metrics,
		clients: make(map[string]*Client),
		byUser:  make(map[string]*Client),
		rooms:   make(map[string]map[string]*Client),
	}
}

// OnDisconnect installs the disconnect observer. Must be called before
// the hub starts accepting connections.
func (h *Hub) OnDisconnect(fn DisconnectFunc) { h.onDisconnect = fn }

// Register adds a connection.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	h.clients[c.id] = c
	h.mu.Unlock()
	h.metrics.ConnectedClients.Inc()
	h.logger.Debug("client registered", "client", c.id)
}

// Unregister removes a connection, leaves its room, and closes its
// send queue. Safe to call more than once.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	_, known := h.clients[c.id]
	if known {
		delete(h.clients, c.id)
		if uid := c.UserID(); uid != "" && h.byUser[uid] == c {
			delete(h.byUser, uid)
		}
		h.removeFromRoomLocked(c)
	}
	h.mu.Unlock()

	if !known {
		return
	}
	h.metrics.ConnectedClients.Dec()
	c.closeSend()
	h.logger.Debug("client unregistered", "client", c.id)
	if h.onDisconnect != nil {
		h.onDisconnect(c)
	}
}

// bindUser indexes the client under its authenticated user id. A
// previous connection for the same user is superseded and dropped.
func (h *Hub) bindUser(c *Client, userID string) {
	h.mu.Lock()
	prev := h.byUser[userID]
	h.byUser[userID] = c
	h.mu.Unlock()

	if prev != nil && prev != c {
		h.logger.Info("superseding connection", "user", userID, "old", prev.id, "new", c.id)
		h.Unregister(prev)
	}
}

// JoinRoom moves the client into a table room. A client is in at most
// one table room at a time; any previous room is left first.
func (h *Hub) JoinRoom(c *Client, room string) {
	h.mu.Lock()
	h.removeFromRoomLocked(c)
	members, ok := h.rooms[room]
	if !ok {
		members = make(map[string]*Client)
		h.rooms[room] = members
	}
	members[c.id] = c
	h.mu.Unlock()
	c.setRoom(room)
}

// LeaveRoom removes the client from its current room.
func (h *Hub) LeaveRoom(c *Client) {
	h.mu.Lock()
	h.removeFromRoomLocked(c)
	h.mu.Unlock()
}

func (h *Hub) removeFromRoomLocked(c *Client) {
	room := c.Room()
	if room == "" {
		return
	}
	if members, ok := h.rooms[room]; ok {
		delete(members, c.id)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
	c.setRoom("")
}

// ClientByUser looks up the live connection for a user id.
func (h *Hub) ClientByUser(userID string) *Client {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.byUser[userID]
}

// Count returns the number of registered connections.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// RoomSize returns the number of connections in a room.
func (h *Hub) RoomSize(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

// ToUser unicasts to a user's live connection; reports whether one
// existed.
func (h *Hub) ToUser(userID string, env protocol.Envelope) bool {
	c := h.ClientByUser(userID)
	if c == nil {
		return false
	}
	h.deliver(c, env)
	return true
}

// ToRoom fans an envelope out to every connection in the room.
func (h *Hub) ToRoom(room string, env protocol.Envelope) {
	frame, err := protocol.Encode(env)
	if err != nil {
		h.logger.Error("encode room frame", "type", env.Type, "error", err)
		return
	}
	for _, c := range h.roomMembers(room) {
		h.deliverFrame(c, frame)
	}
}

// ToRoomExcept fans out to the room, skipping one user (typically the
// actor who already got a private variant).
func (h *Hub) ToRoomExcept(room, exceptUserID string, env protocol.Envelope) {
	frame, err := protocol.Encode(env)
	if err != nil {
		h.logger.Error("encode room frame", "type", env.Type, "error", err)
		return
	}
	for _, c := range h.roomMembers(room) {
		if c.UserID() == exceptUserID {
			continue
		}
		h.deliverFrame(c, frame)
	}
}

// Broadcast sends to every registered connection regardless of room.
func (h *Hub) Broadcast(env protocol.Envelope) {
	frame, err := protocol.Encode(env)
	if err != nil {
		h.logger.Error("encode broadcast frame", "type", env.Type, "error", err)
		return
	}
	h.mu.RLock()
	targets := make([]*Client, 0, len(h.clients))
	for _, c := range h.clients {
		targets = append(targets, c)
	}
	h.mu.RUnlock()
	for _, c := range targets {
		h.deliverFrame(c, frame)
	}
}

func (h *Hub) roomMembers(room string) []*Client {
	h.mu.RLock()
	defer h.mu.RUnlock()
	members := make([]*Client, 0, len(h.rooms[room]))
	for _, c := range h.rooms[room] {
		members = append(members, c)
	}
	return members
}

func (h *Hub) deliver(c *Client, env protocol.Envelope) {
	if !c.Send(env) {
		h.dropSlow(c)
	}
}

func (h *Hub) deliverFrame(c *Client, frame []byte) {
	if !c.enqueue(frame) {
		h.dropSlow(c)
	}
}

func (h *Hub) dropSlow(c *Client) {
	h.metrics.SlowClientDrops.Inc()
	h.logger.Warn("dropping slow client", "client", c.id, "user", c.UserID())
	h.Unregister(c)
}
