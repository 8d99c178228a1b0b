// Package realtime carries the websocket layer: one Client per physical
// connection and a Hub that fans typed events out to session rooms.
package realtime

import (
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// EventPublisher publishes a room event for other instances (cross-instance
// broadcast over Redis). Optional; nil disables the bridge.
type EventPublisher interface {
	PublishGameEvent(origin, gameName string, ev Event) error
}

// EventSubscriber subscribes to a game's event channel and invokes handler
// for events published by other instances.
type EventSubscriber interface {
	SubscribeGame(gameName string, handler func(origin string, ev Event)) (cancel func(), err error)
}

// Hub tracks live connections and gameName -> room membership, and delivers
// events. Delivery is best-effort: a connection gone by send time is skipped.
// Per-connection ordering is FIFO (single buffered channel drained by one
// writer goroutine).
type Hub struct {
	// instance identifies this process on the Redis bridge so it can skip
	// its own published events.
	instance string

	mu    sync.RWMutex
	conns map[string]*Client
	rooms map[string]map[string]*Client // gameName -> connID -> client
	subs  map[string]func()             // cancel Redis subscription per room

	logger *zap.Logger
	pub    EventPublisher
	sub    EventSubscriber
}

// NewHub creates a hub. pub/sub may be nil for single-instance deployments.
func NewHub(logger *zap.Logger, pub EventPublisher, sub EventSubscriber) *Hub {
	return &Hub{
		instance: uuid.New().String(),
		conns:    make(map[string]*Client),
		rooms:    make(map[string]map[string]*Client),
		subs:     make(map[string]func()),
		logger:   logger,
		pub:      pub,
		sub:      sub,
	}
}

// Register adds a connection to the hub.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	h.conns[c.ID] = c
	h.mu.Unlock()
	h.logger.Debug("connection registered", zap.String("conn_id", c.ID), zap.String("role", string(c.Role)))
}

// Unregister removes a connection from the hub and any room it is in.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	delete(h.conns, c.ID)
	for game, room := range h.rooms {
		if _, ok := room[c.ID]; ok {
			delete(room, c.ID)
			h.dropRoomIfEmptyLocked(game)
		}
	}
	h.mu.Unlock()
	h.logger.Debug("connection unregistered", zap.String("conn_id", c.ID))
}

// Alive reports whether the connection is still registered.
func (h *Hub) Alive(connID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.conns[connID]
	return ok
}

// JoinRoom adds a connection to a game's room. The first member starts the
// Redis subscription for the game.
func (h *Hub) JoinRoom(gameName, connID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	c, ok := h.conns[connID]
	if !ok {
		return
	}
	if h.rooms[gameName] == nil {
		h.rooms[gameName] = make(map[string]*Client)
		if h.sub != nil {
			cancel, err := h.sub.SubscribeGame(gameName, func(origin string, ev Event) {
				if origin == h.instance {
					return
				}
				h.BroadcastToRoom(gameName, ev)
			})
			if err != nil {
				h.logger.Warn("room subscribe failed", zap.String("game", gameName), zap.Error(err))
			} else {
				h.subs[gameName] = cancel
			}
		}
	}
	h.rooms[gameName][connID] = c
}

// LeaveRoom removes a connection from a game's room.
func (h *Hub) LeaveRoom(gameName, connID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if room, ok := h.rooms[gameName]; ok {
		delete(room, connID)
		h.dropRoomIfEmptyLocked(gameName)
	}
}

// DestroyRoom empties a game's room and cancels its Redis subscription.
func (h *Hub) DestroyRoom(gameName string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.rooms, gameName)
	if cancel, ok := h.subs[gameName]; ok {
		cancel()
		delete(h.subs, gameName)
	}
}

func (h *Hub) dropRoomIfEmptyLocked(gameName string) {
	if len(h.rooms[gameName]) != 0 {
		return
	}
	delete(h.rooms, gameName)
	if cancel, ok := h.subs[gameName]; ok {
		cancel()
		delete(h.subs, gameName)
	}
}

// Send delivers an event to a single connection. No-op if the connection is
// gone or its buffer is full.
func (h *Hub) Send(connID string, ev Event) {
	h.mu.RLock()
	c := h.conns[connID]
	h.mu.RUnlock()
	if c == nil {
		return
	}
	c.enqueue(ev)
}

// BroadcastToRoom delivers an event to every connection in a game's room,
// minus the excluded origins (local instance only).
func (h *Hub) BroadcastToRoom(gameName string, ev Event, exclude ...string) {
	h.mu.RLock()
	room := h.rooms[gameName]
	targets := make([]*Client, 0, len(room))
	for id, c := range room {
		if contains(exclude, id) {
			continue
		}
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	for _, c := range targets {
		c.enqueue(ev)
	}
}

// BroadcastToRoomAndPublish delivers locally and publishes to Redis so other
// instances can deliver to their local members of the same room.
func (h *Hub) BroadcastToRoomAndPublish(gameName string, ev Event, exclude ...string) {
	h.BroadcastToRoom(gameName, ev, exclude...)
	if h.pub != nil {
		if err := h.pub.PublishGameEvent(h.instance, gameName, ev); err != nil {
			h.logger.Warn("event publish failed", zap.String("game", gameName), zap.Error(err))
		}
	}
}

// PublishToRoom publishes an event to Redis only, without local delivery.
// Used when every local recipient is handed the event through its
// forced-close path instead.
func (h *Hub) PublishToRoom(gameName string, ev Event) {
	if h.pub == nil {
		return
	}
	if err := h.pub.PublishGameEvent(h.instance, gameName, ev); err != nil {
		h.logger.Warn("event publish failed", zap.String("game", gameName), zap.Error(err))
	}
}

// CloseConn force-closes a connection's socket after flushing its queued
// events. Used when a player's live connection migrates to a newer one.
func (h *Hub) CloseConn(connID string) {
	h.mu.RLock()
	c := h.conns[connID]
	h.mu.RUnlock()
	if c != nil {
		c.shutdown(nil)
	}
}

// CloseConnWith force-closes a connection after flushing its queued events
// and delivering ev last. The final event bypasses the send buffer, so it is
// delivered even to a connection whose buffer is saturated.
func (h *Hub) CloseConnWith(connID string, ev Event) {
	h.mu.RLock()
	c := h.conns[connID]
	h.mu.RUnlock()
	if c != nil {
		c.shutdown(&ev)
	}
}

func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
