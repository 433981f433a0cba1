// Package transport adapts the engine's room actors to the outside
// world: a websocket hub fanning events out to connected players, and a
// router translating inbound envelopes into engine.Room command calls.
// Grounded on the teacher's pkg/websocket/hub.go and client.go, adapted
// from a single process-wide broadcast surface keyed by user ID to a
// per-room, per-player one that implements engine.Broadcaster.
package transport

import (
	"log"
	"sync"

	"github.com/doodledash/server/internal/models"
)

// Hub tracks every connected client, indexed by room so a room's engine
// actor can reach its members without knowing anything about websockets.
// Grounded on the teacher's Hub.clientsByRoom map, narrowed from
// *Client-keyed sets to playerID-keyed maps since the engine addresses
// players by id, never by connection.
type Hub struct {
	mu    sync.RWMutex
	rooms map[string]map[string]*Client // roomID -> playerID -> client
}

// NewHub constructs an empty hub.
func NewHub() *Hub {
	return &Hub{rooms: make(map[string]map[string]*Client)}
}

// Attach registers client under roomID/playerID, replacing (and closing)
// any prior connection for that player - the same "reconnect kicks the
// old session" policy as the teacher's registerClient.
func (h *Hub) Attach(roomID, playerID string, client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	members, ok := h.rooms[roomID]
	if !ok {
		members = make(map[string]*Client)
		h.rooms[roomID] = members
	}
	if old, exists := members[playerID]; exists && old != client {
		old.closeSend()
	}
	members[playerID] = client
}

// Detach removes client from roomID/playerID only if it is still the
// current connection for that player (a later reconnect must not be
// evicted by a stale disconnect racing in behind it).
func (h *Hub) Detach(roomID, playerID string, client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	members, ok := h.rooms[roomID]
	if !ok {
		return
	}
	if current, exists := members[playerID]; !exists || current != client {
		return
	}
	delete(members, playerID)
	if len(members) == 0 {
		delete(h.rooms, roomID)
	}
}

// BroadcastRoom implements engine.Broadcaster.
func (h *Hub) BroadcastRoom(roomID string, eventType models.EventType, payload interface{}) {
	h.send(roomID, "", eventType, payload)
}

// BroadcastRoomExcept implements engine.Broadcaster.
func (h *Hub) BroadcastRoomExcept(roomID, exceptPlayerID string, eventType models.EventType, payload interface{}) {
	h.send(roomID, exceptPlayerID, eventType, payload)
}

// SendToPlayer implements engine.Broadcaster.
func (h *Hub) SendToPlayer(roomID, playerID string, eventType models.EventType, payload interface{}) {
	env, err := models.NewEnvelope(eventType, payload)
	if err != nil {
		log.Printf("transport: marshal %s for player %s: %v", eventType, playerID, err)
		return
	}
	raw, err := env.ToJSON()
	if err != nil {
		log.Printf("transport: encode %s for player %s: %v", eventType, playerID, err)
		return
	}

	h.mu.RLock()
	client, ok := h.rooms[roomID][playerID]
	h.mu.RUnlock()
	if ok {
		client.deliver(raw)
	}
}

func (h *Hub) send(roomID, exceptPlayerID string, eventType models.EventType, payload interface{}) {
	env, err := models.NewEnvelope(eventType, payload)
	if err != nil {
		log.Printf("transport: marshal %s for room %s: %v", eventType, roomID, err)
		return
	}
	raw, err := env.ToJSON()
	if err != nil {
		log.Printf("transport: encode %s for room %s: %v", eventType, roomID, err)
		return
	}

	h.mu.RLock()
	members := h.rooms[roomID]
	clients := make([]*Client, 0, len(members))
	for playerID, client := range members {
		if playerID == exceptPlayerID {
			continue
		}
		clients = append(clients, client)
	}
	h.mu.RUnlock()

	for _, client := range clients {
		client.deliver(raw)
	}
}

// ShutdownAll notifies every connected client the server is going down
// (spec.md §4.7 "Graceful shutdown") and closes their connections.
func (h *Hub) ShutdownAll(message string) {
	env, err := models.NewEnvelope(models.EventServerShutdown, models.ServerShutdownPayload{Message: message})
	if err != nil {
		log.Printf("transport: marshal shutdown notice: %v", err)
		return
	}
	raw, err := env.ToJSON()
	if err != nil {
		log.Printf("transport: encode shutdown notice: %v", err)
		return
	}

	h.mu.RLock()
	var clients []*Client
	for _, members := range h.rooms {
		for _, client := range members {
			clients = append(clients, client)
		}
	}
	h.mu.RUnlock()

	for _, client := range clients {
		client.deliver(raw)
		client.closeSend()
	}
}
