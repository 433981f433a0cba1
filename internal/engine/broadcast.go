package engine

import "github.com/doodledash/server/internal/models"

// Broadcaster is the room engine's only outbound capability: sending
// room-wide, room-except-one, or single-player events. The transport
// package implements it; the engine never reaches into a websocket
// connection directly, keeping recipient filtering a typed capability on
// the send path rather than an ad-hoc per-event check (spec.md §9).
type Broadcaster interface {
	BroadcastRoom(roomID string, eventType models.EventType, payload interface{})
	BroadcastRoomExcept(roomID, exceptPlayerID string, eventType models.EventType, payload interface{})
	SendToPlayer(roomID, playerID string, eventType models.EventType, payload interface{})
}

func (r *Room) broadcast(eventType models.EventType, payload interface{}) {
	r.broadcaster.BroadcastRoom(r.model.ID, eventType, payload)
}

func (r *Room) broadcastExcept(exceptPlayerID string, eventType models.EventType, payload interface{}) {
	r.broadcaster.BroadcastRoomExcept(r.model.ID, exceptPlayerID, eventType, payload)
}

func (r *Room) sendTo(playerID string, eventType models.EventType, payload interface{}) {
	r.broadcaster.SendToPlayer(r.model.ID, playerID, eventType, payload)
}

// broadcastSnapshot re-emits the authoritative room:sync projection. Every
// state-changing handler ends by calling this (spec.md §4.6).
func (r *Room) broadcastSnapshot() {
	r.broadcast(models.EventRoomSync, r.model.Snapshot())
}
