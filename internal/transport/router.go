package transport

import (
	"log"

	"github.com/doodledash/server/internal/config"
	"github.com/doodledash/server/internal/engine"
	"github.com/doodledash/server/internal/models"
	"github.com/doodledash/server/internal/registry"
)

// Router translates inbound envelopes into engine.Room command calls and
// wires a client into the hub once it has a seat. Grounded on the
// teacher's internal/handlers/websocket.go HandleWebSocketMessage
// switch, generalised from a service-layer RoomManager/GameEngine pair
// to the engine package's own Room actor API.
type Router struct {
	hub *Hub
	reg *registry.Registry
	cfg *config.Config
}

// NewRouter builds the dispatcher shared by every connection.
func NewRouter(hub *Hub, reg *registry.Registry, cfg *config.Config) *Router {
	return &Router{hub: hub, reg: reg, cfg: cfg}
}

func (rt *Router) dispatch(c *Client, env *models.Envelope) {
	switch env.Type {
	case models.EventCreateRoom:
		rt.handleCreateRoom(c, env)
	case models.EventJoinRoom:
		rt.handleJoinRoom(c, env)
	case models.EventLeaveRoom:
		rt.handleLeaveRoom(c)
	case models.EventRoomSettings:
		rt.withRoom(c, func(room *engine.Room) *engine.Error {
			var payload models.RoomSettingsPayload
			if err := env.Unmarshal(&payload); err != nil {
				return engine.NewError(engine.KindInvalidInput, "malformed settings payload")
			}
			return room.UpdateSettings(c.playerID, payload.DrawTime, payload.MaxRounds)
		})
	case models.EventStartGame:
		rt.withRoom(c, func(room *engine.Room) *engine.Error {
			return room.StartGame(c.playerID)
		})
	case models.EventSelectWord:
		rt.withRoom(c, func(room *engine.Room) *engine.Error {
			var payload models.SelectWordPayload
			if err := env.Unmarshal(&payload); err != nil {
				return engine.NewError(engine.KindInvalidInput, "malformed word selection")
			}
			return room.SelectWord(c.playerID, payload.Word)
		})
	case models.EventPlayAgain:
		rt.withRoom(c, func(room *engine.Room) *engine.Error {
			return room.PlayAgain(c.playerID)
		})
	case models.EventChatMessage:
		rt.withRoom(c, func(room *engine.Room) *engine.Error {
			var payload models.ChatMessagePayload
			if err := env.Unmarshal(&payload); err != nil {
				return engine.NewError(engine.KindInvalidInput, "malformed chat payload")
			}
			return room.Chat(c.playerID, payload.Message)
		})
	case models.EventDrawStroke, models.EventDrawClear, models.EventDrawUndo:
		rt.withRoom(c, func(room *engine.Room) *engine.Error {
			return room.Stroke(c.playerID, env.Type, models.DrawStrokePayload(env.Data))
		})
	case models.EventKickPlayer:
		rt.withRoom(c, func(room *engine.Room) *engine.Error {
			var payload models.KickPlayerPayload
			if err := env.Unmarshal(&payload); err != nil {
				return engine.NewError(engine.KindInvalidInput, "malformed kick payload")
			}
			return room.Kick(c.playerID, payload.PlayerID)
		})
	default:
		c.sendError("unknown_event", "unrecognised message type: "+string(env.Type))
	}
}

func (rt *Router) handleCreateRoom(c *Client, env *models.Envelope) {
	if c.roomID != "" {
		c.sendError("already_in_room", "leave the current room before creating another")
		return
	}
	var payload models.CreateRoomPayload
	if err := env.Unmarshal(&payload); err != nil {
		c.sendError("invalid_input", "malformed room creation payload")
		return
	}

	room, host, err := rt.reg.CreateRoom(payload.PlayerName, payload.Avatar, payload.Settings)
	if err != nil {
		c.sendError("room_creation_failed", err.Error())
		return
	}

	rt.seat(c, room, host.ID)
	rt.hub.SendToPlayer(room.ID(), host.ID, models.EventRoomSync, room.Model().Snapshot())
}

func (rt *Router) handleJoinRoom(c *Client, env *models.Envelope) {
	if c.roomID != "" {
		c.sendError("already_in_room", "leave the current room before joining another")
		return
	}
	var payload models.JoinRoomPayload
	if err := env.Unmarshal(&payload); err != nil {
		c.sendError("invalid_input", "malformed join payload")
		return
	}

	room, ok := rt.reg.LookupByCode(payload.RoomCode)
	if !ok {
		c.sendError("room_not_found", "no room with that code")
		return
	}

	result := room.Join(payload.PlayerName, payload.Avatar, payload.PlayerID)
	if result.Err != nil {
		c.sendError(string(result.Err.Kind), result.Err.Message)
		return
	}

	rt.seat(c, room, result.Player.ID)
	rt.hub.SendToPlayer(room.ID(), result.Player.ID, models.EventRoomSync, result.Snapshot)
	for _, msg := range result.RecentChat {
		rt.hub.SendToPlayer(room.ID(), result.Player.ID, models.EventChatMessage, msg)
	}
}

func (rt *Router) seat(c *Client, room *engine.Room, playerID string) {
	c.roomID = room.ID()
	c.playerID = playerID
	rt.hub.Attach(room.ID(), playerID, c)
}

func (rt *Router) handleLeaveRoom(c *Client) {
	if c.roomID == "" {
		c.sendError("not_in_room", "not currently in a room")
		return
	}
	room, ok := rt.reg.LookupByID(c.roomID)
	if ok {
		room.Leave(c.playerID)
		rt.hub.Detach(room.ID(), c.playerID, c)
	}
	c.roomID = ""
	c.playerID = ""
}

// handleDisconnect is invoked once from Client.ReadPump's deferred
// cleanup: the player's seat persists (spec.md §3 "Lifecycle"), only
// their transport goes away.
func (rt *Router) handleDisconnect(c *Client) {
	if c.roomID == "" {
		return
	}
	room, ok := rt.reg.LookupByID(c.roomID)
	if ok {
		room.Disconnect(c.playerID)
		rt.hub.Detach(room.ID(), c.playerID, c)
	}
}

func (rt *Router) withRoom(c *Client, fn func(*engine.Room) *engine.Error) {
	if c.roomID == "" {
		c.sendError("not_in_room", "not currently in a room")
		return
	}
	room, ok := rt.reg.LookupByID(c.roomID)
	if !ok {
		c.sendError("room_not_found", "room no longer exists")
		return
	}
	if err := fn(room); err != nil {
		c.sendError(string(err.Kind), err.Message)
		log.Printf("transport: command rejected for player %s: %s", c.playerID, err.Message)
	}
}
