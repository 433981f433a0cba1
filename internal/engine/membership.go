package engine

import (
	"context"
	"time"

	"github.com/doodledash/server/internal/models"
	"github.com/doodledash/server/pkg/idgen"
	"github.com/doodledash/server/pkg/validate"
)

// JoinResult is the synchronous reply to a `room:join`/`room:create` command.
type JoinResult struct {
	Player     *models.Player
	Snapshot   models.RoomSnapshot
	RecentChat []models.ChatMessage
	Err        *Error
}

// join admits player into the room (spec.md §4.5): rejected outside
// lobby or once full, otherwise seated and appended to the drawer order.
func (r *Room) join(name, avatar, requestedID string) JoinResult {
	name, ok := validate.Name(name, r.cfg.Game.MaxNameLength)
	if !ok {
		return JoinResult{Err: newError(KindInvalidInput, "player name must be 1-20 characters")}
	}

	if requestedID != "" {
		if rejoined, ok := r.reconnectExisting(requestedID); ok {
			return rejoined
		}
	}

	if !r.canJoin(r.model, requestedID, name) {
		return JoinResult{Err: newError(KindNotAuthorised, "not allowed to join this room")}
	}

	var player *models.Player
	var fail *Error
	r.model.Mutate(func(m *models.Room) {
		if until, kicked := m.KickedUntil[requestedID]; kicked && time.Now().Before(until) {
			fail = newError(KindNotAuthorised, "recently kicked from this room")
			return
		}
		if m.Phase != models.PhaseLobby {
			fail = newError(KindWrongPhase, "room is not accepting new players")
			return
		}
		if len(m.Players) >= m.MaxPlayers {
			fail = newError(KindRoomFull, "room is full")
			return
		}

		id := requestedID
		if id == "" {
			id = idgen.NewPlayerID()
		}
		player = models.NewPlayer(id, name, avatar)
		m.Players[id] = player
		m.DrawerOrder = append(m.DrawerOrder, id)
		if len(m.Players) == 1 {
			m.HostPlayerID = id
			player.IsHost = true
		}
		m.LastActivity = time.Now()
	})
	if fail != nil {
		return JoinResult{Err: fail}
	}

	r.timers.cancel(timerEmptyCleanup)
	r.broadcastExcept(player.ID, models.EventPlayerJoined, models.PlayerJoinedPayload{Player: player.Snapshot()})
	r.broadcastSnapshot()
	r.persistAsync()

	return JoinResult{
		Player:     player,
		Snapshot:   r.model.Snapshot(),
		RecentChat: r.model.RecentChat(r.cfg.Game.ChatHistoryCap),
	}
}

// reconnectExisting re-associates a still-seated player with a new
// session (spec.md §4.5 "reconnect"). Returns ok=false if the id is not
// a current member, so the caller falls through to ordinary join.
func (r *Room) reconnectExisting(playerID string) (JoinResult, bool) {
	var player *models.Player
	r.model.Mutate(func(m *models.Room) {
		p, present := m.Players[playerID]
		if !present {
			return
		}
		p.SetConnected(true)
		player = p
		m.LastActivity = time.Now()
	})
	if player == nil {
		return JoinResult{}, false
	}

	r.timers.cancel(timerEmptyCleanup)
	r.broadcastSnapshot()
	return JoinResult{
		Player:     player,
		Snapshot:   r.model.Snapshot(),
		RecentChat: r.model.RecentChat(r.cfg.Game.ChatHistoryCap),
	}, true
}

// leave removes playerID from the room, promoting a new host and
// ending the turn if they were drawing (spec.md §4.5 "leave").
func (r *Room) leave(playerID string) {
	var wasHost, wasDrawer, empty bool
	var newHost *models.Player

	r.model.Mutate(func(m *models.Room) {
		if _, present := m.Players[playerID]; !present {
			return
		}
		wasHost = playerID == m.HostPlayerID
		wasDrawer = playerID == m.CurrentDrawerID

		delete(m.Players, playerID)
		delete(m.GuessedPlayers, playerID)
		pruned := m.DrawerOrder[:0]
		for _, id := range m.DrawerOrder {
			if id != playerID {
				pruned = append(pruned, id)
			}
		}
		m.DrawerOrder = pruned
		m.LastActivity = time.Now()

		if wasHost && len(m.Players) > 0 {
			newHost = earliestMember(m.Players)
			newHost.IsHost = true
			m.HostPlayerID = newHost.ID
		}
		empty = len(m.Players) == 0
	})

	if newHost != nil {
		r.broadcast(models.EventHostChanged, models.HostChangedPayload{
			NewHostID:   newHost.ID,
			NewHostName: newHost.Name,
		})
	}
	r.broadcastExcept(playerID, models.EventPlayerLeft, models.PlayerLeftPayload{PlayerID: playerID})
	r.persistAsync()

	r.model.RLock()
	phase := r.model.Phase
	r.model.RUnlock()

	if wasDrawer && phase == models.PhaseDrawing {
		r.endTurn(models.ReasonDrawerLeft)
	} else {
		r.broadcastSnapshot()
	}

	if empty {
		r.timers.after(timerEmptyCleanup, r.cfg.Game.EmptyRoomGrace, func() {
			r.enqueueTimer(func(rm *Room) { rm.cleanupIfStillEmpty() })
		})
	}
}

// disconnect marks playerID's transport as closed without evicting
// them from the room (distinct from leave - their seat and score
// persist per §3 "Lifecycle"). Mirrors leave's drawer handling; a
// disconnected host keeps host status.
func (r *Room) disconnect(playerID string) {
	var wasDrawer bool
	r.model.Mutate(func(m *models.Room) {
		p, present := m.Players[playerID]
		if !present {
			return
		}
		p.SetConnected(false)
		wasDrawer = playerID == m.CurrentDrawerID
		m.LastActivity = time.Now()
	})

	r.broadcastSnapshot()

	r.model.RLock()
	phase := r.model.Phase
	connected := 0
	for _, p := range r.model.Players {
		if p.IsConnected {
			connected++
		}
	}
	r.model.RUnlock()

	if wasDrawer && phase == models.PhaseDrawing {
		r.endTurn(models.ReasonDrawerLeft)
		return
	}
	if phase == models.PhaseDrawing && connected < r.cfg.Game.MinPlayers {
		r.endTurn(models.ReasonTooFewPlayers)
	}
}

func (r *Room) cleanupIfStillEmpty() {
	r.model.RLock()
	empty := len(r.model.Players) == 0
	r.model.RUnlock()
	if empty {
		r.Stop()
		if r.store != nil {
			go func() {
				ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
				defer cancel()
				_ = r.store.DeletePlayersByRoom(ctx, r.model.ID)
				_ = r.store.DeleteRoom(ctx, r.model.ID)
			}()
		}
		if r.onDestroyed != nil {
			r.onDestroyed()
		}
	}
}

// kick removes targetID from the room at the host's request, then
// denies targetID rejoin for a cooldown window (spec.md §9 open
// question "kick semantics").
func (r *Room) kick(requesterID, targetID string) *Error {
	r.model.RLock()
	isHost := requesterID == r.model.HostPlayerID
	_, present := r.model.Players[targetID]
	r.model.RUnlock()

	if !isHost {
		return newError(KindNotAuthorised, "only the host can kick")
	}
	if !present {
		return newError(KindInvalidInput, "player is not a member of this room")
	}

	r.model.Mutate(func(m *models.Room) {
		m.KickedUntil[targetID] = time.Now().Add(r.cfg.Game.KickRejoinCooldown)
	})
	r.sendTo(targetID, models.EventPlayerKicked, models.PlayerKickedPayload{Reason: "removed by host"})
	r.leave(targetID)
	return nil
}

// updateSettings handles host `room:settings`, valid only in lobby.
func (r *Room) updateSettings(playerID string, drawTime, maxRounds *int) *Error {
	var fail *Error
	r.model.Mutate(func(m *models.Room) {
		if playerID != m.HostPlayerID {
			fail = newError(KindNotAuthorised, "only the host can change settings")
			return
		}
		if m.Phase != models.PhaseLobby {
			fail = newError(KindWrongPhase, "settings can only change in the lobby")
			return
		}
		if drawTime != nil {
			if !validate.DrawTime(*drawTime, r.cfg.Game.DrawTimeMin, r.cfg.Game.DrawTimeMax) {
				fail = newError(KindInvalidInput, "draw time out of range")
				return
			}
			m.DrawTime = *drawTime
		}
		if maxRounds != nil {
			if !validate.MaxRounds(*maxRounds, r.cfg.Game.MaxRoundsLimit) {
				fail = newError(KindInvalidInput, "max rounds out of range")
				return
			}
			m.MaxRounds = *maxRounds
		}
	})
	if fail != nil {
		return fail
	}
	r.broadcastSnapshot()
	return nil
}

func earliestMember(players map[string]*models.Player) *models.Player {
	var earliest *models.Player
	for _, p := range players {
		if earliest == nil || p.JoinedAt.Before(earliest.JoinedAt) {
			earliest = p
		}
	}
	return earliest
}
