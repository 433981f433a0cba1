// Package registry is the in-memory room directory: it indexes live
// engine.Room actors by id and by code, creates and rehydrates rooms,
// and destroys them. Grounded on the teacher's RoomManager
// (internal/services/room_manager.go), generalised from holding plain
// *models.Room values to holding *engine.Room actors that must also be
// started/stopped.
package registry

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/doodledash/server/internal/config"
	"github.com/doodledash/server/internal/engine"
	"github.com/doodledash/server/internal/models"
	"github.com/doodledash/server/internal/store"
	"github.com/doodledash/server/internal/words"
	"github.com/doodledash/server/pkg/idgen"
)

// Registry owns the live map of rooms. Only the map shape (insert,
// delete, lookup) is guarded by mu; a room's own contents are guarded
// by that room's actor (spec.md §5 "Shared resource policy").
type Registry struct {
	mu        sync.RWMutex
	byID      map[string]*engine.Room
	byCode    map[string]*engine.Room
	cfg       *config.Config
	catalogue *words.Catalogue
	store     store.Store
	broadcast engine.Broadcaster
	canJoin   engine.CanJoinFunc
}

// New constructs an empty registry. broadcaster is wired in once the
// transport adapter exists, since rooms need it to emit events.
func New(cfg *config.Config, catalogue *words.Catalogue, st store.Store, broadcaster engine.Broadcaster, canJoin engine.CanJoinFunc) *Registry {
	return &Registry{
		byID:      make(map[string]*engine.Room),
		byCode:    make(map[string]*engine.Room),
		cfg:       cfg,
		catalogue: catalogue,
		store:     st,
		broadcast: broadcaster,
		canJoin:   canJoin,
	}
}

const maxCodeAttempts = 100

// CreateRoom allocates a room id and a collision-free code, seats host
// as the sole member, and publishes the room into the live map under
// both keys (spec.md §4.1).
func (reg *Registry) CreateRoom(hostName, avatar string, settings models.RoomSettings) (*engine.Room, *models.Player, error) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	var code string
	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		candidate, err := idgen.NewRoomCode()
		if err != nil {
			return nil, nil, fmt.Errorf("registry: generate room code: %w", err)
		}
		if _, taken := reg.byCode[candidate]; !taken {
			code = candidate
			break
		}
	}
	if code == "" {
		return nil, nil, engine.NewError(engine.KindCodeExhaustion, "could not allocate a free room code")
	}

	host := models.NewPlayer(idgen.NewPlayerID(), hostName, avatar)
	model := models.NewRoom(idgen.NewRoomID(), code, host, settings)
	room := reg.spawn(model)

	if reg.store != nil {
		go reg.persistNewRoom(model, host)
	}
	log.Printf("registry: created room %s (%s) by host %s", model.ID, code, host.ID)
	return room, host, nil
}

func (reg *Registry) persistNewRoom(model *models.Room, host *models.Player) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	model.RLock()
	rec := store.RoomRecord{
		ID: model.ID, Code: model.Code, HostID: model.HostPlayerID, IsPrivate: model.IsPrivate,
		MaxPlayers: model.MaxPlayers, DrawTime: model.DrawTime, MaxRounds: model.MaxRounds,
		Theme: model.Theme, Phase: string(model.Phase), PlayerCount: 1,
		LastActivity: model.LastActivity, CreatedAt: model.CreatedAt,
	}
	model.RUnlock()
	if err := reg.store.SaveRoom(ctx, rec); err != nil {
		log.Printf("registry: persist new room %s failed (transient): %v", model.ID, err)
		return
	}
	_ = reg.store.SavePlayer(ctx, store.PlayerRecord{
		ID: host.ID, RoomID: model.ID, UserID: host.UserID, Name: host.Name,
		Avatar: host.Avatar, Score: host.Score, IsHost: true, SessionID: host.SessionID,
	})
}

// spawn wires a model into a running engine.Room actor and indexes it.
// Caller must hold mu.
func (reg *Registry) spawn(model *models.Room) *engine.Room {
	room := engine.NewRoom(model, reg.cfg, reg.catalogue, reg.store, reg.broadcast, reg.canJoin)
	room.SetOnDestroyed(func() { reg.remove(model.ID, model.Code) })
	reg.byID[model.ID] = room
	reg.byCode[strings.ToUpper(model.Code)] = room
	go room.Run()
	return room
}

func (reg *Registry) remove(id, code string) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	delete(reg.byID, id)
	delete(reg.byCode, strings.ToUpper(code))
}

// LookupByID returns the live room for id, if any.
func (reg *Registry) LookupByID(id string) (*engine.Room, bool) {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	room, ok := reg.byID[id]
	return room, ok
}

// LookupByCode returns the live room for code (case-insensitive),
// attempting a lazy rehydration from the store on a memory miss
// (spec.md §4.1 "lookupByCode").
func (reg *Registry) LookupByCode(code string) (*engine.Room, bool) {
	upper := strings.ToUpper(strings.TrimSpace(code))

	reg.mu.RLock()
	room, ok := reg.byID[reg.idForCodeLocked(upper)]
	reg.mu.RUnlock()
	if ok {
		return room, true
	}

	return reg.rehydrate(upper)
}

func (reg *Registry) idForCodeLocked(upperCode string) string {
	if room, ok := reg.byCode[upperCode]; ok {
		return room.ID()
	}
	return ""
}

// rehydrate reconstructs a room from the persistence store: players
// come back disconnected, timers stay uninitialised, and the phase is
// forced to lobby regardless of what was persisted (spec.md §4.7
// "Server restart").
func (reg *Registry) rehydrate(upperCode string) (*engine.Room, bool) {
	if reg.store == nil {
		return nil, false
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	rec, playerRecs, err := reg.store.LoadRoom(ctx, upperCode)
	if err != nil {
		log.Printf("registry: rehydrate %s: %v", upperCode, err)
		return nil, false
	}
	if rec == nil {
		return nil, false
	}

	reg.mu.Lock()
	defer reg.mu.Unlock()
	if room, ok := reg.byID[rec.ID]; ok {
		return room, true
	}

	players := make(map[string]*models.Player, len(playerRecs))
	drawerOrder := make([]string, 0, len(playerRecs))
	for _, pr := range playerRecs {
		p := models.NewPlayer(pr.ID, pr.Name, pr.Avatar)
		p.UserID = pr.UserID
		p.Score = pr.Score
		p.IsHost = pr.IsHost
		p.SetConnected(false)
		players[pr.ID] = p
		drawerOrder = append(drawerOrder, pr.ID)
	}

	model := &models.Room{
		ID: rec.ID, Code: rec.Code, HostPlayerID: rec.HostID, IsPrivate: rec.IsPrivate,
		MaxPlayers: rec.MaxPlayers, DrawTime: rec.DrawTime, MaxRounds: rec.MaxRounds,
		Theme: rec.Theme, Phase: models.PhaseLobby, Round: 1, Turn: 0,
		GuessedPlayers: make(map[string]bool), DrawerOrder: drawerOrder, Players: players,
		CreatedAt: rec.CreatedAt, LastActivity: rec.LastActivity,
		KickedUntil: make(map[string]time.Time),
	}
	room := reg.spawn(model)
	log.Printf("registry: rehydrated room %s (%s) from store", model.ID, model.Code)
	return room, true
}

// Destroy tears a room down unconditionally: cancels its timers,
// removes it from the live map, and deletes its persisted rows
// (spec.md §4.1 "destroy").
func (reg *Registry) Destroy(roomID string) {
	reg.mu.Lock()
	room, ok := reg.byID[roomID]
	reg.mu.Unlock()
	if !ok {
		return
	}
	room.Stop()
	reg.remove(room.ID(), room.Code())

	if reg.store != nil {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = reg.store.DeletePlayersByRoom(ctx, roomID)
			_ = reg.store.DeleteRoom(ctx, roomID)
		}()
	}
}

// ListPublic returns the public-listing projection of every live,
// joinable public room.
func (reg *Registry) ListPublic() []models.PublicRoomInfo {
	reg.mu.RLock()
	defer reg.mu.RUnlock()

	out := make([]models.PublicRoomInfo, 0, len(reg.byID))
	for _, room := range reg.byID {
		info := room.Model().PublicInfo()
		if !info.IsPrivate && info.Phase == models.PhaseLobby && info.PlayerCount < info.MaxPlayers {
			out = append(out, info)
		}
	}
	return out
}

// FindBestPublicRoom picks the fullest-but-joinable public lobby, the
// common matchmaking heuristic for a "quick join" button (supplemented
// feature; grounded on the teacher's matchmaking.go).
func (reg *Registry) FindBestPublicRoom() (*engine.Room, bool) {
	reg.mu.RLock()
	defer reg.mu.RUnlock()

	var best *engine.Room
	bestCount := -1
	for _, room := range reg.byID {
		info := room.Model().PublicInfo()
		if info.IsPrivate || info.Phase != models.PhaseLobby || info.PlayerCount >= info.MaxPlayers {
			continue
		}
		if info.PlayerCount > bestCount {
			best = room
			bestCount = info.PlayerCount
		}
	}
	return best, best != nil
}

// Count returns the number of live rooms, for metrics/health endpoints.
func (reg *Registry) Count() int {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	return len(reg.byID)
}
