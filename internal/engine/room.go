// Package engine is the room engine: the per-room state machine,
// turn/round scheduler, timer set, guess arbitration, and broadcast
// policy. Each Room runs its own actor goroutine so that all mutations to
// that room's state - commands and timer fires alike - are strictly
// serialised, while different rooms progress independently (spec.md §5).
package engine

import (
	"context"
	"log"
	"math/rand"
	"time"

	"github.com/doodledash/server/internal/config"
	"github.com/doodledash/server/internal/models"
	"github.com/doodledash/server/internal/store"
	"github.com/doodledash/server/internal/words"
)

// CanJoinFunc is the pre-join hook spec.md §9 asks for: ban policy lives
// outside the core, and this is the seam an external collaborator would
// replace. The default allows every join.
type CanJoinFunc func(room *models.Room, playerID, name string) bool

// AllowAllJoins is the default CanJoinFunc.
func AllowAllJoins(*models.Room, string, string) bool { return true }

// Room is one live game instance's actor: it owns the model, the timer
// set, and a bounded inbox that serialises every command and timer fire
// against that model. Grounded on the teacher's single-process
// Hub.Run consumer loop (pkg/websocket/hub.go), generalised to one loop
// per room instead of one loop for the whole server.
type Room struct {
	model       *models.Room
	cfg         *config.Config
	catalogue   *words.Catalogue
	store       store.Store
	broadcaster Broadcaster
	canJoin     CanJoinFunc

	inbox chan func(*Room)
	done  chan struct{}
	ctx   context.Context
	stop  context.CancelFunc

	timers *timerSet

	offeredWords []string // set only during `choosing`

	// onDestroyed, if set, is invoked once after the room has stopped
	// itself following empty-room cleanup (spec.md §4.3 "Empty-room
	// cleanup"). The registry sets this to prune its own maps; the
	// engine has no map of rooms to prune itself.
	onDestroyed func()
}

// NewRoom wraps model in an actor. The caller must call Run in its own
// goroutine and Stop on teardown.
func NewRoom(model *models.Room, cfg *config.Config, catalogue *words.Catalogue, st store.Store, broadcaster Broadcaster, canJoin CanJoinFunc) *Room {
	if canJoin == nil {
		canJoin = AllowAllJoins
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Room{
		model:       model,
		cfg:         cfg,
		catalogue:   catalogue,
		store:       st,
		broadcaster: broadcaster,
		canJoin:     canJoin,
		inbox:       make(chan func(*Room), cfg.Game.InboxSize),
		done:        make(chan struct{}),
		ctx:         ctx,
		stop:        cancel,
		timers:      newTimerSet(),
	}
}

// SetOnDestroyed registers the registry's cleanup callback.
func (r *Room) SetOnDestroyed(fn func()) { r.onDestroyed = fn }

// ID returns the room's opaque identifier.
func (r *Room) ID() string { return r.model.ID }

// Code returns the room's join code.
func (r *Room) Code() string { return r.model.Code }

// Model exposes the underlying snapshot-safe model for read-only queries
// (HTTP room-detail, public listing) from outside the actor goroutine.
func (r *Room) Model() *models.Room { return r.model }

// Run drains the inbox until Stop is called. Exactly one goroutine must
// call Run for a given Room.
func (r *Room) Run() {
	for {
		select {
		case job := <-r.inbox:
			job(r)
		case <-r.done:
			return
		}
	}
}

// Stop cancels every live timer and halts the actor loop. Idempotent.
func (r *Room) Stop() {
	r.timers.cancelAll()
	r.stop()
	select {
	case <-r.done:
	default:
		close(r.done)
	}
}

// enqueue submits a unit of work to the room's serialisation point. Both
// commands and timer fires go through here, so a fire competing with an
// incoming command is linearised by arrival order (spec.md §5).
func (r *Room) enqueue(job func(*Room)) {
	select {
	case r.inbox <- job:
	case <-r.done:
	}
}

// enqueueTimer is enqueue, but silently drops the job if the room has
// already stopped - used by timer fires, which must never block forever
// on a torn-down room.
func (r *Room) enqueueTimer(job func(*Room)) {
	select {
	case r.inbox <- job:
	case <-r.ctx.Done():
	}
}

func (r *Room) persistAsync() {
	if r.store == nil {
		return
	}
	rec := roomRecord(r.model)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := r.store.SaveRoom(ctx, rec); err != nil {
			log.Printf("engine: room %s: persist failed (transient): %v", r.model.ID, err)
		}
	}()
}

// persistProfileDeltas records one game played per ranked player, a win
// for rank 1, and their score gained this game (spec.md §3, persisted
// stat updates at gameEnd). Players without a backing account (UserID
// empty) are skipped inside the store implementation.
func (r *Room) persistProfileDeltas(rankings []models.Ranking) {
	if r.store == nil || len(rankings) == 0 {
		return
	}
	deltas := make([]store.ProfileStatsDelta, 0, len(rankings))
	for _, rk := range rankings {
		if rk.UserID == "" {
			continue
		}
		deltas = append(deltas, store.ProfileStatsDelta{
			UserID:      rk.UserID,
			GamesWon:    boolToInt(rk.Rank == 1),
			ScoreGained: rk.Score,
		})
	}
	if len(deltas) == 0 {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := r.store.ApplyProfileDeltas(ctx, deltas); err != nil {
			log.Printf("engine: room %s: profile delta persist failed (transient): %v", r.model.ID, err)
		}
	}()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func roomRecord(m *models.Room) store.RoomRecord {
	m.RLock()
	defer m.RUnlock()
	return store.RoomRecord{
		ID:           m.ID,
		Code:         m.Code,
		HostID:       m.HostPlayerID,
		IsPrivate:    m.IsPrivate,
		MaxPlayers:   m.MaxPlayers,
		DrawTime:     m.DrawTime,
		MaxRounds:    m.MaxRounds,
		Theme:        m.Theme,
		Phase:        string(m.Phase),
		PlayerCount:  len(m.Players),
		LastActivity: m.LastActivity,
		CreatedAt:    m.CreatedAt,
	}
}

// shuffledOrder returns a fresh random permutation of ids, grounded on
// spec.md §9 "drawer order as a permutation" - computed once at
// game:start and never recomputed mid-game.
func shuffledOrder(ids []string) []string {
	out := append([]string(nil), ids...)
	rand.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	return out
}
