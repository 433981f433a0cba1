// Package housekeeper runs the periodic sweep that evicts abandoned
// room rows from the persistence store, a counterpart to the in-memory
// empty-room cleanup timer the engine runs per room (spec.md §4.3).
// Grounded on the teacher's RoomManager cleanup loop
// (internal/services/room_manager.go) and Hub.cleanupRoutine
// (pkg/websocket/hub.go), generalised from an in-memory sweep over live
// rooms to a store-backed sweep over persisted rows the in-memory
// registry may have already forgotten about (process restarts, crashed
// rooms).
package housekeeper

import (
	"context"
	"log"
	"time"

	"github.com/doodledash/server/internal/config"
	"github.com/doodledash/server/internal/store"
)

// Housekeeper owns the background eviction ticker.
type Housekeeper struct {
	store store.Store
	cfg   *config.Config
	stop  chan struct{}
	done  chan struct{}
}

// New constructs a housekeeper; call Run in its own goroutine.
func New(st store.Store, cfg *config.Config) *Housekeeper {
	return &Housekeeper{store: st, cfg: cfg, stop: make(chan struct{}), done: make(chan struct{})}
}

// Run sweeps on every RoomCleanupInterval tick until Stop is called.
func (hk *Housekeeper) Run() {
	defer close(hk.done)

	if hk.store == nil {
		return
	}

	ticker := time.NewTicker(hk.cfg.Game.RoomCleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			hk.sweep()
		case <-hk.stop:
			return
		}
	}
}

// Stop halts the sweep loop and waits for the current sweep to finish.
func (hk *Housekeeper) Stop() {
	close(hk.stop)
	<-hk.done
}

func (hk *Housekeeper) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	cutoff := time.Now().Add(-hk.cfg.Game.StoreRetention)
	abandoned, err := hk.store.ListAbandoned(ctx, cutoff)
	if err != nil {
		log.Printf("housekeeper: list abandoned rooms: %v", err)
		return
	}

	for _, rec := range abandoned {
		if err := hk.store.DeletePlayersByRoom(ctx, rec.ID); err != nil {
			log.Printf("housekeeper: delete players for room %s: %v", rec.ID, err)
			continue
		}
		if err := hk.store.DeleteRoom(ctx, rec.ID); err != nil {
			log.Printf("housekeeper: delete room %s: %v", rec.ID, err)
			continue
		}
		log.Printf("housekeeper: evicted abandoned room %s (%s), idle since %s", rec.ID, rec.Code, rec.LastActivity)
	}
}
