// Package store defines the persistence boundary for rooms, players and
// end-of-game profile statistics. Only the interface is core-relevant to
// the room engine (spec.md §2); concrete backends live in this package
// but the engine depends only on Store.
package store

import (
	"context"
	"time"
)

// RoomRecord is the durable projection of a room (spec.md §6 "rooms").
type RoomRecord struct {
	ID           string
	Code         string
	HostID       string
	IsPrivate    bool
	MaxPlayers   int
	DrawTime     int
	MaxRounds    int
	Theme        string
	Phase        string
	PlayerCount  int
	LastActivity time.Time
	CreatedAt    time.Time
}

// PlayerRecord is the durable projection of a player (spec.md §6 "players").
type PlayerRecord struct {
	ID        string
	RoomID    string
	UserID    string // optional, attribution only
	Name      string
	Avatar    string
	Score     int
	IsHost    bool
	SessionID string
}

// ProfileStatsDelta is applied at gameEnd to a persisted account's
// lifetime counters (spec.md §6 "profiles").
type ProfileStatsDelta struct {
	UserID     string
	GamesPlayed int
	GamesWon    int
	ScoreGained int
}

// Store is the persistence contract. Every method is short, and all but
// ApplyProfileDeltas (which increments counters) are idempotent; the
// room engine never blocks on it and treats write
// failures as Transient (logged, not surfaced) per spec.md §4.7.
type Store interface {
	SaveRoom(ctx context.Context, room RoomRecord) error
	DeleteRoom(ctx context.Context, roomID string) error
	LoadRoom(ctx context.Context, code string) (*RoomRecord, []PlayerRecord, error)

	SavePlayer(ctx context.Context, player PlayerRecord) error
	DeletePlayer(ctx context.Context, roomID, playerID string) error
	DeletePlayersByRoom(ctx context.Context, roomID string) error

	ApplyProfileDeltas(ctx context.Context, deltas []ProfileStatsDelta) error

	// ListAbandoned returns rooms with zero members whose LastActivity is
	// older than olderThan, for housekeeper eviction.
	ListAbandoned(ctx context.Context, olderThan time.Time) ([]RoomRecord, error)

	// ListPublic returns persisted public lobby rooms that are not full.
	// The registry's listing and matchmaking read only the in-memory map
	// and do not call it.
	ListPublic(ctx context.Context) ([]RoomRecord, error)

	Close() error
}
