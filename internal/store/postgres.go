package store

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore implements Store over a pgx connection pool, grounded on
// the pgx dependency declared (but unwired) in Scythe504-skribblr-backend's
// go.mod, with the schema spec.md §6 names.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore connects to dsn and ensures the schema exists.
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("store: connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("store: ping: %w", err)
	}

	s := &PostgresStore{pool: pool}
	if err := s.migrate(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("store: migrate: %w", err)
	}
	return s, nil
}

func (s *PostgresStore) migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS rooms (
			id             TEXT PRIMARY KEY,
			code           TEXT NOT NULL UNIQUE,
			host_id        TEXT NOT NULL,
			is_private     BOOLEAN NOT NULL,
			max_players    INTEGER NOT NULL,
			draw_time      INTEGER NOT NULL,
			max_rounds     INTEGER NOT NULL,
			theme          TEXT NOT NULL,
			phase          TEXT NOT NULL,
			player_count   INTEGER NOT NULL,
			last_activity  TIMESTAMPTZ NOT NULL,
			created_at     TIMESTAMPTZ NOT NULL
		);
		CREATE TABLE IF NOT EXISTS players (
			id         TEXT PRIMARY KEY,
			room_id    TEXT NOT NULL REFERENCES rooms(id) ON DELETE CASCADE,
			user_id    TEXT,
			name       TEXT NOT NULL,
			avatar     TEXT NOT NULL,
			score      INTEGER NOT NULL,
			is_host    BOOLEAN NOT NULL,
			session_id TEXT NOT NULL
		);
		CREATE TABLE IF NOT EXISTS profiles (
			user_id      TEXT PRIMARY KEY,
			games_played INTEGER NOT NULL DEFAULT 0,
			games_won    INTEGER NOT NULL DEFAULT 0,
			total_score  INTEGER NOT NULL DEFAULT 0
		);
	`)
	return err
}

func (s *PostgresStore) SaveRoom(ctx context.Context, room RoomRecord) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO rooms (id, code, host_id, is_private, max_players, draw_time, max_rounds, theme, phase, player_count, last_activity, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
		ON CONFLICT (id) DO UPDATE SET
			code = EXCLUDED.code, host_id = EXCLUDED.host_id, is_private = EXCLUDED.is_private,
			max_players = EXCLUDED.max_players, draw_time = EXCLUDED.draw_time, max_rounds = EXCLUDED.max_rounds,
			theme = EXCLUDED.theme, phase = EXCLUDED.phase, player_count = EXCLUDED.player_count,
			last_activity = EXCLUDED.last_activity
	`, room.ID, room.Code, room.HostID, room.IsPrivate, room.MaxPlayers, room.DrawTime,
		room.MaxRounds, room.Theme, room.Phase, room.PlayerCount, room.LastActivity, room.CreatedAt)
	if err != nil {
		log.Printf("store: save room %s: %v", room.ID, err)
	}
	return err
}

func (s *PostgresStore) DeleteRoom(ctx context.Context, roomID string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM rooms WHERE id = $1`, roomID)
	return err
}

func (s *PostgresStore) LoadRoom(ctx context.Context, code string) (*RoomRecord, []PlayerRecord, error) {
	var r RoomRecord
	err := s.pool.QueryRow(ctx, `
		SELECT id, code, host_id, is_private, max_players, draw_time, max_rounds, theme, phase, player_count, last_activity, created_at
		FROM rooms WHERE code = $1
	`, code).Scan(&r.ID, &r.Code, &r.HostID, &r.IsPrivate, &r.MaxPlayers, &r.DrawTime,
		&r.MaxRounds, &r.Theme, &r.Phase, &r.PlayerCount, &r.LastActivity, &r.CreatedAt)
	if err == pgx.ErrNoRows {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("store: load room: %w", err)
	}

	rows, err := s.pool.Query(ctx, `
		SELECT id, room_id, COALESCE(user_id, ''), name, avatar, score, is_host, session_id
		FROM players WHERE room_id = $1
	`, r.ID)
	if err != nil {
		return &r, nil, fmt.Errorf("store: load players: %w", err)
	}
	defer rows.Close()

	var players []PlayerRecord
	for rows.Next() {
		var p PlayerRecord
		if err := rows.Scan(&p.ID, &p.RoomID, &p.UserID, &p.Name, &p.Avatar, &p.Score, &p.IsHost, &p.SessionID); err != nil {
			return &r, nil, fmt.Errorf("store: scan player: %w", err)
		}
		players = append(players, p)
	}
	return &r, players, rows.Err()
}

func (s *PostgresStore) SavePlayer(ctx context.Context, player PlayerRecord) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO players (id, room_id, user_id, name, avatar, score, is_host, session_id)
		VALUES ($1,$2,NULLIF($3,''),$4,$5,$6,$7,$8)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name, avatar = EXCLUDED.avatar, score = EXCLUDED.score,
			is_host = EXCLUDED.is_host, session_id = EXCLUDED.session_id
	`, player.ID, player.RoomID, player.UserID, player.Name, player.Avatar, player.Score, player.IsHost, player.SessionID)
	if err != nil {
		log.Printf("store: save player %s: %v", player.ID, err)
	}
	return err
}

func (s *PostgresStore) DeletePlayer(ctx context.Context, roomID, playerID string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM players WHERE room_id = $1 AND id = $2`, roomID, playerID)
	return err
}

func (s *PostgresStore) DeletePlayersByRoom(ctx context.Context, roomID string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM players WHERE room_id = $1`, roomID)
	return err
}

func (s *PostgresStore) ApplyProfileDeltas(ctx context.Context, deltas []ProfileStatsDelta) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("store: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, d := range deltas {
		if d.UserID == "" {
			continue
		}
		_, err := tx.Exec(ctx, `
			INSERT INTO profiles (user_id, games_played, games_won, total_score)
			VALUES ($1, 1, $2, $3)
			ON CONFLICT (user_id) DO UPDATE SET
				games_played = profiles.games_played + 1,
				games_won = profiles.games_won + EXCLUDED.games_won,
				total_score = profiles.total_score + EXCLUDED.total_score
		`, d.UserID, d.GamesWon, d.ScoreGained)
		if err != nil {
			return fmt.Errorf("store: apply profile delta for %s: %w", d.UserID, err)
		}
	}
	return tx.Commit(ctx)
}

func (s *PostgresStore) ListAbandoned(ctx context.Context, olderThan time.Time) ([]RoomRecord, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, code, host_id, is_private, max_players, draw_time, max_rounds, theme, phase, player_count, last_activity, created_at
		FROM rooms WHERE player_count = 0 AND last_activity < $1
	`, olderThan)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRoomRows(rows)
}

func (s *PostgresStore) ListPublic(ctx context.Context) ([]RoomRecord, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, code, host_id, is_private, max_players, draw_time, max_rounds, theme, phase, player_count, last_activity, created_at
		FROM rooms WHERE is_private = false AND phase = 'lobby' AND player_count < max_players
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRoomRows(rows)
}

func scanRoomRows(rows pgx.Rows) ([]RoomRecord, error) {
	var out []RoomRecord
	for rows.Next() {
		var r RoomRecord
		if err := rows.Scan(&r.ID, &r.Code, &r.HostID, &r.IsPrivate, &r.MaxPlayers, &r.DrawTime,
			&r.MaxRounds, &r.Theme, &r.Phase, &r.PlayerCount, &r.LastActivity, &r.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
