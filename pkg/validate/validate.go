// Package validate holds the server's input-shape checks: player names
// and chat/guess text.
package validate

import "strings"

// Name trims and checks a player name against the 1-20 character bound
// (spec.md §3); returns the trimmed name and whether it is acceptable.
func Name(raw string, maxLength int) (string, bool) {
	trimmed := strings.TrimSpace(raw)
	if len(trimmed) < 1 || len(trimmed) > maxLength {
		return trimmed, false
	}
	return trimmed, true
}

// ChatText trims and checks a chat/guess line against the maximum chat
// length (spec.md §4.4 step 1).
func ChatText(raw string, maxLength int) (string, bool) {
	trimmed := strings.TrimSpace(raw)
	if len(trimmed) == 0 || len(trimmed) > maxLength {
		return trimmed, false
	}
	return trimmed, true
}

// DrawTime checks a room's requested draw-time setting against [min,max].
func DrawTime(seconds, min, max int) bool {
	return seconds >= min && seconds <= max
}

// MaxRounds checks a room's requested round count against [1,limit].
func MaxRounds(rounds, limit int) bool {
	return rounds >= 1 && rounds <= limit
}

// MaxPlayers checks a room's requested player cap against [min,max].
func MaxPlayers(players, min, max int) bool {
	return players >= min && players <= max
}
