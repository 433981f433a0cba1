// Package idgen generates opaque player/room identifiers and room codes.
package idgen

import (
	"crypto/rand"
	"fmt"

	"github.com/google/uuid"
)

// NewPlayerID returns a fresh opaque player identifier.
func NewPlayerID() string {
	return uuid.NewString()
}

// NewRoomID returns a fresh opaque room identifier.
func NewRoomID() string {
	return uuid.NewString()
}

// NewMessageID returns a fresh opaque chat message identifier.
func NewMessageID() string {
	return uuid.NewString()
}

// roomCodeAlphabet excludes visually ambiguous characters (0, O, 1, I).
const roomCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

const roomCodeLength = 6

// NewRoomCode draws a random 6-character code from the unambiguous
// alphabet. Collision handling against live rooms is the registry's job.
func NewRoomCode() (string, error) {
	buf := make([]byte, roomCodeLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("idgen: generate room code: %w", err)
	}
	code := make([]byte, roomCodeLength)
	for i, b := range buf {
		code[i] = roomCodeAlphabet[int(b)%len(roomCodeAlphabet)]
	}
	return string(code), nil
}
