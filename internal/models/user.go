package models

import (
	"sync"
	"time"
)

// Player is a participant in a room. ID is a stable uuid; SessionID
// identifies the current websocket connection and changes across
// reconnects while ID does not.
type Player struct {
	ID        string `json:"id"`
	SessionID string `json:"sessionId"`
	UserID    string `json:"userId,omitempty"` // set when backed by a persisted account

	Name   string `json:"name"`
	Avatar string `json:"avatar"`

	Score       int  `json:"score"`
	IsHost      bool `json:"isHost"`
	IsConnected bool `json:"isConnected"`
	HasGuessed  bool `json:"hasGuessed"`

	JoinedAt     time.Time `json:"joinedAt"`
	LastActivity time.Time `json:"lastActivity"`
	GuessTime    time.Time `json:"-"`
	GuessOrder   int       `json:"-"`

	// Statistics kept in memory for the player's time in the room; they
	// are not written to the store.
	RoundsWon      int `json:"roundsWon"`
	TotalGuesses   int `json:"totalGuesses"`
	CorrectGuesses int `json:"correctGuesses"`
	TimesDrawer    int `json:"timesDrawer"`

	mu sync.RWMutex
}

// NewPlayer seats a new participant, not yet the host of anything.
func NewPlayer(id, name, avatar string) *Player {
	now := time.Now()
	return &Player{
		ID:           id,
		Name:         name,
		Avatar:       avatar,
		IsConnected:  true,
		JoinedAt:     now,
		LastActivity: now,
	}
}

// UpdateActivity bumps the last-seen timestamp.
func (p *Player) UpdateActivity() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.LastActivity = time.Now()
}

// AddScore credits points earned this turn.
func (p *Player) AddScore(points int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Score += points
}

// SetConnected flips connection state, refreshing activity on reconnect.
func (p *Player) SetConnected(connected bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.IsConnected = connected
	if connected {
		p.LastActivity = time.Now()
	}
}

// RecordGuess records a guess attempt; guessOrder is the 1-based arrival
// index among correct guessers this turn, ignored when correct is false.
func (p *Player) RecordGuess(correct bool, guessOrder int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.TotalGuesses++
	if correct {
		p.HasGuessed = true
		p.GuessTime = time.Now()
		p.CorrectGuesses++
		p.GuessOrder = guessOrder
	}
}

// RecordDrawerTurn tallies a completed turn as drawer.
func (p *Player) RecordDrawerTurn() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.TimesDrawer++
}

// RecordRoundWin tallies a round in which this player ended with the
// highest score gain.
func (p *Player) RecordRoundWin() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.RoundsWon++
}

// ResetTurnData clears per-turn guess bookkeeping ahead of a new turn.
func (p *Player) ResetTurnData() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.HasGuessed = false
	p.GuessTime = time.Time{}
	p.GuessOrder = 0
}

// Accuracy returns the lifetime correct-guess ratio as a percentage.
func (p *Player) Accuracy() float64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.TotalGuesses == 0 {
		return 0
	}
	return float64(p.CorrectGuesses) / float64(p.TotalGuesses) * 100
}

// IsInactive reports whether the player has been disconnected longer than
// timeout.
func (p *Player) IsInactive(timeout time.Duration) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return !p.IsConnected && time.Since(p.LastActivity) > timeout
}

// Snapshot returns the public projection shared with every room member.
func (p *Player) Snapshot() PlayerSnapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return PlayerSnapshot{
		ID:          p.ID,
		Name:        p.Name,
		Avatar:      p.Avatar,
		Score:       p.Score,
		IsHost:      p.IsHost,
		IsConnected: p.IsConnected,
		HasGuessed:  p.HasGuessed,
		RoundsWon:   p.RoundsWon,
		Accuracy:    p.Accuracy(),
	}
}

// PlayerSnapshot is the wire-safe projection of a Player. IsDrawing is not
// stored on the player itself; Room.Snapshot fills it in from
// CurrentDrawerID before this leaves the package.
type PlayerSnapshot struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Avatar      string  `json:"avatar"`
	Score       int     `json:"score"`
	IsHost      bool    `json:"isHost"`
	IsConnected bool    `json:"isConnected"`
	HasGuessed  bool    `json:"hasGuessed"`
	IsDrawing   bool    `json:"isDrawing"`
	RoundsWon   int     `json:"roundsWon"`
	Accuracy    float64 `json:"accuracy"`
}
