package engine

import "github.com/doodledash/server/internal/models"

// checkInvariants asserts the spec.md §3 invariants that the room's own
// model can show: a drawer is set while drawing, currentWord/maskedWord
// consistency, guessedPlayers vs hasGuessed, a single host, drawerOrder
// membership, and round <= maxRounds. Timer state and code uniqueness
// across rooms are not checked here. A violation transitions the room
// to gameEnd with reason "internal error" rather than crashing the
// process (spec.md §7
// "Invariant violations detected at runtime are fatal for that room
// only").
func (r *Room) checkInvariants() {
	r.model.RLock()
	violation := r.firstViolation()
	r.model.RUnlock()

	if violation != "" {
		r.failInternal(violation)
	}
}

func (r *Room) firstViolation() string {
	m := r.model

	// isDrawing is derived from currentDrawerId and is only meaningful
	// while phase = drawing; at most one player can ever match it since
	// currentDrawerId names a single id.
	if m.Phase == models.PhaseDrawing && m.CurrentDrawerID == "" {
		return "drawing phase with no drawer set"
	}

	if (m.CurrentWord != "") != (m.Phase == models.PhaseDrawing) {
		return "currentWord set outside drawing"
	}
	if m.Phase == models.PhaseDrawing {
		wordRunes := []rune(m.CurrentWord)
		maskRunes := []rune(m.MaskedWord)
		if len(wordRunes) != len(maskRunes) {
			return "maskedWord length mismatch"
		}
		for i, r := range maskRunes {
			if r != '_' && r != wordRunes[i] {
				return "maskedWord position mismatch"
			}
		}
	}

	for id := range m.GuessedPlayers {
		p, ok := m.Players[id]
		if !ok || id == m.CurrentDrawerID || !p.HasGuessed {
			return "guessedPlayers inconsistent with hasGuessed"
		}
	}

	if len(m.Players) > 0 {
		hosts := 0
		for _, p := range m.Players {
			if p.IsHost {
				hosts++
			}
		}
		if hosts != 1 {
			return "exactly one host required"
		}
	}

	seen := make(map[string]bool, len(m.DrawerOrder))
	for _, id := range m.DrawerOrder {
		if seen[id] {
			return "drawerOrder contains a duplicate"
		}
		seen[id] = true
		if _, present := m.Players[id]; !present {
			return "drawerOrder references an absent player"
		}
	}
	if len(seen) != len(m.Players) {
		return "drawerOrder missing a present player"
	}

	if m.Round > m.MaxRounds {
		return "round exceeds maxRounds"
	}

	return ""
}
