package engine

import (
	"log"
	"sort"
	"time"

	"github.com/doodledash/server/internal/models"
	"github.com/doodledash/server/internal/words"
)

// startGame handles host `game:start` from lobby (spec.md §4.2). It
// shuffles the drawer order once for the whole game and begins the
// 3-second start countdown.
func (r *Room) startGame(playerID string) *Error {
	var fail *Error
	r.model.Mutate(func(m *models.Room) {
		if m.Phase != models.PhaseLobby {
			fail = newError(KindWrongPhase, "game already in progress")
			return
		}
		if playerID != m.HostPlayerID {
			fail = newError(KindNotAuthorised, "only the host can start the game")
			return
		}
		connected := 0
		for _, p := range m.Players {
			if p.IsConnected {
				connected++
			}
		}
		if connected < r.cfg.Game.MinPlayers {
			fail = newError(KindInvalidInput, "not enough players to start")
			return
		}

		ids := make([]string, 0, len(m.Players))
		for id := range m.Players {
			ids = append(ids, id)
		}
		m.DrawerOrder = shuffledOrder(ids)
		m.Round = 1
		m.Turn = 0
	})
	if fail != nil {
		return fail
	}

	r.broadcast(models.EventGameStarting, models.GameStartingPayload{
		Countdown: int(r.cfg.Game.StartCountdown.Seconds()),
	})
	r.timers.after(timerCountdown, r.cfg.Game.StartCountdown, func() {
		r.enqueueTimer(func(rm *Room) { rm.enterChoosing() })
	})
	return nil
}

// enterChoosing resets per-turn guess state, offers three words to the
// drawer, and starts the auto-pick timer (spec.md §4.2 "On entering
// choosing").
func (r *Room) enterChoosing() {
	var drawerID string
	var theme string
	var custom []string

	r.model.Mutate(func(m *models.Room) {
		if len(m.DrawerOrder) == 0 {
			return
		}
		m.Phase = models.PhaseChoosing
		m.CurrentWord = ""
		m.MaskedWord = ""
		m.GuessedPlayers = make(map[string]bool)
		drawerID = m.DrawerOrder[m.Turn%len(m.DrawerOrder)]
		m.CurrentDrawerID = drawerID
		theme = m.Theme
		for _, p := range m.Players {
			p.ResetTurnData()
		}
	})
	if drawerID == "" {
		return
	}

	choices, err := r.catalogue.RandomWords(theme, r.cfg.WordBank.WordsPerTurn, custom)
	if err != nil {
		log.Printf("engine: room %s: word catalogue error: %v", r.model.ID, err)
		r.failInternal("internal error")
		return
	}
	r.offeredWords = choices

	r.sendTo(drawerID, models.EventChooseWord, models.ChooseWordPayload{Words: choices})
	r.broadcastSnapshot()

	r.timers.after(timerAutoPick, r.cfg.Game.AutoPickTimeout, func() {
		r.enqueueTimer(func(rm *Room) { rm.autoPickWord() })
	})
	r.checkInvariants()
}

// autoPickWord implements S2: the drawer never selects, so the first
// offered word is chosen when the 15-second timer fires.
func (r *Room) autoPickWord() {
	if len(r.offeredWords) == 0 {
		return
	}
	r.beginDrawing(r.offeredWords[0])
}

// selectWord handles the drawer's `game:select_word`.
func (r *Room) selectWord(playerID, word string) *Error {
	r.model.RLock()
	phase := r.model.Phase
	drawerID := r.model.CurrentDrawerID
	r.model.RUnlock()

	if phase != models.PhaseChoosing {
		return newError(KindWrongPhase, "no word selection in progress")
	}
	if playerID != drawerID {
		return newError(KindNotAuthorised, "only the drawer selects the word")
	}
	valid := false
	for _, w := range r.offeredWords {
		if w == word {
			valid = true
			break
		}
	}
	if !valid {
		return newError(KindInvalidInput, "word was not offered")
	}

	r.timers.cancel(timerAutoPick)
	r.beginDrawing(word)
	return nil
}

// beginDrawing enters the drawing phase with word as the secret
// (spec.md §4.2 "On entering drawing").
func (r *Room) beginDrawing(word string) {
	r.offeredWords = nil
	var drawerID string
	var drawTime int
	var maskedWord string

	r.model.Mutate(func(m *models.Room) {
		m.Phase = models.PhaseDrawing
		m.CurrentWord = word
		m.MaskedWord = words.Mask(word)
		m.TimeLeft = m.DrawTime
		m.GuessedPlayers = make(map[string]bool)
		drawerID = m.CurrentDrawerID
		drawTime = m.DrawTime
		maskedWord = m.MaskedWord
		if p, ok := m.Players[drawerID]; ok {
			p.RecordDrawerTurn()
		}
	})

	r.sendTo(drawerID, models.EventWord, models.WordPayload{Word: word})
	r.broadcast(models.EventTurnStart, models.TurnStartPayload{
		DrawerID:   drawerID,
		WordLength: len([]rune(word)),
		MaskedWord: maskedWord,
		TimeLeft:   drawTime,
	})
	r.broadcastSnapshot()

	r.timers.every(timerTick, time.Second, func() bool {
		r.enqueueTimer(func(rm *Room) { rm.onTick() })
		return true
	})
	r.checkInvariants()
}

// onTick runs inside the room's serialisation (the tick timer enqueues
// it): it decrements timeLeft, folds in the hint-reveal check (spec.md
// §4.3 "implementations may fold this into the tick handler"), and
// transitions to roundEnd at zero, which cancels the tick timer. A tick
// that arrives after the room has left drawing does nothing.
func (r *Room) onTick() {
	var active bool
	var expired bool
	var hinted bool
	var timeLeft, drawTime int
	var maskedWord string

	r.model.Mutate(func(m *models.Room) {
		if m.Phase != models.PhaseDrawing {
			return
		}
		active = true
		m.TimeLeft--
		timeLeft = m.TimeLeft
		drawTime = m.DrawTime

		if timeLeft > 0 && timeLeft%20 == 0 && timeLeft < drawTime-10 {
			if revealed, err := words.RevealOneHint(m.CurrentWord, m.MaskedWord); err == nil {
				m.MaskedWord = revealed
				hinted = true
			}
		}
		maskedWord = m.MaskedWord

		if timeLeft <= 0 {
			expired = true
		}
	})
	if !active {
		return
	}

	if hinted {
		r.broadcast(models.EventHint, models.HintPayload{MaskedWord: maskedWord})
	}
	r.broadcast(models.EventTimeUpdate, models.TimeUpdatePayload{TimeLeft: maxInt(timeLeft, 0)})

	if expired {
		r.endTurn(models.ReasonTimeUp)
	}
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// endTurn transitions drawing -> roundEnd, cancelling the tick/choose
// timers and broadcasting the reveal (spec.md §4.2 "On entering
// roundEnd", property 6).
func (r *Room) endTurn(reason models.RoundEndReason) {
	r.timers.cancel(timerTick)
	r.timers.cancel(timerAutoPick)

	var word string
	var allGuessed bool
	r.model.Mutate(func(m *models.Room) {
		if m.Phase != models.PhaseDrawing && m.Phase != models.PhaseChoosing {
			return
		}
		word = m.CurrentWord
		allGuessed = m.AllNonDrawersGuessed()
		m.Phase = models.PhaseRoundEnd
		m.CurrentWord = ""
		m.MaskedWord = ""
		m.GuessedPlayers = make(map[string]bool)
		for _, p := range m.Players {
			p.ResetTurnData()
		}
	})

	r.broadcast(models.EventTurnEnd, models.TurnEndPayload{
		Word:       word,
		Reason:     reason,
		AllGuessed: allGuessed,
	})
	r.broadcastSnapshot()
	r.persistAsync()

	r.timers.after(timerPostTurn, r.cfg.Game.TurnEndDelay, func() {
		r.enqueueTimer(func(rm *Room) { rm.advanceAfterRoundEnd() })
	})
	r.checkInvariants()
}

// advanceAfterRoundEnd implements the roundEnd row of the transition
// table (spec.md §4.2): either the next turn, the next round, or gameEnd.
func (r *Room) advanceAfterRoundEnd() {
	var roundAdvanced bool
	var newRound int
	var toGameEnd bool

	r.model.Mutate(func(m *models.Room) {
		if m.Phase != models.PhaseRoundEnd {
			return
		}
		orderLen := len(m.DrawerOrder)
		if orderLen == 0 {
			toGameEnd = true
			return
		}

		connected := 0
		for _, p := range m.Players {
			if p.IsConnected {
				connected++
			}
		}
		if connected < r.cfg.Game.MinPlayers {
			toGameEnd = true
			return
		}

		if m.Turn+1 < orderLen {
			m.Turn++
			return
		}
		if m.Round < m.MaxRounds {
			m.Turn = 0
			m.Round++
			roundAdvanced = true
			newRound = m.Round
			return
		}
		toGameEnd = true
	})

	if toGameEnd {
		r.enterGameEnd()
		return
	}
	if roundAdvanced {
		r.broadcast(models.EventRoundEnd, models.RoundEndPayload{Round: newRound})
	}
	r.enterChoosing()
}

// enterGameEnd cancels every timer (invariant 6) and broadcasts final
// rankings, sorted by score descending with a stable tie-break by
// arrival order (spec.md §8 property 5).
func (r *Room) enterGameEnd() {
	r.timers.cancelAll()

	r.model.Mutate(func(m *models.Room) {
		m.Phase = models.PhaseGameEnd
		m.CurrentDrawerID = ""
		m.CurrentWord = ""
		m.MaskedWord = ""
	})

	rankings := r.rankings()
	r.broadcast(models.EventGameEnded, models.GameEndedPayload{Rankings: rankings})
	r.broadcastSnapshot()
	r.persistAsync()
	r.persistProfileDeltas(rankings)
	r.checkInvariants()
}

// rankings orders every player by score descending, breaking ties by
// earliest arrival (JoinedAt).
func (r *Room) rankings() []models.Ranking {
	r.model.RLock()
	type entry struct {
		snap     models.PlayerSnapshot
		userID   string
		joinedAt int64
	}
	entries := make([]entry, 0, len(r.model.Players))
	for _, p := range r.model.Players {
		entries = append(entries, entry{snap: p.Snapshot(), userID: p.UserID, joinedAt: p.JoinedAt.UnixNano()})
	}
	r.model.RUnlock()

	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].snap.Score != entries[j].snap.Score {
			return entries[i].snap.Score > entries[j].snap.Score
		}
		return entries[i].joinedAt < entries[j].joinedAt
	})

	out := make([]models.Ranking, len(entries))
	for i, e := range entries {
		out[i] = models.Ranking{
			Rank:   i + 1,
			ID:     e.snap.ID,
			Name:   e.snap.Name,
			Score:  e.snap.Score,
			UserID: e.userID,
		}
	}
	return out
}

// playAgain handles host `game:play_again` from gameEnd: resets scores,
// turn and round but preserves membership and drawer order.
func (r *Room) playAgain(playerID string) *Error {
	var fail *Error
	r.model.Mutate(func(m *models.Room) {
		if m.Phase != models.PhaseGameEnd {
			fail = newError(KindWrongPhase, "game has not ended")
			return
		}
		if playerID != m.HostPlayerID {
			fail = newError(KindNotAuthorised, "only the host can restart")
			return
		}
		m.Phase = models.PhaseLobby
		m.Round = 1
		m.Turn = 0
		m.GuessedPlayers = make(map[string]bool)
		for _, p := range m.Players {
			p.Score = 0
			p.ResetTurnData()
		}
	})
	if fail != nil {
		return fail
	}
	r.broadcastSnapshot()
	return nil
}

// failInternal is the invariant-violation escape hatch (spec.md §7): the
// room fails safely into gameEnd, the process keeps running.
func (r *Room) failInternal(reason string) {
	log.Printf("engine: room %s: internal error: %s", r.model.ID, reason)
	r.timers.cancelAll()

	var word string
	r.model.Mutate(func(m *models.Room) {
		word = m.CurrentWord
		m.Phase = models.PhaseGameEnd
		m.CurrentDrawerID = ""
		m.CurrentWord = ""
		m.MaskedWord = ""
	})
	r.broadcast(models.EventTurnEnd, models.TurnEndPayload{Word: word, Reason: models.ReasonInternalError})
	r.broadcast(models.EventGameEnded, models.GameEndedPayload{Rankings: r.rankings()})
	r.broadcastSnapshot()
	r.persistAsync()
}
