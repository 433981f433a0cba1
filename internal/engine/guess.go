package engine

import (
	"time"

	"github.com/doodledash/server/internal/guess"
	"github.com/doodledash/server/internal/models"
	"github.com/doodledash/server/pkg/idgen"
	"github.com/doodledash/server/pkg/validate"
)

// chat handles `chat:message` from player P (spec.md §4.4): arbitration
// when P is a guessing non-drawer in drawing, otherwise an ordinary
// chat line.
func (r *Room) chat(playerID, rawText string) *Error {
	text, ok := validate.ChatText(rawText, r.cfg.Game.MaxChatLength)
	if !ok {
		return newError(KindInvalidInput, "message is empty or too long")
	}

	var (
		isGuessing bool
		isDrawer   bool
		drawing    bool
		word       string
		timeLeft   int
		drawTime   int
		playerName string
		notMember  bool
	)
	r.model.RLock()
	p, present := r.model.Players[playerID]
	if !present {
		notMember = true
	} else {
		playerName = p.Name
		drawing = r.model.Phase == models.PhaseDrawing
		isDrawer = playerID == r.model.CurrentDrawerID
		isGuessing = drawing && !isDrawer && !p.HasGuessed
		word = r.model.CurrentWord
		timeLeft = r.model.TimeLeft
		drawTime = r.model.DrawTime
	}
	r.model.RUnlock()

	if notMember {
		return newError(KindNotMember, "sender is not a member of this room")
	}

	if isGuessing {
		verdict := guess.Evaluate(word, text)
		if verdict.Correct {
			r.handleCorrectGuess(playerID, playerName, timeLeft, drawTime)
			return nil
		}
		r.model.Mutate(func(m *models.Room) {
			if p, ok := m.Players[playerID]; ok {
				p.RecordGuess(false, 0)
			}
		})
		if verdict.Close {
			r.broadcastChat(playerID, playerName, text, true, true, false)
			r.sendTo(playerID, models.EventCloseGuess, models.CloseGuessPayload{Message: "close!"})
			return nil
		}
	}

	r.broadcastChat(playerID, playerName, text, drawing && !isDrawer, false, false)
	return nil
}

// handleCorrectGuess applies the scoring formula (spec.md §4.4, §8
// property 4): `100 + timeBonus + orderBonus`, where the order bonus is
// computed from the guesser's 1-based arrival index after insertion;
// the drawer receives a flat bonus per distinct correct guesser.
func (r *Room) handleCorrectGuess(playerID, playerName string, timeLeft, drawTime int) {
	var points int
	var allGuessed bool

	r.model.Mutate(func(m *models.Room) {
		if m.Phase != models.PhaseDrawing {
			return
		}
		if m.GuessedPlayers == nil {
			m.GuessedPlayers = make(map[string]bool)
		}
		m.GuessedPlayers[playerID] = true
		guessOrder := len(m.GuessedPlayers)

		timeBonus := 0
		if drawTime > 0 {
			timeBonus = int(float64(r.cfg.Points.MaxTimeBonus) * float64(timeLeft) / float64(drawTime))
		}
		orderBonus := r.cfg.Points.MaxOrderBonus - guessOrder*r.cfg.Points.OrderBonusStep
		if orderBonus < 0 {
			orderBonus = 0
		}
		points = r.cfg.Points.BaseGuessPoints + timeBonus + orderBonus

		if p, ok := m.Players[playerID]; ok {
			p.AddScore(points)
			p.RecordGuess(true, guessOrder)
		}
		if drawer, ok := m.Players[m.CurrentDrawerID]; ok {
			drawer.AddScore(r.cfg.Points.DrawerBonusPerGuess)
		}
		allGuessed = m.AllNonDrawersGuessed()
	})

	r.broadcast(models.EventCorrectGuess, models.CorrectGuessPayload{
		PlayerID:   playerID,
		PlayerName: playerName,
		Points:     points,
	})
	r.broadcastSnapshot()

	if allGuessed {
		r.timers.after(timerSettle, r.cfg.Game.AllGuessedSettle, func() {
			r.enqueueTimer(func(rm *Room) { rm.endTurn(models.ReasonAllGuessed) })
		})
	}
	r.checkInvariants()
}

func (r *Room) broadcastChat(playerID, playerName, text string, isGuess, isClose, isCorrect bool) {
	msg := models.ChatMessage{
		ID:         idgen.NewMessageID(),
		PlayerID:   playerID,
		PlayerName: playerName,
		Text:       text,
		Timestamp:  time.Now(),
		IsGuess:    isGuess,
		IsClose:    isClose,
		IsCorrect:  isCorrect,
	}
	r.model.Mutate(func(m *models.Room) {
		m.LastActivity = msg.Timestamp
		m.AppendChatMessage(msg)
	})
	r.broadcast(models.EventChatMessage, msg)
}
