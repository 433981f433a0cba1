package engine

import "github.com/doodledash/server/internal/models"

// Commands is the public surface the transport adapter calls into. Every
// method enqueues a closure at the room's serialisation point and waits
// for its reply, so callers never touch r.model directly (spec.md §5
// "suspension points").

// Join seats name/avatar as a new or rejoining member (requestedID may
// be empty for a fresh player).
func (r *Room) Join(name, avatar, requestedID string) JoinResult {
	reply := make(chan JoinResult, 1)
	r.enqueue(func(rm *Room) {
		res := rm.join(name, avatar, requestedID)
		rm.checkInvariants()
		reply <- res
	})
	return <-reply
}

// Leave removes playerID from the room.
func (r *Room) Leave(playerID string) {
	done := make(chan struct{})
	r.enqueue(func(rm *Room) {
		rm.leave(playerID)
		rm.checkInvariants()
		close(done)
	})
	<-done
}

// Disconnect marks playerID's transport as closed without evicting them.
func (r *Room) Disconnect(playerID string) {
	done := make(chan struct{})
	r.enqueue(func(rm *Room) {
		rm.disconnect(playerID)
		rm.checkInvariants()
		close(done)
	})
	<-done
}

// Kick removes targetID at requesterID's (host) request.
func (r *Room) Kick(requesterID, targetID string) *Error {
	reply := make(chan *Error, 1)
	r.enqueue(func(rm *Room) {
		err := rm.kick(requesterID, targetID)
		rm.checkInvariants()
		reply <- err
	})
	return <-reply
}

// UpdateSettings applies a host's `room:settings` request.
func (r *Room) UpdateSettings(playerID string, drawTime, maxRounds *int) *Error {
	reply := make(chan *Error, 1)
	r.enqueue(func(rm *Room) { reply <- rm.updateSettings(playerID, drawTime, maxRounds) })
	return <-reply
}

// StartGame applies a host's `game:start` request.
func (r *Room) StartGame(playerID string) *Error {
	reply := make(chan *Error, 1)
	r.enqueue(func(rm *Room) { reply <- rm.startGame(playerID) })
	return <-reply
}

// SelectWord applies the drawer's `game:select_word` request.
func (r *Room) SelectWord(playerID, word string) *Error {
	reply := make(chan *Error, 1)
	r.enqueue(func(rm *Room) {
		err := rm.selectWord(playerID, word)
		rm.checkInvariants()
		reply <- err
	})
	return <-reply
}

// PlayAgain applies a host's `game:play_again` request.
func (r *Room) PlayAgain(playerID string) *Error {
	reply := make(chan *Error, 1)
	r.enqueue(func(rm *Room) { reply <- rm.playAgain(playerID) })
	return <-reply
}

// Chat applies an inbound `chat:message`, which may resolve to a guess.
func (r *Room) Chat(playerID, text string) *Error {
	reply := make(chan *Error, 1)
	r.enqueue(func(rm *Room) {
		err := rm.chat(playerID, text)
		rm.checkInvariants()
		reply <- err
	})
	return <-reply
}

// Stroke forwards an opaque `draw:stroke`/`draw:clear`/`draw:undo`
// payload verbatim to every other member, authorised only for the
// current drawer in drawing (spec.md §6 "Drawing forwarding").
func (r *Room) Stroke(playerID string, eventType models.EventType, payload interface{}) *Error {
	reply := make(chan *Error, 1)
	r.enqueue(func(rm *Room) { reply <- rm.stroke(playerID, eventType, payload) })
	return <-reply
}

func (r *Room) stroke(playerID string, eventType models.EventType, payload interface{}) *Error {
	r.model.RLock()
	phase := r.model.Phase
	isDrawer := playerID == r.model.CurrentDrawerID
	r.model.RUnlock()

	if phase != models.PhaseDrawing || !isDrawer {
		return newError(KindNotAuthorised, "only the current drawer may draw")
	}
	r.broadcastExcept(playerID, eventType, payload)
	return nil
}
