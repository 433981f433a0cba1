package engine

import (
	"os"
	"sync"
	"testing"
	"time"

	"github.com/doodledash/server/internal/config"
	"github.com/doodledash/server/internal/models"
	"github.com/doodledash/server/internal/words"
)

// recordingBroadcaster captures every outbound event for assertions
// instead of touching a real websocket connection.
type recordingBroadcaster struct {
	mu     sync.Mutex
	events []recordedEvent
}

type recordedEvent struct {
	roomID  string
	player  string // empty for room-wide/except sends
	except  string
	evtType models.EventType
	payload interface{}
}

func (b *recordingBroadcaster) BroadcastRoom(roomID string, eventType models.EventType, payload interface{}) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, recordedEvent{roomID: roomID, evtType: eventType, payload: payload})
}

func (b *recordingBroadcaster) BroadcastRoomExcept(roomID, exceptPlayerID string, eventType models.EventType, payload interface{}) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, recordedEvent{roomID: roomID, except: exceptPlayerID, evtType: eventType, payload: payload})
}

func (b *recordingBroadcaster) SendToPlayer(roomID, playerID string, eventType models.EventType, payload interface{}) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, recordedEvent{roomID: roomID, player: playerID, evtType: eventType, payload: payload})
}

func (b *recordingBroadcaster) eventsOfType(t models.EventType) []recordedEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []recordedEvent
	for _, e := range b.events {
		if e.evtType == t {
			out = append(out, e)
		}
	}
	return out
}

// testConfig returns a config with the configurable timers shrunk to
// milliseconds so tests don't block on real spec.md durations (15s
// auto-pick, etc). The one-second drawing tick is not configurable.
func testConfig() *config.Config {
	cfg := config.GetDefaultConfig()
	cfg.Game.StartCountdown = 5 * time.Millisecond
	cfg.Game.AutoPickTimeout = 500 * time.Millisecond
	cfg.Game.TurnEndDelay = 5 * time.Millisecond
	cfg.Game.AllGuessedSettle = 5 * time.Millisecond
	cfg.Game.EmptyRoomGrace = 20 * time.Millisecond
	cfg.Game.MinPlayers = 2
	cfg.Game.InboxSize = 16
	return cfg
}

func testCatalogue(t *testing.T, wordList ...string) *words.Catalogue {
	t.Helper()
	dir := t.TempDir()
	path := dir + "/words.json"
	body := `{"words": [`
	for i, w := range wordList {
		if i > 0 {
			body += ", "
		}
		body += `"` + w + `"`
	}
	body += `]}`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write word file: %v", err)
	}
	cat := words.NewCatalogue()
	if err := cat.LoadTheme("default", path); err != nil {
		t.Fatalf("load theme: %v", err)
	}
	return cat
}

func newTestRoom(t *testing.T, cfg *config.Config, cat *words.Catalogue) (*Room, *recordingBroadcaster) {
	t.Helper()
	host := models.NewPlayer("host-1", "Alice", "avatar-1")
	model := models.NewRoom("room-1", "ABC123", host, models.RoomSettings{
		MaxPlayers: 8,
		DrawTime:   30,
		MaxRounds:  1,
		Theme:      "default",
	})

	bc := &recordingBroadcaster{}
	room := NewRoom(model, cfg, cat, nil, bc, AllowAllJoins)
	go room.Run()
	t.Cleanup(room.Stop)
	return room, bc
}

func TestStartGameRequiresHost(t *testing.T) {
	cfg := testConfig()
	cat := testCatalogue(t, "cat", "dog", "bird")
	room, _ := newTestRoom(t, cfg, cat)

	joinRes := room.Join("Bob", "avatar-2", "")
	if joinRes.Err != nil {
		t.Fatalf("join failed: %v", joinRes.Err)
	}

	if err := room.StartGame(joinRes.Player.ID); err == nil {
		t.Fatal("expected non-host StartGame to fail")
	}
}

func TestStartGameRejectsBelowMinPlayers(t *testing.T) {
	cfg := testConfig()
	cat := testCatalogue(t, "cat", "dog", "bird")
	room, _ := newTestRoom(t, cfg, cat)

	if err := room.StartGame("host-1"); err == nil {
		t.Fatal("expected StartGame with a single player to fail")
	}
}

// TestScoringFormula drives a full turn with the word "elephant" and one
// guesser. By the formula, a first correct guesser at 25s left out of 30s
// scores 100 + floor(25/30*100) + max(0, 100-1*20) = 100 + 83 + 80 = 263.
// The time bonus depends on how many wall-clock ticks elapsed before the
// guess landed, so the test asserts only the base + order-bonus floor.
func TestScoringFormula(t *testing.T) {
	cfg := testConfig()
	cat := testCatalogue(t, "elephant", "cat", "dog")
	room, bc := newTestRoom(t, cfg, cat)

	joinB := room.Join("Bob", "avatar-2", "")
	if joinB.Err != nil {
		t.Fatalf("join failed: %v", joinB.Err)
	}

	if err := room.StartGame("host-1"); err != nil {
		t.Fatalf("start game: %v", err)
	}

	drawerID := waitForChooseWord(t, bc)

	var guesserID, drawerActualID string
	if drawerID == "host-1" {
		drawerActualID, guesserID = "host-1", joinB.Player.ID
	} else {
		drawerActualID, guesserID = joinB.Player.ID, "host-1"
	}

	if err := room.SelectWord(drawerActualID, "elephant"); err != nil {
		t.Fatalf("select word: %v", err)
	}

	if err := room.Chat(guesserID, "elephant"); err != nil {
		t.Fatalf("chat guess: %v", err)
	}

	waitFor(t, func() bool {
		return len(bc.eventsOfType(models.EventCorrectGuess)) >= 1
	})

	correct := bc.eventsOfType(models.EventCorrectGuess)
	payload := correct[0].payload.(models.CorrectGuessPayload)
	if payload.PlayerID != guesserID {
		t.Fatalf("correct guess credited to %s, want %s", payload.PlayerID, guesserID)
	}
	// First correct guesser: orderBonus = 100 - 1*20 = 80, plus a
	// timeBonus in [0,100] depending on elapsed wall-clock ticks, plus
	// the 100 base. Lower bound asserts the base+order floor regardless
	// of how many one-second ticks elapsed before the guess landed.
	if payload.Points < cfg.Points.BaseGuessPoints+80 {
		t.Errorf("points = %d, want at least %d", payload.Points, cfg.Points.BaseGuessPoints+80)
	}
}

func waitForChooseWord(t *testing.T, bc *recordingBroadcaster) string {
	t.Helper()
	waitFor(t, func() bool {
		return len(bc.eventsOfType(models.EventChooseWord)) >= 1
	})
	events := bc.eventsOfType(models.EventChooseWord)
	return events[0].player
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestLeavePromotesNewHost(t *testing.T) {
	cfg := testConfig()
	cat := testCatalogue(t, "cat", "dog", "bird")
	room, bc := newTestRoom(t, cfg, cat)

	joinRes := room.Join("Bob", "avatar-2", "")
	if joinRes.Err != nil {
		t.Fatalf("join failed: %v", joinRes.Err)
	}

	room.Leave("host-1")

	waitFor(t, func() bool {
		return len(bc.eventsOfType(models.EventHostChanged)) >= 1
	})

	hostChanged := bc.eventsOfType(models.EventHostChanged)
	payload := hostChanged[0].payload.(models.HostChangedPayload)
	if payload.NewHostID != joinRes.Player.ID {
		t.Errorf("new host = %s, want %s", payload.NewHostID, joinRes.Player.ID)
	}
}

func TestJoinRejectsWhenRoomFull(t *testing.T) {
	cfg := testConfig()
	cat := testCatalogue(t, "cat", "dog", "bird")
	host := models.NewPlayer("host-1", "Alice", "avatar-1")
	model := models.NewRoom("room-1", "ABC123", host, models.RoomSettings{
		MaxPlayers: 1,
		DrawTime:   30,
		MaxRounds:  1,
		Theme:      "default",
	})
	bc := &recordingBroadcaster{}
	room := NewRoom(model, cfg, cat, nil, bc, AllowAllJoins)
	go room.Run()
	t.Cleanup(room.Stop)

	res := room.Join("Bob", "avatar-2", "")
	if res.Err == nil {
		t.Fatal("expected join to a full room to fail")
	}
}
