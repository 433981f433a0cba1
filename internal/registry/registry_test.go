package registry

import (
	"context"
	"testing"
	"time"

	"github.com/doodledash/server/internal/config"
	"github.com/doodledash/server/internal/engine"
	"github.com/doodledash/server/internal/models"
	"github.com/doodledash/server/internal/store"
	"github.com/doodledash/server/internal/words"
)

type nullBroadcaster struct{}

func (nullBroadcaster) BroadcastRoom(string, models.EventType, interface{})             {}
func (nullBroadcaster) BroadcastRoomExcept(string, string, models.EventType, interface{}) {}
func (nullBroadcaster) SendToPlayer(string, string, models.EventType, interface{})        {}

func testConfig() *config.Config {
	cfg := config.GetDefaultConfig()
	cfg.Game.InboxSize = 16
	return cfg
}

func newTestRegistry(t *testing.T, st store.Store) *Registry {
	t.Helper()
	cfg := testConfig()
	cat := words.NewCatalogue()
	reg := New(cfg, cat, st, nullBroadcaster{}, engine.AllowAllJoins)
	t.Cleanup(func() {
		for _, id := range reg.roomIDs() {
			reg.Destroy(id)
		}
	})
	return reg
}

// roomIDs is a small test-only helper exposed through the package
// (rather than reflection) to clean up every spawned room after a test.
func (reg *Registry) roomIDs() []string {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	ids := make([]string, 0, len(reg.byID))
	for id := range reg.byID {
		ids = append(ids, id)
	}
	return ids
}

func settings() models.RoomSettings {
	return models.RoomSettings{MaxPlayers: 8, DrawTime: 80, MaxRounds: 3, Theme: "default"}
}

func TestCreateRoomIndexesByIDAndCode(t *testing.T) {
	reg := newTestRegistry(t, nil)

	room, host, err := reg.CreateRoom("Alice", "avatar-1", settings())
	if err != nil {
		t.Fatalf("create room: %v", err)
	}
	if !host.IsHost {
		t.Error("creator should be seated as host")
	}

	byID, ok := reg.LookupByID(room.ID())
	if !ok || byID.ID() != room.ID() {
		t.Fatal("room not indexed by id")
	}
	byCode, ok := reg.LookupByCode(room.Code())
	if !ok || byCode.ID() != room.ID() {
		t.Fatal("room not indexed by code")
	}
}

func TestLookupByCodeIsCaseInsensitive(t *testing.T) {
	reg := newTestRegistry(t, nil)
	room, _, err := reg.CreateRoom("Alice", "avatar-1", settings())
	if err != nil {
		t.Fatalf("create room: %v", err)
	}

	found, ok := reg.LookupByCode(toLower(room.Code()))
	if !ok || found.ID() != room.ID() {
		t.Fatal("lookup by lowercased code should still resolve")
	}
}

func toLower(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}

func TestDestroyRemovesFromBothIndexes(t *testing.T) {
	reg := newTestRegistry(t, nil)
	room, _, err := reg.CreateRoom("Alice", "avatar-1", settings())
	if err != nil {
		t.Fatalf("create room: %v", err)
	}

	reg.Destroy(room.ID())

	if _, ok := reg.LookupByID(room.ID()); ok {
		t.Error("room should no longer be indexed by id after Destroy")
	}
	if _, ok := reg.LookupByCode(room.Code()); ok {
		t.Error("room should no longer be indexed by code after Destroy")
	}
}

func TestRehydrateFromStoreForcesLobbyPhase(t *testing.T) {
	st := store.NewMemoryStore()
	reg := newTestRegistry(t, st)

	room, host, err := reg.CreateRoom("Alice", "avatar-1", settings())
	if err != nil {
		t.Fatalf("create room: %v", err)
	}
	code := room.Code()
	id := room.ID()

	// Simulate a process restart losing the in-memory index, but the
	// store retaining the room and the host's persisted row.
	reg2 := newTestRegistry(t, st)
	time.Sleep(10 * time.Millisecond) // let the async persistNewRoom goroutine land
	_ = st.SavePlayer(context.Background(), store.PlayerRecord{ID: host.ID, RoomID: id, Name: host.Name, IsHost: true})

	found, ok := reg2.LookupByCode(code)
	if !ok {
		t.Fatal("expected rehydration from store to succeed")
	}
	if found.Model().Phase != models.PhaseLobby {
		t.Errorf("rehydrated phase = %v, want lobby", found.Model().Phase)
	}
}

func TestFindBestPublicRoomPrefersFullerLobby(t *testing.T) {
	reg := newTestRegistry(t, nil)

	s := settings()
	s.IsPrivate = false
	roomA, _, _ := reg.CreateRoom("A-host", "a", s)
	roomB, _, _ := reg.CreateRoom("B-host", "b", s)

	// Seat one extra player in room B so it has more members than A.
	_ = roomB.Join("Second", "avatar-2", "")

	best, ok := reg.FindBestPublicRoom()
	if !ok {
		t.Fatal("expected a joinable public room")
	}
	if best.ID() != roomB.ID() {
		t.Errorf("best room = %s, want the fuller room %s (room A was %s)", best.ID(), roomB.ID(), roomA.ID())
	}
}
