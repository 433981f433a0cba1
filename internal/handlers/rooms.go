// Package handlers exposes the read-only HTTP surface around the room
// registry: public room listing and single-room detail. Room creation
// and every other mutation goes through the websocket transport, since
// spec.md models those as actor commands rather than REST calls.
package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/doodledash/server/internal/registry"
)

// GetPublicRooms lists every public, joinable lobby, adapted from the
// teacher's handlers.GetPublicRooms to read off the registry instead of
// a RoomManager.
func GetPublicRooms(reg *registry.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rooms := reg.ListPublic()
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(rooms)
	}
}

// GetRoomDetails returns the public projection of one room by id,
// adapted from the teacher's handlers.GetRoomDetails.
func GetRoomDetails(reg *registry.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		roomID := mux.Vars(r)["roomID"]

		room, ok := reg.LookupByID(roomID)
		if !ok {
			http.Error(w, "room not found", http.StatusNotFound)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(room.Model().PublicInfo())
	}
}

// Health is a liveness probe for load balancers / orchestrators.
func Health(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}
