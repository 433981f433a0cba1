package transport

import (
	"log"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/doodledash/server/internal/config"
)

// ServeWS upgrades an HTTP request to a websocket connection and starts
// its read/write pumps. Grounded on the teacher's handlers.ServeWS,
// generalised to take the shared Router instead of a bare Hub so a new
// connection can immediately act on room:create/room:join.
func ServeWS(hub *Hub, router *Router, cfg *config.Config) http.HandlerFunc {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  cfg.WebSocket.ReadBufferSize,
		WriteBufferSize: cfg.WebSocket.WriteBufferSize,
		CheckOrigin:     allowedOriginChecker(cfg.CORS.AllowedOrigins),
	}

	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("transport: upgrade failed: %v", err)
			return
		}

		client := NewClient(conn, hub, cfg)
		go client.WritePump()
		go client.ReadPump(router)
	}
}

func allowedOriginChecker(allowed []string) func(*http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, a := range allowed {
			if a == "*" || a == origin {
				return true
			}
		}
		return false
	}
}
