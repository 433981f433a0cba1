package transport

import (
	"bytes"
	"log"
	"time"

	"github.com/gorilla/websocket"

	"github.com/doodledash/server/internal/config"
	"github.com/doodledash/server/internal/models"
)

var newline = []byte{'\n'}

// Client is one player's websocket connection. Grounded on the
// teacher's pkg/websocket/client.go Client, trimmed of the standalone
// user/session bookkeeping the engine already owns on models.Player.
type Client struct {
	conn *websocket.Conn
	hub  *Hub
	cfg  *config.Config

	send chan []byte

	playerID string
	roomID   string
}

// NewClient wraps an upgraded connection. playerID/roomID are set once
// room:create/room:join succeeds; until then the client can only send
// those two event types.
func NewClient(conn *websocket.Conn, hub *Hub, cfg *config.Config) *Client {
	return &Client{
		conn: conn,
		hub:  hub,
		cfg:  cfg,
		send: make(chan []byte, cfg.WebSocket.SendBufferSize),
	}
}

func (c *Client) deliver(raw []byte) {
	select {
	case c.send <- raw:
	default:
		log.Printf("transport: send buffer full for player %s, dropping connection", c.playerID)
		go c.conn.Close()
	}
}

func (c *Client) closeSend() {
	defer func() { recover() }() // close of an already-closed channel
	close(c.send)
}

// ReadPump pumps inbound frames to dispatch until the connection closes.
// Must run in its own goroutine; the caller's HTTP handler returns
// immediately after starting ReadPump and WritePump.
func (c *Client) ReadPump(router *Router) {
	defer func() {
		router.handleDisconnect(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(c.cfg.WebSocket.MaxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(c.cfg.WebSocket.PongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(c.cfg.WebSocket.PongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("transport: read error: %v", err)
			}
			return
		}
		raw = bytes.TrimSpace(raw)

		env, err := models.ParseEnvelope(raw)
		if err != nil {
			c.sendError("invalid_message", "could not parse message envelope")
			continue
		}
		router.dispatch(c, env)
	}
}

// WritePump pumps queued frames to the connection and pings to keep it
// alive, exactly as the teacher's Client.WritePump does.
func (c *Client) WritePump() {
	ticker := time.NewTicker(c.cfg.WebSocket.PingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WebSocket.WriteWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			n := len(c.send)
			for i := 0; i < n; i++ {
				w.Write(newline)
				w.Write(<-c.send)
			}
			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WebSocket.WriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) sendError(code, message string) {
	env, err := models.NewEnvelope("error", models.ErrorPayload{Code: code, Message: message})
	if err != nil {
		return
	}
	raw, err := env.ToJSON()
	if err != nil {
		return
	}
	c.deliver(raw)
}
