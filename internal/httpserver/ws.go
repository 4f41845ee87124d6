// internal/httpserver/ws.go
//
// Live board stream over a websocket.
//   - Server → client: the current snapshot on connect, then one snapshot per
//     engine mutation (selection, flip-back, tick, restart). Face-down tiles
//     carry no face.
//   - Client → server: intents {"type":"select","tileId":"3-a"} and
//     {"type":"restart"}. Ignored intents produce no message.

package httpserver

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"

	"github.com/robalobadob/memory/apps/go-server/internal/game"
	"github.com/robalobadob/memory/apps/go-server/internal/store"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second
	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second
	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10
	// Maximum message size allowed from peer.
	maxMessageSize = 512
	// Snapshots buffered per connection before the oldest is dropped.
	sendBuffer = 16
)

// wsIntent is an incoming command from the board UI.
type wsIntent struct {
	Type   string `json:"type"` // "select" | "restart"
	TileID string `json:"tileId,omitempty"`
}

// wsClient pumps snapshots from one engine to one connection.
type wsClient struct {
	conn   *websocket.Conn
	entry  *store.Entry
	send   chan game.Snapshot
	done   chan struct{}
	touch  func() // marks the game as in use for idle eviction
	logger zerolog.Logger
}

// checkOrigin accepts same-origin, non-browser, and the configured client origin.
func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || origin == s.cfg.ClientOrigin {
		return true
	}
	u, err := url.Parse(origin)
	return err == nil && u.Host == r.Host
}

// handleWS upgrades the connection and streams the game's snapshots.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	entry, ok := s.lookup(w, r, chi.URLParam(r, "id"))
	if !ok {
		return
	}
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		hlog.FromRequest(r).Warn().Err(err).Msg("websocket upgrade")
		return
	}

	c := &wsClient{
		conn:   conn,
		entry:  entry,
		send:   make(chan game.Snapshot, sendBuffer),
		done:   make(chan struct{}),
		touch:  func() { _, _ = s.store.Get(context.Background(), entry.ID()) },
		logger: hlog.FromRequest(r).With().Str("gameId", entry.ID()).Logger(),
	}
	cancel := entry.Engine.Subscribe(c.enqueue)
	c.enqueue(entry.Engine.Snapshot())

	go c.writePump()
	c.readPump()
	cancel()
}

// enqueue never blocks the engine: when the buffer is full the oldest
// snapshot is dropped, since every snapshot carries the full board.
func (c *wsClient) enqueue(s game.Snapshot) {
	for {
		select {
		case <-c.done:
			return
		case c.send <- s:
			return
		default:
		}
		select {
		case <-c.send:
		default:
		}
	}
}

// readPump applies intents until the peer goes away.
func (c *wsClient) readPump() {
	defer func() {
		close(c.done)
		c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Warn().Err(err).Msg("websocket read")
			}
			return
		}
		c.touch()
		var in wsIntent
		if err := json.Unmarshal(message, &in); err != nil {
			c.logger.Debug().Err(err).Msg("bad intent")
			continue
		}
		switch in.Type {
		case "select":
			c.entry.Engine.SelectTile(in.TileID)
		case "restart":
			c.entry.Engine.Restart()
		default:
			c.logger.Debug().Str("type", in.Type).Msg("unknown intent")
		}
	}
}

// writePump sends snapshots in version order and keeps the connection alive.
func (c *wsClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	var last uint64
	sent := false
	for {
		select {
		case s := <-c.send:
			if sent && s.Version <= last {
				continue // delivered out of order; a newer one already went out
			}
			last, sent = s.Version, true
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(s.Public()); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			_ = c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
			return
		}
	}
}
