// internal/httpserver/routes_daily.go
//
// HTTP routes for the "Daily Challenge" mode.
// Exposes two endpoints under /daily:
//   - POST /daily/new         → start today's board (creates or reuses the game)
//   - GET  /daily/leaderboard → fetch top 20 results for today (or a given date)
//
// Play goes through the regular /game/select, /game/restart and ws routes.
// Every player gets the same deck on a given day (seed = HMAC(salt, date)).
// Only the first win of the day is kept (enforced by DB UNIQUE(user_id, date)).

package httpserver

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"

	"github.com/robalobadob/memory/apps/go-server/internal/daily"
	"github.com/robalobadob/memory/apps/go-server/internal/game"
	"github.com/robalobadob/memory/apps/go-server/internal/store"
)

// dailyServer wraps dependencies for /daily endpoints.
type dailyServer struct {
	srv      *Server
	store    *daily.Store
	sessions map[string]string // player -> today's game id
	day      string            // date key the sessions belong to
	mu       sync.Mutex        // guards sessions and day
}

// mountDaily registers all /daily routes.
func (s *Server) mountDaily(r chi.Router) {
	dd := &dailyServer{
		srv:      s,
		store:    daily.NewStore(s.db),
		sessions: make(map[string]string),
	}
	s.daily = dd
	r.Route("/daily", func(r chi.Router) {
		r.Post("/new", dd.handleNew)
		r.Get("/leaderboard", dd.handleLeaderboard)
	})
}

// today returns today's date key and deck seed.
func (d *dailyServer) today() (date string, seed uint64) {
	now := d.srv.now()
	return daily.DateKey(now), daily.Seed(now, d.srv.cfg.DailySalt)
}

// -----------------------------------------------------------------------------
// /daily/new

// newRes is returned by /daily/new.
type newRes struct {
	GameID   string         `json:"gameId"`
	Date     string         `json:"date"`
	Played   bool           `json:"played"`
	Snapshot *game.Snapshot `json:"snapshot,omitempty"`
}

// handleNew creates or reuses today's game for the caller.
// - If the caller already has a result for today → Played=true, no game.
// - Otherwise reuse the caller's live game for today, or deal a seeded one.
// Sessions from earlier days are forgotten on the first request of a new day.
func (d *dailyServer) handleNew(w http.ResponseWriter, r *http.Request) {
	entry := d.srv.newEntry(w, r, store.ModeDaily)
	uid := entry.UserID
	if uid == "" {
		uid = entry.AnonID
	}
	date, seed := d.today()
	entry.Date = date

	if played, err := d.store.AlreadyPlayed(r.Context(), uid, date); err == nil && played {
		_ = json.NewEncoder(w).Encode(newRes{Date: date, Played: true})
		return
	}

	key := uid
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.day != date {
		d.sessions = make(map[string]string)
		d.day = date
	}
	if id, ok := d.sessions[key]; ok {
		if live, err := d.srv.store.Get(r.Context(), id); err == nil {
			snap := live.Engine.Snapshot().Public()
			_ = json.NewEncoder(w).Encode(newRes{GameID: id, Date: date, Snapshot: &snap})
			return
		}
		delete(d.sessions, key)
	}

	entry.Engine = game.New(game.WithFaces(d.srv.faces), game.WithClock(d.srv.clock), game.WithSeed(seed))
	if err := d.srv.register(r.Context(), entry); err != nil {
		http.Error(w, `{"error":"save_failed"}`, http.StatusInternalServerError)
		return
	}
	d.sessions[key] = entry.ID()
	snap := entry.Engine.Snapshot().Public()
	_ = json.NewEncoder(w).Encode(newRes{GameID: entry.ID(), Date: date, Snapshot: &snap})
}

// -----------------------------------------------------------------------------
// /daily/leaderboard

// lbRes is returned by /daily/leaderboard.
type lbRes struct {
	Date string        `json:"date"`
	Top  []daily.LBRow `json:"top"`
}

// handleLeaderboard returns the leaderboard for the given date (default today).
func (d *dailyServer) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	date := r.URL.Query().Get("date")
	if date == "" {
		date, _ = d.today()
	}
	rows, err := d.store.Leaderboard(r.Context(), date, 20)
	if err != nil {
		http.Error(w, `{"error":"server_error"}`, http.StatusInternalServerError)
		return
	}
	_ = json.NewEncoder(w).Encode(lbRes{Date: date, Top: rows})
}
