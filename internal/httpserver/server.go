// internal/httpserver/server.go
//
// HTTP server wiring for the Memory backend.
// Responsibilities:
//   - Router + middleware (JSON, CORS, timeouts, panic recovery, request IDs, access log).
//   - Public endpoints: "/", "/health".
//   - Game endpoints (optional auth): POST /game/new, GET /game/{id},
//     POST /game/select, POST /game/restart, DELETE /game/{id}, GET /game/{id}/ws.
//   - Daily Challenge endpoints (optional auth): mounted under /daily.
//   - Auth + profile/stat endpoints (require auth): /auth/*, /stats/me, /games/mine.
//   - Recording won sessions into history (and daily results) as they happen.
//
// Notes:
//   - CORS is origin‑aware and credentials‑enabled (so cookies work).
//   - Optional auth decorates requests with user context when a valid token is present;
//     routes can still run for guests, who are tracked by an anonymous cookie.
//   - The websocket route is mounted outside the request timeout.

package httpserver

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/hlog"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/memory/apps/go-server/internal/config"
	"github.com/robalobadob/memory/apps/go-server/internal/daily"
	"github.com/robalobadob/memory/apps/go-server/internal/game"
	"github.com/robalobadob/memory/apps/go-server/internal/history"
	"github.com/robalobadob/memory/apps/go-server/internal/store"
)

// Server bundles router, in-memory game registry, DB handle and config.
type Server struct {
	r        *chi.Mux
	store    store.Store
	db       *sql.DB
	cfg      config.Config
	history  *history.Store
	daily    *dailyServer
	faces    []string
	clock    game.Clock
	now      func() time.Time
	upgrader websocket.Upgrader
}

// Option customises a Server.
type Option func(*Server)

// WithFaces sets the symbol set dealt into new games.
func WithFaces(f []string) Option { return func(s *Server) { s.faces = f } }

// WithClock sets the clock handed to every engine.
func WithClock(c game.Clock) Option { return func(s *Server) { s.clock = c } }

// WithNow overrides the wall clock used for dates (daily challenge).
func WithNow(fn func() time.Time) Option { return func(s *Server) { s.now = fn } }

// New constructs a Server, installs middleware, and registers routes.
func New(st store.Store, db *sql.DB, cfg config.Config, opts ...Option) *Server {
	s := &Server{
		r:       chi.NewRouter(),
		store:   st,
		db:      db,
		cfg:     cfg,
		history: history.NewStore(db),
		faces:   game.DefaultFaces,
		clock:   game.SystemClock{},
		now:     time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	if s.cfg.RequestTimeout <= 0 {
		s.cfg.RequestTimeout = 10 * time.Second
	}
	if s.cfg.ShutdownTimeout <= 0 {
		s.cfg.ShutdownTimeout = 5 * time.Second
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkOrigin,
	}

	// --- middleware ---
	s.r.Use(chimw.RequestID)               // add X-Request-ID
	s.r.Use(chimw.RealIP)                  // set RemoteAddr from X-Forwarded-For etc.
	s.r.Use(hlog.NewHandler(log.Logger))   // request-scoped zerolog logger
	s.r.Use(hlog.AccessHandler(accessLog)) // one line per request
	s.r.Use(chimw.Recoverer)               // recover from panics
	s.r.Use(jsonContentType)               // default JSON responses
	s.r.Use(s.cors)                        // credentials-friendly CORS

	s.r.Group(func(r chi.Router) {
		r.Use(chimw.Timeout(s.cfg.RequestTimeout)) // bound handler time

		// --- diagnostics ---
		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`{"service":"memory-go","endpoints":["/health","POST /game/new","POST /game/select","POST /game/restart","/daily/*","/auth/*"]}`))
		})
		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewEncoder(w).Encode(map[string]any{"ok": true, "games": s.store.Len()})
		})

		// Game endpoints — OPTIONAL AUTH (guests can play)
		r.Group(func(r chi.Router) {
			r.Use(s.withOptionalAuth())
			r.Post("/game/new", s.handleNewGame)
			r.Get("/game/{id}", s.handleGetGame)
			r.Post("/game/select", s.handleSelect)
			r.Post("/game/restart", s.handleRestart)
			r.Delete("/game/{id}", s.handleDeleteGame)

			// Daily Challenge — OPTIONAL AUTH (guests can play; results kept on win)
			s.mountDaily(r)
		})

		// Auth + profile/stats (require auth)
		s.mountAuthRoutes(r)
	})

	// Live board stream; long-lived, so no request timeout.
	s.r.Get("/game/{id}/ws", s.handleWS)

	// JSON 404 for easier debugging
	s.r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"not_found","path":"`+r.URL.Path+`"}`, http.StatusNotFound)
	})

	return s
}

// Start serves HTTP on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context, addr string) error {
	hs := &http.Server{Addr: addr, Handler: s.r, ReadHeaderTimeout: 5 * time.Second}
	errc := make(chan error, 1)
	go func() { errc <- hs.ListenAndServe() }()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	if err := hs.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Router exposes the internal router (useful for tests).
func (s *Server) Router() chi.Router { return s.r }

// ----------------------------- middleware ----------------------------------

// jsonContentType sets a default JSON Content-Type header on all responses.
func jsonContentType(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		next.ServeHTTP(w, r)
	})
}

// cors enables credentialed CORS for the configured client origin.
func (s *Server) cors(next http.Handler) http.Handler {
	origin := s.cfg.ClientOrigin
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Vary", "Origin")
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Set("Access-Control-Allow-Credentials", "true")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,DELETE,OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func accessLog(r *http.Request, status, size int, d time.Duration) {
	hlog.FromRequest(r).Info().
		Str("method", r.Method).
		Str("path", r.URL.Path).
		Str("req_id", chimw.GetReqID(r.Context())).
		Int("status", status).
		Int("size", size).
		Dur("duration", d).
		Msg("request")
}

// ------------------------------ GAME ---------------------------------------

// newGameRes is returned by POST /game/new.
type newGameRes struct {
	GameID   string        `json:"gameId"`
	Snapshot game.Snapshot `json:"snapshot"`
}

// handleNewGame deals a new board for the caller (user or guest).
func (s *Server) handleNewGame(w http.ResponseWriter, r *http.Request) {
	entry := s.newEntry(w, r, store.ModeNormal)
	entry.Engine = game.New(game.WithFaces(s.faces), game.WithClock(s.clock))
	if err := s.register(r.Context(), entry); err != nil {
		log.Error().Err(err).Msg("save game")
		http.Error(w, `{"error":"save_failed"}`, http.StatusInternalServerError)
		return
	}
	hlog.FromRequest(r).Debug().Str("gameId", entry.ID()).Msg("new game")
	_ = json.NewEncoder(w).Encode(newGameRes{GameID: entry.ID(), Snapshot: entry.Engine.Snapshot().Public()})
}

// handleGetGame returns the current snapshot of a game.
func (s *Server) handleGetGame(w http.ResponseWriter, r *http.Request) {
	entry, ok := s.lookup(w, r, chi.URLParam(r, "id"))
	if !ok {
		return
	}
	_ = json.NewEncoder(w).Encode(entry.Engine.Snapshot().Public())
}

// selectReq/Res payloads for POST /game/select.
type selectReq struct {
	GameID string `json:"gameId"`
	TileID string `json:"tileId"`
}
type selectRes struct {
	Applied  bool          `json:"applied"` // false: intent ignored (locked, matched, …)
	Snapshot game.Snapshot `json:"snapshot"`
}

// handleSelect forwards a tile click to the engine. Ignored intents are not
// errors; the response reports applied=false with the unchanged board.
func (s *Server) handleSelect(w http.ResponseWriter, r *http.Request) {
	var req selectReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"bad_json"}`, http.StatusBadRequest)
		return
	}
	entry, ok := s.lookup(w, r, req.GameID)
	if !ok {
		return
	}
	applied := entry.Engine.SelectTile(req.TileID)
	hlog.FromRequest(r).Debug().Str("gameId", req.GameID).Str("tile", req.TileID).Bool("applied", applied).Msg("select")
	_ = json.NewEncoder(w).Encode(selectRes{Applied: applied, Snapshot: entry.Engine.Snapshot().Public()})
}

type restartReq struct {
	GameID string `json:"gameId"`
}

// handleRestart redeals the board (daily games redeal the same daily deck).
func (s *Server) handleRestart(w http.ResponseWriter, r *http.Request) {
	var req restartReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"bad_json"}`, http.StatusBadRequest)
		return
	}
	entry, ok := s.lookup(w, r, req.GameID)
	if !ok {
		return
	}
	entry.Engine.Restart()
	_ = json.NewEncoder(w).Encode(entry.Engine.Snapshot().Public())
}

// handleDeleteGame tears a game down (timers stopped, sockets left idle).
func (s *Server) handleDeleteGame(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		http.Error(w, `{"error":"not_found"}`, http.StatusNotFound)
		return
	}
	_ = json.NewEncoder(w).Encode(map[string]bool{"ok": true})
}

// lookup fetches a game entry or writes a 404.
func (s *Server) lookup(w http.ResponseWriter, r *http.Request, id string) (*store.Entry, bool) {
	entry, err := s.store.Get(r.Context(), id)
	if err != nil {
		http.Error(w, `{"error":"not_found"}`, http.StatusNotFound)
		return nil, false
	}
	return entry, true
}

// newEntry captures the owner of a game about to be created.
func (s *Server) newEntry(w http.ResponseWriter, r *http.Request, mode string) *store.Entry {
	entry := &store.Entry{Mode: mode}
	if me, _ := r.Context().Value(ctxUserKey{}).(*authUser); me != nil {
		entry.UserID = me.ID
	} else {
		entry.AnonID = s.ensureAnonID(w, r)
	}
	return entry
}

// register stores the entry and hooks win recording onto its engine.
func (s *Server) register(ctx context.Context, entry *store.Entry) error {
	entry.Engine.Subscribe(s.recorder(entry))
	return s.store.Save(ctx, entry)
}

// --------------------------- win recording ---------------------------------

// recorder returns a snapshot subscriber that persists each won session once.
func (s *Server) recorder(entry *store.Entry) func(game.Snapshot) {
	var mu sync.Mutex
	seen := map[uint64]bool{}
	return func(snap game.Snapshot) {
		if !snap.Won {
			return
		}
		mu.Lock()
		if seen[snap.Session] {
			mu.Unlock()
			return
		}
		seen[snap.Session] = true
		mu.Unlock()
		s.recordWin(entry, snap)
	}
}

// recordWin writes history, stats and daily results (best effort, logged).
func (s *Server) recordWin(entry *store.Entry, snap game.Snapshot) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	logger := log.With().Str("gameId", snap.GameID).Uint64("session", snap.Session).Logger()

	inserted, err := s.history.Record(ctx, history.Owner{UserID: entry.UserID, AnonID: entry.AnonID}, history.Result{
		GameID:         snap.GameID,
		Session:        snap.Session,
		Mode:           entry.Mode,
		Moves:          snap.Moves,
		ElapsedSeconds: snap.ElapsedSeconds,
		FinishedAt:     s.now().UTC(),
	})
	if err != nil {
		logger.Warn().Err(err).Msg("record win")
		return
	}
	if inserted && entry.UserID != "" {
		if err := s.history.BumpStats(ctx, entry.UserID, snap.Moves, snap.ElapsedSeconds); err != nil {
			logger.Warn().Err(err).Str("user", entry.UserID).Msg("bump stats")
		}
	}
	if entry.Mode == store.ModeDaily {
		uid := entry.UserID
		if uid == "" {
			uid = entry.AnonID
		}
		if err := s.daily.store.InsertResult(ctx, daily.Result{
			UserID: uid, Date: entry.Date, Moves: snap.Moves, ElapsedSeconds: snap.ElapsedSeconds,
		}); err != nil {
			logger.Warn().Err(err).Msg("insert daily result")
		}
	}
	logger.Info().Int("moves", snap.Moves).Int("seconds", snap.ElapsedSeconds).Str("mode", entry.Mode).Msg("game won")
}
