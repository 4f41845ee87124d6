package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/robalobadob/memory/apps/go-server/assets"
	"github.com/robalobadob/memory/apps/go-server/internal/config"
	"github.com/robalobadob/memory/apps/go-server/internal/database"
	"github.com/robalobadob/memory/apps/go-server/internal/game"
	"github.com/robalobadob/memory/apps/go-server/internal/store"
)

func TestMain(m *testing.M) {
	zerolog.SetGlobalLevel(zerolog.Disabled)
	os.Exit(m.Run())
}

var testNow = time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)

type harness struct {
	t     *testing.T
	srv   *Server
	clock *game.ManualClock
	store store.Store
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	db, err := database.Open(database.MemoryDSN)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	if err := database.Migrate(db, assets.Migrations()); err != nil {
		t.Fatal(err)
	}
	cfg, err := config.Load()
	if err != nil {
		t.Fatal(err)
	}
	clk := game.NewManualClock()
	st := store.NewMemoryStore()
	t.Cleanup(func() { st.Close() })
	srv := New(st, db, cfg, WithClock(clk), WithNow(func() time.Time { return testNow }))
	return &harness{t: t, srv: srv, clock: clk, store: st}
}

// req is one call against the router; auth may be a bearer token,
// cookies are replayed as given.
type req struct {
	method, path string
	body         any
	token        string
	cookies      []*http.Cookie
}

func (h *harness) do(r req) *httptest.ResponseRecorder {
	h.t.Helper()
	var buf bytes.Buffer
	if r.body != nil {
		if err := json.NewEncoder(&buf).Encode(r.body); err != nil {
			h.t.Fatal(err)
		}
	}
	hr := httptest.NewRequest(r.method, r.path, &buf)
	if r.token != "" {
		hr.Header.Set("Authorization", "Bearer "+r.token)
	}
	for _, c := range r.cookies {
		hr.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	h.srv.Router().ServeHTTP(rec, hr)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return v
}

func (h *harness) newGame(token string, cookies ...*http.Cookie) (newGameRes, []*http.Cookie) {
	h.t.Helper()
	rec := h.do(req{method: http.MethodPost, path: "/game/new", token: token, cookies: cookies})
	if rec.Code != http.StatusOK {
		h.t.Fatalf("new game: %d %s", rec.Code, rec.Body.String())
	}
	return decode[newGameRes](h.t, rec), rec.Result().Cookies()
}

func (h *harness) selectTile(gameID, tileID string) selectRes {
	h.t.Helper()
	rec := h.do(req{method: http.MethodPost, path: "/game/select", body: selectReq{GameID: gameID, TileID: tileID}})
	if rec.Code != http.StatusOK {
		h.t.Fatalf("select: %d %s", rec.Code, rec.Body.String())
	}
	return decode[selectRes](h.t, rec)
}

// board reads the full in-process snapshot, faces included.
func (h *harness) board(gameID string) game.Snapshot {
	h.t.Helper()
	e, err := h.store.Get(context.Background(), gameID)
	if err != nil {
		h.t.Fatalf("board %s: %v", gameID, err)
	}
	return e.Engine.Snapshot()
}

func (h *harness) pairs(gameID string) map[string][]string {
	byFace := map[string][]string{}
	for _, tl := range h.board(gameID).Tiles {
		byFace[tl.Face] = append(byFace[tl.Face], tl.ID)
	}
	return byFace
}

func (h *harness) winAll(gameID string) game.Snapshot {
	h.t.Helper()
	byFace := h.pairs(gameID)
	var last selectRes
	for _, ids := range byFace {
		h.selectTile(gameID, ids[0])
		last = h.selectTile(gameID, ids[1])
	}
	return last.Snapshot
}

func (h *harness) signup(name string) string {
	h.t.Helper()
	rec := h.do(req{method: http.MethodPost, path: "/auth/signup", body: map[string]string{"username": name, "password": "correct-horse"}})
	if rec.Code != http.StatusOK {
		h.t.Fatalf("signup: %d %s", rec.Code, rec.Body.String())
	}
	tok := rec.Header().Get("X-Auth-Token")
	if tok == "" {
		h.t.Fatal("no token issued")
	}
	return tok
}

func TestHealth(t *testing.T) {
	h := newHarness(t)
	rec := h.do(req{method: http.MethodGet, path: "/health"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := decode[map[string]any](t, rec)
	if body["ok"] != true {
		t.Errorf("body = %v", body)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:5173" {
		t.Errorf("CORS origin = %q", got)
	}
}

func TestNewGameAndMatch(t *testing.T) {
	h := newHarness(t)
	res, cookies := h.newGame("")
	if res.GameID == "" || len(res.Snapshot.Tiles) != game.TileCount {
		t.Fatalf("new game = %+v", res)
	}
	if len(cookies) == 0 || cookies[0].Name != anonCookieName {
		t.Errorf("guest cookie not set: %v", cookies)
	}

	ids := h.pairs(res.GameID)[game.DefaultFaces[0]]
	first := h.selectTile(res.GameID, ids[0])
	if !first.Applied || !first.Snapshot.Active {
		t.Fatalf("first select = %+v", first)
	}
	second := h.selectTile(res.GameID, ids[1])
	if !second.Applied || second.Snapshot.Moves != 1 || second.Snapshot.Locked {
		t.Errorf("match = %+v", second)
	}
	again := h.selectTile(res.GameID, ids[0])
	if again.Applied {
		t.Error("matched tile selectable over HTTP")
	}
}

func TestMismatchFlipsBackAfterDelay(t *testing.T) {
	h := newHarness(t)
	res, _ := h.newGame("")
	tiles := h.board(res.GameID).Tiles
	a := tiles[0]
	var b game.TileView
	for _, tl := range tiles[1:] {
		if tl.Face != a.Face {
			b = tl
			break
		}
	}
	h.selectTile(res.GameID, a.ID)
	sel := h.selectTile(res.GameID, b.ID)
	if !sel.Snapshot.Locked || sel.Snapshot.Moves != 1 {
		t.Fatalf("mismatch = %+v", sel.Snapshot)
	}
	if third := h.selectTile(res.GameID, tiles[len(tiles)-1].ID); third.Applied {
		t.Error("selection applied while locked")
	}

	h.clock.Advance(game.FlipBackDelay)
	rec := h.do(req{method: http.MethodGet, path: "/game/" + res.GameID})
	snap := decode[game.Snapshot](t, rec)
	if snap.Locked || len(snap.Selected) != 0 || snap.Moves != 1 || snap.ElapsedSeconds != 1 {
		t.Errorf("after delay = %+v", snap)
	}
}

func TestFaceDownTilesCarryNoFace(t *testing.T) {
	h := newHarness(t)
	res, _ := h.newGame("")
	for _, tl := range res.Snapshot.Tiles {
		if tl.Face != "" {
			t.Fatalf("face-down tile %s sent with face %q", tl.ID, tl.Face)
		}
	}

	ids := h.pairs(res.GameID)[game.DefaultFaces[1]]
	sel := h.selectTile(res.GameID, ids[0])
	for _, tl := range sel.Snapshot.Tiles {
		switch {
		case tl.ID == ids[0] && tl.Face != game.DefaultFaces[1]:
			t.Errorf("selected tile face = %q", tl.Face)
		case tl.ID != ids[0] && tl.Face != "":
			t.Errorf("face-down tile %s sent with face %q", tl.ID, tl.Face)
		}
	}

	sel = h.selectTile(res.GameID, ids[1])
	shown := 0
	for _, tl := range sel.Snapshot.Tiles {
		if tl.Face != "" {
			shown++
		}
	}
	if shown != 2 {
		t.Errorf("faces shown after one match = %d, want 2", shown)
	}

	daily := decode[newRes](t, h.do(req{method: http.MethodPost, path: "/daily/new"}))
	for _, tl := range daily.Snapshot.Tiles {
		if tl.Face != "" {
			t.Fatalf("daily tile %s sent with face %q", tl.ID, tl.Face)
		}
	}
}

func TestRestartAndDelete(t *testing.T) {
	h := newHarness(t)
	res, _ := h.newGame("")
	h.selectTile(res.GameID, res.Snapshot.Tiles[0].ID)

	rec := h.do(req{method: http.MethodPost, path: "/game/restart", body: restartReq{GameID: res.GameID}})
	snap := decode[game.Snapshot](t, rec)
	if snap.Active || snap.Session != 1 || len(snap.Selected) != 0 {
		t.Errorf("restart = %+v", snap)
	}

	rec = h.do(req{method: http.MethodDelete, path: "/game/" + res.GameID})
	if rec.Code != http.StatusOK {
		t.Fatalf("delete = %d", rec.Code)
	}
	rec = h.do(req{method: http.MethodGet, path: "/game/" + res.GameID})
	if rec.Code != http.StatusNotFound {
		t.Errorf("get after delete = %d", rec.Code)
	}
	if h.store.Len() != 0 {
		t.Errorf("store len = %d", h.store.Len())
	}
}

func TestBadRequests(t *testing.T) {
	h := newHarness(t)
	cases := []struct {
		name string
		r    req
		code int
	}{
		{"unknown game", req{method: http.MethodPost, path: "/game/select", body: selectReq{GameID: "nope", TileID: "0-a"}}, http.StatusNotFound},
		{"restart unknown", req{method: http.MethodPost, path: "/game/restart", body: restartReq{GameID: "nope"}}, http.StatusNotFound},
		{"bad json", req{method: http.MethodPost, path: "/game/select"}, http.StatusBadRequest},
		{"no route", req{method: http.MethodGet, path: "/nowhere"}, http.StatusNotFound},
		{"me without token", req{method: http.MethodGet, path: "/auth/me"}, http.StatusUnauthorized},
		{"bad token", req{method: http.MethodGet, path: "/stats/me", token: "garbage"}, http.StatusUnauthorized},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if rec := h.do(tc.r); rec.Code != tc.code {
				t.Errorf("status = %d, want %d (%s)", rec.Code, tc.code, rec.Body.String())
			}
		})
	}
}

func TestUnknownTileIsIgnoredNotError(t *testing.T) {
	h := newHarness(t)
	res, _ := h.newGame("")
	sel := h.selectTile(res.GameID, "99-z")
	if sel.Applied || sel.Snapshot.Active {
		t.Errorf("unknown tile = %+v", sel)
	}
}

func TestAuthFlow(t *testing.T) {
	h := newHarness(t)
	tok := h.signup("alice")

	rec := h.do(req{method: http.MethodPost, path: "/auth/signup", body: map[string]string{"username": "Alice", "password": "correct-horse"}})
	if rec.Code != http.StatusConflict {
		t.Errorf("duplicate signup = %d", rec.Code)
	}
	rec = h.do(req{method: http.MethodPost, path: "/auth/signup", body: map[string]string{"username": "x", "password": "short"}})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("invalid signup = %d", rec.Code)
	}

	rec = h.do(req{method: http.MethodGet, path: "/auth/me", token: tok})
	me := decode[authUser](t, rec)
	if me.Username != "alice" {
		t.Errorf("me = %+v", me)
	}

	rec = h.do(req{method: http.MethodPost, path: "/auth/login", body: map[string]string{"username": "alice", "password": "wrong-password"}})
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("bad login = %d", rec.Code)
	}
	rec = h.do(req{method: http.MethodPost, path: "/auth/login", body: map[string]string{"username": "alice", "password": "correct-horse"}})
	if rec.Code != http.StatusOK || rec.Header().Get("X-Auth-Token") == "" {
		t.Errorf("login = %d", rec.Code)
	}

	rec = h.do(req{method: http.MethodPost, path: "/auth/logout"})
	var cleared bool
	for _, c := range rec.Result().Cookies() {
		if c.Name == "memory_token" && c.MaxAge < 0 {
			cleared = true
		}
	}
	if !cleared {
		t.Error("logout did not clear cookie")
	}
}

func TestWinIsRecordedForUser(t *testing.T) {
	h := newHarness(t)
	tok := h.signup("bob")
	res, _ := h.newGame(tok)

	h.clock.Advance(5 * time.Second) // not active yet: no time accrues
	final := h.winAll(res.GameID)
	if !final.Won || final.Active || final.Moves != game.PairCount {
		t.Fatalf("final = %+v", final)
	}

	rec := h.do(req{method: http.MethodGet, path: "/stats/me", token: tok})
	stats := decode[map[string]any](t, rec)
	if stats["wins"] != float64(1) || stats["bestMoves"] != float64(game.PairCount) {
		t.Errorf("stats = %v", stats)
	}

	// Restart and win again: a second session, a second record.
	h.do(req{method: http.MethodPost, path: "/game/restart", body: restartReq{GameID: res.GameID}})
	h.winAll(res.GameID)

	rec = h.do(req{method: http.MethodGet, path: "/games/mine", token: tok})
	var mine []map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&mine); err != nil {
		t.Fatal(err)
	}
	if len(mine) != 2 {
		t.Errorf("games/mine = %d rows, want 2", len(mine))
	}
	stats = decode[map[string]any](t, h.do(req{method: http.MethodGet, path: "/stats/me", token: tok}))
	if stats["wins"] != float64(2) {
		t.Errorf("wins after second game = %v", stats["wins"])
	}
}

func TestStatsDatabaseErrorIsServerError(t *testing.T) {
	h := newHarness(t)
	tok := h.signup("carol")
	if _, err := h.srv.db.Exec(`ALTER TABLE users RENAME COLUMN best_moves TO best_moves_old`); err != nil {
		t.Fatal(err)
	}
	rec := h.do(req{method: http.MethodGet, path: "/stats/me", token: tok})
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	if body := decode[map[string]string](t, rec); body["error"] != "db_error" {
		t.Errorf("body = %v", body)
	}
}

func TestDailyChallenge(t *testing.T) {
	h := newHarness(t)

	rec := h.do(req{method: http.MethodPost, path: "/daily/new"})
	first := decode[newRes](t, rec)
	guest := rec.Result().Cookies()
	if first.GameID == "" || first.Date != "2026-10-18" || first.Played || first.Snapshot == nil {
		t.Fatalf("daily new = %+v", first)
	}

	// Same guest, same day: same game.
	again := decode[newRes](t, h.do(req{method: http.MethodPost, path: "/daily/new", cookies: guest}))
	if again.GameID != first.GameID {
		t.Errorf("daily game not reused: %s vs %s", again.GameID, first.GameID)
	}

	// Another guest gets a different game with the same deal.
	other := decode[newRes](t, h.do(req{method: http.MethodPost, path: "/daily/new"}))
	if other.GameID == first.GameID {
		t.Fatal("two guests share a game")
	}
	for i := range first.Snapshot.Tiles {
		if first.Snapshot.Tiles[i].ID != other.Snapshot.Tiles[i].ID {
			t.Fatalf("daily decks differ at %d", i)
		}
	}

	h.winAll(first.GameID)

	lb := decode[lbRes](t, h.do(req{method: http.MethodGet, path: "/daily/leaderboard"}))
	if lb.Date != "2026-10-18" || len(lb.Top) != 1 || lb.Top[0].Moves != game.PairCount {
		t.Errorf("leaderboard = %+v", lb)
	}

	played := decode[newRes](t, h.do(req{method: http.MethodPost, path: "/daily/new", cookies: guest}))
	if !played.Played || played.GameID != "" {
		t.Errorf("after win = %+v", played)
	}
}

func TestDailySessionsRollOver(t *testing.T) {
	h := newHarness(t)
	rec := h.do(req{method: http.MethodPost, path: "/daily/new"})
	today := decode[newRes](t, rec)
	guest := rec.Result().Cookies()
	h.do(req{method: http.MethodPost, path: "/daily/new"}) // a second guest

	h.srv.now = func() time.Time { return testNow.Add(24 * time.Hour) }
	tomorrow := decode[newRes](t, h.do(req{method: http.MethodPost, path: "/daily/new", cookies: guest}))
	if tomorrow.Date != "2026-10-19" || tomorrow.GameID == "" || tomorrow.GameID == today.GameID {
		t.Fatalf("next day = %+v (yesterday %s)", tomorrow, today.GameID)
	}

	h.srv.daily.mu.Lock()
	defer h.srv.daily.mu.Unlock()
	if n := len(h.srv.daily.sessions); n != 1 {
		t.Errorf("daily sessions = %d after rollover, want 1", n)
	}
}
