// internal/game/engine.go
//
// Core game engine for a single memory session.
// Responsibilities:
//   - Deal a 16-tile deck through the deck package (start and every restart).
//   - Apply tile selections (locked / matched / duplicate / full checks).
//   - Evaluate pairs: immediate match, or a 1000 ms flip-back on mismatch.
//   - Count moves, accumulate elapsed seconds, detect the win.
//   - Publish a Snapshot to subscribers after every mutation.
//
// Notes:
//   - All entry points take e.mu, so intents, ticks and the flip-back run one
//     at a time to completion. Locked is the game's lock, not e.mu.
//   - Each restart bumps the session counter; scheduled callbacks carry the
//     session they were created for and do nothing once it has moved on.
package game

import (
	"sync"

	"github.com/google/uuid"

	"github.com/robalobadob/memory/apps/go-server/internal/deck"
)

// DefaultFaces is the built-in symbol set used when none is configured.
var DefaultFaces = []string{"🎮", "🎯", "🎨", "🎭", "🎪", "🎸", "🎲", "🎳"}

// Engine owns the tiles, the selection set and the session counters.
type Engine struct {
	ID string

	mu       sync.Mutex
	faces    []string
	source   func() deck.Source
	clock    Clock
	tiles    []deck.Tile
	index    map[string]int // tile id -> position in tiles
	selected []string       // at most two ids, in selection order
	moves    int
	elapsed  int
	active   bool
	won      bool
	locked   bool
	session  uint64
	version  uint64
	flip     Timer // pending mismatch flip-back
	ticker   Timer // elapsed-seconds subscription
	closed   bool

	subs   map[int]func(Snapshot)
	nextID int
}

// Option configures an Engine.
type Option func(*Engine)

// WithFaces sets the symbol set dealt into each deck.
func WithFaces(faces []string) Option {
	return func(e *Engine) { e.faces = append([]string(nil), faces...) }
}

// WithSource uses src for every deal; successive restarts continue its stream.
func WithSource(src deck.Source) Option {
	return func(e *Engine) { e.source = func() deck.Source { return src } }
}

// WithSeed reseeds for every deal, so restarts reproduce the same deck.
func WithSeed(seed uint64) Option {
	return func(e *Engine) { e.source = func() deck.Source { return deck.NewSource(seed) } }
}

// WithClock replaces the wall clock (tests use ManualClock).
func WithClock(c Clock) Option {
	return func(e *Engine) { e.clock = c }
}

// WithID fixes the engine identifier instead of generating one.
func WithID(id string) Option {
	return func(e *Engine) { e.ID = id }
}

// New constructs an engine and deals the first deck.
func New(opts ...Option) *Engine {
	crypto := deck.CryptoSource{}
	e := &Engine{
		ID:     uuid.NewString(),
		faces:  DefaultFaces,
		source: func() deck.Source { return crypto },
		clock:  SystemClock{},
		subs:   make(map[int]func(Snapshot)),
	}
	for _, o := range opts {
		o(e)
	}
	e.deal()
	return e
}

// SelectTile applies a "flip this tile" intent.
// Returns true when the tile joined the selection set (AppliedIntent) and
// false when the intent was ignored. Ignored intents leave the board as is.
func (e *Engine) SelectTile(tileID string) bool {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return false
	}
	pos, ok := e.index[tileID]
	if !ok {
		e.mu.Unlock()
		return false
	}

	changed := false
	// First click starts the session.
	if !e.active && e.moves == 0 {
		e.active = true
		e.startTicker()
		changed = true
	}

	applied := e.canSelect(pos, tileID)
	if applied {
		e.selected = append(e.selected, tileID)
		if len(e.selected) == 2 {
			e.evaluate()
		}
		changed = true
	}

	if !changed {
		e.mu.Unlock()
		return false
	}
	snap := e.commit()
	e.mu.Unlock()
	e.publish(snap)
	return applied
}

// canSelect runs the selection preconditions in order.
func (e *Engine) canSelect(pos int, tileID string) bool {
	switch {
	case e.locked:
		return false
	case e.tiles[pos].Matched:
		return false
	case e.isSelected(tileID):
		return false
	case len(e.selected) >= 2:
		return false
	}
	return true
}

// evaluate resolves a full selection set. The move is counted before the
// outcome so the counter never trails a finished evaluation.
func (e *Engine) evaluate() {
	e.locked = true
	e.moves++

	a, b := e.index[e.selected[0]], e.index[e.selected[1]]
	if e.tiles[a].Face == e.tiles[b].Face {
		e.tiles[a].Matched = true
		e.tiles[b].Matched = true
		e.selected = e.selected[:0]
		e.locked = false
		e.checkWin()
		return
	}

	session := e.session
	e.flip = e.clock.AfterFunc(FlipBackDelay, func() { e.flipBack(session) })
}

// flipBack clears a mismatched pair once the delay has elapsed.
func (e *Engine) flipBack(session uint64) {
	e.mu.Lock()
	if e.closed || session != e.session || !e.locked {
		e.mu.Unlock()
		return
	}
	e.selected = e.selected[:0]
	e.locked = false
	e.flip = nil
	e.checkWin()
	snap := e.commit()
	e.mu.Unlock()
	e.publish(snap)
}

// checkWin derives the win flag; once set it stays set until restart.
func (e *Engine) checkWin() {
	if e.won || e.moves == 0 {
		return
	}
	for _, t := range e.tiles {
		if !t.Matched {
			return
		}
	}
	e.won = true
	e.active = false
	e.stopTicker()
}

// Tick advances the elapsed-seconds counter by one while a session is in
// play. Returns false (no-op) when inactive or won.
func (e *Engine) Tick() bool {
	e.mu.Lock()
	snap, ok := e.tickLocked()
	e.mu.Unlock()
	if ok {
		e.publish(snap)
	}
	return ok
}

// tickFor is the ticker callback; ticks scheduled for an earlier session
// are dropped under the same lock that applies the increment.
func (e *Engine) tickFor(session uint64) {
	e.mu.Lock()
	if session != e.session {
		e.mu.Unlock()
		return
	}
	snap, ok := e.tickLocked()
	e.mu.Unlock()
	if ok {
		e.publish(snap)
	}
}

func (e *Engine) tickLocked() (Snapshot, bool) {
	if e.closed || !e.active || e.won {
		return Snapshot{}, false
	}
	e.elapsed++
	return e.commit(), true
}

// Restart deals a fresh deck and zeroes every counter and flag.
// Any pending flip-back and the elapsed timer are cancelled.
func (e *Engine) Restart() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.cancelTimers()
	e.session++
	e.deal()
	snap := e.commit()
	e.mu.Unlock()
	e.publish(snap)
}

// Close tears the engine down: timers are cancelled, subscribers dropped,
// and every later intent is ignored.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	e.closed = true
	e.session++
	e.cancelTimers()
	e.subs = map[int]func(Snapshot){}
}

// Snapshot returns a copy of the current state.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshot()
}

// Subscribe registers fn to receive a Snapshot after every mutation.
// fn runs outside the engine lock; use Snapshot.Version to drop
// out-of-order deliveries. The returned func unsubscribes.
func (e *Engine) Subscribe(fn func(Snapshot)) (cancel func()) {
	e.mu.Lock()
	defer e.mu.Unlock()
	id := e.nextID
	e.nextID++
	e.subs[id] = fn
	return func() {
		e.mu.Lock()
		delete(e.subs, id)
		e.mu.Unlock()
	}
}

// deal resets the session onto a freshly generated deck. Caller holds e.mu.
func (e *Engine) deal() {
	e.tiles = deck.Generate(e.faces, e.source())
	e.index = make(map[string]int, len(e.tiles))
	for i, t := range e.tiles {
		e.index[t.ID] = i
	}
	e.selected = make([]string, 0, 2)
	e.moves, e.elapsed = 0, 0
	e.active, e.won, e.locked = false, false, false
}

func (e *Engine) startTicker() {
	if e.ticker != nil {
		return
	}
	session := e.session
	e.ticker = e.clock.Every(TickInterval, func() { e.tickFor(session) })
}

func (e *Engine) stopTicker() {
	if e.ticker != nil {
		e.ticker.Stop()
		e.ticker = nil
	}
}

func (e *Engine) cancelTimers() {
	if e.flip != nil {
		e.flip.Stop()
		e.flip = nil
	}
	e.stopTicker()
}

func (e *Engine) isSelected(id string) bool {
	for _, s := range e.selected {
		if s == id {
			return true
		}
	}
	return false
}

// commit bumps the version and captures the state for publishing.
func (e *Engine) commit() Snapshot {
	e.version++
	return e.snapshot()
}

func (e *Engine) snapshot() Snapshot {
	tiles := make([]TileView, len(e.tiles))
	for i, t := range e.tiles {
		tiles[i] = TileView{
			ID:       t.ID,
			Face:     t.Face,
			Matched:  t.Matched,
			Revealed: t.Matched || e.isSelected(t.ID),
		}
	}
	return Snapshot{
		GameID:         e.ID,
		Session:        e.session,
		Version:        e.version,
		Tiles:          tiles,
		Selected:       append([]string{}, e.selected...),
		Moves:          e.moves,
		ElapsedSeconds: e.elapsed,
		Clock:          FormatClock(e.elapsed),
		Phase:          e.phase(),
		Active:         e.active,
		Locked:         e.locked,
		Won:            e.won,
	}
}

func (e *Engine) phase() Phase {
	switch {
	case e.won:
		return PhaseWon
	case len(e.selected) == 2:
		return PhaseEvaluating
	case len(e.selected) == 1:
		return PhaseOnePending
	}
	return PhaseIdle
}

// publish fans a snapshot out to subscribers. Caller must not hold e.mu.
func (e *Engine) publish(s Snapshot) {
	e.mu.Lock()
	fns := make([]func(Snapshot), 0, len(e.subs))
	for _, fn := range e.subs {
		fns = append(fns, fn)
	}
	e.mu.Unlock()
	for _, fn := range fns {
		fn(s)
	}
}
