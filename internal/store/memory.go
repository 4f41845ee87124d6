// internal/store/memory.go
//
// In-memory registry of live game engines.
// Sessions are never persisted: the board lives only as long as the process
// (completed results go to the history package instead).
//
// Characteristics:
//   - Stores *Entry objects keyed by engine ID in a map.
//   - Concurrency-safe via RWMutex (concurrent reads allowed, writes exclusive).
//   - Delete and Close tear engines down so no timer outlives its entry.
//   - With WithIdleEviction, a periodic sweep closes and drops entries that
//     nobody has fetched or saved for the idle timeout.
//   - ErrNotFound is returned for missing game IDs on Get().

package store

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/robalobadob/memory/apps/go-server/internal/game"
)

// ErrNotFound reports an unknown game ID.
var ErrNotFound = errors.New("not found")

// Modes a game can be started in.
const (
	ModeNormal = "normal"
	ModeDaily  = "daily"
)

// Entry is a live engine plus who it belongs to.
type Entry struct {
	Engine *game.Engine
	UserID string // signed-in owner, if any
	AnonID string // guest cookie otherwise
	Mode   string // ModeNormal | ModeDaily
	Date   string // daily date key (ModeDaily only)
}

// ID returns the engine identifier.
func (e *Entry) ID() string { return e.Engine.ID }

// Store defines the registry interface for live games.
type Store interface {
	// Save adds or replaces an entry.
	Save(ctx context.Context, e *Entry) error

	// Get retrieves an entry by game ID.
	// Returns ErrNotFound if the game is not registered.
	Get(ctx context.Context, id string) (*Entry, error)

	// Delete removes an entry and closes its engine.
	Delete(ctx context.Context, id string) error

	// Len reports the number of live games.
	Len() int

	// Close tears down every engine.
	Close() error
}

// slot is a stored entry plus the sweep count at its last access.
type slot struct {
	entry *Entry
	seen  atomic.Uint64
}

// memory is an in-memory map-based Store implementation.
type memory struct {
	mu    sync.RWMutex     // guards games map and sweeps
	games map[string]*slot // keyed by Engine.ID

	clock       game.Clock
	idle, every time.Duration
	sweeps      uint64 // sweeps run so far
	maxIdle     uint64 // sweeps an entry may go untouched
	sweeper     game.Timer
	stopOnce    sync.Once
}

// Option customises the memory store.
type Option func(*memory)

// WithIdleEviction sweeps the store every interval on clock and closes
// entries not accessed (Get or Save) for at least idle.
func WithIdleEviction(clock game.Clock, idle, every time.Duration) Option {
	return func(m *memory) { m.clock, m.idle, m.every = clock, idle, every }
}

// NewMemoryStore constructs a new in-memory Store.
func NewMemoryStore(opts ...Option) Store {
	m := &memory{games: make(map[string]*slot)}
	for _, o := range opts {
		o(m)
	}
	if m.clock != nil && m.idle > 0 && m.every > 0 {
		m.maxIdle = uint64((m.idle + m.every - 1) / m.every)
		m.sweeper = m.clock.Every(m.every, m.sweep)
	}
	return m
}

// Save adds or updates the entry. A replaced engine is closed.
func (m *memory) Save(ctx context.Context, e *Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if old, ok := m.games[e.ID()]; ok && old.entry.Engine != e.Engine {
		old.entry.Engine.Close()
	}
	sl := &slot{entry: e}
	sl.seen.Store(m.sweeps)
	m.games[e.ID()] = sl
	return nil
}

// Get looks up an entry by ID and marks it as recently used.
func (m *memory) Get(ctx context.Context, id string) (*Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if sl, ok := m.games[id]; ok {
		sl.seen.Store(m.sweeps)
		return sl.entry, nil
	}
	return nil, ErrNotFound
}

func (m *memory) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	sl, ok := m.games[id]
	delete(m.games, id)
	m.mu.Unlock()
	if !ok {
		return ErrNotFound
	}
	sl.entry.Engine.Close()
	return nil
}

// sweep drops entries idle for more than maxIdle sweeps.
// Engines are closed outside the store lock.
func (m *memory) sweep() {
	m.mu.Lock()
	m.sweeps++
	var stale []*Entry
	for id, sl := range m.games {
		if m.sweeps-sl.seen.Load() > m.maxIdle {
			stale = append(stale, sl.entry)
			delete(m.games, id)
		}
	}
	m.mu.Unlock()
	for _, e := range stale {
		e.Engine.Close()
	}
	if len(stale) > 0 {
		log.Debug().Int("evicted", len(stale)).Msg("idle games closed")
	}
}

func (m *memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.games)
}

func (m *memory) Close() error {
	m.stopOnce.Do(func() {
		if m.sweeper != nil {
			m.sweeper.Stop()
		}
	})
	m.mu.Lock()
	games := m.games
	m.games = make(map[string]*slot)
	m.mu.Unlock()
	for _, sl := range games {
		sl.entry.Engine.Close()
	}
	return nil
}
