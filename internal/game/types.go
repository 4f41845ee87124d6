// internal/game/types.go
//
// Core type definitions for the memory game engine.
// Defines:
//   - Phase: where the current pending-pair cycle stands.
//   - TileView: a tile as the presentation layer sees it.
//   - Snapshot: immutable copy of the session state after a mutation.

package game

import (
	"fmt"
	"time"
)

// Board dimensions and timing are fixed for every session.
const (
	PairCount     = 8
	TileCount     = PairCount * 2
	FlipBackDelay = 1000 * time.Millisecond
	TickInterval  = time.Second
)

// Phase describes the pending-pair state machine.
//   - "idle":        no tile face-up pending evaluation.
//   - "one_pending": one tile selected.
//   - "evaluating":  two tiles selected, board locked until flip-back.
//   - "won":         all pairs matched.
type Phase string

const (
	PhaseIdle       Phase = "idle"
	PhaseOnePending Phase = "one_pending"
	PhaseEvaluating Phase = "evaluating"
	PhaseWon        Phase = "won"
)

// TileView is a single tile in a Snapshot.
type TileView struct {
	ID       string `json:"id"`
	Face     string `json:"face,omitempty"` // blank in Public snapshots while face-down
	Matched  bool   `json:"matched"`
	Revealed bool   `json:"revealed"` // matched or currently selected
}

// Snapshot is a read-only copy of an engine's state.
type Snapshot struct {
	GameID         string     `json:"gameId"`
	Session        uint64     `json:"session"` // bumps on every restart
	Version        uint64     `json:"version"` // bumps on every mutation
	Tiles          []TileView `json:"tiles"`
	Selected       []string   `json:"selected"`
	Moves          int        `json:"moves"`
	ElapsedSeconds int        `json:"elapsedSeconds"`
	Clock          string     `json:"clock"` // MM:SS
	Phase          Phase      `json:"phase"`
	Active         bool       `json:"active"`
	Locked         bool       `json:"locked"`
	Won            bool       `json:"won"`
}

// FormatClock renders seconds as zero-padded MM:SS.
func FormatClock(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%02d:%02d", seconds/60, seconds%60)
}

// Public returns a copy safe to send to a player: tiles that are neither
// matched nor selected have their Face cleared.
func (s Snapshot) Public() Snapshot {
	tiles := make([]TileView, len(s.Tiles))
	for i, t := range s.Tiles {
		if !t.Revealed {
			t.Face = ""
		}
		tiles[i] = t
	}
	s.Tiles = tiles
	s.Selected = append([]string{}, s.Selected...)
	return s
}
