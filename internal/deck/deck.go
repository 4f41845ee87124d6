// internal/deck/deck.go
//
// Deck construction for the memory game.
// Responsibilities:
//   - Build exactly two tiles per face with stable ids ("{i}-a" / "{i}-b").
//   - Shuffle with Fisher–Yates driven by an injected randomness Source.
//
// Notes:
//   - Generate has no side effects beyond consuming values from the Source.
//   - A fixed Source yields a fixed deck (daily challenge relies on this).
package deck

import "strconv"

// Tile is a single face-down card on the board.
type Tile struct {
	ID      string `json:"id"`      // Unique within one deck.
	Face    string `json:"face"`    // Symbol; exactly two tiles share it.
	Matched bool   `json:"matched"` // Set once the pair has been found.
}

// Source supplies uniform random values in [0, 1).
type Source interface {
	Float64() float64
}

// Generate builds a shuffled deck holding two tiles for every face.
func Generate(faces []string, src Source) []Tile {
	tiles := make([]Tile, 0, len(faces)*2)
	for i, f := range faces {
		id := strconv.Itoa(i)
		tiles = append(tiles,
			Tile{ID: id + "-a", Face: f},
			Tile{ID: id + "-b", Face: f},
		)
	}
	Shuffle(tiles, src)
	return tiles
}

// Shuffle permutes tiles in place (Fisher–Yates).
// For i from n-1 down to 1 it swaps position i with a uniform j in [0, i].
func Shuffle(tiles []Tile, src Source) {
	for i := len(tiles) - 1; i > 0; i-- {
		j := pick(src, i+1)
		tiles[i], tiles[j] = tiles[j], tiles[i]
	}
}

// pick maps a uniform [0,1) value onto 0..n-1.
func pick(src Source, n int) int {
	j := int(src.Float64() * float64(n))
	if j >= n { // guards a misbehaving source returning 1.0
		j = n - 1
	}
	if j < 0 {
		j = 0
	}
	return j
}
