// internal/deck/source.go
//
// Randomness sources for deck generation.
//   - CryptoSource: crypto/rand backed, used for normal games.
//   - NewSource:    seeded PCG, used for the daily deck and in tests.
package deck

import (
	"crypto/rand"
	"encoding/binary"
	mrand "math/rand/v2"
)

// CryptoSource draws uniform values from crypto/rand.
type CryptoSource struct{}

// Float64 returns a uniform value in [0, 1) built from 53 random bits.
func (CryptoSource) Float64() float64 {
	var b [8]byte
	_, _ = rand.Read(b[:])
	return float64(binary.BigEndian.Uint64(b[:])>>11) / (1 << 53)
}

// NewSource returns a deterministic Source for the given seed.
// The same seed always produces the same sequence.
func NewSource(seed uint64) Source {
	return mrand.New(mrand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}
