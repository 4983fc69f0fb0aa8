// Package random provides the uniform draw source used by probabilistic
// actions, plus a cryptographic seed helper.
//
// Every draw the engine makes flows through a Source so outcome resolution is
// deterministic under test: seed a Source (or script one) and the same action
// always produces the same result.
package random

import (
	crand "crypto/rand"
	"encoding/binary"
	"fmt"
	"math/rand"
)

// Source supplies the uniform draws required by outcome resolution.
type Source interface {
	// Roll returns a uniform draw in [1, 100].
	Roll() int
	// Percent returns a uniform draw in [lo, hi] inclusive.
	Percent(lo, hi int) int
	// Coin returns an independent fair coin flip.
	Coin() bool
	// Intn returns a uniform draw in [0, n). It panics if n <= 0.
	Intn(n int) int
}

type seededSource struct {
	rng *rand.Rand
}

// NewSource returns a Source seeded deterministically.
// Given the same seed, the same call sequence yields the same draws.
func NewSource(seed int64) Source {
	return &seededSource{rng: rand.New(rand.NewSource(seed))}
}

func (s *seededSource) Roll() int {
	return s.rng.Intn(100) + 1
}

func (s *seededSource) Percent(lo, hi int) int {
	if hi <= lo {
		return lo
	}
	return lo + s.rng.Intn(hi-lo+1)
}

func (s *seededSource) Coin() bool {
	return s.rng.Intn(2) == 0
}

func (s *seededSource) Intn(n int) int {
	return s.rng.Intn(n)
}

// NewSeed generates a random seed using crypto/rand.
func NewSeed() (int64, error) {
	var b [8]byte
	if _, err := crand.Read(b[:]); err != nil {
		return 0, fmt.Errorf("read random seed: %w", err)
	}

	return int64(binary.LittleEndian.Uint64(b[:])), nil
}
