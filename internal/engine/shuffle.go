package engine

import (
	"math/rand"

	"mottoparty/internal/domain"
)

// Rand supplies non-cryptographic randomness. *math/rand.Rand
// satisfies it; this is a party game, not a security mechanism.
type Rand interface {
	Intn(n int) int
}

// ShuffleFunc permutes a motto pool. The raffle takes it as a
// dependency so tests can substitute a deterministic permutation.
type ShuffleFunc func([]domain.Submission) []domain.Submission

// Shuffle returns a new slice holding the elements of in under a
// uniformly random permutation, via a Fisher-Yates pass. The input
// slice is left untouched.
func Shuffle[T any](r Rand, in []T) []T {
	out := make([]T, len(in))
	copy(out, in)
	for i := len(out) - 1; i >= 1; i-- {
		j := r.Intn(i + 1)
		out[i], out[j] = out[j], out[i]
	}
	return out
}

// NewShuffle builds a ShuffleFunc over mottos backed by r.
func NewShuffle(r Rand) ShuffleFunc {
	return func(pool []domain.Submission) []domain.Submission {
		return Shuffle(r, pool)
	}
}

// systemRand delegates to the goroutine-safe global source.
type systemRand struct{}

func (systemRand) Intn(n int) int { return rand.Intn(n) }
