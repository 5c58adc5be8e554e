// Package scheduler produces disjoint index pairs over a soup population
// via a deterministically-seeded permutation (§4.3).
//
// Grounded on the teacher's seeded-RNG helper style (cryptoRandFloat64 in
// internal/api/routes.go's rate limiter), adapted from crypto/rand's
// unseeded jitter use to a seeded math/rand stream, since the scheduler
// must be reproducible given a parent seed (§3 invariant 8).
package scheduler

import (
	"fmt"
	"math/rand"

	"github.com/rawblock/bff-engine/pkg/models"
)

// Pair is one scheduled matchup of population indices.
type Pair struct {
	I, J int
}

// RandomDisjointPairs returns a permutation of 0..n grouped into
// consecutive pairs (indices 0&1, 2&3, ...). Every index appears exactly
// once. n must be even and at least 2; rng must be advanced sequentially
// so identical RNG state produces identical pairing (§4.3).
func RandomDisjointPairs(n int, rng *rand.Rand) ([]Pair, error) {
	if n < 2 || n%2 != 0 {
		return nil, fmt.Errorf("scheduler: population size %d must be even and >= 2: %w", n, models.ErrInvalidInput)
	}

	perm := rng.Perm(n)
	pairs := make([]Pair, n/2)
	for k := 0; k < n/2; k++ {
		pairs[k] = Pair{I: perm[2*k], J: perm[2*k+1]}
	}
	return pairs, nil
}
