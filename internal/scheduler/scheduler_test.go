package scheduler

import (
	"math/rand"
	"testing"
)

func TestRandomDisjointPairs_CoversEveryIndexOnce(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	pairs, err := RandomDisjointPairs(10, rng)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(pairs) != 5 {
		t.Fatalf("len(pairs) = %d, want 5", len(pairs))
	}

	seen := make(map[int]bool)
	for _, p := range pairs {
		if seen[p.I] || seen[p.J] {
			t.Fatalf("index reused across pairs: %+v", p)
		}
		seen[p.I] = true
		seen[p.J] = true
	}
	for i := 0; i < 10; i++ {
		if !seen[i] {
			t.Errorf("index %d never appears in any pair", i)
		}
	}
}

func TestRandomDisjointPairs_DeterministicGivenSeed(t *testing.T) {
	pairs1, _ := RandomDisjointPairs(8, rand.New(rand.NewSource(7)))
	pairs2, _ := RandomDisjointPairs(8, rand.New(rand.NewSource(7)))

	for i := range pairs1 {
		if pairs1[i] != pairs2[i] {
			t.Fatalf("pairing differs between identically seeded runs at index %d: %+v vs %+v", i, pairs1[i], pairs2[i])
		}
	}
}

func TestRandomDisjointPairs_RejectsOddOrTooSmall(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for _, n := range []int{0, 1, 3, 5} {
		if _, err := RandomDisjointPairs(n, rng); err == nil {
			t.Errorf("RandomDisjointPairs(%d) should error", n)
		}
	}
}
