package soup

import (
	"math/rand"
	"testing"

	"github.com/rawblock/bff-engine/internal/analytics"
	"github.com/rawblock/bff-engine/pkg/models"
)

func randomPopulation(n int, seed int64) []models.Program {
	rng := rand.New(rand.NewSource(seed))
	pop := make([]models.Program, n)
	for i := range pop {
		for b := range pop[i] {
			pop[i][b] = byte(rng.Intn(256))
		}
	}
	return pop
}

func TestNew_RejectsOddOrTooSmallPopulation(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	if _, err := New(randomPopulation(1, 1), rng); err == nil {
		t.Error("expected error for population of 1")
	}
	if _, err := New(randomPopulation(3, 1), rng); err == nil {
		t.Error("expected error for odd population")
	}
}

func TestEpoch_Determinism(t *testing.T) {
	pop := randomPopulation(16, 99)

	s1, _ := New(append([]models.Program(nil), pop...), rand.New(rand.NewSource(12345)))
	s2, _ := New(append([]models.Program(nil), pop...), rand.New(rand.NewSource(12345)))

	for epoch := 0; epoch < 5; epoch++ {
		out1, err1 := s1.Epoch(8192, 0.0001, true)
		out2, err2 := s2.Epoch(8192, 0.0001, true)
		if err1 != nil || err2 != nil {
			t.Fatalf("unexpected errors: %v, %v", err1, err2)
		}
		for i := range out1 {
			if out1[i] != out2[i] {
				t.Fatalf("epoch %d outcome %d diverged: %+v vs %+v", epoch, i, out1[i], out2[i])
			}
		}
	}

	for i := range s1.Population() {
		if s1.Population()[i] != s2.Population()[i] {
			t.Fatalf("final pools diverge at index %d", i)
		}
	}
}

func TestEpoch_DeterminismSpecScenario(t *testing.T) {
	// spec §8 scenario 2: seed=12345, 64 random 64-byte programs, 100
	// epochs, mutation=0.0001. Running twice yields byte-identical pools
	// and identical per-epoch entropy/compression/top-1 counts.
	const seed = 12345
	const epochs = 100

	run := func() ([]models.Program, []float64, []float64, []int) {
		s, err := New(randomPopulation(64, seed), rand.New(rand.NewSource(seed)))
		if err != nil {
			t.Fatalf("New: %v", err)
		}
		entropies := make([]float64, epochs)
		ratios := make([]float64, epochs)
		top1 := make([]int, epochs)
		for e := 0; e < epochs; e++ {
			if _, err := s.Epoch(8192, 0.0001, false); err != nil {
				t.Fatalf("Epoch %d: %v", e, err)
			}
			concat := analytics.Concat(s.Population())
			entropies[e] = analytics.ShannonEntropy(concat)
			ratios[e] = analytics.CompressionRatio(concat)
			top := analytics.TopK(s.Population(), 1)
			if len(top) > 0 {
				top1[e] = top[0].Count
			}
		}
		return s.Population(), entropies, ratios, top1
	}

	pop1, ent1, ratio1, top1a := run()
	pop2, ent2, ratio2, top1b := run()

	for i := range pop1 {
		if pop1[i] != pop2[i] {
			t.Fatalf("pool diverges at program %d", i)
		}
	}
	for e := 0; e < epochs; e++ {
		if ent1[e] != ent2[e] {
			t.Fatalf("epoch %d entropy diverged: %v vs %v", e, ent1[e], ent2[e])
		}
		if ratio1[e] != ratio2[e] {
			t.Fatalf("epoch %d compression ratio diverged: %v vs %v", e, ratio1[e], ratio2[e])
		}
		if top1a[e] != top1b[e] {
			t.Fatalf("epoch %d top-1 count diverged: %d vs %d", e, top1a[e], top1b[e])
		}
	}
}

func TestEpoch_PreservesPopulationSize(t *testing.T) {
	pop := randomPopulation(8, 7)
	s, _ := New(pop, rand.New(rand.NewSource(7)))

	if _, err := s.Epoch(1024, 0, false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(s.Population()) != 8 {
		t.Errorf("population size changed: %d", len(s.Population()))
	}
	if s.EpochIndex() != 1 {
		t.Errorf("EpochIndex() = %d, want 1", s.EpochIndex())
	}
}
