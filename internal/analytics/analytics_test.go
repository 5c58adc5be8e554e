package analytics

import (
	"math/rand"
	"testing"

	"github.com/rawblock/bff-engine/internal/vm"
	"github.com/rawblock/bff-engine/pkg/models"
)

func TestShannonEntropy_EmptyIsZero(t *testing.T) {
	if got := ShannonEntropy(nil); got != 0 {
		t.Errorf("ShannonEntropy(nil) = %v, want 0", got)
	}
}

func TestShannonEntropy_UniformIsZero(t *testing.T) {
	s := make([]byte, 64)
	for i := range s {
		s[i] = 0xAB
	}
	if got := ShannonEntropy(s); got != 0 {
		t.Errorf("ShannonEntropy(uniform) = %v, want 0", got)
	}
}

func TestCompressionRatio_EmptyIsOne(t *testing.T) {
	if got := CompressionRatio(nil); got != 1.0 {
		t.Errorf("CompressionRatio(nil) = %v, want 1.0", got)
	}
}

func TestOpcodeHistogram_CountsOnlyISAOpcodes(t *testing.T) {
	var prog models.Program
	prog[0] = vm.OpInc
	prog[1] = vm.OpInc
	prog[2] = 0x00 // not an opcode

	hist := OpcodeHistogram([]models.Program{prog})
	if hist[vm.OpInc] != 2 {
		t.Errorf("hist['+'] = %d, want 2", hist[vm.OpInc])
	}
	if _, ok := hist[0x00]; ok {
		t.Errorf("histogram should not carry a non-opcode key")
	}
}

func TestTopK_TiesBrokenByFirstOccurrence(t *testing.T) {
	var p1, p2, p3 models.Program
	p1[0] = 1
	p2[0] = 2
	p3[0] = 3

	// p1 appears twice, p2 once, p3 once; p2 occurs before p3.
	pop := []models.Program{p1, p2, p3, p1}

	top := TopK(pop, 3)
	if top[0].Program != p1 || top[0].Count != 2 {
		t.Fatalf("top[0] = %+v, want p1 with count 2", top[0])
	}
	if top[1].Program != p2 {
		t.Errorf("top[1] should be p2 (first occurrence before p3), got %+v", top[1])
	}
}

func TestHammingDistance_RejectsUnequalLengths(t *testing.T) {
	if _, err := HammingDistance([]byte{1, 2}, []byte{1}); err == nil {
		t.Error("expected error for unequal-length sequences")
	}
}

func TestHammingDistance_CountsDifferences(t *testing.T) {
	dist, err := HammingDistance([]byte{1, 2, 3}, []byte{1, 0, 3})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if dist != 1 {
		t.Errorf("HammingDistance = %d, want 1", dist)
	}
}

func TestAssay_IdenticalPrograms(t *testing.T) {
	var replicator models.Program
	replicator[0] = vm.OpInc

	foods := []models.Program{replicator}
	result := Assay(replicator, foods, vm.DefaultStepLimit)
	if result.Trials != 1 {
		t.Fatalf("Trials = %d, want 1", result.Trials)
	}
}

// handCraftedReplicator copies its own leading bytes onto whatever sits
// across the tape boundary: a `[ . > } ]` loop using head0 both as the read
// pointer over its own instructions and as the loop's zero-test pointer
// (§4.1's heads are the only state a program can branch on). The loop
// ends when head0 reaches the first zero byte, so only its five
// instruction bytes are copied, not all 64.
func handCraftedReplicator() models.Program {
	var r models.Program
	r[0] = vm.OpJumpFwd
	r[1] = vm.OpCopyTo1
	r[2] = vm.OpHead0Inc
	r[3] = vm.OpHead1Inc
	r[4] = vm.OpJumpBack
	return r
}

func TestAssay_HandCraftedReplicatorAgainst100RandomFoods(t *testing.T) {
	// spec §8 scenario 3: one hand-crafted replicator against 100 random
	// foods, both orientations, reporting successes/trials.
	replicator := handCraftedReplicator()

	rng := rand.New(rand.NewSource(20260729))
	foods := make([]models.Program, 100)
	for i := range foods {
		for b := range foods[i] {
			foods[i][b] = byte(rng.Intn(256))
		}
	}

	result := Assay(replicator, foods, vm.DefaultStepLimit)
	if result.Trials != 100 {
		t.Fatalf("Trials = %d, want 100", result.Trials)
	}
	if result.Successes < 0 || result.Successes > result.Trials {
		t.Fatalf("Successes = %d out of range [0, %d]", result.Successes, result.Trials)
	}
	if result.SuccessRate != float64(result.Successes)/float64(result.Trials) {
		t.Fatalf("SuccessRate = %v, inconsistent with %d/%d", result.SuccessRate, result.Successes, result.Trials)
	}
}
