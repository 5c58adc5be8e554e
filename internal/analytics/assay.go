package analytics

import (
	"github.com/rawblock/bff-engine/internal/replication"
	"github.com/rawblock/bff-engine/internal/vm"
	"github.com/rawblock/bff-engine/pkg/models"
)

// AssayResult is the outcome of running one candidate replicator against
// a set of foods in both orientations (§8 scenario 3).
type AssayResult struct {
	Trials     int
	Successes  int
	SuccessRate float64
}

// Assay runs candidate against each food in both the R-then-food and
// food-then-R orientations. A trial succeeds only when the AB orientation
// classifies A_exact and the BA orientation classifies B_exact for the
// same food, i.e. candidate overwrote its partner with an exact copy of
// itself regardless of which side of the tape it started on.
func Assay(candidate models.Program, foods []models.Program, stepLimit int) AssayResult {
	result := AssayResult{Trials: len(foods)}

	for _, food := range foods {
		abWins := oneOrientationReplicates(candidate, food, stepLimit, models.ReplicationAExact)
		baWins := oneOrientationReplicates(food, candidate, stepLimit, models.ReplicationBExact)
		if abWins && baWins {
			result.Successes++
		}
	}

	if result.Trials > 0 {
		result.SuccessRate = float64(result.Successes) / float64(result.Trials)
	}
	return result
}

func oneOrientationReplicates(a, b models.Program, stepLimit int, want models.ReplicationKind) bool {
	var tape models.Tape
	copy(tape[:models.ProgramSize], a[:])
	copy(tape[models.ProgramSize:], b[:])

	run := vm.Run(tape, stepLimit, 0, models.ProgramSize)

	var aPrime, bPrime models.Program
	copy(aPrime[:], run.Tape[:models.ProgramSize])
	copy(bPrime[:], run.Tape[models.ProgramSize:])

	return replication.Classify(a, b, aPrime, bPrime).Kind == want
}
