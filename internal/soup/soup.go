// Package soup owns the substrate population and drives one epoch at a
// time end-to-end: scheduling, concatenation, VM execution, splitting,
// optional mutation, and replication recording (§4.4).
//
// Grounded on internal/scanner/block_scanner.go's owning-loop structure
// (a struct holding mutable state advanced one unit of work at a time)
// and, for the optional parallel path, its atomic progress-counter idiom
// plus internal/cuda's build-tag CPU/GPU fallback shape.
package soup

import (
	"context"
	"fmt"
	"math/rand"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/rawblock/bff-engine/internal/replication"
	"github.com/rawblock/bff-engine/internal/scheduler"
	"github.com/rawblock/bff-engine/internal/vm"
	"github.com/rawblock/bff-engine/pkg/models"
)

// Soup owns the population buffer exclusively; no other component
// mutates it.
type Soup struct {
	pool       []models.Program
	rng        *rand.Rand
	epochIndex int
	// Progress is an optional observability counter, incremented once per
	// pair processed within an epoch. Safe to read concurrently with
	// EpochParallel in flight.
	Progress atomic.Int64
}

// New creates a Soup over the given initial population and seeded RNG.
// len(population) must be even and at least 2 (§3 invariant 3).
func New(population []models.Program, rng *rand.Rand) (*Soup, error) {
	if len(population) < 2 || len(population)%2 != 0 {
		return nil, fmt.Errorf("soup: population size %d must be even and >= 2: %w", len(population), models.ErrInvalidInput)
	}
	return &Soup{pool: population, rng: rng}, nil
}

// Population returns the current population. The returned slice shares
// backing storage with the Soup; callers must not mutate it.
func (s *Soup) Population() []models.Program { return s.pool }

// EpochIndex returns the number of epochs run so far.
func (s *Soup) EpochIndex() int { return s.epochIndex }

// Epoch runs one substrate epoch serially, per §4.4's numbered steps.
// When record is true, a PairOutcome is appended per pair using the
// original (pre-concatenation) A/B identity, not concatenation order.
func (s *Soup) Epoch(stepLimit int, mutationP float64, record bool) ([]models.PairOutcome, error) {
	pairs, err := scheduler.RandomDisjointPairs(len(s.pool), s.rng)
	if err != nil {
		return nil, err
	}

	nextGen := make([]models.Program, len(s.pool))
	var outcomes []models.PairOutcome
	if record {
		outcomes = make([]models.PairOutcome, 0, len(pairs))
	}

	for _, pair := range pairs {
		outcome := s.runPair(pair, stepLimit, mutationP, record)
		nextGen[pair.I] = outcome.aPrime
		nextGen[pair.J] = outcome.bPrime
		if record {
			outcomes = append(outcomes, outcome.record)
		}
		s.Progress.Add(1)
	}

	s.pool = nextGen
	s.epochIndex++
	return outcomes, nil
}

// InjectMutation applies per-byte mutation at rate p to every program in
// the pool (§4.4 inject_mutation), outside of an epoch boundary.
func (s *Soup) InjectMutation(p float64) {
	for i := range s.pool {
		mutateProgram(&s.pool[i], p, s.rng)
	}
}

type pairResult struct {
	aPrime, bPrime models.Program
	record         models.PairOutcome
}

// runPair executes steps (b)-(h) of §4.4 for one scheduled pair, in the
// exact RNG-draw order the spec requires: concatenation-order coin, then
// (inside mutateProgram) per-byte mutation draws.
func (s *Soup) runPair(pair scheduler.Pair, stepLimit int, mutationP float64, record bool) pairResult {
	a := s.pool[pair.I]
	b := s.pool[pair.J]

	order := models.OrderAB
	if s.rng.Float64() < 0.5 {
		order = models.OrderBA
	}

	var tape models.Tape
	if order == models.OrderAB {
		copy(tape[:models.ProgramSize], a[:])
		copy(tape[models.ProgramSize:], b[:])
	} else {
		copy(tape[:models.ProgramSize], b[:])
		copy(tape[models.ProgramSize:], a[:])
	}

	run := vm.Run(tape, stepLimit, 0, models.ProgramSize)

	var firstPrime, secondPrime models.Program
	copy(firstPrime[:], run.Tape[:models.ProgramSize])
	copy(secondPrime[:], run.Tape[models.ProgramSize:])

	// Map back from concatenation-order segments to the original A/B
	// identity (§4.4 step e/h).
	var aPrime, bPrime models.Program
	if order == models.OrderAB {
		aPrime, bPrime = firstPrime, secondPrime
	} else {
		aPrime, bPrime = secondPrime, firstPrime
	}

	if mutationP > 0 {
		mutateProgram(&aPrime, mutationP, s.rng)
		mutateProgram(&bPrime, mutationP, s.rng)
	}

	result := pairResult{aPrime: aPrime, bPrime: bPrime}
	if record {
		result.record = models.PairOutcome{
			I: pair.I, J: pair.J, Order: order, Run: run,
			Replicate: replication.Classify(a, b, aPrime, bPrime),
		}
	}
	return result
}

// mutateProgram draws one uniform float per byte and, when it falls below
// p, replaces that byte with a uniform random byte (§4.4 step f): byte
// space, not opcode space, per §9's preserved open question.
func mutateProgram(prog *models.Program, p float64, rng *rand.Rand) {
	for i := range prog {
		if rng.Float64() < p {
			prog[i] = byte(rng.Intn(256))
		}
	}
}

// EpochParallel runs one epoch's pair loop across a bounded worker pool
// using golang.org/x/sync/errgroup (§5's "allowed but not required"
// parallelism). Per-pair RNG substreams are reserved ahead of dispatch, on
// the single calling goroutine, in scheduler order -- only the VM runs
// themselves fan out -- so two EpochParallel runs from the same (seed,
// config, initial pool) yield identical byte images to each other (§5);
// it is a distinct deterministic schedule from the serial Epoch, not a
// bit-for-bit replay of it, since substream draws replace the single
// continuing stream's sequential per-pair draws. workers <= 1 falls back
// to the serial path, mirroring internal/cuda's CPU fallback when no GPU
// is present.
func (s *Soup) EpochParallel(ctx context.Context, workers int, stepLimit int, mutationP float64, record bool) ([]models.PairOutcome, error) {
	if workers <= 1 {
		return s.Epoch(stepLimit, mutationP, record)
	}

	pairs, err := scheduler.RandomDisjointPairs(len(s.pool), s.rng)
	if err != nil {
		return nil, err
	}

	// Reserve one deterministic sub-seed per pair before any goroutine
	// starts, so substream assignment is itself part of the ordered draw
	// sequence (§5).
	subSeeds := make([]int64, len(pairs))
	for i := range pairs {
		subSeeds[i] = s.rng.Int63()
	}

	nextGen := make([]models.Program, len(s.pool))
	recorded := make([]models.PairOutcome, len(pairs))

	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for idx, pair := range pairs {
		idx, pair := idx, pair
		subRNG := rand.New(rand.NewSource(subSeeds[idx]))
		g.Go(func() error {
			sub := &Soup{pool: s.pool, rng: subRNG}
			outcome := sub.runPair(pair, stepLimit, mutationP, record)
			nextGen[pair.I] = outcome.aPrime
			nextGen[pair.J] = outcome.bPrime
			if record {
				recorded[idx] = outcome.record
			}
			s.Progress.Add(1)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	s.pool = nextGen
	s.epochIndex++
	if !record {
		return nil, nil
	}
	return recorded, nil
}
