package bffapi

import (
	"encoding/hex"
	"math/rand"
	"sync"

	"github.com/rawblock/bff-engine/internal/config"
	"github.com/rawblock/bff-engine/internal/engine"
	"github.com/rawblock/bff-engine/internal/registry"
	"github.com/rawblock/bff-engine/internal/soup"
	"github.com/rawblock/bff-engine/pkg/models"
)

// Simulation wires one Soup + Registry + Engine instance together behind
// a single advance-by-N-ticks call, the shape cmd/bffctl's HTTP layer
// drives.
type Simulation struct {
	mu      sync.Mutex
	cfg     config.Config
	soup    *soup.Soup
	reg     *registry.Registry
	eng     *engine.Engine
	tickNum int
}

// New builds a Simulation: populationSize random 64-byte programs seeded
// from cfg.Seed, one agent per program assigned by the registry.
func New(cfg config.Config, populationSize int) (*Simulation, error) {
	rng := rand.New(rand.NewSource(cfg.Seed))

	population := make([]models.Program, populationSize)
	for i := range population {
		for j := range population[i] {
			population[i][j] = byte(rng.Intn(256))
		}
	}

	s, err := soup.New(population, rng)
	if err != nil {
		return nil, err
	}

	reg := registry.New(cfg.Registry, rng)
	tapeIDs := make([]int, populationSize)
	for i := range tapeIDs {
		tapeIDs[i] = i
	}
	reg.AssignRoles(tapeIDs)
	reg.AssignKnightEmployers()

	eng := engine.New(cfg, reg)
	eng.SetPopulation(s.Population())

	return &Simulation{cfg: cfg, soup: s, reg: reg, eng: eng}, nil
}

// AdvanceTicks runs the substrate one epoch on every call, then n economic
// ticks, returning each tick's result in order.
func (sim *Simulation) AdvanceTicks(n int) ([]models.TickResult, error) {
	sim.mu.Lock()
	defer sim.mu.Unlock()

	if _, err := sim.soup.Epoch(sim.cfg.Substrate.StepLimit, sim.cfg.Substrate.MutationP, false); err != nil {
		return nil, err
	}
	sim.eng.SetPopulation(sim.soup.Population())

	results := make([]models.TickResult, 0, n)
	for i := 0; i < n; i++ {
		results = append(results, sim.eng.ProcessTick(sim.tickNum))
		sim.tickNum++
	}
	return results, nil
}

// PopulationHex returns the current substrate population, each program
// hex-encoded.
func (sim *Simulation) PopulationHex() []string {
	sim.mu.Lock()
	defer sim.mu.Unlock()

	pop := sim.soup.Population()
	out := make([]string, len(pop))
	for i, prog := range pop {
		out[i] = hex.EncodeToString(prog[:])
	}
	return out
}

// CacheStats exposes the engine's cache statistics for the demo API.
func (sim *Simulation) CacheStats() interface{} {
	sim.mu.Lock()
	defer sim.mu.Unlock()
	return sim.eng.Cache().Stats()
}
