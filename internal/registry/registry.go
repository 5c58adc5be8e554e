// Package registry implements AgentRegistry: role assignment, typed agent
// creation, employer assignment, role mutation, and id/tape/role lookups
// (§4.7).
//
// Grounded on internal/heuristics/investigation.go's RWMutex-guarded
// registry-by-id style, generalized from an incident-response case store
// to a typed agent table.
package registry

import (
	"math/rand"
	"sort"
	"sync"

	"github.com/rawblock/bff-engine/internal/config"
	"github.com/rawblock/bff-engine/pkg/models"
)

// Registry owns the set of agents exclusively; no other component
// mutates it directly (§3 "Ownership").
type Registry struct {
	mu            sync.RWMutex
	cfg           config.RegistryConfig
	rng           *rand.Rand
	agents        map[string]models.Agent
	tapeToAgent   map[int]string
	roleCounters  map[string]int
}

// New creates an empty registry over the given configuration and seeded
// RNG.
func New(cfg config.RegistryConfig, rng *rand.Rand) *Registry {
	return &Registry{
		cfg:          cfg,
		rng:          rng,
		agents:       make(map[string]models.Agent),
		tapeToAgent:  make(map[int]string),
		roleCounters: map[string]int{"K": 0, "N": 0, "M": 0},
	}
}

// AssignRoles computes role counts from the configured ratios
// (n_king = floor(N*r_king), n_knight = floor(N*r_knight), remainder
// mercenary), shuffles the role sequence, and pairs it with tapeIDs in
// the given order, creating one agent per tape id (§4.7).
func (r *Registry) AssignRoles(tapeIDs []int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := len(tapeIDs)
	nKing := int(float64(n) * r.cfg.RoleRatios[models.RoleKing])
	nKnight := int(float64(n) * r.cfg.RoleRatios[models.RoleKnight])
	nMerc := n - nKing - nKnight

	roles := make([]models.Role, 0, n)
	for i := 0; i < nKing; i++ {
		roles = append(roles, models.RoleKing)
	}
	for i := 0; i < nKnight; i++ {
		roles = append(roles, models.RoleKnight)
	}
	for i := 0; i < nMerc; i++ {
		roles = append(roles, models.RoleMercenary)
	}
	r.rng.Shuffle(len(roles), func(i, j int) { roles[i], roles[j] = roles[j], roles[i] })

	for i, tapeID := range tapeIDs {
		r.createAgent(tapeID, roles[i])
	}
}

func (r *Registry) createAgent(tapeID int, role models.Role) models.Agent {
	prefix := role.Prefix()
	index := r.roleCounters[prefix]
	r.roleCounters[prefix]++
	id := models.FormatAgentID(role, index)

	currencyRange := r.cfg.InitialCurrency[role]
	currency := randInRange(r.rng, currencyRange[0], currencyRange[1])

	wealth := r.initialWealth(role)

	agent := models.Agent{
		ID: id, TapeID: tapeID, Role: role,
		Currency: currency, Wealth: wealth, Alive: true,
	}
	switch role {
	case models.RoleKnight:
		agent.RetainerFee = randInRange(r.rng, 20, 30)
	case models.RoleKing:
		agent.BribeThreshold = randInRange(r.rng, 300, 500)
	}

	r.agents[id] = agent
	r.tapeToAgent[tapeID] = id
	return agent
}

func (r *Registry) initialWealth(role models.Role) models.WealthTraits {
	ranges := r.cfg.InitialWealth[role]
	var w models.WealthTraits
	for _, name := range models.TraitNames {
		lo, hi := 0, 5
		if rng, ok := ranges[name]; ok {
			lo, hi = rng[0], rng[1]
		}
		w.Set(name, randInRange(r.rng, lo, hi))
	}
	return w
}

func randInRange(rng *rand.Rand, lo, hi int) int {
	if hi <= lo {
		return lo
	}
	return lo + rng.Intn(hi-lo+1)
}

// GetAgent looks up an agent by id.
func (r *Registry) GetAgent(id string) (models.Agent, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.agents[id]
	return a, ok
}

// GetAgentByTape looks up an agent by its backing tape id.
func (r *Registry) GetAgentByTape(tapeID int) (models.Agent, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.tapeToAgent[tapeID]
	if !ok {
		return models.Agent{}, false
	}
	a, ok := r.agents[id]
	return a, ok
}

// UpdateAgent writes back an agent's mutated state. No-op if the id is
// not registered.
func (r *Registry) UpdateAgent(a models.Agent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.agents[a.ID]; ok {
		r.agents[a.ID] = a
	}
}

// byRole returns every registered agent with the given role, in map
// iteration order -- callers that need a stable order must sort.
func (r *Registry) byRole(role models.Role) []models.Agent {
	var out []models.Agent
	for _, a := range r.agents {
		if a.Role == role {
			out = append(out, a)
		}
	}
	return out
}

// GetAgentsByRole returns every agent with the given role.
func (r *Registry) GetAgentsByRole(role models.Role) []models.Agent {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.byRole(role)
}

// GetAllAgents returns every registered agent.
func (r *Registry) GetAllAgents() []models.Agent {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]models.Agent, 0, len(r.agents))
	for _, a := range r.agents {
		out = append(out, a)
	}
	return out
}

// GetKings, GetKnights, GetMercenaries are role-filtered convenience
// wrappers, each returned in ascending id order since the engine's Phase
// 2/3/4 traversal requires it (§4.11).
func (r *Registry) GetKings() []models.Agent      { return r.sortedByRole(models.RoleKing) }
func (r *Registry) GetKnights() []models.Agent    { return r.sortedByRole(models.RoleKnight) }
func (r *Registry) GetMercenaries() []models.Agent { return r.sortedByRole(models.RoleMercenary) }

func (r *Registry) sortedByRole(role models.Role) []models.Agent {
	r.mu.RLock()
	agents := r.byRole(role)
	r.mu.RUnlock()
	sort.Slice(agents, func(i, j int) bool { return agents[i].ID < agents[j].ID })
	return agents
}

// GetEmployedKnights returns, in id order, every knight currently
// employed by kingID.
func (r *Registry) GetEmployedKnights(kingID string) []models.Agent {
	var out []models.Agent
	for _, k := range r.GetKnights() {
		if k.Employer == kingID {
			out = append(out, k)
		}
	}
	return out
}

// GetFreeKnights returns, in id order, every knight without an employer.
func (r *Registry) GetFreeKnights() []models.Agent {
	var out []models.Agent
	for _, k := range r.GetKnights() {
		if k.Employer == "" {
			out = append(out, k)
		}
	}
	return out
}

// AssignKnightEmployers shuffles the knight population and round-robin
// assigns each to kings[i % len(kings)]. Leaves every knight unemployed
// if there are no kings (§4.7).
func (r *Registry) AssignKnightEmployers() {
	r.mu.Lock()
	defer r.mu.Unlock()

	kings := r.byRole(models.RoleKing)
	if len(kings) == 0 {
		return
	}
	sort.Slice(kings, func(i, j int) bool { return kings[i].ID < kings[j].ID })

	knights := r.byRole(models.RoleKnight)
	r.rng.Shuffle(len(knights), func(i, j int) { knights[i], knights[j] = knights[j], knights[i] })

	for i, knight := range knights {
		knight.Employer = kings[i%len(kings)].ID
		r.agents[knight.ID] = knight
	}
}

// RoleMutation records one agent's role change for MutateRoles' result.
type RoleMutation struct {
	ID      string
	OldRole models.Role
	NewRole models.Role
}

var allRoles = [3]models.Role{models.RoleKing, models.RoleKnight, models.RoleMercenary}

// MutateRoles draws a uniform probability per agent; below the
// (or configured, if rate < 0) mutation rate, the agent is reassigned a
// different role uniformly at random, and its role-specific fields are
// reset from the configured ranges (§4.7).
func (r *Registry) MutateRoles(rate float64) []RoleMutation {
	r.mu.Lock()
	defer r.mu.Unlock()

	if rate < 0 {
		rate = r.cfg.MutationRate
	}
	if rate <= 0 {
		return nil
	}

	ids := make([]string, 0, len(r.agents))
	for id := range r.agents {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var mutations []RoleMutation
	for _, id := range ids {
		agent := r.agents[id]
		if r.rng.Float64() >= rate {
			continue
		}
		oldRole := agent.Role
		newRole := pickDifferentRole(r.rng, oldRole)
		agent.Role = newRole

		switch newRole {
		case models.RoleKnight:
			agent.RetainerFee = randInRange(r.rng, 20, 30)
			agent.BribeThreshold = 0
		case models.RoleKing:
			agent.BribeThreshold = randInRange(r.rng, 300, 500)
			agent.Employer = ""
			agent.RetainerFee = 0
		case models.RoleMercenary:
			agent.Employer = ""
			agent.RetainerFee = 0
			agent.BribeThreshold = 0
		}

		r.agents[id] = agent
		mutations = append(mutations, RoleMutation{ID: id, OldRole: oldRole, NewRole: newRole})
	}
	return mutations
}

func pickDifferentRole(rng *rand.Rand, current models.Role) models.Role {
	candidates := make([]models.Role, 0, 2)
	for _, role := range allRoles {
		if role != current {
			candidates = append(candidates, role)
		}
	}
	return candidates[rng.Intn(len(candidates))]
}

// Stats returns aggregate registry statistics (§4.7 "Aggregate statistics
// are derived"; shape grounded on original_source's get_stats).
type Stats struct {
	TotalAgents   int
	Kings         int
	Knights       int
	Mercenaries   int
	TotalCurrency int
	TotalWealth   int
	AvgCurrency   float64
	AvgWealth     float64
}

// Stats computes the registry's current aggregate statistics.
func (r *Registry) Stats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var s Stats
	s.TotalAgents = len(r.agents)
	for _, a := range r.agents {
		switch a.Role {
		case models.RoleKing:
			s.Kings++
		case models.RoleKnight:
			s.Knights++
		case models.RoleMercenary:
			s.Mercenaries++
		}
		s.TotalCurrency += a.Currency
		s.TotalWealth += a.WealthTotal()
	}
	if s.TotalAgents > 0 {
		s.AvgCurrency = float64(s.TotalCurrency) / float64(s.TotalAgents)
		s.AvgWealth = float64(s.TotalWealth) / float64(s.TotalAgents)
	}
	return s
}
