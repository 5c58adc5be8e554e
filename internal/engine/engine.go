// Package engine implements the Economic Engine: deterministic, six-
// phase tick orchestration over the agent registry (§4.11).
//
// Grounded on internal/heuristics/investigation.go's phase-ordered
// case-processing pipeline (intake -> triage -> resolution -> report),
// generalized here to drip -> trade -> retainer -> interactions ->
// metrics -> snapshot.
package engine

import (
	"fmt"
	"log"
	"math/rand"
	"sort"

	"github.com/rawblock/bff-engine/internal/cache"
	"github.com/rawblock/bff-engine/internal/config"
	"github.com/rawblock/bff-engine/internal/econ"
	"github.com/rawblock/bff-engine/internal/policy"
	"github.com/rawblock/bff-engine/internal/registry"
	"github.com/rawblock/bff-engine/pkg/models"
)

// Engine owns tick orchestration over a Registry; the population buffer
// (if any) stays owned by Soup, borrowed here only to compute Phase 5's
// entropy/compression fields (§5 "Shared resources").
type Engine struct {
	cfg   config.Config
	reg   *registry.Registry
	cache *cache.Cache
	agg   *EventAggregator

	traitRules []compiledRule
	population []models.Program
}

type compiledRule struct {
	program *policy.Program
	delta   map[string]int
}

// New builds an Engine over reg using cfg. Trait-emergence rules are
// compiled once up front; a malformed rule is logged and dropped rather
// than failing construction, matching §4.11's "unsafe or malformed
// policy expression is logged and that rule/agent is skipped".
func New(cfg config.Config, reg *registry.Registry) *Engine {
	e := &Engine{
		cfg: cfg,
		reg: reg,
		// The cache's witness sampler draws from a substream seeded off
		// the main seed so sampling decisions never perturb the
		// deterministic economic draw sequence (there are none at
		// present, but this keeps the invariant true if that changes).
		cache: cache.New(cfg.Cache.MaxSize, cfg.Cache.Enabled, cfg.Cache.WitnessSampleRate,
			rand.New(rand.NewSource(cfg.Seed^0x5151))),
		agg: NewEventAggregator(cfg.Economic.Trade),
	}

	if cfg.TraitEmergence.Enabled {
		for _, rule := range cfg.TraitEmergence.Rules {
			prg, err := policy.Compile(rule.Condition)
			if err != nil {
				log.Printf("[engine] dropping malformed trait rule %q: %v", rule.Condition, err)
				continue
			}
			e.traitRules = append(e.traitRules, compiledRule{program: prg, delta: rule.Delta})
		}
	}

	return e
}

// SetPopulation records the substrate's current population so Phase 5
// can compute entropy/compression over it; nil means "no substrate
// present", per §4.11 Phase 5.
func (e *Engine) SetPopulation(pop []models.Program) { e.population = pop }

// Cache exposes the engine-owned cache for callers that want its
// statistics or want to invalidate it on a configuration change.
func (e *Engine) Cache() *cache.Cache { return e.cache }

// Aggregator exposes the engine-owned EventAggregator.
func (e *Engine) Aggregator() *EventAggregator { return e.agg }

// ProcessTick runs one full tick: soup drip, trade, retainer,
// interactions, metrics, snapshot, in that order (§4.11).
func (e *Engine) ProcessTick(tickNum int) models.TickResult {
	var events []models.Event

	events = append(events, e.phaseDrip(tickNum)...)
	events = append(events, e.phaseTrade(tickNum)...)
	events = append(events, e.phaseRetainer(tickNum)...)
	events = append(events, e.phaseInteractions(tickNum)...)

	for _, ev := range events {
		e.agg.AddEvent(ev)
	}

	agents := e.reg.GetAllAgents()
	sort.Slice(agents, func(i, j int) bool { return agents[i].ID < agents[j].ID })

	metrics := e.phaseMetrics(agents, events)
	snapshot := e.phaseSnapshot(agents)

	return models.TickResult{TickNum: tickNum, Events: events, Metrics: metrics, Agents: snapshot}
}

// phaseDrip applies every enabled trait-emergence rule to every agent in
// id order, skipping an agent whose context evaluation fails (§4.11
// Phase 1, §4.9 "rule application silently skips agents whose
// expressions fail").
func (e *Engine) phaseDrip(tick int) []models.Event {
	if len(e.traitRules) == 0 {
		return nil
	}

	agents := e.reg.GetAllAgents()
	sort.Slice(agents, func(i, j int) bool { return agents[i].ID < agents[j].ID })

	var events []models.Event
	for _, rule := range e.traitRules {
		for _, agent := range agents {
			ctx := traitContext(agent, tick)
			ok, err := rule.program.EvalBool(ctx)
			if err != nil || !ok {
				continue
			}
			traits := make([]string, 0, len(rule.delta))
			for trait := range rule.delta {
				traits = append(traits, trait)
			}
			sort.Strings(traits)
			for _, trait := range traits {
				delta := rule.delta[trait]
				agent.AddWealth(trait, delta)
				events = append(events, models.Event{
					Tick: tick, Type: models.EventTraitDrip,
					Agent: agent.ID, Trait: trait, Delta: delta,
				})
			}
			e.reg.UpdateAgent(agent)
		}
	}
	return events
}

func traitContext(a models.Agent, tick int) policy.Context {
	return policy.Context{
		"compute": a.Wealth.Compute, "copy": a.Wealth.Copy, "defend": a.Wealth.Defend,
		"raid": a.Wealth.Raid, "trade": a.Wealth.Trade, "sense": a.Wealth.Sense,
		"adapt": a.Wealth.Adapt, "currency": a.Currency, "tick": tick,
		"id": a.ID, "role": a.Role.String(), "employer": a.Employer,
		"retainer_fee": a.RetainerFee, "bribe_threshold": a.BribeThreshold,
		"wealth": a.WealthTotal(),
	}
}

// phaseTrade runs apply_trade for every king (id order) with sufficient
// currency (§4.11 Phase 2).
func (e *Engine) phaseTrade(tick int) []models.Event {
	var events []models.Event
	for _, king := range e.reg.GetKings() {
		if king.Currency < e.cfg.Economic.Trade.InvestPerTick {
			continue
		}
		created := econ.ApplyTrade(&king, e.cfg.Economic)
		e.reg.UpdateAgent(king)
		events = append(events, models.Event{
			Tick: tick, Type: models.EventTrade, King: king.ID,
			Invest: e.cfg.Economic.Trade.InvestPerTick, WealthCreated: created,
		})
	}
	return events
}

// phaseRetainer pays each employed knight's retainer fee (id order) if
// the employer king can afford it (§4.11 Phase 3).
func (e *Engine) phaseRetainer(tick int) []models.Event {
	var events []models.Event
	for _, knight := range e.reg.GetKnights() {
		if knight.Employer == "" {
			continue
		}
		king, ok := e.reg.GetAgent(knight.Employer)
		if !ok || king.Currency < knight.RetainerFee {
			continue
		}
		king.AddCurrency(-knight.RetainerFee)
		knight.AddCurrency(knight.RetainerFee)
		e.reg.UpdateAgent(king)
		e.reg.UpdateAgent(knight)
		events = append(events, models.Event{
			Tick: tick, Type: models.EventRetainer, King: king.ID, Knight: knight.ID,
			Amount: knight.RetainerFee, Employer: king.ID,
		})
	}
	return events
}

// phaseInteractions runs the bribe/defend resolution for every
// mercenary in id order (§4.11 Phase 4).
func (e *Engine) phaseInteractions(tick int) []models.Event {
	var events []models.Event
	for _, merc := range e.reg.GetMercenaries() {
		kings := e.reg.GetKings()
		target, err := econ.PickTargetKing(kings, e.cfg.Economic)
		if err != nil {
			continue // no kings: Phase 4 is a no-op (§4.11 "Failure model")
		}

		defenders := e.assignDefenders(target.ID)
		rv := econ.RaidValue(merc, target, defenders, e.cfg.Economic)
		theta := target.BribeThreshold

		if float64(theta) >= rv {
			if target.Currency >= theta {
				target.AddCurrency(-theta)
				merc.AddCurrency(theta)
				econ.ApplyBribeLeakage(&target, e.cfg.Economic.BribeLeakage)
				e.reg.UpdateAgent(target)
				e.reg.UpdateAgent(merc)
				events = append(events, models.Event{
					Tick: tick, Type: models.EventBribeAccept, King: target.ID, Merc: merc.ID,
					Amount: theta, RV: rv, Threshold: theta,
				})
				continue
			}
			events = append(events, models.Event{
				Tick: tick, Type: models.EventBribeInsufficientFunds, King: target.ID, Merc: merc.ID,
				RV: rv, Threshold: theta,
			})
		}

		events = append(events, e.resolveDefend(tick, target, merc, defenders)...)
	}
	return events
}

// assignDefenders returns kingID's employed knights (id order) followed
// by the strongest free knight by -(defend+sense+adapt), id ascending
// tie-break, if any free knight exists (§4.11 Phase 4 step 2).
func (e *Engine) assignDefenders(kingID string) []models.Agent {
	defenders := e.reg.GetEmployedKnights(kingID)

	free := e.reg.GetFreeKnights()
	if len(free) == 0 {
		return defenders
	}
	sort.Slice(free, func(i, j int) bool {
		si := -(free[i].Wealth.Defend + free[i].Wealth.Sense + free[i].Wealth.Adapt)
		sj := -(free[j].Wealth.Defend + free[j].Wealth.Sense + free[j].Wealth.Adapt)
		if si != sj {
			return si < sj
		}
		return free[i].ID < free[j].ID
	})
	return append(defenders, free[0])
}

func (e *Engine) resolveDefend(tick int, target, merc models.Agent, defenders []models.Agent) []models.Event {
	if len(defenders) == 0 {
		econ.ApplyMirroredLosses(&target, &merc, e.cfg.Economic)
		e.reg.UpdateAgent(target)
		e.reg.UpdateAgent(merc)
		return []models.Event{{Tick: tick, Type: models.EventUnopposedRaid, King: target.ID, Merc: merc.ID}}
	}

	knight := defenders[0]
	p := econ.PKnightWin(knight, merc, e.cfg.Economic)
	stake := econ.StakeAmount(knight, merc, e.cfg.Economic)
	knightWins := econ.ResolveKnightWins(p, knight.ID, merc.ID)

	var events []models.Event
	if knightWins {
		merc.AddCurrency(-stake)
		knight.AddCurrency(stake)
		econ.ApplyBounty(&knight, &merc, e.cfg.Economic.BountyFrac)
		events = append(events, models.Event{
			Tick: tick, Type: models.EventDefendWin, King: target.ID, Knight: knight.ID, Merc: merc.ID,
			Stake: stake, PKnight: p,
		})
	} else {
		knight.AddCurrency(-stake)
		merc.AddCurrency(stake)
		econ.ApplyMirroredLosses(&target, &merc, e.cfg.Economic)
		events = append(events, models.Event{
			Tick: tick, Type: models.EventDefendLoss, King: target.ID, Knight: knight.ID, Merc: merc.ID,
			Stake: stake, PKnight: p,
		})
	}

	e.reg.UpdateAgent(target)
	e.reg.UpdateAgent(knight)
	e.reg.UpdateAgent(merc)
	return events
}

// phaseMetrics computes TickMetrics per §4.11 Phase 5 via the aggregator,
// then replaces the five event-count aggregates with this tick's own
// Phase 4 counts.
func (e *Engine) phaseMetrics(agents []models.Agent, tickEvents []models.Event) models.TickMetrics {
	m := e.agg.ComputeMetrics(agents, e.population)
	countPhase4(&m, tickEvents)
	return m
}

// countPhase4 overwrites the aggregator's windowed (multi-tick) counts in
// m with counts over this tick's own Phase 4 events.
func countPhase4(m *models.TickMetrics, events []models.Event) {
	var bribesPaid, bribesAccepted, raidsAttempted, wonByMerc, wonByKnight int
	for _, e := range events {
		switch e.Type {
		case models.EventBribeAccept:
			bribesPaid++
			bribesAccepted++
		case models.EventBribeInsufficientFunds:
			raidsAttempted++
		case models.EventDefendWin:
			raidsAttempted++
			wonByKnight++
		case models.EventDefendLoss:
			raidsAttempted++
			wonByMerc++
		case models.EventUnopposedRaid:
			raidsAttempted++
			wonByMerc++
		}
	}
	m.BribesPaid, m.BribesAccepted = bribesPaid, bribesAccepted
	m.RaidsAttempted, m.RaidsWonByMerc, m.RaidsWonByKnight = raidsAttempted, wonByMerc, wonByKnight
}

// phaseSnapshot produces (id, role, currency, wealth) for every agent
// (§4.11 Phase 6).
func (e *Engine) phaseSnapshot(agents []models.Agent) []models.AgentSnapshot {
	out := make([]models.AgentSnapshot, len(agents))
	for i, a := range agents {
		out[i] = models.SnapshotFromAgent(a)
	}
	return out
}

// String renders a one-line tick summary, for log lines and cmd/bffctl's
// demo output.
func (e *Engine) String() string {
	return fmt.Sprintf("engine(seed=%d, agents=%d)", e.cfg.Seed, len(e.reg.GetAllAgents()))
}
