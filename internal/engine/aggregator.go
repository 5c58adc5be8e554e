// EventAggregator supplements the Economic Engine: spec.md §4.11 Phase 5
// says five of TickMetrics' fields "may be filled by the caller using the
// aggregator" without specifying that aggregator's own shape. This file
// grounds it on original_source/.../event_aggregator.py: an ordered event
// log, per-tick summaries, running currency/wealth-flow bookkeeping, and
// a windowed metrics computation.
package engine

import (
	"sort"
	"strings"

	"github.com/rawblock/bff-engine/internal/analytics"
	"github.com/rawblock/bff-engine/internal/config"
	"github.com/rawblock/bff-engine/pkg/models"
)

// eventWindow bounds ComputeMetrics' per-call cost; it does not bound
// GetAllEvents/GetEventsByTick, which always return the full log.
const eventWindow = 100

// TickSummary aggregates one tick's events: the events themselves, net
// currency flow per agent id, and per-role per-trait wealth deltas.
type TickSummary struct {
	Tick          int
	Events        []models.Event
	CurrencyFlows map[string]int
	WealthChanges map[string]map[string]int
}

func newTickSummary(tick int) *TickSummary {
	return &TickSummary{
		Tick:          tick,
		CurrencyFlows: make(map[string]int),
		WealthChanges: make(map[string]map[string]int),
	}
}

// EventAggregator accumulates every Event the engine generates and
// derives per-tick and windowed summaries from them.
type EventAggregator struct {
	tradeDistribution map[string]int

	events       []models.Event
	summaries    map[int]*TickSummary
	eventCounts  map[models.EventType]int
}

// NewEventAggregator creates an empty aggregator. tradeCfg supplies the
// wealth distribution Trade events credit, so the aggregator mirrors
// whatever apply_trade actually applied instead of a hardcoded literal.
func NewEventAggregator(tradeCfg config.TradeConfig) *EventAggregator {
	return &EventAggregator{
		tradeDistribution: tradeCfg.Distribution,
		summaries:         make(map[int]*TickSummary),
		eventCounts:       make(map[models.EventType]int),
	}
}

// AddEvent appends e to the log, updates that tick's TickSummary, and
// increments the per-type event counter.
func (a *EventAggregator) AddEvent(e models.Event) {
	a.events = append(a.events, e)
	a.eventCounts[e.Type]++

	ts, ok := a.summaries[e.Tick]
	if !ok {
		ts = newTickSummary(e.Tick)
		a.summaries[e.Tick] = ts
	}
	ts.Events = append(ts.Events, e)

	switch e.Type {
	case models.EventBribeAccept:
		ts.CurrencyFlows[e.King] -= e.Amount
		ts.CurrencyFlows[e.Merc] += e.Amount
	case models.EventRetainer:
		ts.CurrencyFlows[e.King] -= e.Amount
		ts.CurrencyFlows[e.Knight] += e.Amount
	case models.EventTrade:
		ts.CurrencyFlows[e.King] -= e.Invest
		for trait, delta := range a.tradeDistribution {
			addWealthChange(ts, roleBucketForAgent(e.King), trait, delta)
		}
	case models.EventDefendWin:
		ts.CurrencyFlows[e.Merc] -= e.Stake
		ts.CurrencyFlows[e.Knight] += e.Stake
	case models.EventDefendLoss:
		ts.CurrencyFlows[e.Knight] -= e.Stake
		ts.CurrencyFlows[e.Merc] += e.Stake
	case models.EventTraitDrip:
		addWealthChange(ts, roleBucketForAgent(e.Agent), e.Trait, e.Delta)
	}
}

func addWealthChange(ts *TickSummary, role, trait string, delta int) {
	if role == "" || trait == "" {
		return
	}
	if ts.WealthChanges[role] == nil {
		ts.WealthChanges[role] = make(map[string]int)
	}
	ts.WealthChanges[role][trait] += delta
}

// roleBucketForAgent maps an agent id's role prefix (K/N/M) to a role
// bucket name, or "" if the id doesn't start with a recognized prefix.
func roleBucketForAgent(id string) string {
	if id == "" {
		return ""
	}
	switch strings.ToUpper(id[:1]) {
	case "K":
		return models.RoleKing.String()
	case "N":
		return models.RoleKnight.String()
	case "M":
		return models.RoleMercenary.String()
	default:
		return ""
	}
}

// EventCounts returns the lifetime count of each event type observed.
func (a *EventAggregator) EventCounts() map[models.EventType]int {
	out := make(map[models.EventType]int, len(a.eventCounts))
	for t, c := range a.eventCounts {
		out[t] = c
	}
	return out
}

// GetAllEvents returns the complete, unwindowed event log in generation
// order.
func (a *EventAggregator) GetAllEvents() []models.Event {
	out := make([]models.Event, len(a.events))
	copy(out, a.events)
	return out
}

// GetEventsByTick returns every event recorded for tick.
func (a *EventAggregator) GetEventsByTick(tick int) []models.Event {
	ts, ok := a.summaries[tick]
	if !ok {
		return nil
	}
	out := make([]models.Event, len(ts.Events))
	copy(out, ts.Events)
	return out
}

// GetEventsByType returns every event of the given type across the whole
// log, in generation order.
func (a *EventAggregator) GetEventsByType(t models.EventType) []models.Event {
	var out []models.Event
	for _, e := range a.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

// ComputeMetrics derives a TickMetrics snapshot: wealth/currency totals
// and copy_score_mean computed over agents as the plain, unnormalized
// arithmetic mean of wealth.copy, exactly as spec.md §4.11 Phase 5 states
// — this is the method ProcessTick's core contract calls, so it must
// match spec.md's unconditional formula rather than event_aggregator.py's
// own /20 normalization (that belongs only to ComputeMetricsNormalized
// below, which the core engine never calls). entropy/compression_ratio
// delegate to internal/analytics over population when non-nil, else 0;
// the five event-count aggregates are computed over the trailing window
// of up to 100 events in the full log (not per tick), mirroring the
// original's self.events[-100:] windowing.
func (a *EventAggregator) ComputeMetrics(agents []models.Agent, population []models.Program) models.TickMetrics {
	var m models.TickMetrics

	var copySum float64
	for _, ag := range agents {
		m.WealthTotal += ag.WealthTotal()
		m.CurrencyTotal += ag.Currency
		copySum += float64(ag.Wealth.Copy)
	}
	if len(agents) > 0 {
		m.CopyScoreMean = copySum / float64(len(agents))
	}

	if population != nil {
		concat := analytics.Concat(population)
		m.Entropy = analytics.ShannonEntropy(concat)
		m.CompressionRatio = analytics.CompressionRatio(concat)
	}

	window := a.events
	if len(window) > eventWindow {
		window = window[len(window)-eventWindow:]
	}
	for _, e := range window {
		switch e.Type {
		case models.EventBribeAccept:
			m.BribesPaid++
			m.BribesAccepted++
		case models.EventDefendWin:
			m.RaidsAttempted++
			m.RaidsWonByKnight++
		case models.EventDefendLoss:
			m.RaidsAttempted++
			m.RaidsWonByMerc++
		case models.EventUnopposedRaid:
			m.RaidsAttempted++
			m.RaidsWonByMerc++
		case models.EventBribeInsufficientFunds:
			m.RaidsAttempted++
		}
	}

	return m
}

// ComputeMetricsNormalized is the standalone aggregator-only view
// mirroring event_aggregator.py's own compute_metrics utility (distinct
// from the core engine's _compute_metrics, which ComputeMetrics above
// matches): identical to ComputeMetrics except copy_score_mean is scaled
// to roughly [0,1] by dividing by 20, the original's literal
// normalization constant. ProcessTick never calls this.
func (a *EventAggregator) ComputeMetricsNormalized(agents []models.Agent, population []models.Program) models.TickMetrics {
	m := a.ComputeMetrics(agents, population)
	if len(agents) > 0 {
		m.CopyScoreMean /= 20.0
	}
	return m
}

// GiniCoefficient computes the Gini coefficient of values (wealth or
// currency), 0 for fewer than 2 non-negative values.
func GiniCoefficient(values []int) float64 {
	n := len(values)
	if n < 2 {
		return 0
	}
	sorted := make([]int, n)
	copy(sorted, values)
	for i := 1; i < n; i++ {
		for j := i; j > 0 && sorted[j-1] > sorted[j]; j-- {
			sorted[j-1], sorted[j] = sorted[j], sorted[j-1]
		}
	}

	var total float64
	for _, v := range sorted {
		total += float64(v)
	}
	if total == 0 {
		return 0
	}
	var cumulative float64
	for i, v := range sorted {
		cumulative += float64(v) * float64(2*(i+1)-n-1)
	}
	return cumulative / (float64(n) * total)
}

// RoleDistribution summarizes one role's wealth totals across its agents,
// grounded on event_aggregator.py's get_wealth_distribution_by_role.
type RoleDistribution struct {
	Mean   float64
	Median int
	Total  int
}

// WealthDistributionByRole computes Mean/Median/Total of WealthTotal() per
// role, grounded on event_aggregator.py's get_wealth_distribution_by_role:
// wealth values are sorted ascending per role, mean is total/count, and
// median is the plain middle element (len/2 index, no averaging of the
// two middle values on an even count) exactly as the original indexes it.
// A role with no agents reports the zero RoleDistribution.
func WealthDistributionByRole(agents []models.Agent) map[string]RoleDistribution {
	byRole := make(map[string][]int)
	for _, a := range agents {
		byRole[a.Role.String()] = append(byRole[a.Role.String()], a.WealthTotal())
	}

	out := make(map[string]RoleDistribution)
	for _, role := range []models.Role{models.RoleKing, models.RoleKnight, models.RoleMercenary} {
		name := role.String()
		values := byRole[name]
		if len(values) == 0 {
			out[name] = RoleDistribution{}
			continue
		}
		sort.Ints(values)
		var total int
		for _, v := range values {
			total += v
		}
		out[name] = RoleDistribution{
			Mean:   float64(total) / float64(len(values)),
			Median: values[len(values)/2],
			Total:  total,
		}
	}
	return out
}

// Clear discards the entire event log, all tick summaries, and all
// counters.
func (a *EventAggregator) Clear() {
	a.events = nil
	a.summaries = make(map[int]*TickSummary)
	a.eventCounts = make(map[models.EventType]int)
}
