package models

// EventType tags one economic-engine event record (§3, §4.11).
type EventType int

const (
	EventTraitDrip EventType = iota
	EventTrade
	EventRetainer
	EventBribeAccept
	EventBribeInsufficientFunds
	EventDefendWin
	EventDefendLoss
	EventUnopposedRaid
)

func (t EventType) String() string {
	switch t {
	case EventTraitDrip:
		return "trait_drip"
	case EventTrade:
		return "trade"
	case EventRetainer:
		return "retainer"
	case EventBribeAccept:
		return "bribe_accept"
	case EventBribeInsufficientFunds:
		return "bribe_insufficient_funds"
	case EventDefendWin:
		return "defend_win"
	case EventDefendLoss:
		return "defend_loss"
	case EventUnopposedRaid:
		return "unopposed_raid"
	default:
		return "unknown"
	}
}

// Event is a single typed economic-engine record. Only the fields relevant
// to Type are meaningful; the rest are left at their zero value, mirroring
// the "optional fields needed by that type" contract in spec §3.
type Event struct {
	Tick  int
	Type  EventType
	King  string
	Knight string
	Merc  string

	Amount        int
	Stake         int
	PKnight       float64
	RV            float64
	Threshold     int
	Trait         string
	Delta         int
	Invest        int
	WealthCreated int
	Employer      string
	Agent         string
	Notes         string
}

// TickMetrics is the per-tick aggregate computed in Phase 5.
type TickMetrics struct {
	Entropy           float64
	CompressionRatio  float64
	CopyScoreMean     float64
	WealthTotal       int
	CurrencyTotal     int
	BribesPaid        int
	BribesAccepted    int
	RaidsAttempted    int
	RaidsWonByMerc    int
	RaidsWonByKnight  int
}

// AgentSnapshot is the Phase 6 per-agent projection.
type AgentSnapshot struct {
	ID       string
	Role     Role
	Currency int
	Wealth   WealthTraits
}

// SnapshotFromAgent projects an Agent down to its public snapshot fields.
func SnapshotFromAgent(a Agent) AgentSnapshot {
	return AgentSnapshot{ID: a.ID, Role: a.Role, Currency: a.Currency, Wealth: a.Wealth}
}

// TickResult is the full output of one EconomicEngine.ProcessTick call:
// the ordered event sequence, metrics, and a snapshot of every agent.
type TickResult struct {
	TickNum int
	Events  []Event
	Metrics TickMetrics
	Agents  []AgentSnapshot
}
