package models

import "fmt"

// Role is the economic behavior class assigned to a substrate program.
type Role int

const (
	RoleKing Role = iota
	RoleKnight
	RoleMercenary
)

func (r Role) String() string {
	switch r {
	case RoleKing:
		return "king"
	case RoleKnight:
		return "knight"
	case RoleMercenary:
		return "mercenary"
	default:
		return "unknown"
	}
}

// Prefix is the agent-id role letter assigned at registry creation time.
func (r Role) Prefix() string {
	switch r {
	case RoleKing:
		return "K"
	case RoleKnight:
		return "N"
	case RoleMercenary:
		return "M"
	default:
		return "?"
	}
}

// TraitNames is the fixed attribute set, in the order traits are iterated
// whenever a stable order is required (trade distribution application,
// mirrored-loss sweeps, bounty transfer, canonical-state serialization).
var TraitNames = [7]string{"compute", "copy", "defend", "raid", "trade", "sense", "adapt"}

// WealthTraits is seven non-negative integer traits over the fixed
// attribute set. Total() is the sum of all seven.
type WealthTraits struct {
	Compute int
	Copy    int
	Defend  int
	Raid    int
	Trade   int
	Sense   int
	Adapt   int
}

// Total returns the sum of all seven traits.
func (w WealthTraits) Total() int {
	return w.Compute + w.Copy + w.Defend + w.Raid + w.Trade + w.Sense + w.Adapt
}

// Get returns the named trait's value. The name must be one of TraitNames;
// callers outside this package reach traits only through the whitelisted
// policy evaluator or this accessor, never reflection.
func (w WealthTraits) Get(name string) (int, bool) {
	switch name {
	case "compute":
		return w.Compute, true
	case "copy":
		return w.Copy, true
	case "defend":
		return w.Defend, true
	case "raid":
		return w.Raid, true
	case "trade":
		return w.Trade, true
	case "sense":
		return w.Sense, true
	case "adapt":
		return w.Adapt, true
	default:
		return 0, false
	}
}

// Add adds amount to the named trait, clamping the result at 0. Reports
// whether name was recognized.
func (w *WealthTraits) Add(name string, amount int) bool {
	cur, ok := w.Get(name)
	if !ok {
		return false
	}
	w.Set(name, clampNonNeg(cur+amount))
	return true
}

// Set assigns the named trait's value directly. Unknown names are no-ops.
func (w *WealthTraits) Set(name string, value int) {
	switch name {
	case "compute":
		w.Compute = value
	case "copy":
		w.Copy = value
	case "defend":
		w.Defend = value
	case "raid":
		w.Raid = value
	case "trade":
		w.Trade = value
	case "sense":
		w.Sense = value
	case "adapt":
		w.Adapt = value
	}
}

// Scale multiplies every trait by factor, flooring to an integer and
// clamping at 0. Used by bribe leakage (§4.6 apply_bribe_leakage).
func (w *WealthTraits) Scale(factor float64) {
	for _, name := range TraitNames {
		v, _ := w.Get(name)
		w.Set(name, clampNonNeg(int(float64(v)*factor)))
	}
}

func clampNonNeg(v int) int {
	if v < 0 {
		return 0
	}
	return v
}

// Agent is one role-typed participant in the economic layer, backed by a
// substrate tape index.
type Agent struct {
	ID             string
	TapeID         int
	Role           Role
	Currency       int
	Wealth         WealthTraits
	Employer       string // king id, empty if none
	RetainerFee    int
	BribeThreshold int
	Alive          bool
}

// WealthTotal returns Currency's counterpart: the sum of all wealth traits.
func (a Agent) WealthTotal() int {
	return a.Wealth.Total()
}

// AddCurrency adjusts currency by delta, clamping the result at 0.
func (a *Agent) AddCurrency(delta int) {
	a.Currency = clampNonNeg(a.Currency + delta)
}

// AddWealth adjusts the named trait by delta, clamping at 0.
func (a *Agent) AddWealth(name string, delta int) {
	a.Wealth.Add(name, delta)
}

// ScaleWealth multiplies every trait by factor (see WealthTraits.Scale).
func (a *Agent) ScaleWealth(factor float64) {
	a.Wealth.Scale(factor)
}

// FormatAgentID builds the role-prefixed, zero-padded agent id used by the
// registry: "K-00", "N-07", "M-123".
func FormatAgentID(role Role, index int) string {
	return fmt.Sprintf("%s-%02d", role.Prefix(), index)
}
