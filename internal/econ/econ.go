// Package econ implements the pure, deterministic economic numerics of
// §4.6: sigmoid, clamp, exposed wealth, king-defend projection, raid
// value, knight win probability, stake, leakage, mirrored losses, bounty,
// trade, and target selection. None of these functions have side effects
// beyond mutating the Agent values explicitly passed to them; none draw
// from an RNG.
//
// Grounded on internal/heuristics/evidence_propagation.go and
// internal/heuristics/risk_roles.go's weighted-sum, clamped-probability
// style (probabilistic scoring combined via fixed coefficients).
package econ

import (
	"fmt"
	"math"
	"sort"

	"github.com/rawblock/bff-engine/internal/config"
	"github.com/rawblock/bff-engine/pkg/models"
)

// Sigmoid computes the logistic function, saturating to 0 or 1 on
// overflow rather than propagating Inf/NaN.
func Sigmoid(x float64) float64 {
	v := 1.0 / (1.0 + math.Exp(-x))
	if math.IsNaN(v) {
		if x < 0 {
			return 0
		}
		return 1
	}
	return v
}

// Clamp restricts value to [minVal, maxVal].
func Clamp(value, minVal, maxVal float64) float64 {
	if value < minVal {
		return minVal
	}
	if value > maxVal {
		return maxVal
	}
	return value
}

// WealthExposed returns the agent's total wealth scaled by its role's
// exposure factor.
func WealthExposed(a models.Agent, cfg config.EconomicConfig) float64 {
	factor, ok := cfg.ExposureFactors[a.Role]
	if !ok {
		factor = 1.0
	}
	return float64(a.WealthTotal()) * factor
}

// KingDefendProjection sums each defending knight's
// defend + 0.5*sense + 0.5*adapt, scaled by min(1, len(knights)/attackers).
// attackers <= 0 is treated as 1.
func KingDefendProjection(knights []models.Agent, attackers int) float64 {
	if attackers <= 0 {
		attackers = 1
	}
	score := 0.0
	for _, k := range knights {
		score += float64(k.Wealth.Defend) + 0.5*float64(k.Wealth.Sense) + 0.5*float64(k.Wealth.Adapt)
	}
	ratio := float64(len(knights)) / float64(attackers)
	if ratio > 1 {
		ratio = 1
	}
	return score * ratio
}

// RaidValue computes the non-negative raid value a mercenary presents
// against a king defended by knights (§4.6).
func RaidValue(merc, king models.Agent, knights []models.Agent, cfg config.EconomicConfig) float64 {
	w := cfg.RaidValueWeights
	kd := KingDefendProjection(knights, 1)
	exposed := WealthExposed(king, cfg)

	value := w.AlphaRaid*float64(merc.Wealth.Raid) +
		w.BetaSenseAdapt*float64(merc.Wealth.Sense+merc.Wealth.Adapt) -
		w.GammaKingDefend*kd +
		w.DeltaKingExposed*exposed

	if value < 0 {
		return 0
	}
	return value
}

// PKnightWin computes the probability a defending knight beats a raiding
// mercenary, clamped to [clamp_min, clamp_max].
func PKnightWin(knight, merc models.Agent, cfg config.EconomicConfig) float64 {
	d := cfg.DefendResolution

	knightTraits := float64(knight.Wealth.Defend + knight.Wealth.Sense + knight.Wealth.Adapt)
	mercTraits := float64(merc.Wealth.Raid + merc.Wealth.Sense + merc.Wealth.Adapt)
	delta := knightTraits - mercTraits

	raw := d.BaseKnightWinrate + (Sigmoid(d.TraitAdvantageWeight*delta) - 0.5)
	if knight.Employer != "" {
		raw += d.EmploymentBonus
	}

	return Clamp(raw, d.ClampMin, d.ClampMax)
}

// StakeAmount returns floor(stake_frac * (knight.currency + merc.currency)).
func StakeAmount(knight, merc models.Agent, cfg config.EconomicConfig) int {
	combined := knight.Currency + merc.Currency
	return int(cfg.DefendResolution.StakeCurrencyFrac * float64(combined))
}

// ResolveKnightWins deterministically resolves a defend contest: p > 0.5
// favors the knight, p < 0.5 the mercenary, and an exact tie is broken
// lexicographically by id (§4.6) -- never a random draw.
func ResolveKnightWins(p float64, knightID, mercID string) bool {
	switch {
	case p > 0.5:
		return true
	case p < 0.5:
		return false
	default:
		return knightID < mercID
	}
}

// ApplyBribeLeakage scales every one of the king's wealth traits by
// (1 - leakageFrac), flooring and clamping at 0.
func ApplyBribeLeakage(king *models.Agent, leakageFrac float64) {
	king.ScaleWealth(1.0 - leakageFrac)
}

// ApplyMirroredLosses transfers a currency loss and a per-trait wealth
// loss from king to merc, each computed as floor(value * frac) and
// skipped when the computed loss is 0 (no-op transfer).
func ApplyMirroredLosses(king, merc *models.Agent, cfg config.EconomicConfig) {
	currencyLoss := int(float64(king.Currency) * cfg.OnFailedBribe.KingCurrencyLossFrac)
	king.AddCurrency(-currencyLoss)
	merc.AddCurrency(currencyLoss)

	for _, name := range models.TraitNames {
		value, _ := king.Wealth.Get(name)
		loss := int(float64(value) * cfg.OnFailedBribe.KingWealthLossFrac)
		if loss > 0 {
			king.AddWealth(name, -loss)
			merc.AddWealth(name, loss)
		}
	}
}

// ApplyBounty transfers floor(frac * merc.trait) from merc to knight for
// the raid and adapt traits, skipping any trait whose computed bounty is
// 0.
func ApplyBounty(knight, merc *models.Agent, frac float64) {
	for _, name := range []string{"raid", "adapt"} {
		value, _ := merc.Wealth.Get(name)
		bounty := int(float64(value) * frac)
		if bounty > 0 {
			merc.AddWealth(name, -bounty)
			knight.AddWealth(name, bounty)
		}
	}
}

// ApplyTrade deducts the configured investment from king's currency and
// adds the configured wealth distribution, returning the wealth created.
// A king with insufficient currency is unaffected and 0 is returned.
func ApplyTrade(king *models.Agent, cfg config.EconomicConfig) int {
	t := cfg.Trade
	if king.Currency < t.InvestPerTick {
		return 0
	}
	king.AddCurrency(-t.InvestPerTick)
	for _, name := range models.TraitNames {
		if amount, ok := t.Distribution[name]; ok {
			king.AddWealth(name, amount)
		}
	}
	return t.CreatedWealthUnits
}

// PickTargetKing deterministically selects the king with the highest
// exposed wealth, ties broken by ascending id. Errors if kings is empty.
func PickTargetKing(kings []models.Agent, cfg config.EconomicConfig) (models.Agent, error) {
	if len(kings) == 0 {
		return models.Agent{}, fmt.Errorf("econ: pick_target_king: %w", models.ErrNoKings)
	}
	sorted := append([]models.Agent(nil), kings...)
	sort.Slice(sorted, func(i, j int) bool {
		ei, ej := WealthExposed(sorted[i], cfg), WealthExposed(sorted[j], cfg)
		if ei != ej {
			return ei > ej
		}
		return sorted[i].ID < sorted[j].ID
	})
	return sorted[0], nil
}
