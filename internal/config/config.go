// Package config defines the typed configuration record for both engine
// layers, with defaults and boundary validation (§6, §7). There is no
// YAML/JSON/env loader here: construction is programmatic, per the
// explicit CLI/config-loading non-goal (§1) -- only the shape and
// defaults are carried from the teacher's idiom.
//
// Grounded on internal/api's plain config-struct-passed-to-constructor
// style; validation mirrors internal/heuristics' boundary-check functions
// (return a descriptive error, never panic).
package config

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"

	"github.com/rawblock/bff-engine/pkg/models"
)

// SubstrateConfig configures Layer A.
type SubstrateConfig struct {
	StepLimit  int
	MutationP  float64
}

// RegistryConfig configures AgentRegistry construction (§4.7).
type RegistryConfig struct {
	RoleRatios      map[models.Role]float64
	InitialCurrency map[models.Role][2]int
	InitialWealth   map[models.Role]map[string][2]int
	MutationRate    float64
}

// RaidValueWeights are the §4.6 raid_value coefficients.
type RaidValueWeights struct {
	AlphaRaid      float64
	BetaSenseAdapt float64
	GammaKingDefend float64
	DeltaKingExposed float64
}

// DefendResolution configures §4.6's p_knight_win and stake_amount.
type DefendResolution struct {
	BaseKnightWinrate   float64
	TraitAdvantageWeight float64
	EmploymentBonus     float64
	ClampMin            float64
	ClampMax            float64
	StakeCurrencyFrac   float64
}

// FailedBribeConfig configures §4.6's apply_mirrored_losses.
type FailedBribeConfig struct {
	KingCurrencyLossFrac float64
	KingWealthLossFrac   float64
}

// TradeConfig configures §4.6's apply_trade.
type TradeConfig struct {
	InvestPerTick       int
	CreatedWealthUnits  int
	Distribution        map[string]int
}

// EconomicConfig bundles every numeric default §4.6 names.
type EconomicConfig struct {
	ExposureFactors  map[models.Role]float64
	RaidValueWeights RaidValueWeights
	DefendResolution DefendResolution
	BribeLeakage     float64
	OnFailedBribe    FailedBribeConfig
	Trade            TradeConfig
	BountyFrac       float64
}

// RefractoryConfig holds the per-channel cool-down period in ticks (§4.8).
type RefractoryConfig struct {
	Raid     int
	Defend   int
	Bribe    int
	Trade    int
	Retainer int
	TraitDrip int
}

// CacheConfig configures the Cache component (§4.10).
type CacheConfig struct {
	Enabled          bool
	MaxSize          int
	WitnessSampleRate float64
}

// TraitRule is one trait-emergence rule: a whitelisted boolean condition
// and the per-trait deltas applied when it's truthy (§4.9, §4.11 Phase 1).
type TraitRule struct {
	Condition string
	Delta     map[string]int
}

// TraitEmergenceConfig configures Phase 1 of the tick (§4.11).
type TraitEmergenceConfig struct {
	Enabled bool
	Rules   []TraitRule
}

// Config is the full configuration record accepted at the engine's
// external boundary (§6).
type Config struct {
	Seed      int64
	Substrate SubstrateConfig
	Registry  RegistryConfig
	Economic  EconomicConfig
	Refractory RefractoryConfig
	Cache     CacheConfig
	TraitEmergence TraitEmergenceConfig
}

// Default returns the configuration record with every §6-listed default.
func Default() Config {
	return Config{
		Seed: 1337,
		Substrate: SubstrateConfig{
			StepLimit: 8192,
			MutationP: 0.0,
		},
		Registry: RegistryConfig{
			RoleRatios: map[models.Role]float64{
				models.RoleKing: 0.10, models.RoleKnight: 0.20, models.RoleMercenary: 0.70,
			},
			InitialCurrency: map[models.Role][2]int{
				models.RoleKing: {200, 500}, models.RoleKnight: {50, 150}, models.RoleMercenary: {20, 80},
			},
			InitialWealth: map[models.Role]map[string][2]int{
				models.RoleKing:      defaultTraitRanges(0, 5),
				models.RoleKnight:    defaultTraitRanges(0, 5),
				models.RoleMercenary: defaultTraitRanges(0, 5),
			},
			MutationRate: 0.0,
		},
		Economic: EconomicConfig{
			ExposureFactors: map[models.Role]float64{
				models.RoleKing: 1.0, models.RoleKnight: 0.5, models.RoleMercenary: 0.4,
			},
			RaidValueWeights: RaidValueWeights{
				AlphaRaid: 1.0, BetaSenseAdapt: 0.25, GammaKingDefend: 0.60, DeltaKingExposed: 0.40,
			},
			DefendResolution: DefendResolution{
				BaseKnightWinrate: 0.5, TraitAdvantageWeight: 0.3,
				// §4.6: explicit default 0.25. original_source's config.py
				// ships employment_bonus=0.08; spec's stated value is
				// authoritative, the 0.08 tuning is not carried over.
				EmploymentBonus:   0.25,
				ClampMin: 0.05, ClampMax: 0.95,
				StakeCurrencyFrac: 0.10,
			},
			BribeLeakage: 0.05,
			OnFailedBribe: FailedBribeConfig{
				KingCurrencyLossFrac: 0.50,
				KingWealthLossFrac:   0.25,
			},
			Trade: TradeConfig{
				InvestPerTick:      100,
				CreatedWealthUnits: 5,
				Distribution:       map[string]int{"defend": 3, "trade": 2},
			},
			BountyFrac: 0.07,
		},
		Refractory: RefractoryConfig{
			Raid: 2, Defend: 1, Bribe: 1, Trade: 0, Retainer: 0, TraitDrip: 0,
		},
		Cache: CacheConfig{
			Enabled: true, MaxSize: 10000, WitnessSampleRate: 0.05,
		},
		TraitEmergence: TraitEmergenceConfig{
			Enabled: true,
			Rules: []TraitRule{
				// §6's grammar is lowercase and/or; spec is authoritative
				// over original_source's literal "AND" spelling.
				{Condition: "copy >= 12 and tick % 2 == 0", Delta: map[string]int{"copy": 1}},
			},
		},
	}
}

func defaultTraitRanges(lo, hi int) map[string][2]int {
	ranges := make(map[string][2]int, len(models.TraitNames))
	for _, name := range models.TraitNames {
		ranges[name] = [2]int{lo, hi}
	}
	return ranges
}

// Validate enforces the InvalidInput boundary checks §7 names: role
// ratios summing to 1.0 (within 0.01 tolerance), non-negative refractory
// periods, cache.max_size >= 0, and witness_sample_rate in [0,1].
func (c Config) Validate() error {
	sum := 0.0
	for _, r := range c.Registry.RoleRatios {
		sum += r
	}
	if math.Abs(sum-1.0) > 0.01 {
		return fmt.Errorf("config: role ratios sum to %v, want ~1.0: %w", sum, models.ErrInvalidInput)
	}

	for _, period := range []int{
		c.Refractory.Raid, c.Refractory.Defend, c.Refractory.Bribe,
		c.Refractory.Trade, c.Refractory.Retainer, c.Refractory.TraitDrip,
	} {
		if period < 0 {
			return fmt.Errorf("config: refractory period %d is negative: %w", period, models.ErrInvalidInput)
		}
	}

	if c.Cache.MaxSize < 0 {
		return fmt.Errorf("config: cache.max_size %d is negative: %w", c.Cache.MaxSize, models.ErrInvalidInput)
	}
	if c.Cache.WitnessSampleRate < 0 || c.Cache.WitnessSampleRate > 1 {
		return fmt.Errorf("config: cache.witness_sample_rate %v outside [0,1]: %w", c.Cache.WitnessSampleRate, models.ErrInvalidInput)
	}
	if c.Economic.BribeLeakage < 0 || c.Economic.BribeLeakage > 1 {
		return fmt.Errorf("config: economic.bribe_leakage %v outside [0,1]: %w", c.Economic.BribeLeakage, models.ErrInvalidInput)
	}

	return nil
}

// Hash returns a 16-hex-char SHA-256 prefix of the config's canonical JSON
// encoding, used as the config_hash half of the Cache key (§4.10) and the
// (seed, config_hash, population) determinism triple (§3 invariant 8).
func (c Config) Hash() (string, error) {
	encoded, err := json.Marshal(canonicalConfig(c))
	if err != nil {
		return "", fmt.Errorf("config: hash: %w", err)
	}
	sum := sha256.Sum256(encoded)
	return hex.EncodeToString(sum[:])[:16], nil
}

// canonicalConfig re-keys the role-keyed maps to strings so
// encoding/json's deterministic key-sort produces a stable encoding
// across platforms (Go map iteration order is not itself stable, but
// json.Marshal sorts map[string]... keys lexicographically).
func canonicalConfig(c Config) map[string]any {
	roleRatios := make(map[string]float64, len(c.Registry.RoleRatios))
	for role, v := range c.Registry.RoleRatios {
		roleRatios[role.String()] = v
	}
	return map[string]any{
		"seed":      c.Seed,
		"substrate": c.Substrate,
		"registry_role_ratios": roleRatios,
		"economic":  c.Economic,
		"refractory": c.Refractory,
		"cache":     c.Cache,
		"trait_emergence": c.TraitEmergence,
	}
}
