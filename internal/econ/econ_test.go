package econ

import (
	"math"
	"testing"

	"github.com/rawblock/bff-engine/internal/config"
	"github.com/rawblock/bff-engine/pkg/models"
)

func TestApplyTrade_Scenario(t *testing.T) {
	cfg := config.Default().Economic
	king := models.Agent{Currency: 500, Wealth: models.WealthTraits{Defend: 10, Trade: 8}}

	created := ApplyTrade(&king, cfg)

	if king.Currency != 400 {
		t.Errorf("currency = %d, want 400", king.Currency)
	}
	if king.Wealth.Defend != 13 {
		t.Errorf("defend = %d, want 13", king.Wealth.Defend)
	}
	if king.Wealth.Trade != 10 {
		t.Errorf("trade = %d, want 10", king.Wealth.Trade)
	}
	if created != 5 {
		t.Errorf("created = %d, want 5", created)
	}
}

func TestApplyTrade_InsufficientCurrencyIsIdentity(t *testing.T) {
	cfg := config.Default().Economic
	king := models.Agent{Currency: 50, Wealth: models.WealthTraits{Defend: 1}}
	before := king

	created := ApplyTrade(&king, cfg)

	if created != 0 {
		t.Errorf("created = %d, want 0", created)
	}
	if king != before {
		t.Errorf("agent mutated when currency < invest: %+v vs %+v", king, before)
	}
}

func TestBribeAccept_Scenario(t *testing.T) {
	cfg := config.Default().Economic
	king := models.Agent{
		ID: "K-00", Currency: 2000, BribeThreshold: 1000,
		Wealth: models.WealthTraits{Compute: 50}, // total=50 exposed at factor 1.0
	}
	merc := models.Agent{
		ID: "M-00", Currency: 50,
		Wealth: models.WealthTraits{Raid: 3, Sense: 3, Adapt: 3},
	}

	rv := RaidValue(merc, king, nil, cfg)
	if math.Abs(rv-24.5) > 1e-9 {
		t.Fatalf("raid_value = %v, want 24.5", rv)
	}

	if !(king.BribeThreshold >= int(rv) && king.Currency >= king.BribeThreshold) {
		t.Fatalf("scenario setup should satisfy bribe-accept condition")
	}

	king.AddCurrency(-king.BribeThreshold)
	merc.AddCurrency(king.BribeThreshold)
	ApplyBribeLeakage(&king, cfg.BribeLeakage)

	if king.Currency != 1000 {
		t.Errorf("king currency = %d, want 1000", king.Currency)
	}
	if merc.Currency != 1050 {
		t.Errorf("merc currency = %d, want 1050", merc.Currency)
	}
	wantCompute := int(math.Floor(50 * 0.95))
	if king.Wealth.Compute != wantCompute {
		t.Errorf("king compute = %d, want %d", king.Wealth.Compute, wantCompute)
	}
}

func TestDefendTieBreak_Scenario(t *testing.T) {
	cfg := config.Default().Economic
	knight := models.Agent{ID: "N-01", Wealth: models.WealthTraits{Defend: 5, Sense: 2, Adapt: 1}}
	merc := models.Agent{ID: "M-01", Wealth: models.WealthTraits{Raid: 5, Sense: 2, Adapt: 1}}

	p := PKnightWin(knight, merc, cfg)
	if math.Abs(p-0.5) > 1e-9 {
		t.Fatalf("p_knight_win = %v, want 0.5 for identical trait sums with no employer", p)
	}

	wins := ResolveKnightWins(p, knight.ID, merc.ID)
	// "M-01" < "N-01" lexicographically, so knight.ID is NOT less than
	// merc.ID: the mercenary wins.
	if wins {
		t.Errorf("ResolveKnightWins(0.5, %q, %q) = true, want false (merc wins the tie)", knight.ID, merc.ID)
	}
}

func TestPKnightWin_AlwaysWithinClampRange(t *testing.T) {
	cfg := config.Default().Economic
	knight := models.Agent{Wealth: models.WealthTraits{Defend: 1000}}
	merc := models.Agent{Wealth: models.WealthTraits{Raid: 0}}

	p := PKnightWin(knight, merc, cfg)
	if p < cfg.DefendResolution.ClampMin || p > cfg.DefendResolution.ClampMax {
		t.Errorf("p_knight_win = %v, out of [%v,%v]", p, cfg.DefendResolution.ClampMin, cfg.DefendResolution.ClampMax)
	}
}

func TestPickTargetKing_EmptyIsError(t *testing.T) {
	cfg := config.Default().Economic
	if _, err := PickTargetKing(nil, cfg); err == nil {
		t.Error("expected error for empty kings")
	}
}

func TestApplyBribeLeakage_ZeroFracIsIdentity(t *testing.T) {
	king := models.Agent{Wealth: models.WealthTraits{Compute: 10, Copy: 3}}
	before := king.Wealth
	ApplyBribeLeakage(&king, 0)
	if king.Wealth != before {
		t.Errorf("ApplyBribeLeakage(0) mutated traits: %+v vs %+v", king.Wealth, before)
	}
}
