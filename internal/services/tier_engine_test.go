package services

import (
	"context"
	"testing"

	domain "github.com/uplay-sg/api/internal/domain"
)

func newTestTierEngine(t *testing.T) *TierProgressionEngine {
	t.Helper()
	engine, err := NewTierProgressionEngine(TierProgressionEngineDeps{})
	if err != nil {
		t.Fatalf("NewTierProgressionEngine error: %v", err)
	}
	return engine
}

func testLadder() []domain.Tier {
	return []domain.Tier{
		{ID: "bronze", Name: "Bronze", Position: 1, TierBookings: 2, TierSpendings: 5000},
		{ID: "silver", Name: "Silver", Position: 2, TierBookings: 5, TierSpendings: 20000},
		{ID: "gold", Name: "Gold", Position: 3, TierBookings: 10, TierSpendings: 50000},
	}
}

func TestTierProgression_NoUpgradeBelowThresholds(t *testing.T) {
	engine := newTestTierEngine(t)

	user := domain.User{ID: "u1", TierID: "bronze", TotalBookings: 1, TotalSpent: 4000}
	got, upgrades := engine.Progress(context.Background(), user, testLadder())
	if upgrades != 0 {
		t.Fatalf("expected no upgrade, got %d", upgrades)
	}
	if got.TierID != "bronze" || got.TotalBookings != 1 || got.TotalSpent != 4000 {
		t.Fatalf("expected totals untouched, got %+v", got)
	}
}

func TestTierProgression_SingleUpgradeCarriesOverflow(t *testing.T) {
	engine := newTestTierEngine(t)

	user := domain.User{ID: "u1", TierID: "bronze", TotalBookings: 3, TotalSpent: 7500}
	got, upgrades := engine.Progress(context.Background(), user, testLadder())
	if upgrades != 1 {
		t.Fatalf("expected one upgrade, got %d", upgrades)
	}
	if got.TierID != "silver" {
		t.Fatalf("expected silver, got %s", got.TierID)
	}
	if got.TotalBookings != 1 || got.TotalSpent != 2500 {
		t.Fatalf("expected overflow 1/2500, got %d/%d", got.TotalBookings, got.TotalSpent)
	}
}

func TestTierProgression_DoubleUpgradeInOnePass(t *testing.T) {
	engine := newTestTierEngine(t)

	// Enough to consume bronze (2/5000) and silver (5/20000) with remainder.
	user := domain.User{ID: "u1", TierID: "bronze", TotalBookings: 8, TotalSpent: 26000}
	got, upgrades := engine.Progress(context.Background(), user, testLadder())
	if upgrades != 2 {
		t.Fatalf("expected two upgrades, got %d", upgrades)
	}
	if got.TierID != "gold" {
		t.Fatalf("expected gold, got %s", got.TierID)
	}
	if got.TotalBookings != 1 || got.TotalSpent != 1000 {
		t.Fatalf("expected overflow 1/1000, got %d/%d", got.TotalBookings, got.TotalSpent)
	}
}

func TestTierProgression_StopsAtTopOfLadder(t *testing.T) {
	engine := newTestTierEngine(t)

	user := domain.User{ID: "u1", TierID: "gold", TotalBookings: 100, TotalSpent: 1_000_000}
	got, upgrades := engine.Progress(context.Background(), user, testLadder())
	if upgrades != 0 {
		t.Fatalf("expected no upgrade at top tier, got %d", upgrades)
	}
	if got.TierID != "gold" || got.TotalBookings != 100 {
		t.Fatalf("expected totals kept at the top, got %+v", got)
	}
}

func TestTierProgression_ExactThresholdsUpgradeToZero(t *testing.T) {
	engine := newTestTierEngine(t)

	user := domain.User{ID: "u1", TierID: "bronze", TotalBookings: 2, TotalSpent: 5000}
	got, upgrades := engine.Progress(context.Background(), user, testLadder())
	if upgrades != 1 {
		t.Fatalf("expected one upgrade at exact thresholds, got %d", upgrades)
	}
	if got.TotalBookings != 0 || got.TotalSpent != 0 {
		t.Fatalf("expected zero overflow, got %d/%d", got.TotalBookings, got.TotalSpent)
	}
}

func TestTierProgression_OneDimensionShortBlocksUpgrade(t *testing.T) {
	engine := newTestTierEngine(t)

	// Bookings satisfied, spend short. Both thresholds must be met.
	user := domain.User{ID: "u1", TierID: "bronze", TotalBookings: 50, TotalSpent: 4999}
	_, upgrades := engine.Progress(context.Background(), user, testLadder())
	if upgrades != 0 {
		t.Fatalf("expected no upgrade when spend is short, got %d", upgrades)
	}
}

func TestTierProgression_UnknownTierFallsBackToLowest(t *testing.T) {
	engine := newTestTierEngine(t)

	user := domain.User{ID: "u1", TierID: "deleted-tier", TotalBookings: 3, TotalSpent: 6000}
	got, upgrades := engine.Progress(context.Background(), user, testLadder())
	if upgrades != 1 {
		t.Fatalf("expected progression from the lowest tier, got %d upgrades", upgrades)
	}
	if got.TierID != "silver" {
		t.Fatalf("expected silver, got %s", got.TierID)
	}
}

func TestTierProgression_EmptyTierZeroZeroHalts(t *testing.T) {
	engine := newTestTierEngine(t)

	ladder := []domain.Tier{
		{ID: "a", Position: 1, TierBookings: 0, TierSpendings: 0},
		{ID: "b", Position: 2, TierBookings: 1, TierSpendings: 1},
	}
	user := domain.User{ID: "u1", TierID: "a", TotalBookings: 10, TotalSpent: 10}
	got, upgrades := engine.Progress(context.Background(), user, ladder)
	if upgrades != 0 {
		t.Fatalf("expected the zero-zero tier to halt progression, got %d", upgrades)
	}
	if got.TierID != "a" {
		t.Fatalf("expected user to stay on tier a, got %s", got.TierID)
	}
}

func TestTierProgression_EmptyLadderIsNoop(t *testing.T) {
	engine := newTestTierEngine(t)

	user := domain.User{ID: "u1", TierID: "", TotalBookings: 5, TotalSpent: 100}
	got, upgrades := engine.Progress(context.Background(), user, nil)
	if upgrades != 0 || got != user {
		t.Fatalf("expected untouched user, got %+v (%d upgrades)", got, upgrades)
	}
}
