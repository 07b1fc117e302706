package services

import (
	"context"
	"errors"
	"math"
	"testing"

	domain "github.com/uplay-sg/api/internal/domain"
)

func newTestPricingEngine(t *testing.T) *PricingEngine {
	t.Helper()
	engine, err := NewPricingEngine(PricingEngineDeps{})
	if err != nil {
		t.Fatalf("NewPricingEngine error: %v", err)
	}
	return engine
}

func TestPricingEngine_CartTotal(t *testing.T) {
	engine := newTestPricingEngine(t)

	items := []domain.CartItem{
		{ID: "i1", ActivityName: "Kayak Tour", UnitPrice: 4500, Quantity: 2},
		{ID: "i2", ActivityName: "Night Safari", UnitPrice: 3000, Quantity: 1},
	}
	total, err := engine.CartTotal(items)
	if err != nil {
		t.Fatalf("CartTotal error: %v", err)
	}
	if total != 12000 {
		t.Fatalf("expected total 12000, got %d", total)
	}
	if got := engine.TotalQuantity(items); got != 3 {
		t.Fatalf("expected quantity 3, got %d", got)
	}
}

func TestPricingEngine_CartTotalRejectsInvalidCarts(t *testing.T) {
	engine := newTestPricingEngine(t)

	cases := []struct {
		name  string
		items []domain.CartItem
	}{
		{name: "empty cart", items: nil},
		{name: "zero quantity", items: []domain.CartItem{{ID: "i1", UnitPrice: 100, Quantity: 0}}},
		{name: "negative price", items: []domain.CartItem{{ID: "i1", UnitPrice: -100, Quantity: 1}}},
		{name: "zero total", items: []domain.CartItem{{ID: "i1", UnitPrice: 0, Quantity: 2}}},
		{name: "overflow", items: []domain.CartItem{
			{ID: "i1", UnitPrice: math.MaxInt64, Quantity: 1},
			{ID: "i2", UnitPrice: math.MaxInt64, Quantity: 1},
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := engine.CartTotal(tc.items); !errors.Is(err, ErrInvalidCart) {
				t.Fatalf("expected ErrInvalidCart, got %v", err)
			}
		})
	}
}

func TestPricingEngine_DiscountedTotalPercentage(t *testing.T) {
	engine := newTestPricingEngine(t)

	perk := domain.Perk{ID: "perk_pct", PercentDiscount: 10}
	total, err := engine.DiscountedTotal(context.Background(), 10000, 2, perk)
	if err != nil {
		t.Fatalf("DiscountedTotal error: %v", err)
	}
	if total != 9000 {
		t.Fatalf("expected 9000 after 10%% discount, got %d", total)
	}
}

func TestPricingEngine_DiscountedTotalFixedWinsOverPercentage(t *testing.T) {
	engine := newTestPricingEngine(t)

	// A perk carries either a fixed or a percentage discount; fixed takes
	// precedence when both are set.
	perk := domain.Perk{ID: "perk_fixed", FixedDiscount: 2000, PercentDiscount: 50}
	total, err := engine.DiscountedTotal(context.Background(), 10000, 1, perk)
	if err != nil {
		t.Fatalf("DiscountedTotal error: %v", err)
	}
	if total != 8000 {
		t.Fatalf("expected 8000 after fixed discount, got %d", total)
	}
}

func TestPricingEngine_DiscountedTotalClampsAtZero(t *testing.T) {
	engine := newTestPricingEngine(t)

	perk := domain.Perk{ID: "perk_big", FixedDiscount: 50000}
	total, err := engine.DiscountedTotal(context.Background(), 10000, 1, perk)
	if err != nil {
		t.Fatalf("DiscountedTotal error: %v", err)
	}
	if total != 0 {
		t.Fatalf("expected clamp to zero, got %d", total)
	}
}

func TestPricingEngine_DiscountedTotalEligibility(t *testing.T) {
	engine := newTestPricingEngine(t)
	ctx := context.Background()

	perk := domain.Perk{ID: "perk_gate", PercentDiscount: 10, MinSpend: 5000, MinGroupSize: 3}

	if _, err := engine.DiscountedTotal(ctx, 4999, 3, perk); !errors.Is(err, ErrVoucherIneligible) {
		t.Fatalf("expected ErrVoucherIneligible below minimum spend, got %v", err)
	}
	if _, err := engine.DiscountedTotal(ctx, 5000, 2, perk); !errors.Is(err, ErrVoucherIneligible) {
		t.Fatalf("expected ErrVoucherIneligible below minimum group size, got %v", err)
	}

	// Exact thresholds are eligible.
	total, err := engine.DiscountedTotal(ctx, 5000, 3, perk)
	if err != nil {
		t.Fatalf("DiscountedTotal at exact thresholds error: %v", err)
	}
	if total != 4500 {
		t.Fatalf("expected 4500, got %d", total)
	}
}

func TestPricingEngine_DiscountedTotalRejectsNonPositiveTotal(t *testing.T) {
	engine := newTestPricingEngine(t)

	if _, err := engine.DiscountedTotal(context.Background(), 0, 1, domain.Perk{PercentDiscount: 10}); !errors.Is(err, ErrInvalidCart) {
		t.Fatalf("expected ErrInvalidCart for zero total, got %v", err)
	}
}

func TestPricingEngine_DiscountedTotalRoundsPercentage(t *testing.T) {
	engine := newTestPricingEngine(t)

	// 333 * 15% = 49.95, rounded to 50.
	perk := domain.Perk{ID: "perk_round", PercentDiscount: 15}
	total, err := engine.DiscountedTotal(context.Background(), 333, 1, perk)
	if err != nil {
		t.Fatalf("DiscountedTotal error: %v", err)
	}
	if total != 283 {
		t.Fatalf("expected 283 after rounding, got %d", total)
	}
}
