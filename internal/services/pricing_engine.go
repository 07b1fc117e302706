package services

import (
	"context"
	"errors"
	"fmt"
	"math"

	domain "github.com/uplay-sg/api/internal/domain"
)

var (
	// ErrInvalidCart signals an empty cart or a cart whose total is not positive.
	ErrInvalidCart = errors.New("pricing: invalid cart")
	// ErrVoucherIneligible signals a voucher whose perk thresholds the cart does not meet.
	ErrVoucherIneligible = errors.New("pricing: voucher ineligible")
)

// PricingEngineDeps wires the optional collaborators of the PricingEngine.
type PricingEngineDeps struct {
	Logger func(ctx context.Context, event string, fields map[string]any)
}

// PricingEngine computes cart totals and perk discounts. All amounts are in
// minor currency units (cents).
type PricingEngine struct {
	logger func(ctx context.Context, event string, fields map[string]any)
}

// NewPricingEngine constructs a PricingEngine.
func NewPricingEngine(deps PricingEngineDeps) (*PricingEngine, error) {
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &PricingEngine{logger: logger}, nil
}

// CartTotal sums unit price times quantity over the cart. The cart total must
// be strictly positive; this is checked before any discount logic runs.
func (e *PricingEngine) CartTotal(items []domain.CartItem) (int64, error) {
	if len(items) == 0 {
		return 0, fmt.Errorf("%w: cart is empty", ErrInvalidCart)
	}

	var total int64
	for _, item := range items {
		if item.Quantity <= 0 {
			return 0, fmt.Errorf("%w: item %s quantity must be positive", ErrInvalidCart, item.ID)
		}
		if item.UnitPrice < 0 {
			return 0, fmt.Errorf("%w: item %s unit price cannot be negative", ErrInvalidCart, item.ID)
		}
		quantity := int64(item.Quantity)
		if item.UnitPrice > 0 && item.UnitPrice > math.MaxInt64/quantity {
			return 0, fmt.Errorf("%w: item %s subtotal overflow", ErrInvalidCart, item.ID)
		}
		subtotal := item.UnitPrice * quantity
		if total > math.MaxInt64-subtotal {
			return 0, fmt.Errorf("%w: cart total overflow", ErrInvalidCart)
		}
		total += subtotal
	}

	if total <= 0 {
		return 0, fmt.Errorf("%w: cart total must be positive", ErrInvalidCart)
	}
	return total, nil
}

// TotalQuantity sums item quantities across the cart.
func (e *PricingEngine) TotalQuantity(items []domain.CartItem) int {
	var quantity int
	for _, item := range items {
		if item.Quantity > 0 {
			quantity += item.Quantity
		}
	}
	return quantity
}

// DiscountedTotal applies the perk to the cart total after checking its
// eligibility thresholds. A perk is fixed XOR percentage: a nonzero
// FixedDiscount takes the fixed path, otherwise the percentage path applies.
// The result never goes below zero.
func (e *PricingEngine) DiscountedTotal(ctx context.Context, total int64, quantity int, perk domain.Perk) (int64, error) {
	if total <= 0 {
		return 0, fmt.Errorf("%w: cart total must be positive", ErrInvalidCart)
	}
	if total < perk.MinSpend {
		return 0, fmt.Errorf("%w: cart total %d below minimum spend %d", ErrVoucherIneligible, total, perk.MinSpend)
	}
	if quantity < perk.MinGroupSize {
		return 0, fmt.Errorf("%w: group size %d below minimum %d", ErrVoucherIneligible, quantity, perk.MinGroupSize)
	}

	var discount int64
	if perk.FixedDiscount != 0 {
		discount = perk.FixedDiscount
	} else {
		discount = int64(math.Round(float64(total) * perk.PercentDiscount / 100))
	}

	discounted := total - discount
	if discounted < 0 {
		e.logger(ctx, "pricing.discount_clamped", map[string]any{
			"perkId":   perk.ID,
			"total":    total,
			"discount": discount,
		})
		discounted = 0
	}
	return discounted, nil
}
