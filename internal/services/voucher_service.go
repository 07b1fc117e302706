package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	domain "github.com/uplay-sg/api/internal/domain"
	"github.com/uplay-sg/api/internal/repositories"
)

var (
	// ErrVoucherNotFound signals a voucher that does not exist, is not owned by
	// the caller, or points at a perk that no longer exists. The three cases are
	// deliberately indistinguishable to the caller.
	ErrVoucherNotFound = errors.New("voucher: not found")
	// ErrVoucherUnavailable signals a transient persistence failure.
	ErrVoucherUnavailable = errors.New("voucher: unavailable")
)

// PricedCart is the outcome of cart pricing with an optional voucher applied.
type PricedCart struct {
	AmountPayable  int64
	AppliedVoucher *string
}

// VoucherRedemptionServiceDeps wires the dependencies of the redemption service.
type VoucherRedemptionServiceDeps struct {
	Vouchers repositories.VoucherRepository
	Perks    repositories.PerkRepository
	Pricing  *PricingEngine
	Logger   func(ctx context.Context, event string, fields map[string]any)
}

// VoucherRedemptionService validates voucher ownership and eligibility and
// prices carts through the PricingEngine.
type VoucherRedemptionService struct {
	vouchers repositories.VoucherRepository
	perks    repositories.PerkRepository
	pricing  *PricingEngine
	logger   func(ctx context.Context, event string, fields map[string]any)
}

// NewVoucherRedemptionService constructs a VoucherRedemptionService validating required dependencies.
func NewVoucherRedemptionService(deps VoucherRedemptionServiceDeps) (*VoucherRedemptionService, error) {
	if deps.Vouchers == nil {
		return nil, errors.New("voucher service: voucher repository is required")
	}
	if deps.Perks == nil {
		return nil, errors.New("voucher service: perk repository is required")
	}
	if deps.Pricing == nil {
		return nil, errors.New("voucher service: pricing engine is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &VoucherRedemptionService{
		vouchers: deps.Vouchers,
		perks:    deps.Perks,
		pricing:  deps.Pricing,
		logger:   logger,
	}, nil
}

// ValidateAndPrice prices the cart, applying the voucher's perk when a voucher
// ID is supplied. The voucher must exist and belong to userID.
func (s *VoucherRedemptionService) ValidateAndPrice(ctx context.Context, userID string, items []domain.CartItem, voucherID *string) (PricedCart, error) {
	total, err := s.pricing.CartTotal(items)
	if err != nil {
		return PricedCart{}, err
	}

	id := ""
	if voucherID != nil {
		id = strings.TrimSpace(*voucherID)
	}
	if id == "" {
		return PricedCart{AmountPayable: total}, nil
	}

	voucher, err := s.vouchers.FindByID(ctx, id)
	if err != nil {
		return PricedCart{}, s.translateLookupError(err)
	}
	if voucher.UserID != userID {
		s.logger(ctx, "voucher.ownership_mismatch", map[string]any{"voucherId": id, "userId": userID})
		return PricedCart{}, ErrVoucherNotFound
	}

	perk, err := s.perks.FindByID(ctx, voucher.PerkID)
	if err != nil {
		return PricedCart{}, s.translateLookupError(err)
	}

	discounted, err := s.pricing.DiscountedTotal(ctx, total, s.pricing.TotalQuantity(items), perk)
	if err != nil {
		return PricedCart{}, err
	}

	applied := voucher.ID
	return PricedCart{AmountPayable: discounted, AppliedVoucher: &applied}, nil
}

// Retire deletes a redeemed voucher. A voucher that is already gone is treated
// as retired; callers invoke this only after fulfillment has committed.
func (s *VoucherRedemptionService) Retire(ctx context.Context, voucherID string) error {
	voucherID = strings.TrimSpace(voucherID)
	if voucherID == "" {
		return nil
	}
	if err := s.vouchers.Delete(ctx, voucherID); err != nil {
		var repoErr repositories.RepositoryError
		if errors.As(err, &repoErr) && repoErr.IsNotFound() {
			s.logger(ctx, "voucher.already_retired", map[string]any{"voucherId": voucherID})
			return nil
		}
		return fmt.Errorf("%w: retire %s: %v", ErrVoucherUnavailable, voucherID, err)
	}
	return nil
}

func (s *VoucherRedemptionService) translateLookupError(err error) error {
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		if repoErr.IsNotFound() {
			return ErrVoucherNotFound
		}
		return fmt.Errorf("%w: %v", ErrVoucherUnavailable, err)
	}
	return fmt.Errorf("%w: %v", ErrVoucherUnavailable, err)
}
