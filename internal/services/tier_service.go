package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	domain "github.com/uplay-sg/api/internal/domain"
	"github.com/uplay-sg/api/internal/repositories"
)

var (
	// ErrTierInvalidInput indicates a tier command with missing or invalid fields.
	ErrTierInvalidInput = errors.New("tier: invalid input")
	// ErrTierUnavailable indicates tier persistence is currently unavailable.
	ErrTierUnavailable = errors.New("tier: unavailable")
)

// CreateTierCommand carries the fields for a new loyalty tier.
type CreateTierCommand struct {
	Name          string
	TierBookings  int
	TierSpendings int64
}

// TierServiceDeps wires the dependencies of the tier service.
type TierServiceDeps struct {
	Tiers       repositories.TierRepository
	IDGenerator func() string
	Clock       func() time.Time
	Logger      func(ctx context.Context, event string, fields map[string]any)
}

// TierService administers the loyalty ladder. New tiers append at the end of
// the ladder; a tier whose booking AND spend thresholds are both zero is
// rejected because it would grant an unconditional upgrade.
type TierService struct {
	tiers  repositories.TierRepository
	newID  func() string
	now    func() time.Time
	logger func(ctx context.Context, event string, fields map[string]any)
}

// NewTierService constructs a TierService validating required dependencies.
func NewTierService(deps TierServiceDeps) (*TierService, error) {
	if deps.Tiers == nil {
		return nil, errors.New("tier service: tier repository is required")
	}
	newID := deps.IDGenerator
	if newID == nil {
		newID = func() string { return ulid.Make().String() }
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &TierService{
		tiers: deps.Tiers,
		newID: newID,
		now: func() time.Time {
			return clock().UTC()
		},
		logger: logger,
	}, nil
}

// List returns the ladder ordered by ascending position.
func (s *TierService) List(ctx context.Context) ([]domain.Tier, error) {
	tiers, err := s.tiers.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTierUnavailable, err)
	}
	return tiers, nil
}

// Create appends a tier at the next free position.
func (s *TierService) Create(ctx context.Context, cmd CreateTierCommand) (domain.Tier, error) {
	name := strings.TrimSpace(cmd.Name)
	if name == "" {
		return domain.Tier{}, fmt.Errorf("%w: name is required", ErrTierInvalidInput)
	}
	if cmd.TierBookings < 0 || cmd.TierSpendings < 0 {
		return domain.Tier{}, fmt.Errorf("%w: thresholds cannot be negative", ErrTierInvalidInput)
	}
	if cmd.TierBookings == 0 && cmd.TierSpendings == 0 {
		return domain.Tier{}, fmt.Errorf("%w: booking and spend thresholds cannot both be zero", ErrTierInvalidInput)
	}

	existing, err := s.tiers.List(ctx)
	if err != nil {
		return domain.Tier{}, fmt.Errorf("%w: %v", ErrTierUnavailable, err)
	}
	position := 1
	for _, tier := range existing {
		if tier.Position >= position {
			position = tier.Position + 1
		}
	}

	now := s.now()
	tier := domain.Tier{
		ID:            s.newID(),
		Name:          name,
		Position:      position,
		TierBookings:  cmd.TierBookings,
		TierSpendings: cmd.TierSpendings,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	created, err := s.tiers.Insert(ctx, tier)
	if err != nil {
		return domain.Tier{}, fmt.Errorf("%w: %v", ErrTierUnavailable, err)
	}

	s.logger(ctx, "tier.created", map[string]any{
		"tierId":   created.ID,
		"position": created.Position,
	})
	return created, nil
}
