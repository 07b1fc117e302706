package services

import (
	"context"
	"sort"

	domain "github.com/uplay-sg/api/internal/domain"
)

// TierProgressionEngineDeps wires the optional collaborators of the engine.
type TierProgressionEngineDeps struct {
	Logger func(ctx context.Context, event string, fields map[string]any)
}

// TierProgressionEngine advances a user's loyalty tier using overflow carry.
// A tier's thresholds express what the user must accumulate ON that tier to
// reach the next one; meeting both consumes the thresholds and keeps the
// remainder. A single fulfillment can trigger several upgrades.
type TierProgressionEngine struct {
	logger func(ctx context.Context, event string, fields map[string]any)
}

// NewTierProgressionEngine constructs a TierProgressionEngine.
func NewTierProgressionEngine(deps TierProgressionEngineDeps) (*TierProgressionEngine, error) {
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &TierProgressionEngine{logger: logger}, nil
}

// Progress applies as many upgrades as the user's accumulated totals allow and
// returns the updated user plus the number of upgrades taken. Iteration is
// bounded by the tier count. Users with an unknown or empty tier are placed on
// the lowest tier before progression.
func (e *TierProgressionEngine) Progress(ctx context.Context, user domain.User, tiers []domain.Tier) (domain.User, int) {
	if len(tiers) == 0 {
		return user, 0
	}

	ordered := make([]domain.Tier, len(tiers))
	copy(ordered, tiers)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Position < ordered[j].Position })

	byPosition := make(map[int]domain.Tier, len(ordered))
	current := ordered[0]
	for _, tier := range ordered {
		byPosition[tier.Position] = tier
		if tier.ID == user.TierID {
			current = tier
		}
	}

	upgrades := 0
	for i := 0; i < len(ordered); i++ {
		next, ok := byPosition[current.Position+1]
		if !ok {
			break
		}
		if current.TierBookings == 0 && current.TierSpendings == 0 {
			// Tier creation rejects zero-zero thresholds; such a tier would
			// upgrade unconditionally.
			break
		}
		if user.TotalBookings < current.TierBookings || user.TotalSpent < current.TierSpendings {
			break
		}

		user.TotalBookings -= current.TierBookings
		user.TotalSpent -= current.TierSpendings
		current = next
		upgrades++
	}

	if upgrades > 0 {
		e.logger(ctx, "tier.upgraded", map[string]any{
			"userId":   user.ID,
			"tierId":   current.ID,
			"upgrades": upgrades,
		})
	}

	user.TierID = current.ID
	return user, upgrades
}
