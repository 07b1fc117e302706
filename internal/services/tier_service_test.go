package services

import (
	"context"
	"errors"
	"testing"
	"time"

	domain "github.com/uplay-sg/api/internal/domain"
)

type stubTierRepository struct {
	tiers     []domain.Tier
	listErr   error
	insertErr error
}

func (r *stubTierRepository) List(ctx context.Context) ([]domain.Tier, error) {
	if r.listErr != nil {
		return nil, r.listErr
	}
	out := make([]domain.Tier, len(r.tiers))
	copy(out, r.tiers)
	return out, nil
}

func (r *stubTierRepository) Insert(ctx context.Context, tier domain.Tier) (domain.Tier, error) {
	if r.insertErr != nil {
		return domain.Tier{}, r.insertErr
	}
	r.tiers = append(r.tiers, tier)
	return tier, nil
}

func newTestTierService(t *testing.T, repo *stubTierRepository) *TierService {
	t.Helper()
	seq := 0
	svc, err := NewTierService(TierServiceDeps{
		Tiers: repo,
		IDGenerator: func() string {
			seq++
			return map[int]string{1: "tier_1", 2: "tier_2", 3: "tier_3"}[seq]
		},
		Clock: func() time.Time { return time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC) },
	})
	if err != nil {
		t.Fatalf("NewTierService error: %v", err)
	}
	return svc
}

func TestTierService_CreateAppendsAtNextPosition(t *testing.T) {
	repo := &stubTierRepository{tiers: []domain.Tier{
		{ID: "bronze", Position: 1, TierBookings: 2, TierSpendings: 5000},
		{ID: "silver", Position: 2, TierBookings: 5, TierSpendings: 20000},
	}}
	svc := newTestTierService(t, repo)

	created, err := svc.Create(context.Background(), CreateTierCommand{
		Name:          "Gold",
		TierBookings:  10,
		TierSpendings: 50000,
	})
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if created.Position != 3 {
		t.Fatalf("expected position 3, got %d", created.Position)
	}
	if created.ID != "tier_1" || created.Name != "Gold" {
		t.Fatalf("unexpected tier: %+v", created)
	}
	if len(repo.tiers) != 3 {
		t.Fatalf("expected the tier persisted, got %d tiers", len(repo.tiers))
	}
}

func TestTierService_CreateFirstTierStartsAtOne(t *testing.T) {
	svc := newTestTierService(t, &stubTierRepository{})

	created, err := svc.Create(context.Background(), CreateTierCommand{Name: "Bronze", TierBookings: 1})
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if created.Position != 1 {
		t.Fatalf("expected position 1, got %d", created.Position)
	}
}

func TestTierService_CreateRejectsZeroZeroThresholds(t *testing.T) {
	svc := newTestTierService(t, &stubTierRepository{})

	_, err := svc.Create(context.Background(), CreateTierCommand{Name: "Free Ride"})
	if !errors.Is(err, ErrTierInvalidInput) {
		t.Fatalf("expected ErrTierInvalidInput for zero-zero thresholds, got %v", err)
	}
}

func TestTierService_CreateRejectsInvalidInput(t *testing.T) {
	svc := newTestTierService(t, &stubTierRepository{})

	cases := []CreateTierCommand{
		{Name: "  ", TierBookings: 1},
		{Name: "Negative", TierBookings: -1, TierSpendings: 100},
		{Name: "Negative", TierBookings: 1, TierSpendings: -100},
	}
	for _, cmd := range cases {
		if _, err := svc.Create(context.Background(), cmd); !errors.Is(err, ErrTierInvalidInput) {
			t.Fatalf("expected ErrTierInvalidInput for %+v, got %v", cmd, err)
		}
	}
}

func TestTierService_ListSurfacesOutage(t *testing.T) {
	svc := newTestTierService(t, &stubTierRepository{listErr: stubRepoError{unavailable: true}})

	if _, err := svc.List(context.Background()); !errors.Is(err, ErrTierUnavailable) {
		t.Fatalf("expected ErrTierUnavailable, got %v", err)
	}
}
