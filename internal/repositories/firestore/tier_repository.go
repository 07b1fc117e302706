package firestore

import (
	"context"
	"errors"
	"strings"
	"time"

	"cloud.google.com/go/firestore"

	domain "github.com/uplay-sg/api/internal/domain"
	pfirestore "github.com/uplay-sg/api/internal/platform/firestore"
	"github.com/uplay-sg/api/internal/repositories"
)

const tierCollection = "tiers"

// TierRepository maintains the ordered loyalty ladder.
type TierRepository struct {
	base *pfirestore.BaseRepository[tierDocument]
}

// NewTierRepository constructs a Firestore-backed tier repository.
func NewTierRepository(provider *pfirestore.Provider) (*TierRepository, error) {
	if provider == nil {
		return nil, errors.New("tier repository requires firestore provider")
	}
	base := pfirestore.NewBaseRepository[tierDocument](provider, tierCollection, nil, nil)
	return &TierRepository{base: base}, nil
}

// List returns all tiers ordered by ascending position.
func (r *TierRepository) List(ctx context.Context) ([]domain.Tier, error) {
	if r == nil || r.base == nil {
		return nil, errors.New("tier repository not initialised")
	}

	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.OrderBy("position", firestore.Asc)
	})
	if err != nil {
		return nil, err
	}

	tiers := make([]domain.Tier, 0, len(docs))
	for _, doc := range docs {
		tiers = append(tiers, tierFromDocument(doc.ID, doc.Data))
	}
	return tiers, nil
}

// Insert persists a new tier under its pre-assigned ID.
func (r *TierRepository) Insert(ctx context.Context, tier domain.Tier) (domain.Tier, error) {
	if r == nil || r.base == nil {
		return domain.Tier{}, errors.New("tier repository not initialised")
	}
	if strings.TrimSpace(tier.ID) == "" {
		return domain.Tier{}, errors.New("tier repository: tier id is required")
	}

	doc := tierToDocument(tier, time.Now().UTC())
	if _, err := r.base.Set(ctx, tier.ID, doc); err != nil {
		return domain.Tier{}, err
	}
	return tierFromDocument(tier.ID, doc), nil
}

type tierDocument struct {
	Name          string    `firestore:"name"`
	Position      int       `firestore:"position"`
	TierBookings  int       `firestore:"tierBookings"`
	TierSpendings int64     `firestore:"tierSpendings"`
	CreatedAt     time.Time `firestore:"createdAt"`
	UpdatedAt     time.Time `firestore:"updatedAt"`
}

func tierToDocument(tier domain.Tier, now time.Time) tierDocument {
	doc := tierDocument{
		Name:          strings.TrimSpace(tier.Name),
		Position:      tier.Position,
		TierBookings:  tier.TierBookings,
		TierSpendings: tier.TierSpendings,
		CreatedAt:     tier.CreatedAt.UTC(),
		UpdatedAt:     now,
	}
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = now
	}
	return doc
}

func tierFromDocument(id string, doc tierDocument) domain.Tier {
	return domain.Tier{
		ID:            id,
		Name:          doc.Name,
		Position:      doc.Position,
		TierBookings:  doc.TierBookings,
		TierSpendings: doc.TierSpendings,
		CreatedAt:     doc.CreatedAt,
		UpdatedAt:     doc.UpdatedAt,
	}
}

var _ repositories.TierRepository = (*TierRepository)(nil)
