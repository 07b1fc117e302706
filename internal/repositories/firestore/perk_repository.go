package firestore

import (
	"context"
	"errors"
	"strings"
	"time"

	domain "github.com/uplay-sg/api/internal/domain"
	pfirestore "github.com/uplay-sg/api/internal/platform/firestore"
	"github.com/uplay-sg/api/internal/repositories"
)

const perkCollection = "perks"

// PerkRepository reads the discount definitions vouchers point at.
type PerkRepository struct {
	base *pfirestore.BaseRepository[perkDocument]
}

// NewPerkRepository constructs a Firestore-backed perk repository.
func NewPerkRepository(provider *pfirestore.Provider) (*PerkRepository, error) {
	if provider == nil {
		return nil, errors.New("perk repository requires firestore provider")
	}
	base := pfirestore.NewBaseRepository[perkDocument](provider, perkCollection, nil, nil)
	return &PerkRepository{base: base}, nil
}

// FindByID loads the perk by ID.
func (r *PerkRepository) FindByID(ctx context.Context, perkID string) (domain.Perk, error) {
	if r == nil || r.base == nil {
		return domain.Perk{}, errors.New("perk repository not initialised")
	}

	doc, err := r.base.Get(ctx, strings.TrimSpace(perkID))
	if err != nil {
		return domain.Perk{}, err
	}
	return perkFromDocument(doc.ID, doc.Data), nil
}

type perkDocument struct {
	Name            string    `firestore:"name"`
	MinSpend        int64     `firestore:"minSpend"`
	MinGroupSize    int       `firestore:"minGroupSize"`
	FixedDiscount   int64     `firestore:"fixedDiscount"`
	PercentDiscount float64   `firestore:"percentDiscount"`
	CreatedAt       time.Time `firestore:"createdAt"`
	UpdatedAt       time.Time `firestore:"updatedAt"`
}

func perkFromDocument(id string, doc perkDocument) domain.Perk {
	return domain.Perk{
		ID:              id,
		Name:            doc.Name,
		MinSpend:        doc.MinSpend,
		MinGroupSize:    doc.MinGroupSize,
		FixedDiscount:   doc.FixedDiscount,
		PercentDiscount: doc.PercentDiscount,
		CreatedAt:       doc.CreatedAt,
		UpdatedAt:       doc.UpdatedAt,
	}
}

var _ repositories.PerkRepository = (*PerkRepository)(nil)
