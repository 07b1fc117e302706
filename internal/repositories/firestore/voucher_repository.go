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

const voucherCollection = "vouchers"

// VoucherRepository persists single-use vouchers.
type VoucherRepository struct {
	base *pfirestore.BaseRepository[voucherDocument]
}

// NewVoucherRepository constructs a Firestore-backed voucher repository.
func NewVoucherRepository(provider *pfirestore.Provider) (*VoucherRepository, error) {
	if provider == nil {
		return nil, errors.New("voucher repository requires firestore provider")
	}
	base := pfirestore.NewBaseRepository[voucherDocument](provider, voucherCollection, nil, nil)
	return &VoucherRepository{base: base}, nil
}

// FindByID loads the voucher by ID.
func (r *VoucherRepository) FindByID(ctx context.Context, voucherID string) (domain.Voucher, error) {
	if r == nil || r.base == nil {
		return domain.Voucher{}, errors.New("voucher repository not initialised")
	}

	doc, err := r.base.Get(ctx, strings.TrimSpace(voucherID))
	if err != nil {
		return domain.Voucher{}, err
	}
	return voucherFromDocument(doc.ID, doc.Data), nil
}

// Delete removes the voucher. Deleting a voucher that is already gone reports
// not found so callers can treat it as retired.
func (r *VoucherRepository) Delete(ctx context.Context, voucherID string) error {
	if r == nil || r.base == nil {
		return errors.New("voucher repository not initialised")
	}
	id := strings.TrimSpace(voucherID)
	if _, err := r.base.Get(ctx, id); err != nil {
		return err
	}

	ref, err := r.base.DocumentRef(ctx, id)
	if err != nil {
		return err
	}
	if _, err := ref.Delete(ctx); err != nil {
		return pfirestore.WrapError("vouchers.delete", err)
	}
	return nil
}

type voucherDocument struct {
	UserID    string    `firestore:"userId"`
	PerkID    string    `firestore:"perkId"`
	CreatedAt time.Time `firestore:"createdAt"`
}

func voucherFromDocument(id string, doc voucherDocument) domain.Voucher {
	return domain.Voucher{
		ID:        id,
		UserID:    doc.UserID,
		PerkID:    doc.PerkID,
		CreatedAt: doc.CreatedAt,
	}
}

var _ repositories.VoucherRepository = (*VoucherRepository)(nil)
