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

const cartItemCollection = "cartItems"

// CartRepository persists cart items as a flat collection keyed by item ID
// with a userId field for per-user queries.
type CartRepository struct {
	base *pfirestore.BaseRepository[cartItemDocument]
}

// NewCartRepository constructs a Firestore-backed cart repository.
func NewCartRepository(provider *pfirestore.Provider) (*CartRepository, error) {
	if provider == nil {
		return nil, errors.New("cart repository requires firestore provider")
	}
	base := pfirestore.NewBaseRepository[cartItemDocument](provider, cartItemCollection, nil, nil)
	return &CartRepository{base: base}, nil
}

// ListByUser returns the user's cart items ordered by creation time.
func (r *CartRepository) ListByUser(ctx context.Context, userID string) ([]domain.CartItem, error) {
	if r == nil || r.base == nil {
		return nil, errors.New("cart repository not initialised")
	}
	uid := strings.TrimSpace(userID)
	if uid == "" {
		return nil, errors.New("cart repository: user id is required")
	}

	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.Where("userId", "==", uid).OrderBy("createdAt", firestore.Asc)
	})
	if err != nil {
		return nil, err
	}

	items := make([]domain.CartItem, 0, len(docs))
	for _, doc := range docs {
		items = append(items, cartItemFromDocument(doc.ID, doc.Data))
	}
	return items, nil
}

// FindByID loads one cart item and verifies it belongs to the user. An item
// owned by another user reads as not found.
func (r *CartRepository) FindByID(ctx context.Context, userID string, itemID string) (domain.CartItem, error) {
	if r == nil || r.base == nil {
		return domain.CartItem{}, errors.New("cart repository not initialised")
	}

	doc, err := r.base.Get(ctx, strings.TrimSpace(itemID))
	if err != nil {
		return domain.CartItem{}, err
	}
	if doc.Data.UserID != strings.TrimSpace(userID) {
		return domain.CartItem{}, notFoundError("cartitems.get", itemID)
	}
	return cartItemFromDocument(doc.ID, doc.Data), nil
}

// Delete removes the item after verifying ownership.
func (r *CartRepository) Delete(ctx context.Context, userID string, itemID string) error {
	if r == nil || r.base == nil {
		return errors.New("cart repository not initialised")
	}
	if _, err := r.FindByID(ctx, userID, itemID); err != nil {
		return err
	}

	ref, err := r.base.DocumentRef(ctx, strings.TrimSpace(itemID))
	if err != nil {
		return err
	}
	if _, err := ref.Delete(ctx); err != nil {
		return pfirestore.WrapError("cartitems.delete", err)
	}
	return nil
}

type cartItemDocument struct {
	UserID       string    `firestore:"userId"`
	ActivityName string    `firestore:"activityName"`
	UnitPrice    int64     `firestore:"unitPrice"`
	Quantity     int       `firestore:"quantity"`
	CreatedAt    time.Time `firestore:"createdAt"`
	UpdatedAt    time.Time `firestore:"updatedAt"`
}

func cartItemFromDocument(id string, doc cartItemDocument) domain.CartItem {
	return domain.CartItem{
		ID:           id,
		UserID:       doc.UserID,
		ActivityName: doc.ActivityName,
		UnitPrice:    doc.UnitPrice,
		Quantity:     doc.Quantity,
		CreatedAt:    doc.CreatedAt,
		UpdatedAt:    doc.UpdatedAt,
	}
}

var _ repositories.CartRepository = (*CartRepository)(nil)
