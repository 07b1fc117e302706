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

const orderCollection = "orders"

// OrderRepository reads immutable order snapshots. Orders are written only
// inside the fulfillment transaction.
type OrderRepository struct {
	base *pfirestore.BaseRepository[orderDocument]
}

// NewOrderRepository constructs a Firestore-backed order repository.
func NewOrderRepository(provider *pfirestore.Provider) (*OrderRepository, error) {
	if provider == nil {
		return nil, errors.New("order repository requires firestore provider")
	}
	base := pfirestore.NewBaseRepository[orderDocument](provider, orderCollection, nil, nil)
	return &OrderRepository{base: base}, nil
}

// FindByID loads the order by ID.
func (r *OrderRepository) FindByID(ctx context.Context, orderID string) (domain.Order, error) {
	if r == nil || r.base == nil {
		return domain.Order{}, errors.New("order repository not initialised")
	}

	doc, err := r.base.Get(ctx, strings.TrimSpace(orderID))
	if err != nil {
		return domain.Order{}, err
	}
	return orderFromDocument(doc.ID, doc.Data), nil
}

// ListByUser returns the user's orders, newest first.
func (r *OrderRepository) ListByUser(ctx context.Context, userID string) ([]domain.Order, error) {
	if r == nil || r.base == nil {
		return nil, errors.New("order repository not initialised")
	}
	uid := strings.TrimSpace(userID)
	if uid == "" {
		return nil, errors.New("order repository: user id is required")
	}

	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.Where("userId", "==", uid).OrderBy("createdAt", firestore.Desc)
	})
	if err != nil {
		return nil, err
	}

	orders := make([]domain.Order, 0, len(docs))
	for _, doc := range docs {
		orders = append(orders, orderFromDocument(doc.ID, doc.Data))
	}
	return orders, nil
}

type orderDocument struct {
	UserID       string    `firestore:"userId"`
	ActivityName string    `firestore:"activityName"`
	Quantity     int       `firestore:"quantity"`
	TotalPrice   int64     `firestore:"totalPrice"`
	CreatedAt    time.Time `firestore:"createdAt"`
}

func orderToDocument(order domain.Order) orderDocument {
	return orderDocument{
		UserID:       order.UserID,
		ActivityName: order.ActivityName,
		Quantity:     order.Quantity,
		TotalPrice:   order.TotalPrice,
		CreatedAt:    order.CreatedAt.UTC(),
	}
}

func orderFromDocument(id string, doc orderDocument) domain.Order {
	return domain.Order{
		ID:           id,
		UserID:       doc.UserID,
		ActivityName: doc.ActivityName,
		Quantity:     doc.Quantity,
		TotalPrice:   doc.TotalPrice,
		CreatedAt:    doc.CreatedAt,
	}
}

var _ repositories.OrderRepository = (*OrderRepository)(nil)
