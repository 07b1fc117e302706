package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"

	domain "github.com/uplay-sg/api/internal/domain"
	"github.com/uplay-sg/api/internal/repositories"
)

// OrderFulfillmentServiceDeps wires the dependencies of the fulfillment service.
type OrderFulfillmentServiceDeps struct {
	IDGenerator func() string
	Clock       func() time.Time
	Logger      func(ctx context.Context, event string, fields map[string]any)
}

// FulfillmentResult reports what one fulfillment pass produced. User carries
// the accumulated totals but not yet any tier progression.
type FulfillmentResult struct {
	Orders       []domain.Order
	User         domain.User
	SkippedItems []string
}

// OrderFulfillmentService converts payload items into immutable order
// snapshots inside a fulfillment transaction. Items whose cart entry no
// longer exists are skipped; a redelivered event therefore fulfils nothing
// twice.
type OrderFulfillmentService struct {
	newID  func() string
	now    func() time.Time
	logger func(ctx context.Context, event string, fields map[string]any)
}

// NewOrderFulfillmentService constructs an OrderFulfillmentService.
func NewOrderFulfillmentService(deps OrderFulfillmentServiceDeps) (*OrderFulfillmentService, error) {
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
	return &OrderFulfillmentService{
		newID: newID,
		now: func() time.Time {
			return clock().UTC()
		},
		logger: logger,
	}, nil
}

// FulfillInto reads the user and the payload's cart items through tx, stages
// an order and a cart item deletion per surviving item, and returns the user
// with payload totals accumulated. The caller stages the user update after
// tier progression.
func (s *OrderFulfillmentService) FulfillInto(ctx context.Context, tx repositories.FulfillmentTx, payload domain.FulfillmentPayload) (FulfillmentResult, error) {
	if tx == nil {
		return FulfillmentResult{}, errors.New("fulfillment service: transaction is required")
	}

	user, err := tx.GetUser(ctx, payload.UserID)
	if err != nil {
		return FulfillmentResult{}, fmt.Errorf("fulfillment service: load user %s: %w", payload.UserID, err)
	}

	now := s.now()
	result := FulfillmentResult{User: user}

	for _, item := range payload.Items {
		_, exists, err := tx.GetCartItem(ctx, payload.UserID, item.ID)
		if err != nil {
			return FulfillmentResult{}, fmt.Errorf("fulfillment service: load cart item %s: %w", item.ID, err)
		}
		if !exists {
			s.logger(ctx, "fulfillment.item_skipped", map[string]any{
				"userId": payload.UserID,
				"itemId": item.ID,
			})
			result.SkippedItems = append(result.SkippedItems, item.ID)
			continue
		}

		subtotal := item.UnitPrice * int64(item.Quantity)
		order := domain.Order{
			ID:           s.newID(),
			UserID:       payload.UserID,
			ActivityName: item.ActivityName,
			Quantity:     item.Quantity,
			TotalPrice:   subtotal,
			CreatedAt:    now,
		}

		tx.StageOrder(order)
		tx.StageCartItemDelete(payload.UserID, item.ID)

		result.Orders = append(result.Orders, order)
		result.User.TotalSpent += subtotal
		result.User.TotalBookings += item.Quantity
	}

	return result, nil
}
