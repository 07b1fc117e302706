package firestore

import (
	"context"
	"errors"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	domain "github.com/uplay-sg/api/internal/domain"
	pfirestore "github.com/uplay-sg/api/internal/platform/firestore"
	"github.com/uplay-sg/api/internal/repositories"
)

const processedEventCollection = "processedEvents"

// FulfillmentStore runs the fulfillment unit of work in a single Firestore
// transaction. Writes staged through the FulfillmentTx are buffered until the
// transaction function returns nil and then applied in one batch, so every
// read happens before the first write as Firestore requires.
type FulfillmentStore struct {
	provider *pfirestore.Provider
}

// NewFulfillmentStore constructs a Firestore-backed fulfillment store.
func NewFulfillmentStore(provider *pfirestore.Provider) (*FulfillmentStore, error) {
	if provider == nil {
		return nil, errors.New("fulfillment store requires firestore provider")
	}
	return &FulfillmentStore{provider: provider}, nil
}

// RunFulfillment executes fn inside a transaction and commits its staged
// writes atomically.
func (s *FulfillmentStore) RunFulfillment(ctx context.Context, fn func(ctx context.Context, tx repositories.FulfillmentTx) error) error {
	if s == nil || s.provider == nil {
		return errors.New("fulfillment store not initialised")
	}
	if fn == nil {
		return errors.New("fulfillment store: transaction function is required")
	}

	client, err := s.provider.Client(ctx)
	if err != nil {
		return err
	}

	return pfirestore.RunTransaction(ctx, client, func(ctx context.Context, tx *firestore.Transaction) error {
		ftx := &fulfillmentTx{client: client, tx: tx}
		if err := fn(ctx, ftx); err != nil {
			return err
		}
		return ftx.apply()
	})
}

type stagedCartDelete struct {
	userID string
	itemID string
}

type fulfillmentTx struct {
	client *firestore.Client
	tx     *firestore.Transaction

	orders      []domain.Order
	cartDeletes []stagedCartDelete
	users       []domain.User
	vouchers    []string
	events      []domain.ProcessedEvent
}

func (t *fulfillmentTx) GetProcessedEvent(ctx context.Context, eventID string) (domain.ProcessedEvent, bool, error) {
	snap, err := t.tx.Get(t.client.Collection(processedEventCollection).Doc(eventID))
	if status.Code(err) == codes.NotFound {
		return domain.ProcessedEvent{}, false, nil
	}
	if err != nil {
		return domain.ProcessedEvent{}, false, pfirestore.WrapError("processedevents.get", err)
	}

	var doc processedEventDocument
	if err := snap.DataTo(&doc); err != nil {
		return domain.ProcessedEvent{}, false, pfirestore.WrapError("processedevents.decode", err)
	}
	return processedEventFromDocument(snap.Ref.ID, doc), true, nil
}

func (t *fulfillmentTx) GetUser(ctx context.Context, userID string) (domain.User, error) {
	snap, err := t.tx.Get(t.client.Collection(userCollection).Doc(userID))
	if err != nil {
		return domain.User{}, pfirestore.WrapError("users.get", err)
	}

	var doc userDocument
	if err := snap.DataTo(&doc); err != nil {
		return domain.User{}, pfirestore.WrapError("users.decode", err)
	}
	return userFromDocument(snap.Ref.ID, doc), nil
}

func (t *fulfillmentTx) GetCartItem(ctx context.Context, userID string, itemID string) (domain.CartItem, bool, error) {
	snap, err := t.tx.Get(t.client.Collection(cartItemCollection).Doc(itemID))
	if status.Code(err) == codes.NotFound {
		return domain.CartItem{}, false, nil
	}
	if err != nil {
		return domain.CartItem{}, false, pfirestore.WrapError("cartitems.get", err)
	}

	var doc cartItemDocument
	if err := snap.DataTo(&doc); err != nil {
		return domain.CartItem{}, false, pfirestore.WrapError("cartitems.decode", err)
	}
	if doc.UserID != userID {
		return domain.CartItem{}, false, nil
	}
	return cartItemFromDocument(snap.Ref.ID, doc), true, nil
}

func (t *fulfillmentTx) GetVoucher(ctx context.Context, voucherID string) (domain.Voucher, bool, error) {
	snap, err := t.tx.Get(t.client.Collection(voucherCollection).Doc(voucherID))
	if status.Code(err) == codes.NotFound {
		return domain.Voucher{}, false, nil
	}
	if err != nil {
		return domain.Voucher{}, false, pfirestore.WrapError("vouchers.get", err)
	}

	var doc voucherDocument
	if err := snap.DataTo(&doc); err != nil {
		return domain.Voucher{}, false, pfirestore.WrapError("vouchers.decode", err)
	}
	return voucherFromDocument(snap.Ref.ID, doc), true, nil
}

func (t *fulfillmentTx) ListTiers(ctx context.Context) ([]domain.Tier, error) {
	query := t.client.Collection(tierCollection).Query.OrderBy("position", firestore.Asc)
	iter := t.tx.Documents(query)
	defer iter.Stop()

	var tiers []domain.Tier
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, pfirestore.WrapError("tiers.query", err)
		}
		var doc tierDocument
		if err := snap.DataTo(&doc); err != nil {
			return nil, pfirestore.WrapError("tiers.decode", err)
		}
		tiers = append(tiers, tierFromDocument(snap.Ref.ID, doc))
	}
	return tiers, nil
}

func (t *fulfillmentTx) StageOrder(order domain.Order) {
	t.orders = append(t.orders, order)
}

func (t *fulfillmentTx) StageCartItemDelete(userID string, itemID string) {
	t.cartDeletes = append(t.cartDeletes, stagedCartDelete{userID: userID, itemID: itemID})
}

func (t *fulfillmentTx) StageUserUpdate(user domain.User) {
	t.users = append(t.users, user)
}

func (t *fulfillmentTx) StageVoucherDelete(voucherID string) {
	t.vouchers = append(t.vouchers, voucherID)
}

func (t *fulfillmentTx) StageProcessedEvent(event domain.ProcessedEvent) {
	t.events = append(t.events, event)
}

func (t *fulfillmentTx) apply() error {
	now := time.Now().UTC()

	for _, order := range t.orders {
		ref := t.client.Collection(orderCollection).Doc(order.ID)
		if err := t.tx.Create(ref, orderToDocument(order)); err != nil {
			return pfirestore.WrapError("orders.create", err)
		}
	}
	for _, del := range t.cartDeletes {
		ref := t.client.Collection(cartItemCollection).Doc(del.itemID)
		if err := t.tx.Delete(ref); err != nil {
			return pfirestore.WrapError("cartitems.delete", err)
		}
	}
	for _, user := range t.users {
		ref := t.client.Collection(userCollection).Doc(user.ID)
		if err := t.tx.Set(ref, userToDocument(user, now)); err != nil {
			return pfirestore.WrapError("users.set", err)
		}
	}
	for _, id := range t.vouchers {
		ref := t.client.Collection(voucherCollection).Doc(id)
		if err := t.tx.Delete(ref); err != nil {
			return pfirestore.WrapError("vouchers.delete", err)
		}
	}
	for _, event := range t.events {
		ref := t.client.Collection(processedEventCollection).Doc(event.EventID)
		// Create, not Set: a concurrent delivery of the same event aborts
		// instead of double fulfilling.
		if err := t.tx.Create(ref, processedEventToDocument(event)); err != nil {
			return pfirestore.WrapError("processedevents.create", err)
		}
	}
	return nil
}

type processedEventDocument struct {
	SessionID   string    `firestore:"sessionId"`
	UserID      string    `firestore:"userId"`
	Amount      int64     `firestore:"amount"`
	OrderIDs    []string  `firestore:"orderIds"`
	ProcessedAt time.Time `firestore:"processedAt"`
}

func processedEventToDocument(event domain.ProcessedEvent) processedEventDocument {
	return processedEventDocument{
		SessionID:   event.SessionID,
		UserID:      event.UserID,
		Amount:      event.Amount,
		OrderIDs:    event.OrderIDs,
		ProcessedAt: event.ProcessedAt.UTC(),
	}
}

func processedEventFromDocument(id string, doc processedEventDocument) domain.ProcessedEvent {
	return domain.ProcessedEvent{
		EventID:     id,
		SessionID:   doc.SessionID,
		UserID:      doc.UserID,
		Amount:      doc.Amount,
		OrderIDs:    doc.OrderIDs,
		ProcessedAt: doc.ProcessedAt,
	}
}

var _ repositories.FulfillmentStore = (*FulfillmentStore)(nil)
var _ repositories.FulfillmentTx = (*fulfillmentTx)(nil)
