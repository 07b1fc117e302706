package repositories

import (
	"context"

	domain "github.com/uplay-sg/api/internal/domain"
)

// Registry exposes typed repository accessors and lifecycle hooks for dependency injection.
type Registry interface {
	Close(ctx context.Context) error

	Users() UserRepository
	Carts() CartRepository
	Vouchers() VoucherRepository
	Perks() PerkRepository
	Tiers() TierRepository
	Orders() OrderRepository
	Fulfillment() FulfillmentStore
	Health() HealthRepository
}

// RepositoryError wraps low-level persistence failures with categorisation used by services.
type RepositoryError interface {
	error
	IsNotFound() bool
	IsConflict() bool
	IsUnavailable() bool
}

// UserRepository stores loyalty accounts keyed by the authenticated user ID.
type UserRepository interface {
	FindByID(ctx context.Context, userID string) (domain.User, error)
	Save(ctx context.Context, user domain.User) (domain.User, error)
}

// CartRepository owns the persisted cart items for a user.
type CartRepository interface {
	ListByUser(ctx context.Context, userID string) ([]domain.CartItem, error)
	FindByID(ctx context.Context, userID string, itemID string) (domain.CartItem, error)
	Delete(ctx context.Context, userID string, itemID string) error
}

// VoucherRepository stores single-use vouchers owned by users.
type VoucherRepository interface {
	FindByID(ctx context.Context, voucherID string) (domain.Voucher, error)
	Delete(ctx context.Context, voucherID string) error
}

// PerkRepository stores the discount definitions vouchers point at.
type PerkRepository interface {
	FindByID(ctx context.Context, perkID string) (domain.Perk, error)
}

// TierRepository maintains the ordered loyalty ladder.
type TierRepository interface {
	// List returns tiers ordered by ascending position.
	List(ctx context.Context) ([]domain.Tier, error)
	Insert(ctx context.Context, tier domain.Tier) (domain.Tier, error)
}

// OrderRepository provides read access to immutable order snapshots. Orders
// are only ever written through the FulfillmentStore transaction.
type OrderRepository interface {
	FindByID(ctx context.Context, orderID string) (domain.Order, error)
	ListByUser(ctx context.Context, userID string) ([]domain.Order, error)
}

// FulfillmentStore runs the fulfillment unit of work. Everything staged via
// the FulfillmentTx commits atomically or not at all.
type FulfillmentStore interface {
	RunFulfillment(ctx context.Context, fn func(ctx context.Context, tx FulfillmentTx) error) error
}

// FulfillmentTx exposes reads and staged writes inside a fulfillment
// transaction. Staged writes are buffered and applied only when the
// transaction function returns nil, which keeps all reads ahead of the first
// write as Firestore requires.
type FulfillmentTx interface {
	GetProcessedEvent(ctx context.Context, eventID string) (domain.ProcessedEvent, bool, error)
	GetUser(ctx context.Context, userID string) (domain.User, error)
	GetCartItem(ctx context.Context, userID string, itemID string) (domain.CartItem, bool, error)
	GetVoucher(ctx context.Context, voucherID string) (domain.Voucher, bool, error)
	ListTiers(ctx context.Context) ([]domain.Tier, error)

	StageOrder(order domain.Order)
	StageCartItemDelete(userID string, itemID string)
	StageUserUpdate(user domain.User)
	StageVoucherDelete(voucherID string)
	StageProcessedEvent(event domain.ProcessedEvent)
}

// HealthRepository exposes status of downstream dependencies for health checks.
type HealthRepository interface {
	Collect(ctx context.Context) (domain.SystemHealthReport, error)
}
