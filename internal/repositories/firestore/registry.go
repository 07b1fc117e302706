package firestore

import (
	"context"
	"errors"
	"time"

	"google.golang.org/api/iterator"

	pfirestore "github.com/uplay-sg/api/internal/platform/firestore"
	"github.com/uplay-sg/api/internal/repositories"
)

// Registry bundles the Firestore backed repositories behind the
// repositories.Registry interface so callers wire one dependency instead of
// eight.
type Registry struct {
	provider *pfirestore.Provider

	users       *UserRepository
	carts       *CartRepository
	vouchers    *VoucherRepository
	perks       *PerkRepository
	tiers       *TierRepository
	orders      *OrderRepository
	fulfillment *FulfillmentStore
	health      repositories.HealthRepository
}

var _ repositories.Registry = (*Registry)(nil)

// RegistryOption customises registry construction.
type RegistryOption func(*Registry)

// WithHealthRepository overrides the default Firestore-probe health repository.
func WithHealthRepository(health repositories.HealthRepository) RegistryOption {
	return func(r *Registry) {
		r.health = health
	}
}

// NewRegistry constructs every Firestore repository against the shared provider.
func NewRegistry(provider *pfirestore.Provider, opts ...RegistryOption) (*Registry, error) {
	if provider == nil {
		return nil, errors.New("firestore registry: provider is required")
	}

	registry := &Registry{provider: provider}
	for _, opt := range opts {
		if opt != nil {
			opt(registry)
		}
	}

	var err error
	if registry.users, err = NewUserRepository(provider); err != nil {
		return nil, err
	}
	if registry.carts, err = NewCartRepository(provider); err != nil {
		return nil, err
	}
	if registry.vouchers, err = NewVoucherRepository(provider); err != nil {
		return nil, err
	}
	if registry.perks, err = NewPerkRepository(provider); err != nil {
		return nil, err
	}
	if registry.tiers, err = NewTierRepository(provider); err != nil {
		return nil, err
	}
	if registry.orders, err = NewOrderRepository(provider); err != nil {
		return nil, err
	}
	if registry.fulfillment, err = NewFulfillmentStore(provider); err != nil {
		return nil, err
	}

	if registry.health == nil {
		health, err := repositories.NewDependencyHealthRepository([]repositories.DependencyCheck{
			{
				Name:    "firestore",
				Timeout: 5 * time.Second,
				Check:   registry.probeFirestore,
			},
		})
		if err != nil {
			return nil, err
		}
		registry.health = health
	}

	return registry, nil
}

// probeFirestore lists one collection to confirm the backend responds.
func (r *Registry) probeFirestore(ctx context.Context) error {
	client, err := r.provider.Client(ctx)
	if err != nil {
		return err
	}
	_, err = client.Collections(ctx).Next()
	if errors.Is(err, iterator.Done) {
		return nil
	}
	return err
}

// Close releases the underlying Firestore client.
func (r *Registry) Close(ctx context.Context) error {
	return r.provider.Close(ctx)
}

func (r *Registry) Users() repositories.UserRepository         { return r.users }
func (r *Registry) Carts() repositories.CartRepository         { return r.carts }
func (r *Registry) Vouchers() repositories.VoucherRepository   { return r.vouchers }
func (r *Registry) Perks() repositories.PerkRepository         { return r.perks }
func (r *Registry) Tiers() repositories.TierRepository         { return r.tiers }
func (r *Registry) Orders() repositories.OrderRepository       { return r.orders }
func (r *Registry) Fulfillment() repositories.FulfillmentStore { return r.fulfillment }
func (r *Registry) Health() repositories.HealthRepository      { return r.health }
