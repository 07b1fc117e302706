package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	domain "github.com/uplay-sg/api/internal/domain"
	"github.com/uplay-sg/api/internal/platform/auth"
	"github.com/uplay-sg/api/internal/platform/httpx"
	"github.com/uplay-sg/api/internal/repositories"
)

// MeHandlers serves the authenticated user's own resources. Every endpoint
// resolves the subject from the verified token, never from the URL, so users
// cannot read each other's carts or orders.
type MeHandlers struct {
	authn  *auth.Authenticator
	users  repositories.UserRepository
	carts  repositories.CartRepository
	orders repositories.OrderRepository
	tiers  repositories.TierRepository
}

// NewMeHandlers constructs handlers for the /me resource group.
func NewMeHandlers(authn *auth.Authenticator, users repositories.UserRepository, carts repositories.CartRepository, orders repositories.OrderRepository, tiers repositories.TierRepository) *MeHandlers {
	return &MeHandlers{
		authn:  authn,
		users:  users,
		carts:  carts,
		orders: orders,
		tiers:  tiers,
	}
}

// Routes registers the user scoped endpoints under the provided router.
func (h *MeHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	group := r
	if h.authn != nil {
		group = group.With(h.authn.RequireFirebaseAuth())
	}
	group.Get("/", h.getProfile)
	group.Get("/cart", h.listCart)
	group.Get("/orders", h.listOrders)
}

type profileResponse struct {
	ID            string `json:"id"`
	DisplayName   string `json:"displayName"`
	Email         string `json:"email"`
	TotalSpent    int64  `json:"totalSpent"`
	TotalBookings int    `json:"totalBookings"`
	TierID        string `json:"tierId"`
	TierName      string `json:"tierName,omitempty"`
	CreatedAt     string `json:"createdAt,omitempty"`
	UpdatedAt     string `json:"updatedAt,omitempty"`
}

type cartItemResponse struct {
	ID           string `json:"id"`
	ActivityName string `json:"name"`
	UnitPrice    int64  `json:"price"`
	Quantity     int    `json:"quantity"`
	Subtotal     int64  `json:"subtotal"`
	CreatedAt    string `json:"createdAt,omitempty"`
}

type cartResponse struct {
	Items []cartItemResponse `json:"items"`
	Total int64              `json:"total"`
}

type orderResponse struct {
	ID           string `json:"id"`
	ActivityName string `json:"name"`
	Quantity     int    `json:"quantity"`
	TotalPrice   int64  `json:"totalPrice"`
	CreatedAt    string `json:"createdAt,omitempty"`
}

type ordersResponse struct {
	Orders []orderResponse `json:"orders"`
}

func (h *MeHandlers) getProfile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := h.requireIdentity(w, r)
	if !ok {
		return
	}
	if h.users == nil {
		httpx.WriteError(ctx, w, httpx.NewError("profile_unavailable", "profile service unavailable", http.StatusServiceUnavailable))
		return
	}

	user, err := h.users.FindByID(ctx, identity.UID)
	if err != nil {
		var repoErr repositories.RepositoryError
		if errors.As(err, &repoErr) && repoErr.IsNotFound() {
			httpx.WriteError(ctx, w, httpx.NewError("profile_not_found", "profile not found", http.StatusNotFound))
			return
		}
		httpx.WriteError(ctx, w, httpx.NewError("profile_unavailable", "failed to load profile", http.StatusServiceUnavailable))
		return
	}

	resp := profileResponse{
		ID:            user.ID,
		DisplayName:   user.DisplayName,
		Email:         user.Email,
		TotalSpent:    user.TotalSpent,
		TotalBookings: user.TotalBookings,
		TierID:        user.TierID,
		CreatedAt:     formatTime(user.CreatedAt),
		UpdatedAt:     formatTime(user.UpdatedAt),
	}
	resp.TierName = h.tierName(r, user.TierID)

	writeJSONResponse(w, http.StatusOK, resp)
}

// tierName resolves the user's tier label on a best effort basis. A missing
// or unreadable ladder must not break the profile endpoint.
func (h *MeHandlers) tierName(r *http.Request, tierID string) string {
	if h.tiers == nil || strings.TrimSpace(tierID) == "" {
		return ""
	}
	tiers, err := h.tiers.List(r.Context())
	if err != nil {
		return ""
	}
	for _, tier := range tiers {
		if tier.ID == tierID {
			return tier.Name
		}
	}
	return ""
}

func (h *MeHandlers) listCart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := h.requireIdentity(w, r)
	if !ok {
		return
	}
	if h.carts == nil {
		httpx.WriteError(ctx, w, httpx.NewError("cart_unavailable", "cart service unavailable", http.StatusServiceUnavailable))
		return
	}

	items, err := h.carts.ListByUser(ctx, identity.UID)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("cart_unavailable", "failed to load cart", http.StatusServiceUnavailable))
		return
	}

	resp := cartResponse{Items: make([]cartItemResponse, 0, len(items))}
	for _, item := range items {
		resp.Items = append(resp.Items, cartItemResponse{
			ID:           item.ID,
			ActivityName: item.ActivityName,
			UnitPrice:    item.UnitPrice,
			Quantity:     item.Quantity,
			Subtotal:     item.Subtotal(),
			CreatedAt:    formatTime(item.CreatedAt),
		})
		resp.Total += item.Subtotal()
	}

	writeJSONResponse(w, http.StatusOK, resp)
}

func (h *MeHandlers) listOrders(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := h.requireIdentity(w, r)
	if !ok {
		return
	}
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("orders_unavailable", "order service unavailable", http.StatusServiceUnavailable))
		return
	}

	orders, err := h.orders.ListByUser(ctx, identity.UID)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("orders_unavailable", "failed to load orders", http.StatusServiceUnavailable))
		return
	}

	resp := ordersResponse{Orders: make([]orderResponse, 0, len(orders))}
	for _, order := range orders {
		resp.Orders = append(resp.Orders, orderToResponse(order))
	}

	writeJSONResponse(w, http.StatusOK, resp)
}

func orderToResponse(order domain.Order) orderResponse {
	return orderResponse{
		ID:           order.ID,
		ActivityName: order.ActivityName,
		Quantity:     order.Quantity,
		TotalPrice:   order.TotalPrice,
		CreatedAt:    formatTime(order.CreatedAt),
	}
}

func (h *MeHandlers) requireIdentity(w http.ResponseWriter, r *http.Request) (*auth.Identity, bool) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok || identity == nil || strings.TrimSpace(identity.UID) == "" {
		httpx.WriteError(r.Context(), w, httpx.NewError("unauthenticated", "authentication required", http.StatusUnauthorized))
		return nil, false
	}
	return identity, true
}
