package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	domain "github.com/uplay-sg/api/internal/domain"
	"github.com/uplay-sg/api/internal/platform/auth"
	"github.com/uplay-sg/api/internal/platform/httpx"
	"github.com/uplay-sg/api/internal/repositories"
	"github.com/uplay-sg/api/internal/services"
)

const maxCheckoutRequestBody = 8 * 1024

// checkoutInitiator abstracts the checkout service for testing.
type checkoutInitiator interface {
	CreateSession(ctx context.Context, cmd services.CreateCheckoutSessionCommand) (services.CheckoutSession, error)
}

// CheckoutHandlers exposes checkout endpoints for authenticated users. The
// request may carry a cart snapshot; when it does not, the persisted cart
// is used. Pricing and voucher eligibility are recomputed server side
// either way.
type CheckoutHandlers struct {
	authn    *auth.Authenticator
	checkout checkoutInitiator
	carts    repositories.CartRepository
	limiter  rateLimiter
}

// NewCheckoutHandlers constructs checkout handlers guarded by Firebase
// authentication. sessionsPerMinute caps session creations per user; zero
// disables the throttle.
func NewCheckoutHandlers(authn *auth.Authenticator, checkout checkoutInitiator, carts repositories.CartRepository, sessionsPerMinute int) *CheckoutHandlers {
	return &CheckoutHandlers{
		authn:    authn,
		checkout: checkout,
		carts:    carts,
		limiter:  newSimpleRateLimiter(sessionsPerMinute, time.Minute, nil),
	}
}

// Routes registers checkout endpoints under the provided router.
func (h *CheckoutHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	group := r
	if h.authn != nil {
		group = group.With(h.authn.RequireFirebaseAuth())
	}
	group.Post("/create-session", h.createSession)
}

type checkoutSessionRequest struct {
	CartItems      []checkoutItemEntry `json:"cartItems,omitempty"`
	VoucherID      *string             `json:"voucherId,omitempty"`
	IdempotencyKey string              `json:"idempotencyKey,omitempty"`
}

type checkoutSessionResponse struct {
	SessionID      string              `json:"sessionId"`
	URL            string              `json:"url"`
	AmountPayable  int64               `json:"amountPayable"`
	AppliedVoucher *string             `json:"appliedVoucher,omitempty"`
	CartItems      []checkoutItemEntry `json:"cartItems"`
	ExpiresAt      string              `json:"expiresAt,omitempty"`
}

type checkoutItemEntry struct {
	ID           string `json:"id"`
	ActivityName string `json:"name"`
	UnitPrice    int64  `json:"price"`
	Quantity     int    `json:"quantity"`
}

func (h *CheckoutHandlers) createSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.checkout == nil || h.carts == nil {
		httpx.WriteError(ctx, w, httpx.NewError("checkout_unavailable", "checkout service unavailable", http.StatusServiceUnavailable))
		return
	}

	identity, ok := auth.IdentityFromContext(ctx)
	if !ok || identity == nil || strings.TrimSpace(identity.UID) == "" {
		httpx.WriteError(ctx, w, httpx.NewError("unauthenticated", "authentication required", http.StatusUnauthorized))
		return
	}

	if h.limiter != nil && !h.limiter.Allow(identity.UID) {
		httpx.WriteError(ctx, w, httpx.NewError("rate_limited", "too many checkout attempts, slow down", http.StatusTooManyRequests))
		return
	}

	var req checkoutSessionRequest
	body, err := readLimitedBody(r, maxCheckoutRequestBody)
	if err != nil && !errors.Is(err, errEmptyBody) {
		status := http.StatusBadRequest
		if errors.Is(err, errBodyTooLarge) {
			status = http.StatusRequestEntityTooLarge
		}
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), status))
		return
	}
	if len(body) > 0 {
		if err := json.Unmarshal(body, &req); err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "request body must be valid JSON", http.StatusBadRequest))
			return
		}
	}

	items := requestCartItems(identity.UID, req.CartItems)
	if len(items) == 0 {
		var err error
		items, err = h.carts.ListByUser(ctx, identity.UID)
		if err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("checkout_unavailable", "failed to load cart", http.StatusServiceUnavailable))
			return
		}
	}

	idempotencyKey := strings.TrimSpace(req.IdempotencyKey)
	if idempotencyKey == "" {
		idempotencyKey = strings.TrimSpace(r.Header.Get("Idempotency-Key"))
	}

	session, err := h.checkout.CreateSession(ctx, services.CreateCheckoutSessionCommand{
		UserID:         identity.UID,
		Items:          items,
		VoucherID:      req.VoucherID,
		IdempotencyKey: idempotencyKey,
	})
	if err != nil {
		h.writeCheckoutError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, checkoutSessionResponse{
		SessionID:      session.SessionID,
		URL:            session.URL,
		AmountPayable:  session.AmountPayable,
		AppliedVoucher: session.AppliedVoucher,
		CartItems:      checkoutItems(session.Items),
		ExpiresAt:      formatTime(session.ExpiresAt),
	})
}

func requestCartItems(userID string, entries []checkoutItemEntry) []domain.CartItem {
	items := make([]domain.CartItem, 0, len(entries))
	for _, entry := range entries {
		items = append(items, domain.CartItem{
			ID:           strings.TrimSpace(entry.ID),
			UserID:       userID,
			ActivityName: entry.ActivityName,
			UnitPrice:    entry.UnitPrice,
			Quantity:     entry.Quantity,
		})
	}
	return items
}

func checkoutItems(items []domain.CartItem) []checkoutItemEntry {
	out := make([]checkoutItemEntry, 0, len(items))
	for _, item := range items {
		out = append(out, checkoutItemEntry{
			ID:           item.ID,
			ActivityName: item.ActivityName,
			UnitPrice:    item.UnitPrice,
			Quantity:     item.Quantity,
		})
	}
	return out
}

func (h *CheckoutHandlers) writeCheckoutError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrInvalidCart):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_cart", err.Error(), http.StatusUnprocessableEntity))
	case errors.Is(err, services.ErrVoucherNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("voucher_not_found", "voucher not found", http.StatusNotFound))
	case errors.Is(err, services.ErrVoucherIneligible):
		httpx.WriteError(ctx, w, httpx.NewError("voucher_ineligible", err.Error(), http.StatusUnprocessableEntity))
	case errors.Is(err, services.ErrCheckoutInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrCheckoutPaymentFailed):
		httpx.WriteError(ctx, w, httpx.NewError("payment_failed", "payment session could not be created", http.StatusBadGateway))
	case errors.Is(err, services.ErrVoucherUnavailable), errors.Is(err, services.ErrCheckoutUnavailable):
		httpx.WriteError(ctx, w, httpx.NewError("checkout_unavailable", "checkout service unavailable", http.StatusServiceUnavailable))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("checkout_error", "failed to process checkout request", http.StatusInternalServerError))
	}
}
