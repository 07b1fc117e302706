package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	domain "github.com/uplay-sg/api/internal/domain"
	"github.com/uplay-sg/api/internal/platform/auth"
	"github.com/uplay-sg/api/internal/services"
)

type stubCheckoutService struct {
	createFunc func(ctx context.Context, cmd services.CreateCheckoutSessionCommand) (services.CheckoutSession, error)
	calls      int
	last       services.CreateCheckoutSessionCommand
}

func (s *stubCheckoutService) CreateSession(ctx context.Context, cmd services.CreateCheckoutSessionCommand) (services.CheckoutSession, error) {
	s.calls++
	s.last = cmd
	return s.createFunc(ctx, cmd)
}

func checkoutCartRepo(items []domain.CartItem) *stubCartRepo {
	return &stubCartRepo{
		listFunc: func(ctx context.Context, userID string) ([]domain.CartItem, error) {
			return items, nil
		},
	}
}

func newCheckoutRouter(h *CheckoutHandlers) chi.Router {
	router := chi.NewRouter()
	router.Route("/checkout", h.Routes)
	return router
}

func postCheckoutSession(t *testing.T, router chi.Router, uid string, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(http.MethodPost, "/checkout/create-session", reader)
	if uid != "" {
		req = req.WithContext(auth.WithIdentity(req.Context(), &auth.Identity{UID: uid}))
	}
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func TestCheckoutHandlersCreateSession(t *testing.T) {
	expires := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	items := []domain.CartItem{
		{ID: "item-1", UserID: "user-1", ActivityName: "Kayak Tour", UnitPrice: 6000, Quantity: 2},
	}

	voucher := "voucher-1"
	service := &stubCheckoutService{
		createFunc: func(ctx context.Context, cmd services.CreateCheckoutSessionCommand) (services.CheckoutSession, error) {
			if cmd.UserID != "user-1" {
				t.Fatalf("unexpected user id %q", cmd.UserID)
			}
			if cmd.VoucherID == nil || *cmd.VoucherID != "voucher-1" {
				t.Fatalf("expected voucher voucher-1, got %v", cmd.VoucherID)
			}
			if len(cmd.Items) != 1 || cmd.Items[0].ID != "item-1" {
				t.Fatalf("expected server side cart items, got %+v", cmd.Items)
			}
			return services.CheckoutSession{
				SessionID:      "cs_123",
				URL:            "https://checkout.stripe.com/pay/cs_123",
				AmountPayable:  9000,
				AppliedVoucher: &voucher,
				Items:          cmd.Items,
				ExpiresAt:      expires,
			}, nil
		},
	}

	handler := NewCheckoutHandlers(nil, service, checkoutCartRepo(items), 0)
	router := newCheckoutRouter(handler)

	rr := postCheckoutSession(t, router, "user-1", `{"voucherId":"voucher-1"}`)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var resp checkoutSessionResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if resp.SessionID != "cs_123" || resp.AmountPayable != 9000 {
		t.Fatalf("unexpected response %+v", resp)
	}
	if resp.AppliedVoucher == nil || *resp.AppliedVoucher != "voucher-1" {
		t.Fatalf("expected applied voucher, got %v", resp.AppliedVoucher)
	}
	if len(resp.CartItems) != 1 || resp.CartItems[0].UnitPrice != 6000 {
		t.Fatalf("unexpected items %+v", resp.CartItems)
	}
	if resp.ExpiresAt == "" {
		t.Fatal("expected expiresAt to be set")
	}
}

func TestCheckoutHandlersCreateSessionBodyCart(t *testing.T) {
	service := &stubCheckoutService{
		createFunc: func(ctx context.Context, cmd services.CreateCheckoutSessionCommand) (services.CheckoutSession, error) {
			return services.CheckoutSession{SessionID: "cs_2", AmountPayable: 5000, Items: cmd.Items}, nil
		},
	}

	// The persisted cart errors so a fallback would surface as a 503.
	carts := &stubCartRepo{
		listFunc: func(ctx context.Context, userID string) ([]domain.CartItem, error) {
			return nil, handlerRepoError{unavailable: true}
		},
	}

	handler := NewCheckoutHandlers(nil, service, carts, 0)
	router := newCheckoutRouter(handler)

	body := `{"cartItems":[{"id":"item-9","name":"Night Cycling","price":2500,"quantity":2}]}`
	rr := postCheckoutSession(t, router, "user-1", body)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if len(service.last.Items) != 1 {
		t.Fatalf("expected 1 item forwarded, got %+v", service.last.Items)
	}
	item := service.last.Items[0]
	if item.ID != "item-9" || item.UserID != "user-1" || item.UnitPrice != 2500 || item.Quantity != 2 {
		t.Fatalf("unexpected forwarded item %+v", item)
	}
}

func TestCheckoutHandlersCreateSessionHeaderIdempotencyKey(t *testing.T) {
	service := &stubCheckoutService{
		createFunc: func(ctx context.Context, cmd services.CreateCheckoutSessionCommand) (services.CheckoutSession, error) {
			return services.CheckoutSession{SessionID: "cs_3"}, nil
		},
	}

	handler := NewCheckoutHandlers(nil, service, checkoutCartRepo([]domain.CartItem{{ID: "item-1", UnitPrice: 1000, Quantity: 1}}), 0)
	router := newCheckoutRouter(handler)

	req := httptest.NewRequest(http.MethodPost, "/checkout/create-session", strings.NewReader("{}"))
	req.Header.Set("Idempotency-Key", "key-from-header")
	req = req.WithContext(auth.WithIdentity(req.Context(), &auth.Identity{UID: "user-1"}))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if service.last.IdempotencyKey != "key-from-header" {
		t.Fatalf("expected header key forwarded, got %q", service.last.IdempotencyKey)
	}
}

func TestCheckoutHandlersCreateSessionEmptyBody(t *testing.T) {
	service := &stubCheckoutService{
		createFunc: func(ctx context.Context, cmd services.CreateCheckoutSessionCommand) (services.CheckoutSession, error) {
			if cmd.VoucherID != nil {
				t.Fatalf("expected no voucher, got %v", cmd.VoucherID)
			}
			return services.CheckoutSession{SessionID: "cs_1", AmountPayable: 12000}, nil
		},
	}

	handler := NewCheckoutHandlers(nil, service, checkoutCartRepo([]domain.CartItem{{ID: "item-1", UnitPrice: 6000, Quantity: 2}}), 0)
	router := newCheckoutRouter(handler)

	rr := postCheckoutSession(t, router, "user-1", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if service.calls != 1 {
		t.Fatalf("expected 1 service call, got %d", service.calls)
	}
}

func TestCheckoutHandlersCreateSessionUnauthenticated(t *testing.T) {
	service := &stubCheckoutService{
		createFunc: func(ctx context.Context, cmd services.CreateCheckoutSessionCommand) (services.CheckoutSession, error) {
			return services.CheckoutSession{}, nil
		},
	}

	handler := NewCheckoutHandlers(nil, service, checkoutCartRepo(nil), 0)
	router := newCheckoutRouter(handler)

	rr := postCheckoutSession(t, router, "", "{}")
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", rr.Code)
	}
	if service.calls != 0 {
		t.Fatalf("service should not be called, got %d calls", service.calls)
	}
}

func TestCheckoutHandlersCreateSessionErrors(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
	}{
		{"empty cart", services.ErrInvalidCart, http.StatusUnprocessableEntity},
		{"voucher missing", services.ErrVoucherNotFound, http.StatusNotFound},
		{"voucher ineligible", services.ErrVoucherIneligible, http.StatusUnprocessableEntity},
		{"bad input", services.ErrCheckoutInvalidInput, http.StatusBadRequest},
		{"gateway down", services.ErrCheckoutPaymentFailed, http.StatusBadGateway},
		{"store down", services.ErrVoucherUnavailable, http.StatusServiceUnavailable},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			service := &stubCheckoutService{
				createFunc: func(ctx context.Context, cmd services.CreateCheckoutSessionCommand) (services.CheckoutSession, error) {
					return services.CheckoutSession{}, tc.err
				},
			}
			handler := NewCheckoutHandlers(nil, service, checkoutCartRepo(nil), 0)
			router := newCheckoutRouter(handler)

			rr := postCheckoutSession(t, router, "user-1", "{}")
			if rr.Code != tc.status {
				t.Fatalf("expected status %d, got %d: %s", tc.status, rr.Code, rr.Body.String())
			}
		})
	}
}

func TestCheckoutHandlersCreateSessionCartLoadFailure(t *testing.T) {
	carts := &stubCartRepo{
		listFunc: func(ctx context.Context, userID string) ([]domain.CartItem, error) {
			return nil, handlerRepoError{unavailable: true}
		},
	}
	service := &stubCheckoutService{
		createFunc: func(ctx context.Context, cmd services.CreateCheckoutSessionCommand) (services.CheckoutSession, error) {
			return services.CheckoutSession{}, nil
		},
	}

	handler := NewCheckoutHandlers(nil, service, carts, 0)
	router := newCheckoutRouter(handler)

	rr := postCheckoutSession(t, router, "user-1", "{}")
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected status 503, got %d", rr.Code)
	}
	if service.calls != 0 {
		t.Fatalf("service should not be called, got %d calls", service.calls)
	}
}

func TestCheckoutHandlersCreateSessionRateLimited(t *testing.T) {
	service := &stubCheckoutService{
		createFunc: func(ctx context.Context, cmd services.CreateCheckoutSessionCommand) (services.CheckoutSession, error) {
			return services.CheckoutSession{SessionID: "cs_1"}, nil
		},
	}

	handler := NewCheckoutHandlers(nil, service, checkoutCartRepo(nil), 1)
	router := newCheckoutRouter(handler)

	first := postCheckoutSession(t, router, "user-1", "{}")
	if first.Code != http.StatusOK {
		t.Fatalf("expected first request to pass, got %d", first.Code)
	}

	second := postCheckoutSession(t, router, "user-1", "{}")
	if second.Code != http.StatusTooManyRequests {
		t.Fatalf("expected status 429, got %d", second.Code)
	}

	// Another user is throttled independently.
	other := postCheckoutSession(t, router, "user-2", "{}")
	if other.Code != http.StatusOK {
		t.Fatalf("expected other user to pass, got %d", other.Code)
	}
}

func TestCheckoutHandlersCreateSessionMalformedBody(t *testing.T) {
	service := &stubCheckoutService{
		createFunc: func(ctx context.Context, cmd services.CreateCheckoutSessionCommand) (services.CheckoutSession, error) {
			return services.CheckoutSession{}, nil
		},
	}

	handler := NewCheckoutHandlers(nil, service, checkoutCartRepo(nil), 0)
	router := newCheckoutRouter(handler)

	rr := postCheckoutSession(t, router, "user-1", "{not json")
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
	if service.calls != 0 {
		t.Fatalf("service should not be called, got %d calls", service.calls)
	}
}
