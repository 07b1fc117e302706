package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	domain "github.com/uplay-sg/api/internal/domain"
	"github.com/uplay-sg/api/internal/services"
)

type stubTierService struct {
	listFunc   func(ctx context.Context) ([]domain.Tier, error)
	createFunc func(ctx context.Context, cmd services.CreateTierCommand) (domain.Tier, error)
}

func (s *stubTierService) List(ctx context.Context) ([]domain.Tier, error) {
	return s.listFunc(ctx)
}

func (s *stubTierService) Create(ctx context.Context, cmd services.CreateTierCommand) (domain.Tier, error) {
	return s.createFunc(ctx, cmd)
}

func newTierRouter(h *TierHandlers) chi.Router {
	router := chi.NewRouter()
	router.Route("/tiers", h.Routes)
	return router
}

func TestTierHandlersList(t *testing.T) {
	service := &stubTierService{
		listFunc: func(ctx context.Context) ([]domain.Tier, error) {
			return []domain.Tier{
				{ID: "tier-bronze", Name: "Bronze", Position: 1, TierBookings: 2, TierSpendings: 5000},
				{ID: "tier-silver", Name: "Silver", Position: 2, TierBookings: 5, TierSpendings: 20000},
			}, nil
		},
	}

	router := newTierRouter(NewTierHandlers(nil, service))

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/tiers", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var resp tiersResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if len(resp.Tiers) != 2 {
		t.Fatalf("expected 2 tiers, got %d", len(resp.Tiers))
	}
	if resp.Tiers[1].Name != "Silver" || resp.Tiers[1].TierSpendings != 20000 {
		t.Fatalf("unexpected tier %+v", resp.Tiers[1])
	}
}

func TestTierHandlersListUnavailable(t *testing.T) {
	service := &stubTierService{
		listFunc: func(ctx context.Context) ([]domain.Tier, error) {
			return nil, services.ErrTierUnavailable
		},
	}

	router := newTierRouter(NewTierHandlers(nil, service))

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/tiers", nil))

	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected status 503, got %d", rr.Code)
	}
}

func TestTierHandlersCreate(t *testing.T) {
	service := &stubTierService{
		createFunc: func(ctx context.Context, cmd services.CreateTierCommand) (domain.Tier, error) {
			if cmd.Name != "Gold" || cmd.TierBookings != 10 || cmd.TierSpendings != 50000 {
				t.Fatalf("unexpected command %+v", cmd)
			}
			return domain.Tier{
				ID:            "tier-gold",
				Name:          cmd.Name,
				Position:      3,
				TierBookings:  cmd.TierBookings,
				TierSpendings: cmd.TierSpendings,
			}, nil
		},
	}

	router := newTierRouter(NewTierHandlers(nil, service))

	body := `{"name":"Gold","tierBookings":10,"tierSpendings":50000}`
	req := httptest.NewRequest(http.MethodPost, "/tiers", strings.NewReader(body))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", rr.Code, rr.Body.String())
	}

	var resp tierResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if resp.ID != "tier-gold" || resp.Position != 3 {
		t.Fatalf("unexpected response %+v", resp)
	}
}

func TestTierHandlersCreateInvalidInput(t *testing.T) {
	service := &stubTierService{
		createFunc: func(ctx context.Context, cmd services.CreateTierCommand) (domain.Tier, error) {
			return domain.Tier{}, services.ErrTierInvalidInput
		},
	}

	router := newTierRouter(NewTierHandlers(nil, service))

	body := `{"name":"Free","tierBookings":0,"tierSpendings":0}`
	req := httptest.NewRequest(http.MethodPost, "/tiers", strings.NewReader(body))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
}

func TestTierHandlersCreateMalformedBody(t *testing.T) {
	called := false
	service := &stubTierService{
		createFunc: func(ctx context.Context, cmd services.CreateTierCommand) (domain.Tier, error) {
			called = true
			return domain.Tier{}, nil
		},
	}

	router := newTierRouter(NewTierHandlers(nil, service))

	req := httptest.NewRequest(http.MethodPost, "/tiers", strings.NewReader("{oops"))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
	if called {
		t.Fatal("service should not be called for malformed body")
	}
}
