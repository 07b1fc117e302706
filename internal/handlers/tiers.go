package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	domain "github.com/uplay-sg/api/internal/domain"
	"github.com/uplay-sg/api/internal/platform/auth"
	"github.com/uplay-sg/api/internal/platform/httpx"
	"github.com/uplay-sg/api/internal/services"
)

const maxTierRequestBody = 8 * 1024

// tierManager abstracts the tier service for testing.
type tierManager interface {
	List(ctx context.Context) ([]domain.Tier, error)
	Create(ctx context.Context, cmd services.CreateTierCommand) (domain.Tier, error)
}

// TierHandlers serves the loyalty ladder. Reading the ladder is public;
// appending a tier is restricted to admin tokens.
type TierHandlers struct {
	authn *auth.Authenticator
	tiers tierManager
}

// NewTierHandlers constructs handlers for the tier resource group.
func NewTierHandlers(authn *auth.Authenticator, tiers tierManager) *TierHandlers {
	return &TierHandlers{authn: authn, tiers: tiers}
}

// Routes registers tier endpoints under the provided router.
func (h *TierHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/", h.listTiers)

	admin := r
	if h.authn != nil {
		admin = admin.With(h.authn.RequireFirebaseAuth(auth.RoleAdmin))
	}
	admin.Post("/", h.createTier)
}

type tierResponse struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Position      int    `json:"position"`
	TierBookings  int    `json:"tierBookings"`
	TierSpendings int64  `json:"tierSpendings"`
	CreatedAt     string `json:"createdAt,omitempty"`
}

type tiersResponse struct {
	Tiers []tierResponse `json:"tiers"`
}

type createTierRequest struct {
	Name          string `json:"name"`
	TierBookings  int    `json:"tierBookings"`
	TierSpendings int64  `json:"tierSpendings"`
}

func (h *TierHandlers) listTiers(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.tiers == nil {
		httpx.WriteError(ctx, w, httpx.NewError("tiers_unavailable", "tier service unavailable", http.StatusServiceUnavailable))
		return
	}

	tiers, err := h.tiers.List(ctx)
	if err != nil {
		h.writeTierError(ctx, w, err)
		return
	}

	resp := tiersResponse{Tiers: make([]tierResponse, 0, len(tiers))}
	for _, tier := range tiers {
		resp.Tiers = append(resp.Tiers, tierToResponse(tier))
	}

	writeJSONResponse(w, http.StatusOK, resp)
}

func (h *TierHandlers) createTier(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.tiers == nil {
		httpx.WriteError(ctx, w, httpx.NewError("tiers_unavailable", "tier service unavailable", http.StatusServiceUnavailable))
		return
	}

	body, err := readLimitedBody(r, maxTierRequestBody)
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, errBodyTooLarge) {
			status = http.StatusRequestEntityTooLarge
		}
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), status))
		return
	}

	var req createTierRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "request body must be valid JSON", http.StatusBadRequest))
		return
	}

	tier, err := h.tiers.Create(ctx, services.CreateTierCommand{
		Name:          req.Name,
		TierBookings:  req.TierBookings,
		TierSpendings: req.TierSpendings,
	})
	if err != nil {
		h.writeTierError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusCreated, tierToResponse(tier))
}

func tierToResponse(tier domain.Tier) tierResponse {
	return tierResponse{
		ID:            tier.ID,
		Name:          tier.Name,
		Position:      tier.Position,
		TierBookings:  tier.TierBookings,
		TierSpendings: tier.TierSpendings,
		CreatedAt:     formatTime(tier.CreatedAt),
	}
}

func (h *TierHandlers) writeTierError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrTierInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_tier", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrTierUnavailable):
		httpx.WriteError(ctx, w, httpx.NewError("tiers_unavailable", "tier service unavailable", http.StatusServiceUnavailable))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("tier_error", "failed to process tier request", http.StatusInternalServerError))
	}
}
