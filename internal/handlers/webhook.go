package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	domain "github.com/uplay-sg/api/internal/domain"
	"github.com/uplay-sg/api/internal/payments"
	"github.com/uplay-sg/api/internal/platform/httpx"
	"github.com/uplay-sg/api/internal/services"
)

// Stripe caps event payloads well below this; anything larger is not a
// legitimate delivery.
const maxWebhookBody = 256 * 1024

// paymentEventProcessor abstracts the event processor for testing.
type paymentEventProcessor interface {
	Process(ctx context.Context, payload []byte, signatureHeader string) (services.ProcessResult, error)
}

// WebhookHandlers receives payment gateway event deliveries. Unlike the rest
// of the API these endpoints authenticate with payload signatures rather than
// Firebase tokens, so they sit outside the authenticated middleware stack.
type WebhookHandlers struct {
	processor paymentEventProcessor
}

// NewWebhookHandlers constructs webhook handlers around the event processor.
func NewWebhookHandlers(processor paymentEventProcessor) *WebhookHandlers {
	return &WebhookHandlers{processor: processor}
}

// Routes registers the gateway callback under the provided router. It is
// composed into the checkout group so the delivery path is
// /checkout/webhook.
func (h *WebhookHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/webhook", h.handleStripe)
}

type webhookResponse struct {
	Outcome   string   `json:"outcome"`
	EventID   string   `json:"eventId,omitempty"`
	SessionID string   `json:"sessionId,omitempty"`
	OrderIDs  []string `json:"orderIds,omitempty"`
	Duplicate bool     `json:"duplicate,omitempty"`
}

func (h *WebhookHandlers) handleStripe(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.processor == nil {
		httpx.WriteError(ctx, w, httpx.NewError("webhook_unavailable", "webhook processing unavailable", http.StatusServiceUnavailable))
		return
	}

	payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody+1))
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "failed to read request body", http.StatusBadRequest))
		return
	}
	if int64(len(payload)) > maxWebhookBody {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "request body too large", http.StatusRequestEntityTooLarge))
		return
	}

	result, err := h.processor.Process(ctx, payload, r.Header.Get("Stripe-Signature"))
	if err != nil {
		h.writeWebhookError(w, r, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, webhookResponse{
		Outcome:   string(result.Outcome),
		EventID:   result.EventID,
		SessionID: result.SessionID,
		OrderIDs:  result.OrderIDs,
		Duplicate: result.Duplicate,
	})
}

// writeWebhookError picks the status code that steers Stripe's retry
// behavior. A 4xx tells Stripe the delivery itself is bad and must not be
// retried; a 5xx requests redelivery of a valid event we failed to fulfill.
func (h *WebhookHandlers) writeWebhookError(w http.ResponseWriter, r *http.Request, err error) {
	ctx := r.Context()
	switch {
	case errors.Is(err, payments.ErrInvalidEvent):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_signature", "event signature verification failed", http.StatusBadRequest))
	case errors.Is(err, domain.ErrMalformedPayload):
		httpx.WriteError(ctx, w, httpx.NewError("malformed_payload", "event metadata could not be decoded", http.StatusBadRequest))
	case errors.Is(err, services.ErrFulfillmentRetryable):
		httpx.WriteError(ctx, w, httpx.NewError("fulfillment_failed", "event accepted but fulfillment failed, retry expected", http.StatusInternalServerError))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("webhook_error", "failed to process event", http.StatusInternalServerError))
	}
}
