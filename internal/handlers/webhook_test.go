package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	domain "github.com/uplay-sg/api/internal/domain"
	"github.com/uplay-sg/api/internal/payments"
	"github.com/uplay-sg/api/internal/services"
)

type stubEventProcessor struct {
	result    services.ProcessResult
	err       error
	payloads  [][]byte
	signature string
}

func (s *stubEventProcessor) Process(ctx context.Context, payload []byte, signatureHeader string) (services.ProcessResult, error) {
	s.payloads = append(s.payloads, payload)
	s.signature = signatureHeader
	return s.result, s.err
}

func newWebhookRouter(h *WebhookHandlers) chi.Router {
	router := chi.NewRouter()
	router.Route("/checkout", h.Routes)
	return router
}

func postStripeEvent(router chi.Router, body []byte, signature string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/checkout/webhook", bytes.NewReader(body))
	if signature != "" {
		req.Header.Set("Stripe-Signature", signature)
	}
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func TestWebhookHandlersStripeFulfilled(t *testing.T) {
	processor := &stubEventProcessor{
		result: services.ProcessResult{
			Outcome:   services.OutcomeFulfilled,
			EventID:   "evt_1",
			SessionID: "cs_1",
			OrderIDs:  []string{"order-1", "order-2"},
		},
	}

	router := newWebhookRouter(NewWebhookHandlers(processor))

	rr := postStripeEvent(router, []byte(`{"id":"evt_1"}`), "t=1,v1=abc")

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if processor.signature != "t=1,v1=abc" {
		t.Fatalf("expected signature header forwarded, got %q", processor.signature)
	}
	if len(processor.payloads) != 1 || string(processor.payloads[0]) != `{"id":"evt_1"}` {
		t.Fatalf("expected raw payload forwarded, got %v", processor.payloads)
	}

	var resp webhookResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if resp.Outcome != string(services.OutcomeFulfilled) {
		t.Fatalf("expected fulfilled outcome, got %q", resp.Outcome)
	}
	if len(resp.OrderIDs) != 2 {
		t.Fatalf("expected 2 order ids, got %v", resp.OrderIDs)
	}
}

func TestWebhookHandlersStripeDuplicate(t *testing.T) {
	processor := &stubEventProcessor{
		result: services.ProcessResult{
			Outcome:   services.OutcomeAcknowledgedNoop,
			EventID:   "evt_1",
			Duplicate: true,
		},
	}

	router := newWebhookRouter(NewWebhookHandlers(processor))

	rr := postStripeEvent(router, []byte(`{"id":"evt_1"}`), "sig")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200 for duplicate, got %d", rr.Code)
	}

	var resp webhookResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if !resp.Duplicate || resp.Outcome != string(services.OutcomeAcknowledgedNoop) {
		t.Fatalf("unexpected response %+v", resp)
	}
}

func TestWebhookHandlersStripeErrors(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
	}{
		{"invalid signature", fmt.Errorf("%w: bad signature", payments.ErrInvalidEvent), http.StatusBadRequest},
		{"malformed payload", fmt.Errorf("%w: missing userId", domain.ErrMalformedPayload), http.StatusBadRequest},
		{"fulfillment failed", fmt.Errorf("%w: transaction aborted", services.ErrFulfillmentRetryable), http.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			processor := &stubEventProcessor{
				result: services.ProcessResult{Outcome: services.OutcomeRejected},
				err:    tc.err,
			}
			router := newWebhookRouter(NewWebhookHandlers(processor))

			rr := postStripeEvent(router, []byte(`{}`), "sig")
			if rr.Code != tc.status {
				t.Fatalf("expected status %d, got %d: %s", tc.status, rr.Code, rr.Body.String())
			}
		})
	}
}

func TestWebhookHandlersStripeOversizedBody(t *testing.T) {
	processor := &stubEventProcessor{}
	router := newWebhookRouter(NewWebhookHandlers(processor))

	rr := postStripeEvent(router, bytes.Repeat([]byte("a"), maxWebhookBody+1), "sig")
	if rr.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected status 413, got %d", rr.Code)
	}
	if len(processor.payloads) != 0 {
		t.Fatalf("processor should not be called for oversized body")
	}
}
