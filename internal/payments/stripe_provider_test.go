package payments

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"testing"
	"time"

	"github.com/stripe/stripe-go/v78"
)

type stubSessionAPI struct {
	params  *stripe.CheckoutSessionParams
	session *stripe.CheckoutSession
	err     error
}

func (s *stubSessionAPI) New(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
	s.params = params
	if s.err != nil {
		return nil, s.err
	}
	return s.session, nil
}

func newTestProvider(t *testing.T, sessions stripeSessionAPI) *StripeProvider {
	t.Helper()
	provider, err := NewStripeProvider(StripeProviderConfig{
		WebhookSecret: "whsec_test",
		Sessions:      sessions,
		Clock:         func() time.Time { return time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC) },
	})
	if err != nil {
		t.Fatalf("NewStripeProvider returned error: %v", err)
	}
	return provider
}

func TestCreateCheckoutSessionBuildsSingleLineItem(t *testing.T) {
	stub := &stubSessionAPI{
		session: &stripe.CheckoutSession{
			ID:        "cs_test_123",
			URL:       "https://checkout.stripe.com/pay/cs_test_123",
			ExpiresAt: time.Date(2025, 3, 1, 13, 0, 0, 0, time.UTC).Unix(),
		},
	}
	provider := newTestProvider(t, stub)

	session, err := provider.CreateCheckoutSession(context.Background(), CheckoutSessionRequest{
		Amount:             9000,
		Currency:           "SGD",
		SuccessURL:         "https://app.example.com/success",
		CancelURL:          "https://app.example.com/cart",
		PaymentMethodTypes: []string{"card", "grabpay", "paynow"},
		Metadata:           map[string]string{"userId": "user-1"},
		IdempotencyKey:     "idem-1",
	})
	if err != nil {
		t.Fatalf("CreateCheckoutSession returned error: %v", err)
	}

	if session.ID != "cs_test_123" {
		t.Errorf("unexpected session id %s", session.ID)
	}
	if session.URL != "https://checkout.stripe.com/pay/cs_test_123" {
		t.Errorf("unexpected session url %s", session.URL)
	}

	params := stub.params
	if params == nil {
		t.Fatal("expected session params to be captured")
	}
	if got := stripe.StringValue(params.Mode); got != string(stripe.CheckoutSessionModePayment) {
		t.Errorf("expected payment mode, got %s", got)
	}
	if len(params.LineItems) != 1 {
		t.Fatalf("expected a single aggregated line item, got %d", len(params.LineItems))
	}
	line := params.LineItems[0]
	if got := stripe.StringValue(line.PriceData.ProductData.Name); got != "Total Amount Payable" {
		t.Errorf("unexpected line item name %s", got)
	}
	if got := stripe.Int64Value(line.PriceData.UnitAmount); got != 9000 {
		t.Errorf("unexpected unit amount %d", got)
	}
	if got := stripe.StringValue(line.PriceData.Currency); got != "sgd" {
		t.Errorf("expected lowercased currency, got %s", got)
	}
	if len(params.PaymentMethodTypes) != 3 {
		t.Fatalf("expected three payment method types, got %d", len(params.PaymentMethodTypes))
	}
	if got := stripe.StringValue(params.PaymentMethodTypes[2]); got != "paynow" {
		t.Errorf("unexpected payment method %s", got)
	}
	if params.Metadata["userId"] != "user-1" {
		t.Errorf("expected metadata to be forwarded, got %v", params.Metadata)
	}
	if params.IdempotencyKey == nil || *params.IdempotencyKey != "idem-1" {
		t.Errorf("expected idempotency key to be set")
	}
}

func TestCreateCheckoutSessionRejectsNonPositiveAmount(t *testing.T) {
	provider := newTestProvider(t, &stubSessionAPI{})
	if _, err := provider.CreateCheckoutSession(context.Background(), CheckoutSessionRequest{Amount: 0}); err == nil {
		t.Fatal("expected error for zero amount")
	}
}

func TestCreateCheckoutSessionWrapsGatewayError(t *testing.T) {
	stub := &stubSessionAPI{err: errors.New("stripe down")}
	provider := newTestProvider(t, stub)
	if _, err := provider.CreateCheckoutSession(context.Background(), CheckoutSessionRequest{
		Amount: 100, Currency: "SGD", SuccessURL: "https://x", CancelURL: "https://y",
	}); err == nil {
		t.Fatal("expected error from session API")
	}
}

// signPayload produces a Stripe v1 signature header for the payload.
func signPayload(payload []byte, secret string, at time.Time) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(strconv.FormatInt(at.Unix(), 10)))
	mac.Write([]byte("."))
	mac.Write(payload)
	return fmt.Sprintf("t=%d,v1=%s", at.Unix(), hex.EncodeToString(mac.Sum(nil)))
}

func TestVerifyEventClassifiesCheckoutCompleted(t *testing.T) {
	provider := newTestProvider(t, &stubSessionAPI{})

	payload := []byte(`{
		"id": "evt_1",
		"type": "checkout.session.completed",
		"data": {"object": {"id": "cs_1", "metadata": {"userId": "user-1", "amountPayable": "9000"}}}
	}`)
	header := signPayload(payload, "whsec_test", time.Now())

	event, err := provider.VerifyEvent(payload, header)
	if err != nil {
		t.Fatalf("VerifyEvent returned error: %v", err)
	}
	if event.Kind != EventCheckoutCompleted {
		t.Errorf("expected checkout completed kind, got %s", event.Kind)
	}
	if event.ID != "evt_1" || event.SessionID != "cs_1" {
		t.Errorf("unexpected identifiers %s/%s", event.ID, event.SessionID)
	}
	if event.Metadata["userId"] != "user-1" {
		t.Errorf("expected session metadata to be surfaced, got %v", event.Metadata)
	}
}

func TestVerifyEventIgnoresOtherTypes(t *testing.T) {
	provider := newTestProvider(t, &stubSessionAPI{})

	payload := []byte(`{"id": "evt_2", "type": "payment_intent.created", "data": {"object": {}}}`)
	header := signPayload(payload, "whsec_test", time.Now())

	event, err := provider.VerifyEvent(payload, header)
	if err != nil {
		t.Fatalf("VerifyEvent returned error: %v", err)
	}
	if event.Kind != EventIgnored {
		t.Errorf("expected ignored kind, got %s", event.Kind)
	}
}

func TestVerifyEventFailsClosedOnBadSignature(t *testing.T) {
	provider := newTestProvider(t, &stubSessionAPI{})

	payload := []byte(`{"id": "evt_3", "type": "checkout.session.completed", "data": {"object": {}}}`)
	header := signPayload(payload, "whsec_wrong", time.Now())

	if _, err := provider.VerifyEvent(payload, header); !errors.Is(err, ErrInvalidEvent) {
		t.Fatalf("expected ErrInvalidEvent, got %v", err)
	}
}
