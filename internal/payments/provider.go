package payments

import (
	"context"
	"errors"
	"time"
)

// EventKind classifies verified gateway events for the processor.
type EventKind string

const (
	// EventCheckoutCompleted marks a checkout session the customer paid for.
	EventCheckoutCompleted EventKind = "checkout_completed"
	// EventIgnored marks event types the platform acknowledges without acting on.
	EventIgnored EventKind = "ignored"
)

// ErrInvalidEvent is returned when a webhook delivery fails signature verification
// or carries an undecodable body. Verification fails closed.
var ErrInvalidEvent = errors.New("payments: invalid event")

// CheckoutSessionRequest captures the payload required to create a hosted checkout session.
type CheckoutSessionRequest struct {
	Amount             int64
	Currency           string
	SuccessURL         string
	CancelURL          string
	LineItemName       string
	PaymentMethodTypes []string
	Metadata           map[string]string
	IdempotencyKey     string
}

// CheckoutSession represents the gateway session handle returned to the client.
type CheckoutSession struct {
	ID        string
	URL       string
	ExpiresAt time.Time
}

// Event is a verified, classified gateway notification. Metadata carries the
// session metadata exactly as it was attached at session creation.
type Event struct {
	ID        string
	Type      string
	Kind      EventKind
	SessionID string
	Metadata  map[string]string
}

// Provider defines the contract payment gateway adapters implement.
type Provider interface {
	CreateCheckoutSession(ctx context.Context, req CheckoutSessionRequest) (CheckoutSession, error)
	VerifyEvent(payload []byte, signatureHeader string) (Event, error)
}
