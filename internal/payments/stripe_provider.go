package payments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/client"
	"github.com/stripe/stripe-go/v78/webhook"

	"github.com/uplay-sg/api/internal/platform/textutil"
)

// StripeLogger defines the logging contract for Stripe provider operations.
type StripeLogger func(ctx context.Context, event string, fields map[string]any)

type stripeSessionAPI interface {
	New(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
}

// StripeProviderConfig configures the StripeProvider.
type StripeProviderConfig struct {
	APIKey        string
	WebhookSecret string
	Backends      *stripe.Backends
	Logger        StripeLogger
	Clock         func() time.Time

	// Sessions overrides the checkout session API, primarily for tests.
	Sessions stripeSessionAPI
}

// StripeProvider implements the Provider interface against Stripe Checkout.
type StripeProvider struct {
	sessions      stripeSessionAPI
	webhookSecret string
	clock         func() time.Time
	logger        StripeLogger
}

var _ Provider = (*StripeProvider)(nil)

// NewStripeProvider constructs a Stripe Provider using the given configuration.
func NewStripeProvider(cfg StripeProviderConfig) (*StripeProvider, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" && cfg.Sessions == nil {
		return nil, errors.New("stripe: api key is required")
	}
	secret := strings.TrimSpace(cfg.WebhookSecret)
	if secret == "" {
		return nil, errors.New("stripe: webhook secret is required")
	}

	sessions := cfg.Sessions
	if sessions == nil {
		sc := client.New(apiKey, cfg.Backends)
		sessions = sc.CheckoutSessions
	}

	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}

	logger := cfg.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &StripeProvider{
		sessions:      sessions,
		webhookSecret: secret,
		clock: func() time.Time {
			return clock().UTC()
		},
		logger: logger,
	}, nil
}

// CreateCheckoutSession creates a Stripe Checkout session in payment mode with
// a single aggregated line item for the payable amount.
func (p *StripeProvider) CreateCheckoutSession(ctx context.Context, req CheckoutSessionRequest) (CheckoutSession, error) {
	if p == nil || p.sessions == nil {
		return CheckoutSession{}, errors.New("stripe: provider is nil")
	}
	if req.Amount <= 0 {
		return CheckoutSession{}, errors.New("stripe: session amount must be positive")
	}

	name := strings.TrimSpace(req.LineItemName)
	if name == "" {
		name = "Total Amount Payable"
	}

	params := &stripe.CheckoutSessionParams{
		Mode:       stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL: stripe.String(req.SuccessURL),
		CancelURL:  stripe.String(req.CancelURL),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Quantity: stripe.Int64(1),
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:   stripe.String(strings.ToLower(req.Currency)),
					UnitAmount: stripe.Int64(req.Amount),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(name),
					},
				},
			},
		},
	}
	params.Context = ctx

	if key := strings.TrimSpace(req.IdempotencyKey); key != "" {
		params.SetIdempotencyKey(key)
	}
	for _, method := range req.PaymentMethodTypes {
		method = strings.TrimSpace(strings.ToLower(method))
		if method == "" {
			continue
		}
		params.PaymentMethodTypes = append(params.PaymentMethodTypes, stripe.String(method))
	}
	if metadata := textutil.NormalizeStringMap(req.Metadata); metadata != nil {
		params.Metadata = metadata
	}

	session, err := p.sessions.New(params)
	if err != nil {
		return CheckoutSession{}, fmt.Errorf("stripe: create checkout session: %w", err)
	}

	p.logger(ctx, "payments.stripe.session.created", map[string]any{
		"sessionId": session.ID,
		"amount":    req.Amount,
		"currency":  req.Currency,
	})

	expiresAt := p.clock().Add(30 * time.Minute)
	if session.ExpiresAt != 0 {
		expiresAt = time.Unix(session.ExpiresAt, 0).UTC()
	}

	return CheckoutSession{
		ID:        session.ID,
		URL:       session.URL,
		ExpiresAt: expiresAt,
	}, nil
}

// VerifyEvent checks the Stripe-Signature header against the raw payload and
// classifies the event. Any verification or decode failure returns
// ErrInvalidEvent; nothing unverified ever reaches the processor.
func (p *StripeProvider) VerifyEvent(payload []byte, signatureHeader string) (Event, error) {
	if p == nil {
		return Event{}, errors.New("stripe: provider is nil")
	}

	stripeEvent, err := webhook.ConstructEvent(payload, signatureHeader, p.webhookSecret)
	if err != nil {
		return Event{}, fmt.Errorf("%w: %v", ErrInvalidEvent, err)
	}

	event := Event{
		ID:   stripeEvent.ID,
		Type: string(stripeEvent.Type),
		Kind: EventIgnored,
	}

	if stripeEvent.Type != stripe.EventTypeCheckoutSessionCompleted {
		return event, nil
	}

	var session stripe.CheckoutSession
	if err := json.Unmarshal(stripeEvent.Data.Raw, &session); err != nil {
		return Event{}, fmt.Errorf("%w: decode checkout session: %v", ErrInvalidEvent, err)
	}

	event.Kind = EventCheckoutCompleted
	event.SessionID = session.ID
	event.Metadata = session.Metadata
	return event, nil
}
