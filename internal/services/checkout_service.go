package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	domain "github.com/uplay-sg/api/internal/domain"
	"github.com/uplay-sg/api/internal/payments"
)

var (
	// ErrCheckoutInvalidInput indicates the caller supplied invalid input parameters.
	ErrCheckoutInvalidInput = errors.New("checkout: invalid input")
	// ErrCheckoutUnavailable indicates checkout dependencies are currently unavailable.
	ErrCheckoutUnavailable = errors.New("checkout: unavailable")
	// ErrCheckoutPaymentFailed indicates the gateway session could not be created.
	ErrCheckoutPaymentFailed = errors.New("checkout: payment failed")
)

// checkoutSessionCreator abstracts the payment gateway for easier testing.
type checkoutSessionCreator interface {
	CreateCheckoutSession(ctx context.Context, req payments.CheckoutSessionRequest) (payments.CheckoutSession, error)
}

// CreateCheckoutSessionCommand carries the caller's cart and optional voucher.
type CreateCheckoutSessionCommand struct {
	UserID         string
	Items          []domain.CartItem
	VoucherID      *string
	IdempotencyKey string
}

// CheckoutSession is the handle returned to the client, echoing the priced cart.
type CheckoutSession struct {
	SessionID      string
	URL            string
	AmountPayable  int64
	AppliedVoucher *string
	Items          []domain.CartItem
	ExpiresAt      time.Time
}

// CheckoutSessionInitiatorDeps wires the dependencies of the initiator.
type CheckoutSessionInitiatorDeps struct {
	Redemption     *VoucherRedemptionService
	Payments       checkoutSessionCreator
	Currency       string
	SuccessURL     string
	CancelURL      string
	PaymentMethods []string
	Clock          func() time.Time
	Logger         func(ctx context.Context, event string, fields map[string]any)
}

// CheckoutSessionInitiator prices the cart and opens a hosted gateway session
// whose metadata carries the fulfillment payload. No persisted state is
// mutated here; fulfillment happens when the payment event arrives.
type CheckoutSessionInitiator struct {
	redemption     *VoucherRedemptionService
	payments       checkoutSessionCreator
	currency       string
	successURL     string
	cancelURL      string
	paymentMethods []string
	now            func() time.Time
	logger         func(ctx context.Context, event string, fields map[string]any)
}

// NewCheckoutSessionInitiator constructs a CheckoutSessionInitiator validating required dependencies.
func NewCheckoutSessionInitiator(deps CheckoutSessionInitiatorDeps) (*CheckoutSessionInitiator, error) {
	if deps.Redemption == nil {
		return nil, errors.New("checkout service: redemption service is required")
	}
	if deps.Payments == nil {
		return nil, errors.New("checkout service: payment provider is required")
	}
	currency := strings.ToUpper(strings.TrimSpace(deps.Currency))
	if currency == "" {
		return nil, errors.New("checkout service: currency is required")
	}
	successURL := strings.TrimSpace(deps.SuccessURL)
	cancelURL := strings.TrimSpace(deps.CancelURL)
	if successURL == "" || cancelURL == "" {
		return nil, errors.New("checkout service: success and cancel URLs are required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &CheckoutSessionInitiator{
		redemption:     deps.Redemption,
		payments:       deps.Payments,
		currency:       currency,
		successURL:     successURL,
		cancelURL:      cancelURL,
		paymentMethods: deps.PaymentMethods,
		now: func() time.Time {
			return clock().UTC()
		},
		logger: logger,
	}, nil
}

// CreateSession prices the cart, encodes the fulfillment payload into session
// metadata, and opens a gateway session for the payable amount.
func (s *CheckoutSessionInitiator) CreateSession(ctx context.Context, cmd CreateCheckoutSessionCommand) (CheckoutSession, error) {
	userID := strings.TrimSpace(cmd.UserID)
	if userID == "" {
		return CheckoutSession{}, fmt.Errorf("%w: user id is required", ErrCheckoutInvalidInput)
	}

	priced, err := s.redemption.ValidateAndPrice(ctx, userID, cmd.Items, cmd.VoucherID)
	if err != nil {
		return CheckoutSession{}, err
	}

	payload := domain.FulfillmentPayload{
		Version:        domain.FulfillmentPayloadVersion,
		UserID:         userID,
		AppliedVoucher: priced.AppliedVoucher,
		AmountPayable:  priced.AmountPayable,
		Items:          payloadItems(cmd.Items),
	}
	metadata, err := payload.Encode()
	if err != nil {
		return CheckoutSession{}, fmt.Errorf("%w: encode payload: %v", ErrCheckoutInvalidInput, err)
	}

	session, err := s.payments.CreateCheckoutSession(ctx, payments.CheckoutSessionRequest{
		Amount:             priced.AmountPayable,
		Currency:           s.currency,
		SuccessURL:         s.successURL,
		CancelURL:          s.cancelURL,
		LineItemName:       "Total Amount Payable",
		PaymentMethodTypes: s.paymentMethods,
		Metadata:           metadata,
		IdempotencyKey:     s.idempotencyKey(cmd, priced),
	})
	if err != nil {
		s.logger(ctx, "checkout.payment_session_failed", map[string]any{
			"userId": userID,
			"amount": priced.AmountPayable,
			"error":  err.Error(),
		})
		return CheckoutSession{}, ErrCheckoutPaymentFailed
	}

	s.logger(ctx, "checkout.session_created", map[string]any{
		"userId":    userID,
		"sessionId": session.ID,
		"amount":    priced.AmountPayable,
	})

	return CheckoutSession{
		SessionID:      session.ID,
		URL:            session.URL,
		AmountPayable:  priced.AmountPayable,
		AppliedVoucher: priced.AppliedVoucher,
		Items:          cmd.Items,
		ExpiresAt:      session.ExpiresAt,
	}, nil
}

// idempotencyKey derives a stable key from the command when the caller did not
// supply one, so gateway retries of the same cart reuse the same session.
func (s *CheckoutSessionInitiator) idempotencyKey(cmd CreateCheckoutSessionCommand, priced PricedCart) string {
	if key := strings.TrimSpace(cmd.IdempotencyKey); key != "" {
		return key
	}

	parts := make([]string, 0, len(cmd.Items)+3)
	parts = append(parts, strings.TrimSpace(cmd.UserID), fmt.Sprintf("%d", priced.AmountPayable))
	if priced.AppliedVoucher != nil {
		parts = append(parts, *priced.AppliedVoucher)
	}
	itemParts := make([]string, 0, len(cmd.Items))
	for _, item := range cmd.Items {
		itemParts = append(itemParts, fmt.Sprintf("%s,%d,%d", item.ID, item.UnitPrice, item.Quantity))
	}
	sort.Strings(itemParts)
	parts = append(parts, itemParts...)

	sum := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:])
}

func payloadItems(items []domain.CartItem) []domain.PayloadItem {
	out := make([]domain.PayloadItem, 0, len(items))
	for _, item := range items {
		out = append(out, domain.PayloadItem{
			ID:           item.ID,
			ActivityName: item.ActivityName,
			UnitPrice:    item.UnitPrice,
			Quantity:     item.Quantity,
		})
	}
	return out
}
