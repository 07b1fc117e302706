package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	domain "github.com/uplay-sg/api/internal/domain"
	"github.com/uplay-sg/api/internal/payments"
	"github.com/uplay-sg/api/internal/repositories"
)

// ErrFulfillmentRetryable indicates the fulfillment transaction failed and
// rolled back fully; the gateway should redeliver the event.
var ErrFulfillmentRetryable = errors.New("payment events: fulfillment failed")

// ProcessOutcome enumerates the terminal states of event processing.
type ProcessOutcome string

const (
	// OutcomeAcknowledgedNoop covers ignored event types and duplicate deliveries.
	OutcomeAcknowledgedNoop ProcessOutcome = "acknowledged-noop"
	// OutcomeFulfilled means the fulfillment transaction committed.
	OutcomeFulfilled ProcessOutcome = "fulfilled"
	// OutcomeFailedRetryable means nothing was committed and redelivery is wanted.
	OutcomeFailedRetryable ProcessOutcome = "failed-retryable"
	// OutcomeRejected means the delivery itself was invalid and must not be retried.
	OutcomeRejected ProcessOutcome = "rejected"
)

// ProcessResult reports the terminal state of one event delivery.
type ProcessResult struct {
	Outcome   ProcessOutcome
	EventID   string
	SessionID string
	OrderIDs  []string
	Duplicate bool
}

// FulfillmentEscalation is published to the reconciliation topic when an event
// cannot be processed automatically.
type FulfillmentEscalation struct {
	EventID    string    `json:"eventId"`
	SessionID  string    `json:"sessionId,omitempty"`
	UserID     string    `json:"userId,omitempty"`
	Reason     string    `json:"reason"`
	Detail     string    `json:"detail,omitempty"`
	OccurredAt time.Time `json:"occurredAt"`
}

// eventVerifier abstracts the payment gateway's webhook verification.
type eventVerifier interface {
	VerifyEvent(payload []byte, signatureHeader string) (payments.Event, error)
}

// escalationPublisher abstracts the reconciliation topic.
type escalationPublisher interface {
	PublishFulfillmentEscalation(ctx context.Context, message FulfillmentEscalation) (string, error)
}

// PaymentEventProcessorDeps wires the dependencies of the processor.
type PaymentEventProcessorDeps struct {
	Verifier    eventVerifier
	Store       repositories.FulfillmentStore
	Fulfillment *OrderFulfillmentService
	Tiers       *TierProgressionEngine
	Escalations escalationPublisher
	Clock       func() time.Time
	Logger      func(ctx context.Context, event string, fields map[string]any)
}

// PaymentEventProcessor drives the verify, classify, extract, deduplicate,
// fulfill pipeline for payment gateway events. Processing is idempotent:
// redelivered events are recognised through the processed-event ledger and
// through per-item cart existence checks.
type PaymentEventProcessor struct {
	verifier    eventVerifier
	store       repositories.FulfillmentStore
	fulfillment *OrderFulfillmentService
	tiers       *TierProgressionEngine
	escalations escalationPublisher
	now         func() time.Time
	logger      func(ctx context.Context, event string, fields map[string]any)
}

// NewPaymentEventProcessor constructs a PaymentEventProcessor validating required dependencies.
func NewPaymentEventProcessor(deps PaymentEventProcessorDeps) (*PaymentEventProcessor, error) {
	if deps.Verifier == nil {
		return nil, errors.New("payment event processor: event verifier is required")
	}
	if deps.Store == nil {
		return nil, errors.New("payment event processor: fulfillment store is required")
	}
	if deps.Fulfillment == nil {
		return nil, errors.New("payment event processor: fulfillment service is required")
	}
	if deps.Tiers == nil {
		return nil, errors.New("payment event processor: tier engine is required")
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &PaymentEventProcessor{
		verifier:    deps.Verifier,
		store:       deps.Store,
		fulfillment: deps.Fulfillment,
		tiers:       deps.Tiers,
		escalations: deps.Escalations,
		now: func() time.Time {
			return clock().UTC()
		},
		logger: logger,
	}, nil
}

// Process verifies and classifies one raw event delivery and, for a completed
// checkout, runs the fulfillment transaction. The error return carries
// payments.ErrInvalidEvent, domain.ErrMalformedPayload, or
// ErrFulfillmentRetryable for the handler to map onto HTTP statuses.
func (p *PaymentEventProcessor) Process(ctx context.Context, payload []byte, signatureHeader string) (ProcessResult, error) {
	event, err := p.verifier.VerifyEvent(payload, signatureHeader)
	if err != nil {
		p.logger(ctx, "payment_event.verification_failed", map[string]any{"error": err.Error()})
		p.escalate(ctx, FulfillmentEscalation{
			Reason:     "verification_failed",
			Detail:     err.Error(),
			OccurredAt: p.now(),
		})
		return ProcessResult{Outcome: OutcomeRejected}, err
	}

	if event.Kind != payments.EventCheckoutCompleted {
		p.logger(ctx, "payment_event.ignored", map[string]any{"eventId": event.ID, "type": event.Type})
		return ProcessResult{Outcome: OutcomeAcknowledgedNoop, EventID: event.ID}, nil
	}

	fulfillment, err := domain.DecodeFulfillmentPayload(event.Metadata)
	if err != nil {
		p.logger(ctx, "payment_event.malformed_payload", map[string]any{
			"eventId":   event.ID,
			"sessionId": event.SessionID,
			"error":     err.Error(),
		})
		p.escalate(ctx, FulfillmentEscalation{
			EventID:    event.ID,
			SessionID:  event.SessionID,
			Reason:     "malformed_payload",
			Detail:     err.Error(),
			OccurredAt: p.now(),
		})
		return ProcessResult{Outcome: OutcomeRejected, EventID: event.ID, SessionID: event.SessionID}, err
	}

	result := ProcessResult{
		Outcome:   OutcomeFulfilled,
		EventID:   event.ID,
		SessionID: event.SessionID,
	}

	txErr := p.store.RunFulfillment(ctx, func(ctx context.Context, tx repositories.FulfillmentTx) error {
		_, seen, err := tx.GetProcessedEvent(ctx, event.ID)
		if err != nil {
			return fmt.Errorf("ledger lookup: %w", err)
		}
		if seen {
			result.Duplicate = true
			result.Outcome = OutcomeAcknowledgedNoop
			result.OrderIDs = nil
			return nil
		}

		fulfilled, err := p.fulfillment.FulfillInto(ctx, tx, fulfillment)
		if err != nil {
			return err
		}

		var voucher *domain.Voucher
		if fulfillment.AppliedVoucher != nil {
			found, ok, err := tx.GetVoucher(ctx, *fulfillment.AppliedVoucher)
			if err != nil {
				return fmt.Errorf("voucher lookup: %w", err)
			}
			if ok && found.UserID == fulfillment.UserID {
				voucher = &found
			} else {
				// Already retired or never owned by this user; forgiven.
				p.logger(ctx, "payment_event.voucher_gone", map[string]any{
					"eventId":   event.ID,
					"voucherId": *fulfillment.AppliedVoucher,
				})
			}
		}

		tiers, err := tx.ListTiers(ctx)
		if err != nil {
			return fmt.Errorf("tier lookup: %w", err)
		}

		user, upgrades := p.tiers.Progress(ctx, fulfilled.User, tiers)
		tx.StageUserUpdate(user)
		if voucher != nil {
			tx.StageVoucherDelete(voucher.ID)
		}

		orderIDs := make([]string, 0, len(fulfilled.Orders))
		for _, order := range fulfilled.Orders {
			orderIDs = append(orderIDs, order.ID)
		}
		tx.StageProcessedEvent(domain.ProcessedEvent{
			EventID:     event.ID,
			SessionID:   event.SessionID,
			UserID:      fulfillment.UserID,
			Amount:      fulfillment.AmountPayable,
			OrderIDs:    orderIDs,
			ProcessedAt: p.now(),
		})

		result.OrderIDs = orderIDs
		p.logger(ctx, "payment_event.fulfillment_staged", map[string]any{
			"eventId":  event.ID,
			"userId":   fulfillment.UserID,
			"orders":   len(orderIDs),
			"skipped":  len(fulfilled.SkippedItems),
			"upgrades": upgrades,
		})
		return nil
	})
	if txErr != nil {
		p.logger(ctx, "payment_event.fulfillment_failed", map[string]any{
			"eventId": event.ID,
			"userId":  fulfillment.UserID,
			"error":   txErr.Error(),
		})
		p.escalate(ctx, FulfillmentEscalation{
			EventID:    event.ID,
			SessionID:  event.SessionID,
			UserID:     fulfillment.UserID,
			Reason:     "fulfillment_failed",
			Detail:     txErr.Error(),
			OccurredAt: p.now(),
		})
		return ProcessResult{Outcome: OutcomeFailedRetryable, EventID: event.ID, SessionID: event.SessionID},
			fmt.Errorf("%w: %v", ErrFulfillmentRetryable, txErr)
	}

	if result.Duplicate {
		p.logger(ctx, "payment_event.duplicate", map[string]any{"eventId": event.ID})
	}
	return result, nil
}

// escalate publishes to the reconciliation topic. Publish failures are logged
// and never affect the processing outcome.
func (p *PaymentEventProcessor) escalate(ctx context.Context, message FulfillmentEscalation) {
	if p.escalations == nil {
		return
	}
	if _, err := p.escalations.PublishFulfillmentEscalation(ctx, message); err != nil {
		p.logger(ctx, "payment_event.escalation_failed", map[string]any{
			"eventId": message.EventID,
			"reason":  message.Reason,
			"error":   err.Error(),
		})
	}
}
