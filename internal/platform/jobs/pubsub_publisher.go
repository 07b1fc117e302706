package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"cloud.google.com/go/pubsub"

	"github.com/uplay-sg/api/internal/services"
)

// PubSubReconciliationPublisher publishes fulfillment escalations to a Pub/Sub topic
// for manual reconciliation.
type PubSubReconciliationPublisher struct {
	topic   *pubsub.Topic
	marshal func(any) ([]byte, error)
}

// NewPubSubReconciliationPublisher constructs a Pub/Sub backed escalation publisher.
func NewPubSubReconciliationPublisher(topic *pubsub.Topic) (*PubSubReconciliationPublisher, error) {
	if topic == nil {
		return nil, errors.New("pubsub reconciliation publisher: topic is required")
	}
	return &PubSubReconciliationPublisher{
		topic:   topic,
		marshal: json.Marshal,
	}, nil
}

// PublishFulfillmentEscalation enqueues an escalation message on the configured topic.
func (p *PubSubReconciliationPublisher) PublishFulfillmentEscalation(ctx context.Context, message services.FulfillmentEscalation) (string, error) {
	if p == nil || p.topic == nil {
		return "", errors.New("pubsub reconciliation publisher: not initialised")
	}

	data, err := p.marshal(message)
	if err != nil {
		return "", fmt.Errorf("marshal fulfillment escalation: %w", err)
	}

	attrs := make(map[string]string)
	setAttr(attrs, "eventId", message.EventID)
	setAttr(attrs, "sessionId", message.SessionID)
	setAttr(attrs, "userId", message.UserID)
	setAttr(attrs, "reason", message.Reason)

	result := p.topic.Publish(ctx, &pubsub.Message{
		Data:       data,
		Attributes: attrs,
	})

	id, err := result.Get(ctx)
	if err != nil {
		return "", fmt.Errorf("publish fulfillment escalation: %w", err)
	}
	return id, nil
}

func setAttr(attrs map[string]string, key string, value string) {
	if v := strings.TrimSpace(value); v != "" {
		attrs[key] = v
	}
}
