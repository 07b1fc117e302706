package jobs

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/pubsub/pstest"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/uplay-sg/api/internal/services"
)

func TestPubSubReconciliationPublisherPublishesMessage(t *testing.T) {
	ctx := context.Background()
	srv := pstest.NewServer()
	defer srv.Close()

	client, err := pubsub.NewClient(ctx, "test-project",
		option.WithEndpoint(srv.Addr),
		option.WithoutAuthentication(),
		option.WithGRPCDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())),
	)
	if err != nil {
		t.Fatalf("pubsub.NewClient: %v", err)
	}
	defer func() {
		_ = client.Close()
	}()

	topic, err := client.CreateTopic(ctx, "fulfillment-escalations")
	if err != nil {
		t.Fatalf("CreateTopic: %v", err)
	}

	publisher, err := NewPubSubReconciliationPublisher(topic)
	if err != nil {
		t.Fatalf("NewPubSubReconciliationPublisher: %v", err)
	}

	occurredAt := time.Date(2025, 5, 6, 9, 0, 0, 0, time.UTC)
	msg := services.FulfillmentEscalation{
		EventID:    "evt_test",
		SessionID:  "cs_test",
		UserID:     "user_1",
		Reason:     "fulfillment_failed",
		Detail:     "transaction aborted",
		OccurredAt: occurredAt,
	}

	if _, err := publisher.PublishFulfillmentEscalation(ctx, msg); err != nil {
		t.Fatalf("PublishFulfillmentEscalation: %v", err)
	}

	messages := srv.Messages()
	if len(messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(messages))
	}

	var payload services.FulfillmentEscalation
	if err := json.Unmarshal(messages[0].Data, &payload); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if payload.EventID != msg.EventID || payload.Reason != msg.Reason {
		t.Fatalf("unexpected payload %#v", payload)
	}
	if attr := messages[0].Attributes["eventId"]; attr != "evt_test" {
		t.Fatalf("expected eventId attribute, got %q", attr)
	}
	if _, ok := messages[0].Attributes["detail"]; ok {
		t.Fatalf("detail attribute should not be present")
	}
}

func TestNewPubSubReconciliationPublisherRequiresTopic(t *testing.T) {
	if _, err := NewPubSubReconciliationPublisher(nil); err == nil {
		t.Fatal("expected error for nil topic")
	}
}
