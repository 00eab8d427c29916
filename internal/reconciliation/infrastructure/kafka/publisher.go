package kafka

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/dmehra2102/Payment-Reconciliation-Service/internal/clock"
	"github.com/dmehra2102/Payment-Reconciliation-Service/pkg/outbox"
	"github.com/dmehra2102/Payment-Reconciliation-Service/pkg/tracing"
	"github.com/segmentio/kafka-go"
)

const EventReconcileRequested = "ReconcileRequested"

type ReconcileRequest struct {
	OrderID     string    `json:"order_id"`
	RequestedAt time.Time `json:"requested_at"`
}

// Publisher hands orders to the reconcile consumer group instead of
// reconciling them in-process.
type Publisher struct {
	log      *slog.Logger
	producer outbox.Producer
	topic    string
	clock    clock.Clock
}

func NewPublisher(log *slog.Logger, producer outbox.Producer, topic string, clk clock.Clock) *Publisher {
	return &Publisher{log: log, producer: producer, topic: topic, clock: clk}
}

func (p *Publisher) ReconcileOrder(ctx context.Context, orderID string) error {
	payload, err := json.Marshal(ReconcileRequest{OrderID: orderID, RequestedAt: p.clock.Now()})
	if err != nil {
		return err
	}

	headers := []kafka.Header{{Key: "event_type", Value: []byte(EventReconcileRequested)}}
	msg := kafka.Message{
		Topic:   p.topic,
		Key:     []byte(orderID),
		Value:   payload,
		Headers: tracing.InjectKafkaHeaders(ctx, headers),
	}
	if err := p.producer.WriteMessages(ctx, msg); err != nil {
		p.log.Error("publish reconcile request failed", "order_id", orderID, "err", err)
		return err
	}
	p.log.Debug("reconcile request published", "order_id", orderID)
	return nil
}
