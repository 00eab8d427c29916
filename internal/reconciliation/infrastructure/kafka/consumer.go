package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/dmehra2102/Payment-Reconciliation-Service/internal/reconciliation/application"
	"github.com/dmehra2102/Payment-Reconciliation-Service/pkg/tracing"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type Reader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Deduper interface {
	Key(topic string, partition int, offset int64) string
	Seen(ctx context.Context, key string) (bool, error)
	Forget(ctx context.Context, key string) error
}

func NewReader(brokers []string, topic, group string) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers: brokers,
		Topic:   topic,
		GroupID: group,
	})
}

type Consumer struct {
	log        *slog.Logger
	reader     Reader
	reconciler application.OrderReconciler
	idem       Deduper
	tracer     trace.Tracer
}

func NewConsumer(log *slog.Logger, reader Reader, reconciler application.OrderReconciler, idem Deduper) *Consumer {
	return &Consumer{
		log:        log,
		reader:     reader,
		reconciler: reconciler,
		idem:       idem,
		tracer:     otel.Tracer("reconcile-consumer"),
	}
}

// Run consumes reconcile requests until ctx is cancelled. A request whose
// reconciliation fails is still committed; the next batch tick retries the
// order. A request interrupted by shutdown is left uncommitted.
func (c *Consumer) Run(ctx context.Context) error {
	defer c.reader.Close()

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		c.handle(ctx, msg)
	}
}

func (c *Consumer) handle(ctx context.Context, msg kafka.Message) {
	key := c.idem.Key(msg.Topic, msg.Partition, msg.Offset)
	seen, err := c.idem.Seen(ctx, key)
	if err != nil {
		c.log.Error("idempotency check failed", "key", key, "err", err)
		return
	}
	if seen {
		c.log.Info("duplicate message skipped", "key", key)
		_ = c.reader.CommitMessages(ctx, msg)
		return
	}

	msgCtx := tracing.ExtractKafkaHeaders(ctx, msg.Headers)
	msgCtx, span := c.tracer.Start(msgCtx, "ConsumeReconcileRequest")
	defer span.End()

	var req ReconcileRequest
	if err := json.Unmarshal(msg.Value, &req); err != nil || req.OrderID == "" {
		c.log.Error("unmarshal failed", "key", key, "err", err)
		_ = c.reader.CommitMessages(ctx, msg)
		return
	}
	span.SetAttributes(attribute.String("order.id", req.OrderID))

	err = c.reconciler.ReconcileOrder(msgCtx, req.OrderID)
	if err != nil && (errors.Is(err, context.Canceled) || ctx.Err() != nil) {
		_ = c.idem.Forget(context.WithoutCancel(ctx), key)
		return
	}
	if err != nil {
		c.log.Error("reconcile failed", "order_id", req.OrderID, "err", err)
	} else {
		c.log.Info("reconcile request processed", "order_id", req.OrderID)
	}
	_ = c.reader.CommitMessages(ctx, msg)
}
