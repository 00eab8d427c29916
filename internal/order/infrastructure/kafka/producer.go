package kafka

import (
	"time"

	"github.com/segmentio/kafka-go"
)

// NewWriter returns the producer shared by the outbox relay and the
// reconcile request publisher. Messages carry their own topic, so the writer
// is not bound to one; keys are hashed so every event of an order lands on
// the same partition.
func NewWriter(brokers []string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		BatchTimeout:           20 * time.Millisecond,
		AllowAutoTopicCreation: true,
	}
}
