package kafka

import (
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"

	"github.com/dmehra2102/Payment-Reconciliation-Service/pkg/outbox"
)

func TestNewWriter(t *testing.T) {
	w := NewWriter([]string{"k1:9092", "k2:9092"})
	t.Cleanup(func() { _ = w.Close() })

	var _ outbox.Producer = w
	require.Equal(t, "k1:9092,k2:9092", w.Addr.String())
	require.Empty(t, w.Topic)
	require.IsType(t, &kafka.Hash{}, w.Balancer)
	require.Equal(t, kafka.RequireAll, w.RequiredAcks)
}
