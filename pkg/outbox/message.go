package outbox

import (
	"context"
	"encoding/json"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

// NewMessage marshals payload as JSON and captures the traceparent of ctx so
// consumers can continue the trace.
func NewMessage(ctx context.Context, aggregateType, aggregateID, eventType string, payload any, headers map[string]string) (Message, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return Message{}, fmt.Errorf("marshal %s: %w", eventType, err)
	}

	carrier := propagation.MapCarrier{}
	otel.GetTextMapPropagator().Inject(ctx, carrier)

	return Message{
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		Type:          eventType,
		Payload:       body,
		Headers:       headers,
		Traceparent:   carrier.Get("traceparent"),
	}, nil
}
