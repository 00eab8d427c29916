package tracing

import (
	"context"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

func TestKafkaHeaders_RoundTripSpanContext(t *testing.T) {
	otel.SetTextMapPropagator(propagation.TraceContext{})
	tp := sdktrace.NewTracerProvider()
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	ctx, span := tp.Tracer("test").Start(context.Background(), "produce")
	defer span.End()

	headers := InjectKafkaHeaders(ctx, []kafka.Header{{Key: "event_type", Value: []byte("x")}})
	require.NotEmpty(t, HeaderValue(headers, TraceparentHeader))
	require.Equal(t, "x", HeaderValue(headers, "event_type"))

	got := trace.SpanContextFromContext(ExtractKafkaHeaders(context.Background(), headers))
	require.Equal(t, span.SpanContext().TraceID(), got.TraceID())
}

func TestHeaderValue_Missing(t *testing.T) {
	require.Empty(t, HeaderValue(nil, "traceparent"))
}
