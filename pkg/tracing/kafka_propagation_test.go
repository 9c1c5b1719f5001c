package tracing

import (
	"context"
	"testing"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

func TestInjectExtractRoundTrip(t *testing.T) {
	otel.SetTextMapPropagator(propagation.TraceContext{})

	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
	})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)

	headers := InjectKafkaHeaders(ctx, []kafka.Header{{Key: "event_type", Value: []byte("OrderCreated")}})
	if got := (HeaderCarrier{Headers: &headers}).Get(TraceparentHeader); got == "" {
		t.Fatalf("traceparent header not injected: %+v", headers)
	}

	got := trace.SpanContextFromContext(ExtractKafkaHeaders(context.Background(), headers))
	if got.TraceID() != traceID || got.SpanID() != spanID {
		t.Fatalf("extracted span context = %v/%v", got.TraceID(), got.SpanID())
	}
}

func TestHeaderCarrierSetReplaces(t *testing.T) {
	headers := []kafka.Header{{Key: "k", Value: []byte("old")}}
	c := HeaderCarrier{Headers: &headers}

	c.Set("k", "new")
	c.Set("other", "v")

	if len(headers) != 2 {
		t.Fatalf("headers = %d, want 2", len(headers))
	}
	if c.Get("k") != "new" {
		t.Fatalf("k = %q, want new", c.Get("k"))
	}
}
