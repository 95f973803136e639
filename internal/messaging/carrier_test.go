package messaging

import (
	"context"
	"testing"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

func TestMessageCarrier(t *testing.T) {
	t.Run("set overwrites existing header", func(t *testing.T) {
		msg := &kafka.Message{}
		c := NewMessageCarrier(msg)
		c.Set("traceparent", "a")
		c.Set("traceparent", "b")

		if len(msg.Headers) != 1 {
			t.Fatalf("expected 1 header, got %d", len(msg.Headers))
		}
		if c.Get("traceparent") != "b" {
			t.Errorf("expected b, got %s", c.Get("traceparent"))
		}
		if c.Get("missing") != "" {
			t.Error("expected empty value for missing header")
		}
	})

	t.Run("round trips trace context", func(t *testing.T) {
		traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
		spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
		sc := trace.NewSpanContext(trace.SpanContextConfig{
			TraceID:    traceID,
			SpanID:     spanID,
			TraceFlags: trace.FlagsSampled,
		})
		ctx := trace.ContextWithSpanContext(context.Background(), sc)

		prop := propagation.TraceContext{}
		msg := &kafka.Message{}
		prop.Inject(ctx, NewMessageCarrier(msg))

		extracted := trace.SpanContextFromContext(prop.Extract(context.Background(), NewMessageCarrier(msg)))
		if extracted.TraceID() != traceID {
			t.Errorf("expected trace id %s, got %s", traceID, extracted.TraceID())
		}
		if len(NewMessageCarrier(msg).Keys()) == 0 {
			t.Error("expected injected header keys")
		}
	})
}
