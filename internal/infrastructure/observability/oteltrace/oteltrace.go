package oteltrace

import (
	"context"

	"github.com/minimart/checkout/internal/observability"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type tracer struct{ t trace.Tracer }

// New wraps the globally-configured OTel tracer behind the Tracer port.
// Exporter setup (sdktrace.TracerProvider + otel.SetTracerProvider) is left to
// the deployment; without it spans are no-ops.
func New(name string) observability.Tracer {
	if name == "" {
		name = "checkout"
	}
	return &tracer{t: otel.Tracer(name)}
}

func (t *tracer) Start(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return t.t.Start(ctx, name, trace.WithAttributes(attrs...))
}
