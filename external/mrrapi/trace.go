package mrrapi

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

var clientTracer = otel.Tracer("mrr/external/mrrapi")
var noopSpan = trace.SpanFromContext(context.Background())

// startSpan opens a child span only when the caller already carries a valid
// trace; untraced CLI paths stay allocation-free.
func startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	parent := trace.SpanFromContext(ctx)
	if !parent.SpanContext().IsValid() {
		return ctx, noopSpan
	}
	return clientTracer.Start(ctx, name)
}
