package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// TracerName identifies spans emitted by this module.
const TracerName = "github.com/zishu-lab/jobchat"

// StartSpan starts a span as a child of the span in ctx, using that span's provider.
// Without a parent span the globally registered provider is used, so chat calls
// become root spans once the binary installs one via otel.SetTracerProvider.
func StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	provider := otel.GetTracerProvider()
	if parent := trace.SpanFromContext(ctx); parent.SpanContext().IsValid() {
		provider = parent.TracerProvider()
	}
	return provider.Tracer(TracerName).Start(ctx, name, opts...)
}
