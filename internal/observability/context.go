package observability

import "context"

type spanKey struct{}

// WithSpan returns a context carrying the active turn span, so model callers
// deeper in the stack can attach generations to it.
func WithSpan(ctx context.Context, span SpanContext) context.Context {
	return context.WithValue(ctx, spanKey{}, span)
}

// SpanFromContext returns the span stored by WithSpan.
func SpanFromContext(ctx context.Context) (SpanContext, bool) {
	span, ok := ctx.Value(spanKey{}).(SpanContext)
	return span, ok && span.Valid()
}
