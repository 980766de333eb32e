package llm

import (
	"context"
	"time"

	"github.com/andywolf/twentyq/internal/observability"
)

type traced struct {
	next   Completer
	tracer observability.Tracer
	name   string
	model  string
}

// Traced wraps c so every call is recorded as a generation on the turn span
// carried in the context. Calls without a span pass through untraced.
func Traced(c Completer, tracer observability.Tracer, name, model string) Completer {
	if tracer == nil {
		return c
	}
	return &traced{next: c, tracer: tracer, name: name, model: model}
}

func (t *traced) Complete(ctx context.Context, p Prompt) (Completion, error) {
	span, ok := observability.SpanFromContext(ctx)
	if !ok {
		return t.next.Complete(ctx, p)
	}

	start := time.Now()
	out, err := t.next.Complete(ctx, p)

	gen := observability.GenerationInput{
		Name:         t.name,
		Model:        out.Model,
		Input:        p.System + "\n\n" + p.User,
		Output:       out.Text,
		InputTokens:  out.InputTokens,
		OutputTokens: out.OutputTokens,
		Status:       "completed",
		DurationMs:   time.Since(start).Milliseconds(),
	}
	if gen.Model == "" {
		gen.Model = t.model
	}
	if err != nil {
		gen.Status = "error"
		gen.Output = err.Error()
	}
	t.tracer.RecordGeneration(span, gen)
	return out, err
}
