// Package observability records games as traces.
//
// Trace hierarchy:
//
//	Game (Trace)
//	  └── Turn (Span)
//	        ├── Guesser assess / ask / guess (Generation)
//	        ├── Host judge (Generation)
//	        └── Gate preemption (Event when the assessment is skipped)
package observability

import "context"

// Tracer defines the interface for observability tracing.
type Tracer interface {
	StartTrace(gameID string, opts TraceOptions) TraceContext
	StartTurn(trace TraceContext, turn int, opts SpanOptions) SpanContext
	RecordGeneration(span SpanContext, gen GenerationInput)
	RecordSkipped(span SpanContext, component string, reason string)
	EndTurn(span SpanContext, status string, durationMs int64)
	CompleteTrace(trace TraceContext, opts CompleteOptions)
	Flush(ctx context.Context) error
	Stop(ctx context.Context) error
}

// TraceContext holds the context for an active trace (game level).
type TraceContext struct {
	TraceID  string
	GameID   string
	Metadata map[string]string
}

// SpanContext holds the context for an active span (turn level).
type SpanContext struct {
	SpanID  string
	Turn    int
	TraceID string
}

// Valid reports whether the span was issued by a recording tracer.
func (s SpanContext) Valid() bool { return s.SpanID != "" }

// TraceOptions configures a new trace.
type TraceOptions struct {
	Name         string
	Topic        string
	GuesserModel string
	HostModel    string
	SessionID    string
}

// SpanOptions configures a new span.
type SpanOptions struct {
	MaxTurns int
	Metadata map[string]string
}

// GenerationInput describes a model invocation to record.
type GenerationInput struct {
	Name         string // "guesser.assess", "guesser.ask", "guesser.guess" or "host.judge"
	Model        string
	Input        string
	Output       string
	InputTokens  int
	OutputTokens int
	Status       string // "completed" or "error"
	DurationMs   int64
}

// CompleteOptions configures trace completion.
type CompleteOptions struct {
	Status            string // "win", "exhausted", "schema_exhausted", ...
	Success           bool
	TurnsUsed         int
	TotalInputTokens  int
	TotalOutputTokens int
}
