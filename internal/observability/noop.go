package observability

import "context"

// NoOpTracer records nothing. It still hands back contexts that identify the
// game and turn, but its spans carry no span ID, so SpanFromContext reports
// no active span and model callers skip generation bookkeeping.
type NoOpTracer struct{}

func (NoOpTracer) StartTrace(gameID string, _ TraceOptions) TraceContext {
	return TraceContext{TraceID: gameID, GameID: gameID}
}

func (NoOpTracer) StartTurn(trace TraceContext, turn int, _ SpanOptions) SpanContext {
	return SpanContext{Turn: turn, TraceID: trace.TraceID}
}

// Per-turn records are dropped.
func (NoOpTracer) RecordGeneration(SpanContext, GenerationInput) {}
func (NoOpTracer) RecordSkipped(SpanContext, string, string) {}
func (NoOpTracer) EndTurn(SpanContext, string, int64) {}
func (NoOpTracer) CompleteTrace(TraceContext, CompleteOptions) {}
func (NoOpTracer) Flush(context.Context) error { return nil }
func (NoOpTracer) Stop(context.Context) error { return nil }
