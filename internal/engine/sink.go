package engine

import (
	"context"
	"errors"

	"github.com/andywolf/twentyq/internal/metrics"
)

// Sink persists finished games.
type Sink interface {
	Emit(ctx context.Context, res *GameResult) error
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(ctx context.Context, res *GameResult) error

// Emit calls f.
func (f SinkFunc) Emit(ctx context.Context, res *GameResult) error { return f(ctx, res) }

// MultiSink fans a result out to every sink. All sinks are tried; their
// errors are joined.
type MultiSink []Sink

// Emit implements Sink.
func (m MultiSink) Emit(ctx context.Context, res *GameResult) error {
	var errs []error
	for _, s := range m {
		if s == nil {
			continue
		}
		if err := s.Emit(ctx, res); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Recorder receives one outcome per finished game.
type Recorder interface {
	Record(o metrics.Outcome)
}
