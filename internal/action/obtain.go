package action

import (
	"context"
	"errors"
	"fmt"
	"time"
)

const (
	DefaultSchemaRetries = 2
	DefaultEmptyRetries  = 2
	DefaultCallTimeout   = 45 * time.Second
)

// Budget bounds the retries spent obtaining one valid value.
type Budget struct {
	SchemaRetries int           `mapstructure:"schema_retries"`
	EmptyRetries  int           `mapstructure:"empty_retries"`
	CallTimeout   time.Duration `mapstructure:"call_timeout"`
}

// WithDefaults fills unset fields.
func (b Budget) WithDefaults() Budget {
	if b.SchemaRetries < 0 {
		b.SchemaRetries = 0
	}
	if b.EmptyRetries < 0 {
		b.EmptyRetries = 0
	}
	if b.CallTimeout <= 0 {
		b.CallTimeout = DefaultCallTimeout
	}
	return b
}

// DefaultBudget returns the stock retry budget.
func DefaultBudget() Budget {
	return Budget{
		SchemaRetries: DefaultSchemaRetries,
		EmptyRetries:  DefaultEmptyRetries,
		CallTimeout:   DefaultCallTimeout,
	}
}

// Attempts counts what it took to obtain a value.
type Attempts struct {
	Calls          int `json:"calls"`
	Repairs        int `json:"repairs"`
	SchemaFailures int `json:"schema_failures"`
	EmptyFailures  int `json:"empty_failures"`
}

// Add accumulates other into a.
func (a *Attempts) Add(other Attempts) {
	a.Calls += other.Calls
	a.Repairs += other.Repairs
	a.SchemaFailures += other.SchemaFailures
	a.EmptyFailures += other.EmptyFailures
}

// CallFunc queries the model once. feedback is empty on the first call and
// carries the previous failure reason on re-queries.
type CallFunc func(ctx context.Context, feedback string) (string, error)

// ParseFunc validates one raw output.
type ParseFunc[T any] func(raw string) (T, Diagnostics, error)

// retryable is implemented by caller errors that already exhausted their
// own backoff but should still count as a failed attempt here.
type retryable interface {
	Retryable() bool
}

// ExhaustedError is returned when a retry budget runs out. It wraps the last
// SchemaError or EmptyContent.
type ExhaustedError struct {
	Attempts Attempts
	Err      error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("retries exhausted after %d calls: %v", e.Attempts.Calls, e.Err)
}

func (e *ExhaustedError) Unwrap() error { return e.Err }

// Obtain runs the validate-repair-retry pipeline: it calls the model, parses
// the output, and re-queries on schema failures, empty content, timeouts and
// escalated transient errors until a value validates or a budget is spent.
// Other call errors are returned immediately.
func Obtain[T any](ctx context.Context, b Budget, call CallFunc, parse ParseFunc[T]) (T, Attempts, error) {
	var zero T
	var att Attempts
	b = b.WithDefaults()
	feedback := ""

	for {
		if err := ctx.Err(); err != nil {
			return zero, att, err
		}

		callCtx, cancel := context.WithTimeout(ctx, b.CallTimeout)
		raw, err := call(callCtx, feedback)
		timedOut := errors.Is(callCtx.Err(), context.DeadlineExceeded)
		cancel()
		att.Calls++

		if err != nil {
			var r retryable
			switch {
			case timedOut || errors.Is(err, context.DeadlineExceeded):
				err = &SchemaError{Reason: fmt.Sprintf("model call timed out after %s", b.CallTimeout)}
			case errors.As(err, &r) && r.Retryable():
			default:
				return zero, att, fmt.Errorf("model call failed: %w", err)
			}
			att.SchemaFailures++
			if att.SchemaFailures > b.SchemaRetries {
				return zero, att, &ExhaustedError{Attempts: att, Err: err}
			}
			feedback = err.Error()
			continue
		}

		val, diag, err := parse(raw)
		att.Repairs += len(diag.Repairs)
		if err == nil {
			return val, att, nil
		}

		var empty *EmptyContent
		var schemaErr *SchemaError
		switch {
		case errors.As(err, &empty):
			att.EmptyFailures++
			if att.EmptyFailures > b.EmptyRetries {
				return zero, att, &ExhaustedError{Attempts: att, Err: err}
			}
			feedback = "your previous reply was empty"
		case errors.As(err, &schemaErr):
			att.SchemaFailures++
			if att.SchemaFailures > b.SchemaRetries {
				return zero, att, &ExhaustedError{Attempts: att, Err: err}
			}
			feedback = schemaErr.Reason
		default:
			return zero, att, err
		}
	}
}
