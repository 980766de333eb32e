package llm

import (
	"context"
	"math"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"
)

// RetryPolicy configures exponential backoff with jitter.
type RetryPolicy struct {
	MaxRetries int           `mapstructure:"max_retries"`
	Base       time.Duration `mapstructure:"base"`
	Factor     float64       `mapstructure:"factor"`
	Max        time.Duration `mapstructure:"max"`
	Jitter     float64       `mapstructure:"jitter"`
}

// DefaultRetryPolicy returns the stock backoff: 0.5s doubling up to 8s with
// 15% jitter, two retries.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries: 2,
		Base:       500 * time.Millisecond,
		Factor:     2,
		Max:        8 * time.Second,
		Jitter:     0.15,
	}
}

func (p RetryPolicy) withDefaults() RetryPolicy {
	d := DefaultRetryPolicy()
	if p.MaxRetries < 0 {
		p.MaxRetries = 0
	}
	if p.Base <= 0 {
		p.Base = d.Base
	}
	if p.Factor < 1 {
		p.Factor = d.Factor
	}
	if p.Max <= 0 {
		p.Max = d.Max
	}
	if p.Jitter < 0 || p.Jitter > 1 {
		p.Jitter = d.Jitter
	}
	return p
}

// Delay returns the wait before retry attempt n (0-indexed), before jitter.
func (p RetryPolicy) Delay(n int) time.Duration {
	d := float64(p.Base) * math.Pow(p.Factor, float64(n))
	if d > float64(p.Max) {
		d = float64(p.Max)
	}
	return time.Duration(d)
}

func (p RetryPolicy) jittered(n int) time.Duration {
	d := float64(p.Delay(n))
	if p.Jitter > 0 {
		d *= 1 + p.Jitter*(2*rand.Float64()-1)
	}
	return time.Duration(d)
}

type retrying struct {
	next   Completer
	policy RetryPolicy
	logger *zap.SugaredLogger
	sleep  func(context.Context, time.Duration) error
}

// WithRetry wraps c so TransientErrors are retried with backoff. The last
// TransientError is returned once retries are spent; other errors return
// immediately.
func WithRetry(c Completer, policy RetryPolicy, logger *zap.Logger) Completer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &retrying{
		next:   c,
		policy: policy.withDefaults(),
		logger: logger.Sugar(),
		sleep:  sleepCtx,
	}
}

func (r *retrying) Complete(ctx context.Context, p Prompt) (Completion, error) {
	for attempt := 0; ; attempt++ {
		out, err := r.next.Complete(ctx, p)
		if err == nil || !IsTransient(err) || attempt >= r.policy.MaxRetries {
			return out, err
		}
		wait := r.policy.jittered(attempt)
		r.logger.Warnf("Transient model error (attempt %d/%d), retrying in %s: %v",
			attempt+1, r.policy.MaxRetries+1, wait.Round(time.Millisecond), err)
		if serr := r.sleep(ctx, wait); serr != nil {
			return Completion{}, serr
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
