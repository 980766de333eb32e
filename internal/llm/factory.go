package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/andywolf/twentyq/internal/observability"
	"github.com/andywolf/twentyq/internal/routing"
	"go.uber.org/zap"
)

const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
)

// ProviderConfig holds credentials and endpoint overrides for one provider.
// APIKey must already be resolved (see package gcp for secret references).
type ProviderConfig struct {
	APIKey  string        `mapstructure:"api_key"`
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// Options are the decorators applied by New.
type Options struct {
	Retry  RetryPolicy
	Tracer observability.Tracer
	Logger *zap.Logger
	// Name labels generations in traces, e.g. "guesser" or "host.judge".
	Name string
}

// New builds a Completer for mc, wrapped with retry and tracing.
func New(ctx context.Context, mc routing.ModelConfig, providers map[string]ProviderConfig, opts Options) (Completer, error) {
	provider := mc.Provider
	if provider == "" {
		provider = ProviderGemini
	}
	pc := providers[provider]

	var (
		base  Completer
		model string
	)
	switch provider {
	case ProviderGemini:
		g, err := NewGeminiCompleter(ctx, GeminiConfig{APIKey: pc.APIKey, Model: mc.Model, BaseURL: pc.BaseURL})
		if err != nil {
			return nil, err
		}
		base, model = g, g.Model()
	case ProviderOpenAI:
		o, err := NewOpenAICompleter(OpenAIConfig{APIKey: pc.APIKey, BaseURL: pc.BaseURL, Model: mc.Model, Timeout: pc.Timeout})
		if err != nil {
			return nil, err
		}
		base, model = o, o.Model()
	default:
		return nil, fmt.Errorf("unknown model provider %q (valid: %s, %s)", provider, ProviderGemini, ProviderOpenAI)
	}

	c := WithRetry(base, opts.Retry, opts.Logger)
	return Traced(c, opts.Tracer, opts.Name, model), nil
}
