// Package llm provides the model-calling layer: a provider-neutral Completer
// contract, the Gemini and OpenAI-compatible implementations, and the retry
// and tracing decorators wrapped around them.
package llm

import (
	"context"
	"strings"
)

// Prompt is one request to a model.
type Prompt struct {
	System      string
	User        string
	Temperature float32
	MaxTokens   int
	// JSON asks the provider for a single JSON object response.
	JSON bool
}

// Completion is a model's reply.
type Completion struct {
	Text         string
	Model        string
	InputTokens  int
	OutputTokens int
}

// Completer sends one prompt and returns the raw completion text.
type Completer interface {
	Complete(ctx context.Context, p Prompt) (Completion, error)
}

// CompleterFunc adapts a function to the Completer interface.
type CompleterFunc func(ctx context.Context, p Prompt) (Completion, error)

// Complete calls f.
func (f CompleterFunc) Complete(ctx context.Context, p Prompt) (Completion, error) {
	return f(ctx, p)
}

const jsonInstruction = "Respond with a single JSON object only."

// withJSONInstruction makes sure a JSON-mode prompt mentions JSON, which
// OpenAI's json_object mode requires.
func withJSONInstruction(p Prompt) Prompt {
	if !p.JSON {
		return p
	}
	if strings.Contains(strings.ToLower(p.System+p.User), "json") {
		return p
	}
	if p.System == "" {
		p.System = jsonInstruction
	} else {
		p.System = p.System + "\n" + jsonInstruction
	}
	return p
}
