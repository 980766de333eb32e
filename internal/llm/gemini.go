package llm

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/genai"
)

// DefaultGeminiModel is used when no model is configured.
const DefaultGeminiModel = "gemini-2.0-flash"

// GeminiConfig configures the Gemini caller.
type GeminiConfig struct {
	APIKey  string
	Model   string
	BaseURL string
}

// GeminiCompleter calls the Gemini API through google.golang.org/genai.
type GeminiCompleter struct {
	client *genai.Client
	model  string
}

// NewGeminiCompleter creates a Gemini caller.
func NewGeminiCompleter(ctx context.Context, cfg GeminiConfig) (*GeminiCompleter, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultGeminiModel
	}

	cc := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}

	return &GeminiCompleter{client: client, model: cfg.Model}, nil
}

// Model returns the model identifier.
func (g *GeminiCompleter) Model() string { return g.model }

// Complete sends one prompt to Gemini.
func (g *GeminiCompleter) Complete(ctx context.Context, p Prompt) (Completion, error) {
	p = withJSONInstruction(p)

	config := &genai.GenerateContentConfig{}
	if p.System != "" {
		config.SystemInstruction = genai.NewContentFromText(p.System, genai.RoleUser)
	}
	if p.Temperature > 0 {
		temp := p.Temperature
		config.Temperature = &temp
	}
	if p.MaxTokens > 0 {
		config.MaxOutputTokens = int32(p.MaxTokens)
	}
	if p.JSON {
		config.ResponseMIMEType = "application/json"
	}

	contents := []*genai.Content{
		genai.NewContentFromText(p.User, genai.RoleUser),
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, config)
	if err != nil {
		return Completion{}, classifyGemini(err)
	}

	out := Completion{Text: resp.Text(), Model: g.model}
	if resp.UsageMetadata != nil {
		out.InputTokens = int(resp.UsageMetadata.PromptTokenCount)
		out.OutputTokens = int(resp.UsageMetadata.CandidatesTokenCount)
	}
	return out, nil
}

func classifyGemini(err error) error {
	code := 0
	var apiErr genai.APIError
	var apiErrPtr *genai.APIError
	switch {
	case errors.As(err, &apiErr):
		code = apiErr.Code
	case errors.As(err, &apiErrPtr):
		code = apiErrPtr.Code
	}
	if code != 0 {
		if transientStatus(code) {
			return &TransientError{StatusCode: code, Err: err}
		}
		return fmt.Errorf("GenAI request failed: %w", err)
	}
	if cerr := classifyTransport(err); IsTransient(cerr) {
		return cerr
	}
	return fmt.Errorf("GenAI request failed: %w", err)
}
