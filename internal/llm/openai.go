package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/andywolf/twentyq/internal/version"
)

const (
	DefaultOpenAIBaseURL = "https://api.openai.com/v1"
	DefaultOpenAIModel   = "gpt-4o-mini"
)

// OpenAIConfig configures the OpenAI-compatible caller.
type OpenAIConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// OpenAICompleter calls any OpenAI-compatible /chat/completions endpoint.
type OpenAICompleter struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
}

// NewOpenAICompleter creates an OpenAI-compatible caller.
func NewOpenAICompleter(cfg OpenAIConfig) (*OpenAICompleter, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai API key is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultOpenAIBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultOpenAIModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Minute
	}
	return &OpenAICompleter{
		apiKey:     cfg.APIKey,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		model:      cfg.Model,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

// Model returns the model identifier.
func (c *OpenAICompleter) Model() string { return c.model }

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIResponseFormat struct {
	Type string `json:"type"`
}

type openAIRequest struct {
	Model          string                `json:"model"`
	Messages       []openAIMessage       `json:"messages"`
	Temperature    *float32              `json:"temperature,omitempty"`
	MaxTokens      int                   `json:"max_tokens,omitempty"`
	ResponseFormat *openAIResponseFormat `json:"response_format,omitempty"`
}

type openAIResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message openAIMessage `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Complete sends one prompt to the chat completions endpoint.
func (c *OpenAICompleter) Complete(ctx context.Context, p Prompt) (Completion, error) {
	p = withJSONInstruction(p)

	var messages []openAIMessage
	if strings.TrimSpace(p.System) != "" {
		messages = append(messages, openAIMessage{Role: "system", Content: p.System})
	}
	messages = append(messages, openAIMessage{Role: "user", Content: p.User})

	reqBody := openAIRequest{
		Model:     c.model,
		Messages:  messages,
		MaxTokens: p.MaxTokens,
	}
	if p.Temperature > 0 {
		temp := p.Temperature
		reqBody.Temperature = &temp
	}
	if p.JSON {
		reqBody.ResponseFormat = &openAIResponseFormat{Type: "json_object"}
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return Completion{}, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(jsonData))
	if err != nil {
		return Completion{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("User-Agent", version.UserAgent())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Completion{}, classifyTransport(fmt.Errorf("request failed: %w", err))
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Completion{}, &TransientError{Err: fmt.Errorf("failed to read response: %w", err)}
	}

	if resp.StatusCode != http.StatusOK {
		apiErr := fmt.Errorf("API request failed with status %d: %s", resp.StatusCode, truncate(string(body), 512))
		if transientStatus(resp.StatusCode) {
			return Completion{}, &TransientError{StatusCode: resp.StatusCode, Err: apiErr}
		}
		return Completion{}, apiErr
	}

	var out openAIResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return Completion{}, fmt.Errorf("failed to parse response: %w", err)
	}
	if out.Error != nil {
		return Completion{}, fmt.Errorf("API error: %s", out.Error.Message)
	}

	model := out.Model
	if model == "" {
		model = c.model
	}
	completion := Completion{
		Model:        model,
		InputTokens:  out.Usage.PromptTokens,
		OutputTokens: out.Usage.CompletionTokens,
	}
	// No choices is surfaced as empty text so the schema layer can count it
	// against the empty-content budget.
	if len(out.Choices) > 0 {
		completion.Text = out.Choices[0].Message.Content
	}
	return completion, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
