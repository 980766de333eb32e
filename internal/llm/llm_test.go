package llm

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andywolf/twentyq/internal/observability"
	"github.com/andywolf/twentyq/internal/routing"
)

func TestWithJSONInstruction(t *testing.T) {
	tests := []struct {
		name       string
		in         Prompt
		wantSystem string
	}{
		{"not json mode", Prompt{System: "Be brief."}, "Be brief."},
		{"already mentions json", Prompt{System: "Reply in JSON.", JSON: true}, "Reply in JSON."},
		{"user mentions json", Prompt{User: "give me json", JSON: true}, ""},
		{"empty system", Prompt{User: "hi", JSON: true}, jsonInstruction},
		{"appended", Prompt{System: "Be brief.", User: "hi", JSON: true}, "Be brief.\n" + jsonInstruction},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := withJSONInstruction(tt.in).System; got != tt.wantSystem {
				t.Errorf("System = %q, want %q", got, tt.wantSystem)
			}
		})
	}
}

func TestRetryPolicyDelay(t *testing.T) {
	p := DefaultRetryPolicy()
	want := []time.Duration{500 * time.Millisecond, time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second, 8 * time.Second}
	for i, w := range want {
		if got := p.Delay(i); got != w {
			t.Errorf("Delay(%d) = %s, want %s", i, got, w)
		}
	}
	for i := 0; i < 20; i++ {
		d := p.jittered(0)
		if d < 425*time.Millisecond || d > 575*time.Millisecond {
			t.Fatalf("jittered(0) = %s, outside ±15%%", d)
		}
	}
}

func TestWithRetry(t *testing.T) {
	transient := &TransientError{StatusCode: 503, Err: errors.New("unavailable")}
	fatal := errors.New("bad request")

	tests := []struct {
		name       string
		errs       []error
		wantCalls  int
		wantSleeps int
		wantErr    error
	}{
		{"success first", []error{nil}, 1, 0, nil},
		{"transient then success", []error{transient, nil}, 2, 1, nil},
		{"transient exhausted", []error{transient, transient, transient, nil}, 3, 2, transient},
		{"fatal not retried", []error{fatal, nil}, 1, 0, fatal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			inner := CompleterFunc(func(ctx context.Context, p Prompt) (Completion, error) {
				err := tt.errs[calls]
				calls++
				if err != nil {
					return Completion{}, err
				}
				return Completion{Text: "ok"}, nil
			})
			var slept []time.Duration
			r := WithRetry(inner, DefaultRetryPolicy(), nil).(*retrying)
			r.sleep = func(_ context.Context, d time.Duration) error {
				slept = append(slept, d)
				return nil
			}

			out, err := r.Complete(context.Background(), Prompt{User: "hi"})
			assert.Equal(t, tt.wantCalls, calls)
			assert.Len(t, slept, tt.wantSleeps)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "ok", out.Text)
		})
	}
}

func TestWithRetry_ContextCancelledDuringBackoff(t *testing.T) {
	inner := CompleterFunc(func(ctx context.Context, p Prompt) (Completion, error) {
		return Completion{}, &TransientError{Err: errors.New("reset")}
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := WithRetry(inner, DefaultRetryPolicy(), nil).Complete(ctx, Prompt{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestTransientErrorRetryable(t *testing.T) {
	var r interface{ Retryable() bool }
	err := error(&TransientError{StatusCode: 429, Err: errors.New("slow down")})
	require.True(t, errors.As(err, &r))
	assert.True(t, r.Retryable())
	assert.Contains(t, err.Error(), "status 429")
	assert.True(t, IsTransient(err))
	assert.False(t, IsTransient(errors.New("x")))
}

func newOpenAIServer(t *testing.T, status int, body string, seen *openAIRequest) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("Authorization = %q", got)
		}
		raw, _ := io.ReadAll(r.Body)
		if seen != nil {
			_ = json.Unmarshal(raw, seen)
		}
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
}

func TestOpenAICompleter(t *testing.T) {
	var seen openAIRequest
	srv := newOpenAIServer(t, http.StatusOK, `{
		"model": "gpt-4o-mini-2024",
		"choices": [{"message": {"role": "assistant", "content": "{\"answer\":\"yes\"}"}}],
		"usage": {"prompt_tokens": 42, "completion_tokens": 5}
	}`, &seen)
	defer srv.Close()

	c, err := NewOpenAICompleter(OpenAIConfig{APIKey: "test-key", BaseURL: srv.URL + "/"})
	require.NoError(t, err)

	out, err := c.Complete(context.Background(), Prompt{System: "You are the host.", User: "Is it alive?", JSON: true, Temperature: 0.2})
	require.NoError(t, err)
	assert.Equal(t, `{"answer":"yes"}`, out.Text)
	assert.Equal(t, "gpt-4o-mini-2024", out.Model)
	assert.Equal(t, 42, out.InputTokens)
	assert.Equal(t, 5, out.OutputTokens)

	require.NotNil(t, seen.ResponseFormat)
	assert.Equal(t, "json_object", seen.ResponseFormat.Type)
	require.Len(t, seen.Messages, 2)
	assert.Contains(t, seen.Messages[0].Content, jsonInstruction)
	assert.Equal(t, DefaultOpenAIModel, seen.Model)
}

func TestOpenAICompleter_StatusClassification(t *testing.T) {
	tests := []struct {
		status        int
		wantTransient bool
	}{
		{http.StatusTooManyRequests, true},
		{http.StatusBadGateway, true},
		{http.StatusUnauthorized, false},
		{http.StatusBadRequest, false},
	}
	for _, tt := range tests {
		srv := newOpenAIServer(t, tt.status, `{"error":{"message":"nope"}}`, nil)
		c, err := NewOpenAICompleter(OpenAIConfig{APIKey: "test-key", BaseURL: srv.URL})
		require.NoError(t, err)
		_, err = c.Complete(context.Background(), Prompt{User: "x"})
		srv.Close()
		require.Error(t, err)
		assert.Equal(t, tt.wantTransient, IsTransient(err), "status %d", tt.status)
	}
}

func TestOpenAICompleter_NoChoicesIsEmpty(t *testing.T) {
	srv := newOpenAIServer(t, http.StatusOK, `{"choices": []}`, nil)
	defer srv.Close()
	c, err := NewOpenAICompleter(OpenAIConfig{APIKey: "test-key", BaseURL: srv.URL})
	require.NoError(t, err)
	out, err := c.Complete(context.Background(), Prompt{User: "x"})
	require.NoError(t, err)
	assert.Empty(t, out.Text)
}

func TestNewOpenAICompleter_RequiresKey(t *testing.T) {
	_, err := NewOpenAICompleter(OpenAIConfig{})
	assert.Error(t, err)
}

func TestGeminiCompleter(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"candidates": [{"content": {"role": "model", "parts": [{"text": "{\"type\":\"ask\",\"question_text\":\"Is it alive?\"}"}]}}],
			"usageMetadata": {"promptTokenCount": 12, "candidatesTokenCount": 7}
		}`))
	}))
	defer srv.Close()

	g, err := NewGeminiCompleter(context.Background(), GeminiConfig{APIKey: "test-key", BaseURL: srv.URL})
	require.NoError(t, err)
	assert.Equal(t, DefaultGeminiModel, g.Model())

	out, err := g.Complete(context.Background(), Prompt{System: "Play 20 questions.", User: "Your move.", JSON: true})
	require.NoError(t, err)
	assert.Equal(t, `{"type":"ask","question_text":"Is it alive?"}`, out.Text)
	assert.Equal(t, 12, out.InputTokens)
	assert.Equal(t, 7, out.OutputTokens)
	assert.True(t, strings.HasSuffix(gotPath, DefaultGeminiModel+":generateContent"), "path %s", gotPath)
}

func TestGeminiCompleter_ServerErrorIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"error":{"code":503,"message":"overloaded","status":"UNAVAILABLE"}}`))
	}))
	defer srv.Close()

	g, err := NewGeminiCompleter(context.Background(), GeminiConfig{APIKey: "test-key", BaseURL: srv.URL})
	require.NoError(t, err)
	_, err = g.Complete(context.Background(), Prompt{User: "x"})
	require.Error(t, err)
	assert.True(t, IsTransient(err))
}

type recordingTracer struct {
	observability.NoOpTracer
	mu   sync.Mutex
	gens []observability.GenerationInput
}

func (r *recordingTracer) RecordGeneration(_ observability.SpanContext, gen observability.GenerationInput) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.gens = append(r.gens, gen)
}

func TestTraced(t *testing.T) {
	tr := &recordingTracer{}
	inner := CompleterFunc(func(ctx context.Context, p Prompt) (Completion, error) {
		if p.User == "fail" {
			return Completion{}, errors.New("boom")
		}
		return Completion{Text: "out", InputTokens: 3, OutputTokens: 4}, nil
	})
	c := Traced(inner, tr, "guesser.ask", "m1")

	// No span in context: not recorded.
	_, err := c.Complete(context.Background(), Prompt{User: "hi"})
	require.NoError(t, err)
	assert.Empty(t, tr.gens)

	ctx := observability.WithSpan(context.Background(), observability.SpanContext{SpanID: "s", TraceID: "g"})
	_, err = c.Complete(ctx, Prompt{User: "hi"})
	require.NoError(t, err)
	_, err = c.Complete(ctx, Prompt{User: "fail"})
	require.Error(t, err)

	require.Len(t, tr.gens, 2)
	assert.Equal(t, "guesser.ask", tr.gens[0].Name)
	assert.Equal(t, "m1", tr.gens[0].Model)
	assert.Equal(t, "completed", tr.gens[0].Status)
	assert.Equal(t, 3, tr.gens[0].InputTokens)
	assert.Equal(t, "error", tr.gens[1].Status)
}

func TestNew_UnknownProvider(t *testing.T) {
	_, err := New(context.Background(), routing.ModelConfig{Provider: "nope", Model: "x"}, nil, Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown model provider")
}

func TestNew_OpenAI(t *testing.T) {
	c, err := New(context.Background(), routing.ParseModelSpec("openai:gpt-4o"),
		map[string]ProviderConfig{ProviderOpenAI: {APIKey: "k"}}, Options{Tracer: &observability.NoOpTracer{}, Name: "host.judge"})
	require.NoError(t, err)
	assert.NotNil(t, c)
}
