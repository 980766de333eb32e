package observability

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/goleak"
	"go.uber.org/zap"
)

func TestNoOpTracer(t *testing.T) {
	tracer := &NoOpTracer{}

	// All methods should be callable without panic
	trace := tracer.StartTrace("game-1", TraceOptions{Topic: "koala"})
	span := tracer.StartTurn(trace, 0, SpanOptions{MaxTurns: 20})
	tracer.RecordGeneration(span, GenerationInput{
		Name:         "guesser.ask",
		InputTokens:  100,
		OutputTokens: 50,
	})
	tracer.RecordSkipped(span, "guesser.assess", "cooldown")
	tracer.EndTurn(span, "completed", 1000)
	tracer.CompleteTrace(trace, CompleteOptions{Status: "win", Success: true})

	if span.Valid() {
		t.Error("NoOpTracer spans should not be valid")
	}
	if trace.GameID != "game-1" || span.Turn != 0 || span.TraceID != "game-1" {
		t.Errorf("NoOpTracer contexts lost identity: %+v %+v", trace, span)
	}
	if _, ok := SpanFromContext(WithSpan(context.Background(), span)); ok {
		t.Error("NoOpTracer span should not be reported as active")
	}
	if err := tracer.Flush(context.Background()); err != nil {
		t.Errorf("NoOpTracer.Flush() returned error: %v", err)
	}
	if err := tracer.Stop(context.Background()); err != nil {
		t.Errorf("NoOpTracer.Stop() returned error: %v", err)
	}
}

func TestTracerInterfaces(t *testing.T) {
	var _ Tracer = NoOpTracer{}
	var _ Tracer = &NoOpTracer{}
	var _ Tracer = &LangfuseTracer{}
}

func TestSpanContextRoundTrip(t *testing.T) {
	ctx := context.Background()
	if _, ok := SpanFromContext(ctx); ok {
		t.Error("empty context should carry no span")
	}
	ctx = WithSpan(ctx, SpanContext{})
	if _, ok := SpanFromContext(ctx); ok {
		t.Error("invalid span should not be reported")
	}
	span := SpanContext{SpanID: "s1", Turn: 3, TraceID: "g1"}
	got, ok := SpanFromContext(WithSpan(ctx, span))
	if !ok || got != span {
		t.Errorf("SpanFromContext() = %+v, %v", got, ok)
	}
}

func TestLangfuseTracerSendsBatches(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreTopFunction("net/http.(*persistConn).writeLoop"),
		goleak.IgnoreTopFunction("internal/poll.runtime_pollWait"))

	var mu sync.Mutex
	var receivedBatches []ingestionPayload

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != ingestionPath {
			t.Errorf("unexpected path: %s", r.URL.Path)
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		if r.Header.Get("Authorization") == "" {
			t.Error("missing Authorization header")
		}

		body, err := io.ReadAll(r.Body)
		if err != nil {
			t.Errorf("failed to read body: %v", err)
			http.Error(w, "read error", http.StatusInternalServerError)
			return
		}

		var payload ingestionPayload
		if err := json.Unmarshal(body, &payload); err != nil {
			t.Errorf("failed to unmarshal body: %v", err)
			http.Error(w, "parse error", http.StatusBadRequest)
			return
		}

		mu.Lock()
		receivedBatches = append(receivedBatches, payload)
		mu.Unlock()

		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"successes":[],"errors":[]}`))
	}))
	defer server.Close()

	tracer := NewLangfuseTracer(LangfuseConfig{
		PublicKey: "pk-test",
		SecretKey: "sk-test",
		BaseURL:   server.URL,
	}, zap.NewNop(), nil)

	trace := tracer.StartTrace("game-123", TraceOptions{
		Topic:        "koala",
		GuesserModel: "gemini:gemini-2.0-flash",
		SessionID:    "bench-1",
	})

	span := tracer.StartTurn(trace, 0, SpanOptions{MaxTurns: 20})
	tracer.RecordSkipped(span, "guesser.assess", "reserve_final")
	tracer.RecordGeneration(span, GenerationInput{
		Name:         "guesser.ask",
		Model:        "gemini-2.0-flash",
		Input:        "api_key=abcdefghijklmnopqrstuvwxyz0123",
		Output:       `{"type":"ask","question_text":"Is it an animal?"}`,
		InputTokens:  1500,
		OutputTokens: 30,
		Status:       "completed",
		DurationMs:   500,
	})
	tracer.RecordGeneration(span, GenerationInput{
		Name:   "host.judge",
		Model:  "gemini-2.0-flash",
		Status: "completed",
	})
	tracer.EndTurn(span, "ask", 700)
	tracer.CompleteTrace(trace, CompleteOptions{
		Status:            "win",
		Success:           true,
		TurnsUsed:         3,
		TotalInputTokens:  2300,
		TotalOutputTokens: 350,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := tracer.Stop(ctx); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()

	eventTypes := make(map[string]int)
	var generationInputs []string
	for _, batch := range receivedBatches {
		for _, evt := range batch.Batch {
			eventTypes[evt.Type]++
			if evt.Type == "generation-create" {
				var obs observation
				if err := json.Unmarshal(evt.Body, &obs); err != nil {
					t.Fatalf("generation body: %v", err)
				}
				if obs.ParentObservationID == "" || obs.Usage == nil {
					t.Errorf("generation missing parent or usage: %+v", obs)
				}
				generationInputs = append(generationInputs, obs.Input)
			}
		}
	}

	expectations := map[string]int{
		"trace-create":      2, // create + complete
		"span-create":       1,
		"generation-create": 2,
		"event-create":      1,
		"span-update":       1,
	}
	for evtType, expected := range expectations {
		if got := eventTypes[evtType]; got != expected {
			t.Errorf("expected %d %s events, got %d", expected, evtType, got)
		}
	}

	for _, in := range generationInputs {
		if strings.Contains(in, "abcdefghijklmnopqrstuvwxyz0123") {
			t.Errorf("generation input was not scrubbed: %q", in)
		}
	}
}

func TestLangfuseTracerAuthHeader(t *testing.T) {
	var receivedAuth string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		receivedAuth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"successes":[],"errors":[]}`))
	}))
	defer server.Close()

	tracer := NewLangfuseTracer(LangfuseConfig{
		PublicKey: "pk-abc",
		SecretKey: "sk-xyz",
		BaseURL:   server.URL,
	}, nil, nil)

	tracer.StartTrace("game-1", TraceOptions{})

	ctx := context.Background()
	if err := tracer.Flush(ctx); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}
	_ = tracer.Stop(ctx)

	// base64("pk-abc:sk-xyz")
	expectedAuth := "Basic cGstYWJjOnNrLXh5eg=="
	if receivedAuth != expectedAuth {
		t.Errorf("expected auth %q, got %q", expectedAuth, receivedAuth)
	}
}

func TestLangfuseTracerDefaultBaseURL(t *testing.T) {
	tracer := NewLangfuseTracer(LangfuseConfig{PublicKey: "pk", SecretKey: "sk"}, nil, nil)
	defer func() { _ = tracer.Stop(context.Background()) }()

	if tracer.BaseURL() != defaultBaseURL {
		t.Errorf("expected default base URL %q, got %q", defaultBaseURL, tracer.BaseURL())
	}
}

func TestLangfuseTracerAPIError(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":"unauthorized"}`))
	}))
	defer server.Close()

	tracer := NewLangfuseTracer(LangfuseConfig{
		PublicKey: "bad-key",
		SecretKey: "bad-secret",
		BaseURL:   server.URL,
	}, nil, nil)

	tracer.StartTrace("game-1", TraceOptions{})

	if err := tracer.Flush(context.Background()); err == nil {
		t.Error("expected error for 401 response, got nil")
	}
	_ = tracer.Stop(context.Background())
	if n := calls.Load(); n != 1 {
		t.Errorf("401 should not be retried, got %d requests", n)
	}
}

func TestLangfuseTracerRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"successes":[],"errors":[]}`))
	}))
	defer server.Close()

	tracer := NewLangfuseTracer(LangfuseConfig{PublicKey: "pk", SecretKey: "sk", BaseURL: server.URL}, nil, nil)
	defer func() { _ = tracer.Stop(context.Background()) }()

	tracer.StartTrace("game-1", TraceOptions{})
	if err := tracer.Flush(context.Background()); err != nil {
		t.Fatalf("Flush() = %v, want success after retry", err)
	}
	if n := calls.Load(); n != 2 {
		t.Errorf("requests = %d, want 2", n)
	}
}

func TestLangfuseTracerSplitsBatches(t *testing.T) {
	var mu sync.Mutex
	var sizes []int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload ingestionPayload
		_ = json.NewDecoder(r.Body).Decode(&payload)
		mu.Lock()
		sizes = append(sizes, len(payload.Batch))
		mu.Unlock()
		_, _ = w.Write([]byte(`{"successes":[],"errors":[]}`))
	}))
	defer server.Close()

	tracer := NewLangfuseTracer(LangfuseConfig{PublicKey: "pk", SecretKey: "sk", BaseURL: server.URL}, nil, nil)
	trace := tracer.StartTrace("game-1", TraceOptions{})
	for i := 0; i < maxBatchSize+10; i++ {
		tracer.RecordSkipped(SpanContext{SpanID: "s", TraceID: trace.TraceID}, "guesser.assess", "cooldown")
	}
	if err := tracer.Stop(context.Background()); err != nil {
		t.Fatalf("Stop() = %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	total := 0
	for _, n := range sizes {
		if n > maxBatchSize {
			t.Errorf("batch of %d exceeds %d", n, maxBatchSize)
		}
		total += n
	}
	if total != maxBatchSize+11 {
		t.Errorf("sent %d events, want %d", total, maxBatchSize+11)
	}
}

func TestLangfuseTracerContexts(t *testing.T) {
	tracer := NewLangfuseTracer(LangfuseConfig{
		PublicKey: "pk",
		SecretKey: "sk",
		BaseURL:   "http://localhost:1", // Won't connect; we only test context creation
	}, nil, nil)
	defer func() { _ = tracer.Stop(context.Background()) }()

	trace := tracer.StartTrace("game-42", TraceOptions{Topic: "whale"})
	if trace.TraceID != "game-42" || trace.GameID != "game-42" {
		t.Errorf("unexpected trace context %+v", trace)
	}
	if trace.Metadata["topic"] != "whale" {
		t.Errorf("expected topic 'whale', got %q", trace.Metadata["topic"])
	}

	span := tracer.StartTurn(trace, 7, SpanOptions{MaxTurns: 20})
	if span.Turn != 7 {
		t.Errorf("Turn = %d, want 7", span.Turn)
	}
	if span.TraceID != trace.TraceID {
		t.Errorf("expected span TraceID %q, got %q", trace.TraceID, span.TraceID)
	}
	if !span.Valid() {
		t.Error("expected non-empty SpanID")
	}
}

func TestLangfuseConfigEnabled(t *testing.T) {
	if (LangfuseConfig{PublicKey: "pk"}).Enabled() {
		t.Error("config without secret key should be disabled")
	}
	if !(LangfuseConfig{PublicKey: "pk", SecretKey: "sk"}).Enabled() {
		t.Error("config with both keys should be enabled")
	}
}
