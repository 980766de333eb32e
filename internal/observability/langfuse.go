package observability

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/andywolf/twentyq/internal/version"
)

const (
	defaultBaseURL = "https://cloud.langfuse.com"
	ingestionPath  = "/api/public/ingestion"

	flushInterval   = 5 * time.Second
	maxBatchSize    = 50
	eventBufferSize = 1024

	sendAttempts = 2
	retryDelay   = 500 * time.Millisecond
)

// LangfuseConfig holds Langfuse connection parameters.
type LangfuseConfig struct {
	PublicKey string `mapstructure:"public_key"`
	SecretKey string `mapstructure:"secret_key"`
	BaseURL   string `mapstructure:"base_url"` // Defaults to https://cloud.langfuse.com
}

// Enabled reports whether both keys are set.
func (c LangfuseConfig) Enabled() bool {
	return c.PublicKey != "" && c.SecretKey != ""
}

// LangfuseTracer maps games onto Langfuse: a game is a trace, each turn a
// span, each model call a generation and each skipped gate step an event.
// Events are queued and posted in batches by a background goroutine; Flush
// and Stop drain the queue synchronously.
type LangfuseTracer struct {
	baseURL    string
	authHeader string
	client     *http.Client
	queue      chan ingestionEvent
	logger     *zap.SugaredLogger
	scrubber   *Scrubber

	wg       sync.WaitGroup
	stopCh   chan struct{}
	stopOnce sync.Once
	drainMu  sync.Mutex
}

// NewLangfuseTracer creates a tracer and starts its flush loop. Prompt and
// output text pass through scrubber before they are queued; a nil scrubber
// uses the default patterns.
func NewLangfuseTracer(cfg LangfuseConfig, logger *zap.Logger, scrubber *Scrubber) *LangfuseTracer {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if scrubber == nil {
		scrubber = NewScrubber()
	}
	scrubber.AddLiteral(cfg.SecretKey)

	t := &LangfuseTracer{
		baseURL:    cfg.BaseURL,
		authHeader: "Basic " + base64.StdEncoding.EncodeToString([]byte(cfg.PublicKey+":"+cfg.SecretKey)),
		client:     &http.Client{Timeout: 10 * time.Second},
		queue:      make(chan ingestionEvent, eventBufferSize),
		logger:     logger.Sugar(),
		scrubber:   scrubber,
		stopCh:     make(chan struct{}),
	}
	t.wg.Add(1)
	go t.flushLoop()
	return t
}

// BaseURL returns the ingestion host.
func (t *LangfuseTracer) BaseURL() string { return t.baseURL }

func gameMetadata(opts TraceOptions) map[string]string {
	return map[string]string{
		"topic":         opts.Topic,
		"guesser_model": opts.GuesserModel,
		"host_model":    opts.HostModel,
	}
}

// StartTrace opens a trace keyed by the game ID, so a game can be looked up
// in Langfuse by the ID printed in results.
func (t *LangfuseTracer) StartTrace(gameID string, opts TraceOptions) TraceContext {
	name := opts.Name
	if name == "" {
		name = "twentyq-game"
	}
	md := gameMetadata(opts)

	t.enqueue("trace-create", traceBody{
		ID:        gameID,
		Name:      name,
		SessionID: opts.SessionID,
		Input:     opts.Topic,
		Metadata:  toAny(md),
	})
	return TraceContext{TraceID: gameID, GameID: gameID, Metadata: md}
}

// StartTurn opens the span for one turn.
func (t *LangfuseTracer) StartTurn(trace TraceContext, turn int, opts SpanOptions) SpanContext {
	span := SpanContext{SpanID: uuid.NewString(), Turn: turn, TraceID: trace.TraceID}

	md := toAny(opts.Metadata)
	md["turn"] = turn
	md["max_turns"] = opts.MaxTurns

	t.enqueue("span-create", observation{
		ID:        span.SpanID,
		TraceID:   span.TraceID,
		Name:      "turn-" + strconv.Itoa(turn),
		Metadata:  md,
		StartTime: now(),
	})
	return span
}

// RecordGeneration records one model call under the turn's span.
func (t *LangfuseTracer) RecordGeneration(span SpanContext, gen GenerationInput) {
	level := ""
	if gen.Status == "error" {
		level = "ERROR"
	}
	t.enqueue("generation-create", observation{
		ID:                  uuid.NewString(),
		TraceID:             span.TraceID,
		ParentObservationID: span.SpanID,
		Name:                gen.Name,
		Model:               gen.Model,
		Input:               t.scrubber.Scrub(gen.Input),
		Output:              t.scrubber.Scrub(gen.Output),
		Usage:               &usage{Input: gen.InputTokens, Output: gen.OutputTokens},
		Level:               level,
		Metadata:            map[string]any{"status": gen.Status, "duration_ms": gen.DurationMs},
		StartTime:           now(),
	})
}

// RecordSkipped records a step that did not call a model, such as an
// assessment bypassed by a hard gate rule.
func (t *LangfuseTracer) RecordSkipped(span SpanContext, component string, reason string) {
	t.enqueue("event-create", observation{
		ID:                  uuid.NewString(),
		TraceID:             span.TraceID,
		ParentObservationID: span.SpanID,
		Name:                component + " skipped",
		Level:               "DEBUG",
		Metadata:            map[string]any{"skip_reason": reason},
		StartTime:           now(),
	})
}

// EndTurn closes a turn span.
func (t *LangfuseTracer) EndTurn(span SpanContext, status string, durationMs int64) {
	t.enqueue("span-update", observation{
		ID:       span.SpanID,
		TraceID:  span.TraceID,
		Metadata: map[string]any{"status": status, "duration_ms": durationMs},
		EndTime:  now(),
	})
}

// CompleteTrace upserts the trace with the game outcome.
func (t *LangfuseTracer) CompleteTrace(trace TraceContext, opts CompleteOptions) {
	md := toAny(trace.Metadata)
	md["success"] = opts.Success
	md["turns_used"] = opts.TurnsUsed
	md["total_input_tokens"] = opts.TotalInputTokens
	md["total_output_tokens"] = opts.TotalOutputTokens

	t.enqueue("trace-create", traceBody{
		ID:       trace.TraceID,
		Output:   opts.Status,
		Metadata: md,
	})
}

// Flush posts everything queued so far.
func (t *LangfuseTracer) Flush(ctx context.Context) error {
	if err := t.drain(ctx); err != nil {
		return fmt.Errorf("langfuse flush: %w", err)
	}
	return nil
}

// Stop ends the flush loop and posts what is left. Later calls only flush.
func (t *LangfuseTracer) Stop(ctx context.Context) error {
	t.stopOnce.Do(func() { close(t.stopCh) })
	t.wg.Wait()
	return t.Flush(ctx)
}

func (t *LangfuseTracer) enqueue(kind string, body any) {
	raw, err := json.Marshal(body)
	if err != nil {
		t.logger.Warnf("Langfuse: could not encode %s: %v", kind, err)
		return
	}
	evt := ingestionEvent{ID: uuid.NewString(), Type: kind, Timestamp: now(), Body: raw}
	select {
	case t.queue <- evt:
	default:
		t.logger.Warnf("Langfuse event buffer full, dropping %s", kind)
	}
}

func (t *LangfuseTracer) flushLoop() {
	defer t.wg.Done()
	ticker := time.NewTicker(flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-t.stopCh:
			t.drainInBackground()
			return
		case <-ticker.C:
			t.drainInBackground()
		}
	}
}

func (t *LangfuseTracer) drainInBackground() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := t.drain(ctx); err != nil {
		t.logger.Warnf("Langfuse batch send failed: %v", err)
	}
}

// drain empties the queue in batches of at most maxBatchSize. A failed
// batch is logged and dropped so later batches still go out; the errors are
// returned together.
func (t *LangfuseTracer) drain(ctx context.Context) error {
	t.drainMu.Lock()
	defer t.drainMu.Unlock()

	var errs []error
	batch := make([]ingestionEvent, 0, maxBatchSize)
	send := func() {
		if len(batch) == 0 {
			return
		}
		if err := t.send(ctx, batch); err != nil {
			errs = append(errs, err)
		}
		batch = batch[:0]
	}

	for {
		select {
		case evt := <-t.queue:
			batch = append(batch, evt)
			if len(batch) == maxBatchSize {
				send()
			}
		default:
			send()
			return errors.Join(errs...)
		}
	}
}

// send posts a batch, retrying once on transport errors, 429 and 5xx.
func (t *LangfuseTracer) send(ctx context.Context, batch []ingestionEvent) error {
	var err error
	for attempt := 1; attempt <= sendAttempts; attempt++ {
		if err = t.post(ctx, batch); err == nil || !retryable(err) || attempt == sendAttempts {
			return err
		}
		t.logger.Warnf("Langfuse batch send failed, retrying: %v", err)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(retryDelay):
		}
	}
	return err
}

// statusError is a non-2xx ingestion response.
type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("langfuse API returned %d: %s", e.code, e.body)
}

func retryable(err error) bool {
	var se *statusError
	if errors.As(err, &se) {
		return se.code == http.StatusTooManyRequests || se.code >= 500
	}
	return true
}

func (t *LangfuseTracer) post(ctx context.Context, batch []ingestionEvent) error {
	body, err := json.Marshal(ingestionPayload{Batch: batch})
	if err != nil {
		return fmt.Errorf("marshal batch: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+ingestionPath, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", t.authHeader)
	req.Header.Set("User-Agent", version.UserAgent())

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if resp.StatusCode >= 400 {
		return &statusError{code: resp.StatusCode, body: string(respBody)}
	}

	// 207 responses list per-event rejections.
	var result ingestionResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		t.logger.Warnf("Langfuse: could not parse response body: %v", err)
		return nil
	}
	for _, e := range result.Errors {
		t.logger.Warnf("Langfuse: event %s rejected (status=%d): %s", e.ID, e.Status, e.Message)
	}
	t.logger.Debugf("Langfuse: batch sent (events=%d, rejected=%d)", len(batch), len(result.Errors))
	return nil
}

func now() string { return time.Now().UTC().Format(time.RFC3339Nano) }

func toAny(m map[string]string) map[string]any {
	out := make(map[string]any, len(m)+4)
	for k, v := range m {
		out[k] = v
	}
	return out
}

type ingestionEvent struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	Timestamp string          `json:"timestamp"`
	Body      json.RawMessage `json:"body"`
}

type ingestionPayload struct {
	Batch []ingestionEvent `json:"batch"`
}

type traceBody struct {
	ID        string         `json:"id"`
	Name      string         `json:"name,omitempty"`
	SessionID string         `json:"sessionId,omitempty"`
	Input     string         `json:"input,omitempty"`
	Output    string         `json:"output,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// observation covers spans, generations and events; Langfuse ignores the
// fields that do not apply to a type.
type observation struct {
	ID                  string         `json:"id"`
	TraceID             string         `json:"traceId"`
	ParentObservationID string         `json:"parentObservationId,omitempty"`
	Name                string         `json:"name,omitempty"`
	Model               string         `json:"model,omitempty"`
	Input               string         `json:"input,omitempty"`
	Output              string         `json:"output,omitempty"`
	Usage               *usage         `json:"usage,omitempty"`
	Level               string         `json:"level,omitempty"`
	Metadata            map[string]any `json:"metadata,omitempty"`
	StartTime           string         `json:"startTime,omitempty"`
	EndTime             string         `json:"endTime,omitempty"`
}

type usage struct {
	Input  int `json:"input"`
	Output int `json:"output"`
}

type ingestionResponse struct {
	Errors []struct {
		ID      string `json:"id"`
		Status  int    `json:"status"`
		Message string `json:"message,omitempty"`
	} `json:"errors"`
}
