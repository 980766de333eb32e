// Package gcp holds the Google Cloud integrations: Secret Manager for provider
// API keys and Cloud Logging for finished-game records.
package gcp

import (
	"context"
	"fmt"
	"sync"

	"cloud.google.com/go/logging"
	"google.golang.org/api/option"

	"github.com/andywolf/twentyq/internal/engine"
	"github.com/andywolf/twentyq/internal/events"
)

// DefaultLogID is the Cloud Logging log name used when none is configured.
const DefaultLogID = "twentyq-games"

// entryLogger is the part of *logging.Logger the sink needs.
type entryLogger interface {
	Log(e logging.Entry)
	Flush() error
}

// CloudLogSink writes one structured Cloud Logging entry per finished game.
type CloudLogSink struct {
	logger entryLogger
	labels map[string]string
	closer func() error

	mu     sync.Mutex
	closed bool
}

var _ engine.Sink = (*CloudLogSink)(nil)

// CloudLogPayload is the JSON payload of each entry.
type CloudLogPayload struct {
	GameID    string             `json:"game_id"`
	Summary   string             `json:"summary"`
	Result    *events.ResultLine `json:"result"`
	Error     string             `json:"error,omitempty"`
	Questions []string           `json:"questions,omitempty"`
	Guesses   []string           `json:"guesses,omitempty"`
}

// NewCloudLogSink connects to Cloud Logging in project. labels are attached
// to every entry.
func NewCloudLogSink(ctx context.Context, project, logID string, labels map[string]string, opts ...option.ClientOption) (*CloudLogSink, error) {
	if project == "" {
		return nil, fmt.Errorf("cloud logging project is required")
	}
	if logID == "" {
		logID = DefaultLogID
	}
	client, err := logging.NewClient(ctx, project, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create cloud logging client: %w", err)
	}
	sink := newCloudLogSink(client.Logger(logID), labels)
	sink.closer = client.Close
	return sink, nil
}

func newCloudLogSink(logger entryLogger, labels map[string]string) *CloudLogSink {
	merged := map[string]string{"component": "twentyq"}
	for k, v := range labels {
		merged[k] = v
	}
	return &CloudLogSink{logger: logger, labels: merged}
}

// Emit logs res. Entries are buffered by the client; Close flushes them.
func (s *CloudLogSink) Emit(_ context.Context, res *engine.GameResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("cloud log sink is closed")
	}

	evs := events.FromResult(res)
	if len(evs) == 0 {
		return fmt.Errorf("no result to log")
	}
	closing := evs[len(evs)-1]

	payload := CloudLogPayload{
		GameID:  res.GameID,
		Summary: closing.Summary,
		Result:  closing.Result,
		Error:   res.Error,
	}
	for _, ev := range evs {
		switch ev.Type {
		case events.EventAsk:
			payload.Questions = append(payload.Questions, ev.Text)
		case events.EventGuess:
			payload.Guesses = append(payload.Guesses, ev.Text)
		}
	}

	labels := make(map[string]string, len(s.labels)+3)
	for k, v := range s.labels {
		labels[k] = v
	}
	labels["game_id"] = res.GameID
	labels["topic"] = res.Topic
	labels["reason"] = string(res.Reason)

	s.logger.Log(logging.Entry{
		Timestamp: res.FinishedAt,
		Severity:  severityFor(res),
		Labels:    labels,
		Payload:   payload,
	})
	return nil
}

// severityFor maps outcomes to severities: wins are INFO, clean losses
// NOTICE, anything that ended on an error WARNING.
func severityFor(res *engine.GameResult) logging.Severity {
	switch {
	case res.Error != "" || res.Incomplete:
		return logging.Warning
	case res.Success:
		return logging.Info
	default:
		return logging.Notice
	}
}

// Close flushes buffered entries and releases the client.
func (s *CloudLogSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true

	err := s.logger.Flush()
	if s.closer != nil {
		if cerr := s.closer(); err == nil {
			err = cerr
		}
	}
	return err
}
