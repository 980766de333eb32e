package events

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/andywolf/twentyq/internal/engine"
	"github.com/andywolf/twentyq/internal/textnorm"
)

// FileExt is the extension of transcript files.
const FileExt = ".jsonl"

// FileSink writes one transcript per game to <dir>/<topic>/<game_id>.jsonl.
// Games write to distinct files, so it is safe for concurrent use.
type FileSink struct {
	dir string
}

var _ engine.Sink = (*FileSink)(nil)

// NewFileSink creates a FileSink rooted at dir, creating it if needed.
func NewFileSink(dir string) (*FileSink, error) {
	if dir == "" {
		return nil, fmt.Errorf("events directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create events directory: %w", err)
	}
	return &FileSink{dir: dir}, nil
}

// Dir returns the root directory.
func (s *FileSink) Dir() string { return s.dir }

// PathFor returns the transcript path for a game.
func (s *FileSink) PathFor(topic, gameID string) string {
	return filepath.Join(s.dir, TopicDir(topic), safeName(gameID)+FileExt)
}

// Emit implements engine.Sink.
func (s *FileSink) Emit(_ context.Context, res *engine.GameResult) error {
	path := s.PathFor(res.Topic, res.GameID)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create topic directory: %w", err)
	}
	return WriteEvents(path, FromResult(res))
}

// WriteEvents writes events to path as JSON lines, replacing any existing
// file. Use 0600 since transcripts may hold model reasoning.
func WriteEvents(path string, events []GameEvent) error {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("failed to open events file: %w", err)
	}
	writer := bufio.NewWriter(file)

	for _, event := range events {
		data, err := json.Marshal(event)
		if err != nil {
			_ = file.Close()
			return fmt.Errorf("failed to marshal event: %w", err)
		}
		if _, err := writer.Write(data); err != nil {
			_ = file.Close()
			return fmt.Errorf("failed to write event: %w", err)
		}
		if err := writer.WriteByte('\n'); err != nil {
			_ = file.Close()
			return fmt.Errorf("failed to write newline: %w", err)
		}
	}

	if err := writer.Flush(); err != nil {
		_ = file.Close()
		return fmt.Errorf("failed to flush events: %w", err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("failed to close events file: %w", err)
	}
	return nil
}

// TopicDir maps a topic onto a directory name: normalized words joined by
// hyphens. Topics with no letters or digits share "_".
func TopicDir(topic string) string {
	key := textnorm.Key(topic)
	if key == "" {
		return "_"
	}
	return strings.ReplaceAll(key, " ", "-")
}

func safeName(id string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		}
		return '_'
	}, id)
}

// ReadEvents reads all events from a JSONL file.
func ReadEvents(path string) ([]GameEvent, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open events file: %w", err)
	}
	defer func() { _ = file.Close() }()

	var events []GameEvent
	scanner := bufio.NewScanner(file)

	// Set a larger buffer for potentially large JSON lines (1MB max)
	const maxLineSize = 1024 * 1024
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var event GameEvent
		if err := json.Unmarshal(line, &event); err != nil {
			return nil, fmt.Errorf("failed to parse event on line %d: %w", lineNum, err)
		}
		events = append(events, event)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read events file: %w", err)
	}

	return events, nil
}

// FilterByType filters events by event type.
func FilterByType(events []GameEvent, types ...EventType) []GameEvent {
	if len(types) == 0 {
		return events
	}

	typeSet := make(map[EventType]bool)
	for _, t := range types {
		typeSet[t] = true
	}

	var filtered []GameEvent
	for _, event := range events {
		if typeSet[event.Type] {
			filtered = append(filtered, event)
		}
	}
	return filtered
}

// FilterByTurn filters events by turn. A negative turn returns all events.
func FilterByTurn(events []GameEvent, turn int) []GameEvent {
	if turn < 0 {
		return events
	}

	var filtered []GameEvent
	for _, event := range events {
		if event.Turn == turn {
			filtered = append(filtered, event)
		}
	}
	return filtered
}
