// Package store keeps finished games in a SQLite database: one row per game
// plus its action transcript. It backs the results API.
package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/andywolf/twentyq/internal/engine"
	"github.com/andywolf/twentyq/internal/metrics"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// ErrNotFound is returned when a game does not exist.
var ErrNotFound = errors.New("game not found")

// DefaultListLimit bounds ListGames when no limit is given.
const DefaultListLimit = 50

// Store is a SQLite-backed engine.Sink with read queries. It is safe for
// concurrent use.
type Store struct {
	db     *sql.DB
	logger *zap.SugaredLogger
}

var _ engine.Sink = (*Store)(nil)

// Open opens (creating if missing) the database at path and applies pending
// migrations.
func Open(ctx context.Context, path string, logger *zap.Logger) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("store path is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("mkdir %s: %w", dir, err)
		}
	}

	dsn := "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open results database: %w", err)
	}
	// One writer at a time; SQLite serializes writes anyway.
	db.SetMaxOpenConns(1)

	s := &Store{db: db, logger: logger.Sugar()}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate applies the embedded migrations in lexical order, recording each in
// _migrations so it runs once.
func (s *Store) migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS _migrations (name TEXT PRIMARY KEY)`); err != nil {
		return fmt.Errorf("create _migrations: %w", err)
	}

	files, err := fs.Glob(migrationFS, "migrations/*.sql")
	if err != nil {
		return fmt.Errorf("list migrations: %w", err)
	}
	sort.Strings(files)

	for _, f := range files {
		var done int
		err := s.db.QueryRowContext(ctx, `SELECT 1 FROM _migrations WHERE name = ?`, f).Scan(&done)
		if err == nil {
			continue
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("query _migrations: %w", err)
		}

		body, err := migrationFS.ReadFile(f)
		if err != nil {
			return fmt.Errorf("read %s: %w", f, err)
		}

		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, string(body)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("apply %s: %w", f, err)
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO _migrations(name) VALUES (?)`, f); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("record %s: %w", f, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit %s: %w", f, err)
		}
		s.logger.Infof("Applied migration %s", f)
	}
	return nil
}

// Emit stores a finished game, replacing any earlier row with the same ID.
func (s *Store) Emit(ctx context.Context, res *engine.GameResult) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM actions WHERE game_id = ?`, res.GameID); err != nil {
		return fmt.Errorf("clear actions: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM games WHERE id = ?`, res.GameID); err != nil {
		return fmt.Errorf("clear game: %w", err)
	}

	finalGuess := ""
	if res.FinalAction != nil {
		finalGuess = res.FinalAction.Text()
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO games (id, topic, success, turns_used, max_turns, reason, incomplete, final_guess, error,
			guesser_model, host_model, model_calls, repairs, schema_failures, empty_failures, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		res.GameID, res.Topic, res.Success, res.TurnsUsed, res.MaxTurns, string(res.Reason), res.Incomplete,
		finalGuess, res.Error, res.GuesserModel, res.HostModel,
		res.Stats.ModelCalls, res.Stats.Repairs, res.Stats.SchemaFailures, res.Stats.EmptyFailures,
		formatTime(res.StartedAt), formatTime(res.FinishedAt))
	if err != nil {
		return fmt.Errorf("insert game: %w", err)
	}

	for i, a := range res.Transcript.Actions {
		var correct sql.NullBool
		if a.Grade != nil {
			correct = sql.NullBool{Bool: a.Grade.Correct, Valid: true}
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO actions (game_id, seq, turn, role, kind, text, answer, decision, confidence, correct, error, at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			res.GameID, i, a.Turn, a.Role, a.Kind, a.Text, string(a.Answer), string(a.Decision),
			a.Confidence, correct, a.Error, formatTime(a.At))
		if err != nil {
			return fmt.Errorf("insert action %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit game %s: %w", res.GameID, err)
	}
	return nil
}

// timeLayout has a fixed width so stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

// Summary aggregates every stored game, or one topic when topic is set.
func (s *Store) Summary(ctx context.Context, topic string) (metrics.Summary, error) {
	query := `SELECT topic, success, turns_used, incomplete FROM games`
	var args []interface{}
	if topic != "" {
		query += ` WHERE topic = ?`
		args = append(args, topic)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return metrics.Summary{}, fmt.Errorf("query outcomes: %w", err)
	}
	defer rows.Close()

	var outcomes []metrics.Outcome
	for rows.Next() {
		var o metrics.Outcome
		if err := rows.Scan(&o.Topic, &o.Success, &o.TurnsUsed, &o.Incomplete); err != nil {
			return metrics.Summary{}, fmt.Errorf("scan outcome: %w", err)
		}
		outcomes = append(outcomes, o)
	}
	if err := rows.Err(); err != nil {
		return metrics.Summary{}, err
	}
	return metrics.Summarize(outcomes), nil
}

// Topics returns the distinct stored topics in sorted order.
func (s *Store) Topics(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT topic FROM games ORDER BY topic`)
	if err != nil {
		return nil, fmt.Errorf("query topics: %w", err)
	}
	defer rows.Close()

	var topics []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, err
		}
		topics = append(topics, t)
	}
	return topics, rows.Err()
}
