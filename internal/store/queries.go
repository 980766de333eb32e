package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// GameRow is the stored summary of one game.
type GameRow struct {
	ID             string    `json:"id"`
	Topic          string    `json:"topic"`
	Success        bool      `json:"success"`
	TurnsUsed      int       `json:"turns_used"`
	MaxTurns       int       `json:"max_turns"`
	Reason         string    `json:"reason"`
	Incomplete     bool      `json:"incomplete"`
	FinalGuess     string    `json:"final_guess,omitempty"`
	Error          string    `json:"error,omitempty"`
	GuesserModel   string    `json:"guesser_model,omitempty"`
	HostModel      string    `json:"host_model,omitempty"`
	ModelCalls     int       `json:"model_calls"`
	Repairs        int       `json:"repairs"`
	SchemaFailures int       `json:"schema_failures"`
	EmptyFailures  int       `json:"empty_failures"`
	StartedAt      time.Time `json:"started_at"`
	FinishedAt     time.Time `json:"finished_at"`
}

// ActionRow is one stored transcript line.
type ActionRow struct {
	Seq        int       `json:"seq"`
	Turn       int       `json:"turn"`
	Role       string    `json:"role"`
	Kind       string    `json:"kind"`
	Text       string    `json:"text,omitempty"`
	Answer     string    `json:"answer,omitempty"`
	Decision   string    `json:"decision,omitempty"`
	Confidence float64   `json:"confidence,omitempty"`
	Correct    *bool     `json:"correct,omitempty"`
	Error      string    `json:"error,omitempty"`
	At         time.Time `json:"at"`
}

// GameDetail is a game with its transcript.
type GameDetail struct {
	GameRow
	Actions []ActionRow `json:"actions"`
}

// ListFilter narrows ListGames.
type ListFilter struct {
	Topic string
	Limit int
}

const gameColumns = `id, topic, success, turns_used, max_turns, reason, incomplete, final_guess, error,
	guesser_model, host_model, model_calls, repairs, schema_failures, empty_failures, started_at, finished_at`

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanGame(row scanner) (GameRow, error) {
	var g GameRow
	var started, finished string
	err := row.Scan(&g.ID, &g.Topic, &g.Success, &g.TurnsUsed, &g.MaxTurns, &g.Reason, &g.Incomplete,
		&g.FinalGuess, &g.Error, &g.GuesserModel, &g.HostModel,
		&g.ModelCalls, &g.Repairs, &g.SchemaFailures, &g.EmptyFailures, &started, &finished)
	if err != nil {
		return GameRow{}, err
	}
	g.StartedAt = parseTime(started)
	g.FinishedAt = parseTime(finished)
	return g, nil
}

// ListGames returns the most recently finished games first.
func (s *Store) ListGames(ctx context.Context, f ListFilter) ([]GameRow, error) {
	if f.Limit <= 0 {
		f.Limit = DefaultListLimit
	}
	query := `SELECT ` + gameColumns + ` FROM games`
	var args []interface{}
	if f.Topic != "" {
		query += ` WHERE topic = ?`
		args = append(args, f.Topic)
	}
	query += ` ORDER BY finished_at DESC, id LIMIT ?`
	args = append(args, f.Limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query games: %w", err)
	}
	defer rows.Close()

	games := []GameRow{}
	for rows.Next() {
		g, err := scanGame(rows)
		if err != nil {
			return nil, fmt.Errorf("scan game: %w", err)
		}
		games = append(games, g)
	}
	return games, rows.Err()
}

// GetGame returns one game with its actions, or ErrNotFound.
func (s *Store) GetGame(ctx context.Context, id string) (*GameDetail, error) {
	g, err := scanGame(s.db.QueryRowContext(ctx, `SELECT `+gameColumns+` FROM games WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query game %s: %w", id, err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, turn, role, kind, text, answer, decision, confidence, correct, error, at
		FROM actions WHERE game_id = ? ORDER BY seq`, id)
	if err != nil {
		return nil, fmt.Errorf("query actions: %w", err)
	}
	defer rows.Close()

	detail := &GameDetail{GameRow: g, Actions: []ActionRow{}}
	for rows.Next() {
		var a ActionRow
		var correct sql.NullBool
		var at string
		if err := rows.Scan(&a.Seq, &a.Turn, &a.Role, &a.Kind, &a.Text, &a.Answer, &a.Decision,
			&a.Confidence, &correct, &a.Error, &at); err != nil {
			return nil, fmt.Errorf("scan action: %w", err)
		}
		if correct.Valid {
			c := correct.Bool
			a.Correct = &c
		}
		a.At = parseTime(at)
		detail.Actions = append(detail.Actions, a)
	}
	return detail, rows.Err()
}
