package events

import (
	"fmt"

	"github.com/andywolf/twentyq/internal/engine"
)

// FromResult converts a finished game into its transcript events: one per
// action record, in order, followed by a single result event.
func FromResult(res *engine.GameResult) []GameEvent {
	if res == nil {
		return nil
	}

	events := make([]GameEvent, 0, len(res.Transcript.Actions)+1)
	for _, rec := range res.Transcript.Actions {
		if converted := fromAction(res.GameID, rec); converted != nil {
			events = append(events, *converted)
		}
	}
	events = append(events, resultEvent(res))
	return events
}

// fromAction converts a single ActionRecord. Unknown kinds are skipped.
func fromAction(gameID string, rec engine.ActionRecord) *GameEvent {
	event := &GameEvent{
		Timestamp: rec.At,
		GameID:    gameID,
		Turn:      rec.Turn,
		Role:      rec.Role,
		Thought:   rec.Thought,
		Decision:  string(rec.Decision),
		Error:     rec.Error,
	}

	switch rec.Kind {
	case engine.KindAsk:
		event.Type = EventAsk
		event.Text = rec.Text
		event.Summary = truncate("Q: "+rec.Text, 100)

	case engine.KindAnswer:
		event.Type = EventAnswer
		event.Answer = string(rec.Answer)
		event.Summary = "A: " + string(rec.Answer)

	case engine.KindGuess:
		event.Type = EventGuess
		event.Text = rec.Text
		event.Confidence = rec.Confidence
		if rec.Grade != nil {
			correct := rec.Grade.Correct
			event.Correct = &correct
		}
		event.Summary = truncate("Guess: "+rec.Text, 100)

	case engine.KindForfeit:
		event.Type = EventForfeit
		event.Summary = truncate("Forfeit: "+rec.Error, 100)

	default:
		return nil
	}

	return event
}

func resultEvent(res *engine.GameResult) GameEvent {
	line := &ResultLine{
		Topic:        res.Topic,
		Success:      res.Success,
		TurnsUsed:    res.TurnsUsed,
		MaxTurns:     res.MaxTurns,
		Reason:       res.Reason,
		Incomplete:   res.Incomplete,
		Stats:        res.Stats,
		DurationMs:   res.Duration().Milliseconds(),
		GuesserModel: res.GuesserModel,
		HostModel:    res.HostModel,
	}
	if res.FinalAction != nil {
		line.FinalGuess = res.FinalAction.Text()
	}
	return GameEvent{
		Timestamp: res.FinishedAt,
		GameID:    res.GameID,
		Turn:      res.TurnsUsed,
		Type:      EventResult,
		Summary:   fmt.Sprintf("%s after %d/%d turns", res.Reason, res.TurnsUsed, res.MaxTurns),
		Error:     res.Error,
		Result:    line,
	}
}

// truncate shortens s to at most maxLen runes, adding "..." if truncated.
func truncate(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-3]) + "..."
}
