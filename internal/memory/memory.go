// Package memory holds the guesser's per-game state: the question/answer
// history, the sets of asked questions and attempted guesses, and a bounded
// scratchpad of thoughts, actions and observations.
package memory

import (
	"fmt"

	"github.com/andywolf/twentyq/internal/action"
	"github.com/andywolf/twentyq/internal/textnorm"
)

// Memory is owned by a single game and is not safe for concurrent use.
// History, the asked set and the attempted set only grow.
type Memory struct {
	cfg Config

	history        []QAPair
	asked          map[string]struct{}
	attempted      map[string]struct{}
	attemptedOrder []string
	scratchpad     []Note
	evicted        int
	lastWasGuess   bool
}

// New creates an empty Memory, filling unset limits with defaults.
func New(cfg Config) *Memory {
	if cfg.ScratchpadCap <= 0 {
		cfg.ScratchpadCap = DefaultScratchpadCap
	}
	if cfg.HistoryWindow <= 0 {
		cfg.HistoryWindow = DefaultHistoryWindow
	}
	if cfg.NoteMaxLen <= 0 {
		cfg.NoteMaxLen = DefaultNoteMaxLen
	}
	if cfg.ContextBudget <= 0 {
		cfg.ContextBudget = DefaultContextBudget
	}
	return &Memory{
		cfg:       cfg,
		asked:     make(map[string]struct{}),
		attempted: make(map[string]struct{}),
	}
}

// Config returns the effective limits.
func (m *Memory) Config() Config { return m.cfg }

// RecordQA appends an answered question to the history, marks it asked and
// adds an observation note. An empty summary is rendered from the pair.
func (m *Memory) RecordQA(question string, answer action.Answer, summary string) {
	m.history = append(m.history, QAPair{Question: question, Answer: answer})
	m.asked[textnorm.Key(question)] = struct{}{}
	if summary == "" {
		summary = fmt.Sprintf("%q -> %s", question, answer)
	}
	m.addNote(Observation, summary)
}

// RecordAsk notes that the guesser chose to ask and clears the cooldown.
func (m *Memory) RecordAsk(question string) {
	m.lastWasGuess = false
	m.addNote(ActionTaken, fmt.Sprintf("ASK(%q)", question))
}

// RecordGuessAttempt records a wrong guess and starts the cooldown.
func (m *Memory) RecordGuessAttempt(guess string) {
	key := textnorm.NameKey(guess)
	if _, seen := m.attempted[key]; !seen {
		m.attempted[key] = struct{}{}
		m.attemptedOrder = append(m.attemptedOrder, guess)
	}
	m.lastWasGuess = true
	m.addNote(ActionTaken, fmt.Sprintf("GUESS(%q)", guess))
}

// AddThought appends the guesser's free-form reasoning. The text is opaque.
func (m *Memory) AddThought(thought string) {
	if thought == "" {
		return
	}
	m.addNote(Thought, thought)
}

// IsDuplicateQuestion reports whether a question with the same normalized
// form was already asked.
func (m *Memory) IsDuplicateQuestion(q string) bool {
	_, ok := m.asked[textnorm.Key(q)]
	return ok
}

// IsDuplicateGuess reports whether an equivalent guess was already tried.
func (m *Memory) IsDuplicateGuess(g string) bool {
	_, ok := m.attempted[textnorm.NameKey(g)]
	return ok
}

// LastActionWasGuess reports whether the most recent committed action was a
// guess.
func (m *Memory) LastActionWasGuess() bool { return m.lastWasGuess }

// History returns a copy of the full question/answer history.
func (m *Memory) History() []QAPair {
	out := make([]QAPair, len(m.history))
	copy(out, m.history)
	return out
}

// RecentAnswers returns up to n of the most recent answers, oldest first.
func (m *Memory) RecentAnswers(n int) []action.Answer {
	if n > len(m.history) {
		n = len(m.history)
	}
	out := make([]action.Answer, 0, n)
	for _, qa := range m.history[len(m.history)-n:] {
		out = append(out, qa.Answer)
	}
	return out
}

// Scratchpad returns a copy of the retained notes, oldest first.
func (m *Memory) Scratchpad() []Note {
	out := make([]Note, len(m.scratchpad))
	copy(out, m.scratchpad)
	return out
}

// AttemptedGuesses returns the attempted guesses in the order first tried.
func (m *Memory) AttemptedGuesses() []string {
	out := make([]string, len(m.attemptedOrder))
	copy(out, m.attemptedOrder)
	return out
}

// Evicted returns how many scratchpad notes have been dropped by the cap.
func (m *Memory) Evicted() int { return m.evicted }

// Sizes reports collection sizes.
func (m *Memory) Sizes() Sizes {
	return Sizes{
		History:    len(m.history),
		Asked:      len(m.asked),
		Attempted:  len(m.attempted),
		Scratchpad: len(m.scratchpad),
	}
}

func (m *Memory) addNote(kind NoteKind, text string) {
	r := []rune(text)
	if len(r) > m.cfg.NoteMaxLen {
		text = string(r[:m.cfg.NoteMaxLen-1]) + "…"
	}
	m.scratchpad = append(m.scratchpad, Note{Kind: kind, Text: text})
	m.prune()
}

// prune drops the oldest notes when the scratchpad exceeds its cap.
// Returns the number of notes removed.
func (m *Memory) prune() int {
	if len(m.scratchpad) <= m.cfg.ScratchpadCap {
		return 0
	}
	excess := len(m.scratchpad) - m.cfg.ScratchpadCap
	m.scratchpad = append([]Note(nil), m.scratchpad[excess:]...)
	m.evicted += excess
	return excess
}
