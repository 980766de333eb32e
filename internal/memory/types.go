package memory

import "github.com/andywolf/twentyq/internal/action"

// NoteKind tags a scratchpad entry.
type NoteKind string

const (
	Thought     NoteKind = "THOUGHT"
	ActionTaken NoteKind = "ACTION"
	Observation NoteKind = "OBSERVATION"
)

// Note is a single scratchpad entry.
type Note struct {
	Kind NoteKind `json:"kind"`
	Text string   `json:"text"`
}

// QAPair is one question and the host's answer to it.
type QAPair struct {
	Question string        `json:"question"`
	Answer   action.Answer `json:"answer"`
}

// Sizes reports the size of each collection held by a Memory.
type Sizes struct {
	History    int `json:"history"`
	Asked      int `json:"asked"`
	Attempted  int `json:"attempted"`
	Scratchpad int `json:"scratchpad"`
}

// Config holds memory limits.
type Config struct {
	ScratchpadCap int `mapstructure:"scratchpad_cap"`
	HistoryWindow int `mapstructure:"history_window"`
	NoteMaxLen    int `mapstructure:"note_max_len"`
	ContextBudget int `mapstructure:"context_budget"`
}

const (
	DefaultScratchpadCap = 12
	DefaultHistoryWindow = 12
	DefaultNoteMaxLen    = 160
	DefaultContextBudget = 3000
)
