// Package metrics aggregates game outcomes into win-rate and turn summaries.
package metrics

import (
	"sort"
	"sync"
)

// Outcome is the part of a finished game the aggregator needs.
type Outcome struct {
	Topic      string
	Success    bool
	TurnsUsed  int
	Incomplete bool
}

// Summary is the aggregate over a set of games.
type Summary struct {
	Games         int     `json:"games"`
	Wins          int     `json:"wins"`
	WinRate       float64 `json:"win_rate"`
	MeanTurns     float64 `json:"mean_turns"`
	MeanTurnsWins float64 `json:"mean_turns_wins"`
	Incomplete    int     `json:"incomplete,omitempty"`
}

type tally struct {
	games, wins, incomplete int
	turns, turnsWins        int
}

func (t *tally) add(o Outcome) {
	t.games++
	t.turns += o.TurnsUsed
	if o.Success {
		t.wins++
		t.turnsWins += o.TurnsUsed
	}
	if o.Incomplete {
		t.incomplete++
	}
}

func (t tally) summary() Summary {
	s := Summary{Games: t.games, Wins: t.wins, Incomplete: t.incomplete}
	if t.games > 0 {
		s.WinRate = float64(t.wins) / float64(t.games)
		s.MeanTurns = float64(t.turns) / float64(t.games)
	}
	if t.wins > 0 {
		s.MeanTurnsWins = float64(t.turnsWins) / float64(t.wins)
	}
	return s
}

// Aggregator accumulates outcomes overall and per topic. It is safe for
// concurrent use.
type Aggregator struct {
	mu      sync.Mutex
	total   tally
	byTopic map[string]*tally
}

// NewAggregator creates an empty Aggregator.
func NewAggregator() *Aggregator {
	return &Aggregator{byTopic: make(map[string]*tally)}
}

// Record adds one outcome.
func (a *Aggregator) Record(o Outcome) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.total.add(o)
	t, ok := a.byTopic[o.Topic]
	if !ok {
		t = &tally{}
		a.byTopic[o.Topic] = t
	}
	t.add(o)
}

// Summary returns the aggregate over every recorded game.
func (a *Aggregator) Summary() Summary {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.total.summary()
}

// Topic returns the aggregate for one topic.
func (a *Aggregator) Topic(topic string) Summary {
	a.mu.Lock()
	defer a.mu.Unlock()
	if t, ok := a.byTopic[topic]; ok {
		return t.summary()
	}
	return Summary{}
}

// Topics returns the recorded topics in sorted order.
func (a *Aggregator) Topics() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	topics := make([]string, 0, len(a.byTopic))
	for t := range a.byTopic {
		topics = append(topics, t)
	}
	sort.Strings(topics)
	return topics
}

// Summarize aggregates a fixed list of outcomes.
func Summarize(outcomes []Outcome) Summary {
	var t tally
	for _, o := range outcomes {
		t.add(o)
	}
	return t.summary()
}
