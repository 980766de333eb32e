// Package host implements the Host side of the game: an Oracle that answers
// yes/no questions about a secret topic, backed by a pluggable Judge.
package host

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/andywolf/twentyq/internal/action"
	"github.com/andywolf/twentyq/internal/textnorm"
)

// Judge evaluates a question against the topic under strict IS-A semantics.
type Judge interface {
	Judge(ctx context.Context, topic, question string) (action.Answer, error)
}

// JudgeFunc adapts a function to the Judge interface.
type JudgeFunc func(ctx context.Context, topic, question string) (action.Answer, error)

// Judge calls f.
func (f JudgeFunc) Judge(ctx context.Context, topic, question string) (action.Answer, error) {
	return f(ctx, topic, question)
}

// ScriptedJudge answers from a fixed table keyed by normalized question.
// Questions not in the table are unknown.
type ScriptedJudge struct {
	answers map[string]action.Answer
}

// NewScriptedJudge builds a ScriptedJudge. Keys may be written naturally
// ("Is it an animal?"); they are normalized on construction.
func NewScriptedJudge(answers map[string]action.Answer) *ScriptedJudge {
	m := make(map[string]action.Answer, len(answers))
	for q, a := range answers {
		m[textnorm.Key(q)] = a
	}
	return &ScriptedJudge{answers: m}
}

// LoadScriptedJudge reads a YAML mapping of question to yes/no/unknown.
func LoadScriptedJudge(path string) (*ScriptedJudge, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read host script %s: %w", path, err)
	}
	var raw map[string]string
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse host script %s: %w", path, err)
	}
	answers := make(map[string]action.Answer, len(raw))
	for q, a := range raw {
		ans := action.Answer(strings.ToLower(strings.TrimSpace(a)))
		if !ans.Valid() {
			return nil, fmt.Errorf("host script %s: answer %q for %q is not yes, no or unknown", path, a, q)
		}
		answers[q] = ans
	}
	return NewScriptedJudge(answers), nil
}

// Judge looks the question up. The topic is ignored.
func (s *ScriptedJudge) Judge(_ context.Context, _, question string) (action.Answer, error) {
	if a, ok := s.answers[textnorm.Key(question)]; ok {
		return a, nil
	}
	return action.AnswerUnknown, nil
}

type memoKey struct {
	topic, question string
}

type memo struct {
	next Judge

	mu    sync.Mutex
	cache map[memoKey]action.Answer
}

// Memo wraps j so a repeated question (exact text) about the same topic gets
// the identical answer. Errors are not cached.
func Memo(j Judge) Judge {
	return &memo{next: j, cache: make(map[memoKey]action.Answer)}
}

func (m *memo) Judge(ctx context.Context, topic, question string) (action.Answer, error) {
	key := memoKey{topic, question}
	m.mu.Lock()
	a, ok := m.cache[key]
	m.mu.Unlock()
	if ok {
		return a, nil
	}

	a, err := m.next.Judge(ctx, topic, question)
	if err != nil {
		return a, err
	}

	m.mu.Lock()
	if prev, ok := m.cache[key]; ok {
		a = prev
	} else {
		m.cache[key] = a
	}
	m.mu.Unlock()
	return a, nil
}
