package guesser

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"gopkg.in/yaml.v3"
)

// ErrScriptExhausted is returned when a scripted guesser runs out of output.
var ErrScriptExhausted = errors.New("scripted guesser has no output left")

// Script lists raw outputs, consumed in order, per request kind.
type Script struct {
	Assess []string `yaml:"assess"`
	Ask    []string `yaml:"ask"`
	Guess  []string `yaml:"guess"`
}

// LoadScript reads a Script from a YAML file.
func LoadScript(path string) (Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Script{}, fmt.Errorf("failed to read guesser script %s: %w", path, err)
	}
	var s Script
	if err := yaml.Unmarshal(data, &s); err != nil {
		return Script{}, fmt.Errorf("failed to parse guesser script %s: %w", path, err)
	}
	return s, nil
}

// Call records one request made to a Scripted guesser.
type Call struct {
	Kind string
	View View
}

// Scripted replays a Script. It is meant for a single game.
type Scripted struct {
	mu     sync.Mutex
	script Script
	pos    map[string]int
	calls  []Call
}

// NewScripted creates a guesser that replays s.
func NewScripted(s Script) *Scripted {
	return &Scripted{script: s, pos: make(map[string]int)}
}

// Calls returns the requests seen so far.
func (s *Scripted) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Call(nil), s.calls...)
}

func (s *Scripted) next(kind string, queue []string, v View) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, Call{Kind: kind, View: v})
	i := s.pos[kind]
	if i >= len(queue) {
		return "", fmt.Errorf("%s: %w", kind, ErrScriptExhausted)
	}
	s.pos[kind] = i + 1
	return queue[i], nil
}

// Assess returns the next scripted assessment.
func (s *Scripted) Assess(_ context.Context, v View) (string, error) {
	return s.next("assess", s.script.Assess, v)
}

// Ask returns the next scripted question.
func (s *Scripted) Ask(_ context.Context, v View) (string, error) {
	return s.next("ask", s.script.Ask, v)
}

// Guess returns the next scripted guess.
func (s *Scripted) Guess(_ context.Context, v View) (string, error) {
	return s.next("guess", s.script.Guess, v)
}
