package guesser

import (
	"context"
	"strconv"

	"github.com/andywolf/twentyq/internal/llm"
	"github.com/andywolf/twentyq/internal/prompt"
)

// LLMConfig tunes the model-backed guesser.
type LLMConfig struct {
	Temperature       float32 `mapstructure:"temperature"`
	MaxTokens         int     `mapstructure:"max_tokens"`
	QuestionWordLimit int     `mapstructure:"-"`
	GuessWordLimit    int     `mapstructure:"-"`
}

// LLM is a ReAct-style guesser: each request carries the rendered memory
// (history, scratchpad, wrong guesses) and asks for a thought alongside the
// action.
type LLM struct {
	completer llm.Completer
	prompts   *prompt.Loader
	cfg       LLMConfig
}

// NewLLM creates a model-backed guesser. A nil loader uses the embedded
// templates.
func NewLLM(c llm.Completer, prompts *prompt.Loader, cfg LLMConfig) *LLM {
	if prompts == nil {
		prompts = prompt.NewLoader("")
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 256
	}
	if cfg.QuestionWordLimit <= 0 {
		cfg.QuestionWordLimit = 12
	}
	if cfg.GuessWordLimit <= 0 {
		cfg.GuessWordLimit = 2
	}
	return &LLM{completer: c, prompts: prompts, cfg: cfg}
}

// Assess asks the model for its best candidate and the gate flags.
func (g *LLM) Assess(ctx context.Context, v View) (string, error) {
	return g.complete(ctx, prompt.GuesserAssess, v, nil)
}

// Ask asks the model for the next question.
func (g *LLM) Ask(ctx context.Context, v View) (string, error) {
	hint := ""
	if v.ChangeDimension {
		hint = ChangeDimensionHint
	}
	return g.complete(ctx, prompt.GuesserAsk, v, map[string]string{"hint": hint})
}

// Guess asks the model for a guess.
func (g *LLM) Guess(ctx context.Context, v View) (string, error) {
	return g.complete(ctx, prompt.GuesserGuess, v, nil)
}

func (g *LLM) complete(ctx context.Context, tmpl string, v View, extra map[string]string) (string, error) {
	base := map[string]string{
		"max_turns":           strconv.Itoa(v.MaxTurns),
		"turn":                strconv.Itoa(v.Turn + 1),
		"question_word_limit": strconv.Itoa(g.cfg.QuestionWordLimit),
		"guess_word_limit":    strconv.Itoa(g.cfg.GuessWordLimit),
		"context":             v.Memory.BuildContext(),
		"feedback":            prompt.FeedbackLine(v.Feedback),
		"hint":                "",
	}
	vars := prompt.MergeVariables(base, extra)

	system, err := g.prompts.Render(prompt.GuesserSystem, vars)
	if err != nil {
		return "", err
	}
	user, err := g.prompts.Render(tmpl, vars)
	if err != nil {
		return "", err
	}

	out, err := g.completer.Complete(ctx, llm.Prompt{
		System:      system,
		User:        user,
		Temperature: g.cfg.Temperature,
		MaxTokens:   g.cfg.MaxTokens,
		JSON:        true,
	})
	return out.Text, err
}
