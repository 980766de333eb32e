package host

import (
	"context"

	"github.com/andywolf/twentyq/internal/action"
	"github.com/andywolf/twentyq/internal/llm"
	"github.com/andywolf/twentyq/internal/prompt"
)

// LLMJudge asks a model to answer the question and validates the reply
// through the schema pipeline.
type LLMJudge struct {
	completer llm.Completer
	schema    *action.Schema
	budget    action.Budget
	prompts   *prompt.Loader
}

// NewLLMJudge creates an LLMJudge. A nil schema or loader uses the defaults.
func NewLLMJudge(c llm.Completer, schema *action.Schema, budget action.Budget, prompts *prompt.Loader) *LLMJudge {
	if schema == nil {
		schema = action.NewSchema(action.Config{})
	}
	if prompts == nil {
		prompts = prompt.NewLoader("")
	}
	return &LLMJudge{completer: c, schema: schema, budget: budget, prompts: prompts}
}

// Judge implements Judge.
func (j *LLMJudge) Judge(ctx context.Context, topic, question string) (action.Answer, error) {
	system, err := j.prompts.Render(prompt.HostSystem, nil)
	if err != nil {
		return "", err
	}

	call := func(ctx context.Context, feedback string) (string, error) {
		user, err := j.prompts.Render(prompt.HostJudge, map[string]string{
			"topic":    topic,
			"question": question,
			"feedback": prompt.FeedbackLine(feedback),
		})
		if err != nil {
			return "", err
		}
		out, err := j.completer.Complete(ctx, llm.Prompt{
			System:    system,
			User:      user,
			MaxTokens: 64,
			JSON:      true,
		})
		return out.Text, err
	}

	a, _, err := action.Obtain(ctx, j.budget, call, j.schema.ParseAnswer)
	return a, err
}
