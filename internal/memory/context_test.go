package memory

import (
	"fmt"
	"strings"
	"testing"

	"github.com/andywolf/twentyq/internal/action"
)

func TestBuildContext_Empty(t *testing.T) {
	m := New(Config{})
	if ctx := m.BuildContext(); ctx != "" {
		t.Errorf("expected empty context for empty memory, got %q", ctx)
	}
}

func TestBuildContext_SectionOrder(t *testing.T) {
	m := New(Config{ContextBudget: 5000})
	m.RecordAsk("Is it alive?")
	m.RecordQA("Is it alive?", action.AnswerYes, "")
	m.AddThought("living thing, narrow to animals")
	m.RecordGuessAttempt("dog")

	ctx := m.BuildContext()

	if !strings.Contains(ctx, "## What You Know So Far") {
		t.Error("missing header")
	}
	qaIdx := strings.Index(ctx, "### Questions and Answers")
	padIdx := strings.Index(ctx, "### Scratchpad")
	guessIdx := strings.Index(ctx, "### Wrong Guesses")
	if qaIdx < 0 || padIdx < 0 || guessIdx < 0 {
		t.Fatalf("missing section in context:\n%s", ctx)
	}
	if qaIdx > padIdx || padIdx > guessIdx {
		t.Error("sections out of priority order")
	}
	if !strings.Contains(ctx, "1. Is it alive? -> yes") {
		t.Error("missing rendered QA pair")
	}
}

func TestBuildContext_HistoryWindow(t *testing.T) {
	m := New(Config{HistoryWindow: 2, ContextBudget: 5000})
	for i := 1; i <= 4; i++ {
		m.RecordQA(fmt.Sprintf("question %d?", i), action.AnswerNo, "")
	}

	ctx := m.BuildContext()
	if strings.Contains(ctx, "2. question 2?") {
		t.Error("question outside the window should not be numbered in history")
	}
	if !strings.Contains(ctx, "3. question 3? -> no") || !strings.Contains(ctx, "4. question 4? -> no") {
		t.Errorf("expected last two pairs with absolute numbering, got:\n%s", ctx)
	}
}

func TestBuildContext_RespectsBudget(t *testing.T) {
	m := New(Config{ContextBudget: 120})
	m.RecordQA("Is it big?", action.AnswerNo, "")
	m.AddThought(strings.Repeat("x", 150))
	m.RecordGuessAttempt("mouse")

	ctx := m.BuildContext()
	if !strings.Contains(ctx, "### Questions and Answers") {
		t.Error("history should fit within budget")
	}
	if strings.Contains(ctx, "### Scratchpad") || strings.Contains(ctx, "### Wrong Guesses") {
		t.Error("sections after an oversized one should be cut")
	}
	if len(ctx) > 120 {
		t.Errorf("context exceeds budget: %d chars", len(ctx))
	}
}

func TestBuildContext_NothingFits(t *testing.T) {
	m := New(Config{ContextBudget: 30})
	m.RecordQA(strings.Repeat("long ", 20)+"?", action.AnswerYes, "")
	if ctx := m.BuildContext(); ctx != "" {
		t.Errorf("expected empty context when no section fits, got %q", ctx)
	}
}
