package memory

import (
	"fmt"
	"strings"
)

const contextHeader = "## What You Know So Far\n\n"

// BuildContext renders a budget-aware Markdown summary for the guesser's
// prompt. Sections are rendered in priority order (history, scratchpad,
// attempted guesses) and rendering stops at the first section that would
// exceed the context budget.
func (m *Memory) BuildContext() string {
	sections := []string{
		m.historySection(),
		m.scratchpadSection(),
		m.attemptedSection(),
	}

	var sb strings.Builder
	sb.WriteString(contextHeader)
	used := sb.Len()

	for _, section := range sections {
		if section == "" {
			continue
		}
		if used+len(section) > m.cfg.ContextBudget {
			break
		}
		sb.WriteString(section)
		used += len(section)
	}

	result := sb.String()
	if result == contextHeader {
		return ""
	}
	return result
}

func (m *Memory) historySection() string {
	if len(m.history) == 0 {
		return ""
	}
	start := 0
	if len(m.history) > m.cfg.HistoryWindow {
		start = len(m.history) - m.cfg.HistoryWindow
	}
	var sb strings.Builder
	sb.WriteString("### Questions and Answers\n")
	for i, qa := range m.history[start:] {
		fmt.Fprintf(&sb, "%d. %s -> %s\n", start+i+1, qa.Question, qa.Answer)
	}
	sb.WriteString("\n")
	return sb.String()
}

func (m *Memory) scratchpadSection() string {
	if len(m.scratchpad) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.WriteString("### Scratchpad\n")
	for _, n := range m.scratchpad {
		fmt.Fprintf(&sb, "- %s: %s\n", n.Kind, n.Text)
	}
	sb.WriteString("\n")
	return sb.String()
}

func (m *Memory) attemptedSection() string {
	if len(m.attemptedOrder) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.WriteString("### Wrong Guesses (do not repeat)\n")
	for _, g := range m.attemptedOrder {
		fmt.Fprintf(&sb, "- %s\n", g)
	}
	sb.WriteString("\n")
	return sb.String()
}
