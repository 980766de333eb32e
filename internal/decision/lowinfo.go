package decision

import "github.com/andywolf/twentyq/internal/action"

// History is the slice of guesser memory LowInformation reads.
type History interface {
	RecentAnswers(n int) []action.Answer
}

// LowInformation reports whether recent play has stalled: the last window
// answers were all unknown, or a duplicate question was just rejected.
func LowInformation(h History, window int, duplicateRejected bool) bool {
	if duplicateRejected {
		return true
	}
	if window <= 0 {
		return false
	}
	recent := h.RecentAnswers(window)
	if len(recent) < window {
		return false
	}
	for _, a := range recent {
		if a != action.AnswerUnknown {
			return false
		}
	}
	return true
}
