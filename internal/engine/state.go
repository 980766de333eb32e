package engine

// State is a turn-engine state.
type State string

const (
	StateInit            State = "INIT"
	StateAwaitingGuesser State = "AWAITING_GUESSER_ACTION"
	StateAwaitingHost    State = "AWAITING_HOST_ANSWER"
	StateTerminal        State = "TERMINAL"
)

// AllStates returns every state in lifecycle order.
func AllStates() []State {
	return []State{StateInit, StateAwaitingGuesser, StateAwaitingHost, StateTerminal}
}

// IsValid reports whether s is a known state.
func (s State) IsValid() bool {
	switch s {
	case StateInit, StateAwaitingGuesser, StateAwaitingHost, StateTerminal:
		return true
	}
	return false
}

// IsTerminal reports whether s ends the game.
func (s State) IsTerminal() bool { return s == StateTerminal }

var transitions = map[State][]State{
	StateInit: {StateAwaitingGuesser},
	// Self-transition on a failed guess.
	StateAwaitingGuesser: {StateAwaitingHost, StateAwaitingGuesser, StateTerminal},
	StateAwaitingHost:    {StateAwaitingGuesser, StateTerminal},
}

// CanTransition reports whether from -> to is allowed.
func CanTransition(from, to State) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

type machine struct {
	state State
	trail []State
}

func newMachine() *machine {
	return &machine{state: StateInit, trail: []State{StateInit}}
}

// move performs a transition; an illegal one leaves the state unchanged.
func (m *machine) move(to State, turn int) error {
	if !CanTransition(m.state, to) {
		return &ProtocolViolation{
			Code:   ViolationIllegalTransition,
			Turn:   turn,
			Detail: string(m.state) + " -> " + string(to),
		}
	}
	m.state = to
	m.trail = append(m.trail, to)
	return nil
}
