package engine

import "fmt"

// ViolationCode classifies a protocol violation.
type ViolationCode string

const (
	ViolationCooldown          ViolationCode = "cooldown_violation"
	ViolationDoubleAction      ViolationCode = "double_action"
	ViolationTurnOverflow      ViolationCode = "turn_overflow"
	ViolationIllegalTransition ViolationCode = "illegal_transition"
)

// ProtocolViolation is always fatal to the game.
type ProtocolViolation struct {
	Code   ViolationCode `json:"code"`
	Turn   int           `json:"turn"`
	Detail string        `json:"detail,omitempty"`
}

func (e *ProtocolViolation) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("protocol violation %s at turn %d", e.Code, e.Turn)
	}
	return fmt.Sprintf("protocol violation %s at turn %d: %s", e.Code, e.Turn, e.Detail)
}
