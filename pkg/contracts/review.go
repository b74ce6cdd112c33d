package contracts

import "fmt"

// ReviewAction is the gate's verdict on whether an artifact needs human
// attention. Actions are totally ordered by severity:
// blocked > required > optional > none.
type ReviewAction string

const (
	ReviewNone     ReviewAction = "none"
	ReviewOptional ReviewAction = "optional"
	ReviewRequired ReviewAction = "required"
	ReviewBlocked  ReviewAction = "blocked"
)

// Severity returns the position of the action in the severity order.
func (a ReviewAction) Severity() int {
	switch a {
	case ReviewNone:
		return 0
	case ReviewOptional:
		return 1
	case ReviewRequired:
		return 2
	case ReviewBlocked:
		return 3
	default:
		return -1
	}
}

// AtLeast reports whether a is at least as severe as b.
func (a ReviewAction) AtLeast(b ReviewAction) bool {
	return a.Severity() >= b.Severity()
}

// MaxReviewAction returns the more severe of two actions.
func MaxReviewAction(a, b ReviewAction) ReviewAction {
	if b.Severity() > a.Severity() {
		return b
	}
	return a
}

// ParseReviewAction parses a review action name.
func ParseReviewAction(s string) (ReviewAction, error) {
	a := ReviewAction(s)
	if a.Severity() < 0 {
		return "", fmt.Errorf("unknown review action %q", s)
	}
	return a, nil
}
