package rules

import "errors"

// RulesError is raised when mechanical execution cannot proceed legally:
// an illegal target, an ability-economy violation, or a reference to a
// combatant that no longer exists. Per spec §7, a RulesError triggers
// rollback and demotes the turn to the next Fallback Ladder tier.
type RulesError struct {
	Reason string
}

func (e *RulesError) Error() string { return "rules: " + e.Reason }

func newRulesError(reason string) error { return &RulesError{Reason: reason} }

// ErrFatal names a failure of the minimal-safe-default tier itself, which
// per spec §4.5 must never roll back. No function in this package returns
// it: when a default-tier turn rolls back, the Turn Pipeline Controller
// emits a fatal event and stops.
var ErrFatal = errors.New("rules: default-tier action failed")
