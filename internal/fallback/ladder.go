// Package fallback implements the Fallback Ladder (spec.md §4.3): when the
// oracle fails or produces an invalid Intent, try one retry, then a
// deterministic heuristic tactical chooser, then the minimal safe default.
//
// Grounded on internal/game/ai/planner.go's "try options in declared
// order, take the first whose precondition passes" shape — Ladder.Resolve
// is this package's equivalent of Planner.findApplicableMethod, generalized from
// HTN method selection to the ranked target-scoring rule set spec.md
// §4.3 specifies exactly.
package fallback

import (
	"context"

	"go.uber.org/zap"

	"github.com/cory-johannsen/atre/internal/encounter"
)

// Ladder resolves one turn's Intent through the three tiers, tagging the
// result with the tier that produced it.
type Ladder struct {
	Logger *zap.Logger
}

// NewLadder builds a Ladder.
func NewLadder(logger *zap.Logger) *Ladder {
	return &Ladder{Logger: logger}
}

// RetryOraclePrompt builds the oracle-retry prompt: the original prompt
// with an instruction block appended that names validationFailure. It does
// not call the oracle itself; the caller (Pipeline) sends the prompt and
// owns the retry budget, which Ladder does not track across turns.
func RetryOraclePrompt(originalPrompt, validationFailure string) string {
	return originalPrompt + "\n\nYour previous response was invalid: " + validationFailure + "\nRespond again with a corrected JSON object."
}

// Resolve runs the heuristic tier then the default tier, tagging the
// winning Intent's SourceTier. The oracle and oracle-retry tiers are
// driven by the caller (they need ctx and the live Completer); Resolve is
// called only once those have already failed.
func (l *Ladder) Resolve(ctx context.Context, state *encounter.State, actorID string) (encounter.Intent, encounter.SourceTier) {
	actor, ok := state.Combatants[actorID]
	if !ok {
		return encounter.DefaultDodgeIntent(), encounter.TierDefault
	}

	if intent, ok := Heuristic(state, actor); ok {
		if l.Logger != nil {
			l.Logger.Info("fallback: heuristic tier chose an intent",
				zap.String("actor", actorID), zap.String("action_type", string(intent.ActionType)))
		}
		return intent, encounter.TierHeuristic
	}

	if l.Logger != nil {
		l.Logger.Warn("fallback: heuristic tier found nothing usable, emitting default dodge",
			zap.String("actor", actorID))
	}
	return encounter.DefaultDodgeIntent(), encounter.TierDefault
}
