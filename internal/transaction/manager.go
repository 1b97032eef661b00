// Package transaction implements the Transaction Manager (spec.md §4.5):
// it is the only component permitted to mutate an encounter.State. Every
// turn is applied to a scratch clone, validated against five invariants,
// and either committed in place of the live state or rolled back with a
// logged reason.
//
// Grounded on the teacher's combatMu-guarded copy-before-mutate pattern in
// internal/gameserver/combat_handler.go and the defensive
// copy(sorted, combatants) in internal/game/combat/engine.go, generalized
// from "copy a slice before sorting" to "clone the whole encounter before
// attempting a turn".
package transaction

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/cory-johannsen/atre/internal/encounter"
)

// Executor is the subset of *rules.Engine the Transaction Manager drives.
// Declared as an interface so fallback tiers (heuristic, default) can share
// the same Apply path as the oracle tier.
type Executor interface {
	Execute(state *encounter.State, actorID string, intent encounter.Intent) (*encounter.MechanicalResult, []encounter.DiceRollLog, string, error)
}

// Manager owns the snapshot/apply/validate/rollback cycle for one
// encounter.
type Manager struct {
	engine Executor
	logger *zap.Logger
}

// NewManager builds a Manager driving engine.
func NewManager(engine Executor, logger *zap.Logger) *Manager {
	return &Manager{engine: engine, logger: logger}
}

// Outcome reports what happened to a single Apply attempt.
type Outcome struct {
	Record     encounter.TurnRecord
	Committed  bool
	ValidationErr error
}

// Apply snapshots state, executes intent against the snapshot via the
// Transaction Manager's Executor, validates the result, and on success
// replaces *state's contents with the mutated snapshot and appends the
// resulting TurnRecord to its log. On failure, *state is left completely
// untouched and the returned Outcome carries the validation or execution
// error for the caller (the Fallback Ladder) to act on.
func (m *Manager) Apply(state *encounter.State, actorID string, intent encounter.Intent, tier encounter.SourceTier) Outcome {
	snapshot := state.Clone()

	mech, diceLog, narrative, err := m.engine.Execute(snapshot, actorID, intent)
	if err != nil {
		rec := encounter.TurnRecord{
			ID:          encounter.NewTurnRecordID(),
			Round:       state.Round,
			CombatantID: actorID,
			Intent:      intent,
			SourceTier:  tier,
			RolledBack:  true,
			Reason:      err.Error(),
		}
		if m.logger != nil {
			m.logger.Warn("turn execution failed, rolling back",
				zap.String("actor", actorID), zap.Error(err))
		}
		return Outcome{Record: rec, Committed: false, ValidationErr: err}
	}

	if verr := Validate(snapshot); verr != nil {
		rec := encounter.TurnRecord{
			ID:          encounter.NewTurnRecordID(),
			Round:       state.Round,
			CombatantID: actorID,
			Intent:      intent,
			DiceRolls:   diceLog,
			Mechanical:  *mech,
			SourceTier:  tier,
			RolledBack:  true,
			Reason:      verr.Error(),
		}
		if m.logger != nil {
			m.logger.Warn("post-state validation failed, rolling back",
				zap.String("actor", actorID), zap.Error(verr))
		}
		return Outcome{Record: rec, Committed: false, ValidationErr: verr}
	}

	rec := encounter.TurnRecord{
		ID:          encounter.NewTurnRecordID(),
		Round:       state.Round,
		CombatantID: actorID,
		Intent:      intent,
		DiceRolls:   diceLog,
		Mechanical:  *mech,
		Narrative:   narrative,
		SourceTier:  tier,
	}
	snapshot.Append(rec)
	*state = *snapshot
	return Outcome{Record: rec, Committed: true}
}

// ValidationError names which of the five invariants failed.
type ValidationError struct {
	Invariant string
	Detail    string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("transaction: invariant %q violated: %s", e.Invariant, e.Detail)
}

// Validate runs the five post-state checks spec.md §4.5 requires before a
// turn may be committed: HP bounds, status/HP consistency, no
// negative-duration conditions, action-economy validity, and ability-tag
// purity (no combatant's OwnedAbilities/CanonicalAbilities drifted out of
// sync, which would indicate ability-bleed corruption slipped past the
// Ability Validator).
func Validate(state *encounter.State) error {
	for _, c := range state.Combatants {
		if c.HP < 0 || c.HP > c.MaxHP {
			return &ValidationError{"hp_bounds", fmt.Sprintf("%s hp=%d max=%d", c.ID, c.HP, c.MaxHP)}
		}
		if c.HP == 0 && c.Status == encounter.StatusOK {
			return &ValidationError{"status_hp_consistency", fmt.Sprintf("%s has 0 hp but status ok", c.ID)}
		}
		if c.HP > 0 && (c.Status == encounter.StatusDead || c.Status == encounter.StatusUnconscious) {
			return &ValidationError{"status_hp_consistency", fmt.Sprintf("%s has %d hp but status %s", c.ID, c.HP, c.Status)}
		}
		for _, ac := range c.Conditions.All() {
			if ac.Def.DurationType == "rounds" && ac.DurationRemaining < 0 {
				return &ValidationError{"condition_duration", fmt.Sprintf("%s condition %s has negative duration", c.ID, ac.Def.ID)}
			}
		}
		if !c.Economy.Valid() {
			return &ValidationError{"action_economy", fmt.Sprintf("%s has negative movement remaining", c.ID)}
		}
		for _, owned := range c.OwnedAbilities {
			if !c.CanonicalAbilities[owned] {
				return &ValidationError{"ability_tag_purity", fmt.Sprintf("%s owns untagged ability %q", c.ID, owned)}
			}
		}
	}
	return nil
}
