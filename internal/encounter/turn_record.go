package encounter

import "github.com/google/uuid"

// SourceTier identifies which rung of the Fallback Ladder produced a
// TurnRecord's Intent.
type SourceTier string

const (
	TierOracle      SourceTier = "oracle"
	TierOracleRetry SourceTier = "oracle_retry"
	TierHeuristic   SourceTier = "heuristic"
	TierDefault     SourceTier = "default"
)

// DiceRollLog records one die roll performed during a turn, alongside its
// declared purpose, for inclusion in the TurnRecord.
type DiceRollLog struct {
	Expression string
	Result     int
	Purpose    string
}

// SaveResult records the outcome of one saving throw made during a turn.
type SaveResult struct {
	CombatantID string
	Ability     string
	DC          int
	Roll        int
	Success     bool
}

// DamageEntry records damage applied to one target during a turn.
type DamageEntry struct {
	TargetID string
	Amount   int
	Type     DamageType
}

// ConditionChange records a condition applied to or removed from a
// combatant during a turn.
type ConditionChange struct {
	CombatantID string
	ConditionID string
	Applied     bool // true = applied, false = removed
}

// MechanicalResult bundles everything the Rules Engine produced while
// executing an Intent: damage, condition changes, and saves made.
type MechanicalResult struct {
	Damage     []DamageEntry
	Conditions []ConditionChange
	Saves      []SaveResult
}

// TurnRecord is the immutable, append-only log entry produced once per
// turn (or once per rollback). The combat log is the authoritative history
// of an encounter; replaying every TurnRecord against the initial state
// must reproduce the final state (the round-trip law in spec §8).
type TurnRecord struct {
	ID          string
	Round       int
	CombatantID string
	Intent      Intent
	DiceRolls   []DiceRollLog
	Mechanical  MechanicalResult
	Narrative   string
	SourceTier  SourceTier

	// RolledBack is true when this entry documents a rollback rather than
	// a committed turn; Reason explains why. Mechanical and DiceRolls are
	// empty when execution itself failed and hold the discarded result when
	// post-state validation failed.
	RolledBack bool
	Reason     string
}

// NewTurnRecordID returns a fresh unique identifier for a TurnRecord.
func NewTurnRecordID() string {
	return uuid.NewString()
}
