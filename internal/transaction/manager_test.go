package transaction_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cory-johannsen/atre/internal/encounter"
	"github.com/cory-johannsen/atre/internal/transaction"
)

type fakeExecutor struct {
	mech      *encounter.MechanicalResult
	diceLog   []encounter.DiceRollLog
	narrative string
	err       error
	mutate    func(state *encounter.State, actorID string)
}

func (f *fakeExecutor) Execute(state *encounter.State, actorID string, intent encounter.Intent) (*encounter.MechanicalResult, []encounter.DiceRollLog, string, error) {
	if f.err != nil {
		return nil, nil, "", f.err
	}
	if f.mutate != nil {
		f.mutate(state, actorID)
	}
	mech := f.mech
	if mech == nil {
		mech = &encounter.MechanicalResult{}
	}
	return mech, f.diceLog, f.narrative, nil
}

func twoCombatantState() *encounter.State {
	a := encounter.NewCombatant("a", "Alpha", encounter.SidePlayer)
	a.HP, a.MaxHP, a.AC = 10, 10, 12
	a.Economy.ResetForTurn(30)
	b := encounter.NewCombatant("b", "Beta", encounter.SideMonster)
	b.HP, b.MaxHP, b.AC = 8, 8, 10
	b.Economy.ResetForTurn(30)
	return encounter.NewState([]*encounter.Combatant{a, b})
}

func TestManager_Apply_CommitsOnSuccess(t *testing.T) {
	state := twoCombatantState()
	exec := &fakeExecutor{
		mutate: func(s *encounter.State, actorID string) {
			s.Combatants["b"].HP = 3
		},
	}
	mgr := transaction.NewManager(exec, nil)

	intent := encounter.Intent{ActionType: encounter.ActionAttack, AbilityName: "bite", Targets: []string{"b"}}
	outcome := mgr.Apply(state, "a", intent, encounter.TierOracle)

	require.True(t, outcome.Committed)
	assert.Equal(t, 3, state.Combatants["b"].HP)
	require.Len(t, state.Log, 1)
	assert.False(t, state.Log[0].RolledBack)
}

func TestManager_Apply_RollsBackOnExecutionError(t *testing.T) {
	state := twoCombatantState()
	exec := &fakeExecutor{err: assertErr("no mechanical profile")}
	mgr := transaction.NewManager(exec, nil)

	intent := encounter.Intent{ActionType: encounter.ActionAttack, AbilityName: "unknown", Targets: []string{"b"}}
	outcome := mgr.Apply(state, "a", intent, encounter.TierHeuristic)

	require.False(t, outcome.Committed)
	require.Error(t, outcome.ValidationErr)
	assert.Len(t, state.Log, 0)
	assert.Equal(t, 8, state.Combatants["b"].HP)
}

func TestManager_Apply_RollsBackOnInvariantViolation(t *testing.T) {
	state := twoCombatantState()
	exec := &fakeExecutor{
		mutate: func(s *encounter.State, actorID string) {
			// HP above MaxHP violates the hp_bounds invariant.
			s.Combatants["b"].HP = 99
		},
	}
	mgr := transaction.NewManager(exec, nil)

	intent := encounter.Intent{ActionType: encounter.ActionAttack, AbilityName: "bite", Targets: []string{"b"}}
	outcome := mgr.Apply(state, "a", intent, encounter.TierOracle)

	require.False(t, outcome.Committed)
	require.Error(t, outcome.ValidationErr)
	assert.Equal(t, 8, state.Combatants["b"].HP, "original state must be untouched after rollback")
}

func TestValidate_StatusHPConsistency(t *testing.T) {
	state := twoCombatantState()
	state.Combatants["b"].HP = 0
	state.Combatants["b"].Status = encounter.StatusOK

	err := transaction.Validate(state)
	require.Error(t, err)
}

func TestValidate_AbilityTagPurity(t *testing.T) {
	state := twoCombatantState()
	state.Combatants["a"].OwnedAbilities = []string{"[alpha_a_ability]"}
	// CanonicalAbilities left empty: the owned ability was never registered.

	err := transaction.Validate(state)
	require.Error(t, err)
}

func assertErr(msg string) error {
	return &testError{msg}
}

type testError struct{ msg string }

func (e *testError) Error() string { return e.msg }
