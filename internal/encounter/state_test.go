package encounter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func twoSideState() *State {
	kobold := NewCombatant("kobold-1", "Kobold", SideMonster)
	kobold.HP, kobold.MaxHP, kobold.AC = 5, 5, 12
	commoner := NewCombatant("commoner-1", "Commoner", SidePlayer)
	commoner.HP, commoner.MaxHP, commoner.AC = 4, 4, 10
	return NewState([]*Combatant{kobold, commoner})
}

func TestMod(t *testing.T) {
	assert.Equal(t, 0, Mod(10))
	assert.Equal(t, 0, Mod(11))
	assert.Equal(t, 3, Mod(16))
	assert.Equal(t, -1, Mod(9))
	assert.Equal(t, -1, Mod(8))
	assert.Equal(t, -4, Mod(2))
}

func TestNewState_InitialRoundAndTurn(t *testing.T) {
	s := twoSideState()
	assert.Equal(t, 1, s.Round)
	assert.Equal(t, 0, s.TurnIndex)
	cur, err := s.Current()
	require.NoError(t, err)
	assert.Equal(t, "kobold-1", cur.ID)
}

func TestCombatant_ApplyDamageFloorsAtZero(t *testing.T) {
	c := NewCombatant("x", "X", SideMonster)
	c.HP, c.MaxHP = 5, 5
	dealt := c.ApplyDamage(10)
	assert.Equal(t, 5, dealt)
	assert.Equal(t, 0, c.HP)
	assert.GreaterOrEqual(t, c.HP, 0)
}

func TestCombatant_HealClampsToMax(t *testing.T) {
	c := NewCombatant("x", "X", SidePlayer)
	c.HP, c.MaxHP = 2, 10
	healed := c.Heal(50)
	assert.Equal(t, 8, healed)
	assert.Equal(t, 10, c.HP)
}

func TestState_AdvanceTurnWrapsRound(t *testing.T) {
	s := twoSideState()
	s.AdvanceTurn()
	assert.Equal(t, 1, s.TurnIndex)
	assert.Equal(t, 1, s.Round)
	s.AdvanceTurn()
	assert.Equal(t, 0, s.TurnIndex)
	assert.Equal(t, 2, s.Round)
}

func TestState_OverWhenOneSideFullyDown(t *testing.T) {
	s := twoSideState()
	over, _ := s.Over()
	assert.False(t, over)

	s.Combatants["commoner-1"].Status = StatusDead
	over, winner := s.Over()
	assert.True(t, over)
	assert.Equal(t, "monsters", winner)
}

func TestState_Clone_IsIndependent(t *testing.T) {
	s := twoSideState()
	clone := s.Clone()
	clone.Combatants["kobold-1"].HP = 0
	clone.Round = 99
	clone.InitiativeOrder[0] = "mutated"

	assert.Equal(t, 5, s.Combatants["kobold-1"].HP)
	assert.Equal(t, 1, s.Round)
	assert.Equal(t, "kobold-1", s.InitiativeOrder[0])
}

func TestActionEconomy_ResetForTurn(t *testing.T) {
	var e ActionEconomy
	e.Action, e.BonusAction, e.Reaction = false, false, false
	e.MovementRemaining = 0
	e.ResetForTurn(30)
	assert.True(t, e.Action)
	assert.True(t, e.BonusAction)
	assert.True(t, e.Reaction)
	assert.Equal(t, 30, e.MovementRemaining)
}

func TestActionEconomy_SpendMovementDifficultTerrain(t *testing.T) {
	var e ActionEconomy
	e.MovementRemaining = 10
	ok := e.SpendMovement(6, true)
	assert.False(t, ok, "6 feet costs 12 in difficult terrain, exceeding 10 remaining")
	assert.Equal(t, 10, e.MovementRemaining)

	ok = e.SpendMovement(5, true)
	assert.True(t, ok)
	assert.Equal(t, 0, e.MovementRemaining)
}
