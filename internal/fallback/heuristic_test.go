package fallback_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cory-johannsen/atre/internal/encounter"
	"github.com/cory-johannsen/atre/internal/fallback"
)

func newTestCombatant(id, name string, side encounter.Side, hp, maxHP, ac int) *encounter.Combatant {
	c := encounter.NewCombatant(id, name, side)
	c.HP, c.MaxHP, c.AC = hp, maxHP, ac
	c.Economy.ResetForTurn(30)
	c.Position.DistanceTo = map[string]int{}
	return c
}

func linkDistance(a, b *encounter.Combatant, feet int) {
	a.Position.DistanceTo[b.ID] = feet
	b.Position.DistanceTo[a.ID] = feet
}

func TestHeuristic_SelfHealsWhenLow(t *testing.T) {
	actor := newTestCombatant("kobold", "Kobold", encounter.SideMonster, 1, 5, 12)
	actor.AbilityProfiles["second wind"] = encounter.AbilityProfile{IsSelfHeal: true, HealDice: "1d8"}
	enemy := newTestCombatant("commoner", "Commoner", encounter.SidePlayer, 4, 4, 10)
	linkDistance(actor, enemy, 5)
	state := encounter.NewState([]*encounter.Combatant{actor, enemy})

	intent, ok := fallback.Heuristic(state, actor)
	require.True(t, ok)
	assert.Equal(t, "second wind", intent.AbilityName)
	assert.Equal(t, []string{actor.ID}, intent.Targets)
}

func TestHeuristic_FinishesOffUnconsciousInMeleeReach(t *testing.T) {
	actor := newTestCombatant("kobold", "Kobold", encounter.SideMonster, 5, 5, 12)
	actor.AbilityProfiles["bite"] = encounter.AbilityProfile{IsAttack: true, IsMelee: true, DamageDice: "1d4"}
	enemy := newTestCombatant("commoner", "Commoner", encounter.SidePlayer, 0, 4, 10)
	enemy.Status = encounter.StatusUnconscious
	linkDistance(actor, enemy, 5)
	state := encounter.NewState([]*encounter.Combatant{actor, enemy})

	intent, ok := fallback.Heuristic(state, actor)
	require.True(t, ok)
	assert.Equal(t, encounter.ActionAttack, intent.ActionType)
	assert.Equal(t, "bite", intent.AbilityName)
	assert.Equal(t, []string{enemy.ID}, intent.Targets)
}

func TestHeuristic_PicksHighestScoredTarget(t *testing.T) {
	actor := newTestCombatant("kobold", "Kobold", encounter.SideMonster, 5, 5, 12)
	actor.AbilityProfiles["bite"] = encounter.AbilityProfile{IsAttack: true, IsMelee: true, DamageDice: "1d6"}
	weak := newTestCombatant("weak", "Weakling", encounter.SidePlayer, 1, 10, 8)
	tough := newTestCombatant("tough", "Tank", encounter.SidePlayer, 10, 10, 18)
	linkDistance(actor, weak, 5)
	linkDistance(actor, tough, 5)
	state := encounter.NewState([]*encounter.Combatant{actor, weak, tough})

	intent, ok := fallback.Heuristic(state, actor)
	require.True(t, ok)
	assert.Equal(t, []string{weak.ID}, intent.Targets)
}

func TestHeuristic_DashesWhenNoEnemyInMeleeReach(t *testing.T) {
	actor := newTestCombatant("kobold", "Kobold", encounter.SideMonster, 5, 5, 12)
	enemy := newTestCombatant("commoner", "Commoner", encounter.SidePlayer, 4, 4, 10)
	linkDistance(actor, enemy, 60)
	state := encounter.NewState([]*encounter.Combatant{actor, enemy})

	intent, ok := fallback.Heuristic(state, actor)
	require.True(t, ok)
	assert.Equal(t, encounter.ActionDash, intent.ActionType)
}

func TestHeuristic_DodgesWhenNoTargetsAtAll(t *testing.T) {
	actor := newTestCombatant("kobold", "Kobold", encounter.SideMonster, 5, 5, 12)
	state := encounter.NewState([]*encounter.Combatant{actor})

	intent, ok := fallback.Heuristic(state, actor)
	require.True(t, ok)
	assert.Equal(t, encounter.ActionDodge, intent.ActionType)
}
