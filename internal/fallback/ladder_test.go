package fallback_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/cory-johannsen/atre/internal/encounter"
	"github.com/cory-johannsen/atre/internal/fallback"
)

func TestLadder_Resolve_TagsHeuristicTier(t *testing.T) {
	actor := newTestCombatant("kobold", "Kobold", encounter.SideMonster, 5, 5, 12)
	enemy := newTestCombatant("commoner", "Commoner", encounter.SidePlayer, 4, 4, 10)
	linkDistance(actor, enemy, 5)
	state := encounter.NewState([]*encounter.Combatant{actor, enemy})

	ladder := fallback.NewLadder(nil)
	intent, tier := ladder.Resolve(context.Background(), state, actor.ID)

	assert.Equal(t, encounter.TierHeuristic, tier)
	assert.NotEmpty(t, intent.ActionType)
}

func TestLadder_Resolve_DefaultsWhenActorUnknown(t *testing.T) {
	state := encounter.NewState([]*encounter.Combatant{newTestCombatant("a", "A", encounter.SidePlayer, 5, 5, 10)})
	ladder := fallback.NewLadder(nil)

	intent, tier := ladder.Resolve(context.Background(), state, "missing")
	assert.Equal(t, encounter.TierDefault, tier)
	assert.Equal(t, encounter.ActionDodge, intent.ActionType)
}

func TestRetryOraclePrompt_AppendsFailureDetail(t *testing.T) {
	out := fallback.RetryOraclePrompt("original", "missing ability_name")
	assert.Contains(t, out, "original")
	assert.Contains(t, out, "missing ability_name")
}
