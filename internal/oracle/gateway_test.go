package oracle_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cory-johannsen/atre/internal/ability"
	"github.com/cory-johannsen/atre/internal/encounter"
	"github.com/cory-johannsen/atre/internal/oracle"
	"github.com/cory-johannsen/atre/internal/summary"
)

type fakeCompleter struct {
	response string
	err      error
}

func (f *fakeCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	return f.response, f.err
}

func buildActor() *encounter.Combatant {
	a := encounter.NewCombatant("kobold-1", "Kobold", encounter.SideMonster)
	a.HP, a.MaxHP, a.AC = 5, 5, 12
	a.Economy.ResetForTurn(30)
	validator := ability.NewValidator()
	a.OwnedAbilities = validator.CanonicalAbilities(a.Name, a.ID, []string{"bite", "attack"})
	a.CanonicalAbilities = map[string]bool{}
	for _, tag := range a.OwnedAbilities {
		a.CanonicalAbilities[tag] = true
	}
	return a
}

func TestGateway_RequestIntent_HappyPath(t *testing.T) {
	actor := buildActor()
	actor.AbilityProfiles["bite"] = encounter.AbilityProfile{IsAttack: true, IsMelee: true}
	target := encounter.NewCombatant("target-1", "Commoner", encounter.SidePlayer)
	state := encounter.NewState([]*encounter.Combatant{actor, target})

	completer := &fakeCompleter{response: `{"action_type": "attack", "ability_name": "bite", "targets": ["target-1"], "narrative": "snaps its jaws"}`}
	gw := oracle.NewGateway(completer, ability.NewValidator(), nil)

	intent, parsed, err := gw.RequestIntent(context.Background(), state, "irrelevant prompt", actor)
	require.NoError(t, err)
	assert.Equal(t, "strict", parsed.Stage)
	assert.Equal(t, encounter.ActionAttack, intent.ActionType)
	assert.Equal(t, "bite", intent.AbilityName)
	assert.Equal(t, []string{"target-1"}, intent.Targets)
}

func TestGateway_RequestIntent_ParseFailureSurfacesError(t *testing.T) {
	actor := buildActor()
	state := encounter.NewState([]*encounter.Combatant{actor})
	completer := &fakeCompleter{response: ""}
	gw := oracle.NewGateway(completer, ability.NewValidator(), nil)

	_, _, err := gw.RequestIntent(context.Background(), state, "prompt", actor)
	require.Error(t, err)
}

func TestGateway_RequestIntent_RejectsNonCanonicalAbility(t *testing.T) {
	actor := buildActor()
	target := encounter.NewCombatant("target-1", "Commoner", encounter.SidePlayer)
	state := encounter.NewState([]*encounter.Combatant{actor, target})
	completer := &fakeCompleter{response: `{"action_type": "attack", "ability_name": "fireball", "targets": ["target-1"]}`}
	gw := oracle.NewGateway(completer, ability.NewValidator(), nil)

	_, _, err := gw.RequestIntent(context.Background(), state, "prompt", actor)
	require.Error(t, err)
}

func TestGateway_RequestIntent_RejectsFriendlyFire(t *testing.T) {
	actor := buildActor()
	actor.AbilityProfiles["bite"] = encounter.AbilityProfile{IsAttack: true, IsMelee: true}
	ally := encounter.NewCombatant("ally-1", "Kobold Guard", encounter.SideMonster)
	state := encounter.NewState([]*encounter.Combatant{actor, ally})

	completer := &fakeCompleter{response: `{"action_type": "attack", "ability_name": "bite", "targets": ["ally-1"]}`}
	gw := oracle.NewGateway(completer, ability.NewValidator(), nil)

	_, _, err := gw.RequestIntent(context.Background(), state, "prompt", actor)
	require.Error(t, err, "a bad oracle intent naming an ally must never reach the Rules Engine")
}

func TestGateway_BuildPrompt_HidesEnemyHPBands(t *testing.T) {
	actor := buildActor()
	enemy := encounter.NewCombatant("target-1", "Commoner", encounter.SidePlayer)
	enemy.HP, enemy.MaxHP, enemy.AC = 2, 4, 10
	state := encounter.NewState([]*encounter.Combatant{actor, enemy})

	gw := oracle.NewGateway(&fakeCompleter{}, ability.NewValidator(), nil)
	prompt, err := gw.BuildPrompt(state, actor.ID, summary.DefaultPolicy(), true)
	require.NoError(t, err)
	assert.Contains(t, prompt, "bloodied")
	assert.NotContains(t, prompt, "HP 2/4")
}
