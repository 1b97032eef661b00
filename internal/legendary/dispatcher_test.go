package legendary_test

import (
	"testing"

	lua "github.com/yuin/gopher-lua"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cory-johannsen/atre/internal/encounter"
	"github.com/cory-johannsen/atre/internal/legendary"
	"github.com/cory-johannsen/atre/internal/rules"
)

type fakeCaller struct {
	responses map[string]lua.LValue
}

func (f *fakeCaller) CallHook(zoneID, hook string, args ...lua.LValue) (lua.LValue, error) {
	if v, ok := f.responses[hook]; ok {
		return v, nil
	}
	return lua.LNil, nil
}

func dragon() *encounter.Combatant {
	d := encounter.NewCombatant("dragon-1", "Adult Red Dragon", encounter.SideMonster)
	d.HP, d.MaxHP, d.AC = 200, 200, 19
	d.Legendary = encounter.LegendaryPool{Max: 3, Used: 0}
	d.Economy.ResetForTurn(40)
	d.AbilityProfiles["tail attack"] = encounter.AbilityProfile{IsAttack: true, IsMelee: true, DamageDice: "1d8"}
	return d
}

func TestDispatcher_PendingLegendary_SkipsExhaustedAndDead(t *testing.T) {
	d := dragon()
	spent := dragon()
	spent.ID = "dragon-2"
	spent.Legendary.Used = spent.Legendary.Max
	dead := dragon()
	dead.ID = "dragon-3"
	dead.Status = encounter.StatusDead

	state := encounter.NewState([]*encounter.Combatant{d, spent, dead})
	disp := legendary.NewDispatcher(nil, "zone", nil)

	pending := disp.PendingLegendary(state, "")
	require.Len(t, pending, 1)
	assert.Equal(t, "dragon-1", pending[0].ID)
}

func TestDispatcher_ChooseLegendaryAbility_RespectsPreconditionAndPool(t *testing.T) {
	d := dragon()
	caller := &fakeCaller{responses: map[string]lua.LValue{
		"legendary_precondition_tail_attack": lua.LTrue,
	}}
	disp := legendary.NewDispatcher(caller, "zone", nil)

	name, ok := disp.ChooseLegendaryAbility(d)
	require.True(t, ok)
	assert.Equal(t, "tail attack", name)
}

func TestDispatcher_ChooseLegendaryAbility_NoneEligibleWhenPoolExhausted(t *testing.T) {
	d := dragon()
	d.Legendary.Used = d.Legendary.Max
	disp := legendary.NewDispatcher(nil, "zone", nil)

	_, ok := disp.ChooseLegendaryAbility(d)
	assert.False(t, ok)
}

func TestDispatcher_OnAttackResolved_ReactionSpendsOnlyOnce(t *testing.T) {
	attacker := dragon()
	target := dragon()
	target.ID = "target-1"
	caller := &fakeCaller{responses: map[string]lua.LValue{
		"reaction_on_attack": lua.LTrue,
	}}
	disp := legendary.NewDispatcher(caller, "zone", nil)

	ar := rules.AttackResult{Hit: true}
	disp.OnAttackResolved(1, attacker, target, &ar)

	assert.False(t, attacker.Economy.Reaction, "attacker's reaction is spent by the hook")
	assert.True(t, target.Economy.Reaction, "target is not asked once the attacker has reacted")
}

func TestDispatcher_OnAttackResolved_NoopWithoutCaller(t *testing.T) {
	attacker := dragon()
	target := dragon()
	target.ID = "target-1"
	disp := legendary.NewDispatcher(nil, "zone", nil)

	ar := rules.AttackResult{Hit: true}
	disp.OnAttackResolved(1, attacker, target, &ar)

	assert.True(t, attacker.Economy.Reaction)
}
