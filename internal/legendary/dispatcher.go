// Package legendary implements the Legendary & Reaction Dispatcher
// (spec.md §4.8): between-turn legendary-action resolution and the
// synchronous on_attack_resolved/on_spell_cast reaction hooks the Rules
// Engine invokes mid-resolution.
//
// Grounded on internal/game/ai/domain.go + planner.go (Domain, Method,
// Operator, Planner, ScriptCaller.CallHook) and
// internal/scripting/manager.go (sandboxed per-zone Lua VM, CallHook with
// Protect:true swallowing Lua runtime errors into a Warn log) —
// repurposed from "plan an NPC's own turn" to "decide between-turn
// legendary/reaction availability". reaction hooks are new, modeled
// directly on spec.md §4.8.
package legendary

import (
	"sort"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/cory-johannsen/atre/internal/encounter"
	"github.com/cory-johannsen/atre/internal/rules"
)

// ScriptCaller is the subset of *scripting.Manager the Dispatcher needs:
// evaluating a named Lua precondition/reaction hook in a zone's sandboxed
// VM. Declared as an interface so tests can supply a fake without loading
// a real Lua VM.
type ScriptCaller interface {
	CallHook(zoneID, hook string, args ...lua.LValue) (lua.LValue, error)
}

// Dispatcher owns legendary-action iteration between turns and implements
// rules.ReactionHooks for synchronous in-combat reactions.
type Dispatcher struct {
	Caller ScriptCaller
	ZoneID string
	Logger *zap.Logger
}

// NewDispatcher builds a Dispatcher driven by caller's Lua VM for zoneID.
func NewDispatcher(caller ScriptCaller, zoneID string, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{Caller: caller, ZoneID: zoneID, Logger: logger}
}

// PendingLegendary returns every combatant in state, other than exclude,
// that still has legendary actions available this round, in initiative
// order — spec.md §4.8's "iterate combatants with legendary_max > 0 and
// legendary_used < legendary_max" between every other combatant's turn.
func (d *Dispatcher) PendingLegendary(state *encounter.State, exclude string) []*encounter.Combatant {
	var out []*encounter.Combatant
	for _, id := range state.InitiativeOrder {
		c, ok := state.Combatants[id]
		if !ok || c.ID == exclude || c.IsDead() {
			continue
		}
		if c.Legendary.Max > 0 && c.Legendary.Used < c.Legendary.Max {
			out = append(out, c)
		}
	}
	return out
}

// ChooseLegendaryAbility evaluates owner's Lua-scripted preconditions (one
// precondition hook per known legendary ability, named
// "legendary_precondition_<ability>") and returns the first whose
// precondition passes and whose cost fits the remaining pool. Returns
// ok=false if no ability is currently eligible, per spec.md §4.8's
// "prompt the oracle for a legendary-action intent or skip".
func (d *Dispatcher) ChooseLegendaryAbility(owner *encounter.Combatant) (string, bool) {
	names := make([]string, 0, len(owner.AbilityProfiles))
	for name := range owner.AbilityProfiles {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if owner.Legendary.Used+1 > owner.Legendary.Max {
			continue
		}
		ok, err := d.evalPrecondition(owner, name)
		if err != nil {
			if d.Logger != nil {
				d.Logger.Warn("legendary: precondition script error, skipping ability",
					zap.String("owner", owner.ID), zap.String("ability", name), zap.Error(err))
			}
			continue
		}
		if ok {
			return name, true
		}
	}
	return "", false
}

func (d *Dispatcher) evalPrecondition(owner *encounter.Combatant, ability string) (bool, error) {
	if d.Caller == nil {
		return true, nil
	}
	ret, err := d.Caller.CallHook(d.ZoneID, "legendary_precondition_"+sanitizeHookName(ability), lua.LString(owner.ID))
	if err != nil {
		return false, err
	}
	if ret == lua.LNil {
		return true, nil
	}
	return lua.LVAsBool(ret), nil
}

func sanitizeHookName(s string) string {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		if r == ' ' || r == '-' {
			out = append(out, '_')
			continue
		}
		out = append(out, r)
	}
	return string(out)
}

// OnAttackResolved implements rules.ReactionHooks. It offers the scripted
// "reaction_on_attack" hook to the attacker, then the target, skipping one
// that is down or has no reaction available; the first whose hook returns
// truthy spends its reaction and no one else is asked. No other combatant
// is checked. A hook that wants to react returns a
// table rather than plain true/false; the dispatcher reads that table's
// "negate" and "ac_bonus" fields back into result itself, since gopher-lua's
// CallHook is a single-return call and cannot mutate a Go struct from Lua
// directly. negate=true models counterspell-style full negation; ac_bonus
// models a shield-style retroactive AC bump that can turn a hit into a miss
// (never a natural critical, per §4.4's critical rule).
func (d *Dispatcher) OnAttackResolved(round int, attacker, target *encounter.Combatant, result *rules.AttackResult) {
	tbl, reacted := d.tryReaction(round, "reaction_on_attack", attacker, target)
	if !reacted || tbl == nil {
		return
	}
	if lua.LVAsBool(tbl.RawGetString("negate")) {
		result.Hit = false
		result.Critical = false
		result.DamageTotal = 0
		return
	}
	if bonus := int(lua.LVAsNumber(tbl.RawGetString("ac_bonus"))); bonus > 0 {
		result.TargetAC += bonus
		if !result.Critical && result.AttackTotal < result.TargetAC {
			result.Hit = false
			result.DamageTotal = 0
		}
	}
}

// OnSpellCast implements rules.ReactionHooks for saving-throw triggers (e.g.
// counterspell-style reactions keyed off a cast rather than a hit). A
// negate=true reaction table forces the save to succeed.
func (d *Dispatcher) OnSpellCast(round int, caster, target *encounter.Combatant, result *rules.SaveResult) {
	tbl, reacted := d.tryReaction(round, "reaction_on_spell", caster, target)
	if !reacted || tbl == nil {
		return
	}
	if lua.LVAsBool(tbl.RawGetString("negate")) {
		result.Success = true
	}
}

// tryReaction evaluates hook for the first of primary/secondary still able
// to react, spending its reaction the moment the hook returns truthy.
// Returns the hook's return value as a table (nil if it returned a bare
// true/false or wasn't a table) and whether a reaction fired at all.
func (d *Dispatcher) tryReaction(round int, hook string, primary, secondary *encounter.Combatant) (*lua.LTable, bool) {
	if d.Caller == nil {
		return nil, false
	}
	for _, c := range []*encounter.Combatant{primary, secondary} {
		if c == nil || c.IsDown() || !c.Economy.Reaction {
			continue
		}
		ret, err := d.Caller.CallHook(d.ZoneID, hook, lua.LString(c.ID))
		if err != nil {
			if d.Logger != nil {
				d.Logger.Warn("legendary: reaction hook error", zap.String("combatant", c.ID), zap.Error(err))
			}
			continue
		}
		if ret == lua.LNil || !lua.LVAsBool(ret) {
			continue
		}
		c.Economy.SpendReaction()
		tbl, _ := ret.(*lua.LTable)
		return tbl, true
	}
	return nil, false
}
