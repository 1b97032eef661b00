package rules

import (
	"github.com/cory-johannsen/atre/internal/condition"
	"github.com/cory-johannsen/atre/internal/encounter"
)

// opportunityReachFeet is the default, reach-weapons-excluded melee reach
// a hostile combatant threatens, per spec §4.4.
const opportunityReachFeet = 5

// checkOpportunityAttacks resolves one opportunity attack for every living
// hostile combatant that currently threatens actor within reach, has a
// reaction available, and is not being engaged by this intent's own
// targets. The Disengage action never provokes. Damage is applied
// immediately; if it drops actor to 0 HP the caller must not spend actor's
// remaining movement (the mover never reaches its destination).
//
// Grounded on original_source/app/combat/action_economy.py's
// check_opportunity_attacks and improved_combat_resolver.py's
// _process_opportunity_attacks, generalized from their distance-snapshot
// comparison to this engine's single movement-cost spend.
func (e *Engine) checkOpportunityAttacks(state *encounter.State, actor *encounter.Combatant, intent encounter.Intent, result *encounter.MechanicalResult, diceLog *[]encounter.DiceRollLog) {
	if intent.ActionType == encounter.ActionDisengage {
		return
	}

	engaging := make(map[string]bool, len(intent.Targets))
	for _, id := range intent.Targets {
		engaging[id] = true
	}

	for _, id := range state.InitiativeOrder {
		hostile := state.Combatants[id]
		if hostile == nil || hostile.ID == actor.ID || hostile.Side == actor.Side {
			continue
		}
		if hostile.IsDown() || engaging[hostile.ID] {
			continue
		}
		if actor.Position.Distance(hostile.ID) > opportunityReachFeet {
			continue
		}
		if condition.IsActionRestricted(hostile.Conditions, "reaction") {
			continue
		}
		profile, ok := meleeAttackProfile(hostile)
		if !ok {
			continue
		}
		if !hostile.Economy.SpendReaction() {
			continue
		}

		ar := ResolveAttack(hostile, actor, AttackInput{
			AttackBonus:   profile.AttackBonus,
			DamageDice:    profile.DamageDice,
			DamageBonus:   profile.DamageBonus,
			DamageType:    profile.DamageType,
			IsMelee:       true,
			CriticalRange: e.CriticalRange,
		}, e.Dice)

		*diceLog = append(*diceLog, encounter.DiceRollLog{Expression: "1d20", Result: ar.AttackRoll, Purpose: "opportunity_attack"})
		if ar.Hit {
			*diceLog = append(*diceLog, encounter.DiceRollLog{Expression: profile.DamageDice, Result: ar.DamageTotal, Purpose: "opportunity_attack_damage"})
			ApplyDamage(actor, ar.DamageTotal)
			result.Damage = append(result.Damage, encounter.DamageEntry{TargetID: actor.ID, Amount: ar.DamageTotal, Type: profile.DamageType})
		}
		if actor.IsDown() {
			return
		}
	}
}

// meleeAttackProfile returns c's reach weapon for an opportunity attack: the
// melee attack profile with the lexicographically smallest ability name, so
// the choice is deterministic regardless of Go's map iteration order when a
// combatant owns more than one melee attack. AbilityProfiles is always keyed
// by the untagged ability name, independent of whatever canonical tag
// OwnedAbilities carries.
func meleeAttackProfile(c *encounter.Combatant) (encounter.AbilityProfile, bool) {
	var bestName string
	var best encounter.AbilityProfile
	found := false
	for name, p := range c.AbilityProfiles {
		if !p.IsAttack || !p.IsMelee {
			continue
		}
		if !found || name < bestName {
			bestName, best, found = name, p, true
		}
	}
	return best, found
}
