package rules

import "github.com/cory-johannsen/atre/internal/encounter"

// ReactionHooks lets a reacting combatant mutate an attack or save result
// synchronously, before the Engine commits it — spec.md §4.8's
// on_attack_resolved/on_spell_cast callbacks (shield, counterspell, and
// similar non-opportunity-attack reactions). A nil Engine.Reactions means
// no reaction dispatcher is wired; the Engine proceeds with the unmodified
// result.
type ReactionHooks interface {
	// OnAttackResolved is called after an attack roll and damage are
	// computed but before damage is applied. Implementations may mutate
	// result in place (e.g. a Shield spell adding +5 AC retroactively and
	// turning a hit into a miss) and should spend the reacting
	// combatant's reaction themselves.
	OnAttackResolved(round int, attacker, target *encounter.Combatant, result *AttackResult)

	// OnSpellCast is called after a saving throw is rolled but before its
	// consequence (damage/condition) is applied.
	OnSpellCast(round int, caster, target *encounter.Combatant, result *SaveResult)
}
