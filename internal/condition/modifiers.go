package condition

// AttackBonus returns the net attack roll modifier from all active conditions.
// For stackable conditions (e.g. frightened), the penalty is multiplied by
// the current stack count.
//
// Postcondition: Returns <= 0.
func AttackBonus(s *ActiveSet) int {
	total := 0
	for _, ac := range s.conditions {
		if ac.Def.AttackPenalty > 0 {
			total -= ac.Def.AttackPenalty * ac.Stacks
		}
	}
	return total
}

// ACBonus returns the net AC modifier from all active conditions.
// For stackable conditions, the penalty is multiplied by the current stack count.
//
// Postcondition: Returns <= 0.
func ACBonus(s *ActiveSet) int {
	total := 0
	for _, ac := range s.conditions {
		if ac.Def.ACPenalty > 0 {
			total -= ac.Def.ACPenalty * ac.Stacks
		}
	}
	return total
}

// IsActionRestricted reports whether the given action type string is blocked
// by any active condition's RestrictActions list.
func IsActionRestricted(s *ActiveSet, actionType string) bool {
	for _, ac := range s.conditions {
		for _, r := range ac.Def.RestrictActions {
			if r == actionType {
				return true
			}
		}
	}
	return false
}

// StunnedAPReduction returns the number of AP to subtract from the action queue
// this round due to the stunned condition. Equal to the current stunned stack count.
//
// Postcondition: Returns >= 0.
func StunnedAPReduction(s *ActiveSet) int {
	return s.Stacks("stunned")
}

// GrantsAttackAdvantage reports whether attacking this combatant should be
// rolled with advantage: it is restrained, paralyzed, stunned, or
// unconscious. Prone is not in this list; the Rules Engine handles it by
// reach (advantage for melee attacks, disadvantage for ranged ones).
func GrantsAttackAdvantage(s *ActiveSet) bool {
	for _, id := range []string{"restrained", "paralyzed", "stunned", "unconscious"} {
		if s.Has(id) {
			return true
		}
	}
	return false
}

// ImposesAttackerDisadvantage reports whether the attacker is blinded,
// restrained, frightened, or prone, any of which impose disadvantage on its
// own attack rolls. The frightened condition counts whatever its source;
// who caused it is not checked.
func ImposesAttackerDisadvantage(s *ActiveSet) bool {
	for _, id := range []string{"blinded", "restrained", "frightened", "prone"} {
		if s.Has(id) {
			return true
		}
	}
	return false
}

// AutoCritOnHit reports whether any active condition (paralyzed) turns a
// successful hit on this combatant into an automatic critical, per 5e rules.
func AutoCritOnHit(s *ActiveSet) bool {
	return s.Has("paralyzed")
}
