// Package rules implements the Rules Engine (spec §4.4): attack
// resolution with advantage/disadvantage and critical range, damage-type
// multipliers, saving throws with legendary resistance, death saves,
// concentration checks, condition mechanical effects, action-economy
// enforcement, opportunity attacks, and recharge rolls.
//
// Grounded on internal/game/combat/resolver.go (ResolveAttack shape) and
// internal/game/combat/round.go (ResolveRound, applyAttackConditions),
// generalized from the teacher's PF2E four-tier outcome model to 5e's
// advantage/disadvantage + critical-range model, and on
// original_source/app/core/rules_engine.py for the damage-type multiplier
// and concentration DC formula.
package rules

import (
	"github.com/cory-johannsen/atre/internal/condition"
	"github.com/cory-johannsen/atre/internal/dice"
	"github.com/cory-johannsen/atre/internal/encounter"
)

// AttackResult captures one resolved attack roll and its damage, before
// the caller applies DamageTotal to the target.
type AttackResult struct {
	AttackerID    string
	TargetID      string
	RawRolls      []int // the one or two d20 draws considered
	AttackRoll    int   // the one actually used (post advantage/disadvantage)
	AttackTotal   int   // AttackRoll + modifiers
	TargetAC      int   // including cover and condition adjustments
	Hit           bool
	Critical      bool
	CriticalMiss  bool
	AutoMiss      bool // full cover
	DamageRolls   []int
	DamageModifier int
	DamageType    encounter.DamageType
	MultiplierKind string // "immune" | "resistant" | "vulnerable" | "none"
	DamageTotal   int // after doubling-on-crit and type multiplier
}

// AttackInput bundles the parameters ResolveAttack needs beyond the two
// combatants themselves.
type AttackInput struct {
	AttackBonus   int
	DamageDice    string // e.g. "1d6"
	DamageBonus   int
	DamageType    encounter.DamageType
	IsMelee       bool
	Flanking      bool
	CriticalRange int // natural roll >= this is a critical hit; 0 defaults to 20
}

// rollD20WithAdvantage rolls one or two d20s depending on advantage and
// disadvantage, returning the die actually used (higher if advantage,
// lower if disadvantage) and every raw roll made. Advantage and
// disadvantage cancel exactly, per spec §4.4.
func rollD20WithAdvantage(src dice.Source, advantage, disadvantage bool) (used int, raw []int) {
	first := src.Intn(20) + 1
	if advantage == disadvantage {
		return first, []int{first}
	}
	second := src.Intn(20) + 1
	raw = []int{first, second}
	if advantage {
		if second > first {
			return second, raw
		}
		return first, raw
	}
	// disadvantage
	if second < first {
		return second, raw
	}
	return first, raw
}

// coverACBonus returns the AC bonus that cover grants the target, and for
// full cover a bonus of 0 with autoMiss=true, per spec §4.4's cover table.
func coverACBonus(cover string) (bonus int, autoMiss bool) {
	switch cover {
	case "half":
		return 2, false
	case "three-quarters":
		return 5, false
	case "full":
		return 0, true
	default:
		return 0, false
	}
}

// ResolveAttack resolves a single attack roll by attacker against target,
// applying advantage/disadvantage from conditions and flanking, cover,
// critical range, and the target's damage-type multiplier. It does not
// mutate either combatant; the caller applies AttackResult.DamageTotal.
func ResolveAttack(attacker, target *encounter.Combatant, in AttackInput, src dice.Source) AttackResult {
	critRange := in.CriticalRange
	if critRange == 0 {
		critRange = 20
	}

	advantage := in.Flanking
	disadvantage := false
	if in.IsMelee && target.Conditions.Has("prone") {
		advantage = true
	}
	if !in.IsMelee && target.Conditions.Has("prone") {
		disadvantage = true
	}
	if condition.GrantsAttackAdvantage(target.Conditions) {
		advantage = true
	}
	if condition.ImposesAttackerDisadvantage(attacker.Conditions) {
		disadvantage = true
	}

	used, raw := rollD20WithAdvantage(src, advantage, disadvantage)

	result := AttackResult{
		AttackerID: attacker.ID,
		TargetID:   target.ID,
		RawRolls:   raw,
		AttackRoll: used,
		DamageType: in.DamageType,
	}

	if used == 1 {
		result.CriticalMiss = true
	}
	if used >= critRange {
		result.Critical = true
	}

	coverBonus, autoMiss := coverACBonus(target.Position.Cover)
	targetAC := target.AC + coverBonus + condition.ACBonus(target.Conditions)
	result.TargetAC = targetAC
	result.AutoMiss = autoMiss

	total := used + in.AttackBonus + condition.AttackBonus(attacker.Conditions)
	result.AttackTotal = total

	if autoMiss {
		result.Hit = false
		return result
	}
	if condition.AutoCritOnHit(target.Conditions) {
		result.Critical = true
	}

	if result.CriticalMiss {
		result.Hit = false
		return result
	}
	result.Hit = result.Critical || total >= targetAC
	if !result.Hit {
		return result
	}

	expr := dice.MustParse(in.DamageDice)
	rolls := dice.Roll(expr, src)
	damage := rolls.Dice
	if result.Critical {
		doubled := make([]int, 0, len(damage)*2)
		doubled = append(doubled, damage...)
		doubled = append(doubled, damage...)
		damage = doubled
	}
	result.DamageRolls = damage
	result.DamageModifier = in.DamageBonus

	raw2 := 0
	for _, d := range damage {
		raw2 += d
	}
	raw2 += in.DamageBonus
	if raw2 < 0 {
		raw2 = 0
	}

	kind := target.DamageMultiplierKind(in.DamageType)
	result.MultiplierKind = kind
	result.DamageTotal = applyMultiplier(raw2, kind)
	return result
}

func applyMultiplier(dmg int, kind string) int {
	switch kind {
	case "immune":
		return 0
	case "resistant":
		half := dmg / 2
		if half < 1 && dmg > 0 {
			half = 1
		}
		return half
	case "vulnerable":
		return dmg * 2
	default:
		return dmg
	}
}
