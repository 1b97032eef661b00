package rules

import "github.com/cory-johannsen/atre/internal/dice"
import "github.com/cory-johannsen/atre/internal/encounter"

// SaveResult captures one saving throw, before legendary resistance may
// override it.
type SaveResult struct {
	Roll              int
	Total             int
	DC                int
	Success           bool
	LegendaryResisted bool
}

// SavingThrow rolls d20 + ability modifier (+ proficiency bonus if
// proficient) against dc. If the roll fails, target has legendary
// resistance remaining, and it has not already resisted this round, the
// failure is converted to a success and the pool is decremented —
// legendary resistance auto-applies on the first failed save of a round,
// not every failed save while the pool lasts, per spec §9's resolution of
// that open question.
func SavingThrow(target *encounter.Combatant, ability string, dc int, src dice.Source) SaveResult {
	roll := src.Intn(20) + 1
	total := roll + target.AbilityMod(ability)
	if target.ProficientSaves[ability] {
		total += target.ProficiencyBonus
	}
	// auto-fail Str/Dex saves while paralyzed, unconscious, or stunned
	if (ability == "strength" || ability == "str" || ability == "dexterity" || ability == "dex") &&
		(target.Conditions.Has("paralyzed") || target.Conditions.Has("unconscious") || target.Conditions.Has("stunned")) {
		total = -1000
	}

	success := total >= dc
	res := SaveResult{Roll: roll, Total: total, DC: dc, Success: success}

	if !success && target.Legendary.Max > 0 && target.Legendary.Used < target.Legendary.Max && !target.Legendary.ResistedThisRound {
		res.Success = true
		res.LegendaryResisted = true
		target.Legendary.Used++
		target.Legendary.ResistedThisRound = true
	}
	return res
}

// ConcentrationDC computes the Con-save DC triggered by damage to a
// concentrating caster: max(10, floor(damage/2)), per spec §4.4.
func ConcentrationDC(damage int) int {
	half := damage / 2
	if half > 10 {
		return half
	}
	return 10
}

// CheckConcentration rolls the caster's concentration save and reports
// whether the concentration-linked effect should be dropped. The caller is
// responsible for clearing ConcentrationOn/ConcentrationAffects on failure.
func CheckConcentration(caster *encounter.Combatant, damage int, src dice.Source) SaveResult {
	return SavingThrow(caster, "constitution", ConcentrationDC(damage), src)
}

// DeathSaveOutcome is the result of one death-save roll, per spec §4.4's
// table: 1 -> two failures, 2-9 -> one failure, 10-19 -> one success,
// 20 -> regain 1 HP and wake.
type DeathSaveOutcome struct {
	Roll         int
	Woke         bool
	Stabilized   bool
	Died         bool
}

// RollDeathSave advances target's death-save counters by one roll and
// reports the outcome. The caller must already have verified target is
// unconscious and not dead.
func RollDeathSave(target *encounter.Combatant, src dice.Source) DeathSaveOutcome {
	roll := src.Intn(20) + 1
	out := DeathSaveOutcome{Roll: roll}

	switch {
	case roll == 20:
		target.DeathSaves = encounter.DeathSaves{}
		target.HP = 1
		target.Status = encounter.StatusOK
		out.Woke = true
		return out
	case roll == 1:
		target.DeathSaves.Failures += 2
	case roll <= 9:
		target.DeathSaves.Failures++
	default:
		target.DeathSaves.Successes++
	}

	if target.DeathSaves.Failures >= 3 {
		target.Status = encounter.StatusDead
		out.Died = true
		return out
	}
	if target.DeathSaves.Successes >= 3 {
		target.Status = encounter.StatusStable
		out.Stabilized = true
	}
	return out
}
