package rules

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/cory-johannsen/atre/internal/condition"
	"github.com/cory-johannsen/atre/internal/dice"
	"github.com/cory-johannsen/atre/internal/encounter"
)

// Engine executes a validated Intent against an encounter.State, producing
// the MechanicalResult the Transaction Manager will validate and commit
// (or roll back). Engine never invents mechanical numbers itself: attack
// bonuses, damage dice, and save DCs all come from the acting combatant's
// AbilityProfiles, loaded by the content layer before resolution starts.
type Engine struct {
	Dice          dice.Source
	Logger        *zap.Logger
	CriticalRange int

	// Reactions, if set, is consulted synchronously whenever an attack or
	// save resolves, giving a reacting combatant the chance to mutate the
	// in-flight result before it is committed (spec.md §4.8).
	Reactions ReactionHooks
}

// NewEngine builds an Engine. criticalRange is the minimum natural d20
// roll counted as a critical hit (20 by default, 19 with
// improved-critical).
func NewEngine(src dice.Source, logger *zap.Logger, criticalRange int) *Engine {
	if criticalRange == 0 {
		criticalRange = 20
	}
	return &Engine{Dice: src, Logger: logger, CriticalRange: criticalRange}
}

// Execute runs intent on behalf of actorID against state, returning the
// mechanical results and dice log for the TurnRecord. On any rules
// violation it returns a *RulesError and makes no guarantee about partial
// mutation — the Transaction Manager must only call Execute against a
// scratch copy of state and discard it on error.
func (e *Engine) Execute(state *encounter.State, actorID string, intent encounter.Intent) (*encounter.MechanicalResult, []encounter.DiceRollLog, string, error) {
	actor, ok := state.Combatants[actorID]
	if !ok {
		return nil, nil, "", newRulesError(fmt.Sprintf("unknown actor %q", actorID))
	}
	if actor.IsDown() {
		return nil, nil, "", newRulesError(fmt.Sprintf("actor %q cannot act while %s", actorID, actor.Status))
	}

	result := &encounter.MechanicalResult{}
	var diceLog []encounter.DiceRollLog
	narrative := intent.Narrative

	if err := e.spendEconomy(state, actor, intent, result, &diceLog); err != nil {
		return nil, nil, "", err
	}

	if actor.IsDown() {
		// An opportunity attack dropped the actor before its movement
		// finished; the rest of the turn's action never happens, but the
		// opportunity attack's damage still commits.
		return result, diceLog, narrative, nil
	}

	switch intent.ActionType {
	case encounter.ActionAttack, encounter.ActionSpell, encounter.ActionCantrip, encounter.ActionLegendary:
		if err := e.executeAbility(state, actor, intent, result, &diceLog); err != nil {
			return nil, nil, "", err
		}
	case encounter.ActionDash:
		actor.Economy.MovementRemaining += actor.Speed
	case encounter.ActionRechargeAbility:
		recharged := RollRecharge(actor, "1d6", state.Round, e.Dice)
		if len(recharged) > 0 {
			narrative = fmt.Sprintf("%s recharges: %v", actor.Name, recharged)
		}
	case encounter.ActionDodge, encounter.ActionDisengage, encounter.ActionHelp, encounter.ActionHide, encounter.ActionReady, encounter.ActionUseItem:
		// no mechanical effect beyond the action-economy spend already applied
	default:
		return nil, nil, "", newRulesError(fmt.Sprintf("unsupported action_type %q", intent.ActionType))
	}

	return result, diceLog, narrative, nil
}

func (e *Engine) spendEconomy(state *encounter.State, actor *encounter.Combatant, intent encounter.Intent, result *encounter.MechanicalResult, diceLog *[]encounter.DiceRollLog) error {
	if intent.UsesReaction {
		if !actor.Economy.SpendReaction() {
			return newRulesError(fmt.Sprintf("%s has no reaction available", actor.Name))
		}
	} else if intent.ActionType != encounter.ActionRechargeAbility && intent.ActionType != encounter.ActionLegendary {
		if condition.IsActionRestricted(actor.Conditions, "action") {
			return newRulesError(fmt.Sprintf("%s's action is restricted by an active condition", actor.Name))
		}
		if !actor.Economy.SpendAction() {
			return newRulesError(fmt.Sprintf("%s has no action available", actor.Name))
		}
	}

	if intent.HasMovementCost {
		e.checkOpportunityAttacks(state, actor, intent, result, diceLog)
		if actor.IsDown() {
			// The opportunity attack dropped the actor; the movement never
			// completes, so the remainder is cancelled rather than spent.
			return nil
		}
		difficult := actor.Position.Terrain == "difficult"
		if !actor.Economy.SpendMovement(intent.MovementCost, difficult) {
			return newRulesError(fmt.Sprintf("%s does not have enough movement remaining", actor.Name))
		}
	}
	return nil
}

func (e *Engine) executeAbility(state *encounter.State, actor *encounter.Combatant, intent encounter.Intent, result *encounter.MechanicalResult, diceLog *[]encounter.DiceRollLog) error {
	if len(intent.Targets) == 0 && intent.ActionType != encounter.ActionLegendary {
		return newRulesError(fmt.Sprintf("%s's %s intent has no targets", actor.Name, intent.ActionType))
	}

	profile, ok := actor.AbilityProfiles[intent.AbilityName]
	if !ok {
		return newRulesError(fmt.Sprintf("%s has no mechanical profile for ability %q", actor.Name, intent.AbilityName))
	}

	if profile.IsSelfHeal {
		expr := dice.MustParse(profile.HealDice)
		roll := dice.Roll(expr, e.Dice)
		healed := Heal(actor, roll.Total()+profile.HealBonus)
		*diceLog = append(*diceLog, encounter.DiceRollLog{Expression: profile.HealDice, Result: roll.Total(), Purpose: "healing"})
		if healed > 0 {
			result.Damage = append(result.Damage, encounter.DamageEntry{TargetID: actor.ID, Amount: -healed})
		}
		return nil
	}

	for _, targetID := range intent.Targets {
		target, ok := state.Combatants[targetID]
		if !ok {
			return newRulesError(fmt.Sprintf("unknown target %q", targetID))
		}
		if target.IsDead() {
			continue
		}

		switch {
		case profile.IsAttack:
			if err := e.resolveAttackAgainst(state.Round, actor, target, profile, result, diceLog); err != nil {
				return err
			}
		case profile.IsSave:
			if err := e.resolveSaveAgainst(state.Round, actor, target, profile, result, diceLog); err != nil {
				return err
			}
		default:
			return newRulesError(fmt.Sprintf("ability %q is neither an attack nor a save", intent.AbilityName))
		}

		e.checkConcentration(state, target, result, diceLog)
	}
	return nil
}

func (e *Engine) resolveAttackAgainst(round int, actor, target *encounter.Combatant, profile encounter.AbilityProfile, result *encounter.MechanicalResult, diceLog *[]encounter.DiceRollLog) error {
	in := AttackInput{
		AttackBonus:   profile.AttackBonus,
		DamageDice:    profile.DamageDice,
		DamageBonus:   profile.DamageBonus,
		DamageType:    profile.DamageType,
		IsMelee:       profile.IsMelee,
		CriticalRange: e.CriticalRange,
	}
	ar := ResolveAttack(actor, target, in, e.Dice)
	if e.Reactions != nil {
		e.Reactions.OnAttackResolved(round, actor, target, &ar)
	}

	*diceLog = append(*diceLog, encounter.DiceRollLog{Expression: "1d20", Result: ar.AttackRoll, Purpose: "attack_roll"})
	if ar.Hit {
		*diceLog = append(*diceLog, encounter.DiceRollLog{Expression: profile.DamageDice, Result: ar.DamageTotal, Purpose: "damage"})
		ApplyDamage(target, ar.DamageTotal)
		result.Damage = append(result.Damage, encounter.DamageEntry{TargetID: target.ID, Amount: ar.DamageTotal, Type: profile.DamageType})
		if profile.ConditionOnHit != "" {
			e.applyConditionByID(target, profile.ConditionOnHit, profile.ConditionRounds, actor.ID, result)
		}
	}
	return nil
}

func (e *Engine) resolveSaveAgainst(round int, actor, target *encounter.Combatant, profile encounter.AbilityProfile, result *encounter.MechanicalResult, diceLog *[]encounter.DiceRollLog) error {
	sv := SavingThrow(target, profile.SaveAbility, profile.SaveDC, e.Dice)
	if e.Reactions != nil {
		e.Reactions.OnSpellCast(round, actor, target, &sv)
	}
	*diceLog = append(*diceLog, encounter.DiceRollLog{Expression: "1d20", Result: sv.Roll, Purpose: "save_" + profile.SaveAbility})
	result.Saves = append(result.Saves, encounter.SaveResult{
		CombatantID: target.ID, Ability: profile.SaveAbility, DC: profile.SaveDC, Roll: sv.Roll, Success: sv.Success,
	})

	dmg := 0
	if profile.DamageDice != "" {
		expr := dice.MustParse(profile.DamageDice)
		roll := dice.Roll(expr, e.Dice)
		*diceLog = append(*diceLog, encounter.DiceRollLog{Expression: profile.DamageDice, Result: roll.Total(), Purpose: "damage"})
		total := roll.Total() + profile.DamageBonus
		if sv.Success && profile.HalfOnSave {
			total /= 2
		} else if sv.Success && !profile.HalfOnSave {
			total = 0
		}
		kind := target.DamageMultiplierKind(profile.DamageType)
		dmg = applyMultiplier(total, kind)
	}
	if dmg > 0 {
		ApplyDamage(target, dmg)
		result.Damage = append(result.Damage, encounter.DamageEntry{TargetID: target.ID, Amount: dmg, Type: profile.DamageType})
	}
	if !sv.Success && profile.ConditionOnHit != "" {
		e.applyConditionByID(target, profile.ConditionOnHit, profile.ConditionRounds, actor.ID, result)
	}
	return nil
}

func (e *Engine) applyConditionByID(target *encounter.Combatant, id string, rounds int, sourceID string, result *encounter.MechanicalResult) {
	reg := condition.DefaultRegistry()
	def, ok := reg.Get(id)
	if !ok {
		return
	}
	duration := rounds
	if def.DurationType != "rounds" {
		duration = -1
	}
	if err := target.Conditions.ApplyWithSource(def, 1, duration, sourceID, 0, ""); err != nil {
		return
	}
	result.Conditions = append(result.Conditions, encounter.ConditionChange{CombatantID: target.ID, ConditionID: id, Applied: true})
}

// checkConcentration runs the concentration check triggered by damage to a
// concentrating caster and, on failure, drops the concentration-linked
// effect from the caster and from every combatant in ConcentrationAffects,
// recording a condition-removed entry for each (spec.md §4.4).
func (e *Engine) checkConcentration(state *encounter.State, target *encounter.Combatant, result *encounter.MechanicalResult, diceLog *[]encounter.DiceRollLog) {
	if target.ConcentrationOn == "" {
		return
	}
	lastDamage := 0
	for _, d := range result.Damage {
		if d.TargetID == target.ID && d.Amount > lastDamage {
			lastDamage = d.Amount
		}
	}
	if lastDamage == 0 {
		return
	}
	sv := CheckConcentration(target, lastDamage, e.Dice)
	*diceLog = append(*diceLog, encounter.DiceRollLog{Expression: "1d20", Result: sv.Roll, Purpose: "concentration"})
	result.Saves = append(result.Saves, encounter.SaveResult{
		CombatantID: target.ID, Ability: "constitution", DC: sv.DC, Roll: sv.Roll, Success: sv.Success,
	})
	if sv.Success {
		return
	}

	spell := target.ConcentrationOn
	affects := target.ConcentrationAffects
	target.ConcentrationOn = ""
	target.ConcentrationAffects = nil
	result.Conditions = append(result.Conditions, encounter.ConditionChange{CombatantID: target.ID, ConditionID: spell, Applied: false})

	for _, affectedID := range affects {
		affected, ok := state.Combatants[affectedID]
		if !ok {
			continue
		}
		affected.Conditions.Remove(spell)
		result.Conditions = append(result.Conditions, encounter.ConditionChange{CombatantID: affected.ID, ConditionID: spell, Applied: false})
	}
}
