package fallback

import (
	"github.com/cory-johannsen/atre/internal/dice"
	"github.com/cory-johannsen/atre/internal/encounter"
)

const meleeRangeFeet = 10

// Heuristic implements spec.md §4.3's deterministic chooser, applied in
// order: self-heal below 25% HP, finish off an unconscious enemy in
// melee reach, else target-score maximization, with action preference
// highest-damage attack -> cantrip -> dash toward nearest enemy -> dodge.
// Every rule path yields an intent, so ok is always true: with no usable
// ability or no enemy at all, the chosen intent is a dodge.
func Heuristic(state *encounter.State, actor *encounter.Combatant) (encounter.Intent, bool) {
	if healIntent, ok := selfHealIfLow(actor); ok {
		return healIntent, true
	}

	enemies := livingEnemies(state, actor)
	if len(enemies) == 0 {
		return encounter.Intent{ActionType: encounter.ActionDodge, Narrative: "no targets in sight, holds position"}, true
	}

	if target, ok := finishOffUnconscious(actor, enemies); ok {
		if ability, ok := bestMeleeAbility(actor); ok {
			return encounter.Intent{
				ActionType:  encounter.ActionAttack,
				AbilityName: ability,
				Targets:     []string{target.ID},
				Narrative:   "presses the advantage against a downed foe",
			}, true
		}
	}

	best := bestScoredTarget(actor, enemies)

	if ability, ok := bestDamageAbility(actor); ok {
		return encounter.Intent{
			ActionType:  encounter.ActionAttack,
			AbilityName: ability,
			Targets:     []string{best.ID},
			Narrative:   "commits to the clearest opening",
		}, true
	}
	if ability, ok := bestCantrip(actor); ok {
		return encounter.Intent{
			ActionType:  encounter.ActionCantrip,
			AbilityName: ability,
			Targets:     []string{best.ID},
			Narrative:   "falls back on a reliable cantrip",
		}, true
	}
	if actor.Position.Distance(best.ID) > meleeRangeFeet {
		return encounter.Intent{
			ActionType: encounter.ActionDash,
			Narrative:  "closes the distance",
		}, true
	}

	return encounter.Intent{ActionType: encounter.ActionDodge, Narrative: "finds no clean opening and plays defensively"}, true
}

func selfHealIfLow(actor *encounter.Combatant) (encounter.Intent, bool) {
	if actor.MaxHP == 0 || float64(actor.HP)/float64(actor.MaxHP) > 0.25 {
		return encounter.Intent{}, false
	}
	for name, profile := range actor.AbilityProfiles {
		if profile.IsSelfHeal {
			return encounter.Intent{
				ActionType:  encounter.ActionSpell,
				AbilityName: name,
				Targets:     []string{actor.ID},
				Narrative:   "falls back to heal before it's too late",
			}, true
		}
	}
	return encounter.Intent{}, false
}

func livingEnemies(state *encounter.State, actor *encounter.Combatant) []*encounter.Combatant {
	var out []*encounter.Combatant
	for _, c := range state.Combatants {
		if c.ID == actor.ID || c.Side == actor.Side || c.IsDead() {
			continue
		}
		out = append(out, c)
	}
	return out
}

func finishOffUnconscious(actor *encounter.Combatant, enemies []*encounter.Combatant) (*encounter.Combatant, bool) {
	for _, e := range enemies {
		if e.Status == encounter.StatusUnconscious && actor.Position.Distance(e.ID) <= meleeRangeFeet {
			return e, true
		}
	}
	return nil, false
}

// targetScore implements the exact formula from spec.md §4.4/§4.3:
// (1 - hp/max_hp) * 30 + max(0, 20 - ac) * 2 + 20 * in_melee - distance.
func targetScore(actor, target *encounter.Combatant) float64 {
	hpFrac := 0.0
	if target.MaxHP > 0 {
		hpFrac = float64(target.HP) / float64(target.MaxHP)
	}
	acTerm := 20 - target.AC
	if acTerm < 0 {
		acTerm = 0
	}
	distance := actor.Position.Distance(target.ID)
	inMelee := 0.0
	if distance >= 0 && distance <= meleeRangeFeet {
		inMelee = 1
	}
	score := (1-hpFrac)*30 + float64(acTerm)*2 + 20*inMelee
	if distance >= 0 {
		score -= float64(distance)
	}
	return score
}

func bestScoredTarget(actor *encounter.Combatant, enemies []*encounter.Combatant) *encounter.Combatant {
	best := enemies[0]
	bestScore := targetScore(actor, best)
	for _, e := range enemies[1:] {
		if s := targetScore(actor, e); s > bestScore {
			best, bestScore = e, s
		}
	}
	return best
}

func bestMeleeAbility(actor *encounter.Combatant) (string, bool) {
	var best string
	bestAvg := -1.0
	for name, p := range actor.AbilityProfiles {
		if !p.IsAttack || !p.IsMelee {
			continue
		}
		if avg := averageDamage(p); avg > bestAvg {
			best, bestAvg = name, avg
		}
	}
	return best, bestAvg >= 0
}

func bestDamageAbility(actor *encounter.Combatant) (string, bool) {
	var best string
	bestAvg := -1.0
	for name, p := range actor.AbilityProfiles {
		if !p.IsAttack {
			continue
		}
		if avg := averageDamage(p); avg > bestAvg {
			best, bestAvg = name, avg
		}
	}
	return best, bestAvg >= 0
}

func bestCantrip(actor *encounter.Combatant) (string, bool) {
	for name, p := range actor.AbilityProfiles {
		if p.IsSave && p.ActionCost != "bonus_action" {
			return name, true
		}
	}
	return "", false
}

// averageDamage computes the expected value of p's damage dice plus its
// flat bonus, used only to rank abilities — never to resolve combat,
// which always goes through the Rules Engine's actual die rolls.
func averageDamage(p encounter.AbilityProfile) float64 {
	if p.DamageDice == "" {
		return float64(p.DamageBonus)
	}
	expr, err := dice.Parse(p.DamageDice)
	if err != nil {
		return float64(p.DamageBonus)
	}
	diceCount := expr.Count
	if expr.KeepHighest > 0 {
		diceCount = expr.KeepHighest
	}
	return float64(diceCount)*(float64(expr.Sides)+1)/2 + float64(expr.Modifier) + float64(p.DamageBonus)
}
