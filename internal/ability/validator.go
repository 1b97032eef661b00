// Package ability implements the Ability Validator (spec §4.6): it builds
// a canonical, tagged ability set per combatant at encounter load and uses
// that set to strip or retag ability phrases the oracle prompt would
// otherwise let leak between creatures — LLM oracles, given multiple
// creatures in context, leak abilities across them ("the skeleton breathes
// fire"). Tag-scoped filtering is cheap and removes the leak
// deterministically.
//
// Grounded on original_source/app/core/utils/monster_ability_validator.py.
package ability

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/cory-johannsen/atre/internal/encounter"
)

// tagPattern matches an ability tag of the form [<name>_<id>_ability].
var tagPattern = regexp.MustCompile(`\[([A-Za-z0-9_\s]+)_([A-Za-z0-9\-]+)_ability\]`)

// GenericAbilities are universal action names every creature may use
// without a canonical-tag match — multiattack, basic weapon attacks, and
// the legendary/lair/spellcasting umbrella terms.
var GenericAbilities = map[string]bool{
	"multiattack":          true,
	"attack":               true,
	"bite":                 true,
	"claw":                 true,
	"slam":                 true,
	"punch":                true,
	"melee attack":         true,
	"ranged attack":        true,
	"basic attack":         true,
	"legendary action":     true,
	"lair action":          true,
	"innate spellcasting":  true,
	"spellcasting":         true,
	"tail":                 true,
	"wing":                 true,
}

// Tag returns the canonical ability tag for a combatant named name with
// identifier id: "[<name>_<id>_ability]", name lowercased and with spaces
// replaced by underscores.
func Tag(name, id string) string {
	return fmt.Sprintf("[%s_%s_ability]", strings.ReplaceAll(strings.ToLower(name), " ", "_"), id)
}

// Validator builds and caches canonical ability sets per combatant and
// uses them to clean oracle prompts and validate parsed intents.
type Validator struct {
	cache map[string]map[string]bool // "name|id" -> canonical ability phrase set (lowercased, untagged)
}

// NewValidator returns an empty Validator with a fresh cache.
func NewValidator() *Validator {
	return &Validator{cache: make(map[string]map[string]bool)}
}

func cacheKey(name, id string) string {
	return strings.ToLower(name) + "|" + id
}

// CanonicalAbilities returns (and caches) the canonical, tagged ability
// list for a combatant, deriving it from the raw (untagged) ability
// phrases the content layer declared for it.
//
// Postcondition: every returned string ends with the combatant's tag.
func (v *Validator) CanonicalAbilities(name, id string, rawAbilities []string) []string {
	tag := Tag(name, id)
	set := make(map[string]bool, len(rawAbilities))
	tagged := make([]string, 0, len(rawAbilities))
	for _, raw := range rawAbilities {
		phrase := strings.ToLower(strings.TrimSpace(raw))
		set[phrase] = true
		tagged = append(tagged, fmt.Sprintf("%s %s", raw, tag))
	}
	v.cache[cacheKey(name, id)] = set
	return tagged
}

// IsCanonical reports whether phrase (untagged, case-insensitive) belongs
// to the combatant's canonical set, or is one of the universal basic
// actions.
func (v *Validator) IsCanonical(name, id, phrase string) bool {
	phrase = strings.ToLower(strings.TrimSpace(phrase))
	if GenericAbilities[phrase] {
		return true
	}
	set, ok := v.cache[cacheKey(name, id)]
	if !ok {
		return false
	}
	return set[phrase]
}

// CleanResult reports what CleanPrompt did, for the Oracle Gateway's
// stripped_abilities diagnostic (SPEC_FULL.md supplemented feature).
type CleanResult struct {
	Prompt          string
	StrippedPhrases []string
}

// CleanPrompt strips every line of prompt that carries an ability tag
// other than actor's own canonical tag, and keeps all other lines
// unchanged. Lines without a tag are not inspected: untagged ability
// phrases are neither retagged with actor's tag nor checked against other
// combatants' canonical sets.
//
// Grounded on clean_abilities_in_prompt / fix_mixed_abilities_in_prompt in
// monster_ability_validator.py, simplified from full prose rewriting to
// line-level filtering of the structured prompt sections the Oracle
// Gateway builds (§4.2).
func (v *Validator) CleanPrompt(prompt string, actorName, actorID string) CleanResult {
	ownTag := Tag(actorName, actorID)
	lines := strings.Split(prompt, "\n")
	out := make([]string, 0, len(lines))
	var stripped []string

	for _, line := range lines {
		matches := tagPattern.FindAllStringSubmatch(line, -1)
		if len(matches) == 0 {
			out = append(out, line)
			continue
		}
		mismatched := false
		for _, m := range matches {
			wholeTag := fmt.Sprintf("[%s_%s_ability]", strings.ToLower(m[1]), m[2])
			if wholeTag != ownTag {
				mismatched = true
			}
		}
		if mismatched {
			stripped = append(stripped, strings.TrimSpace(line))
			continue
		}
		out = append(out, line)
	}

	return CleanResult{Prompt: strings.Join(out, "\n"), StrippedPhrases: stripped}
}

// ValidateIntent rejects intents that fail any of spec §4.2's Gateway
// validations it is positioned to check: (1) AbilityName must be in actor's
// canonical set or a universal basic action, and (2) every target id must
// name a living combatant on a legal side, unless the named ability
// explicitly permits targeting an ally. A rejected intent never reaches the
// Rules Engine; the caller (the Oracle Gateway) routes the failure to the
// Fallback Ladder like any other malformed-output error.
func (v *Validator) ValidateIntent(intent encounter.Intent, actor *encounter.Combatant, state *encounter.State) error {
	if !encounter.UniversalBasicActions[intent.ActionType] {
		if intent.AbilityName == "" {
			return fmt.Errorf("ability: intent for action_type %q requires an ability_name", intent.ActionType)
		}
		if !GenericAbilities[strings.ToLower(intent.AbilityName)] && !v.IsCanonical(actor.Name, actor.ID, intent.AbilityName) {
			return fmt.Errorf("ability: %q is not in %s's canonical ability set", intent.AbilityName, actor.Name)
		}
	}

	if len(intent.Targets) == 0 || state == nil {
		return nil
	}
	// Only a damage- or save-forcing ability can commit friendly fire;
	// basic actions like "help" legitimately target an ally and carry no
	// AbilityProfile to consult, so they're exempt from the side check.
	profile, hasProfile := actor.AbilityProfiles[intent.AbilityName]
	hostile := hasProfile && (profile.IsAttack || profile.IsSave)

	for _, targetID := range intent.Targets {
		target, ok := state.Combatants[targetID]
		if !ok {
			return fmt.Errorf("ability: target %q does not exist", targetID)
		}
		if target.IsDead() {
			return fmt.Errorf("ability: target %q is dead", targetID)
		}
		if !hostile || targetID == actor.ID {
			continue
		}
		if target.Side == actor.Side && !profile.AllowsAllyTarget {
			return fmt.Errorf("ability: %q may not target %q, a combatant on %s's own side", intent.AbilityName, targetID, actor.Name)
		}
	}
	return nil
}
