package oracle

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/cory-johannsen/atre/internal/ability"
	"github.com/cory-johannsen/atre/internal/encounter"
	"github.com/cory-johannsen/atre/internal/summary"
)

// Completer is the injected LLM collaborator contract from spec.md §6:
// complete(prompt, cancel_token) -> string, blocking, cancellation-aware.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Gateway builds prompts, calls the Completer, and decodes the response
// into a validated Intent.
type Gateway struct {
	Completer Completer
	Validator *ability.Validator
	Logger    *zap.Logger
}

// NewGateway builds a Gateway.
func NewGateway(completer Completer, validator *ability.Validator, logger *zap.Logger) *Gateway {
	return &Gateway{Completer: completer, Validator: validator, Logger: logger}
}

// BuildPrompt assembles the full prompt for actor's turn: a preamble, the
// compacted prior-turn history from the Context Summariser, the actor's
// own state and cleaned ability list, and a roster of visible enemies.
// hideHPBands controls whether enemy combatants' exact HP is replaced with
// a coarse band (per spec.md §6's hide_enemy_hp_bands default).
func (g *Gateway) BuildPrompt(state *encounter.State, actorID string, policy summary.Policy, hideHPBands bool) (string, error) {
	actor, ok := state.Combatants[actorID]
	if !ok {
		return "", fmt.Errorf("oracle: unknown actor %q", actorID)
	}

	clean := g.Validator.CleanPrompt(strings.Join(actor.OwnedAbilities, "\n"), actor.Name, actor.ID)
	if len(clean.StrippedPhrases) > 0 && g.Logger != nil {
		g.Logger.Debug("stripped mismatched ability phrases from prompt",
			zap.String("actor", actorID), zap.Strings("stripped", clean.StrippedPhrases))
	}

	var b strings.Builder
	fmt.Fprintf(&b, "You are resolving combat turn %d for %s (%s).\n", state.Round, actor.Name, actor.ID)
	fmt.Fprintf(&b, "HP %d/%d, AC %d, status %s.\n", actor.HP, actor.MaxHP, actor.AC, actor.Status)
	b.WriteString("Available abilities:\n")
	b.WriteString(clean.Prompt)
	b.WriteString("\n\nEnemies:\n")
	for _, c := range state.Combatants {
		if c.Side == actor.Side || c.ID == actor.ID || c.IsDead() {
			continue
		}
		hp := fmt.Sprintf("%d/%d", c.HP, c.MaxHP)
		if hideHPBands {
			hp = hpBand(c.HP, c.MaxHP)
		}
		fmt.Fprintf(&b, "- %s (id=%s) HP %s AC %d status %s\n", c.Name, c.ID, hp, c.AC, c.Status)
	}
	b.WriteString("\nPrior turns:\n")
	b.WriteString(summary.Summarize(state.Log, policy))
	b.WriteString("\n\nRespond with a single JSON object: action_type, ability_name, targets, narrative, and optionally movement_cost, spell_slot_level, uses_reaction.")
	return b.String(), nil
}

// hpBand collapses exact HP into the coarse descriptive bands a player
// would plausibly perceive, used when hide_enemy_hp_bands is set.
func hpBand(hp, maxHP int) string {
	if maxHP <= 0 {
		return "unknown"
	}
	pct := hp * 100 / maxHP
	switch {
	case hp <= 0:
		return "down"
	case pct <= 25:
		return "critical"
	case pct <= 50:
		return "bloodied"
	default:
		return "healthy"
	}
}

// RequestIntent calls the Completer with prompt, parses the response
// through the resilience ladder, decodes it into an Intent, and validates
// it against actor's legal ability set. On any failure it returns an error
// describing which stage failed, for the Fallback Ladder to act on.
func (g *Gateway) RequestIntent(ctx context.Context, state *encounter.State, prompt string, actor *encounter.Combatant) (encounter.Intent, ParseResult, error) {
	raw, err := g.Completer.Complete(ctx, prompt)
	if err != nil {
		return encounter.Intent{}, ParseResult{}, fmt.Errorf("oracle: completion failed: %w", err)
	}

	parsed, ok := ParseJSON(raw)
	if !ok {
		return encounter.Intent{}, ParseResult{}, fmt.Errorf("oracle: could not parse intent from response")
	}

	intent, err := decodeIntent(parsed.Data)
	if err != nil {
		return encounter.Intent{}, parsed, fmt.Errorf("oracle: %w", err)
	}

	if err := g.Validator.ValidateIntent(intent, actor, state); err != nil {
		return intent, parsed, fmt.Errorf("oracle: intent failed validation: %w", err)
	}
	return intent, parsed, nil
}

func decodeIntent(data map[string]any) (encounter.Intent, error) {
	actionRaw, _ := data["action_type"].(string)
	if actionRaw == "" {
		return encounter.Intent{}, fmt.Errorf("missing action_type")
	}
	intent := encounter.Intent{ActionType: encounter.ActionType(actionRaw)}

	if name, ok := data["ability_name"].(string); ok {
		intent.AbilityName = name
	}
	if narrative, ok := data["narrative"].(string); ok {
		intent.Narrative = narrative
	}
	intent.Targets = decodeStringSlice(data["targets"])

	if v, ok := numberField(data["movement_cost"]); ok {
		intent.MovementCost = v
		intent.HasMovementCost = true
	}
	if v, ok := numberField(data["spell_slot_level"]); ok {
		intent.SpellSlotLevel = v
		intent.HasSpellSlot = true
	}
	if v, ok := data["uses_reaction"].(bool); ok {
		intent.UsesReaction = v
	}
	return intent, nil
}

func decodeStringSlice(v any) []string {
	switch t := v.(type) {
	case []string:
		return t
	case []any:
		out := make([]string, 0, len(t))
		for _, item := range t {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	case string:
		if t == "" {
			return nil
		}
		return []string{t}
	default:
		return nil
	}
}

func numberField(v any) (int, bool) {
	switch t := v.(type) {
	case float64:
		return int(t), true
	case int:
		return t, true
	default:
		return 0, false
	}
}
