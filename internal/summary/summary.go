// Package summary implements the Context Summariser (spec.md §4.7): it
// compacts an encounter's prior-turn log into a bounded block of text for
// inclusion in the next Oracle Gateway prompt. There is no direct teacher
// analogue — the teacher's telnet server has no prompt-construction layer
// — so this package follows spec.md's policy directly, in the zap-logged,
// config-driven idiom the rest of this module uses.
package summary

import (
	"fmt"
	"strings"

	"github.com/cory-johannsen/atre/internal/encounter"
)

// Policy bounds how much of the combat log the Summariser retains.
type Policy struct {
	VerbatimTurns int // retain this many most-recent turns in full
	CharBudget    int // drop older digest lines once the digest block exceeds this many characters
}

// DefaultPolicy matches spec.md §6's configuration defaults.
func DefaultPolicy() Policy {
	return Policy{VerbatimTurns: 3, CharBudget: 1200}
}

// Summarize builds the compact history block for log, per spec.md §4.7:
// the last VerbatimTurns turns rendered in full, a one-line digest per
// older turn (dropped once the digest block exceeds CharBudget, oldest
// first), and a significant-events ribbon listing every condition gained or
// lost in any older turn, including turns whose digest was dropped. Deaths
// and concentration drops are not listed as such; only the condition
// changes a turn recorded appear.
func Summarize(log []encounter.TurnRecord, policy Policy) string {
	if len(log) == 0 {
		return "(no prior turns this encounter)"
	}

	verbatimFrom := len(log) - policy.VerbatimTurns
	if verbatimFrom < 0 {
		verbatimFrom = 0
	}

	digestLines := digestsWithinBudget(log[:verbatimFrom], policy.CharBudget)
	ribbon := significantEvents(log[:verbatimFrom])

	var b strings.Builder
	if len(digestLines) > 0 {
		b.WriteString("Earlier turns:\n")
		for _, line := range digestLines {
			b.WriteString(line)
			b.WriteByte('\n')
		}
	}
	if ribbon != "" {
		b.WriteString("Significant events: ")
		b.WriteString(ribbon)
		b.WriteByte('\n')
	}
	if verbatimFrom < len(log) {
		b.WriteString("Recent turns:\n")
		for _, rec := range log[verbatimFrom:] {
			b.WriteString(verbatim(rec))
			b.WriteByte('\n')
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

// digest renders the one-line form spec.md §4.7 specifies:
// "R{r}:{actor}→{action_type} on {target} ({hp_change})".
func digest(rec encounter.TurnRecord) string {
	target := "-"
	hpChange := 0
	if len(rec.Intent.Targets) > 0 {
		target = rec.Intent.Targets[0]
	}
	for _, d := range rec.Mechanical.Damage {
		hpChange -= d.Amount
	}
	return fmt.Sprintf("R%d:%s→%s on %s (%+d)", rec.Round, rec.CombatantID, rec.Intent.ActionType, target, hpChange)
}

// digestsWithinBudget renders one digest line per record in older, keeping
// the most recent digests and dropping the oldest once the cumulative
// character budget is exceeded.
func digestsWithinBudget(older []encounter.TurnRecord, charBudget int) []string {
	if len(older) == 0 {
		return nil
	}
	var kept []string
	total := 0
	for i := len(older) - 1; i >= 0; i-- {
		line := digest(older[i])
		if total+len(line)+1 > charBudget {
			break
		}
		kept = append(kept, line)
		total += len(line) + 1
	}
	// kept was built newest-first; restore chronological order.
	for i, j := 0, len(kept)-1; i < j; i, j = i+1, j-1 {
		kept[i], kept[j] = kept[j], kept[i]
	}
	return kept
}

// verbatim renders a full recent turn: intent, dice rolls, narrative.
func verbatim(rec encounter.TurnRecord) string {
	var b strings.Builder
	fmt.Fprintf(&b, "R%d %s used %s", rec.Round, rec.CombatantID, rec.Intent.AbilityName)
	if len(rec.Intent.Targets) > 0 {
		fmt.Fprintf(&b, " on %s", strings.Join(rec.Intent.Targets, ", "))
	}
	if rec.Narrative != "" {
		fmt.Fprintf(&b, ": %s", rec.Narrative)
	}
	for _, d := range rec.DiceRolls {
		fmt.Fprintf(&b, " [%s=%d %s]", d.Expression, d.Result, d.Purpose)
	}
	return b.String()
}

// significantEvents scans older turns for condition changes (applied or
// removed), rendering them as a compact ribbon; deaths are not detected.
func significantEvents(older []encounter.TurnRecord) string {
	var events []string
	for _, rec := range older {
		for _, c := range rec.Mechanical.Conditions {
			if c.Applied {
				events = append(events, fmt.Sprintf("%s gained %s", c.CombatantID, c.ConditionID))
			} else {
				events = append(events, fmt.Sprintf("%s lost %s", c.CombatantID, c.ConditionID))
			}
		}
	}
	return strings.Join(events, "; ")
}
