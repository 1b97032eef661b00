package rules

import "github.com/cory-johannsen/atre/internal/encounter"

// ApplyDamage subtracts amount from target's HP (via Combatant.ApplyDamage,
// floored at 0) and drives the status transitions spec §4.4 requires:
// reaching 0 sets unconscious (players, with death-save tracking reset) or
// dead (every non-player combatant; no HP threshold is configured or
// checked).
// Instant death overrides: if the excess damage beyond 0 is itself >=
// MaxHP, the target dies regardless of side.
func ApplyDamage(target *encounter.Combatant, amount int) int {
	before := target.HP
	dealt := target.ApplyDamage(amount)

	if target.HP > 0 {
		return dealt
	}

	excess := amount - before
	if excess >= target.MaxHP {
		target.Status = encounter.StatusDead
		return dealt
	}

	switch target.Side {
	case encounter.SidePlayer:
		if target.Status != encounter.StatusDead {
			target.Status = encounter.StatusUnconscious
			target.DeathSaves = encounter.DeathSaves{}
		}
	default:
		target.Status = encounter.StatusDead
	}
	return dealt
}

// Heal adds amount to target's HP. Per spec §4.4, any positive healing to
// an unconscious combatant restores status to ok and resets death-save
// counters, even if the healed amount is small.
func Heal(target *encounter.Combatant, amount int) int {
	healed := target.Heal(amount)
	if healed > 0 && (target.Status == encounter.StatusUnconscious || target.Status == encounter.StatusStable) {
		target.Status = encounter.StatusOK
		target.DeathSaves = encounter.DeathSaves{}
	}
	return healed
}
