package encounter

// ActionEconomy is a combatant's per-turn budget of action, bonus action,
// reaction, movement, and legendary actions. Invariant: at the start of
// the combatant's turn, Action and BonusAction reset to true and
// MovementRemaining resets to the combatant's speed; LegendaryUsed resets
// at round start (tracked on LegendaryPool, not here) rather than turn
// start.
type ActionEconomy struct {
	Action            bool
	BonusAction       bool
	Reaction          bool
	MovementRemaining int
}

// ResetForTurn reinstates the full action economy at the start of a turn,
// per the invariant in §3 of the data model.
func (e *ActionEconomy) ResetForTurn(speed int) {
	e.Action = true
	e.BonusAction = true
	e.MovementRemaining = speed
	// Reaction is restored here too: a reaction spent between this
	// combatant's turns stays spent until the start of its next turn.
	e.Reaction = true
}

// SpendAction marks the action slot used. Returns false if already spent.
func (e *ActionEconomy) SpendAction() bool {
	if !e.Action {
		return false
	}
	e.Action = false
	return true
}

// SpendBonusAction marks the bonus action slot used. Returns false if
// already spent.
func (e *ActionEconomy) SpendBonusAction() bool {
	if !e.BonusAction {
		return false
	}
	e.BonusAction = false
	return true
}

// SpendReaction marks the reaction slot used. Returns false if already
// spent.
func (e *ActionEconomy) SpendReaction() bool {
	if !e.Reaction {
		return false
	}
	e.Reaction = false
	return true
}

// SpendMovement deducts cost from MovementRemaining, doubling it first if
// inDifficultTerrain. Returns false (and spends nothing) if the combatant
// does not have enough movement left.
func (e *ActionEconomy) SpendMovement(cost int, inDifficultTerrain bool) bool {
	effective := cost
	if inDifficultTerrain {
		effective = cost * 2
	}
	if effective > e.MovementRemaining {
		return false
	}
	e.MovementRemaining -= effective
	return true
}

// Valid reports whether the economy is internally consistent: movement
// remaining is non-negative. Used by the Transaction Manager's post-state
// validation (§4.5).
func (e ActionEconomy) Valid() bool {
	return e.MovementRemaining >= 0
}
