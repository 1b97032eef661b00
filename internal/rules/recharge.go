package rules

import (
	"github.com/cory-johannsen/atre/internal/dice"
	"github.com/cory-johannsen/atre/internal/encounter"
)

// RollRecharge rolls rechargeDie (default "1d6" — see spec §9's resolution
// of the unspecified-recharge-die open question) for every recharge entry
// on owner that was used in a prior turn, marking it available again if
// the roll falls within its recharge range.
func RollRecharge(owner *encounter.Combatant, rechargeDie string, currentRound int, src dice.Source) []string {
	var recharged []string
	for name, entry := range owner.Recharge {
		if entry.Available || entry.LastUsedRound == 0 || entry.LastUsedRound >= currentRound {
			continue
		}
		roll, err := dice.RollExpr(rechargeDie, src)
		if err != nil {
			continue
		}
		total := roll.Total()
		if total >= entry.RangeLow && total <= entry.RangeHigh {
			entry.Available = true
			recharged = append(recharged, name)
		}
	}
	return recharged
}
