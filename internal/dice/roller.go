package dice

import "sort"

// Roll rolls expr.Count dice of expr.Sides faces using src, applies
// KeepHighest if set, and returns the full result.
//
// Precondition: expr.Count >= 1, expr.Sides >= 2.
func Roll(expr Expression, src Source) RollResult {
	dice := make([]int, expr.Count)
	for i := range dice {
		dice[i] = src.Intn(expr.Sides) + 1
	}

	if expr.KeepHighest > 0 && expr.KeepHighest < len(dice) {
		sorted := make([]int, len(dice))
		copy(sorted, dice)
		sort.Sort(sort.Reverse(sort.IntSlice(sorted)))
		dice = sorted[:expr.KeepHighest]
	}

	return RollResult{
		Expression: expr.Raw,
		Dice:       dice,
		Modifier:   expr.Modifier,
	}
}

// RollExpr parses expr and rolls it in one step.
func RollExpr(expr string, src Source) (RollResult, error) {
	parsed, err := Parse(expr)
	if err != nil {
		return RollResult{}, err
	}
	return Roll(parsed, src), nil
}

// MustParse parses expr and panics on error. Intended for package-level
// constant dice expressions (e.g. a monster's fixed damage die) where a
// parse failure is a programming error, not a runtime condition.
func MustParse(expr string) Expression {
	e, err := Parse(expr)
	if err != nil {
		panic(err)
	}
	return e
}
