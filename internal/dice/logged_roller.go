package dice

import "go.uber.org/zap"

// Roller wraps a Source with structured logging of every roll, so that a
// TurnRecord's mechanical narrative can be cross-checked against the raw
// dice that produced it.
type Roller struct {
	src    Source
	logger *zap.Logger
}

// NewLoggedRoller builds a Roller around src, logging at Debug level.
func NewLoggedRoller(src Source, logger *zap.Logger) *Roller {
	return &Roller{src: src, logger: logger}
}

// Roll parses and rolls expr, logging the expression, dice, and total.
func (r *Roller) Roll(expr string) (RollResult, error) {
	result, err := RollExpr(expr, r.src)
	if err != nil {
		return RollResult{}, err
	}
	r.logger.Debug("dice roll",
		zap.String("expression", expr),
		zap.Ints("dice", result.Dice),
		zap.Int("modifier", result.Modifier),
		zap.Int("total", result.Total()),
	)
	return result, nil
}

// Intn satisfies Source directly, so a *Roller can itself be passed wherever
// a raw Source is expected (e.g. into internal/rules helpers that only need
// single die draws rather than a parsed expression).
func (r *Roller) Intn(n int) int {
	return r.src.Intn(n)
}
