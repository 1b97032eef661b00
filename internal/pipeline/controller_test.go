package pipeline_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cory-johannsen/atre/internal/ability"
	"github.com/cory-johannsen/atre/internal/config"
	"github.com/cory-johannsen/atre/internal/encounter"
	"github.com/cory-johannsen/atre/internal/fallback"
	"github.com/cory-johannsen/atre/internal/oracle"
	"github.com/cory-johannsen/atre/internal/pipeline"
	"github.com/cory-johannsen/atre/internal/rules"
	"github.com/cory-johannsen/atre/internal/transaction"
)

// cyclingSource loops through values, used where exact die outcomes don't
// matter beyond "always roll something valid and deterministic".
type cyclingSource struct {
	values []int
	i      int
}

func (s *cyclingSource) Intn(n int) int {
	v := s.values[s.i%len(s.values)]
	s.i++
	if v >= n {
		v = n - 1
	}
	return v
}

// neverCompletes always fails to produce parseable JSON, forcing every
// turn down to the Fallback Ladder's heuristic tier deterministically.
type neverCompletes struct {
	block bool
}

func (n *neverCompletes) Complete(ctx context.Context, prompt string) (string, error) {
	if n.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	return "not json", nil
}

func tinyDuel() *encounter.State {
	kobold := encounter.NewCombatant("kobold-1", "Kobold", encounter.SideMonster)
	kobold.HP, kobold.MaxHP, kobold.AC, kobold.Speed = 10000000, 10000000, 12, 30
	kobold.Position.DistanceTo = map[string]int{"commoner-1": 5}
	kobold.AbilityProfiles["bite"] = encounter.AbilityProfile{
		IsAttack: true, IsMelee: true, AttackBonus: 2, DamageDice: "1d4", DamageType: "piercing",
	}

	commoner := encounter.NewCombatant("commoner-1", "Commoner", encounter.SidePlayer)
	commoner.HP, commoner.MaxHP, commoner.AC, commoner.Speed = 10000000, 10000000, 10, 30
	commoner.Position.DistanceTo = map[string]int{"kobold-1": 5}
	commoner.AbilityProfiles["club"] = encounter.AbilityProfile{
		IsAttack: true, IsMelee: true, AttackBonus: 1, DamageDice: "1d4", DamageType: "bludgeoning",
	}

	return encounter.NewState([]*encounter.Combatant{kobold, commoner})
}

func testController(state *encounter.State) *pipeline.Controller {
	src := &cyclingSource{values: []int{10}}
	engine := rules.NewEngine(src, nil, 20)
	tx := transaction.NewManager(engine, nil)
	gw := oracle.NewGateway(&neverCompletes{}, ability.NewValidator(), nil)
	ladder := fallback.NewLadder(nil)
	cfg := config.EngineConfig{
		TurnDeadlineMs:   5000,
		OracleDeadlineMs: 2000,
		RetryBudget:      1,
		SummaryVerbatimTurns: 3,
		SummaryCharBudget:    1200,
		CriticalRange:        20,
		HideEnemyHPBands:     true,
		DropOldestOnObserverLag: true,
		ObserverBufferSize:      64,
	}
	return pipeline.NewController(gw, ladder, nil, tx, src, cfg, nil)
}

func drain(t *testing.T, events <-chan pipeline.Event, timeout time.Duration) []pipeline.Event {
	t.Helper()
	var out []pipeline.Event
	deadline := time.After(timeout)
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return out
			}
			out = append(out, ev)
		case <-deadline:
			return out
		}
	}
}

func TestController_Start_TwoAlreadyDefeatedSideEndsImmediately(t *testing.T) {
	state := tinyDuel()
	state.Combatants["commoner-1"].HP = 0
	state.Combatants["commoner-1"].Status = encounter.StatusDead

	c := testController(state)
	events, err := c.Start(state, pipeline.ModeContinuous)
	require.NoError(t, err)

	seen := drain(t, events, time.Second)
	require.NotEmpty(t, seen)
	assert.Equal(t, pipeline.EventRoundStart, seen[0].Type)

	var sawEnd bool
	for _, ev := range seen {
		if ev.Type == pipeline.EventEncounterEnd {
			sawEnd = true
			assert.Equal(t, "monsters", ev.Winner)
		}
	}
	assert.True(t, sawEnd, "expected an encounter_end event")
}

func TestController_StepMode_PausesAfterEachTurn(t *testing.T) {
	state := tinyDuel() // oracle never returns parseable JSON; the attempt and its retry both fail to parse, so the heuristic tier acts
	c := testController(state)

	events, err := c.Start(state, pipeline.ModeStep)
	require.NoError(t, err)

	// drain a little to let the first turn complete
	_ = drain(t, events, 200*time.Millisecond)

	require.Eventually(t, func() bool {
		st := c.Status()
		return st.Running && st.Paused
	}, time.Second, 10*time.Millisecond)

	require.NoError(t, c.Stop())
	assert.False(t, c.Status().Running)
}

func TestController_Stop_WhileRunning(t *testing.T) {
	state := tinyDuel()
	c := testController(state)

	_, err := c.Start(state, pipeline.ModeContinuous)
	require.NoError(t, err)

	require.NoError(t, c.Stop())
	assert.False(t, c.Status().Running)
}

func TestController_Start_AlreadyRunning(t *testing.T) {
	state := tinyDuel()
	c := testController(state)

	_, err := c.Start(state, pipeline.ModeContinuous)
	require.NoError(t, err)

	_, err = c.Start(state, pipeline.ModeContinuous)
	assert.ErrorIs(t, err, pipeline.ErrAlreadyRunning)

	require.NoError(t, c.Stop())
}

func TestController_PauseResume(t *testing.T) {
	state := tinyDuel()
	c := testController(state)

	_, err := c.Start(state, pipeline.ModeContinuous)
	require.NoError(t, err)

	require.NoError(t, c.Pause())
	require.Eventually(t, func() bool { return c.Status().Paused }, time.Second, 10*time.Millisecond)

	require.NoError(t, c.Resume())
	assert.False(t, c.Status().Paused)

	require.NoError(t, c.Stop())
}

func TestController_Stop_CancelsBlockedOracleCall(t *testing.T) {
	state := tinyDuel()
	src := &cyclingSource{values: []int{10}}
	engine := rules.NewEngine(src, nil, 20)
	tx := transaction.NewManager(engine, nil)
	gw := oracle.NewGateway(&neverCompletes{block: true}, ability.NewValidator(), nil)
	ladder := fallback.NewLadder(nil)
	cfg := config.EngineConfig{
		// Deliberately far longer than the test should take to run: if Stop
		// only relied on the turn/oracle deadlines elapsing naturally (or on
		// its own 5s safety timeout) rather than cancelling the blocked
		// Complete call directly, this test would take 60s or time out.
		TurnDeadlineMs:          60000,
		OracleDeadlineMs:        60000,
		RetryBudget:             1,
		SummaryVerbatimTurns:    3,
		SummaryCharBudget:       1200,
		CriticalRange:           20,
		HideEnemyHPBands:        true,
		DropOldestOnObserverLag: true,
		ObserverBufferSize:      64,
	}
	c := pipeline.NewController(gw, ladder, nil, tx, src, cfg, nil)

	_, err := c.Start(state, pipeline.ModeContinuous)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return c.Status().Running }, time.Second, 10*time.Millisecond)

	start := time.Now()
	require.NoError(t, c.Stop())
	assert.Less(t, time.Since(start), 2*time.Second, "Stop must cancel the blocked oracle call, not wait it out")
	assert.False(t, c.Status().Running)
}

func TestController_PauseResume_NotRunningErrors(t *testing.T) {
	c := testController(tinyDuel())
	assert.ErrorIs(t, c.Pause(), pipeline.ErrNotRunning)
	assert.ErrorIs(t, c.Resume(), pipeline.ErrNotRunning)
	assert.ErrorIs(t, c.Stop(), pipeline.ErrNotRunning)
}
