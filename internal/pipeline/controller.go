// Package pipeline implements the Turn Pipeline Controller (spec.md §4.1,
// §5): the worker that owns one encounter's resolution lifecycle end to
// end — the round loop, oracle/fallback escalation per turn, the
// legendary/reaction dispatcher's between-turn window, and the bounded
// drop-oldest observer event channel.
//
// Grounded on internal/server/lifecycle.go's Service/Lifecycle shape
// (named long-running components, ordered start/stop, a dedicated
// goroutine isolated from the caller) generalized from "manage several
// named services" to "run a single cancellable round loop with
// pause/resume", and internal/game/session/entity.go's
// BridgeEntity.Push non-blocking-send pattern, adapted from
// reject-on-full to drop-oldest-on-full per spec.md §5's backpressure
// policy.
package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/atre/internal/config"
	"github.com/cory-johannsen/atre/internal/dice"
	"github.com/cory-johannsen/atre/internal/encounter"
	"github.com/cory-johannsen/atre/internal/fallback"
	"github.com/cory-johannsen/atre/internal/legendary"
	"github.com/cory-johannsen/atre/internal/oracle"
	"github.com/cory-johannsen/atre/internal/rules"
	"github.com/cory-johannsen/atre/internal/summary"
	"github.com/cory-johannsen/atre/internal/transaction"
)

// Mode selects whether the controller advances turns continuously or
// pauses itself after every committed turn, per spec.md §4.1's
// mode ∈ {continuous, step}.
type Mode string

const (
	ModeContinuous Mode = "continuous"
	ModeStep       Mode = "step"
)

// Status is the snapshot returned by Controller.Status.
type Status struct {
	Running       bool
	Paused        bool
	StopRequested bool
	Round         int
	Turn          int
}

// ErrAlreadyRunning and ErrNotRunning name the two public-contract error
// cases from spec.md §4.1's operation table.
var (
	ErrAlreadyRunning = fmt.Errorf("pipeline: already running")
	ErrNotRunning     = fmt.Errorf("pipeline: not running")
)

// Controller resolves exactly one encounter. It is not reusable across
// encounters once Start has been called and the worker has exited.
type Controller struct {
	Gateway   *oracle.Gateway
	Ladder    *fallback.Ladder
	Legendary *legendary.Dispatcher
	TxManager *transaction.Manager
	Dice      dice.Source
	Config    config.EngineConfig
	Logger    *zap.Logger

	mu            sync.Mutex
	cond          *sync.Cond
	running       bool
	paused        bool
	stopRequested bool
	mode          Mode

	state *encounter.State

	// ctx is cancelled by Stop so a turn blocked on the oracle call unwinds
	// immediately instead of running to completion (spec.md §5's
	// suspension point #2).
	ctx    context.Context
	cancel context.CancelFunc

	events chan Event
	done   chan struct{}
}

// NewController builds a Controller from its wired collaborators.
func NewController(gw *oracle.Gateway, ladder *fallback.Ladder, disp *legendary.Dispatcher, tx *transaction.Manager, src dice.Source, cfg config.EngineConfig, logger *zap.Logger) *Controller {
	c := &Controller{Gateway: gw, Ladder: ladder, Legendary: disp, TxManager: tx, Dice: src, Config: cfg, Logger: logger}
	c.cond = sync.NewCond(&c.mu)
	return c
}

// Start begins resolving state on a dedicated worker goroutine and returns
// the observer's read-only event channel. Returns ErrAlreadyRunning if
// this Controller already has a resolution in progress.
func (c *Controller) Start(state *encounter.State, mode Mode) (<-chan Event, error) {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return nil, ErrAlreadyRunning
	}
	c.running = true
	c.paused = false
	c.stopRequested = false
	c.mode = mode
	c.state = state
	c.ctx, c.cancel = context.WithCancel(context.Background())
	c.mu.Unlock()

	c.tagCanonicalAbilities(state)

	bufSize := c.Config.ObserverBufferSize
	if bufSize < 1 {
		bufSize = 64
	}
	c.events = make(chan Event, bufSize)
	c.done = make(chan struct{})

	go c.run()
	return c.events, nil
}

// tagCanonicalAbilities registers every combatant's ability list with the
// Oracle Gateway's Ability Validator, building its canonical-tag cache, and
// retags OwnedAbilities with the result — spec.md §4.6/§3's "tagged at
// encounter load". CanonicalAbilities is rebuilt from the same tagged list
// so the Transaction Manager's ability_tag_purity invariant keeps comparing
// tagged-to-tagged rather than tripping over the retag.
func (c *Controller) tagCanonicalAbilities(state *encounter.State) {
	if c.Gateway == nil || c.Gateway.Validator == nil {
		return
	}
	for _, id := range state.InitiativeOrder {
		actor := state.Combatants[id]
		if actor == nil || len(actor.OwnedAbilities) == 0 {
			continue
		}
		tagged := c.Gateway.Validator.CanonicalAbilities(actor.Name, actor.ID, actor.OwnedAbilities)
		actor.OwnedAbilities = tagged
		actor.CanonicalAbilities = make(map[string]bool, len(tagged))
		for _, t := range tagged {
			actor.CanonicalAbilities[t] = true
		}
	}
}

// Pause requests the worker suspend before its next turn.
func (c *Controller) Pause() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.running {
		return ErrNotRunning
	}
	c.paused = true
	return nil
}

// Resume wakes a paused worker.
func (c *Controller) Resume() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.running {
		return ErrNotRunning
	}
	c.paused = false
	c.cond.Broadcast()
	return nil
}

// Stop requests cancellation and blocks until the worker exits, bounded by
// a 5s safety timeout (spec.md §5) after which it returns regardless — the
// Transaction Manager's snapshot guarantees the last committed state stays
// consistent even if the worker is still unwinding an in-flight oracle
// call.
func (c *Controller) Stop() error {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return ErrNotRunning
	}
	c.stopRequested = true
	c.paused = false
	cancel := c.cancel
	c.cond.Broadcast()
	c.mu.Unlock()

	// Cancelling c.ctx unblocks a turn parked in an oracle call — without
	// this, a Stop during a blocked Completer.Complete runs the turn to
	// completion before stopRequested is ever observed.
	if cancel != nil {
		cancel()
	}

	select {
	case <-c.done:
	case <-time.After(5 * time.Second):
	}
	return nil
}

// Status reports the controller's current lifecycle flags and position.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	st := Status{Running: c.running, Paused: c.paused, StopRequested: c.stopRequested}
	if c.state != nil {
		st.Round = c.state.Round
		st.Turn = c.state.TurnIndex
	}
	return st
}

// waitWhilePaused is the start-of-turn suspension point: it blocks while
// paused and reports whether the caller should stop instead of proceeding.
func (c *Controller) waitWhilePaused() (stop bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for c.paused && !c.stopRequested {
		c.cond.Wait()
	}
	return c.stopRequested
}

func (c *Controller) requestStop() {
	c.mu.Lock()
	c.stopRequested = true
	c.mu.Unlock()
}

// emit delivers ev to the observer channel without blocking the worker. On
// a full channel it drops the two oldest buffered events, making room for
// an EventLag diagnostic that reports the drop and then for ev itself, per
// spec.md §5's drop-oldest backpressure
// policy (adapted from BridgeEntity.Push's reject-on-full).
func (c *Controller) emit(ev Event) {
	select {
	case c.events <- ev:
		return
	default:
	}
	if !c.Config.DropOldestOnObserverLag {
		c.events <- ev
		return
	}
	dropped := 0
	for i := 0; i < 2; i++ {
		select {
		case <-c.events:
			dropped++
		default:
		}
	}
	select {
	case c.events <- Event{Type: EventLag, DroppedEvents: dropped}:
	default:
	}
	select {
	case c.events <- ev:
	default:
	}
}

func (c *Controller) run() {
	defer func() {
		c.mu.Lock()
		c.running = false
		cancel := c.cancel
		c.mu.Unlock()
		if cancel != nil {
			cancel()
		}
		close(c.done)
	}()

	for {
		if stop := c.waitWhilePaused(); stop {
			return
		}

		if c.state.TurnIndex == 0 {
			c.onRoundStart()
		}

		actor, err := c.state.Current()
		if err != nil {
			c.emit(Event{Type: EventFatal, Message: err.Error()})
			return
		}

		c.runTurn(actor)

		c.mu.Lock()
		stopped := c.stopRequested
		c.mu.Unlock()
		if stopped {
			return
		}

		if over, winner := c.state.Over(); over {
			c.emit(Event{Type: EventEncounterEnd, Winner: winner})
			return
		}

		if c.Legendary != nil {
			c.runLegendaryWindow(actor.ID)
		}

		c.state.AdvanceTurn()

		if c.mode == ModeStep {
			c.mu.Lock()
			c.paused = true
			c.mu.Unlock()
		}
	}
}

// onRoundStart resets every combatant's legendary-action pool and ticks
// condition durations, per spec.md §4.1's round-loop description.
func (c *Controller) onRoundStart() {
	c.emit(Event{Type: EventRoundStart, Round: c.state.Round})
	for _, id := range c.state.InitiativeOrder {
		cbt := c.state.Combatants[id]
		if cbt == nil {
			continue
		}
		cbt.Legendary.Used = 0
		cbt.Legendary.ResistedThisRound = false
		cbt.Conditions.Tick()
	}
}

func (c *Controller) runTurn(actor *encounter.Combatant) {
	actor.Economy.ResetForTurn(actor.Speed)
	c.emit(Event{Type: EventTurnStart, Round: c.state.Round, CombatantID: actor.ID})

	if actor.Status == encounter.StatusDead || actor.Status == encounter.StatusStable {
		return
	}
	c.rollRecharge(actor)

	if actor.Status == encounter.StatusUnconscious {
		c.runDeathSave(actor)
		return
	}

	intent, tier := c.resolveIntent(actor)

	c.mu.Lock()
	stopped := c.stopRequested
	c.mu.Unlock()
	if stopped {
		// Stop was requested while this turn was blocked on the oracle
		// call; the intent it eventually produced (or the ladder's
		// stand-in) must never commit after the controller has unwound.
		return
	}

	c.emit(Event{Type: EventIntent, CombatantID: actor.ID, Intent: intent, SourceTier: tier})
	c.commitIntent(actor.ID, intent, tier)
}

// rollRecharge performs the start-of-turn recharge check for actor,
// independent of whatever action_type the oracle eventually chooses, per
// spec.md §4.4: "at the start of the owner's turn, each recharge-pool
// entry whose last use was in a prior turn is rolled."
func (c *Controller) rollRecharge(actor *encounter.Combatant) {
	die := c.Config.RechargeDie
	if die == "" {
		die = "1d6"
	}
	recharged := rules.RollRecharge(actor, die, c.state.Round, c.Dice)
	if len(recharged) == 0 {
		return
	}
	if c.Logger != nil {
		c.Logger.Info("recharge roll succeeded", zap.String("combatant", actor.ID), zap.Strings("abilities", recharged))
	}
}

func (c *Controller) runDeathSave(actor *encounter.Combatant) {
	outcome := rules.RollDeathSave(actor, c.Dice)
	c.emit(Event{Type: EventDice, CombatantID: actor.ID, Expression: "1d20", Result: outcome.Roll, Purpose: "death_save"})
	rec := encounter.TurnRecord{
		ID:          encounter.NewTurnRecordID(),
		Round:       c.state.Round,
		CombatantID: actor.ID,
		Intent:      encounter.Intent{Narrative: deathSaveNarrative(outcome)},
		DiceRolls:   []encounter.DiceRollLog{{Expression: "1d20", Result: outcome.Roll, Purpose: "death_save"}},
		Narrative:   deathSaveNarrative(outcome),
		SourceTier:  encounter.TierDefault,
	}
	c.state.Append(rec)
	c.emit(Event{Type: EventResult, TurnRecord: rec})
}

func deathSaveNarrative(o rules.DeathSaveOutcome) string {
	switch {
	case o.Woke:
		return "regains consciousness with 1 hp"
	case o.Died:
		return "fails a third death save and dies"
	case o.Stabilized:
		return "stabilizes after three successful death saves"
	default:
		return "makes a death saving throw"
	}
}

// resolveIntent runs the oracle-retry tiers under the per-turn deadline
// and demotes to the Fallback Ladder's heuristic/default tiers on failure
// or timeout, per spec.md §4.3 and §5.
func (c *Controller) resolveIntent(actor *encounter.Combatant) (encounter.Intent, encounter.SourceTier) {
	turnCtx, cancel := context.WithTimeout(c.ctx, time.Duration(c.Config.TurnDeadlineMs)*time.Millisecond)
	defer cancel()

	policy := summary.Policy{VerbatimTurns: c.Config.SummaryVerbatimTurns, CharBudget: c.Config.SummaryCharBudget}
	prompt, err := c.Gateway.BuildPrompt(c.state, actor.ID, policy, c.Config.HideEnemyHPBands)
	if err != nil {
		if c.Logger != nil {
			c.Logger.Error("pipeline: failed to build oracle prompt", zap.String("actor", actor.ID), zap.Error(err))
		}
		return c.Ladder.Resolve(turnCtx, c.state, actor.ID)
	}

	intent, lastErr := c.callOracle(turnCtx, prompt, actor)
	tier := encounter.TierOracle

	for attempt := 0; lastErr != nil && attempt < c.Config.RetryBudget; attempt++ {
		if turnCtx.Err() != nil {
			c.emit(Event{Type: EventTurnTimeout, CombatantID: actor.ID})
			return encounter.DefaultDodgeIntent(), encounter.TierDefault
		}
		retryPrompt := fallback.RetryOraclePrompt(prompt, lastErr.Error())
		intent, lastErr = c.callOracle(turnCtx, retryPrompt, actor)
		tier = encounter.TierOracleRetry
	}
	if lastErr == nil {
		return intent, tier
	}

	if turnCtx.Err() != nil {
		c.emit(Event{Type: EventTurnTimeout, CombatantID: actor.ID})
		return encounter.DefaultDodgeIntent(), encounter.TierDefault
	}
	return c.Ladder.Resolve(turnCtx, c.state, actor.ID)
}

func (c *Controller) callOracle(ctx context.Context, prompt string, actor *encounter.Combatant) (encounter.Intent, error) {
	oracleCtx, cancel := context.WithTimeout(ctx, time.Duration(c.Config.OracleDeadlineMs)*time.Millisecond)
	defer cancel()
	intent, _, err := c.Gateway.RequestIntent(oracleCtx, c.state, prompt, actor)
	return intent, err
}

// commitIntent drives the Transaction Manager and, on rollback, demotes to
// the next lower fallback tier per spec.md §4.5: retry/oracle → heuristic,
// heuristic → default, default rolling back is fatal.
//
// A demoted attempt's own dice rolls and rollback are never emitted: only
// the attempt that actually terminates the turn (a commit, or the final
// rollback once no lower tier remains) gets to put events on the stream, so
// the per-turn sequence still matches turn_start, intent, dice*, (result |
// rollback) with a single terminal event (I9) even when several tiers were
// tried underneath.
func (c *Controller) commitIntent(actorID string, intent encounter.Intent, tier encounter.SourceTier) {
	for {
		outcome := c.TxManager.Apply(c.state, actorID, intent, tier)
		if outcome.Committed {
			for _, dr := range outcome.Record.DiceRolls {
				c.emit(Event{Type: EventDice, CombatantID: actorID, Expression: dr.Expression, Result: dr.Result, Purpose: dr.Purpose})
			}
			c.emit(Event{Type: EventResult, TurnRecord: outcome.Record})
			return
		}

		next, nextTier, ok := c.demote(tier, actorID)
		if !ok {
			for _, dr := range outcome.Record.DiceRolls {
				c.emit(Event{Type: EventDice, CombatantID: actorID, Expression: dr.Expression, Result: dr.Result, Purpose: dr.Purpose})
			}
			c.emit(Event{Type: EventRollback, Round: c.state.Round, CombatantID: actorID, Reason: outcome.Record.Reason})
			c.emit(Event{Type: EventFatal, Message: fmt.Sprintf("default tier rolled back for %s: %s", actorID, outcome.Record.Reason)})
			c.requestStop()
			return
		}
		intent, tier = next, nextTier
	}
}

func (c *Controller) demote(tier encounter.SourceTier, actorID string) (encounter.Intent, encounter.SourceTier, bool) {
	switch tier {
	case encounter.TierOracle, encounter.TierOracleRetry:
		if actor, ok := c.state.Combatants[actorID]; ok {
			if intent, ok := fallback.Heuristic(c.state, actor); ok {
				return intent, encounter.TierHeuristic, true
			}
		}
		return encounter.DefaultDodgeIntent(), encounter.TierDefault, true
	case encounter.TierHeuristic:
		return encounter.DefaultDodgeIntent(), encounter.TierDefault, true
	default:
		return encounter.Intent{}, "", false
	}
}

// runLegendaryWindow runs the Legendary & Reaction Dispatcher's
// between-turn pass (spec.md §4.8) for every combatant other than
// justActed with legendary actions remaining. Target selection reuses the
// Fallback Ladder's heuristic scorer rather than duplicating its target
// ranking — the dispatcher only decides *whether* and *which ability*;
// the heuristic already decides *whom*.
func (c *Controller) runLegendaryWindow(justActed string) {
	for _, owner := range c.Legendary.PendingLegendary(c.state, justActed) {
		name, ok := c.Legendary.ChooseLegendaryAbility(owner)
		if !ok {
			continue
		}
		targeting, ok := fallback.Heuristic(c.state, owner)
		if !ok || len(targeting.Targets) == 0 {
			continue
		}
		intent := encounter.Intent{
			ActionType:  encounter.ActionLegendary,
			AbilityName: name,
			Targets:     targeting.Targets,
			Narrative:   fmt.Sprintf("%s uses a legendary action: %s", owner.Name, name),
		}
		c.emit(Event{Type: EventIntent, CombatantID: owner.ID, Intent: intent, SourceTier: encounter.TierHeuristic})

		outcome := c.TxManager.Apply(c.state, owner.ID, intent, encounter.TierHeuristic)
		for _, dr := range outcome.Record.DiceRolls {
			c.emit(Event{Type: EventDice, CombatantID: owner.ID, Expression: dr.Expression, Result: dr.Result, Purpose: dr.Purpose})
		}
		if !outcome.Committed {
			c.emit(Event{Type: EventRollback, Round: c.state.Round, CombatantID: owner.ID, Reason: outcome.Record.Reason})
			continue
		}
		owner.Legendary.Used++
		c.emit(Event{Type: EventResult, TurnRecord: outcome.Record})
	}
}
