// Package wireapp assembles the Turn Pipeline Controller and every
// collaborator it needs out of a loaded config.Config, following
// google/wire's provider-set/injector convention — the teacher's go.mod
// declared the dependency but never used it; this is its first wiring.
package wireapp

import (
	"github.com/anthropics/anthropic-sdk-go"
	"go.uber.org/zap"

	"github.com/cory-johannsen/atre/internal/ability"
	"github.com/cory-johannsen/atre/internal/config"
	"github.com/cory-johannsen/atre/internal/dice"
	"github.com/cory-johannsen/atre/internal/fallback"
	"github.com/cory-johannsen/atre/internal/legendary"
	"github.com/cory-johannsen/atre/internal/observability"
	"github.com/cory-johannsen/atre/internal/oracle"
	"github.com/cory-johannsen/atre/internal/pipeline"
	"github.com/cory-johannsen/atre/internal/rules"
	"github.com/cory-johannsen/atre/internal/scripting"
	"github.com/cory-johannsen/atre/internal/transaction"
)

// Application bundles every collaborator the Turn Pipeline Controller
// needs, built once from Config and reused across every encounter it
// resolves (the collaborators themselves carry no per-encounter state;
// only pipeline.Controller is built fresh per encounter, via NewController).
type Application struct {
	Config    config.Config
	Logger    *zap.Logger
	Dice      dice.Source
	Gateway   *oracle.Gateway
	Ladder    *fallback.Ladder
	Dispatcher *legendary.Dispatcher
	TxManager *transaction.Manager
}

// NewController builds a fresh Controller for one encounter.
func (a *Application) NewController() *pipeline.Controller {
	return pipeline.NewController(a.Gateway, a.Ladder, a.Dispatcher, a.TxManager, a.Dice, a.Config.Engine, a.Logger)
}

func ProvideLogger(cfg config.Config) (*zap.Logger, error) {
	return observability.NewLogger(cfg.Logging)
}

func ProvideDiceSource() dice.Source {
	return dice.NewCryptoSource()
}

func ProvideDiceRoller(src dice.Source, logger *zap.Logger) *dice.Roller {
	return dice.NewLoggedRoller(src, logger)
}

func ProvideAbilityValidator() *ability.Validator {
	return ability.NewValidator()
}

// ProvideScriptManager builds the sandboxed Lua VM manager the Legendary &
// Reaction Dispatcher calls into. Loading cfg.Oracle.ScriptRoot is
// best-effort: an empty root or a missing directory leaves the manager
// with no loaded hooks, so CallHook always returns cleanly with no
// reactions available rather than failing application startup.
func ProvideScriptManager(roller *dice.Roller, cfg config.Config, logger *zap.Logger) *scripting.Manager {
	mgr := scripting.NewManager(roller, logger)
	if cfg.Oracle.ScriptRoot == "" {
		return mgr
	}
	if err := mgr.LoadZone(cfg.Oracle.ZoneID, cfg.Oracle.ScriptRoot, 0); err != nil {
		logger.Warn("loading legendary/reaction scripts",
			zap.String("zone", cfg.Oracle.ZoneID),
			zap.String("script_root", cfg.Oracle.ScriptRoot),
			zap.Error(err))
	}
	return mgr
}

func ProvideDispatcher(mgr *scripting.Manager, cfg config.Config, logger *zap.Logger) *legendary.Dispatcher {
	return legendary.NewDispatcher(mgr, cfg.Oracle.ZoneID, logger)
}

// ProvideRulesEngine builds the Rules Engine with the Legendary & Reaction
// Dispatcher wired as its reaction hooks, so an attack or save made
// against a reacting combatant gives it a chance to mutate the result
// before it commits (spec.md §4.8). Engine never imports legendary
// directly; the dependency runs through the ReactionHooks interface.
func ProvideRulesEngine(src dice.Source, disp *legendary.Dispatcher, cfg config.Config, logger *zap.Logger) *rules.Engine {
	eng := rules.NewEngine(src, logger, cfg.Engine.CriticalRange)
	eng.Reactions = disp
	return eng
}

func ProvideCompleter(cfg config.Config) oracle.Completer {
	return oracle.NewAnthropicOracle(cfg.Oracle.APIKey, anthropic.Model(cfg.Oracle.Model))
}

func ProvideGateway(completer oracle.Completer, validator *ability.Validator, logger *zap.Logger) *oracle.Gateway {
	return oracle.NewGateway(completer, validator, logger)
}

func ProvideLadder(logger *zap.Logger) *fallback.Ladder {
	return fallback.NewLadder(logger)
}

func ProvideTxManager(engine *rules.Engine, logger *zap.Logger) *transaction.Manager {
	return transaction.NewManager(engine, logger)
}

func NewApplication(cfg config.Config, logger *zap.Logger, src dice.Source, gw *oracle.Gateway, ladder *fallback.Ladder, disp *legendary.Dispatcher, tx *transaction.Manager) *Application {
	return &Application{Config: cfg, Logger: logger, Dice: src, Gateway: gw, Ladder: ladder, Dispatcher: disp, TxManager: tx}
}
