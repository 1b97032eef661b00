//go:build wireinject

// Package wireapp assembles the Turn Pipeline Controller and every
// collaborator it needs out of a loaded config.Config, following
// google/wire's provider-set/injector convention (the teacher's go.mod
// declared the dependency but never used it). wire.go declares the
// provider set an actual `wire` invocation would consume to generate
// wire_gen.go; since the wire codegen tool cannot run in this
// environment, wire_gen.go is authored by hand in wire's own output
// idiom instead.
package wireapp

import (
	"github.com/google/wire"

	"github.com/cory-johannsen/atre/internal/config"
)

var ProviderSet = wire.NewSet(
	ProvideLogger,
	ProvideDiceSource,
	ProvideDiceRoller,
	ProvideAbilityValidator,
	ProvideScriptManager,
	ProvideDispatcher,
	ProvideRulesEngine,
	ProvideCompleter,
	ProvideGateway,
	ProvideLadder,
	ProvideTxManager,
	NewApplication,
)

// InitializeApplication is the injector wire would generate a body for
// from ProviderSet; see wire_gen.go for the hand-expanded equivalent.
func InitializeApplication(cfg config.Config) (*Application, error) {
	wire.Build(ProviderSet)
	return nil, nil
}
