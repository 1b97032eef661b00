// Package main provides a CLI harness that loads engine configuration,
// wires the Turn Pipeline Controller via internal/wireapp, and resolves a
// single sample encounter end to end, logging every observer event until
// the encounter ends.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/atre/internal/config"
	"github.com/cory-johannsen/atre/internal/encounter"
	"github.com/cory-johannsen/atre/internal/pipeline"
	"github.com/cory-johannsen/atre/internal/server"
	"github.com/cory-johannsen/atre/internal/storage/postgres"
	"github.com/cory-johannsen/atre/internal/wireapp"
)

func main() {
	start := time.Now()

	configPath := flag.String("config", "configs/dev.yaml", "path to configuration file")
	mode := flag.String("mode", "continuous", "resolution mode: continuous or step")
	archive := flag.Bool("archive", false, "archive the resolved encounter to PostgreSQL")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	app, err := wireapp.InitializeApplication(cfg)
	if err != nil {
		log.Fatalf("wiring application: %v", err)
	}
	defer app.Logger.Sync()

	app.Logger.Info("atre-sim starting", zap.String("mode", *mode))

	ctx := context.Background()
	var archiveRepo *postgres.ArchiveRepository
	encounterID := fmt.Sprintf("sim-%d", time.Now().UnixNano())
	if *archive {
		pool, err := postgres.NewPool(ctx, cfg.Database)
		if err != nil {
			app.Logger.Fatal("connecting to archive database", zap.Error(err))
		}
		defer pool.Close()
		archiveRepo = postgres.NewArchiveRepository(pool.DB())
		if err := archiveRepo.BeginEncounter(ctx, encounterID); err != nil {
			app.Logger.Fatal("beginning archived encounter", zap.Error(err))
		}
	}

	state := sampleEncounter()
	controller := app.NewController()

	runMode := pipeline.ModeContinuous
	if *mode == "step" {
		runMode = pipeline.ModeStep
	}

	// The resolution run is registered as a single lifecycle.Service so a
	// SIGINT/SIGTERM mid-encounter calls Controller.Stop, which requests
	// the worker stop after its current turn rather than killing it mid-write.
	resolved := make(chan struct{})
	svc := &server.FuncService{
		StartFn: func() error {
			defer close(resolved)
			events, err := controller.Start(state, runMode)
			if err != nil {
				return err
			}
			drainEvents(app.Logger, events, archiveRepo, ctx, encounterID, start)
			return nil
		},
		StopFn: func() {
			if err := controller.Stop(); err != nil && err != pipeline.ErrNotRunning {
				app.Logger.Warn("stopping controller", zap.Error(err))
			}
			<-resolved
		},
	}

	// Lifecycle.Run blocks on signal/error/ctx-cancellation; cancel its
	// context once the encounter resolves on its own so a completed run
	// doesn't sit waiting for a signal that will never come.
	runCtx, cancelRun := context.WithCancel(context.Background())
	go func() {
		<-resolved
		cancelRun()
	}()

	lifecycle := server.NewLifecycle(app.Logger)
	lifecycle.Add("turn-pipeline", svc)
	if err := lifecycle.Run(runCtx); err != nil {
		app.Logger.Fatal("running lifecycle", zap.Error(err))
	}
}

// drainEvents consumes the Controller's observer channel until a terminal
// event arrives. The Controller never closes the channel itself (a
// terminal EventEncounterEnd/EventFatal is the completion signal, not
// channel closure), so this loop returns explicitly rather than ranging
// to exhaustion.
func drainEvents(logger *zap.Logger, events <-chan pipeline.Event, archiveRepo *postgres.ArchiveRepository, ctx context.Context, encounterID string, start time.Time) {
	for ev := range events {
		logEvent(logger, ev)
		if archiveRepo != nil && ev.Type == pipeline.EventResult {
			if err := archiveRepo.AppendTurnRecord(ctx, encounterID, ev.TurnRecord); err != nil {
				logger.Warn("archiving turn record", zap.Error(err))
			}
		}
		if ev.Type == pipeline.EventEncounterEnd || ev.Type == pipeline.EventFatal {
			if archiveRepo != nil && ev.Type == pipeline.EventEncounterEnd {
				if err := archiveRepo.EndEncounter(ctx, encounterID, ev.Winner); err != nil {
					logger.Warn("ending archived encounter", zap.Error(err))
				}
			}
			logger.Info("encounter resolved",
				zap.String("winner", ev.Winner),
				zap.Duration("elapsed", time.Since(start)),
			)
			return
		}
	}
}

func logEvent(logger *zap.Logger, ev pipeline.Event) {
	logger.Info("observer event",
		zap.String("type", string(ev.Type)),
		zap.Int("round", ev.Round),
		zap.String("combatant", ev.CombatantID),
		zap.String("winner", ev.Winner),
		zap.String("reason", ev.Reason),
	)
}

// sampleEncounter builds a two-combatant kobold-vs-commoner encounter used
// as the harness's default scenario.
func sampleEncounter() *encounter.State {
	kobold := encounter.NewCombatant("kobold-1", "Kobold", encounter.SideMonster)
	kobold.Abilities = encounter.AbilityScores{Strength: 7, Dexterity: 15, Constitution: 9, Intelligence: 8, Wisdom: 7, Charisma: 8}
	kobold.AC = 12
	kobold.HP, kobold.MaxHP = 5, 5
	kobold.Speed = 30
	kobold.Initiative = 18
	kobold.OwnedAbilities = []string{"bite"}
	kobold.CanonicalAbilities = map[string]bool{"bite": true}
	kobold.AbilityProfiles["bite"] = encounter.AbilityProfile{
		IsAttack: true, IsMelee: true, AttackBonus: 4,
		DamageDice: "1d4", DamageBonus: 2, DamageType: "piercing",
		ActionCost: "action",
	}
	kobold.Economy.ResetForTurn(kobold.Speed)

	commoner := encounter.NewCombatant("commoner-1", "Commoner", encounter.SidePlayer)
	commoner.Abilities = encounter.AbilityScores{Strength: 10, Dexterity: 10, Constitution: 10, Intelligence: 10, Wisdom: 10, Charisma: 10}
	commoner.AC = 10
	commoner.HP, commoner.MaxHP = 4, 4
	commoner.Speed = 30
	commoner.Initiative = 10
	commoner.OwnedAbilities = []string{"club"}
	commoner.CanonicalAbilities = map[string]bool{"club": true}
	commoner.AbilityProfiles["club"] = encounter.AbilityProfile{
		IsAttack: true, IsMelee: true, AttackBonus: 2,
		DamageDice: "1d4", DamageType: "bludgeoning",
		ActionCost: "action",
	}
	commoner.Economy.ResetForTurn(commoner.Speed)

	kobold.Position.DistanceTo = map[string]int{"commoner-1": 5}
	commoner.Position.DistanceTo = map[string]int{"kobold-1": 5}

	return encounter.NewState([]*encounter.Combatant{kobold, commoner})
}
