package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() Config {
	return Config{
		Engine: EngineConfig{
			TurnDeadlineMs:          8000,
			OracleDeadlineMs:        4000,
			RetryBudget:             1,
			SummaryVerbatimTurns:    3,
			SummaryCharBudget:       4000,
			CriticalRange:           20,
			ObserverBufferSize:      64,
			DropOldestOnObserverLag: true,
			RechargeDie:             "1d6",
		},
		Database: DatabaseConfig{
			Host: "localhost", Port: 5432, User: "atre", Name: "atre",
			SSLMode: "disable", MaxConns: 10, MinConns: 2,
		},
		Oracle:  OracleConfig{Model: "claude-3-5-sonnet-latest"},
		Logging: LoggingConfig{Level: "info", Format: "json"},
	}
}

func TestConfig_ValidateHappyPath(t *testing.T) {
	require.NoError(t, validConfig().Validate())
}

func TestConfig_ValidateOracleDeadlineExceedsTurnDeadline(t *testing.T) {
	cfg := validConfig()
	cfg.Engine.OracleDeadlineMs = cfg.Engine.TurnDeadlineMs + 1
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "oracle_deadline_ms must not exceed")
}

func TestConfig_ValidateCriticalRangeOutOfBounds(t *testing.T) {
	cfg := validConfig()
	cfg.Engine.CriticalRange = 21
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "critical_range must be 1-20")
}

func TestConfig_ValidateAggregatesMultipleErrors(t *testing.T) {
	cfg := validConfig()
	cfg.Engine.RetryBudget = -1
	cfg.Logging.Level = "verbose"
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "retry_budget must be >= 0")
	assert.Contains(t, err.Error(), "logging.level must be one of")
}

func TestDatabaseConfig_DSN(t *testing.T) {
	d := DatabaseConfig{Host: "db", Port: 5432, User: "u", Password: "p", Name: "n", SSLMode: "disable"}
	assert.Equal(t, "postgres://u:p@db:5432/n?sslmode=disable", d.DSN())
}

func TestLoad_AppliesDefaultsAndEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("engine:\n  turn_deadline_ms: 45000\n"), 0o644))

	t.Setenv("ATRE_ENGINE_RETRY_BUDGET", "3")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 45000, cfg.Engine.TurnDeadlineMs)
	assert.Equal(t, 3, cfg.Engine.RetryBudget)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoad_InvalidConfigFails(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("engine:\n  turn_deadline_ms: -1\n"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
}
