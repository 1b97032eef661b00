// Package config provides Viper-based configuration loading for the engine:
// turn pipeline timing and retry policy, the optional archival database,
// and structured logging.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EngineConfig holds the Turn Pipeline Controller's timing and policy
// parameters.
type EngineConfig struct {
	// TurnDeadlineMs bounds the wall-clock time allotted to resolve a
	// single turn, including all fallback tiers, before the safety timer
	// forces the minimal-safe-default action.
	TurnDeadlineMs int `mapstructure:"turn_deadline_ms"`
	// OracleDeadlineMs bounds a single call to the Oracle Gateway.
	OracleDeadlineMs int `mapstructure:"oracle_deadline_ms"`
	// RetryBudget is the number of oracle retries permitted before the
	// Fallback Ladder demotes to the heuristic tactical chooser.
	RetryBudget int `mapstructure:"retry_budget"`
	// SummaryVerbatimTurns is the number of most recent turns the Context
	// Summariser includes verbatim rather than digesting.
	SummaryVerbatimTurns int `mapstructure:"summary_verbatim_turns"`
	// SummaryCharBudget bounds the total character length of a constructed
	// prompt summary.
	SummaryCharBudget int `mapstructure:"summary_char_budget"`
	// CriticalRange is the minimum d20 roll that counts as a critical hit
	// (20 by default; some creature traits widen this to 19 or 18).
	CriticalRange int `mapstructure:"critical_range"`
	// HideEnemyHPBands suppresses exact enemy HP in the prompt, exposing
	// only a coarse health band (healthy/bloodied/critical, or down at 0 HP).
	HideEnemyHPBands bool `mapstructure:"hide_enemy_hp_bands"`
	// DropOldestOnObserverLag selects the backpressure policy for the
	// observer event channel: drop the oldest buffered event rather than
	// blocking the turn pipeline when a slow observer falls behind.
	DropOldestOnObserverLag bool `mapstructure:"drop_oldest_on_observer_lag"`
	// ObserverBufferSize is the capacity of the observer event channel.
	ObserverBufferSize int `mapstructure:"observer_buffer_size"`
	// RechargeDie is the die expression the Turn Pipeline Controller rolls at
	// the start of a turn to determine whether a recharge-gated ability
	// becomes available again (e.g. "1d6"; empty means "1d6"). The Rules
	// Engine's recharge_ability action always rolls "1d6".
	RechargeDie string `mapstructure:"recharge_die"`
}

// DatabaseConfig holds PostgreSQL connection settings for the optional
// TurnRecord/encounter archiver.
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
}

// DSN returns the PostgreSQL connection string.
//
// Precondition: Host, Port, User, and Name must be non-empty.
// Postcondition: Returns a valid PostgreSQL DSN string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode,
	)
}

// OracleConfig holds the Anthropic Oracle Gateway's completer settings and
// the legendary/reaction Lua scripting directory.
type OracleConfig struct {
	APIKey string `mapstructure:"api_key"`
	Model  string `mapstructure:"model"`
	// ScriptRoot is the directory of per-zone Lua scripts the Legendary &
	// Reaction Dispatcher evaluates; empty disables scripted legendary
	// actions and reactions entirely.
	ScriptRoot string `mapstructure:"script_root"`
	ZoneID     string `mapstructure:"zone_id"`
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: "debug", "info", "warn", "error".
	Level string `mapstructure:"level"`
	// Format is the log output format: "json" or "console".
	Format string `mapstructure:"format"`
}

// Config is the top-level application configuration.
type Config struct {
	Engine   EngineConfig   `mapstructure:"engine"`
	Database DatabaseConfig `mapstructure:"database"`
	Oracle   OracleConfig   `mapstructure:"oracle"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// Validate checks all configuration invariants.
//
// Postcondition: Returns nil if configuration is valid, or an error describing all violations.
func (c Config) Validate() error {
	var errs []string

	if err := validateEngine(c.Engine); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateDatabase(c.Database); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateLogging(c.Logging); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateOracle(c.Oracle); err != nil {
		errs = append(errs, err.Error())
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

func validateEngine(e EngineConfig) error {
	var errs []string
	if e.TurnDeadlineMs < 1 {
		errs = append(errs, fmt.Sprintf("engine.turn_deadline_ms must be >= 1, got %d", e.TurnDeadlineMs))
	}
	if e.OracleDeadlineMs < 1 {
		errs = append(errs, fmt.Sprintf("engine.oracle_deadline_ms must be >= 1, got %d", e.OracleDeadlineMs))
	}
	if e.OracleDeadlineMs > e.TurnDeadlineMs {
		errs = append(errs, "engine.oracle_deadline_ms must not exceed engine.turn_deadline_ms")
	}
	if e.RetryBudget < 0 {
		errs = append(errs, fmt.Sprintf("engine.retry_budget must be >= 0, got %d", e.RetryBudget))
	}
	if e.SummaryVerbatimTurns < 0 {
		errs = append(errs, fmt.Sprintf("engine.summary_verbatim_turns must be >= 0, got %d", e.SummaryVerbatimTurns))
	}
	if e.SummaryCharBudget < 1 {
		errs = append(errs, fmt.Sprintf("engine.summary_char_budget must be >= 1, got %d", e.SummaryCharBudget))
	}
	if e.CriticalRange < 1 || e.CriticalRange > 20 {
		errs = append(errs, fmt.Sprintf("engine.critical_range must be 1-20, got %d", e.CriticalRange))
	}
	if e.ObserverBufferSize < 1 {
		errs = append(errs, fmt.Sprintf("engine.observer_buffer_size must be >= 1, got %d", e.ObserverBufferSize))
	}
	if e.RechargeDie == "" {
		errs = append(errs, "engine.recharge_die must not be empty")
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateDatabase(d DatabaseConfig) error {
	var errs []string
	if d.Host == "" {
		errs = append(errs, "database.host must not be empty")
	}
	if d.Port < 1 || d.Port > 65535 {
		errs = append(errs, fmt.Sprintf("database.port must be 1-65535, got %d", d.Port))
	}
	if d.User == "" {
		errs = append(errs, "database.user must not be empty")
	}
	if d.Name == "" {
		errs = append(errs, "database.name must not be empty")
	}
	validSSL := map[string]bool{"disable": true, "require": true, "verify-ca": true, "verify-full": true}
	if !validSSL[d.SSLMode] {
		errs = append(errs, fmt.Sprintf("database.sslmode must be one of [disable, require, verify-ca, verify-full], got %q", d.SSLMode))
	}
	if d.MaxConns < 1 {
		errs = append(errs, fmt.Sprintf("database.max_conns must be >= 1, got %d", d.MaxConns))
	}
	if d.MinConns < 0 {
		errs = append(errs, fmt.Sprintf("database.min_conns must be >= 0, got %d", d.MinConns))
	}
	if d.MinConns > d.MaxConns {
		errs = append(errs, "database.min_conns must not exceed database.max_conns")
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateOracle(o OracleConfig) error {
	if o.Model == "" {
		return fmt.Errorf("oracle.model must not be empty")
	}
	return nil
}

func validateLogging(l LoggingConfig) error {
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[l.Level] {
		return fmt.Errorf("logging.level must be one of [debug, info, warn, error], got %q", l.Level)
	}
	validFormats := map[string]bool{"json": true, "console": true}
	if !validFormats[l.Format] {
		return fmt.Errorf("logging.format must be one of [json, console], got %q", l.Format)
	}
	return nil
}

// Load reads configuration from the given file path, applies environment
// variable overrides, and validates the result.
//
// Precondition: path must be a valid file path to a YAML configuration file.
// Postcondition: Returns a valid Config or a non-nil error.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	v.SetEnvPrefix("ATRE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return Config{}, fmt.Errorf("reading config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshalling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// LoadFromViper builds a Config from an already-configured Viper instance.
//
// Precondition: v must be non-nil and have configuration values set.
// Postcondition: Returns a valid Config or a non-nil error.
func LoadFromViper(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshalling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("engine.turn_deadline_ms", 60000)
	v.SetDefault("engine.oracle_deadline_ms", 30000)
	v.SetDefault("engine.retry_budget", 1)
	v.SetDefault("engine.summary_verbatim_turns", 3)
	v.SetDefault("engine.summary_char_budget", 1200)
	v.SetDefault("engine.critical_range", 20)
	v.SetDefault("engine.hide_enemy_hp_bands", true)
	v.SetDefault("engine.drop_oldest_on_observer_lag", true)
	v.SetDefault("engine.observer_buffer_size", 64)
	v.SetDefault("engine.recharge_die", "1d6")

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "atre")
	v.SetDefault("database.password", "atre")
	v.SetDefault("database.name", "atre")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 10)
	v.SetDefault("database.min_conns", 2)
	v.SetDefault("database.max_conn_lifetime", "1h")

	v.SetDefault("oracle.model", "claude-3-5-sonnet-latest")
	v.SetDefault("oracle.script_root", "")
	v.SetDefault("oracle.zone_id", "default")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}
