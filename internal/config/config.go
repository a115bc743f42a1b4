// File: internal/config/config.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Package config loads droprepro settings from YAML, environment and flags.

package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/momentics/ipcdrop/api"
)

// EnvPrefix prefixes environment overrides, e.g. DROPREPRO_SCENARIO_NAME.
const EnvPrefix = "DROPREPRO"

// Ordering modes.
const (
	OrderingYield     = "yield"
	OrderingHandshake = "handshake"
)

// Config is the root configuration.
type Config struct {
	Scenario ScenarioConfig `mapstructure:"scenario"`
	Log      LogConfig      `mapstructure:"log"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
}

// ScenarioConfig drives one reproduction run. Ordering is yield or
// handshake; DropPolicy is silent, drain or panic. Linger keeps the main
// task alive before the runtime shuts down. PollGrace bounds how long a yield
// waits for in-flight socket operations.
type ScenarioConfig struct {
	Name                string        `mapstructure:"name"`
	Ordering            string        `mapstructure:"ordering"`
	YieldsBeforeConnect int           `mapstructure:"yields_before_connect"`
	YieldsAfterConnect  int           `mapstructure:"yields_after_connect"`
	Idle                time.Duration `mapstructure:"idle"`
	Linger              time.Duration `mapstructure:"linger"`
	PollGrace           time.Duration `mapstructure:"poll_grace"`
	ConnectTimeout      time.Duration `mapstructure:"connect_timeout"`
	DropPolicy          string        `mapstructure:"drop_policy"`
	VerifyDelivery      bool          `mapstructure:"verify_delivery"`
}

// LogConfig defines logger settings.
type LogConfig struct {
	Level       string         `mapstructure:"level"`   // debug, info, warn, error
	Format      string         `mapstructure:"format"`  // console or json
	Outputs     []string       `mapstructure:"outputs"` // stdout, stderr or file paths
	Rotation    RotationConfig `mapstructure:"rotation"`
	Development bool           `mapstructure:"development"`
}

// RotationConfig controls log file rotation for file outputs.
type RotationConfig struct {
	Enable     bool   `mapstructure:"enable"`
	Filename   string `mapstructure:"filename"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

// MetricsConfig names the metric namespace.
type MetricsConfig struct {
	Namespace string `mapstructure:"namespace"`
}

// Default returns the configuration of a plain run.
func Default() *Config {
	return &Config{
		Scenario: ScenarioConfig{
			Name:                "interprocess-drop-panic",
			Ordering:            OrderingYield,
			YieldsBeforeConnect: 1,
			YieldsAfterConnect:  2,
			Idle:                1000 * time.Second,
			PollGrace:           25 * time.Millisecond,
			ConnectTimeout:      5 * time.Second,
			DropPolicy:          "silent",
		},
		Log: LogConfig{
			Level:   "info",
			Format:  "console",
			Outputs: []string{"stderr"},
			Rotation: RotationConfig{
				Filename:   "logs/droprepro.log",
				MaxSizeMB:  10,
				MaxBackups: 3,
				MaxAgeDays: 7,
			},
		},
		Metrics: MetricsConfig{Namespace: "droprepro"},
	}
}

// New returns a viper instance seeded with defaults and environment
// overrides. Callers may bind flags onto it before calling Decode.
func New() *viper.Viper {
	cfg := Default()
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	v.SetDefault("scenario.name", cfg.Scenario.Name)
	v.SetDefault("scenario.ordering", cfg.Scenario.Ordering)
	v.SetDefault("scenario.yields_before_connect", cfg.Scenario.YieldsBeforeConnect)
	v.SetDefault("scenario.yields_after_connect", cfg.Scenario.YieldsAfterConnect)
	v.SetDefault("scenario.idle", cfg.Scenario.Idle)
	v.SetDefault("scenario.linger", cfg.Scenario.Linger)
	v.SetDefault("scenario.poll_grace", cfg.Scenario.PollGrace)
	v.SetDefault("scenario.connect_timeout", cfg.Scenario.ConnectTimeout)
	v.SetDefault("scenario.drop_policy", cfg.Scenario.DropPolicy)
	v.SetDefault("scenario.verify_delivery", cfg.Scenario.VerifyDelivery)
	v.SetDefault("log.level", cfg.Log.Level)
	v.SetDefault("log.format", cfg.Log.Format)
	v.SetDefault("log.outputs", cfg.Log.Outputs)
	v.SetDefault("log.development", cfg.Log.Development)
	v.SetDefault("log.rotation.enable", cfg.Log.Rotation.Enable)
	v.SetDefault("log.rotation.filename", cfg.Log.Rotation.Filename)
	v.SetDefault("log.rotation.max_size_mb", cfg.Log.Rotation.MaxSizeMB)
	v.SetDefault("log.rotation.max_backups", cfg.Log.Rotation.MaxBackups)
	v.SetDefault("log.rotation.max_age_days", cfg.Log.Rotation.MaxAgeDays)
	v.SetDefault("log.rotation.compress", cfg.Log.Rotation.Compress)
	v.SetDefault("metrics.namespace", cfg.Metrics.Namespace)
	return v
}

// Read loads the YAML file at path into v. An empty path falls back to
// $DROPREPRO_CONFIG; no path at all keeps defaults and environment.
func Read(v *viper.Viper, path string) error {
	if path == "" {
		path = os.Getenv(EnvPrefix + "_CONFIG")
	}
	if path == "" {
		return nil
	}
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

// Decode unmarshals and validates v.
func Decode(v *viper.Viper) (*Config, error) {
	cfg := Default()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Load reads path (if any), applies environment overrides and validates.
func Load(path string) (*Config, error) {
	v := New()
	if err := Read(v, path); err != nil {
		return nil, err
	}
	return Decode(v)
}

// Validate checks values and normalizes case.
func (c *Config) Validate() error {
	s := &c.Scenario
	s.Ordering = strings.ToLower(strings.TrimSpace(s.Ordering))
	s.DropPolicy = strings.ToLower(strings.TrimSpace(s.DropPolicy))

	if strings.TrimSpace(s.Name) == "" {
		return fmt.Errorf("%w: scenario.name is empty", api.ErrInvalidArgument)
	}
	switch s.Ordering {
	case OrderingYield, OrderingHandshake:
	default:
		return fmt.Errorf("%w: scenario.ordering %q (want yield or handshake)", api.ErrInvalidArgument, s.Ordering)
	}
	switch s.DropPolicy {
	case "silent", "drain", "panic":
	default:
		return fmt.Errorf("%w: scenario.drop_policy %q (want silent, drain or panic)", api.ErrInvalidArgument, s.DropPolicy)
	}
	if s.YieldsBeforeConnect < 0 || s.YieldsAfterConnect < 0 {
		return fmt.Errorf("%w: yield counts must not be negative", api.ErrInvalidArgument)
	}
	if s.Idle <= 0 {
		return fmt.Errorf("%w: scenario.idle must be positive", api.ErrInvalidArgument)
	}
	if s.Linger < 0 {
		return fmt.Errorf("%w: scenario.linger must not be negative", api.ErrInvalidArgument)
	}
	if s.PollGrace <= 0 {
		return fmt.Errorf("%w: scenario.poll_grace must be positive", api.ErrInvalidArgument)
	}
	if s.ConnectTimeout <= 0 {
		return fmt.Errorf("%w: scenario.connect_timeout must be positive", api.ErrInvalidArgument)
	}

	switch strings.ToLower(strings.TrimSpace(c.Log.Level)) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("%w: log.level %q", api.ErrInvalidArgument, c.Log.Level)
	}
	if c.Log.Format == "" {
		c.Log.Format = "console"
	}
	if len(c.Log.Outputs) == 0 {
		c.Log.Outputs = []string{"stderr"}
	}
	if c.Metrics.Namespace == "" {
		c.Metrics.Namespace = "droprepro"
	}
	return nil
}
