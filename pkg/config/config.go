package config

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"

	"github.com/twinsync/twinsync/pkg/paths"
	"github.com/twinsync/twinsync/pkg/yamlutil"
)

// Defaults applied by Normalize when the corresponding field is unset.
const (
	DefaultPlanExecutionRetention = 200
	DefaultPlanHistoryRetention   = 50
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Default returns the configuration written to a fresh repository.
// The enabled set mirrors the standard provider bundle.
func Default() *Config {
	return &Config{
		Providers: ProvidersConfig{
			Enable: []string{
				"packages.debian",
				"services.systemd",
				"files.mirror",
				"cron.user",
				"logs.systemd_journal",
				"logs.files",
			},
		},
		Filesystem: FilesystemConfig{
			Roots: []string{"/etc"},
		},
		Retention: RetentionConfig{
			PlanExecution: DefaultPlanExecutionRetention,
			PlanHistory:   DefaultPlanHistoryRetention,
		},
		Telemetry: TelemetryConfig{
			Logging: LoggingConfig{
				Level:  "info",
				Format: "console",
				Output: "stderr",
			},
		},
	}
}

// Load reads <repo>/config.yaml. A missing file is created with defaults
// and those defaults returned; a present file with no providers section is
// back-filled with the default enable list.
func Load(repoRoot string) (*Config, error) {
	path := paths.ConfigFile(repoRoot)

	if _, err := os.Stat(path); os.IsNotExist(err) {
		cfg := Default()
		if err := Save(repoRoot, cfg); err != nil {
			return nil, err
		}
		return cfg, nil
	}

	cfg := &Config{}
	if err := yamlutil.LoadInto(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if len(cfg.Providers.Enable) == 0 {
		cfg.Providers = Default().Providers
	}
	cfg.Normalize()

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes cfg to <repo>/config.yaml.
func Save(repoRoot string, cfg *Config) error {
	if err := yamlutil.Dump(paths.ConfigFile(repoRoot), cfg); err != nil {
		return fmt.Errorf("failed to save configuration: %w", err)
	}
	return nil
}

// Normalize fills unset retention and logging fields with their defaults.
func (c *Config) Normalize() {
	if c.Retention.PlanExecution == 0 {
		c.Retention.PlanExecution = DefaultPlanExecutionRetention
	}
	if c.Retention.PlanHistory == 0 {
		c.Retention.PlanHistory = DefaultPlanHistoryRetention
	}
	if c.Telemetry.Logging.Level == "" {
		c.Telemetry.Logging.Level = "info"
	}
	if c.Telemetry.Logging.Format == "" {
		c.Telemetry.Logging.Format = "console"
	}
	if c.Telemetry.Logging.Output == "" {
		c.Telemetry.Logging.Output = "stderr"
	}
}

// Validate checks structural constraints on the configuration.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}
