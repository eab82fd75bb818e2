package config

// Config is the global configuration stored at <repo>/config.yaml.
// It is loaded once per run into the engine context and threaded through
// every provider call; nothing reads it from disk after that.
type Config struct {
	// Providers controls which capability providers are enabled.
	Providers ProvidersConfig `yaml:"providers" validate:"required"`

	// Filesystem configures the file-mirror provider.
	Filesystem FilesystemConfig `yaml:"filesystem,omitempty"`

	// GitHub holds the remote sync settings.
	GitHub GitHubConfig `yaml:"github,omitempty"`

	// Retention bounds the growth of engine-maintained histories.
	Retention RetentionConfig `yaml:"retention,omitempty"`

	// Policy configures the plan policy gate.
	Policy PolicyConfig `yaml:"policy,omitempty"`

	// Telemetry configures logging, metrics and tracing.
	Telemetry TelemetryConfig `yaml:"telemetry,omitempty"`
}

// ProvidersConfig lists the enabled providers by manifest name.
type ProvidersConfig struct {
	Enable []string `yaml:"enable" validate:"required,min=1,dive,required"`
}

// FilesystemConfig names the directory roots mirrored by files.mirror.
type FilesystemConfig struct {
	Roots []string `yaml:"roots,omitempty" validate:"omitempty,dive,required"`
}

// GitHubConfig holds remote repository settings for push/pull.
// Token is kept out of rendered output by the config command.
type GitHubConfig struct {
	User       string `yaml:"user,omitempty"`
	Token      string `yaml:"token,omitempty"`
	DeviceRepo string `yaml:"device_repo,omitempty"`
}

// RetentionConfig bounds history growth. Zero values fall back to the
// defaults applied by Normalize.
type RetentionConfig struct {
	// PlanExecution caps the plan_execution list kept in the log index.
	// Older records remain available in the history database.
	PlanExecution int `yaml:"plan_execution,omitempty" validate:"omitempty,min=1"`

	// PlanHistory caps the number of timestamped plans kept under
	// plan/history.
	PlanHistory int `yaml:"plan_history,omitempty" validate:"omitempty,min=1"`
}

// PolicyConfig controls the plan policy gate.
type PolicyConfig struct {
	// Enforce refuses apply when error-severity violations are present.
	// When false, violations are reported as warnings only.
	Enforce bool `yaml:"enforce,omitempty"`
}

// TelemetryConfig selects logging, metrics and tracing behavior.
type TelemetryConfig struct {
	Logging LoggingConfig `yaml:"logging,omitempty"`
	Metrics MetricsConfig `yaml:"metrics,omitempty"`
	Tracing TracingConfig `yaml:"tracing,omitempty"`
}

// LoggingConfig configures the structured logger.
type LoggingConfig struct {
	// Level is the minimum level (trace, debug, info, warn, error, fatal).
	Level string `yaml:"level,omitempty" validate:"omitempty,oneof=trace debug info warn error fatal"`

	// Format is console or json.
	Format string `yaml:"format,omitempty" validate:"omitempty,oneof=console json"`

	// Output is stdout, stderr, or a file path.
	Output string `yaml:"output,omitempty"`
}

// MetricsConfig configures Prometheus metrics collection.
type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled,omitempty"`
	Namespace string `yaml:"namespace,omitempty"`
}

// TracingConfig configures OpenTelemetry tracing.
type TracingConfig struct {
	Enabled bool `yaml:"enabled,omitempty"`

	// Exporter is stdout, otlp, or none.
	Exporter string `yaml:"exporter,omitempty" validate:"omitempty,oneof=stdout otlp none"`

	// Endpoint is the OTLP collector endpoint when Exporter is otlp.
	Endpoint string `yaml:"endpoint,omitempty"`
}

// Enabled reports whether the named provider appears in the enable list.
func (c *Config) Enabled(name string) bool {
	for _, enabled := range c.Providers.Enable {
		if enabled == name {
			return true
		}
	}
	return false
}
