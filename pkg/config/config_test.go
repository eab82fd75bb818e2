package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/twinsync/twinsync/pkg/paths"
)

func TestLoadCreatesDefaults(t *testing.T) {
	root := t.TempDir()

	cfg, err := Load(root)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if !cfg.Enabled("packages.debian") {
		t.Error("default config does not enable packages.debian")
	}
	if !cfg.Enabled("logs.systemd_journal") {
		t.Error("default config does not enable logs.systemd_journal")
	}
	if cfg.Enabled("containers.docker") {
		t.Error("containers.docker should not be enabled by default")
	}

	// The file must now exist so a second load reads it back.
	if _, err := os.Stat(paths.ConfigFile(root)); err != nil {
		t.Fatalf("config.yaml not written: %v", err)
	}
	again, err := Load(root)
	if err != nil {
		t.Fatalf("Load() second call error = %v", err)
	}
	if len(again.Providers.Enable) != len(cfg.Providers.Enable) {
		t.Errorf("reloaded enable list = %v, want %v", again.Providers.Enable, cfg.Providers.Enable)
	}
}

func TestLoadBackfillsProviders(t *testing.T) {
	root := t.TempDir()
	raw := "filesystem:\n  roots:\n    - /etc\n"
	if err := os.WriteFile(filepath.Join(root, "config.yaml"), []byte(raw), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(root)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(cfg.Providers.Enable) == 0 {
		t.Error("providers section not back-filled with defaults")
	}
	if got := cfg.Filesystem.Roots; len(got) != 1 || got[0] != "/etc" {
		t.Errorf("filesystem.roots = %v, want [/etc]", got)
	}
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		name              string
		cfg               Config
		wantPlanExecution int
		wantPlanHistory   int
		wantLevel         string
	}{
		{
			name:              "zero values filled",
			cfg:               Config{},
			wantPlanExecution: DefaultPlanExecutionRetention,
			wantPlanHistory:   DefaultPlanHistoryRetention,
			wantLevel:         "info",
		},
		{
			name: "explicit values kept",
			cfg: Config{
				Retention: RetentionConfig{PlanExecution: 10, PlanHistory: 5},
				Telemetry: TelemetryConfig{Logging: LoggingConfig{Level: "debug"}},
			},
			wantPlanExecution: 10,
			wantPlanHistory:   5,
			wantLevel:         "debug",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.cfg.Normalize()
			if tt.cfg.Retention.PlanExecution != tt.wantPlanExecution {
				t.Errorf("PlanExecution = %d, want %d", tt.cfg.Retention.PlanExecution, tt.wantPlanExecution)
			}
			if tt.cfg.Retention.PlanHistory != tt.wantPlanHistory {
				t.Errorf("PlanHistory = %d, want %d", tt.cfg.Retention.PlanHistory, tt.wantPlanHistory)
			}
			if tt.cfg.Telemetry.Logging.Level != tt.wantLevel {
				t.Errorf("Logging.Level = %q, want %q", tt.cfg.Telemetry.Logging.Level, tt.wantLevel)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *Config
		wantErr bool
	}{
		{
			name:    "default config valid",
			cfg:     Default(),
			wantErr: false,
		},
		{
			name:    "empty enable list rejected",
			cfg:     &Config{Providers: ProvidersConfig{Enable: []string{}}},
			wantErr: true,
		},
		{
			name: "bad log level rejected",
			cfg: &Config{
				Providers: ProvidersConfig{Enable: []string{"system.info"}},
				Telemetry: TelemetryConfig{Logging: LoggingConfig{Level: "loud"}},
			},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
