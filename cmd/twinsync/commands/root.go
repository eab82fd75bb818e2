package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/twinsync/twinsync/pkg/config"
	"github.com/twinsync/twinsync/pkg/engine"
	"github.com/twinsync/twinsync/pkg/gitstore"
	"github.com/twinsync/twinsync/pkg/history"
	"github.com/twinsync/twinsync/pkg/paths"
	"github.com/twinsync/twinsync/pkg/policy"
	"github.com/twinsync/twinsync/pkg/telemetry"

	// Register the bundled providers.
	_ "github.com/twinsync/twinsync/pkg/providers/all"
)

var (
	// Global flags
	repoPath   string
	verbose    bool
	jsonOutput bool
	logLevel   string

	// Build metadata recorded by Execute for telemetry.
	cliVersion = "dev"
)

// Execute runs the root command.
func Execute(ctx context.Context, version, commit, buildDate string) error {
	cliVersion = version
	rootCmd := newRootCommand(version, commit, buildDate)
	return rootCmd.ExecuteContext(ctx)
}

func newRootCommand(version, commit, buildDate string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "twinsync",
		Short: "TwinSync - device state twin for headless Linux boxes",
		Long: `TwinSync keeps a git-versioned twin of a device's system state.

The twin repository holds three views of the machine:
  - state/   desired state, one YAML fragment per provider
  - live/    last captured reality, same fragments
  - plan/    pending corrective actions derived from the diff

snapshot captures reality, plan diffs it against the desired state,
apply executes the pending actions, and the whole history rides in git
for time-machine rollbacks.`,
		Version:      fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
		SilenceUsage: true,
	}

	// Persistent flags available to all commands
	rootCmd.PersistentFlags().StringVarP(&repoPath, "repo", "r", "", "twin repository path (default ~/twinsync-device)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output in JSON format")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override log level (trace|debug|info|warn|error)")

	// Add subcommands
	rootCmd.AddCommand(newInitCommand())
	rootCmd.AddCommand(newSnapshotCommand())
	rootCmd.AddCommand(newPlanCommand())
	rootCmd.AddCommand(newApplyCommand())
	rootCmd.AddCommand(newStatusCommand())
	rootCmd.AddCommand(newLogsCommand())
	rootCmd.AddCommand(newHistoryCommand())
	rootCmd.AddCommand(newConfigCommand())
	rootCmd.AddCommand(newValidateCommand())
	rootCmd.AddCommand(newDoctorCommand())
	rootCmd.AddCommand(newPushCommand())
	rootCmd.AddCommand(newPullCommand())
	rootCmd.AddCommand(newRemoteCommand())
	rootCmd.AddCommand(newTimeMachineCommand())
	rootCmd.AddCommand(newWatchCommand())

	return rootCmd
}

// exitCodeError carries a specific process exit code through RunE.
type exitCodeError struct {
	code int
	msg  string
}

func (e *exitCodeError) Error() string { return e.msg }

// ExitCode maps an Execute error to the process exit code.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var ec *exitCodeError
	if errors.As(err, &ec) {
		return ec.code
	}
	return 1
}

// app bundles everything a command needs against one twin repository.
type app struct {
	root    string
	cfg     *config.Config
	log     *telemetry.Logger
	metrics *telemetry.Metrics
	tracer  *telemetry.Tracer
	bus     *telemetry.EventBus
	archive *history.Archive
	gate    *policy.Gate
	eng     *engine.Engine
}

// openApp resolves the repository, loads its configuration, and builds
// the engine with the telemetry and policy stack attached.
func openApp(ctx context.Context) (*app, error) {
	root, err := resolveRepo()
	if err != nil {
		return nil, err
	}

	tc, err := engine.NewContext(root)
	if err != nil {
		return nil, err
	}
	cfg := tc.Config

	log, err := newLogger(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to set up logging: %w", err)
	}

	metrics, err := telemetry.NewMetrics(telemetry.MetricsConfig{
		Enabled:   cfg.Telemetry.Metrics.Enabled,
		Namespace: cfg.Telemetry.Metrics.Namespace,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to set up metrics: %w", err)
	}

	tracer, err := telemetry.NewTracer(telemetry.TracingConfig{
		Enabled:  cfg.Telemetry.Tracing.Enabled,
		Exporter: cfg.Telemetry.Tracing.Exporter,
		Endpoint: cfg.Telemetry.Tracing.Endpoint,
	}, "twinsync", cliVersion)
	if err != nil {
		return nil, fmt.Errorf("failed to set up tracing: %w", err)
	}

	a := &app{
		root:    root,
		cfg:     cfg,
		log:     log,
		metrics: metrics,
		tracer:  tracer,
		bus:     telemetry.NewEventBus(),
	}

	// The archive lives under <repo>/.twinsync; history must never break
	// a run, so an unavailable archive degrades to a warning.
	if err := os.MkdirAll(paths.InternalDir(root), 0o755); err == nil {
		archive, err := history.Open(ctx, paths.HistoryDBFile(root))
		if err != nil {
			log.WithError(err).Warn("history archive unavailable")
		} else {
			a.archive = archive
		}
	} else {
		log.WithError(err).Warn("history archive unavailable")
	}

	gate, err := policy.NewGate(log, policy.WithEnforce(cfg.Policy.Enforce))
	if err != nil {
		a.Close(ctx)
		return nil, err
	}
	if err := gate.LoadRepo(ctx, root); err != nil {
		log.WithError(err).Warn("repository policies not loaded")
	}
	a.gate = gate

	opts := []engine.Option{
		engine.WithMetrics(metrics),
		engine.WithTracer(tracer),
		engine.WithEvents(a.bus),
		engine.WithGate(gate),
	}
	if a.archive != nil {
		opts = append(opts, engine.WithArchiver(a.archive))
	}
	a.eng = engine.New(tc, log, opts...)

	return a, nil
}

// Close releases the archive and flushes pending spans.
func (a *app) Close(ctx context.Context) {
	if a.archive != nil {
		if err := a.archive.Close(); err != nil {
			a.log.WithError(err).Warn("failed to close history archive")
		}
	}
	if a.tracer != nil {
		if err := a.tracer.Shutdown(ctx); err != nil {
			a.log.WithError(err).Warn("failed to shut down tracer")
		}
	}
}

// store opens the git store for the twin repository with the configured
// GitHub token attached.
func (a *app) store() (*gitstore.Store, error) {
	return gitstore.Open(a.root, gitstore.WithToken(a.cfg.GitHub.Token))
}

// commitRepo commits all repository changes. A clean tree and a
// repository not yet under git both degrade to a debug log.
func (a *app) commitRepo(ctx context.Context, message string) error {
	store, err := a.store()
	if err != nil {
		if errors.Is(err, gitstore.ErrNotRepository) {
			a.log.Debug("repository is not under git, skipping commit")
			return nil
		}
		return err
	}
	hash, err := store.CommitAll(ctx, message)
	if err != nil {
		return err
	}
	if hash == "" {
		a.log.Debug("nothing to commit")
		return nil
	}
	a.log.WithField("commit", hash[:7]).Info("repository committed")
	return nil
}

// withLock runs fn while holding the repository lock.
func (a *app) withLock(fn func() error) error {
	lock, err := engine.AcquireLock(a.root)
	if err != nil {
		return err
	}
	defer func() {
		if err := lock.Release(); err != nil {
			a.log.WithError(err).Warn("failed to release repository lock")
		}
	}()
	return fn()
}

// resolveRepo returns the twin repository path from the --repo flag or
// the default location.
func resolveRepo() (string, error) {
	if repoPath != "" {
		return filepath.Abs(repoPath)
	}
	return paths.DefaultRepoRoot()
}

// newLogger builds the logger from configuration, with the --log-level
// and --verbose flags taking precedence.
func newLogger(cfg *config.Config) (*telemetry.Logger, error) {
	level := cfg.Telemetry.Logging.Level
	if logLevel != "" {
		level = logLevel
	}
	if verbose {
		level = "debug"
	}
	return telemetry.NewLogger(telemetry.LoggingConfig{
		Level:  level,
		Format: cfg.Telemetry.Logging.Format,
		Output: cfg.Telemetry.Logging.Output,
	})
}

// printJSON renders v as indented JSON on stdout.
func printJSON(v interface{}) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
