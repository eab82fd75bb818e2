package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/twinsync/twinsync/pkg/engine"
	"github.com/twinsync/twinsync/pkg/paths"
)

func newWatchCommand() *cobra.Command {
	var (
		interval    time.Duration
		autoApply   bool
		metricsAddr string
	)

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Re-plan whenever the desired state changes",
		Long: `Run until interrupted, re-planning when state/ or config.yaml
change and on every --interval tick.

Each cycle takes a snapshot and a plan under the repository lock and
reports pending actions. Apply stays manual unless --apply is given, in
which case every non-empty plan is executed immediately. Policy files
under policy/ are reloaded on change, and --metrics-addr exposes the
Prometheus registry while watching.`,
		Example: `  # Watch and report drift as it appears
  twinsync watch

  # Fully hands-off reconciliation every 15 minutes
  twinsync watch --interval 15m --apply

  # Watch with a metrics endpoint for scraping
  twinsync watch --metrics-addr :9464`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			app, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer app.Close(ctx)

			return runWatch(ctx, app, interval, autoApply, metricsAddr)
		},
	}

	cmd.Flags().DurationVar(&interval, "interval", 5*time.Minute, "periodic reconcile interval (0 disables the timer)")
	cmd.Flags().BoolVar(&autoApply, "apply", false, "apply every non-empty plan automatically")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")

	return cmd
}

// runWatch is the watch loop body, split out so the pieces (watcher,
// metrics server, event printer) share one cancellation scope.
func runWatch(ctx context.Context, app *app, interval time.Duration, autoApply bool, metricsAddr string) error {
	log := app.log.NewComponentLogger("watch")

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create filesystem watcher: %w", err)
	}
	defer watcher.Close()

	// Watch the repository root for config.yaml and state/ for fragment
	// edits. The state directory exists after init; a missing one means
	// watch was started too early.
	if err := watcher.Add(app.root); err != nil {
		return fmt.Errorf("failed to watch %s: %w", app.root, err)
	}
	if err := watcher.Add(paths.StateDir(app.root)); err != nil {
		return fmt.Errorf("failed to watch state/ (run `twinsync init` first): %w", err)
	}

	// Policy edits reload the gate without restarting the watch.
	if err := app.gate.Watch(ctx, app.root); err != nil {
		log.WithError(err).Warn("policy reload watching unavailable")
	}

	if metricsAddr != "" {
		handler := app.metrics.Handler()
		if handler == nil {
			log.Warn("metrics are disabled in config.yaml; --metrics-addr ignored")
		} else {
			srv := &http.Server{Addr: metricsAddr, Handler: metricsMux(handler)}
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.WithError(err).Error("metrics server failed")
				}
			}()
			go func() {
				<-ctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
				defer cancel()
				_ = srv.Shutdown(shutdownCtx)
			}()
			log.WithField("addr", metricsAddr).Info("serving metrics")
		}
	}

	// Log engine events as they happen so the watch terminal shows
	// provider failures and planned drift in real time.
	sub := app.bus.Subscribe(128)
	defer sub.Unsubscribe()
	go func() {
		for event := range sub.C {
			entry := log.WithField("type", event.Type)
			if event.Provider != "" {
				entry = entry.WithProvider(event.Provider)
			}
			switch event.Level {
			case "error":
				entry.Error(event.Message)
			case "warning":
				entry.Warn(event.Message)
			default:
				entry.Debug(event.Message)
			}
		}
	}()

	var tick <-chan time.Time
	if interval > 0 {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	// Debounce bursts of filesystem events (editors write several times)
	// into one reconcile.
	const debounce = 2 * time.Second
	var pending <-chan time.Time

	fmt.Printf("Watching %s (interval %s, apply %v). Ctrl-C to stop.\n", app.root, interval, autoApply)
	if err := watchCycle(ctx, app, autoApply); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			fmt.Println("\nWatch stopped.")
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !relevantChange(app.root, event) {
				continue
			}
			log.WithField("file", event.Name).WithField("op", event.Op.String()).
				Debug("repository changed")
			pending = time.After(debounce)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.WithError(err).Warn("filesystem watcher error")

		case <-pending:
			pending = nil
			if err := watchCycle(ctx, app, autoApply); err != nil {
				return err
			}

		case <-tick:
			if err := watchCycle(ctx, app, autoApply); err != nil {
				return err
			}
		}
	}
}

// watchCycle runs one snapshot+plan (and optionally apply) pass.
// Provider-level trouble is already downgraded to warnings by the
// engine; only fatal errors stop the watch.
func watchCycle(ctx context.Context, app *app, autoApply bool) error {
	return app.withLock(func() error {
		if _, err := app.eng.Snapshot(ctx); err != nil {
			return err
		}
		plan, err := app.eng.Plan(ctx)
		if err != nil {
			return err
		}
		stamp := time.Now().Format("15:04:05")
		if plan.Empty() {
			fmt.Printf("[%s] in sync\n", stamp)
			return nil
		}

		fmt.Printf("[%s] %d pending actions:\n", stamp, plan.Total())
		for _, provider := range plan.Providers() {
			for _, action := range plan[provider] {
				fmt.Printf("  %s: %s\n", provider, action.String())
			}
		}
		if !autoApply {
			fmt.Println("  run `twinsync apply` to execute")
			return nil
		}

		report, err := app.eng.Apply(ctx, engine.ApplyOptions{})
		if err != nil {
			if engine.IsValidation(err) {
				// Policy refusals should not kill the watch; the next
				// cycle re-evaluates after the operator fixes the plan.
				fmt.Printf("  apply refused: %v\n", err)
				return nil
			}
			return err
		}
		fmt.Printf("  applied %d actions\n", report.TotalApplied())
		if err := app.commitRepo(ctx, "twinsync watch apply"); err != nil {
			return err
		}
		return nil
	})
}

// relevantChange reports whether a filesystem event should trigger a
// reconcile: state fragment edits and config.yaml updates count, the
// engine's own writes elsewhere in the repository do not.
func relevantChange(root string, event fsnotify.Event) bool {
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
		return false
	}
	if event.Name == paths.ConfigFile(root) {
		return true
	}
	stateDir := paths.StateDir(root) + string(filepath.Separator)
	return strings.HasPrefix(event.Name, stateDir) && strings.HasSuffix(event.Name, ".yaml")
}

// metricsMux serves the Prometheus registry under /metrics with a
// minimal index on /.
func metricsMux(handler http.Handler) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", handler)
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, "twinsync metrics: see /metrics")
	})
	return mux
}
