package commands

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/twinsync/twinsync/pkg/gitstore"
)

func newSnapshotCommand() *cobra.Command {
	var (
		push     bool
		noCommit bool
	)

	cmd := &cobra.Command{
		Use:     "snapshot",
		Aliases: []string{"snap"},
		Short:   "Capture the live system state into the twin",
		Long: `Capture the current system state into live/ and rotate logs.

Each enabled provider dumps its state fragment to live/<fragment>.yaml
and contributes to the fresh log index under logs/current. The previous
log capture is rotated to a timestamped directory first. A provider that
fails is skipped with a warning; the snapshot carries on with the rest.`,
		Example: `  # Capture and commit
  twinsync snapshot

  # Capture, commit, and push to the configured remote
  twinsync snapshot --push

  # Capture without touching git
  twinsync snapshot --no-commit`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			app, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer app.Close(ctx)

			return app.withLock(func() error {
				report, err := app.eng.Snapshot(ctx)
				if err != nil {
					return err
				}

				if jsonOutput {
					return printJSON(report)
				}

				if report.RotatedTo != "" {
					fmt.Printf("✓ Previous logs rotated to logs/%s\n", report.RotatedTo)
				}
				fmt.Printf("✓ Captured %d live fragments\n", len(report.Fragments))
				for _, fragment := range report.Fragments {
					fmt.Printf("    live/%s.yaml\n", fragment)
				}
				if len(report.LogSources) > 0 {
					fmt.Printf("✓ Log index from %d sources\n", len(report.LogSources))
				}
				for provider, msg := range report.Failures {
					fmt.Printf("⚠ provider %s skipped: %s\n", provider, msg)
				}

				if noCommit {
					return nil
				}
				if err := app.commitRepo(ctx, "twinsync snapshot"); err != nil {
					return err
				}
				if !push {
					return nil
				}
				return pushRepo(cmd, app)
			})
		},
	}

	cmd.Flags().BoolVar(&push, "push", false, "push to the configured remote after committing")
	cmd.Flags().BoolVar(&noCommit, "no-commit", false, "skip the git commit")

	return cmd
}

// pushRepo pushes the default branch and treats an already up to date
// remote as success.
func pushRepo(cmd *cobra.Command, app *app) error {
	store, err := app.store()
	if err != nil {
		return err
	}
	err = store.Push(cmd.Context(), gitstore.DefaultRemote, gitstore.DefaultBranch)
	switch {
	case errors.Is(err, gitstore.ErrAlreadyUpToDate):
		fmt.Println("✓ Remote already up to date")
		return nil
	case err != nil:
		return err
	}
	fmt.Printf("✓ Pushed %s to %s\n", gitstore.DefaultBranch, gitstore.DefaultRemote)
	return nil
}
