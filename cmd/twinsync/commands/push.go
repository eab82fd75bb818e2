package commands

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/twinsync/twinsync/pkg/gitstore"
)

func newPushCommand() *cobra.Command {
	var (
		remote string
		branch string
		commit bool
	)

	cmd := &cobra.Command{
		Use:   "push",
		Short: "Push the twin repository to its remote",
		Long: `Push the committed twin history to the configured remote.

The remote is usually configured once with ` + "`twinsync remote setup`" + `;
the GitHub token from config.yaml authenticates the push. A remote that
already has the branch tip reports up to date, and a diverged remote is
refused rather than force-pushed.`,
		Example: `  # Push main to origin
  twinsync push

  # Commit any pending changes first, then push
  twinsync push --commit

  # Push to a different remote
  twinsync push --remote backup`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			app, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer app.Close(ctx)

			if commit {
				if err := app.commitRepo(ctx, "twinsync push"); err != nil {
					return err
				}
			}

			store, err := app.store()
			if err != nil {
				if errors.Is(err, gitstore.ErrNotRepository) {
					return fmt.Errorf("repository %s is not under git (run `twinsync init` first)", app.root)
				}
				return err
			}

			err = store.Push(ctx, remote, branch)
			switch {
			case errors.Is(err, gitstore.ErrAlreadyUpToDate):
				fmt.Println("✓ Remote already up to date")
				return nil
			case errors.Is(err, gitstore.ErrRemoteMissing):
				return fmt.Errorf("remote not configured (run `twinsync remote setup` first)")
			case errors.Is(err, gitstore.ErrNotFastForward):
				return fmt.Errorf("remote has diverged; pull first with `twinsync pull`")
			case err != nil:
				return err
			}

			fmt.Printf("✓ Pushed %s to %s\n", orDefault(branch, gitstore.DefaultBranch),
				orDefault(remote, gitstore.DefaultRemote))
			return nil
		},
	}

	cmd.Flags().StringVar(&remote, "remote", "", "remote name (default origin)")
	cmd.Flags().StringVar(&branch, "branch", "", "branch to push (default main)")
	cmd.Flags().BoolVar(&commit, "commit", false, "commit pending changes before pushing")

	return cmd
}

// orDefault returns value, or fallback when value is empty.
func orDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
