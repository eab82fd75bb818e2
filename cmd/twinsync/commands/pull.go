package commands

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/twinsync/twinsync/pkg/gitstore"
)

func newPullCommand() *cobra.Command {
	var (
		remote string
		branch string
	)

	cmd := &cobra.Command{
		Use:   "pull",
		Short: "Fast-forward the twin repository from its remote",
		Long: `Fetch the remote twin history and fast-forward the local branch.

Only fast-forward pulls are performed: when local and remote history
have diverged the pull is refused and the worktree is left untouched,
so a device never silently merges desired state edited elsewhere. The
pull is taken under the repository lock because it rewrites state/.`,
		Example: `  # Pull desired-state updates pushed from another machine
  twinsync pull

  # Pull from a different remote
  twinsync pull --remote backup`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			app, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer app.Close(ctx)

			store, err := app.store()
			if err != nil {
				if errors.Is(err, gitstore.ErrNotRepository) {
					return fmt.Errorf("repository %s is not under git (run `twinsync init` first)", app.root)
				}
				return err
			}

			return app.withLock(func() error {
				err := store.PullFFOnly(ctx, remote, branch)
				switch {
				case errors.Is(err, gitstore.ErrAlreadyUpToDate):
					fmt.Println("✓ Already up to date")
					return nil
				case errors.Is(err, gitstore.ErrRemoteMissing):
					return fmt.Errorf("remote not configured (run `twinsync remote setup` first)")
				case errors.Is(err, gitstore.ErrNotFastForward):
					return fmt.Errorf("histories have diverged; reconcile manually or reset with `twinsync time-machine`")
				case err != nil:
					return err
				}

				fmt.Printf("✓ Fast-forwarded %s from %s\n",
					orDefault(branch, gitstore.DefaultBranch), orDefault(remote, gitstore.DefaultRemote))
				fmt.Println("Run `twinsync plan` to see what the updated desired state changes.")
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&remote, "remote", "", "remote name (default origin)")
	cmd.Flags().StringVar(&branch, "branch", "", "branch to pull (default main)")

	return cmd
}
