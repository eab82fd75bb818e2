package commands

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/twinsync/twinsync/pkg/gitstore"
)

func newTimeMachineCommand() *cobra.Command {
	var (
		commit string
		limit  int
		yes    bool
	)

	cmd := &cobra.Command{
		Use:   "time-machine",
		Short: "Roll the twin repository back to an earlier commit",
		Long: `Browse the twin history and reset the repository to a past commit.

Without --commit the recent history is listed. With --commit the
worktree is hard-reset to that commit: state/, live/, plan/ and
config.yaml all revert, and uncommitted changes are lost. The live
system itself is untouched; run plan and apply afterwards to converge
the machine onto the restored desired state.`,
		Example: `  # Browse history
  twinsync time-machine

  # Roll back to a commit from the listing
  twinsync time-machine --commit 3f2a91c

  # Non-interactive rollback
  twinsync time-machine --commit 3f2a91c --yes`,
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

			if commit == "" {
				return listHistory(ctx, store, limit)
			}

			if !yes && !confirm(fmt.Sprintf(
				"Reset %s to %s? Uncommitted changes will be lost", app.root, commit)) {
				fmt.Println("Aborted.")
				return nil
			}

			return app.withLock(func() error {
				if err := store.ResetHard(ctx, commit); err != nil {
					if errors.Is(err, gitstore.ErrBadRevision) {
						return fmt.Errorf("cannot resolve %q; pick a commit from `twinsync time-machine`", commit)
					}
					return err
				}
				fmt.Printf("✓ Repository reset to %s\n", commit)
				fmt.Println("\nThe live system is unchanged. To converge it on the restored state:")
				fmt.Println("  twinsync plan")
				fmt.Println("  twinsync apply")
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&commit, "commit", "", "commit to reset the repository to")
	cmd.Flags().IntVar(&limit, "limit", 15, "number of history entries to list (0 for all)")
	cmd.Flags().BoolVar(&yes, "yes", false, "skip the confirmation prompt")

	return cmd
}

// listHistory renders recent commits, newest first.
func listHistory(ctx context.Context, store *gitstore.Store, limit int) error {
	commits, err := store.Log(ctx, limit)
	if err != nil {
		return err
	}
	if len(commits) == 0 {
		fmt.Println("No history yet. Run `twinsync snapshot` to create the first commit.")
		return nil
	}

	if jsonOutput {
		return printJSON(commits)
	}

	fmt.Printf("%-9s %-17s %s\n", "COMMIT", "WHEN", "MESSAGE")
	for _, c := range commits {
		fmt.Printf("%-9s %-17s %s\n",
			c.ShortHash(), c.When.Local().Format("2006-01-02 15:04"), c.Message)
	}
	fmt.Println("\nRoll back with `twinsync time-machine --commit <hash>`.")
	return nil
}

// confirm asks the user a yes/no question on the terminal.
func confirm(prompt string) bool {
	fmt.Printf("%s [y/N]: ", prompt)
	reader := bufio.NewReader(os.Stdin)
	answer, err := reader.ReadString('\n')
	if err != nil {
		return false
	}
	answer = strings.ToLower(strings.TrimSpace(answer))
	return answer == "y" || answer == "yes"
}
