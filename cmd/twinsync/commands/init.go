package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/twinsync/twinsync/pkg/gitstore"
	"github.com/twinsync/twinsync/pkg/paths"
)

func newInitCommand() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize the twin repository",
		Long: `Initialize a twin repository for this device.

This command:
  - Creates the repository layout (state/, live/, plan/, logs/, plugins/)
  - Writes a default config.yaml and the bundled provider manifests
  - Puts the repository under git
  - Takes the first snapshot and seeds state/ from it

After init the desired state equals reality, so the first plan is empty
until either side changes.`,
		Example: `  # Initialize under ~/twinsync-device
  twinsync init

  # Initialize a twin at a custom location
  twinsync init --repo /srv/twins/gateway-a

  # Re-run on an already initialized repository
  twinsync init --force`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			root, err := resolveRepo()
			if err != nil {
				return err
			}
			if !force {
				if initialized, err := stateSeeded(root); err != nil {
					return err
				} else if initialized {
					return fmt.Errorf("repository %s already holds desired state (use --force to re-run init)", root)
				}
			}

			app, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer app.Close(ctx)

			fmt.Printf("Initializing twin repository in %s\n\n", root)

			store, err := gitstore.Init(root)
			if err != nil {
				return fmt.Errorf("failed to put repository under git: %w", err)
			}
			fmt.Printf("✓ Git repository on branch %s\n", gitstore.DefaultBranch)

			return app.withLock(func() error {
				rep, err := app.eng.InitRepo(ctx)
				if err != nil {
					return err
				}
				fmt.Printf("✓ Captured %d live fragments\n", len(rep.Fragments))
				fmt.Println("✓ Desired state seeded from first snapshot")
				for provider, msg := range rep.Failures {
					fmt.Printf("⚠ provider %s skipped: %s\n", provider, msg)
				}

				hash, err := store.CommitAll(ctx, "twinsync init")
				if err != nil {
					return fmt.Errorf("failed to commit initial state: %w", err)
				}
				if hash != "" {
					fmt.Printf("✓ Initial commit %s\n", hash[:7])
				}

				fmt.Println("\nNext steps:")
				fmt.Println("  edit state/*.yaml to declare the desired state")
				fmt.Println("  twinsync plan      # see what would change")
				fmt.Println("  twinsync apply     # make it so")
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "re-run init on an initialized repository")

	return cmd
}

// stateSeeded reports whether the repository already holds desired state
// fragments, which is the mark of a completed init.
func stateSeeded(root string) (bool, error) {
	entries, err := os.ReadDir(paths.StateDir(root))
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	for _, entry := range entries {
		if !entry.IsDir() {
			return true, nil
		}
	}
	return false, nil
}
