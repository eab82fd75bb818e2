package commands

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/twinsync/twinsync/pkg/config"
	"github.com/twinsync/twinsync/pkg/gitstore"
)

func newRemoteCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "remote",
		Short: "Manage the twin repository remote",
		Long: `Inspect or configure the git remote the twin syncs with.

Without a subcommand the configured remote URL is shown. The setup
subcommand wires a GitHub repository as origin and records the account
and token in config.yaml for authenticated push and pull.`,
		Example: `  # Show the configured remote
  twinsync remote

  # Wire up a GitHub repository
  twinsync remote setup --user alice --repo device-gw1 --token ghp_xxx`,
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

			url, err := store.RemoteURL(gitstore.DefaultRemote)
			if errors.Is(err, gitstore.ErrRemoteMissing) {
				fmt.Println("No remote configured. Run `twinsync remote setup` to add one.")
				return nil
			}
			if err != nil {
				return err
			}

			if jsonOutput {
				return printJSON(map[string]string{
					"remote": gitstore.DefaultRemote,
					"url":    url,
				})
			}
			fmt.Printf("%s  %s\n", gitstore.DefaultRemote, url)
			return nil
		},
	}

	cmd.AddCommand(newRemoteSetupCommand())

	return cmd
}

func newRemoteSetupCommand() *cobra.Command {
	var (
		user  string
		repo  string
		token string
		url   string
	)

	cmd := &cobra.Command{
		Use:   "setup",
		Short: "Point the twin at a GitHub repository",
		Long: `Configure origin and store the sync credentials in config.yaml.

The remote URL is derived from --user and --repo as
https://github.com/<user>/<repo>.git, or given directly with --url for
non-GitHub hosts. The token authenticates as x-access-token over HTTPS;
create the repository on the remote side first, then push.`,
		Example: `  # Standard GitHub wiring
  twinsync remote setup --user alice --repo device-gw1 --token ghp_xxx

  # Explicit URL, token already in config
  twinsync remote setup --url https://git.example.com/twins/gw1.git`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			app, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer app.Close(ctx)

			if url == "" {
				if user == "" || repo == "" {
					return fmt.Errorf("either --url or both --user and --repo are required")
				}
				url = gitstore.GitHubURL(user, repo)
			}

			store, err := app.store()
			if err != nil {
				if errors.Is(err, gitstore.ErrNotRepository) {
					return fmt.Errorf("repository %s is not under git (run `twinsync init` first)", app.root)
				}
				return err
			}
			if err := store.SetRemote(gitstore.DefaultRemote, url); err != nil {
				return err
			}

			if user != "" {
				app.cfg.GitHub.User = user
			}
			if repo != "" {
				app.cfg.GitHub.DeviceRepo = repo
			}
			if token != "" {
				app.cfg.GitHub.Token = token
			}
			if err := config.Save(app.root, app.cfg); err != nil {
				return err
			}

			fmt.Printf("✓ Remote %s set to %s\n", gitstore.DefaultRemote, url)
			if token != "" {
				fmt.Println("✓ Token stored in config.yaml")
			}
			fmt.Println("\nPush the twin with `twinsync push`.")
			return nil
		},
	}

	cmd.Flags().StringVar(&user, "user", "", "GitHub account owning the device repository")
	cmd.Flags().StringVar(&repo, "repo", "", "GitHub repository name")
	cmd.Flags().StringVar(&token, "token", "", "personal access token for push/pull")
	cmd.Flags().StringVar(&url, "url", "", "full remote URL (overrides --user/--repo)")

	return cmd
}
