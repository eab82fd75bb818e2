package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/twinsync/twinsync/pkg/config"
	"github.com/twinsync/twinsync/pkg/engine"
	"github.com/twinsync/twinsync/pkg/yamlutil"
)

func newConfigCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show the repository configuration",
		Long: `Render the effective configuration from config.yaml.

The output includes defaults filled in at load time, so it reflects
what a run actually uses rather than the raw file. The GitHub token is
redacted; read config.yaml directly when you need it.`,
		Example: `  # Show the effective configuration
  twinsync config

  # Change the mirrored filesystem roots
  twinsync config roots --set /etc,/opt/app/conf`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			app, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer app.Close(ctx)

			shown := *app.cfg
			if shown.GitHub.Token != "" {
				shown.GitHub.Token = "<redacted>"
			}

			if jsonOutput {
				return printJSON(shown)
			}

			out, err := yamlutil.Marshal(shown)
			if err != nil {
				return err
			}
			fmt.Print(string(out))
			return nil
		},
	}

	cmd.AddCommand(newConfigRootsCommand())
	cmd.AddCommand(newConfigProvidersCommand())

	return cmd
}

func newConfigRootsCommand() *cobra.Command {
	var set string

	cmd := &cobra.Command{
		Use:   "roots",
		Short: "Show or change the mirrored filesystem roots",
		Long: `Show or replace the directory roots the files.mirror provider
tracks.

Setting roots replaces the whole list. The next snapshot captures files
under the new roots; previously captured files outside them stay in
live/files.yaml until then.`,
		Example: `  # Show the configured roots
  twinsync config roots

  # Track /etc and an application config tree
  twinsync config roots --set /etc,/opt/app/conf`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			app, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer app.Close(ctx)

			if set == "" {
				if jsonOutput {
					return printJSON(app.cfg.Filesystem.Roots)
				}
				if len(app.cfg.Filesystem.Roots) == 0 {
					fmt.Println("No filesystem roots configured.")
					return nil
				}
				for _, root := range app.cfg.Filesystem.Roots {
					fmt.Println(root)
				}
				return nil
			}

			var roots []string
			for _, root := range strings.Split(set, ",") {
				root = strings.TrimSpace(root)
				if root != "" {
					roots = append(roots, root)
				}
			}
			if len(roots) == 0 {
				return fmt.Errorf("--set needs at least one directory")
			}

			app.cfg.Filesystem.Roots = roots
			if err := config.Save(app.root, app.cfg); err != nil {
				return err
			}
			fmt.Printf("✓ Filesystem roots set to %s\n", strings.Join(roots, ", "))
			fmt.Println("Run `twinsync snapshot` to capture files under the new roots.")
			return nil
		},
	}

	cmd.Flags().StringVar(&set, "set", "", "comma-separated directory roots to mirror")

	return cmd
}

func newConfigProvidersCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "providers",
		Short: "Show enabled and known providers",
		Long: `List the providers enabled in config.yaml next to every provider
compiled into this binary.

A provider runs when it is enabled, its manifest is installed under
plugins/, and its detect probe accepts this system. Edit the
providers.enable list in config.yaml to change the enabled set.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			app, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer app.Close(ctx)

			enabled := make(map[string]bool, len(app.cfg.Providers.Enable))
			for _, name := range app.cfg.Providers.Enable {
				enabled[name] = true
			}

			if jsonOutput {
				return printJSON(map[string]interface{}{
					"enabled":    app.cfg.Providers.Enable,
					"registered": engine.RegisteredProviders(),
				})
			}

			for _, name := range engine.RegisteredProviders() {
				marker := " "
				if enabled[name] {
					marker = "✓"
				}
				fmt.Printf("%s %s\n", marker, name)
			}
			return nil
		},
	}

	return cmd
}
