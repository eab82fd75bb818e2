package commands

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/twinsync/twinsync/pkg/config"
	"github.com/twinsync/twinsync/pkg/engine"
	"github.com/twinsync/twinsync/pkg/paths"
	"github.com/twinsync/twinsync/pkg/schema"
	"github.com/twinsync/twinsync/pkg/yamlutil"
)

func newValidateCommand() *cobra.Command {
	var strict bool

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate the twin repository documents",
		Long: `Check that the repository parses: configuration, provider
manifests, and every state/ and live/ document.

Fragments with a schema under schema/ are additionally checked against
it; a repository schema file overrides the built-in of the same name.
Schema findings are best-effort warnings unless --strict promotes them
to failures. The reconciliation engine itself never consults schemas.`,
		Example: `  # Parse checks plus schema warnings
  twinsync validate

  # Treat schema violations as errors
  twinsync validate --strict`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			app, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer app.Close(ctx)

			var problems, warnings int

			// Configuration.
			if err := config.Validate(app.cfg); err != nil {
				fmt.Printf("✗ config.yaml: %v\n", err)
				problems++
			} else {
				fmt.Println("✓ config.yaml")
			}

			// Provider manifests.
			manifests, err := engine.DiscoverManifests(app.root)
			if err != nil {
				fmt.Printf("✗ plugins/: %v\n", err)
				problems++
			} else {
				fmt.Printf("✓ plugins/ (%d manifests)\n", len(manifests))
				for _, m := range manifests {
					if app.cfg.Enabled(m.Name) && !registered(m.Entrypoint) {
						fmt.Printf("✗ plugins/%s: entrypoint %q is not compiled into this binary\n",
							m.Dir, m.Entrypoint)
						problems++
					}
				}
			}

			// Fragment documents, parse then schema.
			registry, err := schema.NewRegistry()
			if err != nil {
				return err
			}
			if err := registry.LoadDir(paths.SchemaDir(app.root)); err != nil {
				fmt.Printf("⚠ schema/: %v\n", err)
				warnings++
			}

			for _, dir := range []string{paths.StateDir(app.root), paths.LiveDir(app.root)} {
				entries, err := os.ReadDir(dir)
				if os.IsNotExist(err) {
					continue
				}
				if err != nil {
					return err
				}
				for _, entry := range entries {
					name := entry.Name()
					if entry.IsDir() || !strings.HasSuffix(name, ".yaml") {
						continue
					}
					rel := filepath.Join(filepath.Base(dir), name)
					doc, err := yamlutil.Load(filepath.Join(dir, name))
					if err != nil {
						fmt.Printf("✗ %s: %v\n", rel, err)
						problems++
						continue
					}

					fragment := strings.TrimSuffix(name, ".yaml")
					if !registry.Has(fragment) {
						fmt.Printf("✓ %s (no schema)\n", rel)
						continue
					}
					if err := registry.Validate(fragment, doc); err != nil {
						if strict {
							fmt.Printf("✗ %s: %v\n", rel, err)
							problems++
						} else {
							fmt.Printf("⚠ %s: %v\n", rel, err)
							warnings++
						}
						continue
					}
					fmt.Printf("✓ %s\n", rel)
				}
			}

			if problems > 0 {
				return &exitCodeError{
					code: 1,
					msg:  fmt.Sprintf("%d validation failures", problems),
				}
			}
			if warnings > 0 {
				fmt.Printf("\nRepository parses; %d schema warnings.\n", warnings)
			} else {
				fmt.Println("\nRepository is valid.")
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&strict, "strict", false, "treat schema violations as failures")

	return cmd
}

// registered reports whether the entrypoint resolves to a compiled-in
// factory.
func registered(entrypoint string) bool {
	for _, name := range engine.RegisteredProviders() {
		if name == entrypoint {
			return true
		}
	}
	return false
}
