package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/twinsync/twinsync/pkg/engine"
)

func newApplyCommand() *cobra.Command {
	var (
		force    bool
		noCommit bool
	)

	cmd := &cobra.Command{
		Use:   "apply",
		Short: "Execute the pending plan against the live system",
		Long: `Execute the actions recorded in plan/latest.yaml.

Providers run in plan order. A failing action is recorded and the
provider carries on with its remaining actions, so one refused package
does not abort the run. Plan entries for providers that are unknown or
no longer enabled are skipped. With policy.enforce set, error-severity
policy violations refuse the whole plan unless --force is given.

Every dispatched provider is appended to the plan_execution list in the
current log index and archived in the run history.`,
		Example: `  # Execute the pending plan
  twinsync apply

  # Execute even when the policy gate objects
  twinsync apply --force

  # Execute without committing the updated twin
  twinsync apply --no-commit`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			app, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer app.Close(ctx)

			return app.withLock(func() error {
				report, err := app.eng.Apply(ctx, engine.ApplyOptions{Force: force})
				if err != nil {
					return err
				}

				if jsonOutput {
					return printJSON(report)
				}

				if report.Empty {
					fmt.Println("Nothing to apply. The plan is empty.")
					return nil
				}

				for _, execution := range report.Executed {
					failed := execution.Failed()
					if failed == 0 {
						fmt.Printf("✓ %s: %d actions applied\n", execution.Provider, len(execution.Results))
						continue
					}
					fmt.Printf("✗ %s: %d of %d actions failed\n",
						execution.Provider, failed, len(execution.Results))
					for _, result := range execution.Results {
						if !result.Success {
							fmt.Printf("    %s: %s\n", result.Action.String(), result.Message)
						}
					}
				}
				for _, provider := range report.Skipped {
					fmt.Printf("- %s: skipped (provider unknown or disabled)\n", provider)
				}
				for provider, msg := range report.Failures {
					fmt.Printf("✗ %s: %s\n", provider, msg)
				}
				fmt.Printf("\nApplied %d actions.\n", report.TotalApplied())

				if noCommit {
					return nil
				}
				return app.commitRepo(ctx, "twinsync apply")
			})
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "bypass the policy gate")
	cmd.Flags().BoolVar(&noCommit, "no-commit", false, "skip the git commit")

	return cmd
}
