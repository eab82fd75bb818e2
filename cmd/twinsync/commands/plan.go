package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newPlanCommand() *cobra.Command {
	var refresh bool

	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Compute corrective actions from desired vs live state",
		Long: `Diff the desired state against the last captured live state and
write the pending corrective actions to plan/latest.yaml.

Every enabled provider contributes its actions, including an explicit
empty list when it has nothing to do, so the plan file always states
which providers were consulted. Policy findings are shown as warnings;
enforcement happens at apply time.`,
		Example: `  # Plan against the last snapshot
  twinsync plan

  # Snapshot first, then plan against fresh state
  twinsync plan --refresh

  # Machine readable plan
  twinsync plan --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			app, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer app.Close(ctx)

			return app.withLock(func() error {
				if refresh {
					if _, err := app.eng.Snapshot(ctx); err != nil {
						return err
					}
				}

				plan, err := app.eng.Plan(ctx)
				if err != nil {
					return err
				}

				if jsonOutput {
					return printJSON(plan)
				}

				result, err := app.gate.Evaluate(ctx, plan)
				if err != nil {
					return err
				}
				for _, v := range result.Violations {
					fmt.Printf("⚠ [%s] %s: %s\n", v.Severity, v.Policy, v.Message)
				}

				if plan.Empty() {
					fmt.Println("No changes. Desired state matches the live system.")
					return nil
				}

				pending := 0
				for _, provider := range plan.Providers() {
					if len(plan[provider]) > 0 {
						pending++
					}
				}
				fmt.Printf("Plan: %d actions across %d providers\n\n", plan.Total(), pending)
				for _, provider := range plan.Providers() {
					actions := plan[provider]
					if len(actions) == 0 {
						continue
					}
					fmt.Printf("%s (%d):\n", provider, len(actions))
					for _, action := range actions {
						fmt.Printf("  - %s\n", action.String())
					}
				}
				fmt.Println("\nRun `twinsync apply` to execute these actions.")
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&refresh, "refresh", false, "take a snapshot before planning")

	return cmd
}
