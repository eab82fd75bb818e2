package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newHistoryCommand() *cobra.Command {
	var (
		limit int
		runID string
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show archived engine runs",
		Long: `List runs from the history archive under .twinsync/history.db.

Every snapshot, plan, and apply lands here with its outcome. Apply runs
additionally record which providers executed which actions, beyond the
capped plan_execution list in the log index.`,
		Example: `  # Last 20 runs
  twinsync history

  # Runs with a larger window
  twinsync history --limit 100

  # Executions of one apply run
  twinsync history --run 2f8a1c04-77f0-4cde-9f2e-64f0aa3c1b1a`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			app, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer app.Close(ctx)

			if app.archive == nil {
				return fmt.Errorf("history archive unavailable under %s", app.root)
			}

			if runID != "" {
				return showRun(cmd, app, runID)
			}

			runs, err := app.archive.ListRuns(ctx, limit, 0)
			if err != nil {
				return err
			}
			if jsonOutput {
				return printJSON(runs)
			}
			if len(runs) == 0 {
				fmt.Println("No runs recorded yet.")
				return nil
			}

			fmt.Printf("%-36s %-10s %-8s %-20s %s\n", "RUN", "OPERATION", "STATUS", "STARTED", "DURATION")
			for _, run := range runs {
				fmt.Printf("%-36s %-10s %-8s %-20s %s\n",
					run.ID, run.Operation, run.Status,
					run.StartedAt.Local().Format("2006-01-02 15:04:05"),
					run.Duration().Round(time.Millisecond))
				if run.Detail != "" {
					fmt.Printf("    %s\n", run.Detail)
				}
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "number of runs to list (0 for all)")
	cmd.Flags().StringVar(&runID, "run", "", "show the executions of one run")

	return cmd
}

// showRun renders one archived run with its provider executions.
func showRun(cmd *cobra.Command, app *app, runID string) error {
	ctx := cmd.Context()

	run, err := app.archive.GetRun(ctx, runID)
	if err != nil {
		return err
	}
	executions, err := app.archive.ListExecutions(ctx, runID)
	if err != nil {
		return err
	}

	if jsonOutput {
		return printJSON(map[string]interface{}{
			"run":        run,
			"executions": executions,
		})
	}

	fmt.Printf("Run %s\n", run.ID)
	fmt.Printf("  operation: %s\n", run.Operation)
	fmt.Printf("  status:    %s\n", run.Status)
	fmt.Printf("  started:   %s\n", run.StartedAt.Local().Format("2006-01-02 15:04:05"))
	fmt.Printf("  duration:  %s\n", run.Duration().Round(time.Millisecond))
	if run.Detail != "" {
		fmt.Printf("  detail:    %s\n", run.Detail)
	}

	if len(executions) == 0 {
		fmt.Println("\nNo executions recorded for this run.")
		return nil
	}
	fmt.Println()
	for _, execution := range executions {
		fmt.Printf("%s (%d actions):\n", execution.Provider, len(execution.Actions))
		for i, action := range execution.Actions {
			marker := "✓"
			detail := ""
			if i < len(execution.Results) {
				if !execution.Results[i].Success {
					marker = "✗"
					detail = " " + execution.Results[i].Message
				}
			}
			fmt.Printf("  %s %s%s\n", marker, action.String(), detail)
		}
	}
	return nil
}
