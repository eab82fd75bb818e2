package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newStatusCommand() *cobra.Command {
	var exitCode bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Report drift between desired and live state",
		Long: `Compare the desired state fragments against the last captured live
fragments and report which ones drift.

Status is read-only: it inspects the repository as-is and does not take
a fresh snapshot. Run snapshot first for a verdict against current
reality.`,
		Example: `  # Human readable drift table
  twinsync status

  # For scripts and monitoring: exit 2 when drift is present
  twinsync status --exit-code`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			app, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer app.Close(ctx)

			report, err := app.eng.Status(ctx)
			if err != nil {
				return err
			}

			if jsonOutput {
				if err := printJSON(report); err != nil {
					return err
				}
			} else {
				for _, fragment := range report.Fragments() {
					if report[fragment] {
						fmt.Printf("✗ %-16s drift\n", fragment)
					} else {
						fmt.Printf("✓ %-16s in sync\n", fragment)
					}
				}
				if report.InSync() {
					fmt.Println("\nDevice matches the desired state.")
				} else {
					fmt.Printf("\n%d fragments drift. Run `twinsync plan` for details.\n",
						len(report.Drifted()))
				}
			}

			if exitCode && !report.InSync() {
				return &exitCodeError{code: 2, msg: "state drift detected"}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&exitCode, "exit-code", false, "exit 2 when drift is present")

	return cmd
}
