package commands

import (
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/twinsync/twinsync/pkg/paths"
	"github.com/twinsync/twinsync/pkg/yamlutil"
)

func newLogsCommand() *cobra.Command {
	var tail int

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show the current log index",
		Long: `Render the log index written by the last snapshot.

The index under logs/current holds one entry per logs provider plus the
plan_execution list appended by apply runs. Older captures live in
timestamped directories next to current/; full run history is available
via the history command.`,
		Example: `  # Summarize the current log capture
  twinsync logs

  # Show the last 20 plan executions
  twinsync logs --tail 20`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			app, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer app.Close(ctx)

			indexPath := paths.LogsIndexFile(app.root)
			if _, err := os.Stat(indexPath); os.IsNotExist(err) {
				fmt.Println("No log capture yet. Run `twinsync snapshot` first.")
				return nil
			}

			index, err := yamlutil.Load(indexPath)
			if err != nil {
				return fmt.Errorf("failed to load log index: %w", err)
			}

			if jsonOutput {
				return printJSON(index)
			}

			keys := make([]string, 0, len(index))
			for key := range index {
				if key != "plan_execution" {
					keys = append(keys, key)
				}
			}
			sort.Strings(keys)

			fmt.Println("Log sources:")
			for _, key := range keys {
				fmt.Printf("  %-24s %s\n", key, summarizeValue(index[key]))
			}

			executions, _ := index["plan_execution"].([]interface{})
			if len(executions) == 0 {
				fmt.Println("\nNo plan executions recorded.")
				return nil
			}
			if tail > 0 && len(executions) > tail {
				executions = executions[len(executions)-tail:]
			}
			fmt.Printf("\nLast %d plan executions:\n", len(executions))
			for _, raw := range executions {
				entry, ok := raw.(map[string]interface{})
				if !ok {
					continue
				}
				provider, _ := entry["provider"].(string)
				actions, _ := entry["actions"].([]interface{})
				fmt.Printf("  %-24s %d actions\n", provider, len(actions))
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&tail, "tail", 5, "number of plan executions to show (0 for all)")

	return cmd
}

// summarizeValue renders a one-line preview of an index entry.
func summarizeValue(v interface{}) string {
	switch val := v.(type) {
	case map[string]interface{}:
		return fmt.Sprintf("%d fields", len(val))
	case []interface{}:
		return fmt.Sprintf("%d entries", len(val))
	case nil:
		return "empty"
	default:
		s := fmt.Sprintf("%v", val)
		if len(s) > 60 {
			s = s[:57] + "..."
		}
		return s
	}
}
