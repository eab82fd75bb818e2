package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/twinsync/twinsync/pkg/sysexec"
)

// dependency is one external command a provider relies on.
type dependency struct {
	command  string
	provider string
	required bool
}

// providerDependencies maps each bundled provider to the system command
// it probes for. Optional entries only matter when the matching provider
// is enabled; docker is never required because containers.docker is
// observational.
var providerDependencies = []dependency{
	{command: "dpkg-query", provider: "packages.debian", required: true},
	{command: "apt-get", provider: "packages.debian", required: true},
	{command: "systemctl", provider: "services.systemd", required: true},
	{command: "crontab", provider: "cron.user", required: true},
	{command: "journalctl", provider: "logs.systemd_journal", required: true},
	{command: "uname", provider: "system.info", required: true},
	{command: "docker", provider: "containers.docker", required: false},
	{command: "sudo", provider: "packages.debian", required: false},
}

func newDoctorCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check the system commands the providers depend on",
		Long: `Probe for the external commands the bundled providers call.

A missing command only matters when the provider needing it is enabled:
an enabled provider with a missing required command fails the check,
while disabled providers report their findings informationally. Exit
code is non-zero when a required dependency of an enabled provider is
absent.`,
		Example: `  # Check this machine
  twinsync doctor

  # Machine readable report
  twinsync doctor --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			app, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer app.Close(ctx)

			type finding struct {
				Command  string `json:"command"`
				Provider string `json:"provider"`
				Present  bool   `json:"present"`
				Enabled  bool   `json:"enabled"`
				Blocking bool   `json:"blocking"`
			}

			var (
				findings []finding
				missing  int
			)
			for _, dep := range providerDependencies {
				f := finding{
					Command:  dep.command,
					Provider: dep.provider,
					Present:  sysexec.CommandExists(dep.command),
					Enabled:  app.cfg.Enabled(dep.provider),
				}
				f.Blocking = !f.Present && f.Enabled && dep.required
				if f.Blocking {
					missing++
				}
				findings = append(findings, f)
			}

			if jsonOutput {
				if err := printJSON(findings); err != nil {
					return err
				}
			} else {
				for _, f := range findings {
					switch {
					case f.Present:
						fmt.Printf("✓ %-12s (%s)\n", f.Command, f.Provider)
					case f.Blocking:
						fmt.Printf("✗ %-12s missing, needed by enabled provider %s\n", f.Command, f.Provider)
					default:
						fmt.Printf("- %-12s missing (%s not enabled or optional)\n", f.Command, f.Provider)
					}
				}
			}

			if missing > 0 {
				return &exitCodeError{
					code: 1,
					msg:  fmt.Sprintf("%d required commands missing", missing),
				}
			}
			if !jsonOutput {
				fmt.Println("\nAll required commands are available.")
			}
			return nil
		},
	}

	return cmd
}
