// Package paths centralizes the on-disk layout of a twin repository.
//
// Layout:
//
//	<repo>/config.yaml            global configuration
//	<repo>/state/<fragment>.yaml  desired state documents
//	<repo>/live/<fragment>.yaml   last-observed state documents
//	<repo>/plan/latest.yaml       most recent aggregate plan
//	<repo>/plan/history/          timestamped prior plans
//	<repo>/logs/current/          current log capture (index.yaml)
//	<repo>/logs/<timestamp>/      rotated log captures
//	<repo>/plugins/<name>/        provider manifests
//	<repo>/schema/                optional validation schemas
//	<repo>/policy/                optional rego policies
package paths

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// DefaultRepoName is the directory created under the user's home when no
// explicit repository root is given.
const DefaultRepoName = "twinsync-device"

// RotationStampLayout names rotated log directories with UTC second
// precision, e.g. "2024-03-01T09-30-00Z".
const RotationStampLayout = "2006-01-02T15-04-05Z"

// DefaultRepoRoot returns ~/<DefaultRepoName>, creating it if absent.
func DefaultRepoRoot() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve home directory: %w", err)
	}
	root := filepath.Join(home, DefaultRepoName)
	if err := os.MkdirAll(root, 0o755); err != nil {
		return "", fmt.Errorf("failed to create repository root: %w", err)
	}
	return root, nil
}

// ConfigFile returns <repo>/config.yaml.
func ConfigFile(root string) string {
	return filepath.Join(root, "config.yaml")
}

// StateDir returns <repo>/state.
func StateDir(root string) string {
	return filepath.Join(root, "state")
}

// LiveDir returns <repo>/live.
func LiveDir(root string) string {
	return filepath.Join(root, "live")
}

// StateFragment returns <repo>/state/<fragment>.yaml.
func StateFragment(root, fragment string) string {
	return filepath.Join(StateDir(root), fragment+".yaml")
}

// LiveFragment returns <repo>/live/<fragment>.yaml.
func LiveFragment(root, fragment string) string {
	return filepath.Join(LiveDir(root), fragment+".yaml")
}

// LogsDir returns <repo>/logs.
func LogsDir(root string) string {
	return filepath.Join(root, "logs")
}

// LogsCurrentDir returns <repo>/logs/current.
func LogsCurrentDir(root string) string {
	return filepath.Join(LogsDir(root), "current")
}

// LogsTimestampDir returns <repo>/logs/<stamp> for a rotated capture.
func LogsTimestampDir(root, stamp string) string {
	return filepath.Join(LogsDir(root), stamp)
}

// LogsIndexFile returns <repo>/logs/current/index.yaml.
func LogsIndexFile(root string) string {
	return filepath.Join(LogsCurrentDir(root), "index.yaml")
}

// PlanDir returns <repo>/plan.
func PlanDir(root string) string {
	return filepath.Join(root, "plan")
}

// PlanLatestFile returns <repo>/plan/latest.yaml.
func PlanLatestFile(root string) string {
	return filepath.Join(PlanDir(root), "latest.yaml")
}

// PlanHistoryDir returns <repo>/plan/history.
func PlanHistoryDir(root string) string {
	return filepath.Join(PlanDir(root), "history")
}

// PlanHistoryFile returns <repo>/plan/history/<stamp>.yaml.
func PlanHistoryFile(root, stamp string) string {
	return filepath.Join(PlanHistoryDir(root), stamp+".yaml")
}

// PluginsDir returns <repo>/plugins.
func PluginsDir(root string) string {
	return filepath.Join(root, "plugins")
}

// ManifestFile returns <repo>/plugins/<name>/plugin.yaml.
func ManifestFile(root, name string) string {
	return filepath.Join(PluginsDir(root), name, "plugin.yaml")
}

// SchemaDir returns <repo>/schema.
func SchemaDir(root string) string {
	return filepath.Join(root, "schema")
}

// PolicyDir returns <repo>/policy.
func PolicyDir(root string) string {
	return filepath.Join(root, "policy")
}

// InternalDir returns <repo>/.twinsync, used for engine-private files such
// as the history database.
func InternalDir(root string) string {
	return filepath.Join(root, ".twinsync")
}

// HistoryDBFile returns <repo>/.twinsync/history.db.
func HistoryDBFile(root string) string {
	return filepath.Join(InternalDir(root), "history.db")
}

// LockFile returns <repo>/.twinsync.lock.
func LockFile(root string) string {
	return filepath.Join(root, ".twinsync.lock")
}

// RotationStamp formats t as a rotated-logs directory name in UTC.
func RotationStamp(t time.Time) string {
	return t.UTC().Format(RotationStampLayout)
}

// EnsureLayout creates every directory of the repository layout. It only
// ever creates directories, so calling it repeatedly is safe.
func EnsureLayout(root string) error {
	dirs := []string{
		root,
		StateDir(root),
		LiveDir(root),
		LogsDir(root),
		LogsCurrentDir(root),
		PlanDir(root),
		PlanHistoryDir(root),
		PluginsDir(root),
		SchemaDir(root),
		PolicyDir(root),
		InternalDir(root),
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}
	return nil
}
