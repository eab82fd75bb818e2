package engine

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/twinsync/twinsync/pkg/paths"
	"github.com/twinsync/twinsync/pkg/schema"
)

// InitRepo bootstraps the twin repository. Packaged provider manifests
// and validation schemas are installed, an initial snapshot captures
// the live system, and the captured fragments seed state/ so a fresh
// twin starts fully in sync with reality.
//
// The repository configuration is created from defaults by the context
// load; an existing config.yaml is left untouched between inits.
func (e *Engine) InitRepo(ctx context.Context) (*SnapshotReport, error) {
	if err := paths.EnsureLayout(e.tc.RepoRoot); err != nil {
		return nil, NewInternalError("ensure repository layout", err).WithOperation("init")
	}
	if err := InstallAssets(e.tc.RepoRoot); err != nil {
		return nil, err
	}
	if err := schema.Install(paths.SchemaDir(e.tc.RepoRoot)); err != nil {
		return nil, NewInternalError("install validation schemas", err).WithOperation("init")
	}

	report, err := e.Snapshot(ctx)
	if err != nil {
		return report, err
	}
	if err := e.seedState(); err != nil {
		return report, err
	}
	e.log.WithField("repo", e.tc.RepoRoot).Info("twin repository initialized")
	return report, nil
}

// seedState copies every captured live fragment into state/, making the
// first snapshot the desired baseline.
func (e *Engine) seedState() error {
	liveDir := paths.LiveDir(e.tc.RepoRoot)
	entries, err := os.ReadDir(liveDir)
	if err != nil {
		return NewInternalError("read live directory", err).WithOperation("init")
	}
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".yaml") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(liveDir, name))
		if err != nil {
			return NewInternalError("read live fragment", err).
				WithOperation("init").WithDetail("file", name)
		}
		dest := filepath.Join(paths.StateDir(e.tc.RepoRoot), name)
		if err := os.WriteFile(dest, data, 0o644); err != nil {
			return NewInternalError("seed desired fragment", err).
				WithOperation("init").WithDetail("file", name)
		}
	}
	return nil
}
