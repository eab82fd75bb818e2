package engine

import (
	"embed"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/twinsync/twinsync/pkg/paths"
)

// Packaged provider manifests installed into new repositories.
//
//go:embed assets
var assetsFS embed.FS

// InstallAssets copies the packaged provider definitions into
// <repo>/plugins. An existing definition directory of the same name is
// replaced wholesale, so re-running init refreshes manifests shipped
// with newer binaries.
func InstallAssets(repoRoot string) error {
	entries, err := fs.ReadDir(assetsFS, "assets")
	if err != nil {
		return NewInternalError("read packaged provider definitions", err).
			WithOperation("init")
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		src := filepath.Join("assets", entry.Name())
		dest := filepath.Join(paths.PluginsDir(repoRoot), entry.Name())
		if err := os.RemoveAll(dest); err != nil {
			return NewInternalError("clear provider definition", err).
				WithOperation("init").WithDetail("dir", dest)
		}
		if err := copyAssetDir(src, dest); err != nil {
			return err
		}
	}
	return nil
}

func copyAssetDir(src, dest string) error {
	return fs.WalkDir(assetsFS, src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return NewInternalError("walk packaged assets", err).WithOperation("init")
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return NewInternalError("resolve asset path", err).WithOperation("init")
		}
		target := filepath.Join(dest, rel)
		if d.IsDir() {
			return os.MkdirAll(target, 0o755)
		}
		data, err := assetsFS.ReadFile(path)
		if err != nil {
			return NewInternalError("read packaged asset", err).
				WithOperation("init").WithDetail("path", path)
		}
		return os.WriteFile(target, data, 0o644)
	})
}
