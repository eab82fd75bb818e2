package engine

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/twinsync/twinsync/pkg/paths"
)

func TestInitRepoSeedsStateFromFirstSnapshot(t *testing.T) {
	fakeAlpha.reset("alpha")
	fakeAlpha.payload = map[string]interface{}{
		"items": []interface{}{map[string]interface{}{"name": "one"}},
	}
	tc := newTestContext(t, "test.alpha")
	writeTestManifest(t, tc.RepoRoot, "alpha", "test.alpha", "config", "test.alpha", "alpha")
	e := newTestEngine(t, tc)

	report, err := e.InitRepo(context.Background())
	if err != nil {
		t.Fatalf("InitRepo() error = %v", err)
	}
	if len(report.Fragments) != 1 {
		t.Errorf("report.Fragments = %v, want one captured fragment", report.Fragments)
	}

	live, err := os.ReadFile(paths.LiveFragment(tc.RepoRoot, "alpha"))
	if err != nil {
		t.Fatalf("read live fragment: %v", err)
	}
	state, err := os.ReadFile(paths.StateFragment(tc.RepoRoot, "alpha"))
	if err != nil {
		t.Fatalf("read seeded fragment: %v", err)
	}
	if !bytes.Equal(live, state) {
		t.Errorf("seeded state differs from live capture:\n%s\n---\n%s", state, live)
	}

	status, err := e.Status(context.Background())
	if err != nil {
		t.Fatalf("Status() error = %v", err)
	}
	if !status.InSync() {
		t.Errorf("fresh twin drifts immediately after init: %v", status)
	}
}

func TestInitRepoInstallsBundledAssets(t *testing.T) {
	fakeAlpha.reset("alpha")
	tc := newTestContext(t, "test.alpha")
	writeTestManifest(t, tc.RepoRoot, "alpha", "test.alpha", "config", "test.alpha", "alpha")
	e := newTestEngine(t, tc)

	if _, err := e.InitRepo(context.Background()); err != nil {
		t.Fatalf("InitRepo() error = %v", err)
	}

	for _, dir := range []string{"packages_debian", "services_systemd", "files_mirror", "cron_user", "logs_systemd_journal", "logs_files"} {
		if _, err := os.Stat(paths.ManifestFile(tc.RepoRoot, dir)); err != nil {
			t.Errorf("bundled manifest %s missing: %v", dir, err)
		}
	}
	schemas, err := os.ReadDir(paths.SchemaDir(tc.RepoRoot))
	if err != nil || len(schemas) == 0 {
		t.Errorf("schema dir empty after init (err = %v)", err)
	}
}

func TestInstallAssetsRestoresBundledManifests(t *testing.T) {
	root := t.TempDir()
	if err := paths.EnsureLayout(root); err != nil {
		t.Fatalf("EnsureLayout() error = %v", err)
	}
	if err := InstallAssets(root); err != nil {
		t.Fatalf("InstallAssets() error = %v", err)
	}

	target := paths.ManifestFile(root, "packages_debian")
	if err := os.WriteFile(target, []byte("name: tampered\n"), 0o644); err != nil {
		t.Fatalf("tamper manifest: %v", err)
	}
	stray := filepath.Join(filepath.Dir(target), "leftover.txt")
	if err := os.WriteFile(stray, []byte("junk"), 0o644); err != nil {
		t.Fatalf("write stray file: %v", err)
	}

	if err := InstallAssets(root); err != nil {
		t.Fatalf("reinstall error = %v", err)
	}
	data, err := os.ReadFile(target)
	if err != nil {
		t.Fatalf("read manifest: %v", err)
	}
	if bytes.Contains(data, []byte("tampered")) {
		t.Errorf("reinstall kept tampered manifest: %s", data)
	}
	if _, err := os.Stat(stray); !os.IsNotExist(err) {
		t.Errorf("stray file survived reinstall, stat err = %v", err)
	}

	manifests, err := DiscoverManifests(root)
	if err != nil {
		t.Fatalf("DiscoverManifests() error = %v", err)
	}
	if len(manifests) != 8 {
		names := make([]string, 0, len(manifests))
		for _, m := range manifests {
			names = append(names, m.Name)
		}
		t.Errorf("discovered %v, want the 8 bundled manifests", names)
	}
}

func TestInitRepoPreservesUserManifests(t *testing.T) {
	fakeAlpha.reset("alpha")
	tc := newTestContext(t, "test.alpha")
	writeTestManifest(t, tc.RepoRoot, "alpha", "test.alpha", "config", "test.alpha", "alpha")
	e := newTestEngine(t, tc)

	if _, err := e.InitRepo(context.Background()); err != nil {
		t.Fatalf("InitRepo() error = %v", err)
	}
	if _, err := os.Stat(paths.ManifestFile(tc.RepoRoot, "alpha")); err != nil {
		t.Errorf("user manifest removed by init: %v", err)
	}
}
