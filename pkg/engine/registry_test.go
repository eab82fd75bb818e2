package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/twinsync/twinsync/pkg/paths"
	"github.com/twinsync/twinsync/pkg/yamlutil"
)

func TestLoadManifestValidation(t *testing.T) {
	tests := []struct {
		name     string
		manifest map[string]interface{}
		wantErr  bool
	}{
		{
			name: "valid config manifest",
			manifest: map[string]interface{}{
				"name":       "test.valid",
				"kind":       "config",
				"entrypoint": "test.valid",
				"provides":   map[string]interface{}{"state_fragments": []interface{}{"valid"}},
			},
		},
		{
			name: "valid logs manifest without fragments",
			manifest: map[string]interface{}{
				"name":       "test.logsrc",
				"kind":       "logs",
				"entrypoint": "test.logsrc",
			},
		},
		{
			name: "missing name",
			manifest: map[string]interface{}{
				"kind":       "config",
				"entrypoint": "test.x",
				"provides":   map[string]interface{}{"state_fragments": []interface{}{"x"}},
			},
			wantErr: true,
		},
		{
			name: "unknown kind",
			manifest: map[string]interface{}{
				"name":       "test.x",
				"kind":       "daemon",
				"entrypoint": "test.x",
			},
			wantErr: true,
		},
		{
			name: "missing entrypoint",
			manifest: map[string]interface{}{
				"name": "test.x",
				"kind": "logs",
			},
			wantErr: true,
		},
		{
			name: "config manifest without fragments",
			manifest: map[string]interface{}{
				"name":       "test.x",
				"kind":       "config",
				"entrypoint": "test.x",
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tc := newTestContext(t, "unused")
			path := paths.ManifestFile(tc.RepoRoot, "probe")
			if err := yamlutil.Dump(path, tt.manifest); err != nil {
				t.Fatalf("write manifest: %v", err)
			}
			_, err := LoadManifest(path)
			if (err != nil) != tt.wantErr {
				t.Errorf("LoadManifest() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !IsValidation(err) {
				t.Errorf("LoadManifest() error class = %v, want validation", err)
			}
		})
	}
}

func TestDiscoverManifestsOrder(t *testing.T) {
	tc := newTestContext(t, "unused")
	writeTestManifest(t, tc.RepoRoot, "zeta", "test.zeta", "logs", "test.loga")
	writeTestManifest(t, tc.RepoRoot, "alpha", "test.alpha", "config", "test.alpha", "alpha")
	writeTestManifest(t, tc.RepoRoot, "mid", "test.mid", "config", "test.beta", "mid")

	manifests, err := DiscoverManifests(tc.RepoRoot)
	if err != nil {
		t.Fatalf("DiscoverManifests() error = %v", err)
	}
	got := make([]string, 0, len(manifests))
	for _, m := range manifests {
		got = append(got, m.Dir)
	}
	want := []string{"alpha", "mid", "zeta"}
	if len(got) != len(want) {
		t.Fatalf("DiscoverManifests() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("manifest[%d] = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestDiscoverManifestsMissingDir(t *testing.T) {
	tc := &TwinContext{RepoRoot: t.TempDir()}
	manifests, err := DiscoverManifests(tc.RepoRoot)
	if err != nil {
		t.Fatalf("DiscoverManifests() error = %v", err)
	}
	if len(manifests) != 0 {
		t.Errorf("DiscoverManifests() = %d manifests, want 0", len(manifests))
	}
}

func TestLoadConfigProvidersFilters(t *testing.T) {
	fakeAlpha.reset("alpha")
	fakeBeta.reset("beta")

	tc := newTestContext(t, "test.alpha")
	writeTestManifest(t, tc.RepoRoot, "alpha", "test.alpha", "config", "test.alpha", "alpha")
	writeTestManifest(t, tc.RepoRoot, "beta", "test.beta", "config", "test.beta", "beta")

	handles, err := LoadConfigProviders(context.Background(), tc)
	if err != nil {
		t.Fatalf("LoadConfigProviders() error = %v", err)
	}
	if len(handles) != 1 {
		t.Fatalf("LoadConfigProviders() = %d handles, want 1", len(handles))
	}
	if handles[0].Manifest.Name != "test.alpha" {
		t.Errorf("handle name = %s, want test.alpha", handles[0].Manifest.Name)
	}
}

func TestLoadConfigProvidersDetectFilter(t *testing.T) {
	fakeAlpha.reset("alpha")
	fakeAlpha.detectOK = false

	tc := newTestContext(t, "test.alpha")
	writeTestManifest(t, tc.RepoRoot, "alpha", "test.alpha", "config", "test.alpha", "alpha")

	handles, err := LoadConfigProviders(context.Background(), tc)
	if err != nil {
		t.Fatalf("LoadConfigProviders() error = %v", err)
	}
	if len(handles) != 0 {
		t.Errorf("LoadConfigProviders() = %d handles, want 0 after detect declined", len(handles))
	}
}

func TestLoadConfigProvidersUnregisteredEntrypoint(t *testing.T) {
	tc := newTestContext(t, "test.ghost")
	writeTestManifest(t, tc.RepoRoot, "ghost", "test.ghost", "config", "test.nosuch", "ghost")

	_, err := LoadConfigProviders(context.Background(), tc)
	if err == nil {
		t.Fatal("LoadConfigProviders() error = nil, want construction error")
	}
	if !IsConstruction(err) {
		t.Errorf("error class = %v, want construction", err)
	}
	var ee *EngineError
	if !errors.As(err, &ee) || ee.Provider != "test.ghost" {
		t.Errorf("error provider = %v, want test.ghost", err)
	}
}

func TestFragmentOwnershipCollision(t *testing.T) {
	fakeAlpha.reset("shared")
	fakeBeta.reset("shared")

	tc := newTestContext(t, "test.alpha", "test.beta")
	writeTestManifest(t, tc.RepoRoot, "alpha", "test.alpha", "config", "test.alpha", "shared")
	writeTestManifest(t, tc.RepoRoot, "beta", "test.beta", "config", "test.beta", "shared")

	_, err := LoadConfigProviders(context.Background(), tc)
	if err == nil {
		t.Fatal("LoadConfigProviders() error = nil, want fragment conflict")
	}
	var ee *EngineError
	if !errors.As(err, &ee) || ee.Code != ErrCodeFragmentConflict {
		t.Errorf("error = %v, want code %s", err, ErrCodeFragmentConflict)
	}
}

func TestRegisteredProvidersSorted(t *testing.T) {
	names := RegisteredProviders()
	for i := 1; i < len(names); i++ {
		if names[i-1] > names[i] {
			t.Fatalf("RegisteredProviders() not sorted: %v", names)
		}
	}
}
