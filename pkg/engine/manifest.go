package engine

import (
	"os"
	"sort"

	"github.com/go-playground/validator/v10"

	"github.com/twinsync/twinsync/pkg/paths"
	"github.com/twinsync/twinsync/pkg/yamlutil"
)

// Provider kinds accepted in plugin.yaml manifests.
const (
	KindConfig = "config"
	KindLogs   = "logs"
)

// Provides declares what a provider contributes to the repository.
type Provides struct {
	// StateFragments lists the fragment names a config provider owns.
	// Each becomes one document under state/ and live/.
	StateFragments []string `yaml:"state_fragments"`
}

// Manifest is a parsed plugin.yaml provider definition.
type Manifest struct {
	// Name is the provider name, e.g. "packages.debian". It is also the
	// key the enable list in config.yaml refers to.
	Name string `yaml:"name" validate:"required"`

	// Kind selects the provider contract: "config" or "logs".
	Kind string `yaml:"kind" validate:"required,oneof=config logs"`

	// Entrypoint names the registered factory that builds the provider.
	Entrypoint string `yaml:"entrypoint" validate:"required"`

	// Provides declares owned fragments. Required for config providers.
	Provides Provides `yaml:"provides"`

	// Dependencies lists provider names that should run first. Reserved;
	// discovery currently orders providers by directory name.
	Dependencies []string `yaml:"dependencies,omitempty"`

	// Description is a short human-readable summary.
	Description string `yaml:"description,omitempty"`

	// Dir is the manifest directory inside plugins/, set at load time.
	Dir string `yaml:"-"`
}

var manifestValidate = validator.New(validator.WithRequiredStructEnabled())

// LoadManifest reads and validates one plugin.yaml file.
func LoadManifest(path string) (*Manifest, error) {
	var m Manifest
	if err := yamlutil.LoadInto(path, &m); err != nil {
		return nil, NewValidationError("read provider manifest", err).
			WithOperation("discover").WithDetail("path", path)
	}
	if err := manifestValidate.Struct(&m); err != nil {
		return nil, NewValidationError("invalid provider manifest", err).
			WithOperation("discover").WithCode(ErrCodeValidation).
			WithDetail("path", path)
	}
	if m.Kind == KindConfig && len(m.Provides.StateFragments) == 0 {
		return nil, NewValidationError("config provider declares no state fragments", nil).
			WithProvider(m.Name).WithOperation("discover").WithCode(ErrCodeValidation)
	}
	return &m, nil
}

// DiscoverManifests scans <repo>/plugins for provider definitions. Each
// immediate subdirectory containing a plugin.yaml contributes one
// manifest. Directories are visited in name order so discovery is
// deterministic across runs.
func DiscoverManifests(repoRoot string) ([]*Manifest, error) {
	dir := paths.PluginsDir(repoRoot)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, NewValidationError("read plugins directory", err).
			WithOperation("discover").WithDetail("dir", dir)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)

	var manifests []*Manifest
	for _, name := range names {
		manifestPath := paths.ManifestFile(repoRoot, name)
		if _, err := os.Stat(manifestPath); err != nil {
			continue
		}
		m, err := LoadManifest(manifestPath)
		if err != nil {
			return nil, err
		}
		m.Dir = name
		manifests = append(manifests, m)
	}
	return manifests, nil
}
