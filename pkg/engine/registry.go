package engine

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// ConfigFactory builds a config provider instance.
type ConfigFactory func() ConfigProvider

// LogsFactory builds a logs provider instance.
type LogsFactory func() LogsProvider

var (
	registryMu      sync.RWMutex
	configFactories = make(map[string]ConfigFactory)
	logsFactories   = make(map[string]LogsFactory)
)

// Register makes a config provider factory available under the given
// entrypoint name. Provider packages call it from init; a manifest
// activates the factory by naming it. Register panics on duplicate or
// nil registrations, mirroring database/sql driver registration.
func Register(name string, factory ConfigFactory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if factory == nil {
		panic("engine: Register factory is nil")
	}
	if _, dup := configFactories[name]; dup {
		panic("engine: Register called twice for provider " + name)
	}
	configFactories[name] = factory
}

// RegisterLogs makes a logs provider factory available under the given
// entrypoint name.
func RegisterLogs(name string, factory LogsFactory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if factory == nil {
		panic("engine: RegisterLogs factory is nil")
	}
	if _, dup := logsFactories[name]; dup {
		panic("engine: RegisterLogs called twice for provider " + name)
	}
	logsFactories[name] = factory
}

// RegisteredProviders returns every registered factory name, sorted.
func RegisteredProviders() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(configFactories)+len(logsFactories))
	for name := range configFactories {
		names = append(names, name)
	}
	for name := range logsFactories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func lookupConfigFactory(name string) (ConfigFactory, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	f, ok := configFactories[name]
	return f, ok
}

func lookupLogsFactory(name string) (LogsFactory, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	f, ok := logsFactories[name]
	return f, ok
}

// ConfigHandle pairs a discovered manifest with its built provider.
type ConfigHandle struct {
	Manifest *Manifest
	Impl     ConfigProvider
}

// LogsHandle pairs a discovered manifest with its built logs provider.
type LogsHandle struct {
	Manifest *Manifest
	Impl     LogsProvider
}

// LoadConfigProviders discovers manifests, keeps enabled config
// providers, builds each through its registered factory, and drops
// providers whose Detect declines this system. Fragment ownership is
// validated before construction: two enabled config providers claiming
// the same fragment is a hard error.
func LoadConfigProviders(ctx context.Context, tc *TwinContext) ([]ConfigHandle, error) {
	manifests, err := DiscoverManifests(tc.RepoRoot)
	if err != nil {
		return nil, err
	}

	var selected []*Manifest
	for _, m := range manifests {
		if m.Kind != KindConfig {
			continue
		}
		if !tc.Config.Enabled(m.Name) {
			continue
		}
		selected = append(selected, m)
	}

	if err := validateFragmentOwnership(selected); err != nil {
		return nil, err
	}

	var handles []ConfigHandle
	for _, m := range selected {
		factory, ok := lookupConfigFactory(m.Entrypoint)
		if !ok {
			return nil, NewConstructionError(
				fmt.Sprintf("no registered factory for entrypoint %q", m.Entrypoint), nil).
				WithProvider(m.Name).WithOperation("construct").
				WithCode(ErrCodeProviderFailed)
		}
		impl := factory()
		if impl == nil {
			return nil, NewConstructionError("factory returned nil provider", nil).
				WithProvider(m.Name).WithOperation("construct").
				WithCode(ErrCodeProviderFailed)
		}
		if !available(ctx, impl, tc) {
			continue
		}
		handles = append(handles, ConfigHandle{Manifest: m, Impl: impl})
	}
	return handles, nil
}

// LoadLogsProviders mirrors LoadConfigProviders for logs providers.
func LoadLogsProviders(ctx context.Context, tc *TwinContext) ([]LogsHandle, error) {
	manifests, err := DiscoverManifests(tc.RepoRoot)
	if err != nil {
		return nil, err
	}

	var handles []LogsHandle
	for _, m := range manifests {
		if m.Kind != KindLogs {
			continue
		}
		if !tc.Config.Enabled(m.Name) {
			continue
		}
		factory, ok := lookupLogsFactory(m.Entrypoint)
		if !ok {
			return nil, NewConstructionError(
				fmt.Sprintf("no registered factory for entrypoint %q", m.Entrypoint), nil).
				WithProvider(m.Name).WithOperation("construct").
				WithCode(ErrCodeProviderFailed)
		}
		impl := factory()
		if impl == nil {
			return nil, NewConstructionError("factory returned nil provider", nil).
				WithProvider(m.Name).WithOperation("construct").
				WithCode(ErrCodeProviderFailed)
		}
		if !available(ctx, impl, tc) {
			continue
		}
		handles = append(handles, LogsHandle{Manifest: m, Impl: impl})
	}
	return handles, nil
}

// validateFragmentOwnership rejects repositories where two enabled
// config providers declare the same state fragment. Overlapping owners
// would race on the same live/ document with the loser's dump silently
// overwritten.
func validateFragmentOwnership(manifests []*Manifest) error {
	owners := make(map[string]string)
	for _, m := range manifests {
		for _, fragment := range m.Provides.StateFragments {
			if other, taken := owners[fragment]; taken {
				return NewValidationError(
					fmt.Sprintf("fragment %q claimed by both %s and %s", fragment, other, m.Name), nil).
					WithFragment(fragment).WithOperation("discover").
					WithCode(ErrCodeFragmentConflict)
			}
			owners[fragment] = m.Name
		}
	}
	return nil
}
