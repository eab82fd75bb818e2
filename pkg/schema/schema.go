// Package schema validates persisted fragment documents against CUE
// schemas. Validation is a best-effort side-check on top of the
// reconciliation workflow: the engine never consults schemas on its
// own, only the validate command does.
//
// Built-in schemas ship embedded in the binary, one per fragment, and
// are copied into <repo>/schema at init. A schema file in the
// repository overrides the built-in of the same name, so operators can
// tighten or relax validation per device.
package schema

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
)

//go:embed builtin/*.cue
var builtinFS embed.FS

// Registry holds compiled CUE schemas keyed by fragment name.
type Registry struct {
	ctx     *cue.Context
	schemas map[string]cue.Value
	mu      sync.RWMutex
}

// NewRegistry creates a registry preloaded with the built-in schemas.
func NewRegistry() (*Registry, error) {
	r := &Registry{
		ctx:     cuecontext.New(),
		schemas: make(map[string]cue.Value),
	}
	if err := r.loadBuiltins(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Registry) loadBuiltins() error {
	entries, err := fs.ReadDir(builtinFS, "builtin")
	if err != nil {
		return fmt.Errorf("failed to read built-in schemas: %w", err)
	}
	for _, entry := range entries {
		name := strings.TrimSuffix(entry.Name(), ".cue")
		data, err := builtinFS.ReadFile(filepath.Join("builtin", entry.Name()))
		if err != nil {
			return fmt.Errorf("failed to read built-in schema %s: %w", name, err)
		}
		if err := r.Register(name, string(data)); err != nil {
			return err
		}
	}
	return nil
}

// Register compiles a CUE schema source and stores it under name,
// replacing any previous schema of that name.
func (r *Registry) Register(name, source string) error {
	val := r.ctx.CompileString(source, cue.Filename(name+".cue"))
	if err := val.Err(); err != nil {
		return fmt.Errorf("failed to compile schema %s: %w", name, err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.schemas[name] = val
	return nil
}

// LoadDir registers every *.cue file found in dir, overriding built-in
// schemas of the same name. A missing directory is not an error.
func (r *Registry) LoadDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read schema directory %s: %w", dir, err)
	}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".cue") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return fmt.Errorf("failed to read schema %s: %w", entry.Name(), err)
		}
		name := strings.TrimSuffix(entry.Name(), ".cue")
		if err := r.Register(name, string(data)); err != nil {
			return err
		}
	}
	return nil
}

// Has reports whether a schema is registered for the fragment.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.schemas[name]
	return ok
}

// Names returns all registered schema names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.schemas))
	for name := range r.schemas {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Validate checks a wrapped fragment document against the schema
// registered under name. Data is unified with the schema; any field
// the schema requires but the document lacks, or any value outside the
// schema's constraints, fails validation.
func (r *Registry) Validate(name string, doc map[string]interface{}) error {
	r.mu.RLock()
	schemaVal, ok := r.schemas[name]
	r.mu.RUnlock()
	if !ok {
		return fmt.Errorf("no schema registered for fragment %s", name)
	}

	dataVal := r.ctx.Encode(doc)
	if err := dataVal.Err(); err != nil {
		return fmt.Errorf("failed to encode document: %w", err)
	}

	unified := schemaVal.Unify(dataVal)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	return nil
}

// Install writes the built-in schema files into destDir, overwriting
// existing copies. Called at repository init so operators can inspect
// and edit the schemas in place.
func Install(destDir string) error {
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return fmt.Errorf("failed to create schema directory: %w", err)
	}
	entries, err := fs.ReadDir(builtinFS, "builtin")
	if err != nil {
		return fmt.Errorf("failed to read built-in schemas: %w", err)
	}
	for _, entry := range entries {
		data, err := builtinFS.ReadFile(filepath.Join("builtin", entry.Name()))
		if err != nil {
			return fmt.Errorf("failed to read built-in schema %s: %w", entry.Name(), err)
		}
		if err := os.WriteFile(filepath.Join(destDir, entry.Name()), data, 0o644); err != nil {
			return fmt.Errorf("failed to write schema %s: %w", entry.Name(), err)
		}
	}
	return nil
}
