// Package yamlutil provides round-trip safe loading and saving of the YAML
// documents the engine persists under state/, live/, plan/ and logs/.
//
// A missing file is not an error: every caller in the engine treats an
// absent document as an empty mapping, so Load returns one.
package yamlutil

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Load reads a YAML document from path into a generic mapping.
// A missing or empty file yields an empty, non-nil mapping.
func Load(path string) (map[string]interface{}, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]interface{}{}, nil
		}
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	doc := map[string]interface{}{}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if doc == nil {
		doc = map[string]interface{}{}
	}
	return doc, nil
}

// LoadInto reads a YAML document from path into out.
// Unlike Load, a missing file is an error here; callers use it for
// documents that must exist (manifests, typed config after creation).
func LoadInto(path string, out interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return nil
}

// Dump serializes data as YAML and writes it to path, creating parent
// directories as needed. Map keys are emitted in sorted order, so dumping
// the same in-memory document twice produces byte-identical files.
func Dump(path string, data interface{}) error {
	out, err := yaml.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal document for %s: %w", path, err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", path, err)
	}
	if err := os.WriteFile(path, out, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// Marshal returns the canonical YAML encoding used by Dump without
// touching the filesystem.
func Marshal(data interface{}) ([]byte, error) {
	return yaml.Marshal(data)
}

// Unmarshal parses YAML bytes into out.
func Unmarshal(data []byte, out interface{}) error {
	return yaml.Unmarshal(data, out)
}
