package chromemdb

import (
	"errors"
	"fmt"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

const (
	manifestFile   = "manifest.yaml"
	manifestSuffix = ".manifest.yaml"
)

// manifest records which documents have a completed build in each
// collection. chromem persists documents as they are added, so a count
// alone cannot tell a finished build from an interrupted one.
type manifest struct {
	Collections map[string][]string `yaml:"collections"`
}

func newManifest() *manifest {
	return &manifest{Collections: map[string][]string{}}
}

func loadManifest(path string) (*manifest, error) {
	m := newManifest()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return m, nil
		}
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}
	if err := yaml.Unmarshal(data, m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest %s: %w", path, err)
	}
	if m.Collections == nil {
		m.Collections = map[string][]string{}
	}
	return m, nil
}

func (m *manifest) save(path string) error {
	data, err := yaml.Marshal(m)
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	return os.Rename(tmp, path)
}

func (m *manifest) has(collection, docID string) bool {
	return slices.Contains(m.Collections[collection], docID)
}

func (m *manifest) add(collection, docID string) {
	if !m.has(collection, docID) {
		m.Collections[collection] = append(m.Collections[collection], docID)
	}
}

func (m *manifest) drop(collection string) {
	delete(m.Collections, collection)
}

func (m *manifest) merge(other *manifest) {
	for name, ids := range other.Collections {
		for _, id := range ids {
			m.add(name, id)
		}
	}
}
