package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/kilianp07/reimburse/core/pattern"
	"github.com/kilianp07/reimburse/core/tree"
)

// JSONStore persists artifacts as JSON documents on disk. Writes go through a
// temporary file and a rename so a concurrent reader never observes a partial
// document.
type JSONStore struct {
	patternsPath string
	treePath     string
}

// NewJSONStore creates a store writing the pattern set and tree model to the
// given paths.
func NewJSONStore(patternsPath, treePath string) *JSONStore {
	return &JSONStore{patternsPath: patternsPath, treePath: treePath}
}

// LoadPatterns reads the pattern set. A missing file yields ErrNotFound.
func (s *JSONStore) LoadPatterns() (*pattern.Set, error) {
	var set pattern.Set
	if err := readJSON(s.patternsPath, &set); err != nil {
		return nil, err
	}
	return &set, nil
}

// SavePatterns writes the pattern set atomically.
func (s *JSONStore) SavePatterns(set *pattern.Set) error {
	return writeJSON(s.patternsPath, set)
}

// LoadTree reads the tree model. A missing file yields ErrNotFound.
func (s *JSONStore) LoadTree() (*tree.Model, error) {
	var m tree.Model
	if err := readJSON(s.treePath, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// SaveTree writes the tree model atomically.
func (s *JSONStore) SaveTree(m *tree.Model) error {
	return writeJSON(s.treePath, m)
}

// Close implements Store; the JSON backend holds no resources.
func (s *JSONStore) Close() error { return nil }

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return fmt.Errorf("%s: %w", path, ErrNotFound)
	}
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

func writeJSON(path string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}
