package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/kilianp07/reimburse/core/pattern"
	"github.com/kilianp07/reimburse/core/tree"
)

// SQLiteStore persists both artifacts in a single SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens or creates the database at path and ensures schema.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	schema := `CREATE TABLE IF NOT EXISTS artifacts (
        name TEXT PRIMARY KEY,
        data TEXT NOT NULL
    );`
	if _, err := db.Exec(schema); err != nil {
		if cerr := db.Close(); cerr != nil {
			return nil, fmt.Errorf("close db: %v (schema err: %w)", cerr, err)
		}
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

const (
	artifactPatterns = "patterns"
	artifactTree     = "tree"
)

// LoadPatterns reads the pattern set artifact. A missing row yields
// ErrNotFound.
func (s *SQLiteStore) LoadPatterns() (*pattern.Set, error) {
	var set pattern.Set
	if err := s.load(artifactPatterns, &set); err != nil {
		return nil, err
	}
	return &set, nil
}

// SavePatterns upserts the pattern set artifact.
func (s *SQLiteStore) SavePatterns(set *pattern.Set) error {
	return s.save(artifactPatterns, set)
}

// LoadTree reads the tree model artifact. A missing row yields ErrNotFound.
func (s *SQLiteStore) LoadTree() (*tree.Model, error) {
	var m tree.Model
	if err := s.load(artifactTree, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// SaveTree upserts the tree model artifact.
func (s *SQLiteStore) SaveTree(m *tree.Model) error {
	return s.save(artifactTree, m)
}

// Close releases the database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) load(name string, v any) error {
	var data string
	err := s.db.QueryRow(`SELECT data FROM artifacts WHERE name = ?`, name).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", name, ErrNotFound)
	}
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(data), v); err != nil {
		return fmt.Errorf("decode %s: %w", name, err)
	}
	return nil
}

func (s *SQLiteStore) save(name string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(
		`INSERT INTO artifacts (name, data) VALUES (?, ?)
         ON CONFLICT(name) DO UPDATE SET data = excluded.data`,
		name, string(data))
	return err
}
