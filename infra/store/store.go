// Package store persists the mined pattern set and the trained tree model so
// repeated invocations avoid recomputation. Two backends exist: flat JSON
// files and a single SQLite database, mirroring the configured deployment.
package store

import (
	"errors"

	"github.com/kilianp07/reimburse/core/pattern"
	"github.com/kilianp07/reimburse/core/tree"
)

// ErrNotFound indicates the requested artifact has not been persisted yet.
var ErrNotFound = errors.New("store: artifact not found")

// Store persists and retrieves both trained artifacts.
type Store interface {
	LoadPatterns() (*pattern.Set, error)
	SavePatterns(*pattern.Set) error
	LoadTree() (*tree.Model, error)
	SaveTree(*tree.Model) error
	Close() error
}
