package store

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kilianp07/reimburse/core/model"
	"github.com/kilianp07/reimburse/core/pattern"
	"github.com/kilianp07/reimburse/core/tree"
)

func sampleSet() *pattern.Set {
	return pattern.Extract([]model.CaseRecord{
		{TripDays: 3, Miles: 120, Receipts: 80, Reimbursement: 509.2},
	})
}

func sampleModel() *tree.Model {
	return tree.Fit([][]float64{{0}, {1}}, []float64{10, 20})
}

func testStores(t *testing.T) map[string]Store {
	t.Helper()
	dir := t.TempDir()
	sq, err := NewSQLiteStore(filepath.Join(dir, "reimburse.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = sq.Close() })
	return map[string]Store{
		"json":   NewJSONStore(filepath.Join(dir, "patterns.json"), filepath.Join(dir, "tree.json")),
		"sqlite": sq,
	}
}

func TestLoadBeforeSaveIsNotFound(t *testing.T) {
	for name, st := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			_, err := st.LoadPatterns()
			require.ErrorIs(t, err, ErrNotFound)
			_, err = st.LoadTree()
			require.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestPatternsRoundTrip(t *testing.T) {
	for name, st := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, st.SavePatterns(sampleSet()))
			loaded, err := st.LoadPatterns()
			require.NoError(t, err)
			v, ok := loaded.Exact(model.Trip{Days: 3, Miles: 120, Receipts: 80})
			require.True(t, ok)
			require.Equal(t, 509.2, v)
		})
	}
}

func TestTreeRoundTrip(t *testing.T) {
	for name, st := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, st.SaveTree(sampleModel()))
			loaded, err := st.LoadTree()
			require.NoError(t, err)
			got, err := loaded.Predict([]float64{0.9})
			require.NoError(t, err)
			require.Equal(t, 20.0, got)
		})
	}
}

func TestSaveOverwrites(t *testing.T) {
	for name, st := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, st.SaveTree(sampleModel()))
			require.NoError(t, st.SaveTree(&tree.Model{Nodes: []tree.Node{{Leaf: true, Value: 7}}}))
			loaded, err := st.LoadTree()
			require.NoError(t, err)
			got, err := loaded.Predict([]float64{0})
			require.NoError(t, err)
			require.Equal(t, 7.0, got)
		})
	}
}
