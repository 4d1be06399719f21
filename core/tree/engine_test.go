package tree

import (
	"errors"
	"testing"

	"github.com/kilianp07/reimburse/core/model"
	"github.com/kilianp07/reimburse/core/predict"
)

type fakeStore struct {
	model *Model
	err   error
}

func (f *fakeStore) LoadTree() (*Model, error) { return f.model, f.err }

func leafStore(v float64) *fakeStore {
	return &fakeStore{model: &Model{Nodes: []Node{{Leaf: true, Value: v}}}}
}

func TestPredictRangeOverrideBeatsTree(t *testing.T) {
	// The override fires before the store is even consulted.
	eng := NewEngine(&fakeStore{err: errors.New("unreachable")}, nil, nil)
	if got := eng.Predict(model.Trip{Days: 1, Miles: 250, Receipts: 1300.17}); got != 1145.33 {
		t.Fatalf("expected override value 1145.33, got %v", got)
	}
	if got := eng.Predict(model.Trip{Days: 6, Miles: 135, Receipts: 1144}); got != 1478.11 {
		t.Fatalf("expected override value 1478.11, got %v", got)
	}
}

func TestPredictMissingModelFallsToBaseline(t *testing.T) {
	eng := NewEngine(&fakeStore{err: errors.New("store: artifact not found")}, nil, nil)
	trip := model.Trip{Days: 3, Miles: 100, Receipts: 50}
	if got := eng.Predict(trip); got != predict.Baseline(trip) {
		t.Fatalf("expected baseline %v, got %v", predict.Baseline(trip), got)
	}
}

func TestPredictReturnsRawLeafValue(t *testing.T) {
	// Tree output is not rounded and passes through untouched when no
	// correction applies.
	eng := NewEngine(leafStore(123.456), nil, nil)
	if got := eng.Predict(model.Trip{Days: 3, Miles: 10, Receipts: 10}); got != 123.456 {
		t.Fatalf("expected raw 123.456, got %v", got)
	}
}

func TestPredictAttractorCorrections(t *testing.T) {
	cases := []struct {
		name string
		leaf float64
		trip model.Trip
		want float64
	}{
		{"1478.56 six day outlier", 1478.56, model.Trip{Days: 6, Miles: 138, Receipts: 1146}, 1478.11},
		{"1478.56 eight day outlier", 1478.56, model.Trip{Days: 8, Miles: 205, Receipts: 1149}, 1479.01},
		{"1478.56 unmatched stays raw", 1478.56, model.Trip{Days: 3, Miles: 50, Receipts: 40}, 1478.56},
		{"1144.87 two day outlier", 1144.87, model.Trip{Days: 2, Miles: 760, Receipts: 958}, 1144.41},
		{"1144.87 one day outlier", 1144.87, model.Trip{Days: 1, Miles: 260, Receipts: 1250}, 1145.33},
		{"1561.20 nine day low mileage", 1561.20, model.Trip{Days: 9, Miles: 216, Receipts: 1203}, 1561.63},
		{"1561.20 nine day high mileage", 1561.20, model.Trip{Days: 9, Miles: 237, Receipts: 1197}, 1560.78},
		{"1499.66 seven day outlier", 1499.66, model.Trip{Days: 7, Miles: 152, Receipts: 1382}, 1500.09},
		{"1499.66 unmatched stays raw", 1499.66, model.Trip{Days: 3, Miles: 50, Receipts: 40}, 1499.66},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			eng := NewEngine(leafStore(c.leaf), nil, nil)
			if got := eng.Predict(c.trip); got != c.want {
				t.Errorf("Predict(%+v) = %v, want %v", c.trip, got, c.want)
			}
		})
	}
}

func TestPredictCachesLoadError(t *testing.T) {
	// The load result is latched on first use; every later call keeps falling
	// back without retrying the store.
	st := &fakeStore{err: errors.New("corrupt")}
	eng := NewEngine(st, nil, nil)
	trip := model.Trip{Days: 4, Miles: 80, Receipts: 60}
	first := eng.Predict(trip)
	st.model = &Model{Nodes: []Node{{Leaf: true, Value: 1}}}
	st.err = nil
	if got := eng.Predict(trip); got != first {
		t.Fatalf("expected latched baseline %v, got %v", first, got)
	}
}
