// Package tree implements the recursive variance-minimizing binary regression
// tree trained over engineered trip features. Nodes live in an arena indexed
// by position: each node is either a leaf holding a scalar mean or a split
// holding a feature index, a threshold and two child indices.
package tree

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// MaxDepth bounds the recursion during training.
const MaxDepth = 15

// minTargetSpan is the target spread below which a partition becomes a leaf.
const minTargetSpan = 1.0

// Node is one arena slot. Leaf nodes carry Value; split nodes carry Feature,
// Threshold and the arena indices of both children.
type Node struct {
	Leaf      bool    `json:"leaf"`
	Value     float64 `json:"value,omitempty"`
	Feature   int     `json:"feature,omitempty"`
	Threshold float64 `json:"threshold,omitempty"`
	Left      int     `json:"left,omitempty"`
	Right     int     `json:"right,omitempty"`
}

// Model is a trained regression tree. Index 0 is the root. A Model is
// read-only after training.
type Model struct {
	Nodes []Node `json:"nodes"`
}

// ErrEmptyModel indicates a model with no nodes.
var ErrEmptyModel = errors.New("tree: empty model")

// Fit trains a tree on the given feature matrix and targets. Training is
// deterministic: ties between candidate splits resolve to the first
// encountered in feature-then-threshold order.
func Fit(features [][]float64, targets []float64) *Model {
	m := &Model{}
	rows := make([]int, len(features))
	for i := range rows {
		rows[i] = i
	}
	m.build(features, targets, rows, 0)
	return m
}

// build grows the subtree for the given partition and returns its arena
// index.
func (m *Model) build(features [][]float64, targets []float64, rows []int, depth int) int {
	y := make([]float64, len(rows))
	for i, r := range rows {
		y[i] = targets[r]
	}

	if len(rows) <= 1 || depth >= MaxDepth {
		return m.leaf(y)
	}
	if floats.Max(y)-floats.Min(y) < minTargetSpan {
		return m.leaf(y)
	}

	feature, threshold, ok := bestSplit(features, rows, y)
	if !ok {
		return m.leaf(y)
	}

	var left, right []int
	for _, r := range rows {
		if features[r][feature] <= threshold {
			left = append(left, r)
		} else {
			right = append(right, r)
		}
	}

	// Reserve the parent slot before recursing so children land after it.
	idx := len(m.Nodes)
	m.Nodes = append(m.Nodes, Node{})
	l := m.build(features, targets, left, depth+1)
	r := m.build(features, targets, right, depth+1)
	m.Nodes[idx] = Node{Feature: feature, Threshold: threshold, Left: l, Right: r}
	return idx
}

func (m *Model) leaf(y []float64) int {
	v := 0.0
	if len(y) > 0 {
		v = stat.Mean(y, nil)
	}
	idx := len(m.Nodes)
	m.Nodes = append(m.Nodes, Node{Leaf: true, Value: v})
	return idx
}

// bestSplit scans every feature and every midpoint between consecutive
// distinct sorted values, scoring candidates by size-weighted population
// variance of the two sides.
func bestSplit(features [][]float64, rows []int, y []float64) (int, float64, bool) {
	n := float64(len(rows))
	bestScore := math.Inf(1)
	bestFeature, bestThreshold := -1, 0.0

	numFeatures := len(features[rows[0]])
	for f := 0; f < numFeatures; f++ {
		uniq := uniqueSorted(features, rows, f)
		for i := 0; i+1 < len(uniq); i++ {
			threshold := (uniq[i] + uniq[i+1]) / 2
			var left, right []float64
			for j, r := range rows {
				if features[r][f] <= threshold {
					left = append(left, y[j])
				} else {
					right = append(right, y[j])
				}
			}
			if len(left) == 0 || len(right) == 0 {
				continue
			}
			score := (float64(len(left))*popVariance(left) + float64(len(right))*popVariance(right)) / n
			if score < bestScore {
				bestScore = score
				bestFeature = f
				bestThreshold = threshold
			}
		}
	}
	if bestFeature < 0 {
		return 0, 0, false
	}
	return bestFeature, bestThreshold, true
}

func uniqueSorted(features [][]float64, rows []int, f int) []float64 {
	vals := make([]float64, 0, len(rows))
	for _, r := range rows {
		vals = append(vals, features[r][f])
	}
	sort.Float64s(vals)
	uniq := vals[:0]
	for i, v := range vals {
		if i == 0 || v != uniq[len(uniq)-1] {
			uniq = append(uniq, v)
		}
	}
	return uniq
}

// popVariance is the population variance about the subset mean, zero for
// subsets of size one or less.
func popVariance(y []float64) float64 {
	if len(y) <= 1 {
		return 0
	}
	return stat.PopVariance(y, nil)
}

// Predict descends from the root to a leaf and returns its value.
func (m *Model) Predict(fv []float64) (float64, error) {
	if len(m.Nodes) == 0 {
		return 0, ErrEmptyModel
	}
	idx := 0
	for {
		if idx < 0 || idx >= len(m.Nodes) {
			return 0, fmt.Errorf("tree: node index %d out of range", idx)
		}
		node := m.Nodes[idx]
		if node.Leaf {
			return node.Value, nil
		}
		if node.Feature < 0 || node.Feature >= len(fv) {
			return 0, fmt.Errorf("tree: feature index %d out of range", node.Feature)
		}
		if fv[node.Feature] <= node.Threshold {
			idx = node.Left
		} else {
			idx = node.Right
		}
	}
}
