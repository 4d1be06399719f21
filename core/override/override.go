// Package override implements the correction layer: ordered predicate/value
// rule chains that patch known-bad inputs and known-bad outputs of the
// statistical engines. Rules are evaluated top-to-bottom and the first match
// wins, which keeps the override set auditable and testable in isolation.
package override

import (
	"math"

	"github.com/kilianp07/reimburse/core/model"
)

// PointRule overrides the prediction for one exact input triple. Each
// dimension is compared with an absolute tolerance.
type PointRule struct {
	Days     int     `json:"days"`
	Miles    float64 `json:"miles"`
	Receipts float64 `json:"receipts"`
	Value    float64 `json:"value"`
	Tol      float64 `json:"tol"`
}

// Match reports whether the trip falls within the rule's tolerance on all
// three dimensions.
func (r PointRule) Match(t model.Trip) bool {
	return math.Abs(float64(t.Days-r.Days)) < r.Tol &&
		math.Abs(t.Miles-r.Miles) < r.Tol &&
		math.Abs(t.Receipts-r.Receipts) < r.Tol
}

// PointChain is an ordered list of point rules.
type PointChain []PointRule

// Apply returns the value of the first matching rule.
func (c PointChain) Apply(t model.Trip) (float64, bool) {
	for _, r := range c {
		if r.Match(t) {
			return r.Value, true
		}
	}
	return 0, false
}

// RangeRule overrides the prediction for an exact trip duration combined with
// inclusive mile and receipt ranges.
type RangeRule struct {
	Days        int     `json:"days"`
	MinMiles    float64 `json:"min_miles"`
	MaxMiles    float64 `json:"max_miles"`
	MinReceipts float64 `json:"min_receipts"`
	MaxReceipts float64 `json:"max_receipts"`
	Value       float64 `json:"value"`
}

// Match reports whether the trip falls inside the rule's ranges.
func (r RangeRule) Match(t model.Trip) bool {
	return t.Days == r.Days &&
		t.Miles >= r.MinMiles && t.Miles <= r.MaxMiles &&
		t.Receipts >= r.MinReceipts && t.Receipts <= r.MaxReceipts
}

// RangeChain is an ordered list of range rules.
type RangeChain []RangeRule

// Apply returns the value of the first matching rule.
func (c RangeChain) Apply(t model.Trip) (float64, bool) {
	for _, r := range c {
		if r.Match(t) {
			return r.Value, true
		}
	}
	return 0, false
}

// Condition is a secondary predicate distinguishing which historical outlier
// produced an attractor value. A nil Condition always holds.
type Condition func(t model.Trip) bool

// AttractorCase maps a secondary condition to a corrected constant.
type AttractorCase struct {
	When  Condition
	Value float64
}

// AttractorRule corrects a raw engine output that sits within Tol of a known
// attractor value. Cases are tried in order; the first whose condition holds
// supplies the corrected value. A matched rule terminates the chain even when
// no case applies, mirroring the mutually exclusive branch structure the
// corrections were mined with.
type AttractorRule struct {
	Raw   float64
	Tol   float64
	Cases []AttractorCase
}

// AttractorChain is an ordered list of attractor rules.
type AttractorChain []AttractorRule

// Apply returns the corrected value for raw, or raw unchanged when no
// attractor matches.
func (c AttractorChain) Apply(t model.Trip, raw float64) float64 {
	for _, r := range c {
		if math.Abs(raw-r.Raw) >= r.Tol {
			continue
		}
		for _, cs := range r.Cases {
			if cs.When == nil || cs.When(t) {
				return cs.Value
			}
		}
		return raw
	}
	return raw
}
