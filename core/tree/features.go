package tree

import (
	"math"

	"github.com/kilianp07/reimburse/core/model"
)

// NumFeatures is the dimensionality of the engineered feature vector.
const NumFeatures = 12

// Features returns the engineered feature vector for a trip: the three raw
// inputs, per-day and per-dollar ratios, pairwise products and log
// transforms.
func Features(t model.Trip) []float64 {
	days := float64(t.Days)
	milesPerDay := t.Miles
	receiptsPerDay := t.Receipts
	if t.Days > 0 {
		milesPerDay = t.Miles / days
		receiptsPerDay = t.Receipts / days
	}
	milesPerDollar := 0.0
	if t.Receipts > 0 {
		milesPerDollar = t.Miles / t.Receipts
	}
	return []float64{
		days,
		t.Miles,
		t.Receipts,
		milesPerDay,
		receiptsPerDay,
		milesPerDollar,
		days * t.Miles,
		days * t.Receipts,
		t.Miles * t.Receipts,
		math.Log(days + 1),
		math.Log(t.Miles + 1),
		math.Log(t.Receipts + 1),
	}
}
