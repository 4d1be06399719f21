package model

import "math"

// CaseRecord is one labeled trip from the historical dataset. Records are
// immutable once loaded.
type CaseRecord struct {
	TripDays      int     `json:"trip_days"`
	Miles         float64 `json:"miles"`
	Receipts      float64 `json:"receipts"`
	Reimbursement float64 `json:"reimbursement"`
}

// Trip returns the input portion of the record.
func (r CaseRecord) Trip() Trip {
	return Trip{Days: r.TripDays, Miles: r.Miles, Receipts: r.Receipts}
}

// Trip is one prediction input.
type Trip struct {
	Days     int     `json:"trip_days"`
	Miles    float64 `json:"miles"`
	Receipts float64 `json:"receipts"`
}

// Round2 rounds v to two decimal places.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
