// Package dataset loads the historical labeled records consumed during store
// construction.
package dataset

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/kilianp07/reimburse/core/model"
)

// Case mirrors one entry of the historical dataset file.
type Case struct {
	Input struct {
		TripDurationDays    int     `json:"trip_duration_days"`
		MilesTraveled       float64 `json:"miles_traveled"`
		TotalReceiptsAmount float64 `json:"total_receipts_amount"`
	} `json:"input"`
	ExpectedOutput float64 `json:"expected_output"`
}

// Load reads the dataset file and converts it to case records, preserving
// file order.
func Load(path string) ([]model.CaseRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read dataset: %w", err)
	}
	var cases []Case
	if err := json.Unmarshal(data, &cases); err != nil {
		return nil, fmt.Errorf("parse dataset: %w", err)
	}
	records := make([]model.CaseRecord, len(cases))
	for i, c := range cases {
		records[i] = model.CaseRecord{
			TripDays:      c.Input.TripDurationDays,
			Miles:         c.Input.MilesTraveled,
			Receipts:      c.Input.TotalReceiptsAmount,
			Reimbursement: c.ExpectedOutput,
		}
	}
	return records, nil
}

// Source returns a loader bound to path, suitable for lazy store rebuilds.
func Source(path string) func() ([]model.CaseRecord, error) {
	return func() ([]model.CaseRecord, error) { return Load(path) }
}
