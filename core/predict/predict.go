// Package predict defines the prediction engine contract and the fixed
// linear baseline shared by all engines.
package predict

import "github.com/kilianp07/reimburse/core/model"

// Engine estimates a reimbursement amount for a trip. Implementations never
// fail: internal errors are masked by the baseline formula so a caller always
// receives a number.
type Engine interface {
	Predict(t model.Trip) float64
}

// Baseline coefficients. The multi-day base already excludes the per-day
// component, which is added per trip day.
const (
	oneDayBase       = 135
	oneDayPerMile    = 0.60
	oneDayPerReceipt = 0.39

	multiDayBase       = 281
	multiDayPerDay     = 51
	multiDayPerMile    = 0.36
	multiDayPerReceipt = 0.40
)

// Baseline computes the fixed-coefficient fallback formula. It has no learned
// state and always succeeds.
func Baseline(t model.Trip) float64 {
	if t.Days == 1 {
		return oneDayBase + oneDayPerMile*t.Miles + oneDayPerReceipt*t.Receipts
	}
	return multiDayBase + multiDayPerDay*float64(t.Days) + multiDayPerMile*t.Miles + multiDayPerReceipt*t.Receipts
}
