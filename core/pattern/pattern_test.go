package pattern

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kilianp07/reimburse/core/model"
)

func testRecords() []model.CaseRecord {
	return []model.CaseRecord{
		{TripDays: 1, Miles: 100, Receipts: 100, Reimbursement: 234},
		{TripDays: 3, Miles: 120, Receipts: 80, Reimbursement: 509.2},
		{TripDays: 5, Miles: 10, Receipts: 5000, Reimbursement: 555},
	}
}

func TestExtractExactMatch(t *testing.T) {
	set := Extract(testRecords())
	v, ok := set.Exact(model.Trip{Days: 3, Miles: 120, Receipts: 80})
	if !ok || v != 509.2 {
		t.Fatalf("expected exact match 509.2, got %v (ok=%v)", v, ok)
	}
	if _, ok := set.Exact(model.Trip{Days: 3, Miles: 120.01, Receipts: 80}); ok {
		t.Error("expected no exact match for different rounded key")
	}
}

func TestExtractLaterRecordOverwritesExact(t *testing.T) {
	records := []model.CaseRecord{
		{TripDays: 2, Miles: 50, Receipts: 20, Reimbursement: 400},
		{TripDays: 2, Miles: 50.001, Receipts: 20, Reimbursement: 450},
	}
	set := Extract(records)
	v, ok := set.Exact(model.Trip{Days: 2, Miles: 50, Receipts: 20})
	if !ok || v != 450 {
		t.Fatalf("later record must overwrite rounded key, got %v", v)
	}
}

func TestExtractOneDayFormulaFromLinearData(t *testing.T) {
	// A perfectly linear one-day record recovers the priors exactly.
	set := Extract([]model.CaseRecord{
		{TripDays: 1, Miles: 100, Receipts: 100, Reimbursement: 135 + 0.60*100 + 0.39*100},
	})
	f, ok := set.Formula(1)
	require.True(t, ok)
	require.Equal(t, Formula{Base: 135, PerMile: 0.60, PerReceipt: 0.39}, f)
}

func TestExtractMultiDayFormulaKeepsPerDayPinned(t *testing.T) {
	set := Extract([]model.CaseRecord{
		{TripDays: 4, Miles: 200, Receipts: 300, Reimbursement: 281 + 51*4 + 0.36*200 + 0.40*300},
	})
	f, ok := set.Formula(4)
	require.True(t, ok)
	require.Equal(t, 51.0, f.PerDay)
	require.Equal(t, 281.0, f.Base)
}

func TestExtractSkipsZeroInputRecords(t *testing.T) {
	// Records without both positive miles and receipts do not contribute
	// coefficient estimates.
	set := Extract([]model.CaseRecord{
		{TripDays: 6, Miles: 0, Receipts: 100, Reimbursement: 700},
		{TripDays: 6, Miles: 100, Receipts: 0, Reimbursement: 700},
	})
	if _, ok := set.Formula(6); ok {
		t.Error("expected no formula for duration with only zero-input records")
	}
}

func TestExtractNoFormulaOutsideRange(t *testing.T) {
	set := Extract([]model.CaseRecord{
		{TripDays: 20, Miles: 100, Receipts: 100, Reimbursement: 2000},
	})
	if _, ok := set.Formula(20); ok {
		t.Error("durations above 14 never receive a fitted formula")
	}
}

func TestNearestWeightsReceiptsMoreHeavily(t *testing.T) {
	set := Extract([]model.CaseRecord{
		{TripDays: 5, Miles: 100, Receipts: 200, Reimbursement: 777},
	})
	v, ok := set.Nearest(model.Trip{Days: 5, Miles: 101, Receipts: 201})
	if !ok || v != 777 {
		t.Fatalf("expected nearest match 777, got %v (ok=%v)", v, ok)
	}
	// Far away on both dimensions: no match below the threshold.
	if _, ok := set.Nearest(model.Trip{Days: 5, Miles: 500, Receipts: 900}); ok {
		t.Error("expected no nearest match for distant query")
	}
	if _, ok := set.Nearest(model.Trip{Days: 9, Miles: 100, Receipts: 200}); ok {
		t.Error("expected no nearest match for unknown duration")
	}
}

func TestReceiptBucketMatch(t *testing.T) {
	set := Extract([]model.CaseRecord{
		{TripDays: 5, Miles: 1000, Receipts: 250, Reimbursement: 555},
	})
	// Same receipt bucket (200), mileage within threshold.
	v, ok := set.ReceiptBucket(model.Trip{Days: 5, Miles: 1005, Receipts: 299})
	if !ok || v != 555 {
		t.Fatalf("expected receipt-bucket match 555, got %v (ok=%v)", v, ok)
	}
	// Different bucket misses.
	if _, ok := set.ReceiptBucket(model.Trip{Days: 5, Miles: 1005, Receipts: 301}); ok {
		t.Error("expected no match outside the receipt bucket")
	}
}

func TestMileBucketMatch(t *testing.T) {
	set := Extract([]model.CaseRecord{
		{TripDays: 5, Miles: 10, Receipts: 5000, Reimbursement: 555},
	})
	// Same mile bucket (0), receipts within threshold, but mileage too far
	// for the nearest and receipt-bucket paths.
	v, ok := set.MileBucket(model.Trip{Days: 5, Miles: 40, Receipts: 5010})
	if !ok || v != 555 {
		t.Fatalf("expected mile-bucket match 555, got %v (ok=%v)", v, ok)
	}
}

func TestCensusOrdering(t *testing.T) {
	set := Extract([]model.CaseRecord{
		{TripDays: 1, Miles: 1, Receipts: 1, Reimbursement: 100},
		{TripDays: 2, Miles: 2, Receipts: 2, Reimbursement: 200},
		{TripDays: 3, Miles: 3, Receipts: 3, Reimbursement: 200},
	})
	census := set.Census()
	require.Len(t, census, 2)
	require.Equal(t, ValueCount{Value: 200, Count: 2}, census[0])
	require.Equal(t, ValueCount{Value: 100, Count: 1}, census[1])
}

func TestSnapshotRoundTrip(t *testing.T) {
	set := Extract(testRecords())
	data, err := json.Marshal(set)
	require.NoError(t, err)

	var loaded Set
	require.NoError(t, json.Unmarshal(data, &loaded))

	if v, ok := loaded.Exact(model.Trip{Days: 1, Miles: 100, Receipts: 100}); !ok || v != 234 {
		t.Fatalf("exact table lost in round trip: %v (ok=%v)", v, ok)
	}
	f, ok := loaded.Formula(1)
	require.True(t, ok)
	orig, _ := set.Formula(1)
	require.Equal(t, orig, f)

	// A second marshal of the loaded set is byte-identical.
	again, err := json.Marshal(&loaded)
	require.NoError(t, err)
	require.Equal(t, data, again)
}

func TestRebuildDeterminism(t *testing.T) {
	a, err := json.Marshal(Extract(testRecords()))
	require.NoError(t, err)
	b, err := json.Marshal(Extract(testRecords()))
	require.NoError(t, err)
	require.Equal(t, a, b)
}
