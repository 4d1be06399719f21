package metrics

import (
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestPromSink_RecordPrediction(t *testing.T) {
	reg := prometheus.NewRegistry()
	sink, err := NewPromSink(reg)
	if err != nil {
		t.Fatalf("create sink: %v", err)
	}
	ev := PredictionEvent{
		Engine:   "pattern",
		Path:     "exact",
		Days:     3,
		Miles:    100,
		Receipts: 50,
		Amount:   497,
		Duration: 2 * time.Millisecond,
	}
	if err := sink.RecordPrediction(ev); err != nil {
		t.Fatalf("record error: %v", err)
	}
	expected := `
# HELP predictions_total Total number of served predictions
# TYPE predictions_total counter
predictions_total{engine="pattern",fallback="false",path="exact"} 1
`
	if err := testutil.CollectAndCompare(sink.events, strings.NewReader(expected)); err != nil {
		t.Errorf("unexpected counter state: %v", err)
	}
	if c := testutil.CollectAndCount(sink.latency); c == 0 {
		t.Errorf("expected latency histogram to be populated")
	}
}

func TestPromSink_DoubleRegister(t *testing.T) {
	reg := prometheus.NewRegistry()
	if _, err := NewPromSink(reg); err != nil {
		t.Fatalf("first register: %v", err)
	}
	if _, err := NewPromSink(reg); err != nil {
		t.Fatalf("second register should reuse collectors: %v", err)
	}
}
