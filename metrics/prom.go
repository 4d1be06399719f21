package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// PromSink records prediction events in Prometheus metrics.
type PromSink struct {
	events  *prometheus.CounterVec
	latency *prometheus.HistogramVec
}

// NewPromSink registers prediction metrics on the provided Prometheus
// registerer. If reg is nil, the default registerer is used. If the
// collectors are already registered, the existing ones are reused.
func NewPromSink(reg prometheus.Registerer) (*PromSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	events := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "predictions_total",
		Help: "Total number of served predictions",
	}, []string{"engine", "path", "fallback"})
	latency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "prediction_duration_seconds",
		Help:    "Time spent serving one prediction",
		Buckets: prometheus.DefBuckets,
	}, []string{"engine", "path"})

	if err := reg.Register(events); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			events = are.ExistingCollector.(*prometheus.CounterVec)
		} else {
			return nil, err
		}
	}
	if err := reg.Register(latency); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			latency = are.ExistingCollector.(*prometheus.HistogramVec)
		} else {
			return nil, err
		}
	}

	return &PromSink{events: events, latency: latency}, nil
}

// RecordPrediction increments the counter and observes latency for the event.
func (s *PromSink) RecordPrediction(ev PredictionEvent) error {
	s.events.WithLabelValues(ev.Engine, ev.Path, strconv.FormatBool(ev.Fallback)).Inc()
	s.latency.WithLabelValues(ev.Engine, ev.Path).Observe(ev.Duration.Seconds())
	return nil
}
