package metrics

import "time"

// PredictionEvent represents one served prediction to be recorded.
type PredictionEvent struct {
	Engine   string
	Path     string
	Days     int
	Miles    float64
	Receipts float64
	Amount   float64
	Fallback bool
	Duration time.Duration
}

// Sink records prediction events for observability purposes.
type Sink interface {
	RecordPrediction(ev PredictionEvent) error
}

// NopSink implements Sink with no-op methods.
type NopSink struct{}

func (NopSink) RecordPrediction(PredictionEvent) error { return nil }

// Config holds the metrics sink settings.
type Config struct {
	PrometheusEnabled bool   `json:"prometheus_enabled"`
	PrometheusAddr    string `json:"prometheus_addr"`
	InfluxEnabled     bool   `json:"influx_enabled"`
	InfluxURL         string `json:"influx_url"`
	InfluxToken       string `json:"influx_token"`
	InfluxOrg         string `json:"influx_org"`
	InfluxBucket      string `json:"influx_bucket"`
}

// SetDefaults applies sane defaults.
func (c *Config) SetDefaults() {
	if c.PrometheusAddr == "" {
		c.PrometheusAddr = ":9090"
	}
}
