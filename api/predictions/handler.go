// Package predictions exposes the prediction engines over HTTP for service
// deployments.
package predictions

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"github.com/kilianp07/reimburse/core/logger"
	"github.com/kilianp07/reimburse/core/model"
	"github.com/kilianp07/reimburse/core/predict"
	"github.com/kilianp07/reimburse/metrics"
)

// EventPublisher forwards served predictions to an external audit consumer.
type EventPublisher interface {
	PublishPrediction(ev metrics.PredictionEvent) error
}

type request struct {
	TripDays int     `json:"trip_days"`
	Miles    float64 `json:"miles"`
	Receipts float64 `json:"receipts"`
	Engine   string  `json:"engine,omitempty"`
}

type response struct {
	RequestID string  `json:"request_id"`
	Engine    string  `json:"engine"`
	Amount    float64 `json:"amount"`
}

// NewHandler returns an HTTP handler serving POST /api/predict. The engines
// map is keyed by engine name; defaultEngine selects the one used when the
// request names none. pub may be nil.
func NewHandler(engines map[string]predict.Engine, defaultEngine string, pub EventPublisher, log logger.Logger) http.Handler {
	if log == nil {
		log = logger.Nop{}
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		var req request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
		if req.TripDays < 1 || req.Miles < 0 || req.Receipts < 0 {
			http.Error(w, "trip_days must be >= 1, miles and receipts must be non-negative", http.StatusBadRequest)
			return
		}
		name := req.Engine
		if name == "" {
			name = defaultEngine
		}
		eng, ok := engines[name]
		if !ok {
			http.Error(w, "unknown engine "+name, http.StatusBadRequest)
			return
		}

		id := uuid.NewString()
		trip := model.Trip{Days: req.TripDays, Miles: req.Miles, Receipts: req.Receipts}
		amount := eng.Predict(trip)
		log.Debugw("prediction served", map[string]any{
			"request_id": id,
			"engine":     name,
			"trip_days":  trip.Days,
			"amount":     amount,
		})
		if pub != nil {
			if err := pub.PublishPrediction(metrics.PredictionEvent{
				Engine:   name,
				Days:     trip.Days,
				Miles:    trip.Miles,
				Receipts: trip.Receipts,
				Amount:   amount,
			}); err != nil {
				log.Warnf("publish prediction %s: %v", id, err)
			}
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(response{RequestID: id, Engine: name, Amount: model.Round2(amount)}); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
	})
}
