package predictions

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kilianp07/reimburse/core/model"
	"github.com/kilianp07/reimburse/core/predict"
	"github.com/kilianp07/reimburse/metrics"
)

type stubEngine struct {
	amount float64
	last   model.Trip
}

func (s *stubEngine) Predict(t model.Trip) float64 {
	s.last = t
	return s.amount
}

type capturePublisher struct {
	events []metrics.PredictionEvent
}

func (c *capturePublisher) PublishPrediction(ev metrics.PredictionEvent) error {
	c.events = append(c.events, ev)
	return nil
}

func doRequest(h http.Handler, method, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, "/api/predict", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHandlerServesDefaultEngine(t *testing.T) {
	eng := &stubEngine{amount: 1234.567}
	h := NewHandler(map[string]predict.Engine{"pattern": eng}, "pattern", nil, nil)

	rec := doRequest(h, http.MethodPost, `{"trip_days":3,"miles":100,"receipts":50}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "pattern", resp.Engine)
	require.Equal(t, 1234.57, resp.Amount)
	require.NotEmpty(t, resp.RequestID)
	require.Equal(t, model.Trip{Days: 3, Miles: 100, Receipts: 50}, eng.last)
}

func TestHandlerSelectsNamedEngine(t *testing.T) {
	patternEng := &stubEngine{amount: 1}
	treeEng := &stubEngine{amount: 2}
	h := NewHandler(map[string]predict.Engine{"pattern": patternEng, "tree": treeEng}, "pattern", nil, nil)

	rec := doRequest(h, http.MethodPost, `{"trip_days":1,"miles":0,"receipts":0,"engine":"tree"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "tree", resp.Engine)
	require.Equal(t, 2.0, resp.Amount)
}

func TestHandlerRejectsBadInput(t *testing.T) {
	h := NewHandler(map[string]predict.Engine{"pattern": &stubEngine{}}, "pattern", nil, nil)
	cases := []struct {
		name   string
		method string
		body   string
		code   int
	}{
		{"wrong method", http.MethodGet, "", http.StatusMethodNotAllowed},
		{"malformed body", http.MethodPost, "{", http.StatusBadRequest},
		{"zero days", http.MethodPost, `{"trip_days":0,"miles":1,"receipts":1}`, http.StatusBadRequest},
		{"negative miles", http.MethodPost, `{"trip_days":1,"miles":-1,"receipts":1}`, http.StatusBadRequest},
		{"negative receipts", http.MethodPost, `{"trip_days":1,"miles":1,"receipts":-1}`, http.StatusBadRequest},
		{"unknown engine", http.MethodPost, `{"trip_days":1,"miles":1,"receipts":1,"engine":"oracle"}`, http.StatusBadRequest},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			rec := doRequest(h, c.method, c.body)
			require.Equal(t, c.code, rec.Code)
		})
	}
}

func TestHandlerPublishesEvent(t *testing.T) {
	pub := &capturePublisher{}
	h := NewHandler(map[string]predict.Engine{"pattern": &stubEngine{amount: 490}}, "pattern", pub, nil)

	rec := doRequest(h, http.MethodPost, `{"trip_days":3,"miles":100,"receipts":50}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, pub.events, 1)
	require.Equal(t, "pattern", pub.events[0].Engine)
	require.Equal(t, 490.0, pub.events[0].Amount)
	require.Equal(t, 3, pub.events[0].Days)
}
