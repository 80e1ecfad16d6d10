package pricing

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/evbill/core/history"
	"github.com/kilianp07/evbill/core/model"
	"github.com/kilianp07/evbill/core/pipeline"
	"github.com/kilianp07/evbill/core/prediction"
)

type memStore struct {
	recs []history.Record
	last history.Query
}

func (m *memStore) Append(_ context.Context, r history.Record) error {
	m.recs = append(m.recs, r)
	return nil
}

func (m *memStore) Query(_ context.Context, q history.Query) ([]history.Record, error) {
	m.last = q
	var res []history.Record
	for _, r := range m.recs {
		if q.Match(r) {
			res = append(res, r)
		}
	}
	return res, nil
}

func (m *memStore) Close() error { return nil }

type staticInfo struct{}

func (staticInfo) Info() pipeline.Info {
	return pipeline.Info{TrainingRows: 80, Trees: 100, Features: []string{model.ColumnEnergy}}
}

func (staticInfo) Report() pipeline.Report { return pipeline.Report{Rows: 20, MAE: 1.5} }

func formBody() url.Values {
	return url.Values{
		"energy":      {"30"},
		"duration":    {"2"},
		"rate":        {"7.2"},
		"temperature": {"18"},
		"charger":     {"Level 2"},
		"time":        {"Evening"},
		"user":        {"Commuter"},
	}
}

func postForm(h http.Handler, v url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/predict", strings.NewReader(v.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestFormHandler(t *testing.T) {
	h := Routes(&prediction.MockEngine{}, staticInfo{}, &memStore{})
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	body := rr.Body.String()
	for _, name := range []string{`name="energy"`, `name="duration"`, `name="rate"`, `name="temperature"`, `name="charger"`, `name="time"`, `name="user"`} {
		assert.Contains(t, body, name)
	}
	assert.Contains(t, body, "DC Fast Charger")
	assert.Contains(t, body, "Long-Distance Traveler")

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/missing", nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestPredictHandler_Success(t *testing.T) {
	engine := &prediction.MockEngine{Cost: 12.5}
	rr := postForm(NewPredictHandler(engine), formBody())
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "Estimated Charging Cost: $12.50")
	reqs := engine.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, "Level 2", reqs[0].ChargerType)
	assert.Equal(t, 18.0, reqs[0].TemperatureC)
	assert.Equal(t, prediction.SourceWeb, engine.Sources()[0])
}

func TestPredictHandler_InvalidNumber(t *testing.T) {
	engine := &prediction.MockEngine{Cost: 1}
	v := formBody()
	v.Set("energy", "abc")
	rr := postForm(NewPredictHandler(engine), v)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.True(t, strings.HasPrefix(rr.Body.String(), "Error: "), rr.Body.String())
	assert.Contains(t, rr.Body.String(), "energy_kwh")
	assert.Empty(t, engine.Requests())
}

func TestPredictHandler_MissingField(t *testing.T) {
	v := formBody()
	v.Del("temperature")
	rr := postForm(NewPredictHandler(&prediction.MockEngine{}), v)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "temperature_c")
}

func TestPredictHandler_EngineFailure(t *testing.T) {
	rr := postForm(NewPredictHandler(&prediction.MockEngine{Err: errors.New("boom")}), formBody())
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Equal(t, "Error: boom", rr.Body.String())
}

func TestPredictHandler_Method(t *testing.T) {
	rr := httptest.NewRecorder()
	NewPredictHandler(&prediction.MockEngine{}).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/predict", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}

func TestAPIPredictHandler(t *testing.T) {
	engine := &prediction.MockEngine{Cost: 7.25}
	h := NewAPIPredictHandler(engine)
	body := `{"energy_kwh":30,"duration_hours":2,"rate_kw":7.2,"charger_type":"DC Fast Charger","time_of_day":"Night","user_type":"Commuter","temperature_c":5}`
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/v1/predict", strings.NewReader(body)))
	require.Equal(t, http.StatusOK, rr.Code)
	var resp PredictResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, 7.25, resp.CostUSD)
	assert.Equal(t, "Estimated Charging Cost: $7.25", resp.Message)
	assert.Equal(t, "DC Fast Charger", resp.Request.ChargerType)
	assert.Equal(t, prediction.SourceAPI, engine.Sources()[0])

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/v1/predict", strings.NewReader(`{"energy_kwh":"abc"}`)))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "invalid input")

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/v1/predict", strings.NewReader(`{"voltage":3}`)))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestModelHandler(t *testing.T) {
	rr := httptest.NewRecorder()
	NewModelHandler(staticInfo{}).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/model", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	var m map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &m))
	assert.EqualValues(t, 100, m["trees"])
	assert.EqualValues(t, 80, m["training_rows"])
	heldOut, ok := m["held_out"].(map[string]any)
	require.True(t, ok)
	assert.EqualValues(t, 1.5, heldOut["mae"])
}

func TestHistoryHandler(t *testing.T) {
	store := &memStore{}
	base := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	_ = store.Append(context.Background(), history.Record{ID: "1", Timestamp: base, Source: "web", Request: model.Request{ChargerType: model.ChargerLevel1}})
	_ = store.Append(context.Background(), history.Record{ID: "2", Timestamp: base.Add(time.Hour), Source: "api", Request: model.Request{ChargerType: model.ChargerLevel2}})
	h := NewHistoryHandler(store)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/history?source=api", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	var recs []history.Record
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &recs))
	require.Len(t, recs, 1)
	assert.Equal(t, "2", recs[0].ID)
	assert.Equal(t, 100, store.last.Limit)

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/history?start=2024-05-01T08:30:00Z&limit=5", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, 5, store.last.Limit)
	assert.False(t, store.last.Start.IsZero())

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/history?charger_type=DC+Fast+Charger", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "[]\n", rr.Body.String())

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/history?start=yesterday", nil))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestServerStart(t *testing.T) {
	srv := NewServer("127.0.0.1:0", &prediction.MockEngine{Cost: 3}, staticInfo{}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Start(ctx) }()

	resp, err := http.Get("http://" + srv.Addr() + "/healthz")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
