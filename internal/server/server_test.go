package server

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"valuation/internal/cache"
	"valuation/internal/config"
	"valuation/internal/types"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func fixture() (types.Record, []types.Record) {
	target := types.Record{Identifier: "T", Latitude: 0, Longitude: 0, TotalArea: 1000, Price: 100000, UnitPrice: 100}
	return target, []types.Record{
		{Identifier: "A", Latitude: 0, Longitude: 1, TotalArea: 1100, UnitPrice: 120},
		{Identifier: "B", Latitude: 1, Longitude: 0, TotalArea: 900, UnitPrice: 80},
		{Identifier: "C", Latitude: 0, Longitude: -1, TotalArea: 1050, UnitPrice: 100},
	}
}

func newTestServer(t *testing.T, withDataset bool) *Server {
	t.Helper()
	store, err := cache.Open(t.TempDir() + "/cache.db")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	var ds *Dataset
	if withDataset {
		target, records := fixture()
		ds = &Dataset{Target: target, Records: records}
	}
	defaults := config.Evaluation{MaxDistanceKm: 200, AreaToleranceM2: 1000, Power: 2}
	return New(cache.NewEvaluator(store, quietLogger()), defaults, ds, quietLogger())
}

func do(t *testing.T, s *Server, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = bytes.NewBufferString(body)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return w, out
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, true)
	w, body := do(t, s, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, float64(3), body["records"])
}

func TestComparables(t *testing.T) {
	s := newTestServer(t, false)
	body := `{
		"target": {"identifier": "T", "latitude": 0, "longitude": 0, "total_area": 1000},
		"records": [
			{"identifier": "A", "latitude": 0, "longitude": 1, "total_area": 1100, "unit_price": 120},
			{"identifier": "B", "latitude": 1, "longitude": 0, "total_area": 900, "unit_price": 80},
			{"identifier": "N", "latitude": null, "longitude": 0, "total_area": 1000, "unit_price": 90}
		],
		"max_distance_km": 111,
		"min_area": 0,
		"max_area": 2000
	}`
	w, out := do(t, s, http.MethodPost, "/comparables", body)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(1), out["count"])

	set := out["comparables"].([]any)
	require.Len(t, set, 1)
	assert.Equal(t, "B", set[0].(map[string]any)["identifier"])
}

func TestComparables_BadInput(t *testing.T) {
	s := newTestServer(t, false)

	w, out := do(t, s, http.MethodPost, "/comparables", `{"target": {"latitude": 95, "longitude": 0}, "max_distance_km": 10, "max_area": 10}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, out["error"], "invalid coordinate")

	w, _ = do(t, s, http.MethodPost, "/comparables", `{"target": `)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestIDW(t *testing.T) {
	s := newTestServer(t, false)
	body := `{
		"target": {"latitude": 0, "longitude": 0},
		"comparables": [
			{"latitude": 0, "longitude": 1, "unit_price": 100},
			{"latitude": 0, "longitude": 2, "unit_price": 200},
			{"latitude": 0, "longitude": 3, "unit_price": 300}
		]
	}`
	w, out := do(t, s, http.MethodPost, "/idw", body)
	require.Equal(t, http.StatusOK, w.Code)

	res := out["result"].(map[string]any)
	assert.Equal(t, "ok", res["status"])
	assert.Equal(t, 2.0, res["power"])
	est := res["estimate"].(float64)
	assert.Greater(t, est, 100.0)
	assert.Less(t, est, 200.0)
}

func TestIDW_InsufficientAndInvalidPower(t *testing.T) {
	s := newTestServer(t, false)

	w, out := do(t, s, http.MethodPost, "/idw", `{"target": {"latitude": 0, "longitude": 0}, "comparables": [{"latitude": 0, "longitude": 1, "unit_price": 1}]}`)
	require.Equal(t, http.StatusOK, w.Code)
	res := out["result"].(map[string]any)
	assert.Equal(t, true, res["insufficient_data"])
	assert.Contains(t, out["message"], "at least 3")

	w, _ = do(t, s, http.MethodPost, "/idw", `{"target": {"latitude": 0, "longitude": 0}, "comparables": [], "power": 0}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestIDW_HighPower(t *testing.T) {
	s := newTestServer(t, false)
	body := `{
		"target": {"latitude": 41.76, "longitude": -2.46},
		"comparables": [
			{"latitude": 41.7601, "longitude": -2.46, "unit_price": 90},
			{"latitude": 41.7602, "longitude": -2.46, "unit_price": 100},
			{"latitude": 41.7603, "longitude": -2.46, "unit_price": 130}
		],
		"power": 200
	}`
	w, out := do(t, s, http.MethodPost, "/idw", body)
	require.Equal(t, http.StatusOK, w.Code)

	res := out["result"].(map[string]any)
	assert.Equal(t, "ok", res["status"])
	weights := res["weights"].([]any)
	require.Len(t, weights, 3)
	assert.Equal(t, true, weights[0].(map[string]any)["saturated"])
}

func TestEvaluate_Post(t *testing.T) {
	s := newTestServer(t, false)
	body := `{
		"target": {"identifier": "T", "latitude": 0, "longitude": 0, "total_area": 1000, "unit_price": 100},
		"records": [
			{"identifier": "A", "latitude": 0, "longitude": 1, "total_area": 1100, "unit_price": 120},
			{"identifier": "B", "latitude": 1, "longitude": 0, "total_area": 900, "unit_price": 80},
			{"identifier": "C", "latitude": 0, "longitude": -1, "total_area": 1050, "unit_price": 100}
		],
		"params": {"max_distance_km": 200}
	}`
	w, out := do(t, s, http.MethodPost, "/evaluate", body)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, out["insufficient_data"])
	assert.Equal(t, false, out["cached"])

	ev := out["evaluation"].(map[string]any)
	assert.Len(t, ev["comparables"], 3)
	assert.NotNil(t, ev["summary"])
}

func TestEvaluate_DatasetCached(t *testing.T) {
	s := newTestServer(t, true)

	w, first := do(t, s, http.MethodGet, "/evaluate?max_distance_km=200&area_tolerance=500", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, first["cached"])

	w, second := do(t, s, http.MethodGet, "/evaluate?max_distance_km=200&area_tolerance=500", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, second["cached"])
	assert.Equal(t, first["run_id"], second["run_id"])
}

func TestEvaluate_DatasetInsufficient(t *testing.T) {
	s := newTestServer(t, true)

	w, out := do(t, s, http.MethodGet, "/evaluate?min_area=5000&max_area=6000", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, out["insufficient_data"])
	assert.Contains(t, out["message"], "at least 3")
}

func TestEvaluate_DatasetErrors(t *testing.T) {
	s := newTestServer(t, true)
	w, _ := do(t, s, http.MethodGet, "/evaluate?power=-1", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = do(t, s, http.MethodGet, "/evaluate?power=abc", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	empty := newTestServer(t, false)
	w, _ = do(t, empty, http.MethodGet, "/evaluate", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
