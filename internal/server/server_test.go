package server

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Deepak-Sangle/greenratchet/internal/fixtures"
	"github.com/Deepak-Sangle/greenratchet/internal/kpi"
	"github.com/Deepak-Sangle/greenratchet/internal/metrics"
	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const q1 = `{"start":"2025-01-01T00:00:00Z","end":"2025-03-31T23:59:59Z"}`

type testServer struct {
	*Server
	sink *kpi.MemorySink
	reg  *prometheus.Registry
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ds, err := fixtures.Demo()
	require.NoError(t, err)
	data, err := ds.Convert()
	require.NoError(t, err)
	mem := data.InMemory()

	reg := prometheus.NewRegistry()
	rec, err := metrics.NewRecorder(reg)
	require.NoError(t, err)
	sink := &kpi.MemorySink{}
	ev := kpi.NewEvaluator(mem.Usage, mem.Grid, mem.Directory, zerolog.Nop(), kpi.Options{Sink: sink, Recorder: rec})

	return &testServer{
		Server: New(ev, zerolog.Nop(), Config{ProjectionMonths: 2, Gatherer: reg, History: sinkHistory{sink}}),
		sink:   sink,
		reg:    reg,
	}
}

type sinkHistory struct{ sink *kpi.MemorySink }

func (h sinkHistory) ListResults(_ context.Context, kpiID string) ([]kpi.Result, error) {
	var out []kpi.Result
	for _, r := range h.sink.Results() {
		if r.KPIID == kpiID {
			out = append(out, r)
		}
	}
	return out, nil
}

func do(t *testing.T, h http.Handler, method, path, body string, header ...string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	rec := do(t, newTestServer(t), http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(TraceHeader))
}

func TestEvaluate(t *testing.T) {
	ts := newTestServer(t)
	body := `{"organization_id":"org-demo","window":` + q1 + `,"kpis":[
		{"id":"renewable","type":"RENEWABLE_ENERGY_PERCENTAGE","target":30},
		{"id":"co2","type":"CO2_EMISSIONS","target":3}
	]}`

	rec := do(t, ts, http.MethodPost, "/v1/evaluate", body, TraceHeader, "trace-123")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "trace-123", rec.Header().Get(TraceHeader))

	var resp EvaluateResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Results, 2)
	assert.Empty(t, resp.Errors)

	assert.Equal(t, "renewable", resp.Results[0].KPIID)
	assert.InDelta(t, 35.0, resp.Results[0].ActualValue, 1e-9)
	assert.Equal(t, kpi.StatusPassed, resp.Results[0].Status)
	assert.Equal(t, kpi.HigherIsBetter, resp.Results[0].Direction)

	assert.InDelta(t, 4.0, resp.Results[1].ActualValue, 1e-9)
	assert.Equal(t, kpi.StatusFailed, resp.Results[1].Status)

	assert.Len(t, ts.sink.Results(), 2)
}

func TestEvaluate_PartialFailure(t *testing.T) {
	ts := newTestServer(t)
	body := `{"organization_id":"org-demo","kpis":[
		{"id":"scoped","type":"ENERGY_CONSUMPTION","target":1000,
		 "start":"2025-01-01T00:00:00Z","end":"2025-03-31T23:59:59Z"},
		{"id":"unscoped","type":"ENERGY_CONSUMPTION","target":1000}
	]}`

	rec := do(t, ts, http.MethodPost, "/v1/evaluate", body)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp EvaluateResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Results, 1)
	assert.InDelta(t, 400.0, resp.Results[0].ActualValue, 1e-9)
	require.Len(t, resp.Errors, 1)
	assert.Equal(t, "unscoped", resp.Errors[0].KPIID)
	assert.Equal(t, "INVALID_WINDOW", resp.Errors[0].Reason)
}

func TestEvaluate_Errors(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		status int
		reason string
	}{
		{"malformed", `{`, http.StatusBadRequest, "BAD_REQUEST"},
		{"unknown field", `{"org":"x"}`, http.StatusBadRequest, "BAD_REQUEST"},
		{"missing kpis", `{"organization_id":"org-demo"}`, http.StatusBadRequest, "BAD_REQUEST"},
		{"unknown kind", `{"organization_id":"org-demo","window":` + q1 + `,"kpis":[{"id":"x","type":"NOISE"}]}`,
			http.StatusBadRequest, "BAD_REQUEST"},
		{"unknown organization", `{"organization_id":"org-none","window":` + q1 + `,"kpis":[{"id":"x","type":"CO2_EMISSIONS"}]}`,
			http.StatusNotFound, ""},
		{"inverted window", `{"organization_id":"org-demo","window":{"start":"2025-04-01T00:00:00Z","end":"2025-01-01T00:00:00Z"},"kpis":[{"id":"x","type":"CO2_EMISSIONS"}]}`,
			http.StatusBadRequest, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, newTestServer(t), http.MethodPost, "/v1/evaluate", tt.body)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
			if tt.reason != "" {
				var resp ErrorResponse
				require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
				assert.Equal(t, tt.reason, resp.Reason)
			}
		})
	}
}

func TestTimeline(t *testing.T) {
	ts := newTestServer(t)
	rec := do(t, ts, http.MethodPost, "/v1/timeline",
		`{"organization_id":"org-demo","metric":"energy","window":`+q1+`}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var tl kpi.Timeline
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &tl))
	assert.Equal(t, []float64{60, 40, 300}, tl.Monthly)
	assert.Len(t, tl.Points, 5, "three actual months and the default two projected")
	assert.InDelta(t, 400.0, tl.Points[2].Value, 1e-9)
	assert.True(t, tl.Points[4].IsProjected)
}

func TestTimeline_Errors(t *testing.T) {
	ts := newTestServer(t)

	rec := do(t, ts, http.MethodPost, "/v1/timeline", `{"organization_id":"org-demo","metric":"noise","window":`+q1+`}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, ts, http.MethodPost, "/v1/timeline", `{"organization_id":"org-demo","metric":"energy","months":-1,"window":`+q1+`}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, ts, http.MethodPost, "/v1/timeline", `{"organization_id":"org-none","metric":"energy","window":`+q1+`}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "NO_ACTIVE_CONNECTIONS", resp.Reason)
}

func TestResultsAndMetrics(t *testing.T) {
	ts := newTestServer(t)
	body := `{"organization_id":"org-demo","window":` + q1 + `,"kpis":[{"id":"renewable","type":"RENEWABLE_ENERGY_PERCENTAGE","target":30}]}`
	for range 2 {
		require.Equal(t, http.StatusOK, do(t, ts, http.MethodPost, "/v1/evaluate", body).Code)
	}

	rec := do(t, ts, http.MethodGet, "/v1/kpis/renewable/results", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var history []kpi.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &history))
	assert.Len(t, history, 2)

	rec = do(t, ts, http.MethodGet, "/v1/kpis/unknown/results", "")
	assert.Equal(t, "[]\n", rec.Body.String())

	rec = do(t, ts, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, bytes.Contains(rec.Body.Bytes(), []byte(`greenratchet_kpi_evaluations_total{kind="RENEWABLE_ENERGY_PERCENTAGE",status="PASSED"} 2`)))
}

func TestMethodNotAllowed(t *testing.T) {
	rec := do(t, newTestServer(t), http.MethodGet, "/v1/evaluate", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
