package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"p2pwatcher/internal/aggregate"
	"p2pwatcher/internal/analyzer"
	"p2pwatcher/internal/scheduler"
	"p2pwatcher/internal/service"
	"p2pwatcher/internal/storage"
)

type fakeMonitor struct {
	running  bool
	started  []scheduler.Config
	samples  []storage.Sample
	buckets  []aggregate.HourBucket
	startErr error
}

func (f *fakeMonitor) Start(cfg scheduler.Config) (service.Status, error) {
	if err := cfg.Validate(); err != nil {
		return f.Status(), err
	}
	if f.startErr != nil {
		return f.Status(), f.startErr
	}
	if f.running {
		return f.Status(), scheduler.ErrAlreadyRunning
	}
	f.running = true
	f.started = append(f.started, cfg)
	return f.Status(), nil
}

func (f *fakeMonitor) Stop() (service.Status, error) {
	if !f.running {
		return f.Status(), scheduler.ErrNotRunning
	}
	f.running = false
	return f.Status(), nil
}

func (f *fakeMonitor) Status() service.Status {
	st := service.Status{HistorySize: len(f.samples)}
	st.Running = f.running
	st.State = scheduler.StateIdle
	if f.running {
		st.State = scheduler.StateActive
	}
	return st
}

func (f *fakeMonitor) Hourly() []aggregate.HourBucket { return f.buckets }

func (f *fakeMonitor) Analyze() analyzer.Result { return analyzer.Analyze(f.buckets) }

func (f *fakeMonitor) History(n int) []storage.Sample {
	if n <= 0 || n >= len(f.samples) {
		return append([]storage.Sample(nil), f.samples...)
	}
	return append([]storage.Sample(nil), f.samples[len(f.samples)-n:]...)
}

func testSamples(n int) []storage.Sample {
	base := time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)
	out := make([]storage.Sample, 0, n)
	for i := 0; i < n; i++ {
		s, _ := storage.NewSample(storage.SampleInput{
			Timestamp:  base.Add(time.Duration(i) * 30 * time.Second),
			BuyPrice:   decimal.NewFromFloat(41 + float64(i)/100),
			SellPrice:  decimal.NewFromFloat(42),
			BuyerName:  "buyer",
			SellerName: "seller",
			MinAmount:  5000,
		}, time.UTC)
		out = append(out, s)
	}
	return out
}

func setupRouter(m *fakeMonitor) http.Handler {
	h := NewHandler(m, Options{
		LatestLimit:  2,
		Banks:        []Bank{{Code: "mono", Name: "Monobank"}},
		SupportsBank: func(code string) bool { return code == "" || code == "mono" },
	}, zerolog.Nop())
	return h.Routes()
}

func doRequest(t *testing.T, router http.Handler, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	var payload map[string]any
	if strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &payload))
	}
	return w, payload
}

func TestStartMonitoring(t *testing.T) {
	m := &fakeMonitor{}
	router := setupRouter(m)

	w, payload := doRequest(t, router, http.MethodPost, "/api/monitoring/start", `{"minAmount":10000,"bank":"MONO"}`)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, payload["success"])
	require.Len(t, m.started, 1)
	assert.Equal(t, scheduler.Config{MinAmount: 10000, Bank: "mono"}, m.started[0])
	assert.NotEmpty(t, w.Header().Get(RequestIDHeaderKey))

	w, payload = doRequest(t, router, http.MethodPost, "/api/monitoring/start", `{"minAmount":10000}`)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, payload["success"])
	assert.Equal(t, scheduler.ErrAlreadyRunning.Error(), payload["message"])
	assert.Len(t, m.started, 1)
}

func TestStartMonitoringDefaultsMinAmount(t *testing.T) {
	m := &fakeMonitor{}
	w, _ := doRequest(t, setupRouter(m), http.MethodPost, "/api/monitoring/start", "")
	assert.Equal(t, http.StatusOK, w.Code)
	require.Len(t, m.started, 1)
	assert.Equal(t, int64(5000), m.started[0].MinAmount)
}

func TestStartMonitoringRejectsBadInput(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"zero amount", `{"minAmount":0}`},
		{"negative amount", `{"minAmount":-5}`},
		{"unknown bank", `{"minAmount":5000,"bank":"sense"}`},
		{"malformed json", `{"minAmount":`},
		{"string amount", `{"minAmount":"lots"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &fakeMonitor{}
			w, payload := doRequest(t, setupRouter(m), http.MethodPost, "/api/monitoring/start", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, false, payload["success"])
			assert.Empty(t, m.started)
		})
	}
}

func TestStopMonitoring(t *testing.T) {
	m := &fakeMonitor{}
	router := setupRouter(m)

	w, payload := doRequest(t, router, http.MethodPost, "/api/monitoring/stop", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, payload["success"])

	m.running = true
	w, payload = doRequest(t, router, http.MethodPost, "/api/monitoring/stop", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, payload["success"])
	assert.False(t, m.running)
}

func TestStartMonitoringUnexpectedError(t *testing.T) {
	m := &fakeMonitor{startErr: errors.New("boom")}
	w, payload := doRequest(t, setupRouter(m), http.MethodPost, "/api/monitoring/start", `{"minAmount":5000}`)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "internal server error", payload["error"])
}

func TestMonitoringStatus(t *testing.T) {
	m := &fakeMonitor{running: true, samples: testSamples(3)}
	w, payload := doRequest(t, setupRouter(m), http.MethodGet, "/api/monitoring/status", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, payload["isActive"])
	assert.Equal(t, float64(3), payload["recordsCount"])
}

func TestAnalyticsReturnsNewestFirst(t *testing.T) {
	agg := aggregate.New()
	samples := testSamples(5)
	agg.Fold(samples)
	m := &fakeMonitor{samples: samples, buckets: agg.Snapshot()}

	w, payload := doRequest(t, setupRouter(m), http.MethodGet, "/api/analytics", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(5), payload["totalRecords"])

	latest, ok := payload["latestData"].([]any)
	require.True(t, ok)
	require.Len(t, latest, 2)
	first := latest[0].(map[string]any)
	assert.Equal(t, "41.04", first["buyPrice"])

	hourly, ok := payload["hourlyData"].([]any)
	require.True(t, ok)
	require.Len(t, hourly, 1)
	assert.Contains(t, payload, "analysis")
}

func TestHistoryLimit(t *testing.T) {
	m := &fakeMonitor{samples: testSamples(4)}
	router := setupRouter(m)

	w, payload := doRequest(t, router, http.MethodGet, "/api/history?limit=3", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(3), payload["count"])

	w, _ = doRequest(t, router, http.MethodGet, "/api/history?limit=abc", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestExportCSV(t *testing.T) {
	m := &fakeMonitor{samples: testSamples(2)}
	w, _ := doRequest(t, setupRouter(m), http.MethodGet, "/api/export.csv", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Disposition"), "price_data_")

	parsed, err := storage.ReadCSV(w.Body)
	require.NoError(t, err)
	require.Len(t, parsed, 2)
	assert.True(t, parsed[1].Equal(m.samples[1]))
}

func TestHealthAndMetrics(t *testing.T) {
	router := setupRouter(&fakeMonitor{})

	w, payload := doRequest(t, router, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "OK", payload["status"])

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "p2pwatcher_history_size")
}

func TestHealthReportsStorageFailure(t *testing.T) {
	h := NewHandler(&fakeMonitor{}, Options{
		CheckStorage: func(context.Context) error { return errors.New("dial tcp: connection refused") },
	}, zerolog.Nop())

	w, payload := doRequest(t, h.Routes(), http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "DEGRADED", payload["status"])
	assert.Contains(t, payload["storage"], "connection refused")

	h = NewHandler(&fakeMonitor{}, Options{
		CheckStorage: func(context.Context) error { return nil },
	}, zerolog.Nop())
	w, payload = doRequest(t, h.Routes(), http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "OK", payload["storage"])
}

func TestCORSPreflight(t *testing.T) {
	req := httptest.NewRequest(http.MethodOptions, "/api/monitoring/start", nil)
	rec := httptest.NewRecorder()
	setupRouter(&fakeMonitor{}).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}
