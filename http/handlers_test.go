package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"churnpredict/monitoring"
	"churnpredict/pipeline"
	"churnpredict/pipeline/pipelinetest"
	"churnpredict/retention"
	"churnpredict/service"
)

type memoryStore struct {
	saved []retention.Assessment
}

func (m *memoryStore) SavePrediction(_ context.Context, a retention.Assessment) error {
	m.saved = append(m.saved, a)
	return nil
}

func (m *memoryStore) RecentPredictions(_ context.Context, limit int) ([]retention.Assessment, error) {
	if limit > len(m.saved) {
		limit = len(m.saved)
	}
	return m.saved[:limit], nil
}

type testEnv struct {
	handler http.Handler
	store   *memoryStore
	metrics *monitoring.Metrics
}

func newTestEnv(t *testing.T, withStore bool) *testEnv {
	t.Helper()
	logger := zaptest.NewLogger(t)
	env := &testEnv{metrics: monitoring.NewMetrics()}

	opts := service.Options{Metrics: env.metrics, Logger: logger}
	if withStore {
		env.store = &memoryStore{}
		opts.Store = env.store
	}
	svc, err := service.New(pipelinetest.Pipeline(), opts)
	require.NoError(t, err)

	api, err := NewAPI(svc, APIOptions{Metrics: env.metrics, Logger: logger, MaxBatch: 3})
	require.NoError(t, err)

	cfg := DefaultServerConfig()
	cfg.MaxBodyBytes = 4 << 10
	env.handler = NewServer(cfg, api, env.metrics, logger).Handler()
	return env
}

func (e *testEnv) do(method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func recordJSON(t *testing.T, record pipeline.CustomerRecord) string {
	t.Helper()
	payload, err := json.Marshal(pipelinetest.Values(record))
	require.NoError(t, err)
	return string(payload)
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}

func TestHealthHandler(t *testing.T) {
	rec := newTestEnv(t, false).do(http.MethodGet, "/api/health", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok","model_version":"fixture"}`, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
}

func TestLegacyPredictContract(t *testing.T) {
	env := newTestEnv(t, false)

	rec := env.do(http.MethodPost, "/predict", recordJSON(t, pipelinetest.ChurnRecord()))
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	decode(t, rec, &body)
	assert.Len(t, body, 2)
	assert.Equal(t, "Churn", body["prediction"])
	assert.InDelta(t, pipelinetest.ChurnProbability, body["probability"], 1e-6)
}

func TestLegacyPredictErrors(t *testing.T) {
	env := newTestEnv(t, false)
	record := pipelinetest.ChurnRecord()
	record.Contract = "Weekly"

	for name, body := range map[string]string{
		"unknown category": recordJSON(t, record),
		"not json":         "Contract=Weekly",
	} {
		t.Run(name, func(t *testing.T) {
			rec := env.do(http.MethodPost, "/predict", body)
			require.Equal(t, http.StatusBadRequest, rec.Code)
			var payload map[string]string
			decode(t, rec, &payload)
			assert.Len(t, payload, 1)
			assert.NotEmpty(t, payload["error"])
		})
	}
}

func TestPredictReturnsAssessment(t *testing.T) {
	env := newTestEnv(t, true)

	rec := env.do(http.MethodPost, "/api/v1/predict", recordJSON(t, pipelinetest.StayRecord()))
	require.Equal(t, http.StatusOK, rec.Code)

	var a retention.Assessment
	decode(t, rec, &a)
	assert.Equal(t, pipeline.LabelStay, a.Prediction)
	assert.Equal(t, retention.TierLow, a.Tier)
	assert.Equal(t, "5575-GNVDE", a.CustomerID)
	require.Len(t, env.store.saved, 1)
	assert.Equal(t, a.ID, env.store.saved[0].ID)
}

func TestPredictErrorBody(t *testing.T) {
	env := newTestEnv(t, false)
	record := pipelinetest.StayRecord()
	record.Tenure = nil

	rec := env.do(http.MethodPost, "/api/v1/predict", recordJSON(t, record))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t,
		`{"error":"missing required feature tenure","kind":"missing_feature","field":"tenure"}`,
		rec.Body.String())
}

func TestPredictBodyTooLarge(t *testing.T) {
	env := newTestEnv(t, false)
	body := `{"customerID":"` + strings.Repeat("x", 8<<10) + `"}`

	rec := env.do(http.MethodPost, "/api/v1/predict", body)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestPredictBatch(t *testing.T) {
	env := newTestEnv(t, false)
	bad := pipelinetest.StayRecord()
	bad.PaymentMethod = "Cash"
	body := `{"records":[` +
		recordJSON(t, pipelinetest.ChurnRecord()) + `,` +
		`{"tenure":"ten"},` +
		recordJSON(t, bad) + `]}`

	rec := env.do(http.MethodPost, "/api/v1/predict/batch", body)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp batchResponse
	decode(t, rec, &resp)
	assert.Equal(t, 1, resp.Succeeded)
	assert.Equal(t, 2, resp.Failed)
	require.Len(t, resp.Results, 3)
	for i, result := range resp.Results {
		assert.Equal(t, i, result.Index)
	}
	require.NotNil(t, resp.Results[0].Assessment)
	assert.Equal(t, pipeline.LabelChurn, resp.Results[0].Assessment.Prediction)
	assert.Equal(t, pipeline.KindInvalidInput, resp.Results[1].Failure.Kind)
	assert.Equal(t, pipeline.FieldTenure, resp.Results[1].Failure.Field)
	assert.Equal(t, pipeline.KindUnknownCategory, resp.Results[2].Failure.Kind)
}

func TestPredictBatchLimits(t *testing.T) {
	env := newTestEnv(t, false)

	rec := env.do(http.MethodPost, "/api/v1/predict/batch", `{"records":[{},{},{},{}]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(http.MethodPost, "/api/v1/predict/batch", `[{}]`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestModelHandler(t *testing.T) {
	rec := newTestEnv(t, false).do(http.MethodGet, "/api/v1/model", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var info service.ModelInfo
	decode(t, rec, &info)
	assert.Equal(t, "gradient_boosting", info.ModelType)
	assert.Equal(t, pipelinetest.Features(), info.Features)
	assert.Contains(t, info.Classes, pipeline.FieldPaymentMethod)
}

func TestPredictionsHistory(t *testing.T) {
	env := newTestEnv(t, true)
	for i := 0; i < 3; i++ {
		require.Equal(t, http.StatusOK, env.do(http.MethodPost, "/api/v1/predict", recordJSON(t, pipelinetest.ChurnRecord())).Code)
	}

	rec := env.do(http.MethodGet, "/api/v1/predictions?limit=2", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Predictions []retention.Assessment `json:"predictions"`
	}
	decode(t, rec, &body)
	assert.Len(t, body.Predictions, 2)

	assert.Equal(t, http.StatusBadRequest, env.do(http.MethodGet, "/api/v1/predictions?limit=-1", "").Code)
}

func TestPredictionsHistoryWithoutStore(t *testing.T) {
	rec := newTestEnv(t, false).do(http.MethodGet, "/api/v1/predictions", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestMetricsEndpointCountsRequests(t *testing.T) {
	env := newTestEnv(t, false)
	env.do(http.MethodPost, "/predict", recordJSON(t, pipelinetest.ChurnRecord()))

	rec := env.do(http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `churn_http_requests_total{code="200",method="POST",route="POST /predict"} 1`)
	assert.Contains(t, rec.Body.String(), `churn_predictions_total{label="Churn",tier="high"} 1`)
}

func TestMethodNotAllowed(t *testing.T) {
	rec := newTestEnv(t, false).do(http.MethodGet, "/predict", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
