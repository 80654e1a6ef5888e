package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"churnpredict/monitoring"
	"churnpredict/pipeline"
	"churnpredict/service"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 500
	defaultMaxBatch     = 1000
)

// APIOptions carries the optional collaborators of an API.
type APIOptions struct {
	Metrics *monitoring.Metrics
	// Hub serves the websocket prediction stream when set.
	Hub      *monitoring.PredictionHub
	Logger   *zap.Logger
	MaxBatch int
}

// API holds the handlers and the collaborators they share.
type API struct {
	svc      *service.Service
	metrics  *monitoring.Metrics
	hub      *monitoring.PredictionHub
	logger   *zap.Logger
	maxBatch int
	form     *formRenderer
}

// NewAPI builds the handlers around svc.
func NewAPI(svc *service.Service, opts APIOptions) (*API, error) {
	if svc == nil {
		return nil, errors.New("api requires a service")
	}
	a := &API{
		svc:      svc,
		metrics:  opts.Metrics,
		hub:      opts.Hub,
		logger:   opts.Logger,
		maxBatch: opts.MaxBatch,
	}
	if a.logger == nil {
		a.logger = zap.NewNop()
	}
	a.logger = a.logger.Named("api")
	if a.maxBatch <= 0 {
		a.maxBatch = defaultMaxBatch
	}
	form, err := newFormRenderer(svc.Pipeline())
	if err != nil {
		return nil, err
	}
	a.form = form
	if a.hub != nil {
		a.hub.SetRequestHandler(a.streamPredict)
	}
	return a, nil
}

// Register mounts every route on mux.
func (a *API) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /{$}", a.handleForm)
	mux.HandleFunc("POST /form/predict", a.handleFormPredict)
	mux.HandleFunc("POST /predict", a.handleLegacyPredict)

	mux.HandleFunc("POST /api/v1/predict", a.handlePredict)
	mux.HandleFunc("POST /api/v1/predict/batch", a.handlePredictBatch)
	mux.HandleFunc("GET /api/v1/model", a.handleModel)
	mux.HandleFunc("GET /api/v1/predictions", a.handlePredictions)
	mux.HandleFunc("GET /api/health", a.handleHealth)

	if a.metrics != nil {
		mux.Handle("GET /metrics", a.metrics.Handler())
	}
	if a.hub != nil {
		mux.Handle("GET /api/ws/predictions", a.hub)
	}
}

type errorBody struct {
	Error string             `json:"error"`
	Kind  pipeline.ErrorKind `json:"kind,omitempty"`
	Field string             `json:"field,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// statusFor maps pipeline error kinds to HTTP status codes.
func statusFor(err error) int {
	var maxErr *http.MaxBytesError
	switch {
	case errors.As(err, &maxErr):
		return http.StatusRequestEntityTooLarge
	case pipeline.KindOf(err).IsClientError():
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (a *API) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	body := errorBody{Error: err.Error(), Kind: pipeline.KindOf(err), Field: pipeline.FieldOf(err)}
	if status == http.StatusInternalServerError {
		a.logger.Error("request failed", zap.String("request_id", GetRequestID(r.Context())), zap.Error(err))
		body.Error = "internal server error"
	}
	writeJSON(w, status, body)
}

func readRecord(r *http.Request) (pipeline.CustomerRecord, error) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return pipeline.CustomerRecord{}, err
		}
		return pipeline.CustomerRecord{}, &pipeline.InvalidInputError{Reason: "cannot read request body"}
	}
	return pipeline.RecordFromJSON(body)
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":        "ok",
		"model_version": a.svc.Pipeline().Artifacts().Version(),
	})
}

// handleLegacyPredict keeps the original JSON contract: the prediction label
// and probability, or 400 with an error message.
func (a *API) handleLegacyPredict(w http.ResponseWriter, r *http.Request) {
	record, err := readRecord(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	assessment, err := a.svc.Predict(r.Context(), record)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Prediction  pipeline.Label `json:"prediction"`
		Probability *float64       `json:"probability"`
	}{assessment.Prediction, assessment.Probability})
}

func (a *API) handlePredict(w http.ResponseWriter, r *http.Request) {
	record, err := readRecord(r)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	assessment, err := a.svc.Predict(r.Context(), record)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, assessment)
}

type batchRequest struct {
	Records []json.RawMessage `json:"records"`
}

type batchResponse struct {
	Results   []service.BatchResult `json:"results"`
	Succeeded int                   `json:"succeeded"`
	Failed    int                   `json:"failed"`
}

func (a *API) handlePredictBatch(w http.ResponseWriter, r *http.Request) {
	var req batchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var maxErr *http.MaxBytesError
		if !errors.As(err, &maxErr) {
			err = &pipeline.InvalidInputError{Reason: "body must be {\"records\": [...]}"}
		}
		a.writeError(w, r, err)
		return
	}
	if len(req.Records) > a.maxBatch {
		a.writeError(w, r, &pipeline.InvalidInputError{
			Reason: "batch of " + strconv.Itoa(len(req.Records)) + " records exceeds the limit of " + strconv.Itoa(a.maxBatch),
		})
		return
	}

	inputs := make([]service.Decoded, len(req.Records))
	for i, raw := range req.Records {
		inputs[i].Record, inputs[i].Err = pipeline.RecordFromJSON(raw)
	}

	resp := batchResponse{Results: a.svc.PredictDecoded(r.Context(), inputs)}
	resp.Succeeded, resp.Failed = service.Counts(resp.Results)
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleModel(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.svc.ModelInfo())
}

func (a *API) handlePredictions(w http.ResponseWriter, r *http.Request) {
	limit := defaultHistoryLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		l, err := strconv.Atoi(v)
		if err != nil || l <= 0 {
			a.writeError(w, r, &pipeline.InvalidInputError{Field: "limit", Reason: "must be a positive integer"})
			return
		}
		limit = min(l, maxHistoryLimit)
	}

	assessments, err := a.svc.RecentPredictions(r.Context(), limit)
	if errors.Is(err, service.ErrNoStore) {
		writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: err.Error()})
		return
	}
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"predictions": assessments})
}

// streamPredict answers predict requests sent over the websocket stream.
func (a *API) streamPredict(ctx context.Context, raw json.RawMessage) (any, error) {
	record, err := pipeline.RecordFromJSON(raw)
	if err != nil {
		return nil, err
	}
	return a.svc.Predict(ctx, record)
}
