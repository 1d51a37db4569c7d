// Package router configures HTTP routes for the forecaster's HTTP API.
//
// Routes configured:
//   - GET /         - Static welcome message
//   - POST /predict - Forecast the next value from 30 recent consumption values
//   - GET /healthz  - Liveness check (always 200 OK)
//   - GET /readyz   - Readiness check (503 until a pipeline is attached)
//   - GET /metrics  - Prometheus metrics endpoint
//
// POST /predict accepts {"recent_consumption": [<30 numbers>]} and answers
// {"predicted_energy_consumption_kWh": <float>}. Errors are returned as
// {"detail": "<message>"}: 400 for a window of the wrong length, 422 for a
// body that cannot be decoded, 500 for any pipeline failure, and 503 when no
// pipeline is loaded.
package router

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/tidwall/gjson"

	"github.com/HatiCode/loadforecaster/cmd/forecaster/metrics"
	"github.com/HatiCode/loadforecaster/pkg/httpx"
	"github.com/HatiCode/loadforecaster/pkg/pipeline"
)

// WelcomeMessage is served on GET /.
const WelcomeMessage = "Welcome to the Smart Load Forecaster API 🚀"

// maxBodyBytes bounds the predict request body. Thirty numbers fit in far less.
const maxBodyBytes = 64 << 10

// PredictRequest is the body of POST /predict.
type PredictRequest struct {
	RecentConsumption []float64 `json:"recent_consumption"`
}

// rawPredictRequest defers element decoding so the window length can be
// checked before element types.
type rawPredictRequest struct {
	RecentConsumption *[]json.RawMessage `json:"recent_consumption"`
}

// PredictResponse is the success body of POST /predict.
type PredictResponse struct {
	PredictedEnergyConsumptionKWh float64 `json:"predicted_energy_consumption_kWh"`
}

// MessageResponse is the body of GET /.
type MessageResponse struct {
	Message string `json:"message"`
}

var errNotLoaded = errors.New("model not loaded")

// SetupRoutes configures HTTP endpoints for the forecaster.
// p may be nil, in which case /predict and /readyz answer 503. m may be nil.
func SetupRoutes(p *pipeline.Pipeline, m *metrics.Metrics, logger *slog.Logger) *http.ServeMux {
	if logger == nil {
		logger = slog.Default()
	}

	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", handleRoot(logger))
	mux.HandleFunc("POST /predict", handlePredict(p, m, logger))

	mux.Handle("GET /healthz", httpx.HealthHandler())
	mux.Handle("GET /readyz", httpx.HealthHandlerWithCheck(func() error {
		if p == nil {
			return errNotLoaded
		}
		return nil
	}))

	mux.Handle("GET /metrics", promhttp.Handler())

	return mux
}

func handleRoot(logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := httpx.WriteJSON(w, http.StatusOK, MessageResponse{Message: WelcomeMessage}); err != nil {
			logger.Error("failed to write JSON response", "error", err)
		}
	}
}

func handlePredict(p *pipeline.Pipeline, m *metrics.Metrics, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if p == nil {
			record(m, "unavailable")
			httpx.WriteError(w, http.StatusServiceUnavailable, errNotLoaded)
			return
		}

		window, err := decodeWindow(http.MaxBytesReader(w, r.Body, maxBodyBytes))
		if errors.Is(err, pipeline.ErrInvalidInputLength) {
			record(m, pipeline.Kind(err))
			httpx.WriteErrorMessage(w, http.StatusBadRequest, pipeline.InvalidInputLengthMessage)
			return
		}
		if err != nil {
			record(m, "bad_request")
			httpx.WriteError(w, http.StatusUnprocessableEntity, err)
			return
		}

		prediction, err := p.Forecast(r.Context(), window)
		if err != nil {
			kind := pipeline.Kind(err)
			record(m, kind)
			if errors.Is(err, pipeline.ErrInvalidInputLength) {
				httpx.WriteErrorMessage(w, http.StatusBadRequest, pipeline.InvalidInputLengthMessage)
				return
			}
			logger.Error("forecast failed", "kind", kind, "error", err)
			httpx.WriteError(w, http.StatusInternalServerError, err)
			return
		}

		record(m, "ok")
		if m != nil {
			m.SetPredictedValue(prediction)
		}

		resp := PredictResponse{PredictedEnergyConsumptionKWh: prediction}
		if err := httpx.WriteJSON(w, http.StatusOK, resp); err != nil {
			logger.Error("failed to write JSON response", "error", err)
		}
	}
}

// decodeWindow reads a PredictRequest. The body must be a single JSON
// object. A list of the wrong length fails with pipeline.ErrInvalidInputLength
// whatever its elements hold; otherwise every element must be a JSON number.
func decodeWindow(body io.Reader) (pipeline.Window, error) {
	dec := json.NewDecoder(body)

	var req rawPredictRequest
	if err := dec.Decode(&req); err != nil {
		return nil, fmt.Errorf("invalid request body: %w", err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, errors.New("invalid request body: unexpected data after JSON object")
	}
	if req.RecentConsumption == nil {
		return nil, errors.New("recent_consumption: field required")
	}

	values := *req.RecentConsumption
	if err := pipeline.CheckLength(len(values)); err != nil {
		return nil, err
	}

	window := make(pipeline.Window, len(values))
	for i, raw := range values {
		v := gjson.ParseBytes(raw)
		if v.Type != gjson.Number {
			return nil, fmt.Errorf("recent_consumption[%d]: must be a number", i)
		}
		window[i] = v.Float()
	}
	return window, nil
}

func record(m *metrics.Metrics, outcome string) {
	if m != nil {
		m.RecordRequest("http", outcome)
	}
}
