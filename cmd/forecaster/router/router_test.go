package router

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/HatiCode/loadforecaster/cmd/forecaster/metrics"
	"github.com/HatiCode/loadforecaster/pkg/models"
	"github.com/HatiCode/loadforecaster/pkg/pipeline"
	"github.com/HatiCode/loadforecaster/pkg/scaling"
	"github.com/HatiCode/loadforecaster/pkg/tensor"
)

type failingModel struct{ err error }

func (failingModel) Name() string           { return "failing" }
func (failingModel) InputShape() (int, int) { return pipeline.WindowSize, 1 }
func (m failingModel) Predict(context.Context, tensor.Sequence) (tensor.Matrix, error) {
	return tensor.Matrix{}, m.err
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newPipeline(t *testing.T, model models.Model) *pipeline.Pipeline {
	t.Helper()
	scaler, err := scaling.NewMinMaxScalerFromRange(0, 500, 0, 1)
	if err != nil {
		t.Fatalf("scaler: %v", err)
	}
	p, err := pipeline.New(scaler, model)
	if err != nil {
		t.Fatalf("pipeline: %v", err)
	}
	return p
}

func windowBody(n int, v float64) string {
	values := make([]string, n)
	for i := range values {
		values[i] = fmt.Sprintf("%g", v)
	}
	return `{"recent_consumption":[` + strings.Join(values, ",") + `]}`
}

// listBody builds a request whose list repeats elem n times, elem being raw
// JSON.
func listBody(n int, elem string) string {
	return `{"recent_consumption":[` + strings.TrimSuffix(strings.Repeat(elem+",", n), ",") + `]}`
}

func decodeDetail(t *testing.T, body io.Reader) string {
	t.Helper()
	var resp struct {
		Detail string `json:"detail"`
	}
	if err := json.NewDecoder(body).Decode(&resp); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	return resp.Detail
}

func TestSetupRoutes(t *testing.T) {
	mux := SetupRoutes(nil, nil, discardLogger())
	if mux == nil {
		t.Fatal("SetupRoutes() returned nil")
	}
}

func TestRootEndpoint(t *testing.T) {
	// the welcome route does not depend on the pipeline being loaded
	for _, p := range []*pipeline.Pipeline{nil, newPipeline(t, models.NewBaselineModel(30))} {
		mux := SetupRoutes(p, nil, discardLogger())

		w := httptest.NewRecorder()
		mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

		if w.Code != http.StatusOK {
			t.Errorf("status code = %d, want %d", w.Code, http.StatusOK)
		}
		var resp MessageResponse
		if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if resp.Message != "Welcome to the Smart Load Forecaster API 🚀" {
			t.Errorf("message = %q", resp.Message)
		}
	}
}

func TestPredict_Success(t *testing.T) {
	mux := SetupRoutes(newPipeline(t, models.NewBaselineModel(30)), nil, discardLogger())

	req := httptest.NewRequest(http.MethodPost, "/predict", strings.NewReader(windowBody(30, 100.0)))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status code = %d, want %d: %s", w.Code, http.StatusOK, w.Body.String())
	}

	var raw map[string]any
	if err := json.NewDecoder(w.Body).Decode(&raw); err != nil {
		t.Fatalf("decode: %v", err)
	}
	value, ok := raw["predicted_energy_consumption_kWh"].(float64)
	if !ok {
		t.Fatalf("predicted_energy_consumption_kWh missing or not numeric: %v", raw)
	}
	// a flat window has no trend, so the baseline repeats the last value
	if math.Abs(value-100) > 1e-9 {
		t.Errorf("prediction = %v, want 100", value)
	}
}

func TestPredict_InvalidLength(t *testing.T) {
	mux := SetupRoutes(newPipeline(t, models.NewBaselineModel(30)), nil, discardLogger())

	for _, n := range []int{0, 1, 29, 31, 100} {
		t.Run(fmt.Sprintf("len=%d", n), func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/predict", strings.NewReader(windowBody(n, 100.0)))
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, req)

			if w.Code != http.StatusBadRequest {
				t.Errorf("status code = %d, want %d", w.Code, http.StatusBadRequest)
			}
			if got := decodeDetail(t, w.Body); got != "Please provide exactly 30 recent consumption values." {
				t.Errorf("detail = %q", got)
			}
		})
	}
}

func TestPredict_MalformedBody(t *testing.T) {
	mux := SetupRoutes(newPipeline(t, models.NewBaselineModel(30)), nil, discardLogger())

	tests := []struct {
		name string
		body string
	}{
		{name: "not json", body: "recent_consumption=1,2,3"},
		{name: "missing field", body: `{"values":[1,2,3]}`},
		{name: "null field", body: `{"recent_consumption":null}`},
		{name: "non numeric value", body: strings.Replace(windowBody(30, 1), "1,", `"two",`, 1)},
		{name: "null values", body: listBody(30, "null")},
		{name: "single null value", body: strings.Replace(windowBody(30, 1), "1,", "null,", 1)},
		{name: "nested list values", body: listBody(30, "[1]")},
		{name: "not an array", body: `{"recent_consumption":42}`},
		{name: "empty body", body: ""},
		{name: "trailing garbage", body: windowBody(30, 1) + "garbage"},
		{name: "second object", body: windowBody(30, 1) + `{}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/predict", strings.NewReader(tt.body))
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, req)

			if w.Code != http.StatusUnprocessableEntity {
				t.Errorf("status code = %d, want %d", w.Code, http.StatusUnprocessableEntity)
			}
			if decodeDetail(t, w.Body) == "" {
				t.Error("expected a detail message")
			}
		})
	}
}

func TestPredict_WrongLengthBeforeElementTypes(t *testing.T) {
	mux := SetupRoutes(newPipeline(t, models.NewBaselineModel(30)), nil, discardLogger())

	tests := []struct {
		name string
		body string
	}{
		{name: "29 strings", body: listBody(29, `"a"`)},
		{name: "31 nulls", body: listBody(31, "null")},
		{name: "mixed short list", body: `{"recent_consumption":[1,"two",null]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/predict", strings.NewReader(tt.body)))

			if w.Code != http.StatusBadRequest {
				t.Errorf("status code = %d, want %d", w.Code, http.StatusBadRequest)
			}
			if got := decodeDetail(t, w.Body); got != pipeline.InvalidInputLengthMessage {
				t.Errorf("detail = %q", got)
			}
		})
	}
}

func TestPredict_TrailingWhitespace(t *testing.T) {
	mux := SetupRoutes(newPipeline(t, models.NewBaselineModel(30)), nil, discardLogger())

	w := httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/predict", strings.NewReader(windowBody(30, 50)+"\n")))
	if w.Code != http.StatusOK {
		t.Errorf("status code = %d, want %d: %s", w.Code, http.StatusOK, w.Body.String())
	}
}

func TestPredict_PipelineFailure(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	mux := SetupRoutes(newPipeline(t, failingModel{err: errors.New("weights corrupted")}), m, discardLogger())

	req := httptest.NewRequest(http.MethodPost, "/predict", strings.NewReader(windowBody(30, 100.0)))
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Errorf("status code = %d, want %d", w.Code, http.StatusInternalServerError)
	}
	detail := decodeDetail(t, w.Body)
	if !strings.Contains(detail, "weights corrupted") || !strings.Contains(detail, "model error") {
		t.Errorf("detail = %q, want failure description", detail)
	}
	if got := testutil.ToFloat64(m.RequestsTotal.WithLabelValues("http", "model")); got != 1 {
		t.Errorf("requests_total{http,model} = %v, want 1", got)
	}
}

func TestPredict_NotLoaded(t *testing.T) {
	mux := SetupRoutes(nil, nil, discardLogger())

	req := httptest.NewRequest(http.MethodPost, "/predict", strings.NewReader(windowBody(30, 100.0)))
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status code = %d, want %d", w.Code, http.StatusServiceUnavailable)
	}
}

func TestPredict_RecordsMetrics(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	mux := SetupRoutes(newPipeline(t, models.NewBaselineModel(30)), m, discardLogger())

	for _, body := range []string{windowBody(30, 80), windowBody(29, 80), "{"} {
		mux.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/predict", strings.NewReader(body)))
	}

	for outcome, want := range map[string]float64{"ok": 1, "invalid_length": 1, "bad_request": 1} {
		if got := testutil.ToFloat64(m.RequestsTotal.WithLabelValues("http", outcome)); got != want {
			t.Errorf("requests_total{http,%s} = %v, want %v", outcome, got, want)
		}
	}
	if got := testutil.ToFloat64(m.PredictedValue); math.Abs(got-80) > 1e-9 {
		t.Errorf("predicted_value = %v, want 80", got)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	mux := SetupRoutes(newPipeline(t, models.NewBaselineModel(30)), nil, discardLogger())

	tests := []struct {
		method string
		path   string
	}{
		{method: http.MethodGet, path: "/predict"},
		{method: http.MethodPost, path: "/"},
	}

	for _, tt := range tests {
		w := httptest.NewRecorder()
		mux.ServeHTTP(w, httptest.NewRequest(tt.method, tt.path, nil))
		if w.Code != http.StatusMethodNotAllowed {
			t.Errorf("%s %s: status code = %d, want %d", tt.method, tt.path, w.Code, http.StatusMethodNotAllowed)
		}
	}
}

func TestUnknownPath(t *testing.T) {
	mux := SetupRoutes(nil, nil, discardLogger())

	w := httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/forecast/current", nil))
	if w.Code != http.StatusNotFound {
		t.Errorf("status code = %d, want %d", w.Code, http.StatusNotFound)
	}
}

func TestHealthEndpoints(t *testing.T) {
	tests := []struct {
		name       string
		p          *pipeline.Pipeline
		path       string
		wantStatus int
	}{
		{name: "liveness without pipeline", p: nil, path: "/healthz", wantStatus: http.StatusOK},
		{name: "readiness without pipeline", p: nil, path: "/readyz", wantStatus: http.StatusServiceUnavailable},
		{name: "readiness with pipeline", p: newPipeline(t, models.NewBaselineModel(30)), path: "/readyz", wantStatus: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mux := SetupRoutes(tt.p, nil, discardLogger())
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, tt.path, nil))
			if w.Code != tt.wantStatus {
				t.Errorf("status code = %d, want %d", w.Code, tt.wantStatus)
			}
		})
	}
}

func TestMetricsEndpoint(t *testing.T) {
	mux := SetupRoutes(nil, nil, discardLogger())

	w := httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if w.Code != http.StatusOK {
		t.Errorf("status code = %d, want %d", w.Code, http.StatusOK)
	}
	if !strings.Contains(w.Body.String(), "go_goroutines") {
		t.Error("metrics output missing default collectors")
	}
}
