// Package metrics provides Prometheus metrics instrumentation for the forecaster.
//
// Metrics exposed:
//   - loadforecaster_stage_seconds: Histogram of pipeline stage duration by stage
//   - loadforecaster_errors_total: Counter of pipeline errors by stage and reason
//   - loadforecaster_requests_total: Counter of predict requests by transport and outcome
//   - loadforecaster_predicted_value: Gauge of the most recent prediction
//   - loadforecaster_model_info: Gauge set to 1, labelled with the loaded model and scaler
//
// Metrics implements pipeline.Observer so the pipeline can report stage timings
// without depending on Prometheus.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the forecaster.
type Metrics struct {
	StageSeconds   *prometheus.HistogramVec
	ErrorsTotal    *prometheus.CounterVec
	RequestsTotal  *prometheus.CounterVec
	PredictedValue prometheus.Gauge
	ModelInfo      *prometheus.GaugeVec
}

// New creates all metrics and registers them with reg.
// A nil reg registers with the default Prometheus registry.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		StageSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name: "loadforecaster_stage_seconds",
			Help: "Time spent in each inference pipeline stage",
			// inference stages run in microseconds to low milliseconds
			Buckets: prometheus.ExponentialBuckets(0.00001, 4, 10),
		}, []string{"stage"}),

		ErrorsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "loadforecaster_errors_total",
			Help: "Total number of pipeline errors by stage and reason",
		}, []string{"stage", "reason"}),

		RequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "loadforecaster_requests_total",
			Help: "Total number of predict requests by transport and outcome",
		}, []string{"transport", "outcome"}),

		PredictedValue: factory.NewGauge(prometheus.GaugeOpts{
			Name: "loadforecaster_predicted_value",
			Help: "Most recent predicted energy consumption in kWh",
		}),

		ModelInfo: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "loadforecaster_model_info",
			Help: "Loaded model and scaler, always 1",
		}, []string{"model", "scaler"}),
	}
}

// ObserveStage records the time spent in a pipeline stage.
func (m *Metrics) ObserveStage(stage string, d time.Duration) {
	m.StageSeconds.WithLabelValues(stage).Observe(d.Seconds())
}

// RecordError increments the error counter.
func (m *Metrics) RecordError(stage, reason string) {
	m.ErrorsTotal.WithLabelValues(stage, reason).Inc()
}

// RecordRequest counts one predict request. Outcome is a short status such
// as "ok", "invalid_length", "bad_request", or "error".
func (m *Metrics) RecordRequest(transport, outcome string) {
	m.RequestsTotal.WithLabelValues(transport, outcome).Inc()
}

// SetPredictedValue sets the most recent prediction.
func (m *Metrics) SetPredictedValue(value float64) {
	m.PredictedValue.Set(value)
}

// SetModelInfo records which model and scaler were loaded at startup.
func (m *Metrics) SetModelInfo(model, scaler string) {
	m.ModelInfo.Reset()
	m.ModelInfo.WithLabelValues(model, scaler).Set(1)
}
