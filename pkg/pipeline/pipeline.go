// Package pipeline implements single-step inference over a fixed window:
//
//	validate → scale → reshape → predict → inverse-scale → unwrap
//
// A Pipeline holds a fitted scaler and a frozen model that are loaded once at
// startup and never mutated, so Forecast may be called from any number of
// goroutines without locking.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/HatiCode/loadforecaster/pkg/models"
	"github.com/HatiCode/loadforecaster/pkg/scaling"
	"github.com/HatiCode/loadforecaster/pkg/tensor"
)

// WindowSize is the number of samples a forecast consumes.
const WindowSize = 30

// InvalidInputLengthMessage is returned to clients when the window has the
// wrong length.
const InvalidInputLengthMessage = "Please provide exactly 30 recent consumption values."

var (
	// ErrInvalidInputLength is returned when a window does not hold exactly
	// WindowSize samples. It is the only client-caused failure.
	ErrInvalidInputLength = errors.New("invalid input length")

	// ErrScaler wraps failures of the forward or inverse transform.
	ErrScaler = errors.New("scaler error")

	// ErrModel wraps failures of the model and non-finite predictions.
	ErrModel = errors.New("model error")

	// ErrShape marks an internal shape invariant violation.
	ErrShape = errors.New("shape error")

	// ErrStartup wraps failures to load or validate assets before serving.
	ErrStartup = errors.New("startup error")
)

// Stage names reported to an Observer.
const (
	StageValidate = "validate"
	StageScale    = "scale"
	StageReshape  = "reshape"
	StagePredict  = "predict"
	StageInverse  = "inverse"
	StageUnwrap   = "unwrap"
)

// Window is an ordered series of consumption samples, oldest first.
type Window []float64

// Observer receives stage timings and failures. Implementations must be safe
// for concurrent use.
type Observer interface {
	ObserveStage(stage string, d time.Duration)
	RecordError(stage, reason string)
}

type nopObserver struct{}

func (nopObserver) ObserveStage(string, time.Duration) {}
func (nopObserver) RecordError(string, string)         {}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithObserver sets the stage observer.
func WithObserver(o Observer) Option {
	return func(p *Pipeline) {
		if o != nil {
			p.observer = o
		}
	}
}

// WithLogger sets the logger used for debug traces.
func WithLogger(l *slog.Logger) Option {
	return func(p *Pipeline) {
		if l != nil {
			p.logger = l
		}
	}
}

// Pipeline runs forecasts against a fixed scaler and model.
type Pipeline struct {
	scaler   scaling.Scaler
	model    models.Model
	observer Observer
	logger   *slog.Logger
}

// New creates a pipeline. Both the scaler and the model are required.
func New(scaler scaling.Scaler, model models.Model, opts ...Option) (*Pipeline, error) {
	if scaler == nil {
		return nil, fmt.Errorf("%w: scaler is required", ErrStartup)
	}
	if model == nil {
		return nil, fmt.Errorf("%w: model is required", ErrStartup)
	}

	p := &Pipeline{
		scaler:   scaler,
		model:    model,
		observer: nopObserver{},
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Model returns the model the pipeline predicts with.
func (p *Pipeline) Model() models.Model { return p.model }

// Scaler returns the scaler the pipeline transforms with.
func (p *Pipeline) Scaler() scaling.Scaler { return p.scaler }

// Forecast predicts the next value following window.
//
// Failures wrap exactly one of ErrInvalidInputLength, ErrScaler, ErrModel or
// ErrShape, together with the underlying cause.
func (p *Pipeline) Forecast(ctx context.Context, window Window) (float64, error) {
	start := time.Now()

	if err := CheckLength(len(window)); err != nil {
		p.observer.RecordError(StageValidate, "invalid_length")
		return 0, err
	}

	// the scaler sees an N×1 column, never the caller's slice
	column := tensor.Column(window).Clone()

	stageStart := time.Now()
	scaled, err := p.scaler.Transform(column)
	p.observer.ObserveStage(StageScale, time.Since(stageStart))
	if err != nil {
		p.observer.RecordError(StageScale, "transform_failed")
		return 0, fmt.Errorf("%w: transform: %w", ErrScaler, err)
	}

	stageStart = time.Now()
	input, err := reshapeForModel(scaled)
	p.observer.ObserveStage(StageReshape, time.Since(stageStart))
	if err != nil {
		p.observer.RecordError(StageReshape, "shape_mismatch")
		return 0, err
	}

	stageStart = time.Now()
	output, err := p.model.Predict(ctx, input)
	p.observer.ObserveStage(StagePredict, time.Since(stageStart))
	if err != nil {
		p.observer.RecordError(StagePredict, "predict_failed")
		return 0, fmt.Errorf("%w: %s: %w", ErrModel, p.model.Name(), err)
	}

	prediction, err := output.Column()
	if err != nil || prediction.Rows() != 1 {
		p.observer.RecordError(StageInverse, "shape_mismatch")
		return 0, fmt.Errorf("%w: model output has shape %v, want [1 1]", ErrShape, output.Shape())
	}

	stageStart = time.Now()
	restored, err := p.scaler.InverseTransform(prediction)
	p.observer.ObserveStage(StageInverse, time.Since(stageStart))
	if err != nil {
		p.observer.RecordError(StageInverse, "inverse_transform_failed")
		return 0, fmt.Errorf("%w: inverse transform: %w", ErrScaler, err)
	}

	value, err := restored.Scalar()
	if err != nil {
		p.observer.RecordError(StageUnwrap, "shape_mismatch")
		return 0, fmt.Errorf("%w: unwrap: %w", ErrShape, err)
	}
	if math.IsNaN(value) || math.IsInf(value, 0) {
		p.observer.RecordError(StageUnwrap, "non_finite")
		return 0, fmt.Errorf("%w: %s produced non-finite value %v", ErrModel, p.model.Name(), value)
	}

	p.logger.Debug("forecast complete",
		"model", p.model.Name(),
		"prediction", value,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return value, nil
}

// Warmup runs one forecast over a constant window to prove that the scaler
// and model are loaded and consistent with each other.
func (p *Pipeline) Warmup(ctx context.Context) error {
	steps, features := p.model.InputShape()
	if steps != WindowSize || features != 1 {
		return fmt.Errorf("%w: model %s expects input [%d %d], want [%d 1]",
			ErrStartup, p.model.Name(), steps, features, WindowSize)
	}

	window := make(Window, WindowSize)
	for i := range window {
		window[i] = 1
	}

	if _, err := p.Forecast(ctx, window); err != nil {
		return fmt.Errorf("%w: warmup forecast: %w", ErrStartup, err)
	}
	return nil
}

// CheckLength returns an error wrapping ErrInvalidInputLength unless n equals
// WindowSize. Transports call it on the raw payload before decoding elements.
func CheckLength(n int) error {
	if n != WindowSize {
		return fmt.Errorf("%w: got %d values, want %d", ErrInvalidInputLength, n, WindowSize)
	}
	return nil
}

// Kind classifies err into a short label suitable for metrics and logs:
// "ok" for nil, "invalid_length", "scaler", "model", "shape", or "error".
func Kind(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrInvalidInputLength):
		return "invalid_length"
	case errors.Is(err, ErrScaler):
		return "scaler"
	case errors.Is(err, ErrModel):
		return "model"
	case errors.Is(err, ErrShape):
		return "shape"
	default:
		return "error"
	}
}

func reshapeForModel(scaled tensor.Column) (tensor.Sequence, error) {
	if scaled.Rows() != WindowSize {
		return tensor.Sequence{}, fmt.Errorf("%w: scaled window has %d values, want %d", ErrShape, scaled.Rows(), WindowSize)
	}
	seq, err := tensor.NewSequence(1, WindowSize, 1, scaled)
	if err != nil {
		return tensor.Sequence{}, fmt.Errorf("%w: %w", ErrShape, err)
	}
	return seq, nil
}
