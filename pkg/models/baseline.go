package models

import (
	"context"

	"github.com/HatiCode/loadforecaster/pkg/tensor"
)

// BaselineModel extrapolates the next value of a window from its recent
// linear trend and momentum. It needs no trained artifact, which makes it
// useful for smoke-testing a deployment before a model has been exported.
//
// Algorithm:
//  1. Trend: slope of a least-squares line over the trailing 10 points
//  2. Momentum: slope of the recent half minus slope of the older half
//  3. Forecast: last + trend + 0.5*momentum
//
// The model works on whatever space it is given. In the pipeline that is the
// scaled space, and because scalers are affine the extrapolation commutes
// with the inverse transform.
type BaselineModel struct {
	// steps is the expected window length.
	steps int
}

// NewBaselineModel creates a baseline model for windows of the given length.
func NewBaselineModel(steps int) *BaselineModel {
	return &BaselineModel{steps: steps}
}

// Name returns the model identifier.
func (m *BaselineModel) Name() string {
	return "baseline"
}

// InputShape implements Model. The baseline is univariate.
func (m *BaselineModel) InputShape() (int, int) { return m.steps, 1 }

// Predict returns one extrapolated value per batch element.
func (m *BaselineModel) Predict(_ context.Context, x tensor.Sequence) (tensor.Matrix, error) {
	if err := checkInput(m, x); err != nil {
		return tensor.Matrix{}, err
	}

	out := make([]float64, x.Batch())
	values := make([]float64, x.Steps())
	for b := range out {
		for t := range values {
			values[t] = x.At(b, t, 0)
		}
		out[b] = values[len(values)-1] + detectTrend(values) + 0.5*detectMomentum(values)
	}

	return tensor.NewMatrix(x.Batch(), 1, out)
}

// detectTrend computes the slope (change per step) from recent values.
// Uses simple linear regression on the most recent window of data.
func detectTrend(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}

	// Use last 10 points or all available, whichever is smaller
	windowSize := 10
	if len(values) < windowSize {
		windowSize = len(values)
	}

	window := values[len(values)-windowSize:]

	n := float64(len(window))
	sumX := 0.0
	sumY := 0.0
	sumXY := 0.0
	sumX2 := 0.0

	for i, y := range window {
		x := float64(i)
		sumX += x
		sumY += y
		sumXY += x * y
		sumX2 += x * x
	}

	// slope = (n*sumXY - sumX*sumY) / (n*sumX2 - sumX*sumX)
	denominator := n*sumX2 - sumX*sumX
	if denominator == 0 {
		return 0
	}

	return (n*sumXY - sumX*sumY) / denominator
}

// detectMomentum computes acceleration by comparing recent trend to older trend.
//
// Positive momentum = accelerating upward
// Negative momentum = decelerating or accelerating downward
func detectMomentum(values []float64) float64 {
	if len(values) < 6 {
		return 0
	}

	mid := len(values) / 2
	return detectTrend(values[mid:]) - detectTrend(values[:mid])
}
