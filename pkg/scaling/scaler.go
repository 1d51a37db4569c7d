// Package scaling provides the fitted univariate transforms applied to
// consumption windows before they reach the model, and the inverse applied to
// the model's prediction.
//
// Scalers are fitted elsewhere (during training) and exported as a JSON
// artifact. This package only decodes the fitted parameters and applies them:
//   - MinMaxScaler:   y = x*scale + min
//   - StandardScaler: y = (x - mean) / scale
//
// Both operate on a single feature column and are pure functions of their
// input once loaded. A zero-value scaler is unfitted and returns ErrNotFitted.
package scaling

import (
	"errors"
	"fmt"
	"math"

	"github.com/HatiCode/loadforecaster/pkg/tensor"
)

var (
	// ErrNotFitted is returned when a scaler is used before its parameters were loaded.
	ErrNotFitted = errors.New("scaler is not fitted")

	// ErrInvalidArtifact is returned when a scaler artifact cannot be decoded.
	ErrInvalidArtifact = errors.New("invalid scaler artifact")
)

// Scaler is a fitted affine transform over one feature column.
type Scaler interface {
	// Name returns the scaler kind, e.g. "minmax".
	Name() string

	// Transform maps raw values into the model's scaled space.
	Transform(x tensor.Column) (tensor.Column, error)

	// InverseTransform maps scaled values back into original units.
	InverseTransform(y tensor.Column) (tensor.Column, error)
}

// affine holds y = x*mul + add. Both scalers reduce to it.
type affine struct {
	mul, add float64
	fitted   bool
}

func newAffine(mul, add float64) (affine, error) {
	if mul == 0 || math.IsNaN(mul) || math.IsInf(mul, 0) {
		return affine{}, fmt.Errorf("%w: scale must be finite and non-zero, got %v", ErrInvalidArtifact, mul)
	}
	if math.IsNaN(add) || math.IsInf(add, 0) {
		return affine{}, fmt.Errorf("%w: offset must be finite, got %v", ErrInvalidArtifact, add)
	}
	return affine{mul: mul, add: add, fitted: true}, nil
}

func (a affine) forward(x tensor.Column) (tensor.Column, error) {
	if !a.fitted {
		return nil, ErrNotFitted
	}
	out := make(tensor.Column, len(x))
	for i, v := range x {
		out[i] = v*a.mul + a.add
	}
	return out, nil
}

func (a affine) inverse(y tensor.Column) (tensor.Column, error) {
	if !a.fitted {
		return nil, ErrNotFitted
	}
	out := make(tensor.Column, len(y))
	for i, v := range y {
		out[i] = (v - a.add) / a.mul
	}
	return out, nil
}

// MinMaxScaler rescales values into a feature range learned from training data.
type MinMaxScaler struct {
	affine
}

// NewMinMaxScaler builds a min-max scaler from fitted min and scale terms,
// so that Transform(x) = x*scale + min.
func NewMinMaxScaler(min, scale float64) (*MinMaxScaler, error) {
	a, err := newAffine(scale, min)
	if err != nil {
		return nil, err
	}
	return &MinMaxScaler{affine: a}, nil
}

// NewMinMaxScalerFromRange derives the scaler from the observed data range
// and the target feature range.
func NewMinMaxScalerFromRange(dataMin, dataMax, lo, hi float64) (*MinMaxScaler, error) {
	if dataMax == dataMin {
		return nil, fmt.Errorf("%w: data range is empty (min == max == %v)", ErrInvalidArtifact, dataMin)
	}
	if hi <= lo {
		return nil, fmt.Errorf("%w: feature range [%v, %v] is empty", ErrInvalidArtifact, lo, hi)
	}
	scale := (hi - lo) / (dataMax - dataMin)
	return NewMinMaxScaler(lo-dataMin*scale, scale)
}

func (s *MinMaxScaler) Name() string { return "minmax" }

// Transform implements Scaler.
func (s *MinMaxScaler) Transform(x tensor.Column) (tensor.Column, error) {
	return s.forward(x)
}

// InverseTransform implements Scaler.
func (s *MinMaxScaler) InverseTransform(y tensor.Column) (tensor.Column, error) {
	return s.inverse(y)
}

// StandardScaler centers values on the training mean and divides by the
// training standard deviation.
type StandardScaler struct {
	affine
}

// NewStandardScaler builds a standardizing scaler.
func NewStandardScaler(mean, scale float64) (*StandardScaler, error) {
	if scale == 0 || math.IsNaN(scale) || math.IsInf(scale, 0) {
		return nil, fmt.Errorf("%w: scale must be finite and non-zero, got %v", ErrInvalidArtifact, scale)
	}
	a, err := newAffine(1/scale, -mean/scale)
	if err != nil {
		return nil, err
	}
	return &StandardScaler{affine: a}, nil
}

func (s *StandardScaler) Name() string { return "standard" }

// Transform implements Scaler.
func (s *StandardScaler) Transform(x tensor.Column) (tensor.Column, error) {
	return s.forward(x)
}

// InverseTransform implements Scaler.
func (s *StandardScaler) InverseTransform(y tensor.Column) (tensor.Column, error) {
	return s.inverse(y)
}
